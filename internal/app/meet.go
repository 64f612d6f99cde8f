package app

import (
	"context"
	"fmt"
	"strings"

	"classboard/pkg/domain"
)

// captionFallbackLines is how many trailing caption lines stand in for a
// summary when no AI generator is configured.
const captionFallbackLines = 20

const summarizeSystemPrompt = "You summarize classroom discussions into short, clear notes for students."

// StartMeet marks the classroom's live session active and broadcasts the
// status to the classroom channel.
func (a *App) StartMeet(ctx context.Context, teacherID, classroomID string) (domain.MeetStatus, error) {
	classroom, err := a.classroomForOwner(classroomID, teacherID)
	if err != nil {
		return domain.MeetStatus{}, err
	}
	roomID := classroom.MeetRoomID
	if roomID == "" || !classroom.ActiveMeet {
		roomID = newID()
	}
	meetLink := a.frontendBaseURL + "/meet/" + roomID
	if err := a.store.SetMeetState(classroomID, true, roomID, meetLink, teacherID); err != nil {
		return domain.MeetStatus{}, fmt.Errorf("start meet: %w", err)
	}
	status := domain.MeetStatus{ClassroomID: classroomID, Active: true, RoomID: roomID, MeetLink: meetLink}
	if a.hub != nil {
		a.hub.BroadcastStatus(status)
	}
	return status, nil
}

// EndMeet clears the live session and broadcasts the inactive status.
func (a *App) EndMeet(ctx context.Context, teacherID, classroomID string) (domain.MeetStatus, error) {
	if _, err := a.classroomForOwner(classroomID, teacherID); err != nil {
		return domain.MeetStatus{}, err
	}
	if err := a.store.SetMeetState(classroomID, false, "", "", ""); err != nil {
		return domain.MeetStatus{}, fmt.Errorf("end meet: %w", err)
	}
	status := domain.MeetStatus{ClassroomID: classroomID, Active: false}
	if a.hub != nil {
		a.hub.BroadcastStatus(status)
	}
	return status, nil
}

// SummarizeCaptions condenses the classroom's caption buffer. Without an AI
// generator the most recent caption lines are returned verbatim.
func (a *App) SummarizeCaptions(ctx context.Context, userID, classroomID string, clearAfter bool) (string, error) {
	if _, err := a.classroomForMember(classroomID, userID); err != nil {
		return "", err
	}
	transcript := a.captions.Transcript(classroomID)
	if strings.TrimSpace(transcript) == "" {
		return "", invalidf("no captions recorded for this classroom yet")
	}

	summary, err := a.summarizeTranscript(ctx, transcript)
	if err != nil {
		return "", err
	}
	if clearAfter {
		a.captions.Clear(classroomID)
	}
	return summary, nil
}

func (a *App) summarizeTranscript(ctx context.Context, transcript string) (string, error) {
	if a.summarizer == nil {
		lines := strings.Split(transcript, "\n")
		if len(lines) > captionFallbackLines {
			lines = lines[len(lines)-captionFallbackLines:]
		}
		return strings.Join(lines, "\n"), nil
	}
	prompt := "Summarize the following classroom captions into concise bullet points:\n\n" + transcript
	summary, err := a.summarizer.GenerateText(ctx, summarizeSystemPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("summarize captions: %w", err)
	}
	return strings.TrimSpace(summary), nil
}

// SummarizeText condenses arbitrary text of at least 10 characters.
func (a *App) SummarizeText(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if len(text) < 10 {
		return "", invalidf("text must be at least 10 characters")
	}
	if a.summarizer == nil {
		return "", invalidf("AI summarization is not configured")
	}
	prompt := "Summarize the following text into a short, clear paragraph:\n\n" + text
	summary, err := a.summarizer.GenerateText(ctx, summarizeSystemPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("summarize text: %w", err)
	}
	return strings.TrimSpace(summary), nil
}

// LiveSummary summarizes an uploaded audio snippet of the live session.
func (a *App) LiveSummary(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if len(audio) == 0 {
		return "", invalidf("audio file is required")
	}
	if a.audio == nil {
		return "", invalidf("AI summarization is not configured")
	}
	prompt := "Listen to this classroom audio and summarize the key points discussed."
	summary, err := a.audio.GenerateFromAudio(ctx, prompt, audio, mimeType)
	if err != nil {
		return "", fmt.Errorf("summarize audio: %w", err)
	}
	return strings.TrimSpace(summary), nil
}
