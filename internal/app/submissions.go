package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"

	"classboard/internal/evaluator"
	"classboard/internal/extract"
	"classboard/pkg/domain"
)

// maxExtractBytes bounds how much of a stored file is read for grading.
const maxExtractBytes = 20 << 20

// evaluateNextAttempts bounds the skip-and-retry loop when concurrent
// triggers race on the same classroom.
const evaluateNextAttempts = 5

// Submit uploads a submission, resetting any prior grade for the same
// (assignment, student) pair.
func (a *App) Submit(ctx context.Context, studentID, assignmentID string, file Upload) (domain.Submission, error) {
	assignment, ok, err := a.store.GetAssignment(assignmentID)
	if err != nil {
		return domain.Submission{}, fmt.Errorf("lookup assignment: %w", err)
	}
	if !ok {
		return domain.Submission{}, ErrAssignmentNotFound
	}
	classroom, ok, err := a.store.GetClassroom(assignment.ClassroomID)
	if err != nil {
		return domain.Submission{}, fmt.Errorf("lookup classroom: %w", err)
	}
	if !ok {
		return domain.Submission{}, ErrClassroomNotFound
	}
	if !isEnrolledStudent(classroom, studentID) {
		return domain.Submission{}, ErrNotMember
	}

	fileURL, err := a.blobs.Save(ctx, file.Name, file.Reader, file.Size, file.ContentType)
	if err != nil {
		return domain.Submission{}, fmt.Errorf("store submission file: %w", err)
	}

	now := a.now()
	submission := domain.Submission{
		ID:           newID(),
		AssignmentID: assignmentID,
		ClassroomID:  classroom.ID,
		StudentID:    studentID,
		FileURL:      fileURL,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	// Resubmission reuses the existing row and always resets grading state.
	replacedFileURL := ""
	if prev, ok, err := a.store.GetSubmissionForStudent(assignmentID, studentID); err != nil {
		return domain.Submission{}, fmt.Errorf("lookup submission: %w", err)
	} else if ok {
		submission.ID = prev.ID
		submission.CreatedAt = prev.CreatedAt
		replacedFileURL = prev.FileURL
	}
	if err := a.store.SaveSubmission(submission); err != nil {
		return domain.Submission{}, fmt.Errorf("save submission: %w", err)
	}
	// The old upload is orphaned once the row points at the new file.
	if replacedFileURL != "" && replacedFileURL != fileURL {
		if err := a.blobs.Delete(ctx, replacedFileURL); err != nil {
			slog.Warn("remove replaced upload failed", "submission", submission.ID, "err", err)
		}
	}
	return submission, nil
}

// MySubmission returns the student's own submission with score and feedback
// withheld until the teacher publishes.
func (a *App) MySubmission(ctx context.Context, studentID, assignmentID string) (domain.Submission, error) {
	submission, ok, err := a.store.GetSubmissionForStudent(assignmentID, studentID)
	if err != nil {
		return domain.Submission{}, fmt.Errorf("lookup submission: %w", err)
	}
	if !ok {
		return domain.Submission{}, ErrSubmissionNotFound
	}
	if !submission.Published {
		submission.Score = nil
		submission.Feedback = ""
	}
	return submission, nil
}

// AssignmentSubmissions returns the full roster view for a teacher.
func (a *App) AssignmentSubmissions(ctx context.Context, teacherID, assignmentID string) ([]domain.Submission, error) {
	assignment, ok, err := a.store.GetAssignment(assignmentID)
	if err != nil {
		return nil, fmt.Errorf("lookup assignment: %w", err)
	}
	if !ok {
		return nil, ErrAssignmentNotFound
	}
	if _, err := a.classroomForOwner(assignment.ClassroomID, teacherID); err != nil {
		return nil, err
	}
	submissions, err := a.store.ListSubmissionsByAssignment(assignmentID)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return submissions, nil
}

// QueuePage is one page of a classroom's submission queue.
type QueuePage struct {
	Items []domain.Submission `json:"items"`
	Total int64               `json:"total"`
	Page  int                 `json:"page"`
	Limit int                 `json:"limit"`
}

// ClassroomQueue pages through a classroom's submissions in creation order.
func (a *App) ClassroomQueue(ctx context.Context, teacherID, classroomID string, page, limit int) (QueuePage, error) {
	if _, err := a.classroomForOwner(classroomID, teacherID); err != nil {
		return QueuePage{}, err
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	items, total, err := a.store.ListClassroomSubmissions(classroomID, (page-1)*limit, limit)
	if err != nil {
		return QueuePage{}, fmt.Errorf("list submissions: %w", err)
	}
	return QueuePage{Items: items, Total: total, Page: page, Limit: limit}, nil
}

// ManualEvaluate records a teacher-entered score and feedback.
func (a *App) ManualEvaluate(ctx context.Context, teacherID, submissionID string, score float64, feedback string) (domain.Submission, error) {
	if score < 0 || score > 10 {
		return domain.Submission{}, invalidf("score must be between 0 and 10")
	}
	submission, err := a.submissionForOwner(teacherID, submissionID)
	if err != nil {
		return domain.Submission{}, err
	}
	if _, err := a.store.SetEvaluation(submission.ID, domain.Evaluation{Score: score, Feedback: feedback}, false); err != nil {
		return domain.Submission{}, fmt.Errorf("record evaluation: %w", err)
	}
	return a.reload(submission.ID)
}

// EvaluateAI grades one submission with the automated evaluator. A concurrent
// trigger that already evaluated the submission wins; the stored result is
// returned either way.
func (a *App) EvaluateAI(ctx context.Context, teacherID, submissionID string) (domain.Submission, error) {
	submission, err := a.submissionForOwner(teacherID, submissionID)
	if err != nil {
		return domain.Submission{}, err
	}
	result := a.gradeSubmission(ctx, submission)
	if _, err := a.store.SetEvaluation(submission.ID, result, true); err != nil {
		return domain.Submission{}, fmt.Errorf("record evaluation: %w", err)
	}
	return a.reload(submission.ID)
}

// EvaluateNext grades the oldest unevaluated submission in the classroom. A
// submission claimed by a concurrent trigger is skipped and the next one tried.
func (a *App) EvaluateNext(ctx context.Context, teacherID, classroomID string) (domain.Submission, error) {
	if _, err := a.classroomForOwner(classroomID, teacherID); err != nil {
		return domain.Submission{}, err
	}
	for attempt := 0; attempt < evaluateNextAttempts; attempt++ {
		submission, ok, err := a.store.OldestUnevaluated(classroomID)
		if err != nil {
			return domain.Submission{}, fmt.Errorf("select submission: %w", err)
		}
		if !ok {
			return domain.Submission{}, ErrNothingToEvaluate
		}
		result := a.gradeSubmission(ctx, submission)
		applied, err := a.store.SetEvaluation(submission.ID, result, true)
		if err != nil {
			return domain.Submission{}, fmt.Errorf("record evaluation: %w", err)
		}
		if applied {
			return a.reload(submission.ID)
		}
	}
	return domain.Submission{}, ErrNothingToEvaluate
}

// Publish flips published on every evaluated-but-unpublished submission in
// the classroom and reports how many rows changed.
func (a *App) Publish(ctx context.Context, teacherID, classroomID string) (int64, error) {
	if _, err := a.classroomForOwner(classroomID, teacherID); err != nil {
		return 0, err
	}
	changed, err := a.store.PublishClassroom(classroomID)
	if err != nil {
		return 0, fmt.Errorf("publish classroom: %w", err)
	}
	return changed, nil
}

// gradeSubmission extracts the stored file's text and runs the evaluator.
// Extraction failures degrade to grading empty text rather than failing.
func (a *App) gradeSubmission(ctx context.Context, submission domain.Submission) domain.Evaluation {
	assignment, ok, err := a.store.GetAssignment(submission.AssignmentID)
	if err != nil || !ok {
		slog.Warn("grading without assignment context", "submission", submission.ID, "err", err)
	}
	text := a.extractText(ctx, submission)
	return a.eval.Evaluate(ctx, evaluator.Input{
		AssignmentTitle:  assignment.Title,
		AssignmentPrompt: assignment.Description,
		AnswerText:       text,
	})
}

func (a *App) extractText(ctx context.Context, submission domain.Submission) string {
	rc, err := a.blobs.Open(ctx, submission.FileURL)
	if err != nil {
		slog.Warn("open submission file failed", "submission", submission.ID, "err", err)
		return ""
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, maxExtractBytes))
	if err != nil {
		slog.Warn("read submission file failed", "submission", submission.ID, "err", err)
		return ""
	}
	text, err := extract.Text(data, storedFilename(submission.FileURL))
	if err != nil {
		slog.Warn("text extraction failed", "submission", submission.ID, "err", err)
		return ""
	}
	return text
}

func storedFilename(fileURL string) string {
	if parsed, err := url.Parse(fileURL); err == nil && parsed.Path != "" {
		return path.Base(parsed.Path)
	}
	return path.Base(fileURL)
}

func (a *App) submissionForOwner(teacherID, submissionID string) (domain.Submission, error) {
	submission, ok, err := a.store.GetSubmission(submissionID)
	if err != nil {
		return domain.Submission{}, fmt.Errorf("lookup submission: %w", err)
	}
	if !ok {
		return domain.Submission{}, ErrSubmissionNotFound
	}
	if _, err := a.classroomForOwner(submission.ClassroomID, teacherID); err != nil {
		return domain.Submission{}, err
	}
	return submission, nil
}

func (a *App) reload(submissionID string) (domain.Submission, error) {
	submission, ok, err := a.store.GetSubmission(submissionID)
	if err != nil {
		return domain.Submission{}, fmt.Errorf("reload submission: %w", err)
	}
	if !ok {
		return domain.Submission{}, ErrSubmissionNotFound
	}
	return submission, nil
}

func isEnrolledStudent(c domain.Classroom, userID string) bool {
	for _, id := range c.StudentIDs {
		if id == userID {
			return true
		}
	}
	return false
}
