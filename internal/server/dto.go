package server

import (
	"time"

	"classboard/pkg/domain"
)

// submissionDTO is the wire shape for submissions. Earlier API consumers used
// different field names for the same data, so each graded field is emitted
// under both its canonical name and its legacy alias.
type submissionDTO struct {
	ID           string    `json:"id"`
	AssignmentID string    `json:"assignment"`
	ClassroomID  string    `json:"classroom"`
	StudentID    string    `json:"student"`
	FileURL      string    `json:"fileUrl"`
	SolutionURL  string    `json:"solutionFileURL"`
	Score        *float64  `json:"score"`
	Marks        *float64  `json:"marks"`
	AIScore      *float64  `json:"aiScore"`
	Feedback     string    `json:"feedback"`
	AIFeedback   string    `json:"aiFeedback"`
	Evaluated    bool      `json:"evaluated"`
	IsEvaluated  bool      `json:"isEvaluated"`
	Published    bool      `json:"published"`
	IsPublished  bool      `json:"isPublished"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func toSubmissionDTO(s domain.Submission) submissionDTO {
	return submissionDTO{
		ID:           s.ID,
		AssignmentID: s.AssignmentID,
		ClassroomID:  s.ClassroomID,
		StudentID:    s.StudentID,
		FileURL:      s.FileURL,
		SolutionURL:  s.FileURL,
		Score:        s.Score,
		Marks:        s.Score,
		AIScore:      s.Score,
		Feedback:     s.Feedback,
		AIFeedback:   s.Feedback,
		Evaluated:    s.Evaluated,
		IsEvaluated:  s.Evaluated,
		Published:    s.Published,
		IsPublished:  s.Published,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

func toSubmissionDTOs(subs []domain.Submission) []submissionDTO {
	out := make([]submissionDTO, 0, len(subs))
	for _, s := range subs {
		out = append(out, toSubmissionDTO(s))
	}
	return out
}

// tokenResponse is returned by the register, login, and google-login routes.
type tokenResponse struct {
	Token   string      `json:"token"`
	User    domain.User `json:"user"`
	Message string      `json:"message,omitempty"`
}
