package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"classboard/pkg/domain"
)

// CreateAssignmentInput is the assignment creation payload.
type CreateAssignmentInput struct {
	ClassroomID string
	Title       string
	Description string
	DueDate     *time.Time
	File        *Upload
}

// CreateAssignment posts an assignment to a classroom the teacher owns.
func (a *App) CreateAssignment(ctx context.Context, teacherID string, in CreateAssignmentInput) (domain.Assignment, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return domain.Assignment{}, invalidf("assignment title is required")
	}
	classroom, err := a.classroomForOwner(in.ClassroomID, teacherID)
	if err != nil {
		return domain.Assignment{}, err
	}

	fileURL := ""
	if in.File != nil {
		fileURL, err = a.blobs.Save(ctx, in.File.Name, in.File.Reader, in.File.Size, in.File.ContentType)
		if err != nil {
			return domain.Assignment{}, fmt.Errorf("store assignment file: %w", err)
		}
	}

	now := a.now()
	assignment := domain.Assignment{
		ID:          newID(),
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		FileURL:     fileURL,
		ClassroomID: classroom.ID,
		TeacherID:   teacherID,
		DueDate:     in.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := a.store.SaveAssignment(assignment); err != nil {
		return domain.Assignment{}, fmt.Errorf("save assignment: %w", err)
	}
	return assignment, nil
}

// ListAssignments returns a classroom's assignments for a member.
func (a *App) ListAssignments(ctx context.Context, userID, classroomID string) ([]domain.Assignment, error) {
	if _, err := a.classroomForMember(classroomID, userID); err != nil {
		return nil, err
	}
	assignments, err := a.store.ListAssignmentsByClassroom(classroomID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return assignments, nil
}

// GetAssignment returns one assignment for a classroom member.
func (a *App) GetAssignment(ctx context.Context, userID, assignmentID string) (domain.Assignment, error) {
	assignment, ok, err := a.store.GetAssignment(assignmentID)
	if err != nil {
		return domain.Assignment{}, fmt.Errorf("lookup assignment: %w", err)
	}
	if !ok {
		return domain.Assignment{}, ErrAssignmentNotFound
	}
	if _, err := a.classroomForMember(assignment.ClassroomID, userID); err != nil {
		return domain.Assignment{}, err
	}
	return assignment, nil
}
