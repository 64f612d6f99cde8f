package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"classboard/internal/joincode"
	"classboard/pkg/domain"
	"classboard/pkg/store"
)

// CreateClassroomInput is the classroom creation payload.
type CreateClassroomInput struct {
	Name    string
	Subject string
	Section string
}

// CreateClassroom creates a classroom owned by the teacher with a fresh join
// code. A generated-code collision surfaces as a storage error; the teacher
// retries.
func (a *App) CreateClassroom(ctx context.Context, teacherID string, in CreateClassroomInput) (domain.Classroom, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Classroom{}, invalidf("classroom name is required")
	}
	code := joincode.Generate()
	now := a.now()
	classroom := domain.Classroom{
		ID:         newID(),
		Name:       name,
		Subject:    strings.TrimSpace(in.Subject),
		Section:    strings.TrimSpace(in.Section),
		Code:       code,
		TeacherID:  teacherID,
		StudentIDs: []string{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := a.store.SaveClassroom(classroom); err != nil {
		return domain.Classroom{}, fmt.Errorf("save classroom: %w", err)
	}
	classroom.JoinLink = a.JoinLink(code)
	return classroom, nil
}

// JoinLink builds the shareable link for a join code.
func (a *App) JoinLink(code string) string {
	return a.frontendBaseURL + "/classroom/" + code
}

// ListClassrooms returns every classroom.
func (a *App) ListClassrooms(ctx context.Context) ([]domain.Classroom, error) {
	classrooms, err := a.store.ListClassrooms()
	if err != nil {
		return nil, fmt.Errorf("list classrooms: %w", err)
	}
	return a.decorate(classrooms), nil
}

// MyClassrooms returns the classrooms relevant to the caller: owned ones for
// teachers, joined ones for students.
func (a *App) MyClassrooms(ctx context.Context, userID string, role domain.UserRole) ([]domain.Classroom, error) {
	var (
		classrooms []domain.Classroom
		err        error
	)
	if role == domain.RoleTeacher {
		classrooms, err = a.store.ListClassroomsByTeacher(userID)
	} else {
		classrooms, err = a.store.ListClassroomsByStudent(userID)
	}
	if err != nil {
		return nil, fmt.Errorf("list classrooms: %w", err)
	}
	return a.decorate(classrooms), nil
}

// GetClassroomByCode resolves any accepted code form and returns the classroom.
func (a *App) GetClassroomByCode(ctx context.Context, raw string) (domain.Classroom, error) {
	code, err := joincode.Resolve(raw)
	if err != nil {
		return domain.Classroom{}, invalidf("invalid classroom code")
	}
	classroom, ok, err := a.store.GetClassroomByCode(code)
	if err != nil {
		return domain.Classroom{}, fmt.Errorf("lookup classroom: %w", err)
	}
	if !ok {
		return domain.Classroom{}, ErrClassroomNotFound
	}
	return a.decorateOne(classroom), nil
}

// JoinClassroom enrolls a student via a join code or join link.
func (a *App) JoinClassroom(ctx context.Context, studentID, raw string) (domain.Classroom, error) {
	code, err := joincode.Resolve(raw)
	if err != nil {
		return domain.Classroom{}, invalidf("invalid classroom code")
	}
	classroom, ok, err := a.store.GetClassroomByCode(code)
	if err != nil {
		return domain.Classroom{}, fmt.Errorf("lookup classroom: %w", err)
	}
	if !ok {
		return domain.Classroom{}, ErrClassroomNotFound
	}
	if classroom.TeacherID == studentID {
		return domain.Classroom{}, invalidf("you are the teacher of this classroom")
	}
	for _, id := range classroom.StudentIDs {
		if id == studentID {
			return domain.Classroom{}, ErrAlreadyMember
		}
	}
	if err := a.store.AddStudent(classroom.ID, studentID); err != nil {
		if errors.Is(err, store.ErrDuplicateMembership) {
			return domain.Classroom{}, ErrAlreadyMember
		}
		return domain.Classroom{}, fmt.Errorf("join classroom: %w", err)
	}
	classroom.StudentIDs = append(classroom.StudentIDs, studentID)
	return a.decorateOne(classroom), nil
}

// classroomForMember loads a classroom and checks the caller belongs to it.
func (a *App) classroomForMember(classroomID, userID string) (domain.Classroom, error) {
	classroom, ok, err := a.store.GetClassroom(classroomID)
	if err != nil {
		return domain.Classroom{}, fmt.Errorf("lookup classroom: %w", err)
	}
	if !ok {
		return domain.Classroom{}, ErrClassroomNotFound
	}
	if !isMember(classroom, userID) {
		return domain.Classroom{}, ErrNotMember
	}
	return classroom, nil
}

// classroomForOwner loads a classroom and checks the caller owns it.
func (a *App) classroomForOwner(classroomID, teacherID string) (domain.Classroom, error) {
	classroom, ok, err := a.store.GetClassroom(classroomID)
	if err != nil {
		return domain.Classroom{}, fmt.Errorf("lookup classroom: %w", err)
	}
	if !ok {
		return domain.Classroom{}, ErrClassroomNotFound
	}
	if classroom.TeacherID != teacherID {
		return domain.Classroom{}, ErrNotOwner
	}
	return classroom, nil
}

func isMember(c domain.Classroom, userID string) bool {
	if c.TeacherID == userID {
		return true
	}
	for _, id := range c.StudentIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func (a *App) decorate(classrooms []domain.Classroom) []domain.Classroom {
	out := make([]domain.Classroom, 0, len(classrooms))
	for _, c := range classrooms {
		out = append(out, a.decorateOne(c))
	}
	return out
}

func (a *App) decorateOne(c domain.Classroom) domain.Classroom {
	c.JoinLink = a.JoinLink(c.Code)
	if teacher, ok, err := a.store.GetUserByID(c.TeacherID); err == nil && ok {
		c.TeacherName = teacher.Name
	}
	return c
}
