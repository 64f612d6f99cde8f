package store

import (
	"time"

	"classboard/pkg/domain"
)

// Store defines persistence operations for users, classrooms, assignments,
// and submissions.
type Store interface {
	// users
	SaveUser(domain.User) error
	HasUserEmail(email string) (bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)
	CountUsers() (int64, error)
	CountUsersByRole(role domain.UserRole) (int64, error)
	CountUsersSince(since time.Time) (int64, error)

	// classrooms
	SaveClassroom(domain.Classroom) error
	GetClassroom(id string) (domain.Classroom, bool, error)
	GetClassroomByCode(code string) (domain.Classroom, bool, error)
	ListClassrooms() ([]domain.Classroom, error)
	ListClassroomsByTeacher(teacherID string) ([]domain.Classroom, error)
	ListClassroomsByStudent(studentID string) ([]domain.Classroom, error)
	AddStudent(classroomID, studentID string) error
	SetMeetState(classroomID string, active bool, roomID, meetLink, startedBy string) error
	CountClassrooms() (int64, error)
	CountActiveMeets() (int64, error)
	TopClassrooms(limit int) ([]domain.TopClassroom, error)

	// assignments
	SaveAssignment(domain.Assignment) error
	GetAssignment(id string) (domain.Assignment, bool, error)
	ListAssignmentsByClassroom(classroomID string) ([]domain.Assignment, error)
	CountAssignments() (int64, error)

	// submissions
	SaveSubmission(domain.Submission) error
	GetSubmission(id string) (domain.Submission, bool, error)
	GetSubmissionForStudent(assignmentID, studentID string) (domain.Submission, bool, error)
	ListSubmissionsByAssignment(assignmentID string) ([]domain.Submission, error)
	// ListClassroomSubmissions pages through a classroom's submissions in
	// creation order and also returns the total count.
	ListClassroomSubmissions(classroomID string, offset, limit int) ([]domain.Submission, int64, error)
	OldestUnevaluated(classroomID string) (domain.Submission, bool, error)
	// SetEvaluation writes score/feedback and flips evaluated. With
	// onlyUnevaluated set the write is conditional on evaluated still being
	// false; the returned bool reports whether a row was updated.
	SetEvaluation(submissionID string, eval domain.Evaluation, onlyUnevaluated bool) (bool, error)
	// PublishClassroom flips published for every evaluated-but-unpublished
	// submission in the classroom and returns the number of rows changed.
	PublishClassroom(classroomID string) (int64, error)
	CountSubmissions() (int64, error)
	CountEvaluated() (int64, error)
	CountPublished() (int64, error)
}
