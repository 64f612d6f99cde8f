package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID           string `gorm:"primaryKey"`
	Name         string `gorm:"not null"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string
	Role         string `gorm:"not null"`
	Verified     bool
	AuthProvider string `gorm:"not null"`
	GoogleID     string `gorm:"index"`
	CreatedAt    time.Time `gorm:"not null;index"`
	UpdatedAt    time.Time
}

type ClassroomModel struct {
	ID            string `gorm:"primaryKey"`
	Name          string `gorm:"not null"`
	Subject       string
	Section       string
	Code          string `gorm:"uniqueIndex;not null"`
	TeacherID     string `gorm:"not null;index"`
	ActiveMeet    bool
	MeetRoomID    string
	MeetLink      string
	MeetStartedBy string
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time
}

// ClassroomStudentModel is the membership join table. The composite primary
// key rejects duplicate enrollment at rest.
type ClassroomStudentModel struct {
	ClassroomID string    `gorm:"primaryKey"`
	StudentID   string    `gorm:"primaryKey;index"`
	CreatedAt   time.Time `gorm:"not null"`
}

type AssignmentModel struct {
	ID          string `gorm:"primaryKey"`
	Title       string `gorm:"not null"`
	Description string `gorm:"type:text"`
	FileURL     string
	ClassroomID string `gorm:"not null;index"`
	TeacherID   string `gorm:"not null"`
	DueDate     *time.Time
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time
}

type SubmissionModel struct {
	ID           string `gorm:"primaryKey"`
	AssignmentID string `gorm:"not null;uniqueIndex:idx_submission_assignment_student"`
	StudentID    string `gorm:"not null;uniqueIndex:idx_submission_assignment_student"`
	ClassroomID  string `gorm:"not null;index"`
	FileURL      string `gorm:"not null"`
	Score        *float64
	// Feedback is stored as a JSON array of lines.
	Feedback  datatypes.JSON `gorm:"type:jsonb"`
	Evaluated bool           `gorm:"not null;index"`
	Published bool           `gorm:"not null"`
	CreatedAt time.Time      `gorm:"not null;index"`
	UpdatedAt time.Time
}
