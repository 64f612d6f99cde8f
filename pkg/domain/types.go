package domain

import "time"

type UserRole string

const (
	RoleTeacher UserRole = "teacher"
	RoleStudent UserRole = "student"
)

type AuthProvider string

const (
	ProviderLocal  AuthProvider = "local"
	ProviderGoogle AuthProvider = "google"
)

type User struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Email        string       `json:"email"`
	PasswordHash string       `json:"-"`
	Role         UserRole     `json:"role"`
	Verified     bool         `json:"verified"`
	AuthProvider AuthProvider `json:"-"`
	GoogleID     string       `json:"-"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// Classroom carries both the persisted roster and the transient meet state.
type Classroom struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Subject     string    `json:"subject"`
	Section     string    `json:"section,omitempty"`
	Code        string    `json:"code"`
	JoinLink    string    `json:"joinLink,omitempty"`
	TeacherID   string    `json:"teacher"`
	TeacherName string    `json:"teacherName,omitempty"`
	StudentIDs  []string  `json:"students"`
	ActiveMeet  bool      `json:"activeMeet"`
	MeetRoomID  string    `json:"meetRoomId,omitempty"`
	MeetLink    string    `json:"meetLink,omitempty"`
	MeetStarter string    `json:"meetStartedBy,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Assignment struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	FileURL     string     `json:"fileUrl,omitempty"`
	ClassroomID string     `json:"classroom"`
	TeacherID   string     `json:"teacher"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Submission holds the single canonical field set. Legacy wire aliases
// (marks, aiScore, isEvaluated, ...) are produced at the serialization
// boundary by the server package, never stored.
type Submission struct {
	ID           string    `json:"id"`
	AssignmentID string    `json:"assignment"`
	ClassroomID  string    `json:"classroom"`
	StudentID    string    `json:"student"`
	FileURL      string    `json:"fileUrl"`
	Score        *float64  `json:"score,omitempty"`
	Feedback     string    `json:"feedback,omitempty"`
	Evaluated    bool      `json:"evaluated"`
	Published    bool      `json:"published"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Evaluation is the result of grading one submission.
type Evaluation struct {
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
}

// MeetStatus is broadcast to a classroom channel when a meet starts or ends.
type MeetStatus struct {
	ClassroomID string `json:"classroomId"`
	Active      bool   `json:"active"`
	RoomID      string `json:"roomId,omitempty"`
	MeetLink    string `json:"meetLink,omitempty"`
}

// Caption is a relayed live-caption event.
type Caption struct {
	ClassroomID string    `json:"classroomId"`
	Text        string    `json:"text"`
	From        string    `json:"from"`
	At          time.Time `json:"at"`
}

// Analytics aggregates platform-wide counters for the admin views.
type Analytics struct {
	TotalTeachers    int64          `json:"totalTeachers"`
	TotalStudents    int64          `json:"totalStudents"`
	TotalUsers       int64          `json:"totalUsers"`
	TotalClassrooms  int64          `json:"totalClassrooms"`
	TotalAssignments int64          `json:"totalAssignments"`
	TotalSubmissions int64          `json:"totalSubmissions"`
	Evaluated        int64          `json:"aiEvaluated"`
	Published        int64          `json:"published"`
	ActiveMeets      int64          `json:"activeMeets"`
	RecentUsers      int64          `json:"recentUsers"`
	TopClassrooms    []TopClassroom `json:"topClassrooms"`
}

type TopClassroom struct {
	Name         string `json:"name"`
	Subject      string `json:"subject"`
	Code         string `json:"code"`
	StudentCount int    `json:"studentCount"`
	Teacher      string `json:"teacher"`
}
