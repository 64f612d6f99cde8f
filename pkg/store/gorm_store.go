package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"classboard/pkg/domain"
)

const migrateLockID int64 = 52310917

var _ Store = (*GormStore)(nil)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
			&UserModel{},
			&ClassroomModel{},
			&ClassroomStudentModel{},
			&AssignmentModel{},
			&SubmissionModel{},
		); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// SaveUser registers or updates a user.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "email", "password_hash", "role", "verified", "auth_provider", "google_id", "updated_at"}),
	}).Create(&model).Error
}

// HasUserEmail checks if email exists.
func (s *GormStore) HasUserEmail(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

func (s *GormStore) CountUsers() (int64, error) {
	return s.count(s.db.Model(&UserModel{}))
}

func (s *GormStore) CountUsersByRole(role domain.UserRole) (int64, error) {
	return s.count(s.db.Model(&UserModel{}).Where("role = ?", string(role)))
}

func (s *GormStore) CountUsersSince(since time.Time) (int64, error) {
	return s.count(s.db.Model(&UserModel{}).Where("created_at >= ?", since))
}

// SaveClassroom stores or updates a classroom. Roster membership is managed
// separately through AddStudent.
func (s *GormStore) SaveClassroom(c domain.Classroom) error {
	model := classroomToModel(c)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "subject", "section", "active_meet", "meet_room_id", "meet_link", "meet_started_by", "updated_at"}),
	}).Create(&model).Error
}

// GetClassroom retrieves a classroom with its roster.
func (s *GormStore) GetClassroom(id string) (domain.Classroom, bool, error) {
	var model ClassroomModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Classroom{}, false, nil
		}
		return domain.Classroom{}, false, err
	}
	return s.hydrateClassroom(model)
}

// GetClassroomByCode retrieves a classroom by its join code.
func (s *GormStore) GetClassroomByCode(code string) (domain.Classroom, bool, error) {
	var model ClassroomModel
	if err := s.db.First(&model, "code = ?", code).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Classroom{}, false, nil
		}
		return domain.Classroom{}, false, err
	}
	return s.hydrateClassroom(model)
}

// ListClassrooms returns all classrooms ordered by created_at.
func (s *GormStore) ListClassrooms() ([]domain.Classroom, error) {
	return s.listClassrooms(s.db.Order("created_at ASC"))
}

// ListClassroomsByTeacher returns classrooms owned by a teacher.
func (s *GormStore) ListClassroomsByTeacher(teacherID string) ([]domain.Classroom, error) {
	return s.listClassrooms(s.db.Where("teacher_id = ?", teacherID).Order("created_at ASC"))
}

// ListClassroomsByStudent returns classrooms the student has joined.
func (s *GormStore) ListClassroomsByStudent(studentID string) ([]domain.Classroom, error) {
	var memberships []ClassroomStudentModel
	if err := s.db.Where("student_id = ?", studentID).Find(&memberships).Error; err != nil {
		return nil, err
	}
	if len(memberships) == 0 {
		return []domain.Classroom{}, nil
	}
	ids := make([]string, 0, len(memberships))
	for _, m := range memberships {
		ids = append(ids, m.ClassroomID)
	}
	return s.listClassrooms(s.db.Where("id IN ?", ids).Order("created_at ASC"))
}

func (s *GormStore) listClassrooms(tx *gorm.DB) ([]domain.Classroom, error) {
	var models []ClassroomModel
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	rosters, err := s.rostersFor(models)
	if err != nil {
		return nil, err
	}
	res := make([]domain.Classroom, 0, len(models))
	for _, m := range models {
		c := classroomFromModel(m)
		c.StudentIDs = rosters[m.ID]
		res = append(res, c)
	}
	return res, nil
}

func (s *GormStore) hydrateClassroom(model ClassroomModel) (domain.Classroom, bool, error) {
	rosters, err := s.rostersFor([]ClassroomModel{model})
	if err != nil {
		return domain.Classroom{}, false, err
	}
	c := classroomFromModel(model)
	c.StudentIDs = rosters[model.ID]
	return c, true, nil
}

func (s *GormStore) rostersFor(models []ClassroomModel) (map[string][]string, error) {
	rosters := make(map[string][]string, len(models))
	if len(models) == 0 {
		return rosters, nil
	}
	ids := make([]string, 0, len(models))
	for _, m := range models {
		ids = append(ids, m.ID)
		rosters[m.ID] = []string{}
	}
	var memberships []ClassroomStudentModel
	if err := s.db.Where("classroom_id IN ?", ids).Order("created_at ASC").Find(&memberships).Error; err != nil {
		return nil, err
	}
	for _, m := range memberships {
		rosters[m.ClassroomID] = append(rosters[m.ClassroomID], m.StudentID)
	}
	return rosters, nil
}

// AddStudent enrolls a student into a classroom. A concurrent duplicate join
// hits the membership table's composite primary key and surfaces as
// ErrDuplicateMembership.
func (s *GormStore) AddStudent(classroomID, studentID string) error {
	membership := ClassroomStudentModel{
		ClassroomID: classroomID,
		StudentID:   studentID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.db.Create(&membership).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateMembership
		}
		return fmt.Errorf("add student: %w", err)
	}
	return nil
}

// isUniqueViolation reports a Postgres unique-constraint violation (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// SetMeetState updates the transient meet fields on a classroom.
func (s *GormStore) SetMeetState(classroomID string, active bool, roomID, meetLink, startedBy string) error {
	return s.db.Model(&ClassroomModel{}).
		Where("id = ?", classroomID).
		Updates(map[string]any{
			"active_meet":     active,
			"meet_room_id":    roomID,
			"meet_link":       meetLink,
			"meet_started_by": startedBy,
			"updated_at":      time.Now().UTC(),
		}).Error
}

func (s *GormStore) CountClassrooms() (int64, error) {
	return s.count(s.db.Model(&ClassroomModel{}))
}

func (s *GormStore) CountActiveMeets() (int64, error) {
	return s.count(s.db.Model(&ClassroomModel{}).Where("active_meet = ?", true))
}

// TopClassrooms returns the largest classrooms by roster size.
func (s *GormStore) TopClassrooms(limit int) ([]domain.TopClassroom, error) {
	if limit <= 0 {
		return []domain.TopClassroom{}, nil
	}
	var rows []struct {
		Name         string
		Subject      string
		Code         string
		Teacher      string
		StudentCount int
	}
	err := s.db.Raw(`
		SELECT c.name, c.subject, c.code,
		       COALESCE(u.name, '') AS teacher,
		       COUNT(cs.student_id) AS student_count
		FROM classroom_models c
		LEFT JOIN classroom_student_models cs ON cs.classroom_id = c.id
		LEFT JOIN user_models u ON u.id = c.teacher_id
		GROUP BY c.id, u.name
		ORDER BY student_count DESC, c.created_at ASC
		LIMIT ?
	`, limit).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	res := make([]domain.TopClassroom, 0, len(rows))
	for _, r := range rows {
		res = append(res, domain.TopClassroom{
			Name:         r.Name,
			Subject:      r.Subject,
			Code:         r.Code,
			StudentCount: r.StudentCount,
			Teacher:      r.Teacher,
		})
	}
	return res, nil
}

// SaveAssignment stores an assignment.
func (s *GormStore) SaveAssignment(a domain.Assignment) error {
	model := assignmentToModel(a)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "description", "file_url", "due_date", "updated_at"}),
	}).Create(&model).Error
}

// GetAssignment retrieves an assignment.
func (s *GormStore) GetAssignment(id string) (domain.Assignment, bool, error) {
	var model AssignmentModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Assignment{}, false, nil
		}
		return domain.Assignment{}, false, err
	}
	return assignmentFromModel(model), true, nil
}

// ListAssignmentsByClassroom returns a classroom's assignments, newest first.
func (s *GormStore) ListAssignmentsByClassroom(classroomID string) ([]domain.Assignment, error) {
	var models []AssignmentModel
	if err := s.db.Where("classroom_id = ?", classroomID).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Assignment, 0, len(models))
	for _, m := range models {
		res = append(res, assignmentFromModel(m))
	}
	return res, nil
}

func (s *GormStore) CountAssignments() (int64, error) {
	return s.count(s.db.Model(&AssignmentModel{}))
}

// SaveSubmission stores or replaces a submission. Resubmission reuses the
// (assignment, student) row.
func (s *GormStore) SaveSubmission(sub domain.Submission) error {
	model := submissionToModel(sub)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"file_url", "score", "feedback", "evaluated", "published", "updated_at"}),
	}).Create(&model).Error
}

// GetSubmission retrieves one submission.
func (s *GormStore) GetSubmission(id string) (domain.Submission, bool, error) {
	var model SubmissionModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Submission{}, false, nil
		}
		return domain.Submission{}, false, err
	}
	return submissionFromModel(model), true, nil
}

// GetSubmissionForStudent returns the (assignment, student) submission.
func (s *GormStore) GetSubmissionForStudent(assignmentID, studentID string) (domain.Submission, bool, error) {
	var model SubmissionModel
	err := s.db.Where("assignment_id = ? AND student_id = ?", assignmentID, studentID).First(&model).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Submission{}, false, nil
		}
		return domain.Submission{}, false, err
	}
	return submissionFromModel(model), true, nil
}

// ListSubmissionsByAssignment returns all submissions for an assignment.
func (s *GormStore) ListSubmissionsByAssignment(assignmentID string) ([]domain.Submission, error) {
	var models []SubmissionModel
	if err := s.db.Where("assignment_id = ?", assignmentID).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Submission, 0, len(models))
	for _, m := range models {
		res = append(res, submissionFromModel(m))
	}
	return res, nil
}

// ListClassroomSubmissions pages through a classroom's submissions.
func (s *GormStore) ListClassroomSubmissions(classroomID string, offset, limit int) ([]domain.Submission, int64, error) {
	base := s.db.Model(&SubmissionModel{}).Where("classroom_id = ?", classroomID)
	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		return []domain.Submission{}, total, nil
	}
	if offset < 0 {
		offset = 0
	}
	var models []SubmissionModel
	if err := s.db.Where("classroom_id = ?", classroomID).
		Order("created_at ASC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, err
	}
	res := make([]domain.Submission, 0, len(models))
	for _, m := range models {
		res = append(res, submissionFromModel(m))
	}
	return res, total, nil
}

// OldestUnevaluated returns the earliest-created unevaluated submission in a
// classroom.
func (s *GormStore) OldestUnevaluated(classroomID string) (domain.Submission, bool, error) {
	var model SubmissionModel
	err := s.db.Where("classroom_id = ? AND evaluated = ?", classroomID, false).
		Order("created_at ASC").
		First(&model).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Submission{}, false, nil
		}
		return domain.Submission{}, false, err
	}
	return submissionFromModel(model), true, nil
}

// SetEvaluation records an evaluation result.
func (s *GormStore) SetEvaluation(submissionID string, eval domain.Evaluation, onlyUnevaluated bool) (bool, error) {
	tx := s.db.Model(&SubmissionModel{}).Where("id = ?", submissionID)
	if onlyUnevaluated {
		tx = tx.Where("evaluated = ?", false)
	}
	res := tx.Updates(map[string]any{
		"score":      eval.Score,
		"feedback":   feedbackToJSON(eval.Feedback),
		"evaluated":  true,
		"updated_at": time.Now().UTC(),
	})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// PublishClassroom flips published on evaluated-but-unpublished submissions.
func (s *GormStore) PublishClassroom(classroomID string) (int64, error) {
	res := s.db.Model(&SubmissionModel{}).
		Where("classroom_id = ? AND evaluated = ? AND published = ?", classroomID, true, false).
		Updates(map[string]any{
			"published":  true,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (s *GormStore) CountSubmissions() (int64, error) {
	return s.count(s.db.Model(&SubmissionModel{}))
}

func (s *GormStore) CountEvaluated() (int64, error) {
	return s.count(s.db.Model(&SubmissionModel{}).Where("evaluated = ?", true))
}

func (s *GormStore) CountPublished() (int64, error) {
	return s.count(s.db.Model(&SubmissionModel{}).Where("published = ?", true))
}

func (s *GormStore) count(tx *gorm.DB) (int64, error) {
	var count int64
	if err := tx.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		Verified:     u.Verified,
		AuthProvider: string(u.AuthProvider),
		GoogleID:     u.GoogleID,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	provider := domain.AuthProvider(m.AuthProvider)
	if provider == "" {
		provider = domain.ProviderLocal
	}
	return domain.User{
		ID:           m.ID,
		Name:         m.Name,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Role:         domain.UserRole(m.Role),
		Verified:     m.Verified,
		AuthProvider: provider,
		GoogleID:     m.GoogleID,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func classroomToModel(c domain.Classroom) ClassroomModel {
	return ClassroomModel{
		ID:            c.ID,
		Name:          c.Name,
		Subject:       c.Subject,
		Section:       c.Section,
		Code:          c.Code,
		TeacherID:     c.TeacherID,
		ActiveMeet:    c.ActiveMeet,
		MeetRoomID:    c.MeetRoomID,
		MeetLink:      c.MeetLink,
		MeetStartedBy: c.MeetStarter,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

func classroomFromModel(m ClassroomModel) domain.Classroom {
	return domain.Classroom{
		ID:          m.ID,
		Name:        m.Name,
		Subject:     m.Subject,
		Section:     m.Section,
		Code:        m.Code,
		TeacherID:   m.TeacherID,
		StudentIDs:  []string{},
		ActiveMeet:  m.ActiveMeet,
		MeetRoomID:  m.MeetRoomID,
		MeetLink:    m.MeetLink,
		MeetStarter: m.MeetStartedBy,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func assignmentToModel(a domain.Assignment) AssignmentModel {
	return AssignmentModel{
		ID:          a.ID,
		Title:       a.Title,
		Description: a.Description,
		FileURL:     a.FileURL,
		ClassroomID: a.ClassroomID,
		TeacherID:   a.TeacherID,
		DueDate:     a.DueDate,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func assignmentFromModel(m AssignmentModel) domain.Assignment {
	return domain.Assignment{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		FileURL:     m.FileURL,
		ClassroomID: m.ClassroomID,
		TeacherID:   m.TeacherID,
		DueDate:     m.DueDate,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func submissionToModel(sub domain.Submission) SubmissionModel {
	return SubmissionModel{
		ID:           sub.ID,
		AssignmentID: sub.AssignmentID,
		StudentID:    sub.StudentID,
		ClassroomID:  sub.ClassroomID,
		FileURL:      sub.FileURL,
		Score:        sub.Score,
		Feedback:     feedbackToJSON(sub.Feedback),
		Evaluated:    sub.Evaluated,
		Published:    sub.Published,
		CreatedAt:    sub.CreatedAt,
		UpdatedAt:    sub.UpdatedAt,
	}
}

func submissionFromModel(m SubmissionModel) domain.Submission {
	return domain.Submission{
		ID:           m.ID,
		AssignmentID: m.AssignmentID,
		StudentID:    m.StudentID,
		ClassroomID:  m.ClassroomID,
		FileURL:      m.FileURL,
		Score:        m.Score,
		Feedback:     feedbackFromJSON(m.Feedback),
		Evaluated:    m.Evaluated,
		Published:    m.Published,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// Feedback is persisted as a JSON array of lines so multi-line feedback
// survives round-trips without encoding surprises.
func feedbackToJSON(feedback string) datatypes.JSON {
	if strings.TrimSpace(feedback) == "" {
		return nil
	}
	raw, _ := json.Marshal(strings.Split(feedback, "\n"))
	return raw
}

func feedbackFromJSON(raw datatypes.JSON) string {
	if len(raw) == 0 {
		return ""
	}
	var lines []string
	if err := json.Unmarshal(raw, &lines); err != nil {
		return string(raw)
	}
	return strings.Join(lines, "\n")
}
