package store

import (
	"errors"
	"sort"
	"sync"
	"time"

	"classboard/pkg/domain"
)

// ErrDuplicateMembership is returned when a student is enrolled twice.
var ErrDuplicateMembership = errors.New("student already enrolled")

var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory Store used by tests and local development.
type MemoryStore struct {
	mu          sync.RWMutex
	users       map[string]domain.User
	classrooms  map[string]domain.Classroom
	assignments map[string]domain.Assignment
	submissions map[string]domain.Submission
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[string]domain.User),
		classrooms:  make(map[string]domain.Classroom),
		assignments: make(map[string]domain.Assignment),
		submissions: make(map[string]domain.Submission),
	}
}

func (s *MemoryStore) SaveUser(u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	return nil
}

func (s *MemoryStore) HasUserEmail(email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, true, nil
		}
	}
	return domain.User{}, false, nil
}

func (s *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	return u, ok, nil
}

func (s *MemoryStore) CountUsers() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.users)), nil
}

func (s *MemoryStore) CountUsersByRole(role domain.UserRole) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int64
	for _, u := range s.users {
		if u.Role == role {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) CountUsersSince(since time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int64
	for _, u := range s.users {
		if !u.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) SaveClassroom(c domain.Classroom) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.classrooms {
		if id != c.ID && existing.Code == c.Code {
			return errors.New("duplicate join code")
		}
	}
	if prev, ok := s.classrooms[c.ID]; ok {
		c.StudentIDs = prev.StudentIDs
	} else if c.StudentIDs == nil {
		c.StudentIDs = []string{}
	}
	s.classrooms[c.ID] = c
	return nil
}

func (s *MemoryStore) GetClassroom(id string) (domain.Classroom, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.classrooms[id]
	return c, ok, nil
}

func (s *MemoryStore) GetClassroomByCode(code string) (domain.Classroom, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.classrooms {
		if c.Code == code {
			return c, true, nil
		}
	}
	return domain.Classroom{}, false, nil
}

func (s *MemoryStore) ListClassrooms() ([]domain.Classroom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedClassrooms(func(domain.Classroom) bool { return true }), nil
}

func (s *MemoryStore) ListClassroomsByTeacher(teacherID string) ([]domain.Classroom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedClassrooms(func(c domain.Classroom) bool { return c.TeacherID == teacherID }), nil
}

func (s *MemoryStore) ListClassroomsByStudent(studentID string) ([]domain.Classroom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedClassrooms(func(c domain.Classroom) bool {
		for _, id := range c.StudentIDs {
			if id == studentID {
				return true
			}
		}
		return false
	}), nil
}

func (s *MemoryStore) sortedClassrooms(keep func(domain.Classroom) bool) []domain.Classroom {
	res := make([]domain.Classroom, 0, len(s.classrooms))
	for _, c := range s.classrooms {
		if keep(c) {
			res = append(res, c)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res
}

func (s *MemoryStore) AddStudent(classroomID, studentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.classrooms[classroomID]
	if !ok {
		return errors.New("classroom not found")
	}
	for _, id := range c.StudentIDs {
		if id == studentID {
			return ErrDuplicateMembership
		}
	}
	c.StudentIDs = append(c.StudentIDs, studentID)
	s.classrooms[classroomID] = c
	return nil
}

func (s *MemoryStore) SetMeetState(classroomID string, active bool, roomID, meetLink, startedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.classrooms[classroomID]
	if !ok {
		return errors.New("classroom not found")
	}
	c.ActiveMeet = active
	c.MeetRoomID = roomID
	c.MeetLink = meetLink
	c.MeetStarter = startedBy
	c.UpdatedAt = time.Now().UTC()
	s.classrooms[classroomID] = c
	return nil
}

func (s *MemoryStore) CountClassrooms() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.classrooms)), nil
}

func (s *MemoryStore) CountActiveMeets() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int64
	for _, c := range s.classrooms {
		if c.ActiveMeet {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) TopClassrooms(limit int) ([]domain.TopClassroom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		return []domain.TopClassroom{}, nil
	}
	all := s.sortedClassrooms(func(domain.Classroom) bool { return true })
	sort.SliceStable(all, func(i, j int) bool {
		return len(all[i].StudentIDs) > len(all[j].StudentIDs)
	})
	if len(all) > limit {
		all = all[:limit]
	}
	res := make([]domain.TopClassroom, 0, len(all))
	for _, c := range all {
		teacher := ""
		if t, ok := s.users[c.TeacherID]; ok {
			teacher = t.Name
		}
		res = append(res, domain.TopClassroom{
			Name:         c.Name,
			Subject:      c.Subject,
			Code:         c.Code,
			StudentCount: len(c.StudentIDs),
			Teacher:      teacher,
		})
	}
	return res, nil
}

func (s *MemoryStore) SaveAssignment(a domain.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignments[a.ID] = a
	return nil
}

func (s *MemoryStore) GetAssignment(id string) (domain.Assignment, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assignments[id]
	return a, ok, nil
}

func (s *MemoryStore) ListAssignmentsByClassroom(classroomID string) ([]domain.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]domain.Assignment, 0)
	for _, a := range s.assignments {
		if a.ClassroomID == classroomID {
			res = append(res, a)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

func (s *MemoryStore) CountAssignments() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.assignments)), nil
}

func (s *MemoryStore) SaveSubmission(sub domain.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submissions[sub.ID] = sub
	return nil
}

func (s *MemoryStore) GetSubmission(id string) (domain.Submission, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.submissions[id]
	return sub, ok, nil
}

func (s *MemoryStore) GetSubmissionForStudent(assignmentID, studentID string) (domain.Submission, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sub := range s.submissions {
		if sub.AssignmentID == assignmentID && sub.StudentID == studentID {
			return sub, true, nil
		}
	}
	return domain.Submission{}, false, nil
}

func (s *MemoryStore) ListSubmissionsByAssignment(assignmentID string) ([]domain.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedSubmissions(func(sub domain.Submission) bool {
		return sub.AssignmentID == assignmentID
	}), nil
}

func (s *MemoryStore) ListClassroomSubmissions(classroomID string, offset, limit int) ([]domain.Submission, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.sortedSubmissions(func(sub domain.Submission) bool {
		return sub.ClassroomID == classroomID
	})
	total := int64(len(all))
	if limit <= 0 {
		return []domain.Submission{}, total, nil
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return []domain.Submission{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (s *MemoryStore) sortedSubmissions(keep func(domain.Submission) bool) []domain.Submission {
	res := make([]domain.Submission, 0)
	for _, sub := range s.submissions {
		if keep(sub) {
			res = append(res, sub)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res
}

func (s *MemoryStore) OldestUnevaluated(classroomID string) (domain.Submission, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pending := s.sortedSubmissions(func(sub domain.Submission) bool {
		return sub.ClassroomID == classroomID && !sub.Evaluated
	})
	if len(pending) == 0 {
		return domain.Submission{}, false, nil
	}
	return pending[0], true, nil
}

func (s *MemoryStore) SetEvaluation(submissionID string, eval domain.Evaluation, onlyUnevaluated bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.submissions[submissionID]
	if !ok {
		return false, nil
	}
	if onlyUnevaluated && sub.Evaluated {
		return false, nil
	}
	score := eval.Score
	sub.Score = &score
	sub.Feedback = eval.Feedback
	sub.Evaluated = true
	sub.UpdatedAt = time.Now().UTC()
	s.submissions[submissionID] = sub
	return true, nil
}

func (s *MemoryStore) PublishClassroom(classroomID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var changed int64
	for id, sub := range s.submissions {
		if sub.ClassroomID == classroomID && sub.Evaluated && !sub.Published {
			sub.Published = true
			sub.UpdatedAt = time.Now().UTC()
			s.submissions[id] = sub
			changed++
		}
	}
	return changed, nil
}

func (s *MemoryStore) CountSubmissions() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.submissions)), nil
}

func (s *MemoryStore) CountEvaluated() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int64
	for _, sub := range s.submissions {
		if sub.Evaluated {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) CountPublished() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int64
	for _, sub := range s.submissions {
		if sub.Published {
			count++
		}
	}
	return count, nil
}
