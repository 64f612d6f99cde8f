package store

import (
	"testing"
	"time"

	"classboard/pkg/domain"
)

func seedSubmission(t *testing.T, s *MemoryStore, id, classroomID string, createdAt time.Time) {
	t.Helper()
	err := s.SaveSubmission(domain.Submission{
		ID:           id,
		AssignmentID: "a1",
		ClassroomID:  classroomID,
		StudentID:    "student-" + id,
		FileURL:      "/uploads/" + id + ".pdf",
		CreatedAt:    createdAt,
	})
	if err != nil {
		t.Fatalf("SaveSubmission: %v", err)
	}
}

func TestMemoryStoreOldestUnevaluatedPicksEarliest(t *testing.T) {
	s := NewMemoryStore()
	base := time.Now().UTC()
	seedSubmission(t, s, "s2", "c1", base.Add(time.Minute))
	seedSubmission(t, s, "s1", "c1", base)
	seedSubmission(t, s, "s3", "c2", base.Add(-time.Hour))

	sub, ok, err := s.OldestUnevaluated("c1")
	if err != nil || !ok {
		t.Fatalf("OldestUnevaluated: ok=%v err=%v", ok, err)
	}
	if sub.ID != "s1" {
		t.Fatalf("picked %s, want s1", sub.ID)
	}

	if _, err := s.SetEvaluation("s1", domain.Evaluation{Score: 7, Feedback: "good"}, true); err != nil {
		t.Fatalf("SetEvaluation: %v", err)
	}
	sub, ok, err = s.OldestUnevaluated("c1")
	if err != nil || !ok {
		t.Fatalf("OldestUnevaluated after eval: ok=%v err=%v", ok, err)
	}
	if sub.ID != "s2" {
		t.Fatalf("picked %s, want s2", sub.ID)
	}
}

func TestMemoryStoreSetEvaluationConditional(t *testing.T) {
	s := NewMemoryStore()
	seedSubmission(t, s, "s1", "c1", time.Now().UTC())

	applied, err := s.SetEvaluation("s1", domain.Evaluation{Score: 6, Feedback: "first"}, true)
	if err != nil || !applied {
		t.Fatalf("first SetEvaluation: applied=%v err=%v", applied, err)
	}
	applied, err = s.SetEvaluation("s1", domain.Evaluation{Score: 9, Feedback: "second"}, true)
	if err != nil {
		t.Fatalf("second SetEvaluation: %v", err)
	}
	if applied {
		t.Fatal("conditional write should skip an already evaluated submission")
	}
	sub, _, _ := s.GetSubmission("s1")
	if sub.Score == nil || *sub.Score != 6 || sub.Feedback != "first" {
		t.Fatalf("submission = %+v, first result should stand", sub)
	}

	// Unconditional write (manual grading) still overwrites.
	applied, err = s.SetEvaluation("s1", domain.Evaluation{Score: 9, Feedback: "manual"}, false)
	if err != nil || !applied {
		t.Fatalf("manual SetEvaluation: applied=%v err=%v", applied, err)
	}
}

func TestMemoryStorePublishClassroomIdempotent(t *testing.T) {
	s := NewMemoryStore()
	base := time.Now().UTC()
	seedSubmission(t, s, "s1", "c1", base)
	seedSubmission(t, s, "s2", "c1", base.Add(time.Second))
	seedSubmission(t, s, "s3", "c1", base.Add(2*time.Second))
	s.SetEvaluation("s1", domain.Evaluation{Score: 5}, true)
	s.SetEvaluation("s2", domain.Evaluation{Score: 8}, true)

	changed, err := s.PublishClassroom("c1")
	if err != nil {
		t.Fatalf("PublishClassroom: %v", err)
	}
	if changed != 2 {
		t.Fatalf("changed = %d, want 2", changed)
	}
	changed, err = s.PublishClassroom("c1")
	if err != nil {
		t.Fatalf("PublishClassroom again: %v", err)
	}
	if changed != 0 {
		t.Fatalf("second publish changed = %d, want 0", changed)
	}
	sub, _, _ := s.GetSubmission("s3")
	if sub.Published {
		t.Fatal("unevaluated submission must not be published")
	}
}

func TestMemoryStoreClassroomRoster(t *testing.T) {
	s := NewMemoryStore()
	err := s.SaveClassroom(domain.Classroom{ID: "c1", Name: "Biology", Code: "A1B2C3", TeacherID: "t1", CreatedAt: time.Now().UTC()})
	if err != nil {
		t.Fatalf("SaveClassroom: %v", err)
	}
	if err := s.AddStudent("c1", "u1"); err != nil {
		t.Fatalf("AddStudent: %v", err)
	}
	if err := s.AddStudent("c1", "u1"); err != ErrDuplicateMembership {
		t.Fatalf("duplicate AddStudent err = %v", err)
	}
	got, _ := s.ListClassroomsByStudent("u1")
	if len(got) != 1 || got[0].ID != "c1" {
		t.Fatalf("ListClassroomsByStudent = %+v", got)
	}
	if got, _ := s.ListClassroomsByStudent("u2"); len(got) != 0 {
		t.Fatalf("non-member should see no classrooms, got %+v", got)
	}
}

func TestMemoryStoreRejectsDuplicateJoinCode(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now().UTC()
	if err := s.SaveClassroom(domain.Classroom{ID: "c1", Code: "A1B2C3", CreatedAt: now}); err != nil {
		t.Fatalf("SaveClassroom: %v", err)
	}
	if err := s.SaveClassroom(domain.Classroom{ID: "c2", Code: "A1B2C3", CreatedAt: now}); err == nil {
		t.Fatal("expected duplicate code error")
	}
}

func TestMemoryStoreClassroomSubmissionPaging(t *testing.T) {
	s := NewMemoryStore()
	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		seedSubmission(t, s, string(rune('a'+i)), "c1", base.Add(time.Duration(i)*time.Second))
	}
	page, total, err := s.ListClassroomSubmissions("c1", 2, 2)
	if err != nil {
		t.Fatalf("ListClassroomSubmissions: %v", err)
	}
	if total != 5 {
		t.Fatalf("total = %d, want 5", total)
	}
	if len(page) != 2 || page[0].ID != "c" || page[1].ID != "d" {
		t.Fatalf("page = %+v", page)
	}
	page, _, _ = s.ListClassroomSubmissions("c1", 10, 2)
	if len(page) != 0 {
		t.Fatalf("out-of-range page = %+v", page)
	}
}

func TestFeedbackJSONRoundTrip(t *testing.T) {
	feedback := "Task: Lab 1\nThe write-up looks reasonably complete.\nReminder: show your working."
	raw := feedbackToJSON(feedback)
	if got := feedbackFromJSON(raw); got != feedback {
		t.Fatalf("round trip = %q", got)
	}
	if feedbackToJSON("   ") != nil {
		t.Fatal("blank feedback should encode to nil")
	}
	if got := feedbackFromJSON(nil); got != "" {
		t.Fatalf("nil feedback = %q", got)
	}
}
