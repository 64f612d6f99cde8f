// Package meet holds the live-session pieces: the transient caption buffer
// and the websocket hub that fans events out to classroom channels.
package meet

import (
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

const (
	// maxCaptionsPerClassroom bounds the transcript buffer; older entries
	// are dropped silently.
	maxCaptionsPerClassroom = 500
	// maxCaptionLength truncates a single caption on append.
	maxCaptionLength = 2000
)

type captionEntry struct {
	Text string
	At   time.Time
}

// CaptionStore accumulates recent captions per classroom in memory. It is an
// injected dependency rather than a package-level singleton so tests get
// isolated instances.
type CaptionStore struct {
	mu  sync.Mutex
	cap int
	all map[string][]captionEntry
}

func NewCaptionStore() *CaptionStore {
	return &CaptionStore{
		cap: maxCaptionsPerClassroom,
		all: make(map[string][]captionEntry),
	}
}

// Append records a caption, truncating oversized text and evicting the oldest
// entry once the classroom buffer is full.
func (s *CaptionStore) Append(classroomID, text string) {
	classroomID = strings.TrimSpace(classroomID)
	text = strings.TrimSpace(text)
	if classroomID == "" || text == "" {
		return
	}
	if len(text) > maxCaptionLength {
		// Back off to a rune boundary so the cut never stores invalid UTF-8.
		cut := maxCaptionLength
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	list := append(s.all[classroomID], captionEntry{Text: text, At: time.Now().UTC()})
	if len(list) > s.cap {
		list = list[len(list)-s.cap:]
	}
	s.all[classroomID] = list
}

// Transcript joins the buffered captions in arrival order.
func (s *CaptionStore) Transcript(classroomID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.all[classroomID]
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, e.Text)
	}
	return strings.Join(lines, "\n")
}

// Len reports the number of buffered captions for a classroom.
func (s *CaptionStore) Len(classroomID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.all[classroomID])
}

// Clear drops the classroom's transcript.
func (s *CaptionStore) Clear(classroomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.all, classroomID)
}
