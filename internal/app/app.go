// Package app implements the classroom workflows on top of the Store,
// upload storage, evaluator, and live-session hub.
package app

import (
	"io"
	"time"

	"github.com/google/uuid"

	"classboard/internal/evaluator"
	"classboard/internal/googleauth"
	"classboard/internal/meet"
	"classboard/pkg/ai"
	"classboard/pkg/storage"
	"classboard/pkg/store"
)

// Options collects the collaborators an App needs.
type Options struct {
	Store     store.Store
	Blobs     storage.BlobStore
	Evaluator *evaluator.Evaluator
	// Summarizer handles caption/text/audio summarization. Nil means AI
	// summarization is unavailable and local fallbacks apply.
	Summarizer ai.TextGenerator
	// Audio is the inline-audio summarization capability, usually the same
	// Gemini generator as Summarizer.
	Audio    ai.AudioSummarizer
	Hub      *meet.Hub
	Captions *meet.CaptionStore
	Google   *googleauth.Verifier

	FrontendBaseURL string
	ContactEmail    string
}

// App is the application service behind the HTTP layer.
type App struct {
	store      store.Store
	blobs      storage.BlobStore
	eval       *evaluator.Evaluator
	summarizer ai.TextGenerator
	audio      ai.AudioSummarizer
	hub        *meet.Hub
	captions   *meet.CaptionStore
	google     *googleauth.Verifier

	frontendBaseURL string
	contactEmail    string

	now func() time.Time
}

func New(opts Options) *App {
	return &App{
		store:           opts.Store,
		blobs:           opts.Blobs,
		eval:            opts.Evaluator,
		summarizer:      opts.Summarizer,
		audio:           opts.Audio,
		hub:             opts.Hub,
		captions:        opts.Captions,
		google:          opts.Google,
		frontendBaseURL: opts.FrontendBaseURL,
		contactEmail:    opts.ContactEmail,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// Upload is one multipart file handed down from the HTTP layer.
type Upload struct {
	Name        string
	Size        int64
	ContentType string
	Reader      io.Reader
}

func newID() string {
	return uuid.NewString()
}
