package ai

import "context"

// TextGenerator generates text from a system prompt and user prompt.
type TextGenerator interface {
	GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// AudioSummarizer generates text from a prompt plus inline audio data.
type AudioSummarizer interface {
	GenerateFromAudio(ctx context.Context, prompt string, audio []byte, mimeType string) (string, error)
}
