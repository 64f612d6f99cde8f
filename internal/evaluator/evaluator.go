// Package evaluator grades student submissions, preferring the configured AI
// model and degrading to a deterministic local heuristic on any failure.
package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"

	"classboard/pkg/ai"
	"classboard/pkg/domain"
)

// referenceLength is the answer length that maps to a full heuristic score.
const referenceLength = 800

const fallbackFeedbackPlaceholder = "No feedback generated."

const systemPrompt = "You are a helpful teaching assistant that compares model answers with student answers and provides constructive, structured feedback."

// Input describes one submission to grade.
type Input struct {
	AssignmentTitle  string
	AssignmentPrompt string
	AnswerText       string
}

// Evaluator scores submissions. A nil generator means heuristic-only grading.
type Evaluator struct {
	gen ai.TextGenerator
}

func New(gen ai.TextGenerator) *Evaluator {
	return &Evaluator{gen: gen}
}

// Evaluate never fails: AI errors are logged and downgraded to the heuristic.
func (e *Evaluator) Evaluate(ctx context.Context, in Input) domain.Evaluation {
	if e.gen == nil {
		return Fallback(in)
	}
	result, err := e.evaluateAI(ctx, in)
	if err != nil {
		slog.Warn("ai evaluation failed, using heuristic", "assignment", in.AssignmentTitle, "err", err)
		return Fallback(in)
	}
	return result
}

func (e *Evaluator) evaluateAI(ctx context.Context, in Input) (domain.Evaluation, error) {
	prompt := fmt.Sprintf(`You are a strict but fair teacher.

Evaluate the STUDENT SOLUTION against the ASSIGNMENT PROMPT.

Scoring Rules:
- Accuracy (0-5)
- Completeness (0-3)
- Clarity (0-2)

Return ONLY valid JSON:
{
  "score": <number 0-10>,
  "feedback": "<detailed constructive feedback>"
}

ASSIGNMENT TITLE:
%s

ASSIGNMENT PROMPT:
%s

STUDENT SOLUTION:
%s
`, in.AssignmentTitle, in.AssignmentPrompt, in.AnswerText)

	raw, err := e.gen.GenerateText(ctx, systemPrompt, prompt)
	if err != nil {
		return domain.Evaluation{}, err
	}
	parsed, err := parseResponse(raw)
	if err != nil {
		return domain.Evaluation{}, fmt.Errorf("parse model output: %w", err)
	}
	return parsed, nil
}

var (
	fencePattern        = regexp.MustCompile("```json|```")
	objectPattern       = regexp.MustCompile(`(?s)\{.*\}`)
	trailingCommaFixups = regexp.MustCompile(`,\s*([}\]])`)
)

// parseResponse extracts the first JSON-object-shaped substring and parses it
// tolerantly: code fences are stripped and trailing commas forgiven.
func parseResponse(raw string) (domain.Evaluation, error) {
	clean := strings.TrimSpace(fencePattern.ReplaceAllString(raw, ""))
	if m := objectPattern.FindString(clean); m != "" {
		clean = m
	}

	var payload struct {
		Score    json.RawMessage `json:"score"`
		Feedback string          `json:"feedback"`
	}
	err := json.Unmarshal([]byte(clean), &payload)
	if err != nil {
		relaxed := trailingCommaFixups.ReplaceAllString(clean, "$1")
		if err = json.Unmarshal([]byte(relaxed), &payload); err != nil {
			return domain.Evaluation{}, err
		}
	}

	// Missing or non-numeric score defaults to zero rather than failing.
	score := 0.0
	var v float64
	if len(payload.Score) > 0 && json.Unmarshal(payload.Score, &v) == nil {
		score = clamp(v, 0, 10)
	}
	feedback := payload.Feedback
	if strings.TrimSpace(feedback) == "" {
		feedback = fallbackFeedbackPlaceholder
	}
	return domain.Evaluation{Score: score, Feedback: feedback}, nil
}

// Fallback computes a pure length-based score: len/800 scaled to [0,10],
// rounded to the nearest integer and clamped.
func Fallback(in Input) domain.Evaluation {
	length := len(strings.TrimSpace(in.AnswerText))
	score := clamp(math.Round(float64(length)/referenceLength*10), 0, 10)

	lines := []string{
		fmt.Sprintf("Task: %s", titleOrDefault(in.AssignmentTitle)),
	}
	if score >= 7 {
		lines = append(lines, "Good attempt. Your submission is reasonably complete.")
	} else {
		lines = append(lines, "Your submission looks incomplete. Add more explanation and show steps.")
	}
	if strings.TrimSpace(in.AssignmentPrompt) != "" {
		lines = append(lines, "Make sure you answer the specific points asked in the prompt.")
	} else {
		lines = append(lines, "Make sure you answer the assignment requirements clearly.")
	}

	return domain.Evaluation{Score: score, Feedback: strings.Join(lines, "\n")}
}

func titleOrDefault(title string) string {
	if strings.TrimSpace(title) == "" {
		return "Assignment"
	}
	return title
}

func clamp(v, min, max float64) float64 {
	return math.Max(min, math.Min(max, v))
}
