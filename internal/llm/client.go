// Package llm talks to the text-generation collaborator that turns analytics
// questions into executable fragments.
package llm

import (
	"context"
	"fmt"

	"shiplens/internal/usage"
)

// Response carries the raw generated text plus token accounting.
type Response struct {
	Text  string
	Usage usage.TokenCounts
}

// Generator produces text from a prompt. Implementations must be safe for
// concurrent use.
type Generator interface {
	Generate(ctx context.Context, prompt string) (*Response, error)
	Provider() string
	Model() string
}

// GenerationError means the collaborator failed outright or produced nothing
// usable. It is fatal for the current request; Feedback is safe to show.
type GenerationError struct {
	Feedback string
	Err      error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generation failed: %v", e.Err)
	}
	return fmt.Sprintf("generation failed: %s", e.Feedback)
}

func (e *GenerationError) Unwrap() error { return e.Err }
