package llmclient

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	ErrInvalidJSON = errors.New("invalid json from LLM")

	// ErrOverloaded marks backend overload (429/503 class). The router
	// substitutes the stage's fallback model when it sees this.
	ErrOverloaded = errors.New("llm backend overloaded")
)

// LLMClient is one model backend able to answer a stage call with JSON.
type LLMClient interface {
	Name() string
	GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error)
	Close() error
}

// PermanentError indicates an error that will not resolve with retries.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}
