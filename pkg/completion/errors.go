package completion

import (
	"errors"

	"github.com/openai/openai-go/v3"
)

var (
	// ErrContextOverflow marks a request whose input exceeded the model's
	// context window, either via finish reason "length" or a provider error.
	ErrContextOverflow = errors.New("context length exceeded")

	// ErrInvalidModel is returned when no model name is configured.
	ErrInvalidModel = errors.New("model is required")

	// ErrEmptyCompletion is returned when the provider answers with no choices.
	ErrEmptyCompletion = errors.New("empty response from model")

	// ErrEmptyEmbedding is returned when the provider answers with no vectors.
	ErrEmptyEmbedding = errors.New("empty embedding response")
)

const contextLengthExceededCode = "context_length_exceeded"

// IsContextOverflow reports whether err means the prompt was too long.
func IsContextOverflow(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrContextOverflow) {
		return true
	}
	var apiErr *openai.Error
	return errors.As(err, &apiErr) && apiErr.Code == contextLengthExceededCode
}
