package completion

import "time"

const (
	// DefaultStop is the stop sequence used when a call does not override it.
	DefaultStop = "***"

	// FallbackText is returned by SendRequest whenever no completion could
	// be obtained.
	FallbackText = "My brain disconnected, try again."

	// EmbeddingModel is the model used for every Embed call.
	EmbeddingModel = "text-embedding-ada-002"

	// EmbeddingDimensions is the length of EmbeddingModel vectors.
	EmbeddingDimensions = 1536
)

// Config is the client configuration. It is copied on construction and never
// mutated afterwards.
type Config struct {
	// Model is the chat completion model name.
	Model string

	// BaseURL overrides the provider endpoint (e.g., "http://localhost:4000/v1/").
	BaseURL string

	// Organization is sent as the OpenAI-Organization header when set.
	Organization string

	// APIKey authenticates against the provider.
	APIKey string

	// Stop is the default stop sequence. Empty means DefaultStop; use
	// WithStop("") on a call to send none.
	Stop string

	// Timeout bounds a single upstream request. Zero leaves the SDK default.
	Timeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Stop == "" {
		c.Stop = DefaultStop
	}
	return c
}
