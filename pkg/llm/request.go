package llm

// ChatRequest is the request sent upstream for a single completion attempt.
type ChatRequest struct {
	Model    string    `json:"model"`          // Model name (e.g., "gpt-4o-mini")
	Messages []Message `json:"messages"`       // System message followed by the conversation, oldest first
	Stop     string    `json:"stop,omitempty"` // Stop sequence, empty for none
}
