package llm

// FinishReasonLength is reported when generation hit the model's token window.
const FinishReasonLength = "length"

// ChatResponse represents the upstream answer for a completion attempt.
type ChatResponse struct {
	Model        string  `json:"model"`                   // Model that generated the response
	Message      Message `json:"message"`                 // The assistant's response
	FinishReason string  `json:"finish_reason,omitempty"` // "stop", "length", ...

	// Token accounting, zero when the provider omits it
	PromptTokens     int64 `json:"prompt_tokens,omitempty"`
	CompletionTokens int64 `json:"completion_tokens,omitempty"`
}
