package llm

// Exchange is the terminating request of a SendRequest call paired with its
// answer. Fallback answers carry Fallback=true and no upstream metadata.
type Exchange struct {
	Request  *ChatRequest  `json:"request"`
	Response *ChatResponse `json:"response"`
	Fallback bool          `json:"fallback,omitempty"`
}
