// Package llm provides the internal representations of chat completion
// requests and responses that flow between callers, the upstream provider
// and the recorders.
package llm

// ErrorResponse represents an error returned by the gateway.
type ErrorResponse struct {
	Error string `json:"error"`
}
