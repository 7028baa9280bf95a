package completion_test

import (
	"context"
	"sync"

	"github.com/papercomputeco/parley/pkg/llm"
)

// fakeProvider is a scripted completion.Provider.
type fakeProvider struct {
	mu       sync.Mutex
	requests []*llm.ChatRequest

	complete func(req *llm.ChatRequest) (*llm.ChatResponse, error)
	embed    func(model, text string) ([]float64, error)
}

func (f *fakeProvider) Complete(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.complete(req)
}

func (f *fakeProvider) Embed(_ context.Context, model, text string) ([]float64, error) {
	return f.embed(model, text)
}

func (f *fakeProvider) Requests() []*llm.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*llm.ChatRequest(nil), f.requests...)
}

func answer(content string) *llm.ChatResponse {
	return &llm.ChatResponse{
		Model:        "test-model",
		Message:      llm.Assistant(content),
		FinishReason: "stop",
	}
}

func overflow() *llm.ChatResponse {
	return &llm.ChatResponse{
		Model:        "test-model",
		Message:      llm.Assistant("truncated"),
		FinishReason: llm.FinishReasonLength,
	}
}

// recorderFunc adapts a function to completion.Recorder.
type recorderFunc func(ctx context.Context, exchange *llm.Exchange) error

func (f recorderFunc) Record(ctx context.Context, exchange *llm.Exchange) error {
	return f(ctx, exchange)
}
