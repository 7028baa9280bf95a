// Package openaitest runs a minimal OpenAI-compatible server for command
// and gateway tests.
package openaitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// Server answers /v1/chat/completions and /v1/embeddings.
type Server struct {
	*httptest.Server

	mu      sync.Mutex
	answer  string
	failing bool
	dims    int
	chats   []map[string]any
	embeds  []string
}

// NewServer starts a server that answers every chat with answer and every
// embedding request with a dims-long vector derived from the input.
func NewServer(answer string, dims int) *Server {
	s := &Server{answer: answer, dims: dims}
	s.Server = httptest.NewServer(s)
	return s
}

// BaseURL is the value to configure as base_url.
func (s *Server) BaseURL() string {
	return s.URL + "/v1/"
}

// Fail makes every following request return 500.
func (s *Server) Fail() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = true
}

// Chats returns the decoded chat request bodies received so far.
func (s *Server) Chats() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.chats...)
}

// Embeds returns the embedding inputs received so far.
func (s *Server) Embeds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.embeds...)
}

// Vector is the embedding the server returns for input.
func (s *Server) Vector(input string) []float64 {
	vec := make([]float64, s.dims)
	for i, r := range strings.ToLower(input) {
		vec[(int(r)+i)%s.dims] += 1
	}
	return vec
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	failing := s.failing
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if failing {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"upstream exploded","type":"server_error","code":null,"param":null}}`))
		return
	}

	switch r.URL.Path {
	case "/v1/chat/completions":
		s.mu.Lock()
		s.chats = append(s.chats, body)
		s.mu.Unlock()

		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"created": 1700000000,
			"model":   body["model"],
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"logprobs":      nil,
				"message": map[string]any{
					"role":    "assistant",
					"content": s.answer,
					"refusal": nil,
				},
			}},
			"usage": map[string]any{
				"prompt_tokens":     10,
				"completion_tokens": 2,
				"total_tokens":      12,
			},
		})
	case "/v1/embeddings":
		input, _ := body["input"].(string)
		s.mu.Lock()
		s.embeds = append(s.embeds, input)
		s.mu.Unlock()

		json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  body["model"],
			"data": []map[string]any{{
				"object":    "embedding",
				"index":     0,
				"embedding": s.Vector(input),
			}},
			"usage": map[string]any{
				"prompt_tokens": 3,
				"total_tokens":  3,
			},
		})
	default:
		http.NotFound(w, r)
	}
}
