// Package mcpserver exposes the completion client as Model Context Protocol
// tools, so other agents can ask parley's model and search its knowledge.
package mcpserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/papercomputeco/parley/pkg/completion"
	"github.com/papercomputeco/parley/pkg/llm"
	"github.com/papercomputeco/parley/pkg/vectorstore"
)

// Version is reported to MCP clients.
const Version = "v0.1.0"

// Completer is the completion client behind the tools.
type Completer interface {
	SendRequest(ctx context.Context, turns []llm.Message, systemMessage string, opts ...completion.CallOption) completion.Result
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Searcher finds stored texts near a vector.
type Searcher interface {
	Search(ctx context.Context, vec []float64, k int) ([]vectorstore.Match, error)
}

// Server is an MCP server with the tools ask, embed and, when a Searcher
// is given, search.
type Server struct {
	client   Completer
	searcher Searcher
	logger   *zap.Logger
	server   *mcp.Server
}

// New builds the server. searcher may be nil.
func New(client Completer, searcher Searcher, logger *zap.Logger) *Server {
	s := &Server{
		client:   client,
		searcher: searcher,
		logger:   logger,
		server:   mcp.NewServer(&mcp.Implementation{Name: "parley", Version: Version}, nil),
	}

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Send a prompt, optionally with earlier conversation turns, to the chat model and return its answer.",
	}, s.ask)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "embed",
		Description: "Embed a text with " + completion.EmbeddingModel + ".",
	}, s.embed)
	if searcher != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "search",
			Description: "Find the stored texts closest to a query.",
		}, s.search)
	}

	return s
}

// Run serves on t until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context, t mcp.Transport) error {
	s.logger.Info("starting MCP server")
	return s.server.Run(ctx, t)
}

// Connect starts a session on t without blocking.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.server.Connect(ctx, t, nil)
}

// AskInput is the input of the ask tool.
type AskInput struct {
	Prompt  string        `json:"prompt" jsonschema:"the user message to answer"`
	System  string        `json:"system,omitempty" jsonschema:"system message sent before the conversation"`
	History []llm.Message `json:"history,omitempty" jsonschema:"earlier turns, oldest first"`
	Model   string        `json:"model,omitempty" jsonschema:"model override"`
}

// AskOutput is the result of the ask tool.
type AskOutput struct {
	Content  string `json:"content"`
	Fallback bool   `json:"fallback"`
	Attempts int    `json:"attempts"`
	Dropped  int    `json:"dropped"`
}

func (s *Server) ask(ctx context.Context, _ *mcp.CallToolRequest, in AskInput) (*mcp.CallToolResult, AskOutput, error) {
	if in.Prompt == "" {
		return nil, AskOutput{}, errors.New("prompt is required")
	}
	for i, t := range in.History {
		if !t.Role.Valid() {
			return nil, AskOutput{}, fmt.Errorf("history %d: invalid role %q", i, t.Role)
		}
	}

	turns := append(append([]llm.Message(nil), in.History...), llm.User(in.Prompt))
	result := s.client.SendRequest(ctx, turns, in.System, completion.WithModel(in.Model))

	s.logger.Debug("ask tool answered",
		zap.Int("turn_count", len(turns)),
		zap.Bool("fallback", result.Fallback),
	)

	return nil, AskOutput{
		Content:  result.Text,
		Fallback: result.Fallback,
		Attempts: result.Attempts,
		Dropped:  result.Dropped,
	}, nil
}

// EmbedInput is the input of the embed tool.
type EmbedInput struct {
	Text string `json:"text" jsonschema:"the text to embed"`
}

// EmbedOutput is the result of the embed tool.
type EmbedOutput struct {
	Model      string    `json:"model"`
	Dimensions int       `json:"dimensions"`
	Embedding  []float64 `json:"embedding"`
}

func (s *Server) embed(ctx context.Context, _ *mcp.CallToolRequest, in EmbedInput) (*mcp.CallToolResult, EmbedOutput, error) {
	vec, err := s.client.Embed(ctx, in.Text)
	if err != nil {
		s.logger.Error("embed tool failed", zap.Error(err))
		return nil, EmbedOutput{}, fmt.Errorf("embedding failed: %w", err)
	}
	return nil, EmbedOutput{
		Model:      completion.EmbeddingModel,
		Dimensions: len(vec),
		Embedding:  vec,
	}, nil
}

// SearchInput is the input of the search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"text to look for"`
	K     int    `json:"k,omitempty" jsonschema:"number of results between 1 and 4096, 5 when unset"`
}

// SearchOutput is the result of the search tool.
type SearchOutput struct {
	Matches []vectorstore.Match `json:"matches"`
}

func (s *Server) search(ctx context.Context, _ *mcp.CallToolRequest, in SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	k := in.K
	if k == 0 {
		k = 5
	}
	if k < 0 || k > vectorstore.MaxK {
		return nil, SearchOutput{}, fmt.Errorf("k must be between 1 and %d, got %d", vectorstore.MaxK, k)
	}

	vec, err := s.client.Embed(ctx, in.Query)
	if err != nil {
		return nil, SearchOutput{}, fmt.Errorf("embedding failed: %w", err)
	}
	matches, err := s.searcher.Search(ctx, vec, k)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	return nil, SearchOutput{Matches: matches}, nil
}
