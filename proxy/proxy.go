// Package proxy provides an HTTP gateway in front of the completion client:
// chat and embedding endpoints plus inspection of the conversation DAG.
package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"net"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/parley/pkg/completion"
	"github.com/papercomputeco/parley/pkg/llm"
	"github.com/papercomputeco/parley/pkg/logger"
	"github.com/papercomputeco/parley/pkg/merkle"
)

// Completer is the completion client the gateway fronts.
type Completer interface {
	SendRequest(ctx context.Context, turns []llm.Message, systemMessage string, opts ...completion.CallOption) completion.Result
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Proxy is the gateway server. It is stateless apart from the storer it
// reads the conversation DAG from.
type Proxy struct {
	config  Config
	client  Completer
	storer  merkle.Storer
	logger  *zap.Logger
	server  *fiber.App
	metrics *metrics
}

// New creates a new Proxy.
func New(config Config, client Completer, storer merkle.Storer, logger *zap.Logger) *Proxy {
	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
	})

	p := &Proxy{
		config:  config,
		client:  client,
		storer:  storer,
		logger:  logger,
		server:  app,
		metrics: newMetrics(),
	}
	p.routes(app)

	return p
}

func (p *Proxy) routes(app *fiber.App) {
	app.Use(requestID())
	app.Use(accessLog(p.logger))

	app.Post("/api/chat", p.handleChat)
	app.Post("/api/embed", p.handleEmbed)

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(map[string]string{"status": "ok"})
	})

	// DAG inspection endpoints
	app.Get("/dag/stats", p.handleDAGStats)
	app.Get("/dag/node/:hash", p.handleGetNode)
	app.Get("/dag/history", p.handleListHistories)
	app.Get("/dag/history/:hash", p.handleGetHistory)
	app.Post("/dag/nodes", p.handlePutNodes)

	app.Get("/metrics", p.metrics.handler())
}

// App exposes the fiber app, mainly for tests.
func (p *Proxy) App() *fiber.App {
	return p.server
}

// Run starts the server on the configured listening address.
func (p *Proxy) Run() error {
	p.logger.Info("starting gateway", zap.String("listen", p.config.ListenAddr))
	return p.server.Listen(p.config.ListenAddr)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (p *Proxy) Shutdown() error {
	return p.server.Shutdown()
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Model  string        `json:"model,omitempty"`
	System string        `json:"system"`
	Turns  []llm.Message `json:"turns"`
	// Stop overrides the default stop sequence when present, "" disables it.
	Stop *string `json:"stop,omitempty"`
}

// ChatResponse is the body returned by POST /api/chat.
type ChatResponse struct {
	Content  string `json:"content"`
	Fallback bool   `json:"fallback"`
	Attempts int    `json:"attempts"`
	Dropped  int    `json:"dropped"`
}

// handleChat forwards a conversation to the completion client. The client
// never fails, so every well-formed request is answered with 200.
func (p *Proxy) handleChat(c *fiber.Ctx) error {
	var req ChatRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		p.logger.Error("failed to parse request", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}
	for i, t := range req.Turns {
		if !t.Role.Valid() {
			return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{
				Error: fmt.Sprintf("turn %d: invalid role %q", i, t.Role),
			})
		}
	}

	p.logger.Debug("received chat request",
		zap.String("model", req.Model),
		zap.Int("turn_count", len(req.Turns)),
		zap.String("request_id", c.Get(headerRequestID)),
	)

	opts := []completion.CallOption{completion.WithModel(req.Model)}
	if req.Stop != nil {
		opts = append(opts, completion.WithStop(*req.Stop))
	}

	result := p.client.SendRequest(c.UserContext(), req.Turns, req.System, opts...)

	p.metrics.chatRequests.Inc()
	p.metrics.turnsDropped.Add(float64(result.Dropped))
	if result.Fallback {
		p.metrics.chatFallbacks.Inc()
	}

	p.logger.Debug("chat answered",
		zap.Bool("fallback", result.Fallback),
		zap.String("content_preview", logger.Truncate(result.Text, 100)),
	)

	return c.JSON(ChatResponse{
		Content:  result.Text,
		Fallback: result.Fallback,
		Attempts: result.Attempts,
		Dropped:  result.Dropped,
	})
}

// EmbedRequest is the body of POST /api/embed.
type EmbedRequest struct {
	Input string `json:"input"`
}

// EmbedResponse is the body returned by POST /api/embed.
type EmbedResponse struct {
	Model      string    `json:"model"`
	Embedding  []float64 `json:"embedding"`
	Dimensions int       `json:"dimensions"`
}

func (p *Proxy) handleEmbed(c *fiber.Ctx) error {
	var req EmbedRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}

	p.metrics.embedRequests.Inc()
	vec, err := p.client.Embed(c.UserContext(), req.Input)
	if err != nil {
		p.metrics.embedErrors.Inc()
		p.logger.Error("embedding failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(llm.ErrorResponse{Error: "upstream request failed"})
	}

	return c.JSON(EmbedResponse{
		Model:      completion.EmbeddingModel,
		Embedding:  vec,
		Dimensions: len(vec),
	})
}

// RunWithListener serves on an existing listener.
func (p *Proxy) RunWithListener(ln net.Listener) error {
	p.logger.Info("starting gateway", zap.String("listen", ln.Addr().String()))
	return p.server.Listener(ln)
}
