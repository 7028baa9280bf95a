// Package completion forwards conversation turns to a hosted chat completion
// endpoint and computes text embeddings.
//
// SendRequest never fails: when the prompt overflows the model's context
// window the oldest turn is dropped and the request is retried, and any other
// failure degrades to FallbackText. Every terminating call is appended to a
// transcript file and, when configured, recorded in a conversation store.
package completion

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/papercomputeco/parley/pkg/llm"
	"github.com/papercomputeco/parley/pkg/logger"
	"github.com/papercomputeco/parley/pkg/transcript"
)

// Recorder persists the terminating exchange of a SendRequest call.
type Recorder interface {
	Record(ctx context.Context, exchange *llm.Exchange) error
}

// Client is a completion client. It is safe for concurrent use.
type Client struct {
	config     Config
	provider   Provider
	transcript *transcript.Writer
	recorder   Recorder
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithProvider replaces the OpenAI provider.
func WithProvider(p Provider) Option {
	return func(c *Client) { c.provider = p }
}

// WithTranscript sets the transcript writer. Defaults to transcript.New("").
func WithTranscript(w *transcript.Writer) Option {
	return func(c *Client) { c.transcript = w }
}

// WithRecorder records every terminating exchange.
func WithRecorder(r Recorder) Option {
	return func(c *Client) { c.recorder = r }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a new Client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.Model == "" {
		return nil, ErrInvalidModel
	}

	c := &Client{
		config: cfg.withDefaults(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.provider == nil {
		c.provider = NewOpenAIProvider(c.config)
	}
	if c.transcript == nil {
		c.transcript = transcript.New("")
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}

	return c, nil
}

// Model returns the default chat model.
func (c *Client) Model() string {
	return c.config.Model
}

// CallOption tunes a single SendRequest call.
type CallOption func(*callOptions)

type callOptions struct {
	model string
	stop  string
}

// WithStop overrides the stop sequence for one call. An empty string sends
// no stop sequence.
func WithStop(stop string) CallOption {
	return func(o *callOptions) { o.stop = stop }
}

// WithModel overrides the chat model for one call.
func WithModel(model string) CallOption {
	return func(o *callOptions) {
		if model != "" {
			o.model = model
		}
	}
}

// Result is the outcome of SendRequest: either the model's answer or the
// fallback text.
type Result struct {
	// Text is the answer, or FallbackText when Fallback is set.
	Text string

	// Fallback is set when no completion could be obtained.
	Fallback bool

	// Err is the failure that caused the fallback, nil otherwise.
	Err error

	// Attempts counts upstream calls made.
	Attempts int

	// Dropped counts the oldest turns removed to fit the context window.
	Dropped int
}

func (r Result) String() string {
	return r.Text
}

// SendRequest sends systemMessage followed by turns to the chat model.
//
// When the provider reports a context overflow and more than one turn
// remains, the oldest turn is dropped and the request is sent again. Any
// other failure, or an overflow with a single turn left, yields FallbackText.
func (c *Client) SendRequest(ctx context.Context, turns []llm.Message, systemMessage string, opts ...CallOption) Result {
	call := callOptions{
		model: c.config.Model,
		stop:  c.config.Stop,
	}
	for _, opt := range opts {
		opt(&call)
	}

	log := c.logger.With(zap.String("request_id", uuid.NewString()))
	startTime := time.Now()

	var (
		result Result
		req    *llm.ChatRequest
		resp   *llm.ChatResponse
	)
	for offset := 0; ; offset++ {
		req = &llm.ChatRequest{
			Model:    call.model,
			Messages: buildMessages(systemMessage, turns[offset:]),
			Stop:     call.stop,
		}
		result.Attempts++

		log.Debug("awaiting completion",
			zap.String("model", req.Model),
			zap.Int("message_count", len(req.Messages)),
			zap.Int("attempt", result.Attempts),
		)

		var err error
		resp, err = c.provider.Complete(ctx, req)
		if err == nil && resp == nil {
			err = ErrEmptyCompletion
		}
		if err == nil && resp.FinishReason == llm.FinishReasonLength {
			err = ErrContextOverflow
		}
		if err == nil {
			result.Text = resp.Message.Content
			break
		}

		if IsContextOverflow(err) && len(turns)-offset > 1 {
			result.Dropped++
			log.Info("context length exceeded, retrying with shorter context",
				zap.Int("dropped_turns", result.Dropped),
			)
			continue
		}

		log.Error("completion failed", zap.Error(err), zap.Int("attempt", result.Attempts))
		resp = nil
		result.Text = FallbackText
		result.Fallback = true
		result.Err = err
		break
	}

	log.Debug("completion finished",
		zap.Bool("fallback", result.Fallback),
		zap.String("content_preview", logger.Truncate(result.Text, 100)),
		zap.Duration("duration", time.Since(startTime)),
	)

	c.finish(ctx, log, req, resp, result)
	return result
}

// finish appends the transcript block and records the exchange. Failures
// here are logged and never reach the caller.
func (c *Client) finish(ctx context.Context, log *zap.Logger, req *llm.ChatRequest, resp *llm.ChatResponse, result Result) {
	if err := c.transcript.Append(req.Messages, result.Text); err != nil {
		log.Error("failed to write transcript", zap.String("path", c.transcript.Path()), zap.Error(err))
	}

	if c.recorder == nil {
		return
	}

	exchange := &llm.Exchange{
		Request:  req,
		Response: resp,
		Fallback: result.Fallback,
	}
	if resp == nil {
		exchange.Response = &llm.ChatResponse{
			Model:   req.Model,
			Message: llm.Assistant(result.Text),
		}
	}

	// The caller's context may already be cancelled; that must not lose the record.
	if err := c.recorder.Record(context.WithoutCancel(ctx), exchange); err != nil {
		log.Error("failed to record exchange", zap.Error(err))
	}
}

// Embed returns the embedding of text computed by EmbeddingModel. Provider
// errors are returned unchanged.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	c.logger.Debug("requesting embedding",
		zap.String("model", EmbeddingModel),
		zap.Int("text_length", len(text)),
	)
	return c.provider.Embed(ctx, EmbeddingModel, text)
}

func buildMessages(systemMessage string, turns []llm.Message) []llm.Message {
	messages := make([]llm.Message, 0, len(turns)+1)
	messages = append(messages, llm.System(systemMessage))
	return append(messages, turns...)
}
