package merkle

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/papercomputeco/parley/pkg/llm"
	"github.com/papercomputeco/parley/pkg/logger"
)

// Recorder stores completion exchanges in a Storer.
type Recorder struct {
	storer Storer
	logger *zap.Logger
}

// NewRecorder returns a Recorder writing to storer.
func NewRecorder(storer Storer, log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{storer: storer, logger: log}
}

// Record implements completion.Recorder.
func (r *Recorder) Record(ctx context.Context, exchange *llm.Exchange) error {
	head, err := r.Store(ctx, exchange)
	if err != nil {
		return err
	}
	r.logger.Debug("conversation stored", zap.String("head_hash", logger.Truncate(head, 16)))
	return nil
}

// Store writes one node per request message, chained oldest first, and the
// answer as the head node. It returns the head hash. Identical histories
// resolve to the nodes already stored; a different answer branches from the
// shared prefix.
func (r *Recorder) Store(ctx context.Context, exchange *llm.Exchange) (string, error) {
	if exchange == nil || exchange.Request == nil || exchange.Response == nil {
		return "", errors.New("incomplete exchange")
	}

	var parent *Node
	for _, msg := range exchange.Request.Messages {
		node := NewNode(MessageBucket(msg, exchange.Request.Model), parent)
		if err := r.storer.Put(ctx, node); err != nil {
			return "", fmt.Errorf("storing message node: %w", err)
		}

		r.logger.Debug("stored message in DAG",
			zap.String("hash", logger.Truncate(node.Hash, 16)),
			zap.String("role", string(msg.Role)),
			zap.String("content_preview", logger.Truncate(msg.Content, 50)),
		)
		parent = node
	}

	resp := exchange.Response
	model := resp.Model
	if model == "" {
		model = exchange.Request.Model
	}
	head := NewNode(Bucket{
		Type:         "message",
		Role:         llm.RoleAssistant,
		Content:      resp.Message.Content,
		Model:        model,
		FinishReason: resp.FinishReason,
		Fallback:     exchange.Fallback,
	}, parent)
	if err := r.storer.Put(ctx, head); err != nil {
		return "", fmt.Errorf("storing response node: %w", err)
	}

	return head.Hash, nil
}
