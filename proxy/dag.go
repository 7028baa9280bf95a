package proxy

import (
	"context"
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/parley/pkg/llm"
	"github.com/papercomputeco/parley/pkg/merkle"
)

// handleDAGStats returns statistics about the DAG.
func (p *Proxy) handleDAGStats(c *fiber.Ctx) error {
	ctx := c.UserContext()

	nodes, err := p.storer.List(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to list nodes"})
	}

	roots, err := p.storer.Roots(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to get roots"})
	}

	leaves, err := p.storer.Leaves(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to get leaves"})
	}

	return c.JSON(map[string]any{
		"total_nodes": len(nodes),
		"root_count":  len(roots),
		"leaf_count":  len(leaves),
	})
}

// handleGetNode returns a single node by its hash.
func (p *Proxy) handleGetNode(c *fiber.Ctx) error {
	node, err := p.storer.Get(c.UserContext(), c.Params("hash"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{Error: "node not found"})
	}

	return c.JSON(node)
}

// PutNodesResponse reports the outcome of POST /dag/nodes.
type PutNodesResponse struct {
	New       int `json:"new"`
	Duplicate int `json:"duplicate"`
	Errors    int `json:"errors"`
}

// handlePutNodes imports a batch of nodes pushed from another store. Nodes
// whose hash does not match their content are counted as errors.
func (p *Proxy) handlePutNodes(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var nodes []*merkle.Node
	if err := json.Unmarshal(c.Body(), &nodes); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}

	var resp PutNodesResponse
	for _, n := range nodes {
		if !n.Verify() {
			resp.Errors++
			continue
		}

		exists, err := p.storer.Has(ctx, n.Hash)
		if err != nil {
			p.logger.Warn("failed to check node", zap.String("hash", n.Hash), zap.Error(err))
			resp.Errors++
			continue
		}
		if exists {
			resp.Duplicate++
			continue
		}

		if err := p.storer.Put(ctx, n); err != nil {
			p.logger.Warn("failed to store node", zap.String("hash", n.Hash), zap.Error(err))
			resp.Errors++
			continue
		}
		resp.New++
	}

	p.metrics.nodesImported.Add(float64(resp.New))
	p.logger.Info("nodes imported",
		zap.Int("new", resp.New),
		zap.Int("duplicate", resp.Duplicate),
		zap.Int("errors", resp.Errors),
	)
	return c.JSON(resp)
}

// HistoryResponse contains the conversation history for a given node.
type HistoryResponse struct {
	// Messages in chronological order (oldest first, up to and including the requested node)
	Messages []HistoryMessage `json:"messages"`
	// HeadHash is the hash of the node that was requested
	HeadHash string `json:"head_hash"`
	// Depth is the number of messages in the history
	Depth int `json:"depth"`
}

// HistoryMessage represents a message in the conversation history.
type HistoryMessage struct {
	Hash         string   `json:"hash"`
	ParentHash   *string  `json:"parent_hash,omitempty"`
	Role         llm.Role `json:"role"`
	Content      string   `json:"content"`
	Model        string   `json:"model,omitempty"`
	FinishReason string   `json:"finish_reason,omitempty"`
	Fallback     bool     `json:"fallback,omitempty"`
}

// handleListHistories returns all conversation histories (one per leaf node).
func (p *Proxy) handleListHistories(c *fiber.Ctx) error {
	ctx := c.UserContext()

	leaves, err := p.storer.Leaves(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to get leaves"})
	}

	histories := make([]HistoryResponse, 0, len(leaves))
	for _, leaf := range leaves {
		history, err := p.buildHistory(ctx, leaf.Hash)
		if err != nil {
			p.logger.Warn("failed to build history for leaf", zap.String("hash", leaf.Hash), zap.Error(err))
			continue
		}
		histories = append(histories, *history)
	}

	return c.JSON(map[string]any{
		"count":     len(histories),
		"histories": histories,
	})
}

// handleGetHistory returns the conversation leading up to a given node, oldest first.
func (p *Proxy) handleGetHistory(c *fiber.Ctx) error {
	history, err := p.buildHistory(c.UserContext(), c.Params("hash"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{Error: "node not found"})
	}

	return c.JSON(history)
}

func (p *Proxy) buildHistory(ctx context.Context, hash string) (*HistoryResponse, error) {
	path, err := p.storer.Descendants(ctx, hash)
	if err != nil {
		return nil, err
	}

	messages := make([]HistoryMessage, len(path))
	for i, node := range path {
		messages[i] = HistoryMessage{
			Hash:         node.Hash,
			ParentHash:   node.ParentHash,
			Role:         node.Content.Role,
			Content:      node.Content.Content,
			Model:        node.Content.Model,
			FinishReason: node.Content.FinishReason,
			Fallback:     node.Content.Fallback,
		}
	}

	return &HistoryResponse{
		Messages: messages,
		HeadHash: hash,
		Depth:    len(messages),
	}, nil
}
