// Package merkle stores conversations as a content-addressed Merkle DAG:
// every message is a node whose hash covers its content and its parent, so
// identical histories deduplicate and diverging answers branch.
package merkle

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/papercomputeco/parley/pkg/llm"
)

// Bucket is the content stored in a node: one message of a conversation.
type Bucket struct {
	Type         string   `json:"type"` // always "message" for now
	Role         llm.Role `json:"role"`
	Content      string   `json:"content"`
	Model        string   `json:"model,omitempty"`
	FinishReason string   `json:"finish_reason,omitempty"`
	Fallback     bool     `json:"fallback,omitempty"`
}

// MessageBucket returns the bucket for msg as sent to model.
func MessageBucket(msg llm.Message, model string) Bucket {
	return Bucket{
		Type:    "message",
		Role:    msg.Role,
		Content: msg.Content,
		Model:   model,
	}
}

// Node represents a single content-addressed node in a Merkle DAG
type Node struct {
	// Hash is the content-addressed identifier (SHA-256, hex-encoded)
	Hash string `json:"hash"`

	// ParentHash links to the previous node hash.
	// This will be nil for root nodes.
	ParentHash *string `json:"parent_hash"`

	// Content is the hashable content for the node
	Content Bucket `json:"content"`
}

// NewNode creates a new node with the computed hash for the provided content
func NewNode(content Bucket, parent *Node) *Node {
	n := &Node{
		Content: content,
	}

	if parent != nil {
		parentHash := parent.Hash
		n.ParentHash = &parentHash
	}

	n.Hash = n.computeHash()
	return n
}

// Verify reports whether the node's hash matches its content and parent.
// Nodes received from remote peers must be verified before storing.
func (n *Node) Verify() bool {
	return n != nil && n.Hash == n.computeHash()
}

type input struct {
	Content Bucket `json:"content"`
	Parent  string `json:"parent,omitempty"`
}

func (n *Node) computeHash() string {
	i := &input{
		Content: n.Content,
	}

	if n.ParentHash != nil {
		i.Parent = *n.ParentHash
	}

	// Struct field order makes the encoding canonical.
	data, err := json.Marshal(i)
	if err != nil {
		panic("failed to marshal hash input: " + err.Error())
	}

	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
