// Package ai generates companion replies by calling external model backends
// through a prioritized fallback chain. Providers are uniform text-in/text-out
// HTTP clients; the orchestrator owns ordering, timeouts, and health tracking.
package ai

import (
	"context"
	"time"
)

// Provider is a single reply-generation backend.
type Provider interface {
	ID() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// CallRecord captures the outcome of one provider attempt. Records are
// ephemeral health-tracking data, not persisted.
type CallRecord struct {
	ProviderID string
	Latency    time.Duration
	Success    bool
	ErrorKind  string
}

// Error kinds recorded on failed provider calls.
const (
	ErrKindTimeout = "timeout"
	ErrKindHTTP    = "http"
	ErrKindDecode  = "decode"
)

// Turn is one prior exchange in a conversation, used to build the prompt.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
