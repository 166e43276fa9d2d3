package api

import (
	"context"
	"time"
)

// StoreQueryTimeout bounds the mongo reads and state transitions issued from
// the HTTP handlers. Alert actions must fail fast so responders can retry;
// AI provider calls carry their own longer timeout in the orchestrator.
const StoreQueryTimeout = 10 * time.Second

// WithQueryTimeout creates a context bounded by the store query timeout
func WithQueryTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, StoreQueryTimeout)
}
