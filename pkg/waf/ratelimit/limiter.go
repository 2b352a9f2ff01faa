package ratelimit

import (
	"context"
	"time"
)

// Decision is the limiter verdict for one request.
type Decision struct {
	Allowed    bool          `json:"allowed"`
	Limit      int           `json:"limit"`
	Remaining  int           `json:"remaining"`
	Reset      time.Time     `json:"reset"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
}

// Limiter applies a sliding-window rate limit per key.
type Limiter interface {
	Check(ctx context.Context, key string) (Decision, error)
}

// PolicyLimiter additionally accepts per-call limits so tenant policy
// overrides can narrow or widen the window for their keys. Non-positive
// values fall back to the limiter defaults.
type PolicyLimiter interface {
	Limiter
	CheckWithLimit(ctx context.Context, key string, maxRequests int, window time.Duration) (Decision, error)
}
