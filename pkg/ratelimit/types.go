package ratelimit

import (
	"context"
	"time"
)

// Info describes the state of a rate limit window after a check.
type Info struct {
	// Limit is the max requests allowed per window.
	Limit int
	// Remaining is the number of requests left in the current window.
	Remaining int
	// Reset is the unix timestamp when the window resets.
	Reset int64
	// Allowed reports whether the request was admitted.
	Allowed bool
}

// RetryAfter returns the seconds a caller should wait before retrying,
// never less than one second.
func (i Info) RetryAfter(now time.Time) int {
	retry := i.Reset - now.Unix()
	if retry < 1 {
		retry = 1
	}
	return int(retry)
}

// Limiter admits requests against a sliding per-key window.
type Limiter interface {
	// Check records a request against the key's quota and reports whether
	// it was admitted. A denied request is not recorded.
	Check(ctx context.Context, key string, limit int) (Info, error)
	// Peek reports the current window state without recording a request.
	Peek(ctx context.Context, key string, limit int) (Info, error)
}
