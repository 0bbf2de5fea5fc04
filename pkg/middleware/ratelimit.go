package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/vincentventalon/docuprocess/pkg/contextkeys"
	"github.com/vincentventalon/docuprocess/pkg/httputil"
	"github.com/vincentventalon/docuprocess/pkg/observability"
	"github.com/vincentventalon/docuprocess/pkg/ratelimit"
)

// Per-minute request limits by entitlement tier.
const (
	FreeTierLimit = 60
	PaidTierLimit = 120
)

// RateLimitOptions tunes the rate limit gate. Zero limits fall back to the
// tier defaults.
type RateLimitOptions struct {
	FreeLimit int
	PaidLimit int
}

// RateLimit enforces the per-team sliding window. It records the request
// against the team's quota, so it must only wrap endpoints that consume
// resources. Must run after RequireTeam.
//
// Limiter errors fail open: a limiter outage must not take down the API.
func RateLimit(limiter ratelimit.Limiter, opts RateLimitOptions, logger *observability.Logger, metrics *observability.Metrics) func(http.Handler) http.Handler {
	if opts.FreeLimit <= 0 {
		opts.FreeLimit = FreeTierLimit
	}
	if opts.PaidLimit <= 0 {
		opts.PaidLimit = PaidTierLimit
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			principal := GetPrincipal(ctx)
			if principal == nil || !principal.Team.HasTeam() {
				httputil.WriteForbidden(w, "No team context. User must be a member of a team.")
				return
			}

			limit := opts.FreeLimit
			tier := "free"
			if principal.Team.IsPaid {
				limit = opts.PaidLimit
				tier = "paid"
			}

			info, err := limiter.Check(ctx, principal.Team.TeamID, limit)
			if err != nil {
				logger.WithError(err).Warnf("rate limiter check failed, allowing request")
			}

			if !info.Allowed {
				if metrics != nil {
					metrics.RateLimitRejectionsTotal.WithLabelValues(tier).Inc()
				}
				httputil.SetRateLimitHeaders(w, info.Limit, 0, info.Reset)
				w.Header().Set("Retry-After", strconv.Itoa(info.RetryAfter(time.Now())))
				httputil.WriteTooManyRequests(w, "Rate limit exceeded. Please retry after the reset time.")
				return
			}

			httputil.SetRateLimitHeaders(w, info.Limit, info.Remaining, info.Reset)
			next.ServeHTTP(w, r.WithContext(contextkeys.WithRateInfo(ctx, &info)))
		})
	}
}

// RateLimitObserve reports the current window state in response headers
// without consuming quota. Read-only endpoints use this so clients always
// see their limits. Must run after RequireTeam.
func RateLimitObserve(limiter ratelimit.Limiter, opts RateLimitOptions, logger *observability.Logger) func(http.Handler) http.Handler {
	if opts.FreeLimit <= 0 {
		opts.FreeLimit = FreeTierLimit
	}
	if opts.PaidLimit <= 0 {
		opts.PaidLimit = PaidTierLimit
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			principal := GetPrincipal(ctx)
			if principal == nil || !principal.Team.HasTeam() {
				httputil.WriteForbidden(w, "No team context. User must be a member of a team.")
				return
			}

			limit := opts.FreeLimit
			if principal.Team.IsPaid {
				limit = opts.PaidLimit
			}

			info, err := limiter.Peek(ctx, principal.Team.TeamID, limit)
			if err != nil {
				logger.WithError(err).Warnf("rate limiter peek failed")
			}

			httputil.SetRateLimitHeaders(w, info.Limit, info.Remaining, info.Reset)
			next.ServeHTTP(w, r.WithContext(contextkeys.WithRateInfo(ctx, &info)))
		})
	}
}

// GetRateInfo returns the rate limit state captured at the gate, or nil.
func GetRateInfo(ctx context.Context) *ratelimit.Info {
	info, _ := ctx.Value(contextkeys.RateInfoKey).(*ratelimit.Info)
	return info
}
