package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/tkariuki-dev/sokohub-backend/api/responses"
	pkgerrors "github.com/tkariuki-dev/sokohub-backend/pkg/errors"
	"github.com/tkariuki-dev/sokohub-backend/pkg/logger"
)

// RateLimiterStore is the slice of the redis client the limiter needs.
type RateLimiterStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// RateLimitPolicy defines the throttling parameters for a traffic surface.
type RateLimitPolicy struct {
	name   string
	window time.Duration
	limit  int64
}

// NewRateLimitPolicy builds a policy with the supplied window and limit.
func NewRateLimitPolicy(name string, window time.Duration, limit int64) RateLimitPolicy {
	return RateLimitPolicy{
		name:   strings.ToLower(strings.TrimSpace(name)),
		window: window,
		limit:  limit,
	}
}

func (p RateLimitPolicy) enabled() bool {
	return p.window > 0 && p.limit > 0
}

func (p RateLimitPolicy) normalizedName() string {
	if p.name == "" {
		return "http"
	}
	return p.name
}

// RateLimitByIP throttles a surface per caller address. Used in front of the
// unauthenticated webhook endpoint.
func RateLimitByIP(policy RateLimitPolicy, store RateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return rateLimit(policy, store, logg, "ip", func(r *http.Request) string {
		return clientAddr(r)
	})
}

// RateLimitByUser throttles per authenticated user, falling back to the
// caller address when no identity is on the context.
func RateLimitByUser(policy RateLimitPolicy, store RateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return rateLimit(policy, store, logg, "user", func(r *http.Request) string {
		if id := UserIDFromContext(r.Context()); id != "" {
			return id
		}
		return clientAddr(r)
	})
}

func rateLimit(policy RateLimitPolicy, store RateLimiterStore, logg *logger.Logger, scopeKind string, subject func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			who := subject(r)
			if who == "" {
				next.ServeHTTP(w, r)
				return
			}

			scope := policy.normalizedName() + ":" + scopeKind + ":" + who
			allowed, count, err := store.FixedWindowAllow(ctx, scope, policy.limit, policy.window)
			if err != nil {
				responses.WriteError(ctx, nil, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
				return
			}
			if !allowed {
				if logg != nil {
					logCtx := logg.WithFields(ctx, map[string]any{
						"policy":         policy.normalizedName(),
						"scope":          scopeKind,
						"attempts":       count,
						"limit":          policy.limit,
						"window_seconds": int(policy.window.Seconds()),
					})
					logg.Warn(logCtx, "rate_limit.blocked")
				}
				responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientAddr(r *http.Request) string {
	if r == nil {
		return ""
	}
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		for _, part := range strings.Split(header, ",") {
			if ip := strings.TrimSpace(part); ip != "" {
				return ip
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
