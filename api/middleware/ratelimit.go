package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/campusdesk/campusdesk-backend/api/responses"
	pkgerrors "github.com/campusdesk/campusdesk-backend/pkg/errors"
	"github.com/campusdesk/campusdesk-backend/pkg/logger"
)

type rateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// RateLimitPolicy names one fixed-window budget for an anonymous endpoint.
type RateLimitPolicy struct {
	Name   string
	Window time.Duration
	Limit  int64
}

// AuthRateLimit throttles an anonymous endpoint per client IP. A broken
// limiter fails open; the endpoint stays up through a cache outage.
func AuthRateLimit(policy RateLimitPolicy, limiter rateLimiter, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil || policy.Limit <= 0 || policy.Window <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			scope := fmt.Sprintf("%s:%s", policy.Name, clientIP(r))
			allowed, count, err := limiter.FixedWindowAllow(r.Context(), scope, policy.Limit, policy.Window)
			if err != nil {
				if logg != nil {
					logg.Warn(logg.WithField(r.Context(), "policy", policy.Name), "rate limiter unavailable")
				}
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				ctx := r.Context()
				if logg != nil {
					ctx = logg.WithFields(ctx, map[string]any{
						"policy": policy.Name,
						"count":  count,
					})
					logg.Warn(ctx, "rate limit exceeded")
				}
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts, try again later"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
