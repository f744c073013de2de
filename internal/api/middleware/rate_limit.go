package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"

	"golang.org/x/time/rate"

	"github.com/agendopro/webhook/internal/api/response"
)

// RateLimitRecorder records rejected requests. Pass nil when metrics are disabled.
type RateLimitRecorder interface {
	RecordRateLimited(ctx context.Context)
}

// RateLimit applies one token bucket of perSecond requests (burst burst) to POST requests
// through it. The webhook has a single upstream sender, so the bucket is not keyed per client.
// Other methods pass through untouched and never spend a token. perSecond <= 0 disables limiting.
func RateLimit(perSecond float64, burst int, recorder RateLimitRecorder) Middleware {
	if perSecond <= 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)
	retryAfter := strconv.Itoa(int(math.Ceil(1 / perSecond)))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)

				return
			}

			if !limiter.Allow() {
				if recorder != nil {
					recorder.RecordRateLimited(r.Context())
				}

				w.Header().Set("Retry-After", retryAfter)
				response.RespondWebhookError(w, http.StatusTooManyRequests, "Too many requests", "")

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
