package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/pinkflag/backend/internal/auth"
)

// LookupRateLimits holds per-endpoint request budgets. The paid lookup
// endpoints get tighter budgets than reads because each request can move
// money.
type LookupRateLimits struct {
	NamePerMinute    int
	PhonePerMinute   int
	ImagePerMinute   int
	WebhookPerMinute int
}

// DefaultLookupRateLimits returns the production request budgets
func DefaultLookupRateLimits() LookupRateLimits {
	return LookupRateLimits{
		NamePerMinute:    30,
		PhonePerMinute:   15,
		ImagePerMinute:   10,
		WebhookPerMinute: 5,
	}
}

// RateLimitByUser creates a middleware that rate limits authenticated
// requests per user, falling back to client IP when no claims are present.
func RateLimitByUser(requestsPerMinute int) func(next http.Handler) http.Handler {
	return httprate.Limit(
		requestsPerMinute,
		1*time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if claims := auth.GetUserFromContext(r); claims != nil {
				return "user:" + claims.UserID(), nil
			}
			return httprate.KeyByRealIP(r)
		}),
		httprate.WithLimitHandler(rateLimitExceeded),
	)
}

// RateLimitByIP creates a middleware that rate limits requests by client IP
func RateLimitByIP(requestsPerMinute int) func(next http.Handler) http.Handler {
	return httprate.Limit(
		requestsPerMinute,
		1*time.Minute,
		httprate.WithKeyByRealIP(),
		httprate.WithLimitHandler(rateLimitExceeded),
	)
}

func rateLimitExceeded(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	w.Write([]byte(`{"error":"Rate limit exceeded"}`))
}
