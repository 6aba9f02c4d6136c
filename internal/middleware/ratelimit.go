package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/neboloop/bedrock-openai-gateway/internal/apierror"
	"github.com/neboloop/bedrock-openai-gateway/internal/ratelimit"
)

func rateLimitErr() error {
	return apierror.New(apierror.KindRateLimit, "rate limit exceeded", "")
}

// RateLimit returns a chi middleware that admits each request through
// limiter using the api key injected by Auth (which must run first),
// and sets the three rate-limit headers spec.md §4.2 specifies on every
// completion. Master-key records bypass the limiter.
func RateLimit(limiter *ratelimit.Limiter, defaultCapacity int, window time.Duration, enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}
			rec := APIKeyFromContext(r.Context())
			if rec == nil || rec.RateLimit == 0 {
				// No record (shouldn't happen after Auth) or master-key bypass.
				next.ServeHTTP(w, r)
				return
			}
			capacity := rec.RateLimit
			if capacity <= 0 {
				capacity = defaultCapacity
			}
			decision := limiter.Admit(rec.ApiKey, capacity, window)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Capacity))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetEpoch, 10))
			if !decision.Allowed {
				writeAPIError(w, rateLimitErr())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
