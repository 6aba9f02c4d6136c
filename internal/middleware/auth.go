// Package middleware holds the chi middleware chain mounted in front of
// the /v1/* routes, adapted from the teacher's JWTMiddleware
// (internal/middleware/chi_jwt.go) to spec.md §4.1's opaque API-key
// authentication instead of JWT verification.
package middleware

import (
	"context"
	"net/http"

	"github.com/neboloop/bedrock-openai-gateway/internal/apierror"
	"github.com/neboloop/bedrock-openai-gateway/internal/auth"
	"github.com/neboloop/bedrock-openai-gateway/internal/httputil"
	"github.com/neboloop/bedrock-openai-gateway/internal/model"
)

type contextKey string

const apiKeyRecordKey contextKey = "apiKeyRecord"

// Auth returns a chi middleware that authenticates every request
// through authn, injecting the resolved ApiKeyRecord into the request
// context on success and writing an OpenAI-shaped error body otherwise
// (401 for a missing, unknown or deactivated key; 500 when the key
// lookup itself fails).
func Auth(authn *auth.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec, err := authn.Authenticate(r.Context(), r.Header)
			if err != nil {
				writeAPIError(w, err)
				return
			}
			ctx := context.WithValue(r.Context(), apiKeyRecordKey, rec)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// APIKeyFromContext returns the ApiKeyRecord injected by Auth, or nil if
// called outside a request that passed through Auth.
func APIKeyFromContext(ctx context.Context) *model.ApiKeyRecord {
	rec, _ := ctx.Value(apiKeyRecordKey).(*model.ApiKeyRecord)
	return rec
}

func writeAPIError(w http.ResponseWriter, err error) {
	status, body := apierror.Render(err)
	httputil.WriteJSON(w, status, body)
}
