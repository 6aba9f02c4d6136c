package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neboloop/bedrock-openai-gateway/internal/model"
	"github.com/neboloop/bedrock-openai-gateway/internal/ratelimit"
)

func withAPIKeyRecord(r *http.Request, rec *model.ApiKeyRecord) *http.Request {
	ctx := context.WithValue(r.Context(), apiKeyRecordKey, rec)
	return r.WithContext(ctx)
}

func noopHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
}

func TestRateLimitSetsHeadersOnAllow(t *testing.T) {
	limiter := ratelimit.New()
	mw := RateLimit(limiter, 5, time.Minute, true)(noopHandler())

	req := withAPIKeyRecord(httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil), &model.ApiKeyRecord{ApiKey: "k1", RateLimit: 5})
	rw := httptest.NewRecorder()
	mw.ServeHTTP(rw, req)

	assert.Equal(t, http.StatusOK, rw.Code)
	assert.Equal(t, "5", rw.Header().Get("X-RateLimit-Limit"))
	assert.NotEmpty(t, rw.Header().Get("X-RateLimit-Reset"), "reset header must be set on the allow path too")
}

func TestRateLimitRejectsOverCapacityWith429(t *testing.T) {
	limiter := ratelimit.New()
	mw := RateLimit(limiter, 1, time.Minute, true)(noopHandler())

	rec := &model.ApiKeyRecord{ApiKey: "k2", RateLimit: 1}
	first := withAPIKeyRecord(httptest.NewRequest(http.MethodPost, "/", nil), rec)
	mw.ServeHTTP(httptest.NewRecorder(), first)

	second := withAPIKeyRecord(httptest.NewRequest(http.MethodPost, "/", nil), rec)
	rw := httptest.NewRecorder()
	mw.ServeHTTP(rw, second)

	assert.Equal(t, http.StatusTooManyRequests, rw.Code)
	assert.NotEmpty(t, rw.Header().Get("X-RateLimit-Reset"))
}

func TestRateLimitBypassesMasterKeyRecord(t *testing.T) {
	limiter := ratelimit.New()
	mw := RateLimit(limiter, 1, time.Minute, true)(noopHandler())
	master := model.Master("master-secret")

	for i := 0; i < 5; i++ {
		req := withAPIKeyRecord(httptest.NewRequest(http.MethodPost, "/", nil), master)
		rw := httptest.NewRecorder()
		mw.ServeHTTP(rw, req)
		require.Equal(t, http.StatusOK, rw.Code, "master key must never be rate limited")
	}
}

func TestRateLimitDisabledSkipsEntirely(t *testing.T) {
	limiter := ratelimit.New()
	mw := RateLimit(limiter, 1, time.Minute, false)(noopHandler())
	rec := &model.ApiKeyRecord{ApiKey: "k3", RateLimit: 1}

	for i := 0; i < 5; i++ {
		req := withAPIKeyRecord(httptest.NewRequest(http.MethodPost, "/", nil), rec)
		rw := httptest.NewRecorder()
		mw.ServeHTTP(rw, req)
		require.Equal(t, http.StatusOK, rw.Code)
	}
}
