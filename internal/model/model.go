// Package model holds the persistent data shapes shared by the KeyStore
// adapter, the rate limiter, and the usage recorder.
package model

import "time"

// ApiKeyRecord is the identity record for a client credential.
// Primary key: ApiKey. Created and mutated by the admin surface
// (out of scope here); read by the Authenticator.
type ApiKeyRecord struct {
	ApiKey    string         `json:"api_key" dynamodbav:"api_key"`
	UserID    string         `json:"user_id" dynamodbav:"user_id"`
	Name      string         `json:"name" dynamodbav:"name"`
	IsActive  bool           `json:"is_active" dynamodbav:"is_active"`
	RateLimit int            `json:"rate_limit" dynamodbav:"rate_limit"`
	CreatedAt time.Time      `json:"created_at" dynamodbav:"created_at"`
	Metadata  map[string]any `json:"metadata,omitempty" dynamodbav:"metadata,omitempty"`
}

// Master returns a synthetic, unlimited record used for the configured
// master API key. It never touches the KeyStore.
func Master(key string) *ApiKeyRecord {
	return &ApiKeyRecord{
		ApiKey:    key,
		UserID:    "master",
		Name:      "master",
		IsActive:  true,
		RateLimit: 0, // 0 means "unbounded" — the rate limiter bypasses master records
		CreatedAt: time.Now(),
	}
}

// Anonymous returns a synthetic record used when require_api_key is
// disabled and no credential was presented. A negative RateLimit
// routes through the default per-key capacity rather than the
// unbounded bypass Master records get.
func Anonymous() *ApiKeyRecord {
	return &ApiKeyRecord{
		ApiKey:    "anonymous",
		UserID:    "anonymous",
		Name:      "anonymous",
		IsActive:  true,
		RateLimit: -1,
		CreatedAt: time.Now(),
	}
}

// ModelMapping is one entry of the openai_model_id -> upstream_model_id
// override table. Keys are unique; insertion order is irrelevant.
type ModelMapping struct {
	OpenAIModelID   string `json:"openai_model_id" dynamodbav:"openai_model_id"`
	UpstreamModelID string `json:"upstream_model_id" dynamodbav:"upstream_model_id"`
}

// UsageRow records the outcome of exactly one completed request.
// Identity: (ApiKey, Timestamp).
type UsageRow struct {
	ApiKey           string    `json:"api_key" dynamodbav:"api_key"`
	Timestamp        time.Time `json:"timestamp" dynamodbav:"timestamp"`
	RequestID        string    `json:"request_id" dynamodbav:"request_id"`
	Model            string    `json:"model" dynamodbav:"model"`
	PromptTokens     int       `json:"prompt_tokens" dynamodbav:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens" dynamodbav:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens" dynamodbav:"total_tokens"`
	Success          bool      `json:"success" dynamodbav:"success"`
	ErrorMessage     string    `json:"error_message,omitempty" dynamodbav:"error_message,omitempty"`
	LatencyMS        int64     `json:"latency_ms" dynamodbav:"latency_ms"`
}
