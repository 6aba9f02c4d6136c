// Package keystore defines the persistent key-value interface the core
// depends on for api-key, usage, and model-mapping records, and the two
// concrete adapters that satisfy it.
package keystore

import (
	"context"
	"time"

	"github.com/neboloop/bedrock-openai-gateway/internal/model"
)

// Store is the persistence interface C1 (KeyStore adapter) wraps.
// Out of scope: the store itself is "a remote endpoint with a known
// schema" per spec.md §1; this interface is its contract from the
// core's point of view.
type Store interface {
	GetAPIKey(ctx context.Context, apiKey string) (*model.ApiKeyRecord, error)
	PutAPIKey(ctx context.Context, rec *model.ApiKeyRecord) error
	// DeleteAPIKey soft-deletes: the core never hard-deletes a key record.
	DeleteAPIKey(ctx context.Context, apiKey string) error

	PutUsage(ctx context.Context, row *model.UsageRow) error
	QueryUsage(ctx context.Context, apiKey string, since time.Time) ([]model.UsageRow, error)

	GetModelMappings(ctx context.Context) (map[string]string, error)
	PutModelMapping(ctx context.Context, openaiID, upstreamID string) error

	// Ready reports whether the store is currently reachable. Used by
	// GET /ready; must not block longer than the caller's context.
	Ready(ctx context.Context) error
}

// ErrNotFound is returned by GetAPIKey when no record exists for the key.
var ErrNotFound = notFoundError{}

type notFoundError struct{}

func (notFoundError) Error() string { return "keystore: record not found" }
