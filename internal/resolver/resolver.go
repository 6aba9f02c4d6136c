// Package resolver maps a client-supplied OpenAI model id to the
// Bedrock Converse model id that actually serves it.
package resolver

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/neboloop/bedrock-openai-gateway/internal/keystore"
)

// defaultModels is the static table shipped with the binary, covering
// the Claude model family Bedrock Converse hosts. Bedrock model ids
// follow the "<region-prefix>.anthropic.<name>-v<N>:0" shape.
var defaultModels = map[string]string{
	"claude-opus-4-1-20250805":   "global.anthropic.claude-opus-4-1-20250805-v1:0",
	"claude-sonnet-4-5-20250929": "global.anthropic.claude-sonnet-4-5-20250929-v1:0",
	"claude-haiku-4-5-20251001":  "global.anthropic.claude-haiku-4-5-20251001-v1:0",
	"claude-3-7-sonnet-20250219": "us.anthropic.claude-3-7-sonnet-20250219-v1:0",
	"claude-3-5-sonnet-20241022": "us.anthropic.claude-3-5-sonnet-20241022-v2:0",
	"claude-3-5-haiku-20241022":  "us.anthropic.claude-3-5-haiku-20241022-v1:0",
}

// Resolver implements C2: resolve(openai_model_id) -> upstream_model_id
// via override table -> static default -> passthrough. Resolution reads
// an override snapshot taken at request start, refreshed by Refresh on a
// background cadence (spec.md §5: "at most once per 60s").
type Resolver struct {
	store     keystore.Store
	overrides atomic.Value // map[string]string
	mu        sync.Mutex   // serializes Refresh against concurrent callers
}

// New returns a Resolver with an empty override snapshot. Callers should
// invoke Refresh once before serving traffic and periodically after
// (see the cron wiring in cmd/gateway).
func New(store keystore.Store) *Resolver {
	r := &Resolver{store: store}
	r.overrides.Store(map[string]string{})
	return r
}

// Refresh re-reads the KeyStore's override table and atomically swaps
// the snapshot future Resolve calls see.
func (r *Resolver) Refresh(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	mappings, err := r.store.GetModelMappings(ctx)
	if err != nil {
		return err
	}
	r.overrides.Store(mappings)
	return nil
}

// RefreshLoop calls Refresh every interval until ctx is canceled. It is
// meant to be launched as the body of a robfig/cron job or a bare
// goroutine from cmd/gateway; errors are swallowed since a stale
// snapshot is preferable to crashing the process.
func (r *Resolver) RefreshLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = r.Refresh(ctx)
		}
	}
}

// Resolve maps an OpenAI model id to the id the upstream call should
// carry. It never fails: passthrough is always available.
func (r *Resolver) Resolve(openAIModelID string) string {
	overrides := r.overrides.Load().(map[string]string)
	if upstream, ok := overrides[openAIModelID]; ok {
		return upstream
	}
	if upstream, ok := defaultModels[openAIModelID]; ok {
		return upstream
	}
	return openAIModelID
}

// ListKnownModels returns the union of default and override mapping
// keys, sorted lexicographically by the caller, for GET /v1/models.
func (r *Resolver) ListKnownModels() []string {
	overrides := r.overrides.Load().(map[string]string)
	seen := make(map[string]struct{}, len(defaultModels)+len(overrides))
	for id := range defaultModels {
		seen[id] = struct{}{}
	}
	for id := range overrides {
		seen[id] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	return out
}
