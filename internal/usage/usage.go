// Package usage implements C9, the UsageRecorder: it writes one
// UsageRow per chat completions request, on every exit path of that
// handler, without ever influencing the client response. Requests
// rejected earlier by the auth or rate-limit middleware never reach the
// handler and get no row.
package usage

import (
	"context"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/neboloop/bedrock-openai-gateway/internal/keystore"
	"github.com/neboloop/bedrock-openai-gateway/internal/model"
)

// Recorder writes usage rows to a keystore.Store. Write failures are
// logged and swallowed, per spec.md §4.8.
type Recorder struct {
	store keystore.Store
}

// New builds a Recorder backed by store.
func New(store keystore.Store) *Recorder {
	return &Recorder{store: store}
}

// Record writes row. Intended to be called from a deferred path that
// runs on every request exit, including error paths (spec.md §4.8).
func (r *Recorder) Record(ctx context.Context, row *model.UsageRow) {
	if err := r.store.PutUsage(ctx, row); err != nil {
		logx.WithContext(ctx).Errorf("usage: failed to write row for request %s: %v", row.RequestID, err)
	}
}

// Outcome accumulates what a request handler learns over its lifetime
// so a single UsageRow can be assembled at the deferred exit point.
type Outcome struct {
	ApiKey           string
	RequestID        string
	Model            string
	PromptTokens     int
	CompletionTokens int
	Success          bool
	ErrorMessage     string
	StartedAt        time.Time
}

// Row converts an Outcome, finalized at request exit, into a UsageRow.
// Latency is measured from StartedAt to now, matching spec.md §4.8's
// "admission to last byte sent".
func (o *Outcome) Row() *model.UsageRow {
	return &model.UsageRow{
		ApiKey:           o.ApiKey,
		Timestamp:        time.Now(),
		RequestID:        o.RequestID,
		Model:            o.Model,
		PromptTokens:     o.PromptTokens,
		CompletionTokens: o.CompletionTokens,
		TotalTokens:      o.PromptTokens + o.CompletionTokens,
		Success:          o.Success,
		ErrorMessage:     o.ErrorMessage,
		LatencyMS:        time.Since(o.StartedAt).Milliseconds(),
	}
}
