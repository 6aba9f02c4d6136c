// Package health wires GET /health and GET /ready.
package health

import (
	"encoding/json"
	"net/http"

	"github.com/neboloop/bedrock-openai-gateway/internal/svc"
)

// Live serves GET /health: always 200, no side effects, per spec.md §6.
func Live(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Ready serves GET /ready: 200 only if the KeyStore is reachable and
// the default mapping has loaded (the Resolver always carries the
// static default table, so only the store is actually checked).
func Ready(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svcCtx.Store.Ready(r.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "not_ready", "reason": err.Error()})
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}
