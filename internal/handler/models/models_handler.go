// Package models wires GET /v1/models.
package models

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/neboloop/bedrock-openai-gateway/internal/openai"
	"github.com/neboloop/bedrock-openai-gateway/internal/svc"
)

// Handler serves GET /v1/models: the union of default and override
// mapping keys, sorted lexicographically, per spec.md §6.
func Handler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids := svcCtx.Resolver.ListKnownModels()
		sort.Strings(ids)

		now := time.Now().Unix()
		data := make([]openai.ModelInfo, 0, len(ids))
		for _, id := range ids {
			data = append(data, openai.ModelInfo{
				ID:      id,
				Object:  "model",
				Created: now,
				OwnedBy: "anthropic",
			})
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(openai.ModelsResponse{Object: "list", Data: data})
	}
}
