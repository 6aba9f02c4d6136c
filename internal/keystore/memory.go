package keystore

import (
	"context"
	"sync"
	"time"

	"github.com/neboloop/bedrock-openai-gateway/internal/model"
)

// MemoryStore is a mutex-guarded in-process Store, used by tests and by
// single-binary deployments that don't need a shared backing table.
type MemoryStore struct {
	mu       sync.RWMutex
	apiKeys  map[string]model.ApiKeyRecord
	usage    []model.UsageRow
	mappings map[string]string
}

// NewMemoryStore returns an empty MemoryStore ready for use.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		apiKeys:  make(map[string]model.ApiKeyRecord),
		mappings: make(map[string]string),
	}
}

func (s *MemoryStore) GetAPIKey(_ context.Context, apiKey string) (*model.ApiKeyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.apiKeys[apiKey]
	if !ok {
		return nil, ErrNotFound
	}
	out := rec
	return &out, nil
}

func (s *MemoryStore) PutAPIKey(_ context.Context, rec *model.ApiKeyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apiKeys[rec.ApiKey] = *rec
	return nil
}

func (s *MemoryStore) DeleteAPIKey(_ context.Context, apiKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.apiKeys[apiKey]
	if !ok {
		return ErrNotFound
	}
	rec.IsActive = false
	s.apiKeys[apiKey] = rec
	return nil
}

func (s *MemoryStore) PutUsage(_ context.Context, row *model.UsageRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage = append(s.usage, *row)
	return nil
}

func (s *MemoryStore) QueryUsage(_ context.Context, apiKey string, since time.Time) ([]model.UsageRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.UsageRow
	for _, row := range s.usage {
		if row.ApiKey == apiKey && !row.Timestamp.Before(since) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *MemoryStore) GetModelMappings(_ context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.mappings))
	for k, v := range s.mappings {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStore) PutModelMapping(_ context.Context, openaiID, upstreamID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mappings[openaiID] = upstreamID
	return nil
}

func (s *MemoryStore) Ready(context.Context) error { return nil }
