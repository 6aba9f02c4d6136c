package health

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/neboloop/bedrock-openai-gateway/internal/keystore"
	"github.com/neboloop/bedrock-openai-gateway/internal/svc"
)

func TestLiveAlwaysOK(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	rw := httptest.NewRecorder()
	Live(rw, req)
	assert.Equal(t, 200, rw.Code)
}

func TestReadyOKWhenStoreReachable(t *testing.T) {
	svcCtx := &svc.ServiceContext{Store: keystore.NewMemoryStore()}
	req := httptest.NewRequest("GET", "/ready", nil)
	rw := httptest.NewRecorder()
	Ready(svcCtx)(rw, req)
	assert.Equal(t, 200, rw.Code)
}

type unreadyStore struct{ keystore.Store }

func (unreadyStore) Ready(context.Context) error { return errors.New("unreachable") }

func TestReadyServiceUnavailableWhenStoreDown(t *testing.T) {
	svcCtx := &svc.ServiceContext{Store: unreadyStore{}}
	req := httptest.NewRequest("GET", "/ready", nil)
	rw := httptest.NewRecorder()
	Ready(svcCtx)(rw, req)
	assert.Equal(t, 503, rw.Code)
}
