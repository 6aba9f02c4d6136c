// Package auth implements the Authenticator (C3): bearer-credential
// extraction and key-record lookup.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/neboloop/bedrock-openai-gateway/internal/apierror"
	"github.com/neboloop/bedrock-openai-gateway/internal/keystore"
	"github.com/neboloop/bedrock-openai-gateway/internal/model"
)

// Authenticator extracts a bearer credential from an inbound request and
// resolves it to an ApiKeyRecord, per spec.md §4.1. The bearer token
// itself is never logged by any method here.
type Authenticator struct {
	store      keystore.Store
	masterKey  string
	requireKey bool
}

// New builds an Authenticator. masterKey may be empty, disabling the
// master-key bypass. requireKey mirrors spec.md §6's require_api_key
// option: when false, a request with no bearer credential at all is
// admitted as an anonymous record instead of rejected.
func New(store keystore.Store, masterKey string, requireKey bool) *Authenticator {
	return &Authenticator{store: store, masterKey: masterKey, requireKey: requireKey}
}

// Authenticate extracts the bearer token from either Authorization:
// Bearer <t> or x-api-key: <t> (first present wins, in that order),
// then resolves it to an active ApiKeyRecord.
func (a *Authenticator) Authenticate(ctx context.Context, h http.Header) (*model.ApiKeyRecord, error) {
	token := extractToken(h)
	if token == "" {
		if !a.requireKey {
			return model.Anonymous(), nil
		}
		return nil, apierror.New(apierror.KindAuthentication, "missing API key", "")
	}
	if a.masterKey != "" && token == a.masterKey {
		return model.Master(token), nil
	}
	rec, err := a.store.GetAPIKey(ctx, token)
	if err != nil {
		if errors.Is(err, keystore.ErrNotFound) {
			return nil, apierror.New(apierror.KindAuthentication, "invalid API key", "")
		}
		return nil, apierror.Wrap(apierror.KindInternal, "key lookup failed", err)
	}
	if !rec.IsActive {
		return nil, apierror.New(apierror.KindAuthentication, "API key is deactivated", "")
	}
	return rec, nil
}

func extractToken(h http.Header) string {
	if v := h.Get("Authorization"); v != "" {
		if after, ok := strings.CutPrefix(v, "Bearer "); ok {
			return strings.TrimSpace(after)
		}
	}
	if v := h.Get("x-api-key"); v != "" {
		return strings.TrimSpace(v)
	}
	return ""
}
