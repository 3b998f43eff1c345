package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/storefront/pkg/clientstore"
)

// DefaultTokenKey is the storage key of the bearer token.
const DefaultTokenKey = "auth_token"

// TokenStore persists the bearer token as a plain client-local entry.
type TokenStore struct {
	store clientstore.Store
	key   string
	now   func() time.Time
}

func NewTokenStore(store clientstore.Store, key string) (*TokenStore, error) {
	if store == nil {
		return nil, fmt.Errorf("client store required")
	}
	if strings.TrimSpace(key) == "" {
		key = DefaultTokenKey
	}
	return &TokenStore{store: store, key: key, now: time.Now}, nil
}

// Save stores token, replacing any previous one.
func (t *TokenStore) Save(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("token is empty")
	}
	if err := t.store.Set(ctx, t.key, token); err != nil {
		return fmt.Errorf("saving token: %w", err)
	}
	return nil
}

// Token returns the stored token. An expired token is deleted and reported
// as absent.
func (t *TokenStore) Token(ctx context.Context) (string, bool, error) {
	token, ok, err := t.store.Get(ctx, t.key)
	if err != nil {
		return "", false, fmt.Errorf("loading token: %w", err)
	}
	if !ok || strings.TrimSpace(token) == "" {
		return "", false, nil
	}
	if Expired(token, t.now()) {
		if err := t.Clear(ctx); err != nil {
			return "", false, err
		}
		return "", false, nil
	}
	return token, true, nil
}

// Clear forgets the stored token.
func (t *TokenStore) Clear(ctx context.Context) error {
	if err := t.store.Delete(ctx, t.key); err != nil {
		return fmt.Errorf("clearing token: %w", err)
	}
	return nil
}
