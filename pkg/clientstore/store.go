// Package clientstore persists the small client-local values a visitor keeps
// between requests: the guest cart and the bearer token.
package clientstore

import (
	"context"
	"strings"
)

// Store is a string key/value port. Get reports whether the key was present.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

type scoped struct {
	inner  Store
	prefix string
}

// Scoped namespaces every key of inner under scope, so several visitors can
// share one backend.
func Scoped(inner Store, scope string) Store {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		return inner
	}
	return &scoped{inner: inner, prefix: scope + ":"}
}

func (s *scoped) Get(ctx context.Context, key string) (string, bool, error) {
	return s.inner.Get(ctx, s.prefix+key)
}

func (s *scoped) Set(ctx context.Context, key, value string) error {
	return s.inner.Set(ctx, s.prefix+key, value)
}

func (s *scoped) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, s.prefix+key)
}
