package guestcart

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/angelmondragon/storefront/pkg/clientstore"
	"github.com/angelmondragon/storefront/pkg/logger"
)

// Manager hands out one Store per guest session over a shared backend.
type Manager struct {
	storage clientstore.Store
	key     string
	logg    *logger.Logger

	mu     sync.Mutex
	stores map[string]*Store
}

func NewManager(storage clientstore.Store, key string, logg *logger.Logger) (*Manager, error) {
	if storage == nil {
		return nil, fmt.Errorf("client store required")
	}
	return &Manager{
		storage: storage,
		key:     key,
		logg:    logg,
		stores:  make(map[string]*Store),
	}, nil
}

// For returns the cart of sessionID, rehydrating it on first use.
func (m *Manager) For(ctx context.Context, sessionID string) (*Store, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("session id required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if store, ok := m.stores[sessionID]; ok {
		return store, nil
	}
	store, err := Open(ctx, clientstore.Scoped(m.storage, sessionID), m.key, m.logg)
	if err != nil {
		return nil, err
	}
	m.stores[sessionID] = store
	return store, nil
}

// Forget drops the cached Store of sessionID; persisted data is untouched.
func (m *Manager) Forget(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stores, sessionID)
}
