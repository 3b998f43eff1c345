package guestcart

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/angelmondragon/storefront/pkg/clientstore"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultKey is the storage key of the persisted guest cart.
const DefaultKey = "guest_cart"

// Product is the snapshot taken when a visitor adds to the guest cart.
type Product struct {
	ID        string
	Name      string
	UnitPrice decimal.Decimal
	ImageRef  string
}

// Store is the guest cart of one visitor. Every mutation is written through
// to storage before it becomes visible; a failed write leaves the previous
// state in place.
type Store struct {
	mu      sync.Mutex
	state   State
	storage clientstore.Store
	key     string
	newID   func() string
}

// Open rehydrates the cart persisted under key. A missing, unreadable or
// malformed value yields an empty cart.
func Open(ctx context.Context, storage clientstore.Store, key string, logg *logger.Logger) (*Store, error) {
	if storage == nil {
		return nil, fmt.Errorf("client store required")
	}
	if strings.TrimSpace(key) == "" {
		key = DefaultKey
	}
	store := &Store{storage: storage, key: key, newID: uuid.NewString}

	raw, ok, err := storage.Get(ctx, key)
	if err != nil {
		if logg != nil {
			logg.Error(ctx, "guestcart.load_failed", err)
		}
		return store, nil
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return store, nil
	}
	var items []Item
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		if logg != nil {
			logg.Warn(logg.WithField(ctx, "error", err.Error()), "guestcart.parse_failed")
		}
		return store, nil
	}
	store.state = NewState(items)
	return store, nil
}

// Add appends product as a new entry and returns it.
func (s *Store) Add(ctx context.Context, product Product) (Item, error) {
	if strings.TrimSpace(product.ID) == "" {
		return Item{}, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if product.UnitPrice.IsNegative() {
		return Item{}, pkgerrors.New(pkgerrors.CodeValidation, "unit price must not be negative")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	item := Item{
		ProductID: product.ID,
		Name:      product.Name,
		UnitPrice: product.UnitPrice,
		ImageRef:  product.ImageRef,
		UniqueID:  s.newID(),
	}
	if err := s.commit(ctx, Add(s.state, item)); err != nil {
		return Item{}, err
	}
	return item, nil
}

// Remove drops the entry with uniqueID; an unknown id is a no-op.
func (s *Store) Remove(ctx context.Context, uniqueID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, found := Remove(s.state, uniqueID)
	if !found {
		return nil
	}
	return s.commit(ctx, next)
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit(ctx, Clear(s.state))
}

// Snapshot returns the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Store) Items() []Item {
	return s.Snapshot().Items()
}

func (s *Store) Total() decimal.Decimal {
	return s.Snapshot().Total()
}

func (s *Store) commit(ctx context.Context, next State) error {
	payload, err := json.Marshal(next.Items())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode guest cart")
	}
	if err := s.storage.Set(ctx, s.key, string(payload)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist guest cart")
	}
	s.state = next
	return nil
}
