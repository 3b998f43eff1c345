package visitor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/storefront/internal/address"
	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/internal/catalog"
	"github.com/angelmondragon/storefront/internal/checkout"
	"github.com/angelmondragon/storefront/internal/guestcart"
	"github.com/angelmondragon/storefront/internal/orders"
	"github.com/angelmondragon/storefront/internal/prompts"
	"github.com/angelmondragon/storefront/pkg/auth"
	"github.com/angelmondragon/storefront/pkg/clientstore"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/metrics"
	"github.com/angelmondragon/storefront/pkg/pricing"
	"github.com/angelmondragon/storefront/pkg/storefront"
)

const defaultIdleTTL = 30 * time.Minute

// Visitor is everything one browser session talks to: its guest cart, its
// bearer token and the services bound to its storefront credentials.
type Visitor struct {
	SessionID string
	GuestCart *guestcart.Store
	Auth      Authenticator
	Catalog   catalog.Service
	Cart      cart.Service
	Checkout  checkout.Service
	Orders    orders.Service
	Addresses address.Service
}

// Deps are shared by every visitor.
type Deps struct {
	Client   *storefront.Client
	Storage  clientstore.Store
	Calc     pricing.Calculator
	UI       prompts.UI
	Scripts  checkout.ScriptLoader
	Widget   checkout.Widget
	Observer cart.Observer
	Metrics  *metrics.CheckoutMetrics
	Logger   *logger.Logger
}

type Config struct {
	GuestCartKey string
	TokenKey     string
	// IdleTTL bounds how long an unused visitor stays cached.
	IdleTTL  time.Duration
	Checkout checkout.Options
}

type entry struct {
	visitor *Visitor
	seen    time.Time
}

// Factory builds and caches visitors by guest session id. Cached visitors
// keep their storefront cookie jar between requests.
type Factory struct {
	deps   Deps
	cfg    Config
	guests *guestcart.Manager
	now    func() time.Time

	mu       sync.Mutex
	visitors map[string]*entry
}

func NewFactory(deps Deps, cfg Config) (*Factory, error) {
	if deps.Client == nil {
		return nil, fmt.Errorf("storefront client required")
	}
	if deps.Storage == nil {
		return nil, fmt.Errorf("client store required")
	}
	if deps.UI == nil {
		return nil, fmt.Errorf("ui required")
	}
	if deps.Scripts == nil {
		return nil, fmt.Errorf("script loader required")
	}
	if deps.Widget == nil {
		return nil, fmt.Errorf("payment widget required")
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = defaultIdleTTL
	}
	guests, err := guestcart.NewManager(deps.Storage, cfg.GuestCartKey, deps.Logger)
	if err != nil {
		return nil, err
	}
	return &Factory{
		deps:     deps,
		cfg:      cfg,
		guests:   guests,
		now:      time.Now,
		visitors: make(map[string]*entry),
	}, nil
}

// For returns the visitor of sessionID, building it on first use.
func (f *Factory) For(ctx context.Context, sessionID string) (*Visitor, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("session id required")
	}
	now := f.now()

	f.mu.Lock()
	defer f.mu.Unlock()
	f.sweepLocked(now)
	if cached, ok := f.visitors[sessionID]; ok {
		cached.seen = now
		return cached.visitor, nil
	}
	v, err := f.build(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	f.visitors[sessionID] = &entry{visitor: v, seen: now}
	return v, nil
}

// Len reports how many visitors are cached.
func (f *Factory) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.visitors)
}

func (f *Factory) sweepLocked(now time.Time) {
	for id, cached := range f.visitors {
		if now.Sub(cached.seen) > f.cfg.IdleTTL {
			delete(f.visitors, id)
			f.guests.Forget(id)
		}
	}
}

func (f *Factory) build(ctx context.Context, sessionID string) (*Visitor, error) {
	tokens, err := auth.NewTokenStore(clientstore.Scoped(f.deps.Storage, sessionID), f.cfg.TokenKey)
	if err != nil {
		return nil, err
	}
	guest, err := f.guests.For(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("opening guest cart: %w", err)
	}

	creds := &credentials{store: tokens, now: f.now}
	client := f.deps.Client.WithTokens(creds)
	reporter := prompts.NewFailureReporter(f.deps.UI, f.deps.Logger, tokens)

	catalogSvc, err := catalog.NewService(client, reporter)
	if err != nil {
		return nil, err
	}
	cartSvc, err := cart.NewService(client, f.deps.UI, reporter, f.deps.Calc, f.deps.Logger,
		cart.WithSubject(sessionID), cart.WithObserver(f.deps.Observer))
	if err != nil {
		return nil, err
	}
	checkoutSvc, err := checkout.NewService(checkout.Deps{
		API:       client,
		Cart:      cartSvc,
		GuestCart: guest,
		UI:        f.deps.UI,
		Reporter:  reporter,
		Scripts:   f.deps.Scripts,
		Widget:    f.deps.Widget,
		Observer:  f.deps.Observer,
		Metrics:   f.deps.Metrics,
		Logger:    f.deps.Logger,
	}, f.cfg.Checkout)
	if err != nil {
		return nil, err
	}
	ordersSvc, err := orders.NewService(client, f.deps.UI, reporter, f.deps.Logger)
	if err != nil {
		return nil, err
	}
	addressSvc, err := address.NewService(client, f.deps.UI, reporter, f.deps.Logger)
	if err != nil {
		return nil, err
	}

	return &Visitor{
		SessionID: sessionID,
		GuestCart: guest,
		Auth: &authenticator{
			api:    client,
			tokens: tokens,
			creds:  creds,
			guest:  guest,
			cart:   cartSvc,
			ui:     f.deps.UI,
			logg:   f.deps.Logger,
		},
		Catalog:   catalogSvc,
		Cart:      cartSvc,
		Checkout:  checkoutSvc,
		Orders:    ordersSvc,
		Addresses: addressSvc,
	}, nil
}

type visitorKey struct{}

// WithContext attaches v to ctx.
func WithContext(ctx context.Context, v *Visitor) context.Context {
	return context.WithValue(ctx, visitorKey{}, v)
}

// FromContext returns the visitor resolved for the request, if any.
func FromContext(ctx context.Context) *Visitor {
	if ctx == nil {
		return nil
	}
	v, _ := ctx.Value(visitorKey{}).(*Visitor)
	return v
}
