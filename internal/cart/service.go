package cart

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/storefront/internal/guestcart"
	"github.com/angelmondragon/storefront/internal/prompts"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/pricing"
	"github.com/angelmondragon/storefront/pkg/storefront"
	"go.uber.org/multierr"
)

// API is the slice of the storefront client the cart needs.
type API interface {
	GetCart(ctx context.Context) (*storefront.ServerCart, error)
	AddCartItem(ctx context.Context, productID string, quantity int) error
	UpdateCartItem(ctx context.Context, cartItemID string, quantity int) error
	RemoveCartItem(ctx context.Context, cartItemID string) error
	ClearCart(ctx context.Context) error
}

// Service keeps the shopper's view of the server cart. Every mutation is
// followed by a full refetch; nothing is patched locally.
type Service interface {
	FetchCart(ctx context.Context) (Cart, error)
	// ChangeQuantity returns a nil cart when the change was rejected locally
	// and nothing was sent.
	ChangeQuantity(ctx context.Context, cartItemID string, currentQuantity, delta int) (*Cart, error)
	RemoveItem(ctx context.Context, cartItemID string) (Cart, error)
	ClearAll(ctx context.Context) (Cart, error)
	AddItem(ctx context.Context, productID string, quantity int) (Cart, error)
	ImportGuestCart(ctx context.Context, items []guestcart.Item) (Cart, []string, error)
	// Discard clears the server cart without asking; used after an order.
	Discard(ctx context.Context) error
}

type service struct {
	api      API
	ui       prompts.UI
	reporter *prompts.FailureReporter
	calc     pricing.Calculator
	observer Observer
	logg     *logger.Logger
	subject  string
	now      func() time.Time
}

// Option configures optional service behavior.
type Option func(*service)

// WithSubject tags published events with the shopper they concern.
func WithSubject(subject string) Option {
	return func(s *service) {
		s.subject = subject
	}
}

// WithObserver registers the receiver of cart-changed events.
func WithObserver(observer Observer) Option {
	return func(s *service) {
		s.observer = observer
	}
}

// NewService builds the cart service.
func NewService(api API, ui prompts.UI, reporter *prompts.FailureReporter, calc pricing.Calculator, logg *logger.Logger, opts ...Option) (Service, error) {
	if api == nil {
		return nil, fmt.Errorf("storefront api required")
	}
	if ui == nil {
		return nil, fmt.Errorf("ui ports required")
	}
	if reporter == nil {
		return nil, fmt.Errorf("failure reporter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	svc := &service{
		api:      api,
		ui:       ui,
		reporter: reporter,
		calc:     calc,
		logg:     logg,
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc, nil
}

func (s *service) FetchCart(ctx context.Context) (Cart, error) {
	server, err := s.api.GetCart(ctx)
	if err != nil {
		return Empty(s.calc), s.reporter.Report(ctx, "cart.fetch_failed", err, "Could not load your cart.")
	}
	cart := fromServer(server, s.calc)
	if drift, ok := cart.Drift(); ok {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"server_total":   cart.ServerTotal.String(),
			"computed_total": cart.ComputedTotal.String(),
			"drift":          drift.String(),
		}), "cart.total_drift")
	}
	return cart, nil
}

func (s *service) ChangeQuantity(ctx context.Context, cartItemID string, currentQuantity, delta int) (*Cart, error) {
	if strings.TrimSpace(cartItemID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart item id is required")
	}
	next := currentQuantity + delta
	if delta == 0 || next < 1 {
		return nil, nil
	}
	if err := s.api.UpdateCartItem(ctx, cartItemID, next); err != nil {
		return nil, s.reporter.Report(ctx, "cart.update_failed", err, "Could not update the quantity.")
	}
	s.changed(ctx, ReasonQuantityChanged)
	cart, err := s.FetchCart(ctx)
	return &cart, err
}

func (s *service) RemoveItem(ctx context.Context, cartItemID string) (Cart, error) {
	if strings.TrimSpace(cartItemID) == "" {
		return Cart{}, pkgerrors.New(pkgerrors.CodeValidation, "cart item id is required")
	}
	if err := s.confirm(ctx, "remove_item", "Remove this item from your cart?"); err != nil {
		return Cart{}, err
	}
	if err := s.api.RemoveCartItem(ctx, cartItemID); err != nil {
		return Cart{}, s.reporter.Report(ctx, "cart.remove_failed", err, "Could not remove the item.")
	}
	s.changed(ctx, ReasonItemRemoved)
	return s.FetchCart(ctx)
}

func (s *service) ClearAll(ctx context.Context) (Cart, error) {
	if err := s.confirm(ctx, "clear_cart", "Remove every item from your cart?"); err != nil {
		return Cart{}, err
	}
	if err := s.api.ClearCart(ctx); err != nil {
		return Cart{}, s.reporter.Report(ctx, "cart.clear_failed", err, "Could not clear your cart.")
	}
	s.changed(ctx, ReasonCleared)
	return s.FetchCart(ctx)
}

func (s *service) AddItem(ctx context.Context, productID string, quantity int) (Cart, error) {
	if strings.TrimSpace(productID) == "" {
		return Cart{}, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if quantity < 1 {
		return Cart{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if err := s.api.AddCartItem(ctx, productID, quantity); err != nil {
		return Cart{}, s.reporter.Report(ctx, "cart.add_failed", err, "Could not add the item to your cart.")
	}
	s.changed(ctx, ReasonItemAdded)
	return s.FetchCart(ctx)
}

// ImportGuestCart moves guest entries into the server cart, one add per
// product with the number of entries as quantity. It returns the product ids
// whose add failed; every other product is now in the server cart.
func (s *service) ImportGuestCart(ctx context.Context, items []guestcart.Item) (Cart, []string, error) {
	if len(items) == 0 {
		cart, err := s.FetchCart(ctx)
		return cart, nil, err
	}
	var (
		errs   error
		failed []string
	)
	for _, line := range groupByProduct(items) {
		if err := s.api.AddCartItem(ctx, line.productID, line.quantity); err != nil {
			failed = append(failed, line.productID)
			errs = multierr.Append(errs, fmt.Errorf("import %s: %w", line.productID, err))
		}
	}
	if errs != nil {
		s.reporter.Report(ctx, "cart.import_failed", errs, "Some items could not be moved to your cart.")
	}
	s.changed(ctx, ReasonGuestImported)
	cart, err := s.FetchCart(ctx)
	return cart, failed, multierr.Append(errs, err)
}

func (s *service) Discard(ctx context.Context) error {
	if err := s.api.ClearCart(ctx); err != nil {
		return fmt.Errorf("clear server cart: %w", err)
	}
	return nil
}

func (s *service) confirm(ctx context.Context, action, message string) error {
	ok, err := s.ui.Confirm(ctx, prompts.Prompt{Action: action, Message: message})
	if err != nil {
		return err
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeConfirmation, message)
	}
	return nil
}

func (s *service) changed(ctx context.Context, reason Reason) {
	if s.observer == nil {
		return
	}
	s.observer.CartChanged(ctx, Event{Subject: s.subject, Reason: reason, OccurredAt: s.now().UTC()})
}

type importLine struct {
	productID string
	quantity  int
}

func groupByProduct(items []guestcart.Item) []importLine {
	index := make(map[string]int, len(items))
	lines := make([]importLine, 0, len(items))
	for _, item := range items {
		if pos, ok := index[item.ProductID]; ok {
			lines[pos].quantity++
			continue
		}
		index[item.ProductID] = len(lines)
		lines = append(lines, importLine{productID: item.ProductID, quantity: 1})
	}
	return lines
}
