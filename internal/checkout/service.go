package checkout

import (
	"context"
	stdErrors "errors"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/internal/prompts"
	"github.com/angelmondragon/storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/metrics"
	"github.com/angelmondragon/storefront/pkg/pricing"
	"github.com/angelmondragon/storefront/pkg/storefront"
	"go.uber.org/multierr"
)

const (
	messagePlaceFailed    = "Could not place your order. Please try again."
	messagePaymentFailed  = "Payment failed. Please try again."
	messageVerifyFailed   = "We could not verify your payment. Your cart has not been changed."
	messagePaymentTimeout = "The payment window timed out. Please try again."
	messageScriptFailed   = "Could not load the payment window. Please try again."
	messageOrderPlaced    = "Order placed successfully."
	messageAddressMissing = "Please select a shipping address."
	messageCartEmpty      = "Your cart is empty."
)

// API is the slice of the storefront client checkout calls.
type API interface {
	PlaceOrder(ctx context.Context, idempotencyKey string, req storefront.OrderRequest) (*storefront.Order, error)
	CreatePaymentOrder(ctx context.Context, idempotencyKey string, req storefront.PaymentOrderRequest) (*storefront.PaymentOrder, error)
	VerifyPayment(ctx context.Context, idempotencyKey string, req storefront.VerifyRequest) (*storefront.Verification, error)
	ReportPaymentFailure(ctx context.Context, failure storefront.PaymentFailure) error
}

type cartDiscarder interface {
	Discard(ctx context.Context) error
}

type guestClearer interface {
	Clear(ctx context.Context) error
}

// Options are the fixed settings of the online payment path.
type Options struct {
	Currency       string
	KeyID          string
	MerchantName   string
	ScriptURL      string
	PaymentTimeout time.Duration
}

// Deps groups what a checkout service talks to. GuestCart and Observer are
// optional.
type Deps struct {
	API       API
	Cart      cartDiscarder
	GuestCart guestClearer
	UI        prompts.UI
	Reporter  *prompts.FailureReporter
	Scripts   ScriptLoader
	Widget    Widget
	Observer  cart.Observer
	Metrics   *metrics.CheckoutMetrics
	Logger    *logger.Logger
}

// Service submits checkout sessions.
type Service interface {
	// Place submits the session's order for the cart as currently displayed.
	Place(ctx context.Context, session *Session, current cart.Cart) (View, error)
}

type service struct {
	deps Deps
	opts Options
	now  func() time.Time
}

// NewService builds the checkout service.
func NewService(deps Deps, opts Options) (Service, error) {
	if deps.API == nil {
		return nil, fmt.Errorf("storefront api required")
	}
	if deps.Cart == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if deps.UI == nil {
		return nil, fmt.Errorf("ui ports required")
	}
	if deps.Reporter == nil {
		return nil, fmt.Errorf("failure reporter required")
	}
	if deps.Scripts == nil {
		return nil, fmt.Errorf("script loader required")
	}
	if deps.Widget == nil {
		return nil, fmt.Errorf("payment widget required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if opts.Currency == "" {
		opts.Currency = "INR"
	}
	if opts.PaymentTimeout <= 0 {
		opts.PaymentTimeout = 15 * time.Minute
	}
	return &service{deps: deps, opts: opts, now: time.Now}, nil
}

func (s *service) Place(ctx context.Context, session *Session, current cart.Cart) (View, error) {
	if session == nil {
		return View{}, pkgerrors.New(pkgerrors.CodeValidation, "checkout session required")
	}
	if current.IsEmpty() {
		return s.blocked(ctx, session, messageCartEmpty)
	}
	if session.View().Address == nil {
		return s.blocked(ctx, session, messageAddressMissing)
	}
	att, err := session.begin()
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeValidation) {
			s.deps.UI.Notify(ctx, prompts.Error(pkgerrors.UserMessage(err, messagePlaceFailed)))
		}
		return session.View(), err
	}
	if rec := detachedRecorder(ctx); rec != nil {
		session.Track(rec)
	}

	ctx = s.deps.Logger.WithSessionID(ctx, session.ID())
	start := s.now()
	defer func() {
		s.deps.Metrics.ObserveSubmission(att.method.String(), s.now().Sub(start))
	}()

	switch att.method {
	case enums.PaymentMethodCOD:
		return s.placeCashOnDelivery(ctx, session, att, current)
	case enums.PaymentMethodOnline:
		return s.placeOnline(ctx, session, att, current)
	default:
		view := session.abandon()
		return view, pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment method")
	}
}

// blocked refuses a submission before any network call and points the
// shopper at the address section.
func (s *service) blocked(ctx context.Context, session *Session, message string) (View, error) {
	s.deps.UI.Focus(ctx, prompts.SectionAddress)
	s.deps.UI.Notify(ctx, prompts.Error(message))
	return session.View(), pkgerrors.New(pkgerrors.CodeValidation, message)
}

func (s *service) placeCashOnDelivery(ctx context.Context, session *Session, att attempt, current cart.Cart) (View, error) {
	order, err := s.deps.API.PlaceOrder(ctx, att.idempotencyKey, s.orderRequest(att, current))
	if err != nil {
		return s.fail(ctx, session, att, "checkout.place_failed", err, messagePlaceFailed)
	}
	return s.complete(ctx, session, att, order.ID), nil
}

func (s *service) placeOnline(ctx context.Context, session *Session, att attempt, current cart.Cart) (View, error) {
	if err := s.deps.Scripts.Load(ctx); err != nil {
		s.deps.Reporter.Report(ctx, "checkout.script_load_failed", err, messageScriptFailed)
		return session.abandon(), err
	}

	amount, err := pricing.ToMinorUnits(current.Totals.Grand)
	if err != nil {
		return s.fail(ctx, session, att, "checkout.amount_invalid", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order amount"), messagePlaceFailed)
	}
	paymentOrder, err := s.deps.API.CreatePaymentOrder(ctx, paymentOrderKey(att.idempotencyKey, amount), storefront.PaymentOrderRequest{
		Amount:   amount,
		Currency: s.opts.Currency,
		Receipt:  att.idempotencyKey,
	})
	if err != nil {
		return s.fail(ctx, session, att, "checkout.payment_order_failed", err, messagePlaceFailed)
	}

	req := WidgetRequest{
		SessionID:    session.ID(),
		KeyID:        s.opts.KeyID,
		OrderID:      paymentOrder.ID,
		Amount:       paymentOrder.Amount,
		Currency:     paymentOrder.Currency,
		MerchantName: s.opts.MerchantName,
		ScriptURL:    s.opts.ScriptURL,
		Prefill:      Prefill{Name: att.address.Name, Contact: att.address.Phone},
	}
	if req.Amount == 0 {
		req.Amount = amount
	}
	if req.Currency == "" {
		req.Currency = s.opts.Currency
	}
	session.setPending(&req)

	widgetCtx, cancel := context.WithTimeout(ctx, s.opts.PaymentTimeout)
	result, err := s.deps.Widget.Open(widgetCtx, req)
	cancel()
	if err != nil {
		switch {
		case stdErrors.Is(err, context.DeadlineExceeded):
			result = WidgetResult{Outcome: enums.PaymentOutcomeTimedOut}
		case stdErrors.Is(err, context.Canceled):
			result = WidgetResult{Outcome: enums.PaymentOutcomeDismissed}
		default:
			return s.fail(ctx, session, att, "checkout.widget_failed", err, messagePaymentFailed)
		}
	}
	s.deps.Metrics.IncPaymentOutcome(result.Outcome.String())
	ctx = s.deps.Logger.WithField(ctx, "payment_outcome", result.Outcome.String())

	switch result.Outcome {
	case enums.PaymentOutcomeSucceeded:
		return s.verify(ctx, session, att, current, result.Proof, paymentOrder.ID)
	case enums.PaymentOutcomeFailed:
		return s.paymentFailed(ctx, session, att, paymentOrder.ID, result.Failure)
	case enums.PaymentOutcomeTimedOut:
		s.deps.Logger.Info(ctx, "checkout.payment_timed_out")
		s.deps.UI.Notify(ctx, prompts.Info(messagePaymentTimeout))
		return session.abandon(), nil
	default:
		s.deps.Logger.Info(ctx, "checkout.payment_dismissed")
		return session.abandon(), nil
	}
}

// paymentOrderKey ties the payment order to the amount it was created for,
// so a retry after the cart changed never gets the stale order back.
func paymentOrderKey(sessionKey string, amount int64) string {
	return fmt.Sprintf("%s:%d", sessionKey, amount)
}

func (s *service) verify(ctx context.Context, session *Session, att attempt, current cart.Cart, proof storefront.PaymentProof, paymentOrderID string) (View, error) {
	if proof.OrderID == "" {
		proof.OrderID = paymentOrderID
	}
	req := s.orderRequest(att, current)
	verification, err := s.deps.API.VerifyPayment(ctx, att.idempotencyKey, storefront.VerifyRequest{
		PaymentProof:    proof,
		ShippingAddress: req.ShippingAddress,
		Items:           req.Items,
		TotalAmount:     req.TotalAmount,
	})
	if err == nil && !verification.Verified {
		message := verification.Message
		if message == "" {
			message = messageVerifyFailed
		}
		err = pkgerrors.New(pkgerrors.CodePayment, message)
	}
	if err != nil {
		return s.fail(ctx, session, att, "checkout.verify_failed", err, messageVerifyFailed)
	}
	orderID := verification.OrderID
	if orderID == "" {
		orderID = proof.OrderID
	}
	return s.complete(ctx, session, att, orderID), nil
}

func (s *service) paymentFailed(ctx context.Context, session *Session, att attempt, paymentOrderID string, failure *WidgetFailure) (View, error) {
	report := storefront.PaymentFailure{OrderID: paymentOrderID}
	message := messagePaymentFailed
	if failure != nil {
		report.PaymentID = failure.PaymentID
		report.Code = failure.Code
		report.Description = failure.Description
		report.Reason = failure.Reason
		if failure.Description != "" {
			message = failure.Description
		}
	}
	if err := s.deps.API.ReportPaymentFailure(ctx, report); err != nil {
		s.deps.Logger.Error(s.deps.Logger.WithField(ctx, "error_dump", pkgerrors.Dump(err)), "checkout.failure_report_failed", err)
	}
	return s.fail(ctx, session, att, "checkout.payment_failed", pkgerrors.New(pkgerrors.CodePayment, message), message)
}

func (s *service) fail(ctx context.Context, session *Session, att attempt, event string, err error, fallback string) (View, error) {
	s.deps.Reporter.Report(ctx, event, err, fallback)
	s.deps.Metrics.IncFailed(att.method.String())
	return session.failed(pkgerrors.UserMessage(err, fallback)), err
}

// complete runs the post-order cleanup. Clearing the carts is best effort:
// the order already exists, so failures are only logged.
func (s *service) complete(ctx context.Context, session *Session, att attempt, orderID string) View {
	ctx = s.deps.Logger.WithOrderID(ctx, orderID)

	var errs error
	errs = multierr.Append(errs, s.deps.Cart.Discard(ctx))
	if s.deps.GuestCart != nil {
		errs = multierr.Append(errs, s.deps.GuestCart.Clear(ctx))
	}
	if errs != nil {
		s.deps.Logger.Warn(s.deps.Logger.WithField(ctx, "error", errs.Error()), "checkout.cart_cleanup_failed")
	}
	if s.deps.Observer != nil {
		s.deps.Observer.CartChanged(ctx, cart.Event{
			Subject:    att.userID,
			Reason:     cart.ReasonOrderPlaced,
			OccurredAt: s.now().UTC(),
		})
	}

	s.deps.Metrics.IncPlaced(att.method.String())
	s.deps.Logger.Info(ctx, "checkout.order_placed")
	s.deps.UI.Notify(ctx, prompts.Success(messageOrderPlaced))
	s.deps.UI.Navigate(ctx, prompts.RouteOrderHistory)
	return session.placed(orderID)
}

func (s *service) orderRequest(att attempt, current cart.Cart) storefront.OrderRequest {
	lines := make([]storefront.OrderLine, 0, len(current.Items))
	for _, item := range current.Items {
		lines = append(lines, storefront.OrderLine{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			Price:     item.UnitPrice,
			ImageRef:  item.ImageRef,
		})
	}
	return storefront.OrderRequest{
		UserID:          att.userID,
		Items:           lines,
		ShippingAddress: att.address,
		PaymentMethod:   att.method.String(),
		ItemsTotal:      current.Totals.Items,
		ShippingFee:     current.Totals.Shipping,
		HandlingFee:     current.Totals.Handling,
		TotalAmount:     current.Totals.Grand,
	}
}
