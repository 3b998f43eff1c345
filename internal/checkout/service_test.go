package checkout

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/internal/prompts"
	"github.com/angelmondragon/storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/metrics"
	"github.com/angelmondragon/storefront/pkg/pricing"
	"github.com/angelmondragon/storefront/pkg/storefront"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

type stubAPI struct {
	mu sync.Mutex

	placeErr     error
	verification *storefront.Verification
	verifyErr    error

	placed        []storefront.OrderRequest
	placeKeys     []string
	paymentKeys   []string
	paymentOrders []storefront.PaymentOrderRequest
	verifies      []storefront.VerifyRequest
	failures      []storefront.PaymentFailure
}

func (s *stubAPI) PlaceOrder(_ context.Context, key string, req storefront.OrderRequest) (*storefront.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.placeKeys = append(s.placeKeys, key)
	s.placed = append(s.placed, req)
	if s.placeErr != nil {
		return nil, s.placeErr
	}
	return &storefront.Order{ID: "order-1"}, nil
}

func (s *stubAPI) CreatePaymentOrder(_ context.Context, key string, req storefront.PaymentOrderRequest) (*storefront.PaymentOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paymentKeys = append(s.paymentKeys, key)
	s.paymentOrders = append(s.paymentOrders, req)
	return &storefront.PaymentOrder{ID: "pay_order_1", Amount: req.Amount, Currency: req.Currency}, nil
}

func (s *stubAPI) VerifyPayment(_ context.Context, _ string, req storefront.VerifyRequest) (*storefront.Verification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verifies = append(s.verifies, req)
	if s.verifyErr != nil {
		return nil, s.verifyErr
	}
	if s.verification != nil {
		return s.verification, nil
	}
	return &storefront.Verification{Verified: true, OrderID: "order-online"}, nil
}

func (s *stubAPI) ReportPaymentFailure(_ context.Context, failure storefront.PaymentFailure) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, failure)
	return nil
}

func (s *stubAPI) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.placed) + len(s.paymentOrders) + len(s.verifies) + len(s.failures)
}

type stubCart struct {
	mu       sync.Mutex
	discards int
	err      error
}

func (s *stubCart) Discard(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discards++
	return s.err
}

type stubGuest struct {
	clears int
}

func (s *stubGuest) Clear(context.Context) error {
	s.clears++
	return nil
}

type scriptStub struct {
	failures int
	loads    int
}

func (s *scriptStub) load(context.Context) error {
	s.loads++
	if s.failures > 0 {
		s.failures--
		return errors.New("script unreachable")
	}
	return nil
}

type widgetFunc func(ctx context.Context, req WidgetRequest) (WidgetResult, error)

func (f widgetFunc) Open(ctx context.Context, req WidgetRequest) (WidgetResult, error) {
	return f(ctx, req)
}

func resultWidget(result WidgetResult) Widget {
	return widgetFunc(func(context.Context, WidgetRequest) (WidgetResult, error) {
		return result, nil
	})
}

type fixture struct {
	api     *stubAPI
	cart    *stubCart
	guest   *stubGuest
	scripts *scriptStub
	rec     *prompts.Recorder
	reg     *prometheus.Registry
	svc     Service
	session *Session
}

func newFixture(t *testing.T, widget Widget, opts Options) *fixture {
	t.Helper()
	f := &fixture{
		api:     &stubAPI{},
		cart:    &stubCart{},
		guest:   &stubGuest{},
		scripts: &scriptStub{},
		rec:     prompts.NewRecorder(true),
		reg:     prometheus.NewRegistry(),
	}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	svc, err := NewService(Deps{
		API:       f.api,
		Cart:      f.cart,
		GuestCart: f.guest,
		UI:        f.rec,
		Reporter:  prompts.NewFailureReporter(f.rec, logg, nil),
		Scripts:   NewOnceLoader(time.Second, f.scripts.load),
		Widget:    widget,
		Metrics:   metrics.NewCheckoutMetrics(f.reg),
		Logger:    logg,
	}, opts)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	f.svc = svc
	session, err := NewRegistry(time.Hour).Start("user-1")
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	f.session = session
	return f
}

func (f *fixture) ready(t *testing.T, method enums.PaymentMethod) {
	t.Helper()
	if _, err := f.session.SelectAddress(storefront.Address{ID: "addr-1", Name: "Asha", Phone: "9876543210", City: "Pune"}); err != nil {
		t.Fatalf("select address: %v", err)
	}
	view, err := f.session.ChoosePayment(method)
	if err != nil {
		t.Fatalf("choose payment: %v", err)
	}
	if view.State != enums.CheckoutStatePaymentMethodChosen {
		t.Fatalf("expected payment_method_chosen, got %s", view.State)
	}
}

func twoItemCart() cart.Cart {
	items := []cart.Item{
		{CartItemID: "c1", ProductID: "p1", Name: "Kurta", UnitPrice: decimal.NewFromInt(150), Quantity: 1},
		{CartItemID: "c2", ProductID: "p2", Name: "Scarf", UnitPrice: decimal.NewFromInt(200), Quantity: 2},
	}
	current := cart.Cart{Items: items}
	current.Totals = pricing.DefaultCalculator().Compute(current.Lines(), nil)
	return current
}

func TestPlaceEmptyCartIsBlocked(t *testing.T) {
	f := newFixture(t, resultWidget(WidgetResult{}), Options{})
	f.ready(t, enums.PaymentMethodCOD)

	_, err := f.svc.Place(context.Background(), f.session, cart.Cart{})
	if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if f.api.calls() != 0 {
		t.Fatalf("expected no network call, got %d", f.api.calls())
	}
	meta := f.rec.Meta()
	if len(meta.Notices) != 1 || meta.Notices[0].Severity != prompts.SeverityError {
		t.Fatalf("expected one error notice, got %+v", meta.Notices)
	}
	if meta.Navigation == nil || meta.Navigation.Focus != prompts.SectionAddress {
		t.Fatalf("expected focus on address section, got %+v", meta.Navigation)
	}
}

func TestPlaceWithoutAddressIsBlocked(t *testing.T) {
	f := newFixture(t, resultWidget(WidgetResult{}), Options{})

	_, err := f.svc.Place(context.Background(), f.session, twoItemCart())
	if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if f.api.calls() != 0 {
		t.Fatal("expected no network call")
	}
	if view := f.session.View(); view.State != enums.CheckoutStateAddressRequired {
		t.Fatalf("expected address_required, got %s", view.State)
	}
}

func TestPlaceCashOnDeliverySucceeds(t *testing.T) {
	f := newFixture(t, resultWidget(WidgetResult{}), Options{})
	f.ready(t, enums.PaymentMethodCOD)
	key := f.session.View().IdempotencyKey

	view, err := f.svc.Place(context.Background(), f.session, twoItemCart())
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if view.State != enums.CheckoutStateOrderPlaced || view.OrderID != "order-1" {
		t.Fatalf("unexpected view %+v", view)
	}
	if len(f.api.placed) != 1 || f.api.placeKeys[0] != key {
		t.Fatalf("expected one order with the session key, got %v", f.api.placeKeys)
	}
	req := f.api.placed[0]
	if req.PaymentMethod != "COD" || req.UserID != "user-1" || len(req.Items) != 2 {
		t.Fatalf("unexpected order payload %+v", req)
	}
	if !req.TotalAmount.Equal(decimal.NewFromInt(620)) || !req.ItemsTotal.Equal(decimal.NewFromInt(550)) {
		t.Fatalf("unexpected totals %s/%s", req.ItemsTotal, req.TotalAmount)
	}
	if f.cart.discards != 1 || f.guest.clears != 1 {
		t.Fatalf("expected both carts cleared, got server=%d guest=%d", f.cart.discards, f.guest.clears)
	}
	meta := f.rec.Meta()
	if meta.Navigation == nil || meta.Navigation.Route != prompts.RouteOrderHistory {
		t.Fatalf("expected navigation to order history, got %+v", meta.Navigation)
	}
	if view.IdempotencyKey == key {
		t.Fatal("expected idempotency key to rotate after placement")
	}
	if got := counterValue(t, f.reg, "checkout_orders_placed_total"); got != 1 {
		t.Fatalf("expected placed=1, got %f", got)
	}
}

func TestPlaceCashOnDeliveryCleanupFailureStillPlaces(t *testing.T) {
	f := newFixture(t, resultWidget(WidgetResult{}), Options{})
	f.cart.err = errors.New("cart service down")
	f.ready(t, enums.PaymentMethodCOD)

	view, err := f.svc.Place(context.Background(), f.session, twoItemCart())
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if view.State != enums.CheckoutStateOrderPlaced {
		t.Fatalf("expected order_placed, got %s", view.State)
	}
	if f.guest.clears != 1 {
		t.Fatal("expected guest cart cleared despite server failure")
	}
}

func TestPlaceCashOnDeliveryFailureIsRetryable(t *testing.T) {
	f := newFixture(t, resultWidget(WidgetResult{}), Options{})
	f.api.placeErr = pkgerrors.Wrap(pkgerrors.CodeConflict, &storefront.APIError{Operation: "place order", Status: 409, Message: "Product out of stock"}, "place order failed")
	f.ready(t, enums.PaymentMethodCOD)

	view, err := f.svc.Place(context.Background(), f.session, twoItemCart())
	if err == nil {
		t.Fatal("expected error")
	}
	if view.State != enums.CheckoutStateOrderFailed || view.Failure != "Product out of stock" {
		t.Fatalf("unexpected view %+v", view)
	}
	if f.cart.discards != 0 {
		t.Fatal("cart must not be cleared after a failed order")
	}
	notices := f.rec.Meta().Notices
	if len(notices) != 1 || notices[0].Message != "Product out of stock" {
		t.Fatalf("expected server message verbatim, got %+v", notices)
	}

	f.api.placeErr = nil
	view, err = f.svc.Place(context.Background(), f.session, twoItemCart())
	if err != nil || view.State != enums.CheckoutStateOrderPlaced {
		t.Fatalf("expected retry to succeed, got %s (%v)", view.State, err)
	}
	if f.api.placeKeys[0] != f.api.placeKeys[1] {
		t.Fatal("expected retry to reuse the idempotency key")
	}
}

func TestPlaceOnlineSucceeds(t *testing.T) {
	var opened WidgetRequest
	widget := widgetFunc(func(_ context.Context, req WidgetRequest) (WidgetResult, error) {
		opened = req
		return WidgetResult{
			Outcome: enums.PaymentOutcomeSucceeded,
			Proof:   storefront.PaymentProof{OrderID: req.OrderID, PaymentID: "pay_1", Signature: "sig"},
		}, nil
	})
	f := newFixture(t, widget, Options{KeyID: "rzp_test", MerchantName: "Storefront"})
	f.ready(t, enums.PaymentMethodOnline)

	view, err := f.svc.Place(context.Background(), f.session, twoItemCart())
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if len(f.api.paymentOrders) != 1 || f.api.paymentOrders[0].Amount != 62000 || f.api.paymentOrders[0].Currency != "INR" {
		t.Fatalf("unexpected payment order %+v", f.api.paymentOrders)
	}
	if opened.OrderID != "pay_order_1" || opened.KeyID != "rzp_test" || opened.Prefill.Contact != "9876543210" {
		t.Fatalf("unexpected widget request %+v", opened)
	}
	if len(f.api.verifies) != 1 || f.api.verifies[0].PaymentID != "pay_1" || f.api.verifies[0].ShippingAddress.ID != "addr-1" {
		t.Fatalf("unexpected verify payload %+v", f.api.verifies)
	}
	if len(f.api.placed) != 0 {
		t.Fatal("online orders are created by verification, not by the order endpoint")
	}
	if view.State != enums.CheckoutStateOrderPlaced || view.OrderID != "order-online" {
		t.Fatalf("unexpected view %+v", view)
	}
	if f.cart.discards != 1 {
		t.Fatal("expected cart cleared after verification")
	}
}

func TestPlaceOnlineVerificationFailureKeepsCart(t *testing.T) {
	widget := resultWidget(WidgetResult{
		Outcome: enums.PaymentOutcomeSucceeded,
		Proof:   storefront.PaymentProof{OrderID: "pay_order_1", PaymentID: "pay_1", Signature: "bad"},
	})
	f := newFixture(t, widget, Options{})
	f.api.verification = &storefront.Verification{Verified: false, Message: "Invalid payment signature"}
	f.ready(t, enums.PaymentMethodOnline)

	view, err := f.svc.Place(context.Background(), f.session, twoItemCart())
	if !pkgerrors.Is(err, pkgerrors.CodePayment) {
		t.Fatalf("expected payment error, got %v", err)
	}
	if view.State != enums.CheckoutStateOrderFailed {
		t.Fatalf("expected order_failed, got %s", view.State)
	}
	if f.cart.discards != 0 || f.guest.clears != 0 {
		t.Fatal("cart must remain after failed verification")
	}
	if len(f.api.placed) != 0 {
		t.Fatal("no order may be created")
	}
	notices := f.rec.Meta().Notices
	if len(notices) != 1 || notices[0].Severity != prompts.SeverityError || notices[0].Message != "Invalid payment signature" {
		t.Fatalf("expected error notice, got %+v", notices)
	}
}

func TestPlaceOnlineDismissedKeepsState(t *testing.T) {
	f := newFixture(t, resultWidget(WidgetResult{Outcome: enums.PaymentOutcomeDismissed}), Options{})
	f.ready(t, enums.PaymentMethodOnline)

	view, err := f.svc.Place(context.Background(), f.session, twoItemCart())
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if view.State != enums.CheckoutStatePaymentMethodChosen {
		t.Fatalf("expected payment_method_chosen, got %s", view.State)
	}
	if len(f.rec.Meta().Notices) != 0 {
		t.Fatal("dismissal should not notify")
	}
	if len(f.api.verifies) != 0 {
		t.Fatal("expected no verification")
	}
}

func TestPaymentOrderKeyFollowsAmount(t *testing.T) {
	f := newFixture(t, resultWidget(WidgetResult{Outcome: enums.PaymentOutcomeDismissed}), Options{})
	f.ready(t, enums.PaymentMethodOnline)
	ctx := context.Background()

	if _, err := f.svc.Place(ctx, f.session, twoItemCart()); err != nil {
		t.Fatalf("first place: %v", err)
	}
	if _, err := f.svc.Place(ctx, f.session, twoItemCart()); err != nil {
		t.Fatalf("retry place: %v", err)
	}
	grown := twoItemCart()
	grown.Items[0].Quantity = 2
	grown.Totals = pricing.DefaultCalculator().Compute(grown.Lines(), nil)
	if _, err := f.svc.Place(ctx, f.session, grown); err != nil {
		t.Fatalf("place after cart change: %v", err)
	}

	keys := f.api.paymentKeys
	if len(keys) != 3 {
		t.Fatalf("expected three payment orders, got %d", len(keys))
	}
	if keys[0] != keys[1] {
		t.Fatalf("same amount should reuse the key, got %q and %q", keys[0], keys[1])
	}
	if keys[2] == keys[0] {
		t.Fatalf("a new amount needs a new key, got %q twice", keys[2])
	}
	if f.api.paymentOrders[2].Amount != 77000 {
		t.Fatalf("expected the new grand total in minor units, got %d", f.api.paymentOrders[2].Amount)
	}
}

func TestPlaceOnlineTimeoutNotifies(t *testing.T) {
	widget := widgetFunc(func(ctx context.Context, _ WidgetRequest) (WidgetResult, error) {
		<-ctx.Done()
		return WidgetResult{}, ctx.Err()
	})
	f := newFixture(t, widget, Options{PaymentTimeout: 10 * time.Millisecond})
	f.ready(t, enums.PaymentMethodOnline)

	view, err := f.svc.Place(context.Background(), f.session, twoItemCart())
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if view.State != enums.CheckoutStatePaymentMethodChosen {
		t.Fatalf("expected payment_method_chosen, got %s", view.State)
	}
	notices := f.rec.Meta().Notices
	if len(notices) != 1 || notices[0].Severity != prompts.SeverityInfo {
		t.Fatalf("expected info notice, got %+v", notices)
	}
}

func TestPlaceOnlineWidgetFailureIsReported(t *testing.T) {
	widget := resultWidget(WidgetResult{
		Outcome: enums.PaymentOutcomeFailed,
		Failure: &WidgetFailure{PaymentID: "pay_2", Code: "BAD_REQUEST_ERROR", Description: "Card declined by bank"},
	})
	f := newFixture(t, widget, Options{})
	f.ready(t, enums.PaymentMethodOnline)

	view, err := f.svc.Place(context.Background(), f.session, twoItemCart())
	if !pkgerrors.Is(err, pkgerrors.CodePayment) {
		t.Fatalf("expected payment error, got %v", err)
	}
	if len(f.api.failures) != 1 || f.api.failures[0].OrderID != "pay_order_1" || f.api.failures[0].PaymentID != "pay_2" {
		t.Fatalf("unexpected failure report %+v", f.api.failures)
	}
	if view.State != enums.CheckoutStateOrderFailed || view.Failure != "Card declined by bank" {
		t.Fatalf("unexpected view %+v", view)
	}
}

func TestPlaceOnlineScriptFailureIsRetryable(t *testing.T) {
	f := newFixture(t, resultWidget(WidgetResult{Outcome: enums.PaymentOutcomeDismissed}), Options{})
	f.scripts.failures = 1
	f.ready(t, enums.PaymentMethodOnline)

	view, err := f.svc.Place(context.Background(), f.session, twoItemCart())
	if err == nil {
		t.Fatal("expected script load error")
	}
	if view.State != enums.CheckoutStatePaymentMethodChosen || len(f.api.paymentOrders) != 0 {
		t.Fatalf("expected no payment order after script failure, got %s", view.State)
	}

	if _, err := f.svc.Place(context.Background(), f.session, twoItemCart()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if _, err := f.svc.Place(context.Background(), f.session, twoItemCart()); err != nil {
		t.Fatalf("third attempt: %v", err)
	}
	if f.scripts.loads != 2 {
		t.Fatalf("expected script loaded once after the failure, got %d loads", f.scripts.loads)
	}
}

func TestConcurrentSubmissionIsRejected(t *testing.T) {
	widget := NewCallbackWidget()
	f := newFixture(t, widget, Options{})
	f.ready(t, enums.PaymentMethodOnline)

	type outcome struct {
		view View
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		view, err := f.svc.Place(context.Background(), f.session, twoItemCart())
		done <- outcome{view, err}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := widget.AwaitOpen(ctx, f.session.ID())
	if err != nil {
		t.Fatalf("await open: %v", err)
	}
	if f.session.View().PendingPayment == nil {
		t.Fatal("expected pending payment on the session")
	}

	if _, err := f.svc.Place(context.Background(), f.session, twoItemCart()); !pkgerrors.Is(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict for concurrent submission, got %v", err)
	}
	if len(f.api.paymentOrders) != 1 {
		t.Fatalf("expected a single payment order, got %d", len(f.api.paymentOrders))
	}

	err = widget.Deliver(f.session.ID(), WidgetResult{
		Outcome: enums.PaymentOutcomeSucceeded,
		Proof:   storefront.PaymentProof{OrderID: req.OrderID, PaymentID: "pay_1", Signature: "sig"},
	})
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	view, err := f.session.Await(ctx)
	if err != nil {
		t.Fatalf("await: %v", err)
	}
	if view.State != enums.CheckoutStateOrderPlaced {
		t.Fatalf("expected order_placed, got %s", view.State)
	}
	if res := <-done; res.err != nil {
		t.Fatalf("place: %v", res.err)
	}
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var total float64
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
	}
	return total
}

func TestDetachedPlaceIsTrackedOnSession(t *testing.T) {
	widget := NewCallbackWidget()
	f := newFixture(t, widget, Options{})
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	ui := prompts.NewContextUI(logg)
	svc, err := NewService(Deps{
		API:      f.api,
		Cart:     f.cart,
		UI:       ui,
		Reporter: prompts.NewFailureReporter(ui, logg, nil),
		Scripts:  NewOnceLoader(time.Second, f.scripts.load),
		Widget:   widget,
		Logger:   logg,
	}, Options{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	f.ready(t, enums.PaymentMethodOnline)

	reqCtx, cancelReq := context.WithCancel(context.Background())
	placeCtx, rec := Detach(reqCtx)
	done := make(chan error, 1)
	go func() {
		_, err := svc.Place(placeCtx, f.session, twoItemCart())
		done <- err
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := widget.AwaitOpen(ctx, f.session.ID())
	if err != nil {
		t.Fatalf("await open: %v", err)
	}
	if !f.session.Busy() {
		t.Fatal("expected submission in flight")
	}
	cancelReq()

	if err := widget.Deliver(f.session.ID(), WidgetResult{
		Outcome: enums.PaymentOutcomeSucceeded,
		Proof:   storefront.PaymentProof{OrderID: req.OrderID, PaymentID: "pay_1", Signature: "sig"},
	}); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("place should survive the request ending: %v", err)
	}

	tracked := f.session.Tracked()
	if tracked != rec {
		t.Fatal("expected the detached recorder to be tracked")
	}
	meta := tracked.Meta()
	if meta.Navigation == nil || meta.Navigation.Route != prompts.RouteOrderHistory {
		t.Fatalf("expected navigation recorded in background, got %+v", meta.Navigation)
	}
	if f.session.Tracked() != nil {
		t.Fatal("tracked recorder should be handed out once")
	}

	f.session.Track(rec)
	f.session.Untrack(prompts.NewRecorder(true))
	if f.session.Tracked() != rec {
		t.Fatal("untrack must only clear the same recorder")
	}
}
