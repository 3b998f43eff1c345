package cart

import (
	"context"
	"io"
	"testing"

	"github.com/angelmondragon/storefront/internal/guestcart"
	"github.com/angelmondragon/storefront/internal/prompts"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/pricing"
	"github.com/angelmondragon/storefront/pkg/storefront"
	"github.com/shopspring/decimal"
)

type stubAPI struct {
	lines    []storefront.CartLine
	total    *decimal.Decimal
	getErr   error
	writeErr error
	addErrs  map[string]error

	gets    int
	adds    map[string]int
	updates []int
	removes []string
	clears  int
}

func newStubAPI() *stubAPI {
	return &stubAPI{adds: map[string]int{}}
}

func (s *stubAPI) GetCart(context.Context) (*storefront.ServerCart, error) {
	s.gets++
	if s.getErr != nil {
		return nil, s.getErr
	}
	lines := append([]storefront.CartLine(nil), s.lines...)
	return &storefront.ServerCart{Lines: lines, ItemsTotal: s.total}, nil
}

func (s *stubAPI) AddCartItem(_ context.Context, productID string, quantity int) error {
	if err := s.addErrs[productID]; err != nil {
		return err
	}
	if s.writeErr != nil {
		return s.writeErr
	}
	s.adds[productID] += quantity
	return nil
}

func (s *stubAPI) UpdateCartItem(_ context.Context, cartItemID string, quantity int) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	s.updates = append(s.updates, quantity)
	for i := range s.lines {
		if s.lines[i].CartItemID == cartItemID {
			s.lines[i].Quantity = quantity
		}
	}
	return nil
}

func (s *stubAPI) RemoveCartItem(_ context.Context, cartItemID string) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	s.removes = append(s.removes, cartItemID)
	kept := s.lines[:0]
	for _, line := range s.lines {
		if line.CartItemID != cartItemID {
			kept = append(kept, line)
		}
	}
	s.lines = kept
	return nil
}

func (s *stubAPI) ClearCart(context.Context) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	s.clears++
	s.lines = nil
	return nil
}

func (s *stubAPI) calls() int {
	total := s.clears + len(s.updates) + len(s.removes)
	for _, qty := range s.adds {
		total += qty
	}
	return total
}

func line(id, productID, price string, qty int) storefront.CartLine {
	return storefront.CartLine{
		CartItemID: id,
		Product: storefront.Product{
			ID:         productID,
			Name:       "product " + productID,
			FinalPrice: decimal.RequireFromString(price),
			ListPrice:  decimal.RequireFromString(price),
		},
		Quantity: qty,
	}
}

func newTestService(t *testing.T, api API, confirmed bool, opts ...Option) (Service, *prompts.Recorder) {
	t.Helper()
	rec := prompts.NewRecorder(confirmed)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	svc, err := NewService(api, rec, prompts.NewFailureReporter(rec, logg, nil), pricing.DefaultCalculator(), logg, opts...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, rec
}

func TestNewServiceRequiresDeps(t *testing.T) {
	logg := logger.New(logger.Options{Output: io.Discard})
	rec := prompts.NewRecorder(false)
	if _, err := NewService(nil, rec, prompts.NewFailureReporter(rec, logg, nil), pricing.DefaultCalculator(), logg); err == nil {
		t.Fatal("expected error without api")
	}
	if _, err := NewService(newStubAPI(), rec, nil, pricing.DefaultCalculator(), logg); err == nil {
		t.Fatal("expected error without reporter")
	}
}

func TestFetchCartComputesTotals(t *testing.T) {
	api := newStubAPI()
	api.lines = []storefront.CartLine{line("c1", "p1", "150", 1), line("c2", "p2", "200", 2)}
	svc, _ := newTestService(t, api, false)

	cart, err := svc.FetchCart(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(cart.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(cart.Items))
	}
	if !cart.Totals.Items.Equal(decimal.NewFromInt(550)) {
		t.Fatalf("unexpected items total %s", cart.Totals.Items)
	}
	if !cart.Totals.Grand.Equal(decimal.NewFromInt(620)) {
		t.Fatalf("unexpected grand total %s", cart.Totals.Grand)
	}
	if _, drift := cart.Drift(); drift {
		t.Fatal("no drift expected without server aggregate")
	}
}

func TestFetchCartPrefersServerAggregate(t *testing.T) {
	api := newStubAPI()
	api.lines = []storefront.CartLine{line("c1", "p1", "100", 1)}
	server := decimal.NewFromInt(90)
	api.total = &server
	svc, _ := newTestService(t, api, false)

	cart, err := svc.FetchCart(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !cart.Totals.Items.Equal(server) {
		t.Fatalf("expected server aggregate, got %s", cart.Totals.Items)
	}
	drift, ok := cart.Drift()
	if !ok || !drift.Equal(decimal.NewFromInt(-10)) {
		t.Fatalf("expected drift of -10, got %s (%v)", drift, ok)
	}
}

func TestFetchCartFailureYieldsEmptyCartAndNotice(t *testing.T) {
	api := newStubAPI()
	api.getErr = pkgerrors.Wrap(pkgerrors.CodeDependency, io.ErrUnexpectedEOF, "get cart request failed")
	svc, rec := newTestService(t, api, false)

	cart, err := svc.FetchCart(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !cart.IsEmpty() || !cart.Totals.Grand.Equal(decimal.NewFromInt(70)) {
		t.Fatalf("expected empty cart with fixed charges, got %+v", cart.Totals)
	}
	notices := rec.Meta().Notices
	if len(notices) != 1 || notices[0].Severity != prompts.SeverityError {
		t.Fatalf("expected one error notice, got %+v", notices)
	}
}

func TestChangeQuantityBelowOneMakesNoCall(t *testing.T) {
	api := newStubAPI()
	api.lines = []storefront.CartLine{line("c1", "p1", "150", 1)}
	svc, rec := newTestService(t, api, false)

	cart, err := svc.ChangeQuantity(context.Background(), "c1", 1, -1)
	if err != nil {
		t.Fatalf("change: %v", err)
	}
	if cart != nil {
		t.Fatalf("expected nil cart for a rejected change")
	}
	if api.calls() != 0 || api.gets != 0 {
		t.Fatalf("expected no calls, got writes=%d gets=%d", api.calls(), api.gets)
	}
	if len(rec.Meta().Notices) != 0 {
		t.Fatal("expected no notice")
	}
}

func TestChangeQuantityRefetches(t *testing.T) {
	api := newStubAPI()
	api.lines = []storefront.CartLine{line("c1", "p1", "150", 1)}
	svc, _ := newTestService(t, api, false)

	cart, err := svc.ChangeQuantity(context.Background(), "c1", 1, 2)
	if err != nil {
		t.Fatalf("change: %v", err)
	}
	if len(api.updates) != 1 || api.updates[0] != 3 {
		t.Fatalf("expected update to 3, got %v", api.updates)
	}
	if api.gets != 1 {
		t.Fatalf("expected one refetch, got %d", api.gets)
	}
	if cart == nil || cart.Items[0].Quantity != 3 {
		t.Fatalf("expected refetched quantity 3, got %+v", cart)
	}
}

func TestRemoveItemDeclinedMakesNoCall(t *testing.T) {
	api := newStubAPI()
	api.lines = []storefront.CartLine{line("c1", "p1", "150", 1)}
	svc, rec := newTestService(t, api, false)

	_, err := svc.RemoveItem(context.Background(), "c1")
	if !pkgerrors.Is(err, pkgerrors.CodeConfirmation) {
		t.Fatalf("expected confirmation error, got %v", err)
	}
	if api.calls() != 0 || api.gets != 0 {
		t.Fatal("expected no calls after decline")
	}
	if len(rec.Prompts()) != 1 {
		t.Fatalf("expected one prompt, got %d", len(rec.Prompts()))
	}
}

func TestRemoveItemConfirmedReflectsServer(t *testing.T) {
	api := newStubAPI()
	api.lines = []storefront.CartLine{line("c1", "p1", "150", 1), line("c2", "p2", "200", 1)}
	var events []Event
	svc, _ := newTestService(t, api, true, WithObserver(ObserverFunc(func(_ context.Context, e Event) {
		events = append(events, e)
	})), WithSubject("user-1"))

	cart, err := svc.RemoveItem(context.Background(), "c1")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(cart.Items) != 1 || cart.Items[0].CartItemID != "c2" {
		t.Fatalf("unexpected cart after remove: %+v", cart.Items)
	}
	if len(events) != 1 || events[0].Reason != ReasonItemRemoved || events[0].Subject != "user-1" {
		t.Fatalf("unexpected events %+v", events)
	}
}

func TestClearAllFailureNotifiesServerMessage(t *testing.T) {
	api := newStubAPI()
	api.writeErr = &storefront.APIError{Operation: "clear cart", Status: 500, Message: "cart service down"}
	svc, rec := newTestService(t, api, true)

	if _, err := svc.ClearAll(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	notices := rec.Meta().Notices
	if len(notices) != 1 || notices[0].Message != "cart service down" {
		t.Fatalf("expected server message notice, got %+v", notices)
	}
	if api.gets != 0 {
		t.Fatal("expected no refetch after failed clear")
	}
}

func TestImportGuestCartGroupsByProduct(t *testing.T) {
	api := newStubAPI()
	svc, _ := newTestService(t, api, false)
	items := []guestcart.Item{
		{ProductID: "p1", UniqueID: "a"},
		{ProductID: "p2", UniqueID: "b"},
		{ProductID: "p1", UniqueID: "c"},
	}

	_, failed, err := svc.ImportGuestCart(context.Background(), items)
	if err != nil || len(failed) != 0 {
		t.Fatalf("import: %v (failed %v)", err, failed)
	}
	if api.adds["p1"] != 2 || api.adds["p2"] != 1 {
		t.Fatalf("unexpected adds %v", api.adds)
	}
	if api.gets != 1 {
		t.Fatalf("expected one refetch, got %d", api.gets)
	}
}

func TestImportGuestCartCombinesFailures(t *testing.T) {
	api := newStubAPI()
	api.addErrs = map[string]error{"p2": pkgerrors.New(pkgerrors.CodeNotFound, "product gone")}
	svc, rec := newTestService(t, api, false)
	items := []guestcart.Item{{ProductID: "p1"}, {ProductID: "p2"}}

	_, failed, err := svc.ImportGuestCart(context.Background(), items)
	if err == nil {
		t.Fatal("expected combined error")
	}
	if len(failed) != 1 || failed[0] != "p2" {
		t.Fatalf("expected only p2 reported as failed, got %v", failed)
	}
	if api.adds["p1"] != 1 {
		t.Fatalf("expected p1 to be imported despite p2 failure")
	}
	if len(rec.Meta().Notices) != 1 {
		t.Fatalf("expected one notice, got %+v", rec.Meta().Notices)
	}
}

func TestAddItemValidatesBeforeCall(t *testing.T) {
	api := newStubAPI()
	svc, _ := newTestService(t, api, false)

	if _, err := svc.AddItem(context.Background(), "p1", 0); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if api.calls() != 0 {
		t.Fatal("expected no call")
	}
}
