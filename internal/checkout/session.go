package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/angelmondragon/storefront/internal/prompts"
	"github.com/angelmondragon/storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/storefront"
	"github.com/google/uuid"
)

// Session is one shopper's pass through checkout. It is safe for concurrent
// use; at most one submission runs at a time.
type Session struct {
	mu sync.Mutex

	id             string
	userID         string
	state          enums.CheckoutState
	address        *storefront.Address
	method         enums.PaymentMethod
	idempotencyKey string
	inFlight       bool
	orderID        string
	failure        string
	pending        *WidgetRequest
	settled        chan struct{}
	background     *prompts.Recorder
	createdAt      time.Time
	touchedAt      time.Time
}

// View is a point-in-time copy of a session.
type View struct {
	ID             string              `json:"id"`
	State          enums.CheckoutState `json:"state"`
	Address        *storefront.Address `json:"address,omitempty"`
	AddressID      string              `json:"addressId,omitempty"`
	PaymentMethod  enums.PaymentMethod `json:"paymentMethod,omitempty"`
	IdempotencyKey string              `json:"idempotencyKey"`
	OrderID        string              `json:"orderId,omitempty"`
	Failure        string              `json:"failure,omitempty"`
	PendingPayment *WidgetRequest      `json:"pendingPayment,omitempty"`
}

func newSession(userID string, now time.Time) *Session {
	return &Session{
		id:             uuid.NewString(),
		userID:         userID,
		state:          enums.CheckoutStateAddressRequired,
		idempotencyKey: uuid.NewString(),
		createdAt:      now,
		touchedAt:      now,
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) UserID() string {
	return s.userID
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() View {
	view := View{
		ID:             s.id,
		State:          s.state,
		PaymentMethod:  s.method,
		IdempotencyKey: s.idempotencyKey,
		OrderID:        s.orderID,
		Failure:        s.failure,
	}
	if s.address != nil {
		addr := *s.address
		view.Address = &addr
		view.AddressID = addr.ID
	}
	if s.pending != nil {
		pending := *s.pending
		view.PendingPayment = &pending
	}
	return view
}

// SelectAddress records the shipping address snapshot.
func (s *Session) SelectAddress(addr storefront.Address) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked(); err != nil {
		return s.viewLocked(), err
	}
	s.address = &addr
	s.settleLocked()
	return s.viewLocked(), nil
}

// ChoosePayment records the payment method.
func (s *Session) ChoosePayment(method enums.PaymentMethod) (View, error) {
	if !method.IsValid() {
		return s.View(), pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment method")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked(); err != nil {
		return s.viewLocked(), err
	}
	s.method = method
	s.settleLocked()
	return s.viewLocked(), nil
}

func (s *Session) editableLocked() error {
	switch {
	case s.state == enums.CheckoutStateOrderPlaced:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order already placed")
	case s.inFlight:
		return pkgerrors.New(pkgerrors.CodeConflict, "order submission in progress")
	}
	return nil
}

// settleLocked derives the pre-submission state from what has been chosen.
func (s *Session) settleLocked() {
	switch {
	case s.address == nil:
		s.state = enums.CheckoutStateAddressRequired
	case s.method == "":
		s.state = enums.CheckoutStateAddressSelected
	default:
		s.state = enums.CheckoutStatePaymentMethodChosen
	}
	s.failure = ""
}

type attempt struct {
	userID         string
	address        storefront.Address
	method         enums.PaymentMethod
	idempotencyKey string
}

// begin claims the session for one submission.
func (s *Session) begin() (attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return attempt{}, pkgerrors.New(pkgerrors.CodeConflict, "order submission already in progress")
	}
	if s.state == enums.CheckoutStateOrderPlaced {
		return attempt{}, pkgerrors.New(pkgerrors.CodeStateConflict, "order already placed")
	}
	if s.address == nil {
		return attempt{}, pkgerrors.New(pkgerrors.CodeValidation, "Please select a shipping address.")
	}
	if s.method == "" {
		return attempt{}, pkgerrors.New(pkgerrors.CodeValidation, "Please choose a payment method.")
	}
	s.inFlight = true
	s.settled = make(chan struct{})
	s.state = enums.CheckoutStateOrderSubmitting
	s.failure = ""
	return attempt{
		userID:         s.userID,
		address:        *s.address,
		method:         s.method,
		idempotencyKey: s.idempotencyKey,
	}, nil
}

func (s *Session) setPending(req *WidgetRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = req
}

// placed ends the submission successfully and rotates the idempotency key
// so that a new checkout cannot collide with the finished one.
func (s *Session) placed(orderID string) View {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked()
	s.state = enums.CheckoutStateOrderPlaced
	s.orderID = orderID
	s.idempotencyKey = uuid.NewString()
	return s.viewLocked()
}

// failed ends the submission in the retryable failure state.
func (s *Session) failed(message string) View {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked()
	s.state = enums.CheckoutStateOrderFailed
	s.failure = message
	return s.viewLocked()
}

// abandon releases the submission without a transition, as when the
// shopper closes the payment window.
func (s *Session) abandon() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked()
	s.settleLocked()
	return s.viewLocked()
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchedAt = now
}

func (s *Session) expired(now time.Time, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight || ttl <= 0 {
		return false
	}
	return now.Sub(s.touchedAt) > ttl
}

func (s *Session) releaseLocked() {
	s.inFlight = false
	s.pending = nil
	if s.settled != nil {
		close(s.settled)
		s.settled = nil
	}
}

// Busy reports whether a submission is running.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// Await blocks until no submission is running or ctx ends.
func (s *Session) Await(ctx context.Context) (View, error) {
	s.mu.Lock()
	settled := s.settled
	if !s.inFlight || settled == nil {
		view := s.viewLocked()
		s.mu.Unlock()
		return view, nil
	}
	s.mu.Unlock()

	select {
	case <-settled:
		return s.View(), nil
	case <-ctx.Done():
		return s.View(), ctx.Err()
	}
}

// Track keeps the recorder a detached submission reports into so a later
// request can replay what was surfaced.
func (s *Session) Track(rec *prompts.Recorder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.background = rec
}

// Untrack forgets rec if it is still the tracked recorder.
func (s *Session) Untrack(rec *prompts.Recorder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.background == rec {
		s.background = nil
	}
}

// Tracked returns and forgets the recorder set by Track.
func (s *Session) Tracked() *prompts.Recorder {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.background
	s.background = nil
	return rec
}
