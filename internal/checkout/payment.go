package checkout

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/storefront"
)

// ScriptLoader makes the hosted payment widget available. Implementations
// must be safe to call repeatedly; a failed load may be retried.
type ScriptLoader interface {
	Load(ctx context.Context) error
}

// OnceLoader runs load until it succeeds once and then short-circuits.
type OnceLoader struct {
	mu      sync.Mutex
	loaded  bool
	timeout time.Duration
	load    func(ctx context.Context) error
}

func NewOnceLoader(timeout time.Duration, load func(ctx context.Context) error) *OnceLoader {
	return &OnceLoader{timeout: timeout, load: load}
}

func (l *OnceLoader) Load(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.loaded {
		return nil
	}
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}
	if err := l.load(ctx); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment script unavailable")
	}
	l.loaded = true
	return nil
}

// Loaded reports whether a load has succeeded.
func (l *OnceLoader) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loaded
}

// NewScriptProbe returns a loader that fetches the widget script once to
// make sure the provider is reachable before a payment order is created.
func NewScriptProbe(client *http.Client, scriptURL string, timeout time.Duration) (*OnceLoader, error) {
	scriptURL = strings.TrimSpace(scriptURL)
	if scriptURL == "" {
		return nil, fmt.Errorf("payment script url required")
	}
	if client == nil {
		client = http.DefaultClient
	}
	return NewOnceLoader(timeout, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, scriptURL, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("payment script returned status %d", resp.StatusCode)
		}
		return nil
	}), nil
}

// WidgetRequest is what the browser needs to open the hosted widget.
type WidgetRequest struct {
	SessionID    string  `json:"sessionId"`
	KeyID        string  `json:"key"`
	OrderID      string  `json:"orderId"`
	Amount       int64   `json:"amount"`
	Currency     string  `json:"currency"`
	MerchantName string  `json:"name"`
	ScriptURL    string  `json:"scriptUrl,omitempty"`
	Prefill      Prefill `json:"prefill"`
}

type Prefill struct {
	Name    string `json:"name,omitempty"`
	Contact string `json:"contact,omitempty"`
}

// WidgetFailure is the provider's description of a failed payment.
type WidgetFailure struct {
	PaymentID   string `json:"paymentId,omitempty"`
	Code        string `json:"code,omitempty"`
	Description string `json:"description,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// WidgetResult is how a widget session ended.
type WidgetResult struct {
	Outcome enums.PaymentOutcome    `json:"outcome"`
	Proof   storefront.PaymentProof `json:"proof"`
	Failure *WidgetFailure          `json:"failure,omitempty"`
}

// Widget opens the hosted payment widget and waits for its outcome. Open
// returns ctx.Err() when the context ends first.
type Widget interface {
	Open(ctx context.Context, req WidgetRequest) (WidgetResult, error)
}

// CallbackWidget parks Open until the browser posts the widget's outcome
// back through Deliver.
type CallbackWidget struct {
	mu      sync.Mutex
	parked  map[string]*parkedPayment
	changed chan struct{}
}

type parkedPayment struct {
	request WidgetRequest
	result  chan WidgetResult
}

func NewCallbackWidget() *CallbackWidget {
	return &CallbackWidget{
		parked:  make(map[string]*parkedPayment),
		changed: make(chan struct{}),
	}
}

func (w *CallbackWidget) Open(ctx context.Context, req WidgetRequest) (WidgetResult, error) {
	if req.SessionID == "" {
		return WidgetResult{}, pkgerrors.New(pkgerrors.CodeValidation, "checkout session id required")
	}
	parked := &parkedPayment{request: req, result: make(chan WidgetResult, 1)}

	w.mu.Lock()
	if _, exists := w.parked[req.SessionID]; exists {
		w.mu.Unlock()
		return WidgetResult{}, pkgerrors.New(pkgerrors.CodeConflict, "payment window already open")
	}
	w.parked[req.SessionID] = parked
	w.broadcastLocked()
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		if w.parked[req.SessionID] == parked {
			delete(w.parked, req.SessionID)
		}
		w.mu.Unlock()
	}()

	select {
	case result := <-parked.result:
		return result, nil
	case <-ctx.Done():
		return WidgetResult{}, ctx.Err()
	}
}

// Deliver hands the outcome to the waiting Open call for sessionID.
func (w *CallbackWidget) Deliver(sessionID string, result WidgetResult) error {
	if !result.Outcome.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown payment outcome")
	}
	w.mu.Lock()
	parked, ok := w.parked[sessionID]
	w.mu.Unlock()
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "no payment window is open for this checkout")
	}
	select {
	case parked.result <- result:
		return nil
	default:
		return pkgerrors.New(pkgerrors.CodeConflict, "payment outcome already received")
	}
}

// AwaitOpen blocks until Open has been called for sessionID and returns the
// request it was called with.
func (w *CallbackWidget) AwaitOpen(ctx context.Context, sessionID string) (WidgetRequest, error) {
	for {
		w.mu.Lock()
		if parked, ok := w.parked[sessionID]; ok {
			w.mu.Unlock()
			return parked.request, nil
		}
		changed := w.changed
		w.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return WidgetRequest{}, ctx.Err()
		}
	}
}

func (w *CallbackWidget) broadcastLocked() {
	close(w.changed)
	w.changed = make(chan struct{})
}
