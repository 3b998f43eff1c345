package checkout

import (
	"context"
	"net/http"

	"github.com/angelmondragon/storefront/api/middleware"
	"github.com/angelmondragon/storefront/api/responses"
	"github.com/angelmondragon/storefront/api/validators"
	"github.com/angelmondragon/storefront/internal/address"
	"github.com/angelmondragon/storefront/internal/cart"
	checkoutsvc "github.com/angelmondragon/storefront/internal/checkout"
	"github.com/angelmondragon/storefront/internal/prompts"
	"github.com/angelmondragon/storefront/internal/visitor"
	"github.com/angelmondragon/storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/storefront"
)

// Sessions is the checkout session registry.
type Sessions interface {
	Start(userID string) (*checkoutsvc.Session, error)
	Get(id, userID string) (*checkoutsvc.Session, error)
}

// PaymentWindow is the server side of the hosted payment window: the
// request waits for the window to open and the browser reports how it
// closed.
type PaymentWindow interface {
	AwaitOpen(ctx context.Context, sessionID string) (checkoutsvc.WidgetRequest, error)
	Deliver(sessionID string, result checkoutsvc.WidgetResult) error
}

// CheckoutStart opens a session with the default address preselected and
// returns it with the cart and the saved addresses.
func CheckoutStart(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sessions == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout unavailable"))
			return
		}
		v, err := requestVisitor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := sessions.Start(middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := logg.WithSessionID(r.Context(), session.ID())

		addresses, err := v.Addresses.List(ctx)
		if err != nil && pkgerrors.Is(err, pkgerrors.CodeUnauthorized) {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if addr, ok := address.SelectDefault(addresses); ok {
			if _, err := session.SelectAddress(addr); err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
		}

		current, err := v.Cart.FetchCart(ctx)
		if err != nil && pkgerrors.Is(err, pkgerrors.CodeUnauthorized) {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if addresses == nil {
			addresses = []storefront.Address{}
		}

		responses.WriteSuccessStatus(ctx, w, http.StatusCreated, startResponse{
			Session:   session.View(),
			Cart:      current,
			Addresses: addresses,
		})
	}
}

// CheckoutFetch returns the session. Once a background submission has
// finished, whatever it surfaced is delivered with this response.
func CheckoutFetch(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := lookupSession(r, sessions)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if !session.Busy() {
			replay(r.Context(), session.Tracked())
		}
		responses.WriteSuccess(r.Context(), w, session.View())
	}
}

func CheckoutSelectAddress(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := requestVisitor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		session, err := lookupSession(r, sessions)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload selectAddressRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		addr, err := v.Addresses.Find(r.Context(), payload.AddressID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := session.SelectAddress(addr)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(r.Context(), w, view)
	}
}

func CheckoutChoosePayment(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := lookupSession(r, sessions)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload choosePaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		method, err := payload.parse()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := session.ChoosePayment(method)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(r.Context(), w, view)
	}
}

type placeResult struct {
	view checkoutsvc.View
	err  error
}

// CheckoutPlace submits the order for the cart as the backend holds it now.
// Cash on delivery answers 201 once the order exists. An online payment
// answers 202 as soon as the payment window is ready; the submission keeps
// running until the browser posts the window's outcome to the callback.
func CheckoutPlace(sessions Sessions, window PaymentWindow, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if window == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment window unavailable"))
			return
		}
		v, err := requestVisitor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		session, err := lookupSession(r, sessions)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := logg.WithSessionID(r.Context(), session.ID())

		current, err := v.Cart.FetchCart(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if session.View().PaymentMethod != enums.PaymentMethodOnline {
			view, err := v.Checkout.Place(ctx, session, current)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			writePlaced(ctx, w, view)
			return
		}

		if session.Busy() {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "order submission already in progress"))
			return
		}
		placeOnline(ctx, w, logg, v.Checkout, session, current, window)
	}
}

func placeOnline(ctx context.Context, w http.ResponseWriter, logg *logger.Logger, svc checkoutsvc.Service, session *checkoutsvc.Session, current cart.Cart, window PaymentWindow) {
	placeCtx, rec := checkoutsvc.Detach(ctx)
	done := make(chan placeResult, 1)
	go func() {
		view, err := svc.Place(placeCtx, session, current)
		done <- placeResult{view: view, err: err}
	}()

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	opened := make(chan checkoutsvc.WidgetRequest, 1)
	go func() {
		if req, err := window.AwaitOpen(waitCtx, session.ID()); err == nil {
			opened <- req
		}
	}()

	finish := func(res placeResult) {
		session.Untrack(rec)
		replay(ctx, rec)
		if res.err != nil {
			responses.WriteError(ctx, logg, w, res.err)
			return
		}
		writePlaced(ctx, w, res.view)
	}

	select {
	case res := <-done:
		finish(res)
	case req := <-opened:
		select {
		case res := <-done:
			finish(res)
		default:
			logg.Info(ctx, "checkout.payment_window_opened")
			responses.WriteSuccessStatus(ctx, w, http.StatusAccepted, pendingPaymentResponse{
				Session: session.View(),
				Payment: req,
			})
		}
	case <-ctx.Done():
		logg.Warn(ctx, "checkout.place_abandoned_by_client")
	}
}

// CheckoutPaymentCallback hands the payment window's outcome to the waiting
// submission and answers once it has finished.
func CheckoutPaymentCallback(sessions Sessions, window PaymentWindow, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if window == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment window unavailable"))
			return
		}
		session, err := lookupSession(r, sessions)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := logg.WithSessionID(r.Context(), session.ID())

		var payload paymentCallbackRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		result, err := payload.toResult()
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if err := window.Deliver(session.ID(), result); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		view, err := session.Await(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "payment is still being processed"))
			return
		}
		replay(ctx, session.Tracked())

		if view.State == enums.CheckoutStateOrderFailed {
			message := view.Failure
			if message == "" {
				message = "Payment failed."
			}
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodePayment, message))
			return
		}
		responses.WriteSuccess(ctx, w, view)
	}
}

func writePlaced(ctx context.Context, w http.ResponseWriter, view checkoutsvc.View) {
	if view.State == enums.CheckoutStateOrderPlaced {
		responses.WriteSuccessStatus(ctx, w, http.StatusCreated, view)
		return
	}
	responses.WriteSuccessStatus(ctx, w, http.StatusAccepted, view)
}

// replay moves what a background submission surfaced onto the current
// response.
func replay(ctx context.Context, rec *prompts.Recorder) {
	target := prompts.FromContext(ctx)
	if rec == nil || target == nil || rec == target {
		return
	}
	rec.Replay(ctx, target)
}

func lookupSession(r *http.Request, sessions Sessions) (*checkoutsvc.Session, error) {
	if sessions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "checkout unavailable")
	}
	sessionID, err := validators.PathParam(r, "sessionId")
	if err != nil {
		return nil, err
	}
	return sessions.Get(sessionID, middleware.UserIDFromContext(r.Context()))
}

func requestVisitor(r *http.Request) (*visitor.Visitor, error) {
	v := visitor.FromContext(r.Context())
	if v == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "visitor context missing")
	}
	return v, nil
}
