package controllers

import (
	"net/http"

	"github.com/angelmondragon/storefront/api/responses"
	"github.com/angelmondragon/storefront/api/validators"
	"github.com/angelmondragon/storefront/internal/guestcart"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/pricing"
)

type guestCartAddRequest struct {
	ProductID string `json:"productId" validate:"required,max=128"`
}

type guestCartResponse struct {
	Items  []guestcart.Item `json:"items"`
	Totals pricing.Totals   `json:"totals"`
}

func newGuestCartResponse(store *guestcart.Store, calc pricing.Calculator) guestCartResponse {
	state := store.Snapshot()
	return guestCartResponse{
		Items:  state.Items(),
		Totals: calc.FromItemsTotal(state.Total()),
	}
}

// GuestCartFetch returns the anonymous cart kept for the browser session.
func GuestCartFetch(calc pricing.Calculator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := requestVisitor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(r.Context(), w, newGuestCartResponse(v.GuestCart, calc))
	}
}

// GuestCartAdd snapshots the product at its current price and appends it as
// a new entry.
func GuestCartAdd(calc pricing.Calculator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := requestVisitor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload guestCartAddRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := v.Catalog.Snapshot(r.Context(), payload.ProductID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if _, err := v.GuestCart.Add(r.Context(), product); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(r.Context(), w, http.StatusCreated, newGuestCartResponse(v.GuestCart, calc))
	}
}

func GuestCartRemove(calc pricing.Calculator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := requestVisitor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		uniqueID, err := validators.PathParam(r, "uniqueId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := v.GuestCart.Remove(r.Context(), uniqueID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(r.Context(), w, newGuestCartResponse(v.GuestCart, calc))
	}
}

func GuestCartClear(calc pricing.Calculator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := requestVisitor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := v.GuestCart.Clear(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(r.Context(), w, newGuestCartResponse(v.GuestCart, calc))
	}
}
