package controllers

import (
	"net/http"

	"github.com/angelmondragon/storefront/api/responses"
	"github.com/angelmondragon/storefront/api/validators"
	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/internal/prompts"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/storefront"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=256"`
}

type loginResponse struct {
	Token string          `json:"token"`
	User  storefront.User `json:"user"`
	Cart  cart.Cart       `json:"cart"`
}

// AuthLogin signs the visitor in and moves any guest cart into the account
// cart.
func AuthLogin(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := requestVisitor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload loginRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, current, err := v.Auth.SignIn(r.Context(), storefront.Credentials{
			Email:    validators.SanitizeString(payload.Email, 254),
			Password: payload.Password,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(r.Context(), w, loginResponse{
			Token: session.Token,
			User:  session.User,
			Cart:  current,
		})
	}
}

func AuthLogout(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := requestVisitor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := v.Auth.SignOut(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if rec := prompts.FromContext(r.Context()); rec != nil {
			rec.Notify(r.Context(), prompts.Info("You have been logged out."))
		}
		responses.WriteSuccess(r.Context(), w, map[string]bool{"loggedOut": true})
	}
}
