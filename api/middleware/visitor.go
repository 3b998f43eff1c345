package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/storefront/api/responses"
	"github.com/angelmondragon/storefront/internal/prompts"
	"github.com/angelmondragon/storefront/internal/visitor"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
)

const messageLoginRequired = "Please log in to continue."

type visitorResolver interface {
	For(ctx context.Context, sessionID string) (*visitor.Visitor, error)
}

// Visitor resolves the services of the guest session and, when the visitor
// holds a valid token, the user id. A bearer token sent by the browser is
// passed through to the storefront backend.
func Visitor(resolver visitorResolver, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if token := bearerToken(r); token != "" {
				ctx = visitor.WithBearer(ctx, token)
			}

			v, err := resolver.For(ctx, GuestIDFromContext(ctx))
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve visitor"))
				return
			}

			userID, err := v.Auth.UserID(ctx)
			if err != nil {
				// an unreadable token is the same as none
				if logg != nil {
					logg.Warn(logg.WithField(ctx, "error", err.Error()), "auth.token_unreadable")
				}
				userID = ""
			}
			if userID != "" {
				ctx = WithUserID(ctx, userID)
				if logg != nil {
					ctx = logg.WithUserID(ctx, userID)
				}
			}

			next.ServeHTTP(w, r.WithContext(visitor.WithContext(ctx, v)))
		})
	}
}

// RequireUser rejects anonymous visitors and sends them to login.
func RequireUser(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if UserIDFromContext(ctx) == "" {
				if rec := prompts.FromContext(ctx); rec != nil {
					rec.Notify(ctx, prompts.Error(messageLoginRequired))
					rec.Navigate(ctx, prompts.RouteLogin)
				}
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
