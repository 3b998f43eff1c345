package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/logger"
)

// GuestSession identifies the browser with a long-lived opaque cookie. The
// guest cart, the stored bearer token and checkout sessions hang off it.
func GuestSession(cfg config.SessionConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	name := strings.TrimSpace(cfg.GuestCookieName)
	if name == "" {
		name = "sf_guest"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			guestID := ""
			if cookie, err := r.Cookie(name); err == nil {
				if parsed, parseErr := uuid.Parse(cookie.Value); parseErr == nil {
					guestID = parsed.String()
				}
			}
			if guestID == "" {
				guestID = uuid.NewString()
			}
			// refreshed on every request so an active shopper never expires
			http.SetCookie(w, &http.Cookie{
				Name:     name,
				Value:    guestID,
				Path:     "/",
				MaxAge:   int(cfg.GuestTTL.Seconds()),
				HttpOnly: true,
				Secure:   cfg.CookieSecure,
				SameSite: http.SameSiteLaxMode,
			})

			ctx := WithGuestID(r.Context(), guestID)
			if logg != nil {
				ctx = logg.WithSessionID(ctx, guestID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
