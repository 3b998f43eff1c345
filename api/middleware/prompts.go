package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/angelmondragon/storefront/internal/prompts"
)

const confirmHeader = "X-Confirm"

// Prompts gives every request a recorder for notices, dialogs and
// navigation. Destructive actions are confirmed only when the browser
// re-sends them with X-Confirm: true.
func Prompts() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := prompts.NewRecorder(confirmed(r))
			next.ServeHTTP(w, r.WithContext(prompts.WithRecorder(r.Context(), rec)))
		})
	}
}

func confirmed(r *http.Request) bool {
	value, err := strconv.ParseBool(strings.TrimSpace(r.Header.Get(confirmHeader)))
	return err == nil && value
}
