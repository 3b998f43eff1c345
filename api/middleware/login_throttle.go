package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/storefront/api/responses"
	"github.com/angelmondragon/storefront/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
)

const messageTooManySignIns = "Too many sign-in attempts. Please try again later."

// LoginCounter is a fixed-window counter keyed by scope.
type LoginCounter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// LoginThrottle caps sign-in attempts per client address and per shopper
// email within one window. The email is only ever stored hashed.
func LoginThrottle(cfg config.AuthRateLimitConfig, counter LoginCounter, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if counter == nil || cfg.LoginWindow <= 0 || (cfg.LoginIPLimit <= 0 && cfg.LoginEmailLimit <= 0) {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if cfg.LoginIPLimit > 0 {
				if addr := clientIP(r); addr != "" {
					if !checkLogin(ctx, w, counter, logg, cfg, "ip", addr, cfg.LoginIPLimit) {
						return
					}
				}
			}

			if cfg.LoginEmailLimit > 0 {
				body, err := io.ReadAll(r.Body)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable sign-in request"))
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))

				if email := shopperEmail(body); email != "" {
					if !checkLogin(ctx, w, counter, logg, cfg, "shopper", hashEmail(email), cfg.LoginEmailLimit) {
						return
					}
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// checkLogin counts one attempt against login:<kind>:<subject> and answers
// 429 when the window is exhausted.
func checkLogin(ctx context.Context, w http.ResponseWriter, counter LoginCounter, logg *logger.Logger, cfg config.AuthRateLimitConfig, kind, subject string, limit int) bool {
	allowed, attempts, err := counter.FixedWindowAllow(ctx, "login:"+kind+":"+subject, int64(limit), cfg.LoginWindow)
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sign-in throttle unavailable"))
		return false
	}
	if allowed {
		return true
	}
	if logg != nil {
		logg.Warn(logg.WithFields(ctx, map[string]any{
			"throttle":   kind,
			"attempts":   attempts,
			"limit":      limit,
			"guest_id":   GuestIDFromContext(ctx),
			"window_sec": int(cfg.LoginWindow.Seconds()),
		}), "auth.login_throttled")
	}
	w.Header().Set("Retry-After", strconv.Itoa(int(cfg.LoginWindow.Seconds())))
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, messageTooManySignIns))
	return false
}

func clientIP(r *http.Request) string {
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		for _, part := range strings.Split(header, ",") {
			if ip := strings.TrimSpace(part); ip != "" {
				return ip
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

func shopperEmail(payload []byte) string {
	var body struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(body.Email))
}

func hashEmail(email string) string {
	sum := sha256.Sum256([]byte(email))
	return hex.EncodeToString(sum[:])
}
