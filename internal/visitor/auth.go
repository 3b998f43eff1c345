package visitor

import (
	"context"
	"strings"
	"time"

	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/internal/guestcart"
	"github.com/angelmondragon/storefront/internal/prompts"
	"github.com/angelmondragon/storefront/pkg/auth"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/storefront"
)

const messageLoginFailed = "Login failed. Please check your credentials and try again."

type bearerKey struct{}

// WithBearer carries a token the browser sent itself. It takes precedence
// over the stored token for the request.
func WithBearer(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerKey{}, strings.TrimSpace(token))
}

// BearerFromContext returns the passthrough token, if any.
func BearerFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	token, _ := ctx.Value(bearerKey{}).(string)
	return token
}

// credentials implements storefront.TokenSource over the passthrough token
// and the visitor's stored token.
type credentials struct {
	store *auth.TokenStore
	now   func() time.Time
}

func (c *credentials) Token(ctx context.Context) (string, bool, error) {
	if token := BearerFromContext(ctx); token != "" && !auth.Expired(token, c.now()) {
		return token, true, nil
	}
	return c.store.Token(ctx)
}

// Authenticator manages the visitor's storefront login.
type Authenticator interface {
	// SignIn logs in, stores the token and moves the guest cart into the
	// server cart.
	SignIn(ctx context.Context, creds storefront.Credentials) (*storefront.Session, cart.Cart, error)
	SignOut(ctx context.Context) error
	// UserID is empty when the visitor holds no valid token.
	UserID(ctx context.Context) (string, error)
}

type loginAPI interface {
	Login(ctx context.Context, creds storefront.Credentials) (*storefront.Session, error)
}

type authenticator struct {
	api    loginAPI
	tokens *auth.TokenStore
	creds  *credentials
	guest  *guestcart.Store
	cart   cart.Service
	ui     prompts.UI
	logg   *logger.Logger
}

func (a *authenticator) SignIn(ctx context.Context, creds storefront.Credentials) (*storefront.Session, cart.Cart, error) {
	session, err := a.api.Login(ctx, creds)
	if err != nil {
		if a.logg != nil {
			a.logg.Error(a.logg.WithField(ctx, "error_dump", pkgerrors.Dump(err)), "auth.login_failed", err)
		}
		a.ui.Notify(ctx, prompts.Error(pkgerrors.UserMessage(err, messageLoginFailed)))
		return nil, cart.Cart{}, err
	}
	if err := a.tokens.Save(ctx, session.Token); err != nil {
		return nil, cart.Cart{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store session token")
	}
	if a.logg != nil {
		ctx = a.logg.WithUserID(ctx, session.User.ID)
	}

	items := a.guest.Items()
	if len(items) == 0 {
		current, _ := a.cart.FetchCart(ctx)
		return session, current, nil
	}
	merged, failed, _ := a.cart.ImportGuestCart(ctx, items)
	if len(failed) == 0 {
		if err := a.guest.Clear(ctx); err != nil && a.logg != nil {
			a.logg.Error(ctx, "auth.guest_cart_clear_failed", err)
		}
		return session, merged, nil
	}
	// only the products that failed stay behind for the next sign in
	keep := make(map[string]struct{}, len(failed))
	for _, productID := range failed {
		keep[productID] = struct{}{}
	}
	for _, item := range items {
		if _, ok := keep[item.ProductID]; ok {
			continue
		}
		if err := a.guest.Remove(ctx, item.UniqueID); err != nil && a.logg != nil {
			a.logg.Error(ctx, "auth.guest_cart_prune_failed", err)
		}
	}
	return session, merged, nil
}

func (a *authenticator) SignOut(ctx context.Context) error {
	if err := a.tokens.Clear(ctx); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear session token")
	}
	return nil
}

func (a *authenticator) UserID(ctx context.Context) (string, error) {
	token, ok, err := a.creds.Token(ctx)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load session token")
	}
	if !ok {
		return "", nil
	}
	claims, err := auth.Inspect(token)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "unreadable session token")
	}
	return claims.Identity(), nil
}
