package storefront

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
)

// Credentials are posted to the login endpoint.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// User is the authenticated account.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Session is a successful login.
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, creds Credentials) (*Session, error) {
	if strings.TrimSpace(creds.Email) == "" || creds.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email and password are required")
	}
	var raw json.RawMessage
	if err := c.do(ctx, "login", http.MethodPost, "auth/login", creds, &raw); err != nil {
		return nil, err
	}
	var wire struct {
		Token       string `json:"token"`
		AccessToken string `json:"accessToken"`
		User        struct {
			identity
			Name  string `json:"name"`
			Email string `json:"email"`
		} `json:"user"`
	}
	if err := unwrap(raw, &wire, "data"); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode login response")
	}
	token := firstNonEmpty(wire.Token, wire.AccessToken)
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "login response carried no token")
	}
	return &Session{
		Token: token,
		User: User{
			ID:    wire.User.value(),
			Name:  wire.User.Name,
			Email: wire.User.Email,
		},
	}, nil
}
