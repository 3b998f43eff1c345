package auth

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the subset of the backend-issued bearer token the client reads.
// The backend has used both "id" and "userId" for the user identifier.
type Claims struct {
	AccountID string `json:"id,omitempty"`
	UserID    string `json:"userId,omitempty"`
	Email     string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Identity returns the user identifier, falling back to the subject.
func (c Claims) Identity() string {
	for _, candidate := range []string{c.UserID, c.AccountID, c.Subject} {
		if trimmed := strings.TrimSpace(candidate); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
