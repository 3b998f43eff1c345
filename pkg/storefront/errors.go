package storefront

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
)

// APIError is a non-2xx answer from the backend.
type APIError struct {
	Operation string
	Status    int
	Message   string
	Body      string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Operation, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: status %d", e.Operation, e.Status)
}

// StatusCode implements pkgerrors.UpstreamError.
func (e *APIError) StatusCode() int { return e.Status }

// ServerMessage implements pkgerrors.UpstreamError.
func (e *APIError) ServerMessage() string { return e.Message }

func errorFromResponse(op string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
	apiErr := &APIError{
		Operation: op,
		Status:    resp.StatusCode,
		Message:   serverMessage(raw),
		Body:      strings.TrimSpace(string(raw)),
	}
	return pkgerrors.Wrap(codeForStatus(resp.StatusCode), apiErr, apiErr.Error())
}

func codeForStatus(status int) pkgerrors.Code {
	switch {
	case status == http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case status == http.StatusForbidden:
		return pkgerrors.CodeForbidden
	case status == http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case status == http.StatusConflict:
		return pkgerrors.CodeConflict
	case status == http.StatusPaymentRequired:
		return pkgerrors.CodePayment
	case status == http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	case status >= 400 && status < 500:
		return pkgerrors.CodeValidation
	default:
		return pkgerrors.CodeDependency
	}
}

// serverMessage extracts a human readable message from the common error
// shapes: {"message"}, {"error":"..."}, {"error":{"message"}} and {"msg"}.
func serverMessage(raw []byte) string {
	var body struct {
		Message string          `json:"message"`
		Msg     string          `json:"msg"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	if msg := strings.TrimSpace(body.Message); msg != "" {
		return msg
	}
	if len(body.Error) > 0 {
		var text string
		if err := json.Unmarshal(body.Error, &text); err == nil && strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text)
		}
		var nested struct {
			Message     string `json:"message"`
			Description string `json:"description"`
		}
		if err := json.Unmarshal(body.Error, &nested); err == nil {
			if msg := strings.TrimSpace(nested.Message); msg != "" {
				return msg
			}
			if msg := strings.TrimSpace(nested.Description); msg != "" {
				return msg
			}
		}
	}
	return strings.TrimSpace(body.Msg)
}
