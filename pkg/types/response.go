package types

// SuccessEnvelope wraps every successful BFF response. Meta carries the
// notices, dialogs and navigation raised while serving the request.
type SuccessEnvelope struct {
	Data any `json:"data"`
	Meta any `json:"meta,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
	Meta  any      `json:"meta,omitempty"`
}
