package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required"},
		{code: CodeForbidden, status: http.StatusForbidden, publicMsg: "access denied"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected"},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, publicMsg: "state transition disallowed", detailsOK: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
		{code: CodePayment, status: http.StatusPaymentRequired, publicMsg: "payment failed", retryable: true, detailsOK: true},
		{code: CodeConfirmation, status: http.StatusPreconditionRequired, publicMsg: "confirmation required", retryable: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detail := map[string]any{"field": "foo"}
	base.WithDetails(detail)
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeConflict {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeForbidden, "no entry")
	if got := As(err); got == nil || got.Code() != CodeForbidden {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestUserMessageFallsBack(t *testing.T) {
	if got := UserMessage(stdErrors.New("raw"), "Something went wrong"); got != "Something went wrong" {
		t.Fatalf("expected fallback for untyped error, got %q", got)
	}
	if got := UserMessage(New(CodeDependency, ""), "fallback"); got != "fallback" {
		t.Fatalf("expected fallback for empty message, got %q", got)
	}
	wrapped := fmt.Errorf("place order: %w", New(CodeConflict, "Out of stock"))
	if got := UserMessage(wrapped, "fallback"); got != "Out of stock" {
		t.Fatalf("expected typed message, got %q", got)
	}
	transport := Wrap(CodeDependency, stdErrors.New("dial tcp"), "get cart request failed")
	if got := UserMessage(transport, "fallback"); got != "fallback" {
		t.Fatalf("expected fallback for transport failure, got %q", got)
	}
}

type upstreamStub struct {
	status  int
	message string
}

func (u upstreamStub) Error() string         { return "upstream" }
func (u upstreamStub) StatusCode() int       { return u.status }
func (u upstreamStub) ServerMessage() string { return u.message }

func TestUserMessagePrefersServerMessage(t *testing.T) {
	err := Wrap(CodeValidation, upstreamStub{status: 400, message: "Pincode is not serviceable"}, "create order: status 400")
	if got := UserMessage(err, "fallback"); got != "Pincode is not serviceable" {
		t.Fatalf("expected server message, got %q", got)
	}
	silent := Wrap(CodeDependency, upstreamStub{status: 502}, "get cart: status 502")
	if got := UserMessage(silent, "fallback"); got != "fallback" {
		t.Fatalf("expected fallback without server message, got %q", got)
	}
	dump := Dump(err)
	if dump.UpstreamStatus != 400 || dump.UpstreamMessage != "Pincode is not serviceable" {
		t.Fatalf("unexpected dump %+v", dump)
	}
}

func TestIsMatchesCodeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeUnauthorized, "expired"))
	if !Is(err, CodeUnauthorized) {
		t.Fatal("expected unauthorized code to be found")
	}
	if Is(err, CodeValidation) {
		t.Fatal("unexpected validation match")
	}
}

func TestDumpCollectsChain(t *testing.T) {
	err := fmt.Errorf("outer: %w", Wrap(CodeDependency, stdErrors.New("dial tcp"), "fetch cart"))
	dump := Dump(err)
	if dump.Code != CodeDependency {
		t.Fatalf("expected dependency code, got %s", dump.Code)
	}
	if len(dump.Chain) != 3 {
		t.Fatalf("expected 3 chain entries, got %d: %v", len(dump.Chain), dump.Chain)
	}
}
