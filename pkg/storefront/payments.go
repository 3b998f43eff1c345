package storefront

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/shopspring/decimal"
)

// PaymentOrderRequest asks the backend to create a provider order. Amount is
// in minor units.
type PaymentOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt,omitempty"`
}

// PaymentOrder identifies the provider order the widget is opened with.
type PaymentOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// PaymentProof is what the widget hands back on success.
type PaymentProof struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

// VerifyRequest submits the proof together with the order being paid for.
type VerifyRequest struct {
	PaymentProof
	ShippingAddress Address         `json:"shippingAddress"`
	Items           []OrderLine     `json:"items"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
}

// Verification is the backend's answer to a proof.
type Verification struct {
	Verified bool
	OrderID  string
	Message  string
}

// PaymentFailure reports a failed widget session for reconciliation.
type PaymentFailure struct {
	OrderID     string `json:"razorpay_order_id"`
	PaymentID   string `json:"razorpay_payment_id,omitempty"`
	Code        string `json:"error_code,omitempty"`
	Description string `json:"error_description,omitempty"`
	Reason      string `json:"error_reason,omitempty"`
}

// CreatePaymentOrder creates a provider order for the amount.
func (c *Client) CreatePaymentOrder(ctx context.Context, idempotencyKey string, req PaymentOrderRequest) (*PaymentOrder, error) {
	if req.Amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
	}
	var raw json.RawMessage
	if err := c.do(ctx, "create_payment_order", http.MethodPost, "payments/orders", req, &raw, withIdempotencyKey(idempotencyKey)); err != nil {
		return nil, err
	}
	var wire struct {
		identity
		OrderID  string `json:"orderId"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
	}
	if err := unwrap(raw, &wire, "order", "data"); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode create_payment_order response")
	}
	order := &PaymentOrder{
		ID:       firstNonEmpty(wire.ID, wire.OrderID, wire.MongoID),
		Amount:   wire.Amount,
		Currency: wire.Currency,
	}
	if order.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment order response carried no id")
	}
	if order.Amount == 0 {
		order.Amount = req.Amount
	}
	if order.Currency == "" {
		order.Currency = req.Currency
	}
	return order, nil
}

// VerifyPayment submits the widget's proof. A 2xx answer that does not report
// success is returned as a payment error.
func (c *Client) VerifyPayment(ctx context.Context, idempotencyKey string, req VerifyRequest) (*Verification, error) {
	if strings.TrimSpace(req.OrderID) == "" || strings.TrimSpace(req.PaymentID) == "" || strings.TrimSpace(req.Signature) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment proof is incomplete")
	}
	var raw json.RawMessage
	if err := c.do(ctx, "verify_payment", http.MethodPost, "payments/verify", req, &raw, withIdempotencyKey(idempotencyKey)); err != nil {
		return nil, err
	}
	var wire struct {
		Success  *bool  `json:"success"`
		Verified *bool  `json:"verified"`
		Message  string `json:"message"`
		Order    ref    `json:"order"`
		OrderID  string `json:"orderId"`
	}
	if len(strings.TrimSpace(string(raw))) > 0 {
		if err := unwrap(raw, &wire, "data"); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode verify_payment response")
		}
	}
	verified := true
	if wire.Success != nil {
		verified = *wire.Success
	} else if wire.Verified != nil {
		verified = *wire.Verified
	}
	result := &Verification{
		Verified: verified,
		OrderID:  firstNonEmpty(wire.Order.ID, wire.OrderID),
		Message:  wire.Message,
	}
	if !verified {
		return result, pkgerrors.New(pkgerrors.CodePayment, firstNonEmpty(wire.Message, "payment verification failed"))
	}
	return result, nil
}

// ReportPaymentFailure records a failed widget session with the backend.
func (c *Client) ReportPaymentFailure(ctx context.Context, failure PaymentFailure) error {
	if strings.TrimSpace(failure.OrderID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment order id is required")
	}
	return c.do(ctx, "report_payment_failure", http.MethodPost, "payments/failure", failure, nil)
}
