package checkout

import (
	"github.com/angelmondragon/storefront/internal/checkout"
	"github.com/angelmondragon/storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/storefront"
)

type selectAddressRequest struct {
	AddressID string `json:"addressId" validate:"required,max=128"`
}

type choosePaymentRequest struct {
	Method string `json:"method" validate:"required"`
}

func (r choosePaymentRequest) parse() (enums.PaymentMethod, error) {
	method, err := enums.ParsePaymentMethod(r.Method)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported payment method").WithDetails(map[string]string{"method": "must be one of COD online"})
	}
	return method, nil
}

// paymentCallbackRequest is what the browser posts once the hosted payment
// window closes.
type paymentCallbackRequest struct {
	Outcome string                  `json:"outcome" validate:"required,oneof=succeeded failed dismissed timed_out"`
	Proof   storefront.PaymentProof `json:"proof"`
	Failure *callbackFailure        `json:"failure,omitempty"`
}

type callbackFailure struct {
	PaymentID   string `json:"paymentId" validate:"omitempty,max=128"`
	Code        string `json:"code" validate:"omitempty,max=128"`
	Description string `json:"description" validate:"omitempty,max=512"`
	Reason      string `json:"reason" validate:"omitempty,max=256"`
}

func (r paymentCallbackRequest) toResult() (checkout.WidgetResult, error) {
	outcome, err := enums.ParsePaymentOutcome(r.Outcome)
	if err != nil {
		return checkout.WidgetResult{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown payment outcome")
	}
	result := checkout.WidgetResult{Outcome: outcome, Proof: r.Proof}
	if outcome == enums.PaymentOutcomeSucceeded && (r.Proof.PaymentID == "" || r.Proof.Signature == "") {
		return checkout.WidgetResult{}, pkgerrors.New(pkgerrors.CodeValidation, "payment proof is incomplete")
	}
	if r.Failure != nil {
		result.Failure = &checkout.WidgetFailure{
			PaymentID:   r.Failure.PaymentID,
			Code:        r.Failure.Code,
			Description: r.Failure.Description,
			Reason:      r.Failure.Reason,
		}
	}
	return result, nil
}
