package enums

import "fmt"

// CheckoutState is the position of a checkout session in its state machine.
type CheckoutState string

const (
	CheckoutStateAddressRequired     CheckoutState = "address_required"
	CheckoutStateAddressSelected     CheckoutState = "address_selected"
	CheckoutStatePaymentMethodChosen CheckoutState = "payment_method_chosen"
	CheckoutStateOrderSubmitting     CheckoutState = "order_submitting"
	CheckoutStateOrderPlaced         CheckoutState = "order_placed"
	CheckoutStateOrderFailed         CheckoutState = "order_failed"
)

var validCheckoutStates = []CheckoutState{
	CheckoutStateAddressRequired,
	CheckoutStateAddressSelected,
	CheckoutStatePaymentMethodChosen,
	CheckoutStateOrderSubmitting,
	CheckoutStateOrderPlaced,
	CheckoutStateOrderFailed,
}

// String implements fmt.Stringer.
func (s CheckoutState) String() string {
	return string(s)
}

// IsValid reports whether the value is a known CheckoutState.
func (s CheckoutState) IsValid() bool {
	for _, candidate := range validCheckoutStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are accepted.
func (s CheckoutState) IsTerminal() bool {
	return s == CheckoutStateOrderPlaced
}

// ParseCheckoutState converts raw input into a CheckoutState.
func ParseCheckoutState(value string) (CheckoutState, error) {
	for _, candidate := range validCheckoutStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid checkout state %q", value)
}
