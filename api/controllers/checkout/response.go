package checkout

import (
	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/internal/checkout"
	"github.com/angelmondragon/storefront/pkg/storefront"
)

type startResponse struct {
	Session   checkout.View        `json:"session"`
	Cart      cart.Cart            `json:"cart"`
	Addresses []storefront.Address `json:"addresses"`
}

// pendingPaymentResponse tells the browser to open the payment window and
// post its outcome to the callback endpoint.
type pendingPaymentResponse struct {
	Session checkout.View          `json:"session"`
	Payment checkout.WidgetRequest `json:"payment"`
}
