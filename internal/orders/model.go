package orders

import (
	"time"

	"github.com/angelmondragon/storefront/pkg/enums"
	"github.com/angelmondragon/storefront/pkg/storefront"
	"github.com/shopspring/decimal"
)

// Order is a placed order in display shape.
type Order struct {
	ID              string              `json:"id"`
	Items           []Line              `json:"items"`
	ShippingAddress storefront.Address  `json:"shippingAddress"`
	PaymentMethod   enums.PaymentMethod `json:"paymentMethod"`
	Status          enums.OrderStatus   `json:"status"`
	Total           decimal.Decimal     `json:"total"`
	CreatedAt       time.Time           `json:"createdAt"`
	Cancellable     bool                `json:"cancellable"`
}

type Line struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	ImageRef  string          `json:"imageRef,omitempty"`
}

// CanCancel reports whether the shopper may ask to cancel the order. The
// backend enforces the same rule.
func CanCancel(order Order) bool {
	return order.Status == enums.OrderStatusPending && order.PaymentMethod == enums.PaymentMethodCOD
}

func fromAPI(in storefront.Order) Order {
	out := Order{
		ID:              in.ID,
		Items:           make([]Line, 0, len(in.Items)),
		ShippingAddress: in.ShippingAddress,
		Total:           in.Total,
		CreatedAt:       in.CreatedAt,
	}
	// Unknown values are kept verbatim so they still render; they never
	// satisfy CanCancel.
	if method, err := enums.ParsePaymentMethod(in.PaymentMethod); err == nil {
		out.PaymentMethod = method
	} else {
		out.PaymentMethod = enums.PaymentMethod(in.PaymentMethod)
	}
	if status, err := enums.ParseOrderStatus(in.Status); err == nil {
		out.Status = status
	} else {
		out.Status = enums.OrderStatus(in.Status)
	}
	for _, item := range in.Items {
		out.Items = append(out.Items, Line{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			Price:     item.Price,
			ImageRef:  item.ImageRef,
		})
	}
	out.Cancellable = CanCancel(out)
	return out
}
