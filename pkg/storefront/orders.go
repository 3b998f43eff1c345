package storefront

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/shopspring/decimal"
)

// OrderLine is one line of an order payload.
type OrderLine struct {
	ProductID string          `json:"product"`
	Name      string          `json:"name,omitempty"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	ImageRef  string          `json:"image,omitempty"`
}

// OrderRequest places a cash-on-delivery order.
type OrderRequest struct {
	UserID          string          `json:"user,omitempty"`
	Items           []OrderLine     `json:"items"`
	ShippingAddress Address         `json:"shippingAddress"`
	PaymentMethod   string          `json:"paymentMethod"`
	ItemsTotal      decimal.Decimal `json:"itemsPrice"`
	ShippingFee     decimal.Decimal `json:"shippingPrice"`
	HandlingFee     decimal.Decimal `json:"handlingPrice"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
}

// Order is a placed order as reported by the backend.
type Order struct {
	ID              string
	Items           []OrderLine
	ShippingAddress Address
	PaymentMethod   string
	Status          string
	Total           decimal.Decimal
	CreatedAt       time.Time
}

type wireOrder struct {
	identity
	Items []struct {
		Product  ref              `json:"product"`
		Name     string           `json:"name"`
		Quantity int              `json:"quantity"`
		Price    *decimal.Decimal `json:"price"`
		Image    string           `json:"image"`
	} `json:"items"`
	ShippingAddress wireAddress      `json:"shippingAddress"`
	PaymentMethod   string           `json:"paymentMethod"`
	Status          string           `json:"status"`
	OrderStatus     string           `json:"orderStatus"`
	TotalAmount     *decimal.Decimal `json:"totalAmount"`
	TotalPrice      *decimal.Decimal `json:"totalPrice"`
	CreatedAt       time.Time        `json:"createdAt"`
}

func (w wireOrder) toOrder() Order {
	lines := make([]OrderLine, 0, len(w.Items))
	for _, item := range w.Items {
		lines = append(lines, OrderLine{
			ProductID: item.Product.ID,
			Name:      firstNonEmpty(item.Name, item.Product.Name),
			Quantity:  item.Quantity,
			Price:     decimalOr(item.Price, decimal.Zero),
			ImageRef:  item.Image,
		})
	}
	total := decimalOr(w.TotalAmount, decimalOr(w.TotalPrice, decimal.Zero))
	return Order{
		ID:              w.value(),
		Items:           lines,
		ShippingAddress: w.ShippingAddress.toAddress(),
		PaymentMethod:   w.PaymentMethod,
		Status:          firstNonEmpty(w.OrderStatus, w.Status),
		Total:           total,
		CreatedAt:       w.CreatedAt,
	}
}

// PlaceOrder submits an order. idempotencyKey lets the backend deduplicate
// a resubmission of the same checkout.
func (c *Client) PlaceOrder(ctx context.Context, idempotencyKey string, req OrderRequest) (*Order, error) {
	if len(req.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order has no items")
	}
	var raw json.RawMessage
	if err := c.do(ctx, "place_order", http.MethodPost, "orders", req, &raw, withIdempotencyKey(idempotencyKey)); err != nil {
		return nil, err
	}
	var wire wireOrder
	if len(strings.TrimSpace(string(raw))) > 0 {
		if err := unwrap(raw, &wire, "order", "data"); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode place_order response")
		}
	}
	order := wire.toOrder()
	return &order, nil
}

// ListOrders returns the visitor's orders in server order.
func (c *Client) ListOrders(ctx context.Context) ([]Order, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "list_orders", http.MethodGet, "orders", nil, &raw); err != nil {
		return nil, err
	}
	var wire []wireOrder
	if err := unwrap(raw, &wire, "orders", "data"); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode list_orders response")
	}
	orders := make([]Order, 0, len(wire))
	for _, w := range wire {
		orders = append(orders, w.toOrder())
	}
	return orders, nil
}

// CancelOrder asks the backend to cancel an order.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	if strings.TrimSpace(orderID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	return c.do(ctx, "cancel_order", http.MethodPut, "orders/"+url.PathEscape(orderID)+"/cancel", nil, nil)
}
