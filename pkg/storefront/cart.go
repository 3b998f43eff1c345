package storefront

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/shopspring/decimal"
)

// CartLine is one server cart line.
type CartLine struct {
	CartItemID string
	Product    Product
	Quantity   int
}

// ServerCart is the authenticated visitor's cart. ItemsTotal is nil when the
// backend did not send an aggregate.
type ServerCart struct {
	Lines      []CartLine
	ItemsTotal *decimal.Decimal
}

type wireCartLine struct {
	identity
	Product   json.RawMessage  `json:"product"`
	ProductID string           `json:"productId"`
	Quantity  int              `json:"quantity"`
	Price     *decimal.Decimal `json:"price"`
}

type wireCart struct {
	Items       []wireCartLine   `json:"items"`
	TotalAmount *decimal.Decimal `json:"totalAmount"`
	TotalPrice  *decimal.Decimal `json:"totalPrice"`
}

func (w wireCartLine) toLine() (CartLine, error) {
	line := CartLine{CartItemID: w.value(), Quantity: w.Quantity}
	trimmed := strings.TrimSpace(string(w.Product))
	switch {
	case trimmed == "" || trimmed == "null":
		line.Product.ID = w.ProductID
	case strings.HasPrefix(trimmed, "\""):
		if err := json.Unmarshal(w.Product, &line.Product.ID); err != nil {
			return CartLine{}, err
		}
	default:
		var product wireProduct
		if err := json.Unmarshal(w.Product, &product); err != nil {
			return CartLine{}, err
		}
		line.Product = product.toProduct()
	}
	if line.Product.ID == "" {
		line.Product.ID = strings.TrimSpace(w.ProductID)
	}
	// An unpopulated product leaves the line price as the only price.
	if w.Price != nil && line.Product.FinalPrice.IsZero() {
		line.Product.FinalPrice = *w.Price
		line.Product.ListPrice = *w.Price
	}
	return line, nil
}

// GetCart returns the server cart.
func (c *Client) GetCart(ctx context.Context) (*ServerCart, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "get_cart", http.MethodGet, "cart", nil, &raw); err != nil {
		return nil, err
	}
	var wire wireCart
	if err := unwrap(raw, &wire, "cart", "data"); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode get_cart response")
	}
	cart := &ServerCart{Lines: make([]CartLine, 0, len(wire.Items))}
	for _, item := range wire.Items {
		line, err := item.toLine()
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode cart line")
		}
		cart.Lines = append(cart.Lines, line)
	}
	switch {
	case wire.TotalAmount != nil:
		total := *wire.TotalAmount
		cart.ItemsTotal = &total
	case wire.TotalPrice != nil:
		total := *wire.TotalPrice
		cart.ItemsTotal = &total
	}
	return cart, nil
}

// AddCartItem adds quantity units of a product.
func (c *Client) AddCartItem(ctx context.Context, productID string, quantity int) error {
	if strings.TrimSpace(productID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if quantity < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	body := map[string]any{"productId": productID, "quantity": quantity}
	return c.do(ctx, "add_cart_item", http.MethodPost, "cart/items", body, nil)
}

// UpdateCartItem sets the quantity of a cart line.
func (c *Client) UpdateCartItem(ctx context.Context, cartItemID string, quantity int) error {
	if strings.TrimSpace(cartItemID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart item id is required")
	}
	if quantity < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	body := map[string]any{"quantity": quantity}
	return c.do(ctx, "update_cart_item", http.MethodPut, "cart/items/"+url.PathEscape(cartItemID), body, nil)
}

// RemoveCartItem deletes a cart line.
func (c *Client) RemoveCartItem(ctx context.Context, cartItemID string) error {
	if strings.TrimSpace(cartItemID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart item id is required")
	}
	return c.do(ctx, "remove_cart_item", http.MethodDelete, "cart/items/"+url.PathEscape(cartItemID), nil, nil)
}

// ClearCart deletes every cart line.
func (c *Client) ClearCart(ctx context.Context) error {
	return c.do(ctx, "clear_cart", http.MethodDelete, "cart", nil, nil)
}
