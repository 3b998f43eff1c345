package cart

import (
	"github.com/angelmondragon/storefront/pkg/pricing"
	"github.com/angelmondragon/storefront/pkg/storefront"
	"github.com/shopspring/decimal"
)

// Item is a server cart line in display shape.
type Item struct {
	CartItemID      string          `json:"cartItemId"`
	ProductID       string          `json:"productId"`
	Name            string          `json:"name"`
	ImageRef        string          `json:"imageRef,omitempty"`
	UnitPrice       decimal.Decimal `json:"unitPrice"`
	ListPrice       decimal.Decimal `json:"listPrice"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
	Quantity        int             `json:"quantity"`
	Description     string          `json:"description,omitempty"`
}

// Subtotal is unit price times quantity.
func (i Item) Subtotal() decimal.Decimal {
	return pricing.LineSubtotal(i.UnitPrice, i.Quantity)
}

// Cart is the server cart as last fetched. Totals.Items is the server
// aggregate when one was sent and the client sum otherwise.
type Cart struct {
	Items         []Item           `json:"items"`
	ComputedTotal decimal.Decimal  `json:"computedTotal"`
	ServerTotal   *decimal.Decimal `json:"serverTotal,omitempty"`
	Totals        pricing.Totals   `json:"totals"`
}

// IsEmpty reports whether the cart has no lines.
func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Drift returns server aggregate minus client sum when both exist and differ.
func (c Cart) Drift() (decimal.Decimal, bool) {
	if c.ServerTotal == nil || c.ServerTotal.Equal(c.ComputedTotal) {
		return decimal.Zero, false
	}
	return c.ServerTotal.Sub(c.ComputedTotal), true
}

// Lines adapts the items for pricing.
func (c Cart) Lines() []pricing.Line {
	lines := make([]pricing.Line, 0, len(c.Items))
	for _, item := range c.Items {
		lines = append(lines, pricing.Line{UnitPrice: item.UnitPrice, Quantity: item.Quantity})
	}
	return lines
}

// Find returns the line with cartItemID.
func (c Cart) Find(cartItemID string) (Item, bool) {
	for _, item := range c.Items {
		if item.CartItemID == cartItemID {
			return item, true
		}
	}
	return Item{}, false
}

func fromServer(server *storefront.ServerCart, calc pricing.Calculator) Cart {
	if server == nil {
		return build(nil, nil, calc)
	}
	items := make([]Item, 0, len(server.Lines))
	for _, line := range server.Lines {
		items = append(items, Item{
			CartItemID:      line.CartItemID,
			ProductID:       line.Product.ID,
			Name:            line.Product.Name,
			ImageRef:        line.Product.ImageRef,
			UnitPrice:       line.Product.FinalPrice,
			ListPrice:       line.Product.ListPrice,
			DiscountPercent: line.Product.DiscountPercent,
			Quantity:        line.Quantity,
			Description:     line.Product.Description,
		})
	}
	return build(items, server.ItemsTotal, calc)
}

func build(items []Item, serverTotal *decimal.Decimal, calc pricing.Calculator) Cart {
	if items == nil {
		items = []Item{}
	}
	cart := Cart{Items: items, ServerTotal: serverTotal}
	lines := cart.Lines()
	cart.ComputedTotal = pricing.SumLines(lines)
	cart.Totals = calc.Compute(lines, serverTotal)
	return cart
}

// Empty returns a cart with no lines.
func Empty(calc pricing.Calculator) Cart {
	return build(nil, nil, calc)
}
