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

// Product is a catalog entry with its identifier normalized.
type Product struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description,omitempty"`
	ListPrice       decimal.Decimal `json:"listPrice"`
	FinalPrice      decimal.Decimal `json:"finalPrice"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
	ImageRef        string          `json:"imageRef,omitempty"`
	CategoryID      string          `json:"categoryId,omitempty"`
	CategoryName    string          `json:"categoryName,omitempty"`
	Stock           int             `json:"stock"`
}

// Category groups products.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug,omitempty"`
}

type wireProduct struct {
	identity
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Price       decimal.Decimal  `json:"price"`
	FinalPrice  *decimal.Decimal `json:"finalPrice"`
	Discount    *decimal.Decimal `json:"discount"`
	Image       string           `json:"image"`
	Images      []string         `json:"images"`
	Category    ref              `json:"category"`
	Stock       int              `json:"stock"`
}

var hundred = decimal.NewFromInt(100)

func (w wireProduct) toProduct() Product {
	discount := decimalOr(w.Discount, decimal.Zero)
	final := w.Price
	if w.FinalPrice != nil {
		final = *w.FinalPrice
	} else if discount.IsPositive() {
		final = w.Price.Mul(hundred.Sub(discount)).Div(hundred).Round(2)
	}
	image := w.Image
	if image == "" && len(w.Images) > 0 {
		image = w.Images[0]
	}
	return Product{
		ID:              w.value(),
		Name:            w.Name,
		Description:     w.Description,
		ListPrice:       w.Price,
		FinalPrice:      final,
		DiscountPercent: discount,
		ImageRef:        image,
		CategoryID:      w.Category.ID,
		CategoryName:    w.Category.Name,
		Stock:           w.Stock,
	}
}

// ListProducts returns the catalog, optionally filtered by category id.
func (c *Client) ListProducts(ctx context.Context, category string) ([]Product, error) {
	var query url.Values
	if trimmed := strings.TrimSpace(category); trimmed != "" {
		query = url.Values{"category": []string{trimmed}}
	}
	var raw json.RawMessage
	if err := c.do(ctx, "list_products", http.MethodGet, "products", nil, &raw, withQuery(query)); err != nil {
		return nil, err
	}
	var wire []wireProduct
	if err := unwrap(raw, &wire, "products", "data"); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode list_products response")
	}
	products := make([]Product, 0, len(wire))
	for _, w := range wire {
		products = append(products, w.toProduct())
	}
	return products, nil
}

// GetProduct returns one product.
func (c *Client) GetProduct(ctx context.Context, id string) (*Product, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	var raw json.RawMessage
	if err := c.do(ctx, "get_product", http.MethodGet, "products/"+url.PathEscape(trimmed), nil, &raw); err != nil {
		return nil, err
	}
	var wire wireProduct
	if err := unwrap(raw, &wire, "product", "data"); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode get_product response")
	}
	product := wire.toProduct()
	return &product, nil
}

// ListCategories returns every category.
func (c *Client) ListCategories(ctx context.Context) ([]Category, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "list_categories", http.MethodGet, "categories", nil, &raw); err != nil {
		return nil, err
	}
	var wire []struct {
		identity
		Name string `json:"name"`
		Slug string `json:"slug"`
	}
	if err := unwrap(raw, &wire, "categories", "data"); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode list_categories response")
	}
	categories := make([]Category, 0, len(wire))
	for _, w := range wire {
		categories = append(categories, Category{ID: w.value(), Name: w.Name, Slug: w.Slug})
	}
	return categories, nil
}
