package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront/internal/guestcart"
	"github.com/angelmondragon/storefront/internal/prompts"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/storefront"
)

type API interface {
	ListProducts(ctx context.Context, category string) ([]storefront.Product, error)
	GetProduct(ctx context.Context, id string) (*storefront.Product, error)
	ListCategories(ctx context.Context) ([]storefront.Category, error)
}

type Service interface {
	ListProducts(ctx context.Context, category string) ([]storefront.Product, error)
	GetProduct(ctx context.Context, id string) (*storefront.Product, error)
	ListCategories(ctx context.Context) ([]storefront.Category, error)
	// Snapshot captures what the guest cart stores about a product.
	Snapshot(ctx context.Context, id string) (guestcart.Product, error)
}

type service struct {
	api      API
	reporter *prompts.FailureReporter
}

func NewService(api API, reporter *prompts.FailureReporter) (Service, error) {
	if api == nil {
		return nil, fmt.Errorf("storefront api required")
	}
	if reporter == nil {
		return nil, fmt.Errorf("failure reporter required")
	}
	return &service{api: api, reporter: reporter}, nil
}

func (s *service) ListProducts(ctx context.Context, category string) ([]storefront.Product, error) {
	products, err := s.api.ListProducts(ctx, strings.TrimSpace(category))
	if err != nil {
		return []storefront.Product{}, s.reporter.Report(ctx, "catalog.products_failed", err, "Could not load products.")
	}
	return products, nil
}

func (s *service) GetProduct(ctx context.Context, id string) (*storefront.Product, error) {
	if strings.TrimSpace(id) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	product, err := s.api.GetProduct(ctx, id)
	if err != nil {
		return nil, s.reporter.Report(ctx, "catalog.product_failed", err, "Could not load the product.")
	}
	return product, nil
}

func (s *service) ListCategories(ctx context.Context) ([]storefront.Category, error) {
	categories, err := s.api.ListCategories(ctx)
	if err != nil {
		return []storefront.Category{}, s.reporter.Report(ctx, "catalog.categories_failed", err, "Could not load categories.")
	}
	return categories, nil
}

func (s *service) Snapshot(ctx context.Context, id string) (guestcart.Product, error) {
	product, err := s.GetProduct(ctx, id)
	if err != nil {
		return guestcart.Product{}, err
	}
	return guestcart.Product{
		ID:        product.ID,
		Name:      product.Name,
		UnitPrice: product.FinalPrice,
		ImageRef:  product.ImageRef,
	}, nil
}
