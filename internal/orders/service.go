package orders

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/angelmondragon/storefront/internal/prompts"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/storefront"
)

const (
	dialogTitleNotCancellable = "Order cannot be cancelled"
	messageNotCancellable     = "Only pending cash-on-delivery orders can be cancelled. Please contact support for help with this order."
	messageConfirmCancel      = "Cancel this order?"
	messageCancelled          = "Your order has been cancelled."
)

// API is the slice of the storefront client order history needs.
type API interface {
	ListOrders(ctx context.Context) ([]storefront.Order, error)
	CancelOrder(ctx context.Context, orderID string) error
}

type Service interface {
	ListOrders(ctx context.Context) ([]Order, error)
	RequestCancellation(ctx context.Context, order Order) ([]Order, error)
	// CancelByID looks the order up in the shopper's history first.
	CancelByID(ctx context.Context, orderID string) ([]Order, error)
}

type service struct {
	api      API
	ui       prompts.UI
	reporter *prompts.FailureReporter
	logg     *logger.Logger
}

func NewService(api API, ui prompts.UI, reporter *prompts.FailureReporter, logg *logger.Logger) (Service, error) {
	if api == nil {
		return nil, fmt.Errorf("storefront api required")
	}
	if ui == nil {
		return nil, fmt.Errorf("ui ports required")
	}
	if reporter == nil {
		return nil, fmt.Errorf("failure reporter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{api: api, ui: ui, reporter: reporter, logg: logg}, nil
}

func (s *service) ListOrders(ctx context.Context) ([]Order, error) {
	raw, err := s.api.ListOrders(ctx)
	if err != nil {
		return []Order{}, s.reporter.Report(ctx, "orders.list_failed", err, "Could not load your orders.")
	}
	out := make([]Order, 0, len(raw))
	for _, order := range raw {
		out = append(out, fromAPI(order))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *service) RequestCancellation(ctx context.Context, order Order) ([]Order, error) {
	ctx = s.logg.WithOrderID(ctx, order.ID)
	if !CanCancel(order) {
		s.ui.Inform(ctx, prompts.Dialog{Title: dialogTitleNotCancellable, Message: messageNotCancellable})
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, messageNotCancellable).WithDetails(map[string]any{
			"status":        order.Status,
			"paymentMethod": order.PaymentMethod,
		})
	}
	ok, err := s.ui.Confirm(ctx, prompts.Prompt{Action: "cancel_order", Message: messageConfirmCancel})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeConfirmation, messageConfirmCancel)
	}
	if err := s.api.CancelOrder(ctx, order.ID); err != nil {
		return nil, s.reporter.Report(ctx, "orders.cancel_failed", err, "Could not cancel the order.")
	}
	s.logg.Info(ctx, "orders.cancelled")
	s.ui.Notify(ctx, prompts.Success(messageCancelled))
	return s.ListOrders(ctx)
}

func (s *service) CancelByID(ctx context.Context, orderID string) ([]Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	history, err := s.ListOrders(ctx)
	if err != nil {
		return nil, err
	}
	for _, order := range history {
		if order.ID == orderID {
			return s.RequestCancellation(ctx, order)
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}
