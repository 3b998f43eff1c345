package address

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront/internal/prompts"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/storefront"
)

// API is the slice of the storefront client the address book needs.
type API interface {
	ListAddresses(ctx context.Context) ([]storefront.Address, error)
	CreateAddress(ctx context.Context, addr storefront.Address) (*storefront.Address, error)
	UpdateAddress(ctx context.Context, addr storefront.Address) (*storefront.Address, error)
	DeleteAddress(ctx context.Context, id string) error
}

type Service interface {
	List(ctx context.Context) ([]storefront.Address, error)
	Create(ctx context.Context, form Form) (*storefront.Address, error)
	Update(ctx context.Context, id string, form Form) (*storefront.Address, error)
	Delete(ctx context.Context, id string) error
	// Find returns the saved address with id.
	Find(ctx context.Context, id string) (storefront.Address, error)
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

func (s *service) List(ctx context.Context) ([]storefront.Address, error) {
	addresses, err := s.api.ListAddresses(ctx)
	if err != nil {
		return []storefront.Address{}, s.reporter.Report(ctx, "address.list_failed", err, "Could not load your addresses.")
	}
	return addresses, nil
}

func (s *service) Create(ctx context.Context, form Form) (*storefront.Address, error) {
	addr, err := s.validate(ctx, form)
	if err != nil {
		return nil, err
	}
	created, err := s.api.CreateAddress(ctx, addr)
	if err != nil {
		return nil, s.reporter.Report(ctx, "address.create_failed", err, "Could not save the address.")
	}
	s.ui.Notify(ctx, prompts.Success("Address saved."))
	return created, nil
}

func (s *service) Update(ctx context.Context, id string, form Form) (*storefront.Address, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address id is required")
	}
	addr, err := s.validate(ctx, form)
	if err != nil {
		return nil, err
	}
	addr.ID = id
	updated, err := s.api.UpdateAddress(ctx, addr)
	if err != nil {
		return nil, s.reporter.Report(ctx, "address.update_failed", err, "Could not update the address.")
	}
	s.ui.Notify(ctx, prompts.Success("Address updated."))
	return updated, nil
}

func (s *service) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "address id is required")
	}
	ok, err := s.ui.Confirm(ctx, prompts.Prompt{Action: "delete_address", Message: "Delete this address?"})
	if err != nil {
		return err
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeConfirmation, "Delete this address?")
	}
	if err := s.api.DeleteAddress(ctx, id); err != nil {
		return s.reporter.Report(ctx, "address.delete_failed", err, "Could not delete the address.")
	}
	return nil
}

func (s *service) Find(ctx context.Context, id string) (storefront.Address, error) {
	addresses, err := s.List(ctx)
	if err != nil {
		return storefront.Address{}, err
	}
	for _, addr := range addresses {
		if addr.ID == id {
			return addr, nil
		}
	}
	return storefront.Address{}, pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
}

func (s *service) validate(ctx context.Context, form Form) (storefront.Address, error) {
	addr, err := form.Validate()
	if err != nil {
		s.ui.Notify(ctx, prompts.Error(pkgerrors.UserMessage(err, "Please check the address.")))
		return storefront.Address{}, err
	}
	return addr, nil
}

// SelectDefault picks the address checkout starts with: the one flagged
// default, else the first, else none.
func SelectDefault(addresses []storefront.Address) (storefront.Address, bool) {
	for _, addr := range addresses {
		if addr.IsDefault {
			return addr, true
		}
	}
	if len(addresses) > 0 {
		return addresses[0], true
	}
	return storefront.Address{}, false
}
