package storefront

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
)

// Address is a saved delivery address in the backend's field naming.
type Address struct {
	ID           string `json:"id,omitempty"`
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
	Pincode      string `json:"pincode"`
	AddressType  string `json:"addressType"`
	IsDefault    bool   `json:"isDefault"`
}

type wireAddress struct {
	identity
	Name         string `json:"name"`
	FullName     string `json:"fullName"`
	Phone        string `json:"phone"`
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2"`
	City         string `json:"city"`
	State        string `json:"state"`
	Pincode      string `json:"pincode"`
	AddressType  string `json:"addressType"`
	IsDefault    bool   `json:"isDefault"`
}

// addressPayload is the create/update body; the identifier travels in the path.
type addressPayload struct {
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
	Pincode      string `json:"pincode"`
	AddressType  string `json:"addressType"`
	IsDefault    bool   `json:"isDefault"`
}

func payloadFrom(addr Address) addressPayload {
	return addressPayload{
		Name:         addr.Name,
		Phone:        addr.Phone,
		AddressLine1: addr.AddressLine1,
		AddressLine2: addr.AddressLine2,
		City:         addr.City,
		State:        addr.State,
		Pincode:      addr.Pincode,
		AddressType:  addr.AddressType,
		IsDefault:    addr.IsDefault,
	}
}

func (w wireAddress) toAddress() Address {
	return Address{
		ID:           w.value(),
		Name:         firstNonEmpty(w.Name, w.FullName),
		Phone:        w.Phone,
		AddressLine1: w.AddressLine1,
		AddressLine2: w.AddressLine2,
		City:         w.City,
		State:        w.State,
		Pincode:      w.Pincode,
		AddressType:  w.AddressType,
		IsDefault:    w.IsDefault,
	}
}

// ListAddresses returns the visitor's saved addresses.
func (c *Client) ListAddresses(ctx context.Context) ([]Address, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "list_addresses", http.MethodGet, "addresses", nil, &raw); err != nil {
		return nil, err
	}
	var wire []wireAddress
	if err := unwrap(raw, &wire, "addresses", "data"); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode list_addresses response")
	}
	addresses := make([]Address, 0, len(wire))
	for _, w := range wire {
		addresses = append(addresses, w.toAddress())
	}
	return addresses, nil
}

// CreateAddress saves a new address and returns it with its identifier.
func (c *Client) CreateAddress(ctx context.Context, addr Address) (*Address, error) {
	return c.writeAddress(ctx, "create_address", http.MethodPost, "addresses", addr)
}

// UpdateAddress replaces an existing address.
func (c *Client) UpdateAddress(ctx context.Context, addr Address) (*Address, error) {
	if strings.TrimSpace(addr.ID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address id is required")
	}
	return c.writeAddress(ctx, "update_address", http.MethodPut, "addresses/"+url.PathEscape(addr.ID), addr)
}

// DeleteAddress removes an address.
func (c *Client) DeleteAddress(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "address id is required")
	}
	return c.do(ctx, "delete_address", http.MethodDelete, "addresses/"+url.PathEscape(id), nil, nil)
}

func (c *Client) writeAddress(ctx context.Context, op, method, path string, addr Address) (*Address, error) {
	var raw json.RawMessage
	if err := c.do(ctx, op, method, path, payloadFrom(addr), &raw); err != nil {
		return nil, err
	}
	var wire wireAddress
	if len(strings.TrimSpace(string(raw))) > 0 {
		if err := unwrap(raw, &wire, "address", "data"); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode "+op+" response")
		}
	}
	saved := wire.toAddress()
	if saved.ID == "" {
		saved = addr
	}
	return &saved, nil
}
