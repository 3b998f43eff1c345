package address

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/angelmondragon/storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/storefront"
	"github.com/go-playground/validator/v10"
)

// Form is the address editor's input.
type Form struct {
	Name         string `json:"name" validate:"required,max=100"`
	Phone        string `json:"phone" validate:"required,numeric,len=10"`
	AddressLine1 string `json:"addressLine1" validate:"required,max=200"`
	AddressLine2 string `json:"addressLine2" validate:"omitempty,max=200"`
	City         string `json:"city" validate:"required,max=100"`
	State        string `json:"state" validate:"required,max=100"`
	Pincode      string `json:"pincode" validate:"required,numeric,len=6"`
	AddressType  string `json:"addressType" validate:"required,address_type"`
	IsDefault    bool   `json:"isDefault"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	_ = v.RegisterValidation("address_type", func(fl validator.FieldLevel) bool {
		_, err := enums.ParseAddressType(fl.Field().String())
		return err == nil
	})
	return v
}

func (f Form) normalized() Form {
	f.Name = strings.TrimSpace(f.Name)
	f.Phone = strings.TrimSpace(f.Phone)
	f.AddressLine1 = strings.TrimSpace(f.AddressLine1)
	f.AddressLine2 = strings.TrimSpace(f.AddressLine2)
	f.City = strings.TrimSpace(f.City)
	f.State = strings.TrimSpace(f.State)
	f.Pincode = strings.TrimSpace(f.Pincode)
	f.AddressType = strings.TrimSpace(f.AddressType)
	return f
}

// Validate checks the form and returns the address it describes.
func (f Form) Validate() (storefront.Address, error) {
	f = f.normalized()
	if err := validate.Struct(f); err != nil {
		return storefront.Address{}, formatValidationErrors(err)
	}
	kind, _ := enums.ParseAddressType(f.AddressType)
	return storefront.Address{
		Name:         f.Name,
		Phone:        f.Phone,
		AddressLine1: f.AddressLine1,
		AddressLine2: f.AddressLine2,
		City:         f.City,
		State:        f.State,
		Pincode:      f.Pincode,
		AddressType:  kind.String(),
		IsDefault:    f.IsDefault,
	}, nil
}

func formatValidationErrors(err error) *pkgerrors.Error {
	if errs, ok := err.(validator.ValidationErrors); ok {
		details := map[string]string{}
		for _, fieldErr := range errs {
			details[fieldErr.Field()] = validationMessage(fieldErr)
		}
		return pkgerrors.New(pkgerrors.CodeValidation, "Please check the highlighted address fields.").WithDetails(details)
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid address")
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "len":
		return fmt.Sprintf("must be %s digits", fe.Param())
	case "numeric":
		return "must contain digits only"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "address_type":
		return "must be home, work or other"
	}
	return "is invalid"
}
