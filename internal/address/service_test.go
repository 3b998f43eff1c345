package address

import (
	"context"
	"io"
	"testing"

	"github.com/angelmondragon/storefront/internal/prompts"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/storefront"
)

type stubAPI struct {
	addresses []storefront.Address
	created   []storefront.Address
	updated   []storefront.Address
	deleted   []string
}

func (s *stubAPI) ListAddresses(context.Context) ([]storefront.Address, error) {
	return s.addresses, nil
}

func (s *stubAPI) CreateAddress(_ context.Context, addr storefront.Address) (*storefront.Address, error) {
	s.created = append(s.created, addr)
	addr.ID = "new-id"
	return &addr, nil
}

func (s *stubAPI) UpdateAddress(_ context.Context, addr storefront.Address) (*storefront.Address, error) {
	s.updated = append(s.updated, addr)
	return &addr, nil
}

func (s *stubAPI) DeleteAddress(_ context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	return nil
}

func newTestService(t *testing.T, api API, confirmed bool) (Service, *prompts.Recorder) {
	t.Helper()
	rec := prompts.NewRecorder(confirmed)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	svc, err := NewService(api, rec, prompts.NewFailureReporter(rec, logg, nil), logg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, rec
}

func validForm() Form {
	return Form{
		Name:         " Asha Rao ",
		Phone:        "9876543210",
		AddressLine1: "12 MG Road",
		City:         "Pune",
		State:        "Maharashtra",
		Pincode:      "411001",
		AddressType:  "Office",
	}
}

func TestFormValidateNormalizes(t *testing.T) {
	addr, err := validForm().Validate()
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if addr.Name != "Asha Rao" {
		t.Fatalf("expected trimmed name, got %q", addr.Name)
	}
	if addr.AddressType != "work" {
		t.Fatalf("expected office to map to work, got %q", addr.AddressType)
	}
}

func TestFormValidateRejects(t *testing.T) {
	cases := map[string]func(*Form){
		"phone":       func(f *Form) { f.Phone = "12345" },
		"pincode":     func(f *Form) { f.Pincode = "41100A" },
		"addressType": func(f *Form) { f.AddressType = "villa" },
		"city":        func(f *Form) { f.City = "  " },
	}
	for field, mutate := range cases {
		form := validForm()
		mutate(&form)
		_, err := form.Validate()
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("%s: expected validation error, got %v", field, err)
		}
		details, ok := typed.Details().(map[string]string)
		if !ok || details[field] == "" {
			t.Fatalf("%s: expected field detail, got %+v", field, typed.Details())
		}
	}
}

func TestCreateValidatesBeforeCall(t *testing.T) {
	api := &stubAPI{}
	svc, rec := newTestService(t, api, false)
	form := validForm()
	form.Phone = ""

	if _, err := svc.Create(context.Background(), form); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(api.created) != 0 {
		t.Fatal("expected no network call")
	}
	if len(rec.Meta().Notices) != 1 {
		t.Fatal("expected error notice")
	}

	created, err := svc.Create(context.Background(), validForm())
	if err != nil || created.ID != "new-id" {
		t.Fatalf("create: %+v (%v)", created, err)
	}
}

func TestUpdateCarriesID(t *testing.T) {
	api := &stubAPI{}
	svc, _ := newTestService(t, api, false)

	if _, err := svc.Update(context.Background(), "a1", validForm()); err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(api.updated) != 1 || api.updated[0].ID != "a1" {
		t.Fatalf("unexpected update %+v", api.updated)
	}
}

func TestDeleteNeedsConfirmation(t *testing.T) {
	api := &stubAPI{}
	svc, _ := newTestService(t, api, false)
	if err := svc.Delete(context.Background(), "a1"); !pkgerrors.Is(err, pkgerrors.CodeConfirmation) {
		t.Fatalf("expected confirmation error, got %v", err)
	}
	if len(api.deleted) != 0 {
		t.Fatal("expected no call")
	}

	svc, _ = newTestService(t, api, true)
	if err := svc.Delete(context.Background(), "a1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(api.deleted) != 1 {
		t.Fatal("expected delete call")
	}
}

func TestSelectDefault(t *testing.T) {
	if _, ok := SelectDefault(nil); ok {
		t.Fatal("expected no selection for empty book")
	}
	book := []storefront.Address{{ID: "a"}, {ID: "b", IsDefault: true}}
	if got, _ := SelectDefault(book); got.ID != "b" {
		t.Fatalf("expected default address, got %q", got.ID)
	}
	if got, _ := SelectDefault(book[:1]); got.ID != "a" {
		t.Fatalf("expected first address, got %q", got.ID)
	}
}

func TestFindAddress(t *testing.T) {
	api := &stubAPI{addresses: []storefront.Address{{ID: "a"}}}
	svc, _ := newTestService(t, api, false)
	if _, err := svc.Find(context.Background(), "zzz"); !pkgerrors.Is(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if got, err := svc.Find(context.Background(), "a"); err != nil || got.ID != "a" {
		t.Fatalf("find: %+v (%v)", got, err)
	}
}
