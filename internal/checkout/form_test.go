package checkout

import (
	"testing"

	"github.com/angelmondragon/nordstil-checkout/internal/address"
	"github.com/angelmondragon/nordstil-checkout/internal/cart"
	"github.com/angelmondragon/nordstil-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/nordstil-checkout/pkg/errors"
)

var savedAddress = address.Fields{
	Name:       "Astrid Lind",
	Email:      "astrid@example.se",
	Phone:      "+46701234567",
	Address:    "Storgatan 1",
	City:       "Stockholm",
	PostalCode: "11122",
	Country:    "SE",
}

func TestNewFormDefaults(t *testing.T) {
	f := NewForm()
	if !f.BillingSameAsShipping {
		t.Fatal("billing mirroring should default on")
	}
	if f.PaymentMethod != enums.PaymentMethodStripe {
		t.Fatalf("expected stripe default, got %s", f.PaymentMethod)
	}
}

func TestUpdateMirrorsShippingWhileFlagOn(t *testing.T) {
	f := NewForm()
	for _, suffix := range addressSuffixes {
		field := shippingPrefix + suffix
		if err := f.Update(field, "  value-"+suffix+" "); err != nil {
			t.Fatalf("update %s: %v", field, err)
		}
		if got := *f.textField(billingPrefix + suffix); got != "value-"+suffix {
			t.Fatalf("billing_%s not mirrored in the same update: %q", suffix, got)
		}
	}
}

func TestUpdateDoesNotMirrorWhenFlagOff(t *testing.T) {
	f := NewForm()
	if err := f.Update(FieldBillingSame, false); err != nil {
		t.Fatalf("update flag: %v", err)
	}
	if err := f.Update(FieldShippingCity, "Malmö"); err != nil {
		t.Fatalf("update city: %v", err)
	}
	if f.BillingCity != "" {
		t.Fatalf("billing city changed without mirroring: %q", f.BillingCity)
	}
	if err := f.Update(FieldBillingCity, "Lund"); err != nil {
		t.Fatalf("update billing: %v", err)
	}
	if f.ShippingCity != "Malmö" || f.BillingCity != "Lund" {
		t.Fatalf("unexpected cities %q / %q", f.ShippingCity, f.BillingCity)
	}
}

func TestUpdateRejectsBillingEditWhileMirroring(t *testing.T) {
	f := NewForm()
	if err := f.Update(FieldShippingCity, "Oslo"); err != nil {
		t.Fatalf("update shipping: %v", err)
	}
	err := f.Update(FieldBillingCity, "Bergen")
	if pkgerrors.CodeOf(err) != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if !f.BillingSameAsShipping || f.BillingCity != "Oslo" {
		t.Fatalf("billing must keep mirroring shipping, got flag=%v city=%q", f.BillingSameAsShipping, f.BillingCity)
	}

	draft := BuildDraft(f, &cart.View{}, "pi_1", "")
	if draft.BillingAddress.City != draft.ShippingAddress.City {
		t.Fatalf("draft billing city %q differs from shipping %q", draft.BillingAddress.City, draft.ShippingAddress.City)
	}
}

func TestTurningFlagOnCopiesAllShippingFields(t *testing.T) {
	f := NewForm()
	_ = f.Update(FieldBillingSame, false)
	f.ApplyShipping(savedAddress)
	_ = f.Update(FieldBillingName, "Someone Else")
	_ = f.Update(FieldBillingCountry, "NO")

	if err := f.Update(FieldBillingSame, true); err != nil {
		t.Fatalf("update flag: %v", err)
	}
	if f.Billing() != f.Shipping() {
		t.Fatalf("billing %+v does not equal shipping %+v", f.Billing(), f.Shipping())
	}
}

func TestUpdateClearsFieldError(t *testing.T) {
	f := NewForm()
	if err := f.Validate(); err == nil {
		t.Fatal("expected validation error on blank form")
	}
	if _, ok := f.Errors[FieldShippingCity]; !ok {
		t.Fatalf("expected shipping_city error, got %v", f.Errors)
	}
	_ = f.Update(FieldShippingCity, "Oslo")
	if _, ok := f.Errors[FieldShippingCity]; ok {
		t.Fatal("error not cleared on change")
	}
	if _, ok := f.Errors[FieldShippingName]; !ok {
		t.Fatal("other errors must stay")
	}
}

func TestUpdateRejectsUnknownFieldsAndTypes(t *testing.T) {
	f := NewForm()
	cases := []struct {
		field string
		value any
	}{
		{"shipping_planet", "Mars"},
		{FieldShippingName, 42},
		{FieldBillingSame, "yes"},
		{FieldPaymentMethod, "cash"},
		{FieldNotes, true},
	}
	for _, tc := range cases {
		err := f.Update(tc.field, tc.value)
		if pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
			t.Fatalf("%s=%v: expected validation error, got %v", tc.field, tc.value, err)
		}
	}
}

func TestValidateReportsExactlyMissingRequiredFields(t *testing.T) {
	f := NewForm()
	_ = f.Update(FieldShippingName, "Astrid")
	_ = f.Update(FieldShippingCity, "Stockholm")
	_ = f.Update(FieldShippingPhone, "123")

	err := f.Validate()
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	details := typed.Details().(map[string]string)
	want := []string{FieldShippingEmail, FieldShippingAddress, FieldShippingPostalCode}
	if len(details) != len(want) {
		t.Fatalf("expected %d field errors, got %v", len(want), details)
	}
	for _, field := range want {
		if details[field] != "is required" {
			t.Fatalf("expected %s required, got %v", field, details)
		}
	}
}

func TestValidateRejectsBadEmail(t *testing.T) {
	f := NewForm()
	f.ApplyShipping(savedAddress)
	_ = f.Update(FieldShippingEmail, "not-an-email")
	err := f.Validate()
	if pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if f.Errors[FieldShippingEmail] != "must be a valid email" {
		t.Fatalf("unexpected errors %v", f.Errors)
	}
}

func TestValidatePassesCompleteForm(t *testing.T) {
	f := NewForm()
	f.ApplyShipping(savedAddress)
	if err := f.Validate(); err != nil {
		t.Fatalf("expected valid form: %v", err)
	}
	if f.Errors != nil {
		t.Fatalf("expected no errors, got %v", f.Errors)
	}
}

func TestMetadataCarriesShippingAndBilling(t *testing.T) {
	f := NewForm()
	f.ApplyShipping(savedAddress)
	md := f.Metadata()
	if len(md) != 14 {
		t.Fatalf("expected 14 metadata keys, got %d", len(md))
	}
	if md[FieldShippingPostalCode] != "11122" || md[FieldBillingPostalCode] != "11122" {
		t.Fatalf("unexpected metadata %v", md)
	}
}
