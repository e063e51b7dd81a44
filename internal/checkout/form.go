package checkout

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/angelmondragon/nordstil-checkout/internal/address"
	"github.com/angelmondragon/nordstil-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/nordstil-checkout/pkg/errors"
)

// Form field names as sent by the client.
const (
	FieldShippingName       = "shipping_name"
	FieldShippingEmail      = "shipping_email"
	FieldShippingPhone      = "shipping_phone"
	FieldShippingAddress    = "shipping_address"
	FieldShippingCity       = "shipping_city"
	FieldShippingPostalCode = "shipping_postal_code"
	FieldShippingCountry    = "shipping_country"
	FieldBillingName        = "billing_name"
	FieldBillingEmail       = "billing_email"
	FieldBillingPhone       = "billing_phone"
	FieldBillingAddress     = "billing_address"
	FieldBillingCity        = "billing_city"
	FieldBillingPostalCode  = "billing_postal_code"
	FieldBillingCountry     = "billing_country"
	FieldBillingSame        = "billing_same_as_shipping"
	FieldPaymentMethod      = "payment_method"
	FieldNotes              = "notes"

	shippingPrefix = "shipping_"
	billingPrefix  = "billing_"
)

var addressSuffixes = []string{"name", "email", "phone", "address", "city", "postal_code", "country"}

var formValidator = newFormValidator()

func newFormValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

// Form is the checkout form. While BillingSameAsShipping is true every billing
// field equals its shipping field.
type Form struct {
	ShippingName          string              `json:"shipping_name" validate:"required"`
	ShippingEmail         string              `json:"shipping_email" validate:"required,email"`
	ShippingPhone         string              `json:"shipping_phone"`
	ShippingAddress       string              `json:"shipping_address" validate:"required"`
	ShippingCity          string              `json:"shipping_city" validate:"required"`
	ShippingPostalCode    string              `json:"shipping_postal_code" validate:"required"`
	ShippingCountry       string              `json:"shipping_country"`
	BillingName           string              `json:"billing_name"`
	BillingEmail          string              `json:"billing_email"`
	BillingPhone          string              `json:"billing_phone"`
	BillingAddress        string              `json:"billing_address"`
	BillingCity           string              `json:"billing_city"`
	BillingPostalCode     string              `json:"billing_postal_code"`
	BillingCountry        string              `json:"billing_country"`
	BillingSameAsShipping bool                `json:"billing_same_as_shipping"`
	PaymentMethod         enums.PaymentMethod `json:"payment_method"`
	Notes                 string              `json:"notes"`
	Errors                map[string]string   `json:"errors,omitempty"`
}

// NewForm returns a blank form with billing mirroring on and card payment selected.
func NewForm() Form {
	return Form{
		BillingSameAsShipping: true,
		PaymentMethod:         enums.PaymentMethodStripe,
	}
}

// Update applies one field change. Mirroring happens within the same call so no
// caller ever sees a partially copied billing block.
func (f *Form) Update(field string, value any) error {
	field = strings.TrimSpace(field)
	switch field {
	case FieldBillingSame:
		flag, ok := value.(bool)
		if !ok {
			return fieldTypeError(field, "a boolean")
		}
		f.BillingSameAsShipping = flag
		if flag {
			f.copyShippingToBilling()
		}
	case FieldPaymentMethod:
		raw, ok := value.(string)
		if !ok {
			return fieldTypeError(field, "a string")
		}
		method, err := enums.ParsePaymentMethod(strings.TrimSpace(raw))
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method").
				WithDetails(map[string]string{field: "must be stripe or paypal"})
		}
		f.PaymentMethod = method
	case FieldNotes:
		raw, ok := value.(string)
		if !ok {
			return fieldTypeError(field, "a string")
		}
		f.Notes = strings.TrimSpace(raw)
	default:
		ptr := f.textField(field)
		if ptr == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "unknown field").
				WithDetails(map[string]string{field: "is not a checkout field"})
		}
		if f.BillingSameAsShipping && strings.HasPrefix(field, billingPrefix) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "billing address mirrors shipping").
				WithDetails(map[string]string{field: "turn off billing_same_as_shipping to edit"})
		}
		raw, ok := value.(string)
		if !ok {
			return fieldTypeError(field, "a string")
		}
		*ptr = strings.TrimSpace(raw)
		if f.BillingSameAsShipping && strings.HasPrefix(field, shippingPrefix) {
			*f.textField(billingPrefix + strings.TrimPrefix(field, shippingPrefix)) = *ptr
		}
	}
	delete(f.Errors, field)
	return nil
}

// ApplyShipping routes all seven shipping values through Update.
func (f *Form) ApplyShipping(fields address.Fields) {
	values := shippingValues(fields)
	for _, suffix := range addressSuffixes {
		_ = f.Update(shippingPrefix+suffix, values[suffix])
	}
}

// Validate checks the required shipping fields and records one message per
// failing field. It reports a validation error carrying those messages.
func (f *Form) Validate() error {
	f.Errors = nil
	if !f.PaymentMethod.IsValid() {
		f.Errors = map[string]string{FieldPaymentMethod: "must be stripe or paypal"}
	}
	if err := formValidator.Struct(f); err != nil {
		errs, ok := err.(validator.ValidationErrors)
		if !ok {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
		}
		if f.Errors == nil {
			f.Errors = map[string]string{}
		}
		for _, fe := range errs {
			f.Errors[fe.Field()] = validationMessage(fe)
		}
	}
	if len(f.Errors) == 0 {
		f.Errors = nil
		return nil
	}
	details := make(map[string]string, len(f.Errors))
	for k, v := range f.Errors {
		details[k] = v
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "please fill in the required fields").WithDetails(details)
}

// Shipping returns the shipping block.
func (f *Form) Shipping() address.Fields {
	return address.Fields{
		Name:       f.ShippingName,
		Email:      f.ShippingEmail,
		Phone:      f.ShippingPhone,
		Address:    f.ShippingAddress,
		City:       f.ShippingCity,
		PostalCode: f.ShippingPostalCode,
		Country:    f.ShippingCountry,
	}
}

// Billing returns the billing block.
func (f *Form) Billing() address.Fields {
	return address.Fields{
		Name:       f.BillingName,
		Email:      f.BillingEmail,
		Phone:      f.BillingPhone,
		Address:    f.BillingAddress,
		City:       f.BillingCity,
		PostalCode: f.BillingPostalCode,
		Country:    f.BillingCountry,
	}
}

// Metadata is attached to the payment intent.
func (f *Form) Metadata() map[string]string {
	out := make(map[string]string, 2*len(addressSuffixes))
	for _, suffix := range addressSuffixes {
		out[shippingPrefix+suffix] = *f.textField(shippingPrefix + suffix)
		out[billingPrefix+suffix] = *f.textField(billingPrefix + suffix)
	}
	return out
}

// IsShippingField reports whether the field belongs to the shipping block.
func IsShippingField(field string) bool {
	return strings.HasPrefix(strings.TrimSpace(field), shippingPrefix)
}

func (f *Form) copyShippingToBilling() {
	f.BillingName = f.ShippingName
	f.BillingEmail = f.ShippingEmail
	f.BillingPhone = f.ShippingPhone
	f.BillingAddress = f.ShippingAddress
	f.BillingCity = f.ShippingCity
	f.BillingPostalCode = f.ShippingPostalCode
	f.BillingCountry = f.ShippingCountry
}

func (f *Form) textField(field string) *string {
	switch field {
	case FieldShippingName:
		return &f.ShippingName
	case FieldShippingEmail:
		return &f.ShippingEmail
	case FieldShippingPhone:
		return &f.ShippingPhone
	case FieldShippingAddress:
		return &f.ShippingAddress
	case FieldShippingCity:
		return &f.ShippingCity
	case FieldShippingPostalCode:
		return &f.ShippingPostalCode
	case FieldShippingCountry:
		return &f.ShippingCountry
	case FieldBillingName:
		return &f.BillingName
	case FieldBillingEmail:
		return &f.BillingEmail
	case FieldBillingPhone:
		return &f.BillingPhone
	case FieldBillingAddress:
		return &f.BillingAddress
	case FieldBillingCity:
		return &f.BillingCity
	case FieldBillingPostalCode:
		return &f.BillingPostalCode
	case FieldBillingCountry:
		return &f.BillingCountry
	}
	return nil
}

func shippingValues(a address.Fields) map[string]string {
	return map[string]string{
		"name":        a.Name,
		"email":       a.Email,
		"phone":       a.Phone,
		"address":     a.Address,
		"city":        a.City,
		"postal_code": a.PostalCode,
		"country":     a.Country,
	}
}

func fieldTypeError(field, want string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid field value").
		WithDetails(map[string]string{field: fmt.Sprintf("must be %s", want)})
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	}
	return "is invalid"
}
