package enums

// CheckoutErrorKind classifies the last user-visible checkout error.
type CheckoutErrorKind string

const (
	CheckoutErrorValidation     CheckoutErrorKind = "validation"
	CheckoutErrorPaymentSetup   CheckoutErrorKind = "payment_setup"
	CheckoutErrorPaymentConfirm CheckoutErrorKind = "payment_confirmation"
	CheckoutErrorOrderRecording CheckoutErrorKind = "order_recording"
	CheckoutErrorUnexpected     CheckoutErrorKind = "unexpected"
)

// String implements fmt.Stringer.
func (k CheckoutErrorKind) String() string {
	return string(k)
}
