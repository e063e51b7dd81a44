package enums

import "fmt"

// CheckoutState is the explicit tag of the checkout state machine.
type CheckoutState string

const (
	CheckoutStateIdle                 CheckoutState = "idle"
	CheckoutStateValidatingForm       CheckoutState = "validating_form"
	CheckoutStateCreatingIntent       CheckoutState = "creating_intent"
	CheckoutStateAwaitingConfirmation CheckoutState = "awaiting_confirmation"
	CheckoutStateConfirming           CheckoutState = "confirming"
	CheckoutStateSucceeded            CheckoutState = "succeeded"
	CheckoutStateFailed               CheckoutState = "failed"
	CheckoutStatePersistingOrder      CheckoutState = "persisting_order"
	CheckoutStateCompleted            CheckoutState = "completed"
	CheckoutStateSetupFailed          CheckoutState = "setup_failed"
	CheckoutStateOrderRecordingFailed CheckoutState = "order_recording_failed"
)

var validCheckoutStates = []CheckoutState{
	CheckoutStateIdle,
	CheckoutStateValidatingForm,
	CheckoutStateCreatingIntent,
	CheckoutStateAwaitingConfirmation,
	CheckoutStateConfirming,
	CheckoutStateSucceeded,
	CheckoutStateFailed,
	CheckoutStatePersistingOrder,
	CheckoutStateCompleted,
	CheckoutStateSetupFailed,
	CheckoutStateOrderRecordingFailed,
}

// String implements fmt.Stringer.
func (s CheckoutState) String() string {
	return string(s)
}

// IsValid reports whether the value is a known CheckoutState.
func (s CheckoutState) IsValid() bool {
	for _, candidate := range validCheckoutStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsBusy reports whether a submission is in flight. The submit control stays disabled while true.
func (s CheckoutState) IsBusy() bool {
	switch s {
	case CheckoutStateValidatingForm,
		CheckoutStateCreatingIntent,
		CheckoutStateConfirming,
		CheckoutStateSucceeded,
		CheckoutStatePersistingOrder:
		return true
	}
	return false
}

// IsTerminal reports whether the flow has ended for this session.
func (s CheckoutState) IsTerminal() bool {
	return s == CheckoutStateCompleted || s == CheckoutStateOrderRecordingFailed
}

// ParseCheckoutState converts raw input into a CheckoutState.
func ParseCheckoutState(value string) (CheckoutState, error) {
	for _, candidate := range validCheckoutStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid checkout state %q", value)
}
