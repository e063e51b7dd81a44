package payments

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/nordstil-checkout/pkg/errors"
)

const (
	WidgetStatusSucceeded = "succeeded"
	WidgetStatusFailed    = "failed"

	defaultDeclineMessage = "your payment was declined, please try another card"
)

// ConfirmRequest is what the card widget hands back for one confirmation attempt.
type ConfirmRequest struct {
	// PaymentMethodID asks for a server-side confirmation with this payment method.
	PaymentMethodID string
	// WidgetStatus and WidgetError carry a confirmation the widget performed itself.
	WidgetStatus string
	WidgetError  string
}

// Outcome is the result of a confirmation attempt. A decline is not an error.
type Outcome struct {
	Succeeded      bool
	Status         string
	DeclineMessage string
}

// Confirmer confirms a card payment for an existing intent.
type Confirmer interface {
	Confirm(ctx context.Context, intent Intent, req ConfirmRequest) (Outcome, error)
}

// WidgetConfirmer accepts the result reported by the card widget. It is used when
// no Stripe key is configured. Only backend intents are accepted: the order request
// carries the payment intent id and the backend, which owns the intent, checks its
// status before recording the order.
type WidgetConfirmer struct{}

func (WidgetConfirmer) Confirm(_ context.Context, intent Intent, req ConfirmRequest) (Outcome, error) {
	if intent.Source != SourceBackend {
		return Outcome{}, pkgerrors.New(pkgerrors.CodeInternal, "widget results are only trusted for backend payment intents")
	}
	if strings.TrimSpace(req.PaymentMethodID) != "" {
		return Outcome{}, pkgerrors.New(pkgerrors.CodeValidation, "server-side confirmation is not available")
	}
	switch strings.ToLower(strings.TrimSpace(req.WidgetStatus)) {
	case WidgetStatusSucceeded:
		return Outcome{Succeeded: true, Status: WidgetStatusSucceeded}, nil
	case WidgetStatusFailed:
		return Outcome{Status: WidgetStatusFailed, DeclineMessage: declineMessage(req.WidgetError)}, nil
	default:
		return Outcome{}, pkgerrors.New(pkgerrors.CodeValidation, "widget status must be succeeded or failed")
	}
}

// PayPalDemo simulates an approval after a fixed delay.
type PayPalDemo struct {
	Delay time.Duration
}

// Approve waits for the configured delay. It returns the context error when the
// caller goes away first.
func (p PayPalDemo) Approve(ctx context.Context) (string, error) {
	if p.Delay > 0 {
		timer := time.NewTimer(p.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}
	return "paypal_demo_" + uuid.NewString(), nil
}

func declineMessage(msg string) string {
	if msg = strings.TrimSpace(msg); msg != "" {
		return msg
	}
	return defaultDeclineMessage
}
