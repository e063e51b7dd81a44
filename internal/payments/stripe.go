package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"

	pkgerrors "github.com/angelmondragon/nordstil-checkout/pkg/errors"
	pkgstripe "github.com/angelmondragon/nordstil-checkout/pkg/stripe"
)

// StripeIntentAPI is the subset of Stripe payment intent operations used here.
type StripeIntentAPI interface {
	New(ctx context.Context, params *stripe.PaymentIntentCreateParams) (*stripe.PaymentIntent, error)
	Confirm(ctx context.Context, id string, params *stripe.PaymentIntentConfirmParams) (*stripe.PaymentIntent, error)
	Get(ctx context.Context, id string) (*stripe.PaymentIntent, error)
}

type stripeIntentWrapper struct {
	api *stripe.Client
}

// NewStripeIntentAPI wraps the configured Stripe client so callers can be tested.
func NewStripeIntentAPI(client *pkgstripe.Client) StripeIntentAPI {
	if client.API() == nil {
		return nil
	}
	return newStripeIntentWrapper(client.API())
}

func newStripeIntentWrapper(api *stripe.Client) *stripeIntentWrapper {
	return &stripeIntentWrapper{api: api}
}

func (w *stripeIntentWrapper) New(ctx context.Context, params *stripe.PaymentIntentCreateParams) (*stripe.PaymentIntent, error) {
	return w.api.V1PaymentIntents.Create(ctx, params)
}

func (w *stripeIntentWrapper) Confirm(ctx context.Context, id string, params *stripe.PaymentIntentConfirmParams) (*stripe.PaymentIntent, error) {
	return w.api.V1PaymentIntents.Confirm(ctx, id, params)
}

func (w *stripeIntentWrapper) Get(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
	return w.api.V1PaymentIntents.Retrieve(ctx, id, &stripe.PaymentIntentRetrieveParams{})
}

// StripeIntents creates intents directly against Stripe.
type StripeIntents struct {
	api StripeIntentAPI
}

func NewStripeIntents(api StripeIntentAPI) (*StripeIntents, error) {
	if api == nil {
		return nil, fmt.Errorf("stripe intent api required")
	}
	return &StripeIntents{api: api}, nil
}

func (s *StripeIntents) Source() string { return SourceStripe }

func (s *StripeIntents) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	params := &stripe.PaymentIntentCreateParams{
		Amount:             stripe.Int64(req.AmountCents),
		Currency:           stripe.String(strings.ToLower(req.Currency)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	}
	if email := strings.TrimSpace(req.CustomerEmail); email != "" {
		params.ReceiptEmail = stripe.String(email)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := s.api.New(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePaymentSetup, err, "create stripe payment intent")
	}
	if pi == nil {
		return nil, pkgerrors.New(pkgerrors.CodePaymentSetup, "stripe returned no payment intent")
	}
	return finish(pi.ClientSecret, pi.ID, req, SourceStripe)
}

// StripeConfirmer confirms card payments server side, or verifies a result the
// card widget reported.
type StripeConfirmer struct {
	api StripeIntentAPI
}

func NewStripeConfirmer(api StripeIntentAPI) (*StripeConfirmer, error) {
	if api == nil {
		return nil, fmt.Errorf("stripe intent api required")
	}
	return &StripeConfirmer{api: api}, nil
}

func (s *StripeConfirmer) Confirm(ctx context.Context, intent Intent, req ConfirmRequest) (Outcome, error) {
	var (
		pi  *stripe.PaymentIntent
		err error
	)
	if pm := strings.TrimSpace(req.PaymentMethodID); pm != "" {
		pi, err = s.api.Confirm(ctx, intent.PaymentIntentID, &stripe.PaymentIntentConfirmParams{
			PaymentMethod: stripe.String(pm),
		})
	} else {
		pi, err = s.api.Get(ctx, intent.PaymentIntentID)
	}
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
			return Outcome{Status: string(stripeErr.Code), DeclineMessage: declineMessage(stripeErr.Msg)}, nil
		}
		return Outcome{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm stripe payment intent")
	}
	return outcomeFor(pi), nil
}

func outcomeFor(pi *stripe.PaymentIntent) Outcome {
	if pi == nil {
		return Outcome{DeclineMessage: declineMessage("")}
	}
	status := string(pi.Status)
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return Outcome{Succeeded: true, Status: status}
	case stripe.PaymentIntentStatusRequiresAction:
		return Outcome{Status: status, DeclineMessage: "additional authentication is required to complete the payment"}
	default:
		msg := ""
		if pi.LastPaymentError != nil {
			msg = pi.LastPaymentError.Msg
		}
		return Outcome{Status: status, DeclineMessage: declineMessage(msg)}
	}
}
