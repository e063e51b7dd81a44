package payments

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	pkgerrors "github.com/angelmondragon/nordstil-checkout/pkg/errors"
	"github.com/angelmondragon/nordstil-checkout/pkg/storefrontapi"
)

// Intent sources.
const (
	SourceBackend = "backend"
	SourceStripe  = "stripe"
	SourcePayPal  = "paypal_demo"
)

var clientSecretPattern = regexp.MustCompile(`^pi_.+_secret_.+$`)

// Intent is the handle of one checkout attempt's payment intent.
type Intent struct {
	ClientSecret    string `json:"client_secret"`
	PaymentIntentID string `json:"payment_intent_id"`
	AmountCents     int64  `json:"amount_cents"`
	Currency        string `json:"currency"`
	Source          string `json:"source"`
}

// IntentRequest describes the charge to prepare.
type IntentRequest struct {
	AmountCents   int64
	Currency      string
	CustomerEmail string
	Metadata      map[string]string
	// Token is the caller's bearer token, forwarded to the backend when present.
	Token string
}

// IntentCreator obtains a payment intent handle for a card checkout.
type IntentCreator interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	Source() string
}

// ValidateClientSecret rejects any secret not shaped like pi_<id>_secret_<secret>.
func ValidateClientSecret(secret string) error {
	if !clientSecretPattern.MatchString(secret) {
		return pkgerrors.New(pkgerrors.CodePaymentSetup, "payment intent returned a malformed client secret")
	}
	return nil
}

func validateRequest(req IntentRequest) error {
	if req.AmountCents <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
	}
	if strings.TrimSpace(req.Currency) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "currency is required")
	}
	return nil
}

type backendIntentAPI interface {
	CreatePaymentIntent(ctx context.Context, token string, req storefrontapi.CreateIntentRequest) (*storefrontapi.PaymentIntent, error)
}

// BackendIntents creates intents through the storefront backend's payment endpoint.
type BackendIntents struct {
	api backendIntentAPI
}

func NewBackendIntents(api backendIntentAPI) (*BackendIntents, error) {
	if api == nil {
		return nil, fmt.Errorf("backend payment api required")
	}
	return &BackendIntents{api: api}, nil
}

func (b *BackendIntents) Source() string { return SourceBackend }

func (b *BackendIntents) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	resp, err := b.api.CreatePaymentIntent(ctx, req.Token, storefrontapi.CreateIntentRequest{
		Amount:        req.AmountCents,
		Currency:      req.Currency,
		CustomerEmail: req.CustomerEmail,
		Metadata:      req.Metadata,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePaymentSetup, err, "create payment intent")
	}
	return finish(resp.ClientSecret, resp.PaymentIntentID, req, SourceBackend)
}

func finish(secret, id string, req IntentRequest, source string) (*Intent, error) {
	if err := ValidateClientSecret(secret); err != nil {
		return nil, err
	}
	if strings.TrimSpace(id) == "" {
		return nil, pkgerrors.New(pkgerrors.CodePaymentSetup, "payment intent response missing id")
	}
	return &Intent{
		ClientSecret:    secret,
		PaymentIntentID: id,
		AmountCents:     req.AmountCents,
		Currency:        strings.ToLower(req.Currency),
		Source:          source,
	}, nil
}
