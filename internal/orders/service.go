package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/nordstil-checkout/internal/reconciliation"
	"github.com/angelmondragon/nordstil-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/nordstil-checkout/pkg/errors"
	"github.com/angelmondragon/nordstil-checkout/pkg/logger"
	"github.com/angelmondragon/nordstil-checkout/pkg/metrics"
	"github.com/angelmondragon/nordstil-checkout/pkg/storefrontapi"
)

// RecordingFailedMessage is shown when a charge went through but the order was not stored.
const RecordingFailedMessage = "Payment succeeded, but we could not record your order. Please contact support with your payment reference."

// ConfirmationPath is the SPA route a completed checkout redirects to.
func ConfirmationPath(orderID string) string {
	return "/order-confirmation/" + orderID
}

// OrderCreator creates orders in the storefront backend.
type OrderCreator interface {
	CreateOrder(ctx context.Context, token string, req storefrontapi.OrderRequest) (*storefrontapi.Order, error)
}

// CartClearer empties an owner's cart and drops its cached queries.
type CartClearer interface {
	Clear(ctx context.Context, ownerID string) error
	Invalidate(ctx context.Context, ownerID string) error
}

// Recorder keeps track of charges that need manual reconciliation.
type Recorder interface {
	Record(ctx context.Context, input reconciliation.RecordInput) (*reconciliation.Record, error)
}

// PersistInput is everything needed to record the order of a paid checkout.
type PersistInput struct {
	SessionID     uuid.UUID
	OwnerID       string
	Token         string
	PaymentMethod enums.PaymentMethod
	AmountCents   int64
	Draft         storefrontapi.OrderRequest
}

// Result is a recorded order and where the client goes next.
type Result struct {
	Order    *storefrontapi.Order `json:"order"`
	Redirect string               `json:"redirect"`
}

// Service persists orders after a successful payment.
type Service interface {
	Persist(ctx context.Context, input PersistInput) (*Result, error)
}

type ServiceParams struct {
	Orders         OrderCreator
	Cart           CartClearer
	Reconciliation Recorder
	Metrics        *metrics.CheckoutMetrics
	Logger         *logger.Logger
}

type service struct {
	orders  OrderCreator
	cart    CartClearer
	ledger  Recorder
	metrics *metrics.CheckoutMetrics
	logg    *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Orders == nil {
		return nil, fmt.Errorf("order creator required")
	}
	if params.Cart == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if params.Reconciliation == nil {
		return nil, fmt.Errorf("reconciliation service required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		orders:  params.Orders,
		cart:    params.Cart,
		ledger:  params.Reconciliation,
		metrics: params.Metrics,
		logg:    params.Logger,
	}, nil
}

// Persist must only be called once the payment has succeeded.
func (s *service) Persist(ctx context.Context, input PersistInput) (*Result, error) {
	ctx = s.logg.WithFields(ctx, map[string]any{
		"session_id":        input.SessionID.String(),
		"payment_intent_id": input.Draft.PaymentIntentID,
		"payment_method":    string(input.PaymentMethod),
	})

	order, err := s.orders.CreateOrder(ctx, input.Token, input.Draft)
	if err != nil {
		return nil, s.recordFailure(ctx, input, err)
	}

	if err := s.cart.Clear(ctx, input.OwnerID); err != nil {
		s.logg.Error(ctx, "orders.cart_clear_failed", err)
	}
	if err := s.cart.Invalidate(ctx, input.OwnerID); err != nil {
		s.logg.Error(ctx, "orders.cart_invalidate_failed", err)
	}

	s.metrics.IncOrder(string(input.PaymentMethod))
	s.logg.Info(s.logg.WithField(ctx, "order_id", order.ID), "orders.recorded")

	return &Result{Order: order, Redirect: ConfirmationPath(order.ID)}, nil
}

func (s *service) recordFailure(ctx context.Context, input PersistInput, cause error) error {
	s.metrics.IncPartialFailure(string(input.PaymentMethod))
	s.logg.Error(ctx, "orders.create_failed_after_payment", cause)

	details := map[string]any{"payment_intent_id": input.Draft.PaymentIntentID}

	// The reconciliation entry must survive a cancelled request.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	record, err := s.ledger.Record(recordCtx, reconciliation.RecordInput{
		SessionID:       input.SessionID,
		PaymentIntentID: input.Draft.PaymentIntentID,
		PaymentMethod:   input.PaymentMethod,
		AmountCents:     input.AmountCents,
		Currency:        input.Draft.Currency,
		CustomerEmail:   input.Draft.ShippingAddress.Email,
		Draft:           draftMap(input.Draft),
		FailureReason:   cause.Error(),
	})
	if err != nil {
		s.logg.Error(ctx, "orders.reconciliation_record_failed", err)
	} else {
		details["reconciliation_id"] = record.ID.String()
	}

	return pkgerrors.Wrap(pkgerrors.CodeOrderRecording, cause, RecordingFailedMessage).WithDetails(details)
}

func draftMap(req storefrontapi.OrderRequest) map[string]any {
	raw, err := json.Marshal(req)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
