package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/nordstil-checkout/internal/address"
	"github.com/angelmondragon/nordstil-checkout/internal/cart"
	"github.com/angelmondragon/nordstil-checkout/internal/orders"
	"github.com/angelmondragon/nordstil-checkout/internal/payments"
	"github.com/angelmondragon/nordstil-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/nordstil-checkout/pkg/errors"
	"github.com/angelmondragon/nordstil-checkout/pkg/logger"
	"github.com/angelmondragon/nordstil-checkout/pkg/metrics"
)

const (
	staleCartMessage = "Your cart changed during checkout. Please start the payment again."
	cancelledMessage = "Payment was cancelled."
)

// Actor is the caller of a checkout operation.
type Actor struct {
	OwnerID string
	Profile *address.Profile
}

func (a Actor) token() string {
	if a.Profile == nil {
		return ""
	}
	return a.Profile.Token
}

type CartReader interface {
	Get(ctx context.Context, ownerID string) (*cart.View, error)
}

type AddressResolver interface {
	Resolve(ctx context.Context, profile *address.Profile) (address.State, address.Fields)
}

type OrderPersister interface {
	Persist(ctx context.Context, input orders.PersistInput) (*orders.Result, error)
}

// Approver runs a non-card approval and returns its payment reference.
type Approver interface {
	Approve(ctx context.Context) (string, error)
}

// Service drives the checkout state machine.
type Service interface {
	Begin(ctx context.Context, actor Actor) (*Session, error)
	Get(ctx context.Context, actor Actor, id uuid.UUID) (*Session, error)
	UpdateField(ctx context.Context, actor Actor, id uuid.UUID, field string, value any) (*Session, error)
	SetAddressMode(ctx context.Context, actor Actor, id uuid.UUID, useSaved bool) (*Session, error)
	Submit(ctx context.Context, actor Actor, id uuid.UUID) (*Session, error)
	Confirm(ctx context.Context, actor Actor, id uuid.UUID, req payments.ConfirmRequest) (*Session, error)
	Abandon(ctx context.Context, actor Actor, id uuid.UUID) error
}

type ServiceParams struct {
	Sessions         SessionStore
	Cart             CartReader
	Addresses        AddressResolver
	Intents          payments.IntentCreator
	Confirmer        payments.Confirmer
	PayPal           Approver
	Orders           OrderPersister
	Metrics          *metrics.CheckoutMetrics
	Logger           *logger.Logger
	ShippingEstimate string
}

type service struct {
	sessions  SessionStore
	cart      CartReader
	addresses AddressResolver
	intents   payments.IntentCreator
	confirmer payments.Confirmer
	paypal    Approver
	orders    OrderPersister
	metrics   *metrics.CheckoutMetrics
	logg      *logger.Logger
	machine   machine
	estimate  string
	now       func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Sessions == nil:
		return nil, fmt.Errorf("session store required")
	case params.Cart == nil:
		return nil, fmt.Errorf("cart reader required")
	case params.Addresses == nil:
		return nil, fmt.Errorf("address resolver required")
	case params.Intents == nil:
		return nil, fmt.Errorf("intent creator required")
	case params.Confirmer == nil:
		return nil, fmt.Errorf("payment confirmer required")
	case params.PayPal == nil:
		return nil, fmt.Errorf("paypal approver required")
	case params.Orders == nil:
		return nil, fmt.Errorf("order persister required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		sessions:  params.Sessions,
		cart:      params.Cart,
		addresses: params.Addresses,
		intents:   params.Intents,
		confirmer: params.Confirmer,
		paypal:    params.PayPal,
		orders:    params.Orders,
		metrics:   params.Metrics,
		logg:      params.Logger,
		machine:   machine{logg: params.Logger, metrics: params.Metrics},
		estimate:  strings.TrimSpace(params.ShippingEstimate),
		now:       time.Now,
	}, nil
}

// Begin starts a session: the form is prefilled from the saved address, or left
// blank with the profile name and email.
func (s *service) Begin(ctx context.Context, actor Actor) (*Session, error) {
	if strings.TrimSpace(actor.OwnerID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "cart owner required")
	}

	now := s.now().UTC()
	sess := &Session{
		ID:        uuid.New(),
		OwnerID:   actor.OwnerID,
		Form:      NewForm(),
		State:     enums.CheckoutStateIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if p := actor.Profile; p != nil {
		sess.User = User{ID: p.UserID, Email: p.Email, Name: p.Name}
	}
	ctx = s.logg.WithSessionID(ctx, sess.ID.String())

	state, fields := s.addresses.Resolve(ctx, actor.Profile)
	sess.Address = state
	sess.Form.ApplyShipping(fields)

	if view, err := s.cart.Get(ctx, actor.OwnerID); err != nil {
		s.logg.Warn(ctx, fmt.Sprintf("checkout.cart_unavailable: %v", err))
	} else {
		rendered := view.Totals.Render()
		sess.Totals = &rendered
	}

	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithField(ctx, "address_mode", string(state.Mode)), "checkout.session_started")
	return sess, nil
}

func (s *service) Get(ctx context.Context, actor Actor, id uuid.UUID) (*Session, error) {
	return s.load(ctx, actor, id)
}

func (s *service) UpdateField(ctx context.Context, actor Actor, id uuid.UUID, field string, value any) (*Session, error) {
	return s.withSession(ctx, actor, id, func(ctx context.Context, sess *Session) error {
		if err := requireEditable(sess); err != nil {
			return err
		}
		if IsShippingField(field) && !sess.Address.AllowsShippingEdit() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "shipping address is locked to the saved address").
				WithDetails(map[string]string{field: "turn off the saved address to edit"})
		}

		previous := sess.Form.PaymentMethod
		if err := sess.Form.Update(field, value); err != nil {
			return err
		}

		// A card intent waiting for confirmation is useless once PayPal is chosen.
		if sess.Form.PaymentMethod != previous && !sess.Form.PaymentMethod.IsCard() &&
			sess.State == enums.CheckoutStateAwaitingConfirmation {
			sess.Intent = nil
			if err := s.machine.move(ctx, sess, enums.CheckoutStateIdle); err != nil {
				return err
			}
		}
		return s.save(ctx, sess)
	})
}

func (s *service) SetAddressMode(ctx context.Context, actor Actor, id uuid.UUID, useSaved bool) (*Session, error) {
	return s.withSession(ctx, actor, id, func(ctx context.Context, sess *Session) error {
		if err := requireEditable(sess); err != nil {
			return err
		}
		state, fields, err := address.Toggle(sess.Address, useSaved, actor.Profile)
		if err != nil {
			return err
		}
		sess.Address = state
		if fields != nil {
			sess.Form.ApplyShipping(*fields)
		}
		return s.save(ctx, sess)
	})
}

// Submit validates the form and prepares payment. Card checkouts end in
// awaiting_confirmation; PayPal runs to completion within the call.
func (s *service) Submit(ctx context.Context, actor Actor, id uuid.UUID) (*Session, error) {
	return s.withSession(ctx, actor, id, func(ctx context.Context, sess *Session) error {
		switch sess.State {
		case enums.CheckoutStateIdle, enums.CheckoutStateAwaitingConfirmation, enums.CheckoutStateSetupFailed:
		default:
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("checkout cannot be submitted while %s", sess.State))
		}

		if err := s.machine.move(ctx, sess, enums.CheckoutStateValidatingForm); err != nil {
			return err
		}
		view, err := s.validate(ctx, sess)
		if err != nil {
			return err
		}

		if !sess.Form.PaymentMethod.IsCard() {
			return s.submitPayPal(ctx, actor, sess, view)
		}
		return s.submitCard(ctx, actor, sess, view)
	})
}

func (s *service) Confirm(ctx context.Context, actor Actor, id uuid.UUID, req payments.ConfirmRequest) (*Session, error) {
	return s.withSession(ctx, actor, id, func(ctx context.Context, sess *Session) error {
		if sess.State != enums.CheckoutStateAwaitingConfirmation || sess.Intent == nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "no payment is awaiting confirmation")
		}
		if err := sess.Form.Validate(); err != nil {
			sess.setError(enums.CheckoutErrorValidation, "please fill in the required fields")
			return s.saveAndReturn(ctx, sess, err)
		}

		view, err := s.cart.Get(ctx, sess.OwnerID)
		if err != nil {
			return err
		}
		if view.Totals.AmountCents() != sess.Intent.AmountCents {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"intent_amount": sess.Intent.AmountCents,
				"cart_amount":   view.Totals.AmountCents(),
			}), "checkout.stale_cart")
			sess.Intent = nil
			sess.setError(enums.CheckoutErrorPaymentSetup, staleCartMessage)
			if err := s.machine.move(ctx, sess, enums.CheckoutStateIdle); err != nil {
				return err
			}
			return s.saveAndReturn(ctx, sess, pkgerrors.New(pkgerrors.CodeStateConflict, staleCartMessage))
		}

		if err := s.machine.move(ctx, sess, enums.CheckoutStateConfirming); err != nil {
			return err
		}
		if err := s.save(ctx, sess); err != nil {
			return err
		}

		outcome, err := s.confirmer.Confirm(ctx, *sess.Intent, req)
		if err != nil {
			return s.confirmationFailed(ctx, sess, err.Error(), err)
		}
		if !outcome.Succeeded {
			declined := pkgerrors.New(pkgerrors.CodePaymentDeclined, outcome.DeclineMessage).
				WithDetails(map[string]any{"status": outcome.Status})
			return s.confirmationFailed(ctx, sess, outcome.DeclineMessage, declined)
		}

		sess.LastError = nil
		if err := s.machine.move(ctx, sess, enums.CheckoutStateSucceeded); err != nil {
			return err
		}
		return s.persist(ctx, actor, sess, view, sess.Intent.PaymentIntentID)
	})
}

func (s *service) Abandon(ctx context.Context, actor Actor, id uuid.UUID) error {
	_, err := s.withSession(ctx, actor, id, func(ctx context.Context, sess *Session) error {
		if sess.State.IsBusy() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "checkout is processing")
		}
		s.logg.Info(s.logg.WithField(ctx, "state", string(sess.State)), "checkout.abandoned")
		return s.sessions.Delete(ctx, sess.ID)
	})
	return err
}

// validate runs in validating_form. Any failure returns the session to idle
// without a network call beyond the cart read.
func (s *service) validate(ctx context.Context, sess *Session) (*cart.View, error) {
	if err := sess.Form.Validate(); err != nil {
		return nil, s.resetToIdle(ctx, sess, enums.CheckoutErrorValidation, "please fill in the required fields", err)
	}

	view, err := s.cart.Get(ctx, sess.OwnerID)
	if err != nil {
		return nil, s.resetToIdle(ctx, sess, enums.CheckoutErrorUnexpected, "your cart could not be loaded", err)
	}
	if view.Totals.IsEmpty() {
		emptyErr := pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		return nil, s.resetToIdle(ctx, sess, enums.CheckoutErrorValidation, "your cart is empty", emptyErr)
	}

	rendered := view.Totals.Render()
	sess.Totals = &rendered
	return view, nil
}

func (s *service) submitCard(ctx context.Context, actor Actor, sess *Session, view *cart.View) error {
	amount := view.Totals.AmountCents()
	if sess.Intent != nil && sess.Intent.AmountCents == amount && sess.Intent.Source != payments.SourcePayPal {
		sess.LastError = nil
		if err := s.machine.move(ctx, sess, enums.CheckoutStateAwaitingConfirmation); err != nil {
			return err
		}
		return s.save(ctx, sess)
	}

	sess.Intent = nil
	if err := s.machine.move(ctx, sess, enums.CheckoutStateCreatingIntent); err != nil {
		return err
	}
	if err := s.save(ctx, sess); err != nil {
		return err
	}

	started := time.Now()
	intent, err := s.intents.CreateIntent(ctx, payments.IntentRequest{
		AmountCents:   amount,
		Currency:      view.Totals.Currency,
		CustomerEmail: sess.Form.ShippingEmail,
		Metadata:      sess.Form.Metadata(),
		Token:         actor.token(),
	})
	s.metrics.ObserveIntent(s.intents.Source(), err, time.Since(started))
	if err != nil {
		s.logg.Error(ctx, "checkout.intent_failed", err)
		if pkgerrors.CodeOf(err) != pkgerrors.CodePaymentSetup {
			err = pkgerrors.Wrap(pkgerrors.CodePaymentSetup, err, "payment could not be initialized")
		}
		sess.setError(enums.CheckoutErrorPaymentSetup, pkgerrors.MetadataFor(pkgerrors.CodePaymentSetup).PublicMessage)
		if moveErr := s.machine.move(ctx, sess, enums.CheckoutStateSetupFailed); moveErr != nil {
			return moveErr
		}
		return s.saveAndReturn(ctx, sess, err)
	}

	sess.Intent = intent
	sess.LastError = nil
	if err := s.machine.move(ctx, sess, enums.CheckoutStateAwaitingConfirmation); err != nil {
		return err
	}
	return s.save(ctx, sess)
}

func (s *service) submitPayPal(ctx context.Context, actor Actor, sess *Session, view *cart.View) error {
	if err := s.machine.move(ctx, sess, enums.CheckoutStateCreatingIntent); err != nil {
		return err
	}
	sess.Intent = &payments.Intent{
		AmountCents: view.Totals.AmountCents(),
		Currency:    view.Totals.Currency,
		Source:      payments.SourcePayPal,
	}
	if err := s.machine.move(ctx, sess, enums.CheckoutStateConfirming); err != nil {
		return err
	}
	if err := s.save(ctx, sess); err != nil {
		return err
	}

	ref, err := s.paypal.Approve(ctx)
	if err != nil {
		sess.Intent = nil
		sess.setError(enums.CheckoutErrorPaymentConfirm, cancelledMessage)
		if moveErr := s.machine.move(ctx, sess, enums.CheckoutStateIdle); moveErr != nil {
			return moveErr
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			err = pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, cancelledMessage)
		}
		return s.saveAndReturn(ctx, sess, err)
	}

	sess.Intent.PaymentIntentID = ref
	sess.LastError = nil
	if err := s.machine.move(ctx, sess, enums.CheckoutStateSucceeded); err != nil {
		return err
	}
	return s.persist(ctx, actor, sess, view, ref)
}

// persist runs exactly once per succeeded payment and always from the current form.
func (s *service) persist(ctx context.Context, actor Actor, sess *Session, view *cart.View, paymentRef string) error {
	if err := s.machine.move(ctx, sess, enums.CheckoutStatePersistingOrder); err != nil {
		return err
	}
	if err := s.save(ctx, sess); err != nil {
		return err
	}

	res, err := s.orders.Persist(ctx, orders.PersistInput{
		SessionID:     sess.ID,
		OwnerID:       sess.OwnerID,
		Token:         actor.token(),
		PaymentMethod: sess.Form.PaymentMethod,
		AmountCents:   sess.Intent.AmountCents,
		Draft:         BuildDraft(sess.Form, view, paymentRef, s.estimate),
	})
	if err != nil {
		sess.setError(enums.CheckoutErrorOrderRecording, orders.RecordingFailedMessage)
		if moveErr := s.machine.move(ctx, sess, enums.CheckoutStateOrderRecordingFailed); moveErr != nil {
			return moveErr
		}
		return s.saveAndReturn(ctx, sess, err)
	}

	sess.Order = res.Order
	sess.Redirect = res.Redirect
	if err := s.machine.move(ctx, sess, enums.CheckoutStateCompleted); err != nil {
		return err
	}
	return s.save(ctx, sess)
}

// confirmationFailed reports a failed attempt and waits for a retry on the same intent.
func (s *service) confirmationFailed(ctx context.Context, sess *Session, message string, cause error) error {
	sess.setError(enums.CheckoutErrorPaymentConfirm, message)
	if err := s.machine.walk(ctx, sess, enums.CheckoutStateFailed, enums.CheckoutStateAwaitingConfirmation); err != nil {
		return err
	}
	return s.saveAndReturn(ctx, sess, cause)
}

func (s *service) resetToIdle(ctx context.Context, sess *Session, kind enums.CheckoutErrorKind, message string, cause error) error {
	sess.Intent = nil
	sess.setError(kind, message)
	if err := s.machine.move(ctx, sess, enums.CheckoutStateIdle); err != nil {
		return err
	}
	return s.saveAndReturn(ctx, sess, cause)
}

// withSession loads the caller's session under the per-session lock.
func (s *service) withSession(ctx context.Context, actor Actor, id uuid.UUID, fn func(ctx context.Context, sess *Session) error) (*Session, error) {
	ctx = s.logg.WithSessionID(ctx, id.String())
	release, err := s.sessions.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	sess, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := fn(ctx, sess); err != nil {
		return sess, err
	}
	return sess, nil
}

func (s *service) load(ctx context.Context, actor Actor, id uuid.UUID) (*Session, error) {
	sess, err := s.sessions.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.OwnerID != actor.OwnerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "checkout session not found")
	}
	return sess, nil
}

// save outlives a cancelled request so the stored state matches what happened.
func (s *service) save(ctx context.Context, sess *Session) error {
	sess.UpdatedAt = s.now().UTC()
	return s.sessions.Save(context.WithoutCancel(ctx), sess)
}

func (s *service) saveAndReturn(ctx context.Context, sess *Session, cause error) error {
	// Persist even when the request context was cancelled.
	if err := s.save(context.WithoutCancel(ctx), sess); err != nil {
		s.logg.Error(ctx, "checkout.session_save_failed", err)
	}
	return cause
}

func requireEditable(sess *Session) error {
	if sess.SubmitDisabled() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("checkout cannot be edited while %s", sess.State))
	}
	return nil
}
