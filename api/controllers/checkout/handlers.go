package checkout

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/nordstil-checkout/api/middleware"
	"github.com/angelmondragon/nordstil-checkout/api/responses"
	"github.com/angelmondragon/nordstil-checkout/api/validators"
	"github.com/angelmondragon/nordstil-checkout/internal/address"
	checkoutsvc "github.com/angelmondragon/nordstil-checkout/internal/checkout"
	"github.com/angelmondragon/nordstil-checkout/internal/payments"
	pkgerrors "github.com/angelmondragon/nordstil-checkout/pkg/errors"
	"github.com/angelmondragon/nordstil-checkout/pkg/logger"
)

type updateFieldRequest struct {
	Field string          `json:"field" validate:"required"`
	Value json.RawMessage `json:"value" validate:"required"`
}

type addressModeRequest struct {
	UseSaved *bool `json:"use_saved" validate:"required"`
}

type confirmRequest struct {
	PaymentMethodID string `json:"payment_method_id"`
	WidgetStatus    string `json:"widget_status"`
	WidgetError     string `json:"widget_error"`
}

// sessionResponse adds the derived submit flag the SPA renders the button from.
type sessionResponse struct {
	*checkoutsvc.Session
	SubmitDisabled bool `json:"submit_disabled"`
}

func newSessionResponse(sess *checkoutsvc.Session) sessionResponse {
	return sessionResponse{Session: sess, SubmitDisabled: sess.SubmitDisabled()}
}

// ActorFromRequest builds the checkout caller from the auth and cart owner middleware.
func ActorFromRequest(r *http.Request) checkoutsvc.Actor {
	ctx := r.Context()
	actor := checkoutsvc.Actor{OwnerID: middleware.OwnerIDFromContext(ctx)}
	if userID := middleware.UserIDFromContext(ctx); userID != "" {
		actor.Profile = &address.Profile{
			UserID: userID,
			Email:  middleware.EmailFromContext(ctx),
			Name:   middleware.NameFromContext(ctx),
			Token:  middleware.TokenFromContext(ctx),
		}
	}
	return actor
}

// SessionCreate mounts the checkout page for the caller's cart.
func SessionCreate(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !available(w, r, svc, logg) {
			return
		}

		sess, err := svc.Begin(r.Context(), ActorFromRequest(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newSessionResponse(sess))
	}
}

func SessionFetch(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return withSessionID(svc, logg, func(ctx context.Context, r *http.Request, actor checkoutsvc.Actor, id uuid.UUID) (*checkoutsvc.Session, error) {
		return svc.Get(ctx, actor, id)
	})
}

// SessionUpdateField applies one form edit. The value is a string for text fields and a bool for the billing toggle.
func SessionUpdateField(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return withSessionID(svc, logg, func(ctx context.Context, r *http.Request, actor checkoutsvc.Actor, id uuid.UUID) (*checkoutsvc.Session, error) {
		var payload updateFieldRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		var value any
		if err := json.Unmarshal(payload.Value, &value); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid field value")
		}
		return svc.UpdateField(ctx, actor, id, payload.Field, value)
	})
}

func SessionAddressMode(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return withSessionID(svc, logg, func(ctx context.Context, r *http.Request, actor checkoutsvc.Actor, id uuid.UUID) (*checkoutsvc.Session, error) {
		var payload addressModeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.SetAddressMode(ctx, actor, id, *payload.UseSaved)
	})
}

// SessionSubmit runs form validation and payment setup for the selected method.
func SessionSubmit(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return withSessionID(svc, logg, func(ctx context.Context, r *http.Request, actor checkoutsvc.Actor, id uuid.UUID) (*checkoutsvc.Session, error) {
		return svc.Submit(ctx, actor, id)
	})
}

// SessionConfirm completes a card payment, either server side or from the widget's own result.
func SessionConfirm(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return withSessionID(svc, logg, func(ctx context.Context, r *http.Request, actor checkoutsvc.Actor, id uuid.UUID) (*checkoutsvc.Session, error) {
		var payload confirmRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.Confirm(ctx, actor, id, payments.ConfirmRequest{
			PaymentMethodID: payload.PaymentMethodID,
			WidgetStatus:    payload.WidgetStatus,
			WidgetError:     payload.WidgetError,
		})
	})
}

// SessionAbandon drops the session. Any intent is left to expire with the provider.
func SessionAbandon(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !available(w, r, svc, logg) {
			return
		}
		id, err := validators.ParseUUIDParam(r, "sessionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Abandon(r.Context(), ActorFromRequest(r), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type sessionOp func(ctx context.Context, r *http.Request, actor checkoutsvc.Actor, id uuid.UUID) (*checkoutsvc.Session, error)

func withSessionID(svc checkoutsvc.Service, logg *logger.Logger, op sessionOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !available(w, r, svc, logg) {
			return
		}
		id, err := validators.ParseUUIDParam(r, "sessionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithSessionID(ctx, id.String())
		}

		sess, err := op(ctx, r, ActorFromRequest(r), id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSessionResponse(sess))
	}
}

func available(w http.ResponseWriter, r *http.Request, svc checkoutsvc.Service, logg *logger.Logger) bool {
	if svc == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
		return false
	}
	if middleware.OwnerIDFromContext(r.Context()) == "" {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "cart owner missing"))
		return false
	}
	return true
}
