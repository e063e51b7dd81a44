package cart

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/nordstil-checkout/api/middleware"
	"github.com/angelmondragon/nordstil-checkout/api/responses"
	"github.com/angelmondragon/nordstil-checkout/api/validators"
	cartsvc "github.com/angelmondragon/nordstil-checkout/internal/cart"
	pkgerrors "github.com/angelmondragon/nordstil-checkout/pkg/errors"
	"github.com/angelmondragon/nordstil-checkout/pkg/logger"
)

// Service is the subset of the cart service the handlers use.
type Service interface {
	Get(ctx context.Context, ownerID string) (*cartsvc.View, error)
	UpsertItem(ctx context.Context, ownerID string, input cartsvc.ItemInput) (*cartsvc.View, error)
	RemoveItem(ctx context.Context, ownerID string, itemID uuid.UUID) (*cartsvc.View, error)
	UpsertCustomItem(ctx context.Context, ownerID string, input cartsvc.CustomItemInput) (*cartsvc.View, error)
	RemoveCustomItem(ctx context.Context, ownerID string, itemID uuid.UUID) (*cartsvc.View, error)
}

// CartFetch returns the caller's merged cart with totals.
func CartFetch(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := ownerOrFail(w, r, svc, logg)
		if !ok {
			return
		}

		view, err := svc.Get(r.Context(), owner)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// CartUpsertItem adds a standard line or replaces its quantity.
func CartUpsertItem(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := ownerOrFail(w, r, svc, logg)
		if !ok {
			return
		}

		var payload cartsvc.ItemInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.UpsertItem(r.Context(), owner, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// CartRemoveItem deletes a standard line.
func CartRemoveItem(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := ownerOrFail(w, r, svc, logg)
		if !ok {
			return
		}

		itemID, err := validators.ParseUUIDParam(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.RemoveItem(r.Context(), owner, itemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// CartUpsertCustomItem creates or updates a configurator line.
func CartUpsertCustomItem(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := ownerOrFail(w, r, svc, logg)
		if !ok {
			return
		}

		var payload cartsvc.CustomItemInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.UpsertCustomItem(r.Context(), owner, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func CartRemoveCustomItem(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := ownerOrFail(w, r, svc, logg)
		if !ok {
			return
		}

		itemID, err := validators.ParseUUIDParam(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.RemoveCustomItem(r.Context(), owner, itemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func ownerOrFail(w http.ResponseWriter, r *http.Request, svc Service, logg *logger.Logger) (string, bool) {
	if svc == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
		return "", false
	}
	owner := middleware.OwnerIDFromContext(r.Context())
	if owner == "" {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "cart owner missing"))
		return "", false
	}
	return owner, true
}
