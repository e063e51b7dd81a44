package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/nordstil-checkout/api/responses"
	"github.com/angelmondragon/nordstil-checkout/api/validators"
	"github.com/angelmondragon/nordstil-checkout/internal/reconciliation"
	pkgerrors "github.com/angelmondragon/nordstil-checkout/pkg/errors"
	"github.com/angelmondragon/nordstil-checkout/pkg/logger"
	"github.com/angelmondragon/nordstil-checkout/pkg/pagination"
)

type reconciliationLedger interface {
	ListUnresolved(ctx context.Context, params pagination.Params) (*reconciliation.ListResult, error)
	Resolve(ctx context.Context, id uuid.UUID, note string) (*reconciliation.Record, error)
}

type resolveReconciliationRequest struct {
	Note string `json:"note" validate:"required"`
}

// AdminReconciliations lists charges that succeeded without a recorded order, newest first.
func AdminReconciliations(svc reconciliationLedger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconciliation service unavailable"))
			return
		}

		params, err := validators.ParsePageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListUnresolved(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// AdminResolveReconciliation closes a ledger entry once support has reconciled the charge.
func AdminResolveReconciliation(svc reconciliationLedger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconciliation service unavailable"))
			return
		}

		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload resolveReconciliationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		note := validators.SanitizeString(payload.Note, 2000)

		record, err := svc.Resolve(r.Context(), id, note)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, record)
	}
}
