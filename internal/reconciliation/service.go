package reconciliation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/nordstil-checkout/pkg/db"
	"github.com/angelmondragon/nordstil-checkout/pkg/db/models"
	"github.com/angelmondragon/nordstil-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/nordstil-checkout/pkg/errors"
	"github.com/angelmondragon/nordstil-checkout/pkg/pagination"
)

// Service records payments that were charged without a recorded order, and lets
// admins close them out.
type Service interface {
	Record(ctx context.Context, input RecordInput) (*Record, error)
	ListUnresolved(ctx context.Context, params pagination.Params) (*ListResult, error)
	Resolve(ctx context.Context, id uuid.UUID, note string) (*Record, error)
}

// RecordInput captures what support needs to reconcile a charge by hand.
type RecordInput struct {
	SessionID       uuid.UUID
	PaymentIntentID string
	PaymentMethod   enums.PaymentMethod
	AmountCents     int64
	Currency        string
	CustomerEmail   string
	Draft           map[string]any
	FailureReason   string
}

// Record is the API view of a reconciliation entry.
type Record struct {
	ID              uuid.UUID           `json:"id"`
	SessionID       uuid.UUID           `json:"session_id"`
	PaymentIntentID string              `json:"payment_intent_id"`
	PaymentMethod   enums.PaymentMethod `json:"payment_method"`
	AmountCents     int64               `json:"amount_cents"`
	Currency        string              `json:"currency"`
	CustomerEmail   string              `json:"customer_email"`
	Draft           map[string]any      `json:"draft,omitempty"`
	FailureReason   string              `json:"failure_reason"`
	ResolutionNote  *string             `json:"resolution_note,omitempty"`
	ResolvedAt      *time.Time          `json:"resolved_at,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
}

// ListResult is one page of unresolved records.
type ListResult struct {
	Items      []Record `json:"items"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService wires a reconciliation service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("reconciliation repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

func (s *service) Record(ctx context.Context, input RecordInput) (*Record, error) {
	if input.SessionID == uuid.Nil {
		return nil, fmt.Errorf("session id is required")
	}
	if strings.TrimSpace(input.PaymentIntentID) == "" {
		return nil, fmt.Errorf("payment intent id is required")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, fmt.Errorf("invalid payment method %q", input.PaymentMethod)
	}

	record := &models.Reconciliation{
		SessionID:       input.SessionID,
		PaymentIntentID: input.PaymentIntentID,
		PaymentMethod:   input.PaymentMethod,
		AmountCents:     input.AmountCents,
		Currency:        input.Currency,
		CustomerEmail:   input.CustomerEmail,
		Draft:           input.Draft,
		FailureReason:   input.FailureReason,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "payment intent already awaiting reconciliation")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record reconciliation")
	}
	out := toRecord(*record)
	return &out, nil
}

func (s *service) ListUnresolved(ctx context.Context, params pagination.Params) (*ListResult, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, err := s.repo.ListUnresolved(ctx, pagination.LimitWithBuffer(params.Limit), cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list reconciliations")
	}

	rows, nextCursor := pagination.Page(rows, limit, func(m models.Reconciliation) pagination.Cursor {
		return pagination.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
	})

	items := make([]Record, len(rows))
	for i, row := range rows {
		items[i] = toRecord(row)
	}
	return &ListResult{Items: items, NextCursor: nextCursor}, nil
}

func (s *service) Resolve(ctx context.Context, id uuid.UUID, note string) (*Record, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "resolution note is required")
	}

	updated, err := s.repo.MarkResolved(ctx, id, note, s.now().UTC())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve reconciliation")
	}

	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reconciliation not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load reconciliation")
	}
	if !updated {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "reconciliation already resolved")
	}
	out := toRecord(*record)
	return &out, nil
}

func toRecord(m models.Reconciliation) Record {
	return Record{
		ID:              m.ID,
		SessionID:       m.SessionID,
		PaymentIntentID: m.PaymentIntentID,
		PaymentMethod:   m.PaymentMethod,
		AmountCents:     m.AmountCents,
		Currency:        m.Currency,
		CustomerEmail:   m.CustomerEmail,
		Draft:           m.Draft,
		FailureReason:   m.FailureReason,
		ResolutionNote:  m.ResolutionNote,
		ResolvedAt:      m.ResolvedAt,
		CreatedAt:       m.CreatedAt,
	}
}
