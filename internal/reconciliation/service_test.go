package reconciliation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/nordstil-checkout/pkg/db/models"
	"github.com/angelmondragon/nordstil-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/nordstil-checkout/pkg/errors"
	"github.com/angelmondragon/nordstil-checkout/pkg/pagination"
)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.Reconciliation{}))

	svc, err := NewService(NewRepository(conn))
	require.NoError(t, err)
	return svc, conn
}

func sampleInput(intentID string) RecordInput {
	return RecordInput{
		SessionID:       uuid.New(),
		PaymentIntentID: intentID,
		PaymentMethod:   enums.PaymentMethodStripe,
		AmountCents:     16249,
		Currency:        "eur",
		CustomerEmail:   "a@b.se",
		Draft:           map[string]any{"total": "162.49"},
		FailureReason:   "storefront backend unavailable",
	}
}

func TestNewServiceRequiresRepository(t *testing.T) {
	_, err := NewService(nil)
	require.Error(t, err)
}

func TestRecordPersistsDraft(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()

	rec, err := svc.Record(ctx, sampleInput("pi_123"))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, rec.ID)

	var stored models.Reconciliation
	require.NoError(t, conn.First(&stored, "id = ?", rec.ID).Error)
	assert.Equal(t, "pi_123", stored.PaymentIntentID)
	assert.Equal(t, int64(16249), stored.AmountCents)
	assert.Equal(t, "162.49", stored.Draft["total"])
	assert.Nil(t, stored.ResolvedAt)
}

func TestRecordRejectsDuplicateIntent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Record(ctx, sampleInput("pi_dup"))
	require.NoError(t, err)
	_, err = svc.Record(ctx, sampleInput("pi_dup"))
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.CodeOf(err))
}

func TestRecordValidatesInput(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	in := sampleInput("")
	_, err := svc.Record(ctx, in)
	require.Error(t, err)

	in = sampleInput("pi_1")
	in.SessionID = uuid.Nil
	_, err = svc.Record(ctx, in)
	require.Error(t, err)

	in = sampleInput("pi_1")
	in.PaymentMethod = "cash"
	_, err = svc.Record(ctx, in)
	require.Error(t, err)
}

func TestListUnresolvedPaginates(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		row := models.Reconciliation{
			SessionID:       uuid.New(),
			PaymentIntentID: fmt.Sprintf("pi_%d", i),
			PaymentMethod:   enums.PaymentMethodStripe,
			AmountCents:     1000,
			Currency:        "eur",
			CustomerEmail:   "a@b.se",
			FailureReason:   "down",
			CreatedAt:       base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, conn.Create(&row).Error)
	}

	first, err := svc.ListUnresolved(ctx, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	assert.Equal(t, "pi_2", first.Items[0].PaymentIntentID)
	assert.Equal(t, "pi_1", first.Items[1].PaymentIntentID)
	require.NotEmpty(t, first.NextCursor)

	second, err := svc.ListUnresolved(ctx, pagination.Params{Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Equal(t, "pi_0", second.Items[0].PaymentIntentID)
	assert.Empty(t, second.NextCursor)
}

func TestListUnresolvedRejectsBadCursor(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.ListUnresolved(context.Background(), pagination.Params{Cursor: "!!"})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestResolveClosesRecordOnce(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	rec, err := svc.Record(ctx, sampleInput("pi_r"))
	require.NoError(t, err)

	_, err = svc.Resolve(ctx, rec.ID, "  ")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	resolved, err := svc.Resolve(ctx, rec.ID, "order created manually")
	require.NoError(t, err)
	require.NotNil(t, resolved.ResolvedAt)
	require.NotNil(t, resolved.ResolutionNote)
	assert.Equal(t, "order created manually", *resolved.ResolutionNote)

	_, err = svc.Resolve(ctx, rec.ID, "again")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))

	list, err := svc.ListUnresolved(ctx, pagination.Params{})
	require.NoError(t, err)
	assert.Empty(t, list.Items)

	_, err = svc.Resolve(ctx, uuid.New(), "missing")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}
