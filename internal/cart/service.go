package cart

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/nordstil-checkout/pkg/db"
	"github.com/angelmondragon/nordstil-checkout/pkg/db/models"
	"github.com/angelmondragon/nordstil-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/nordstil-checkout/pkg/errors"
	"github.com/angelmondragon/nordstil-checkout/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service is the single owner of cart state.
type Service interface {
	Get(ctx context.Context, ownerID string) (*View, error)
	UpsertItem(ctx context.Context, ownerID string, input ItemInput) (*View, error)
	RemoveItem(ctx context.Context, ownerID string, itemID uuid.UUID) (*View, error)
	UpsertCustomItem(ctx context.Context, ownerID string, input CustomItemInput) (*View, error)
	RemoveCustomItem(ctx context.Context, ownerID string, itemID uuid.UUID) (*View, error)
	// Clear deletes both collections in one transaction. Only order persistence calls it.
	Clear(ctx context.Context, ownerID string) error
	// Invalidate drops the cached cart and customJacketCart queries.
	Invalidate(ctx context.Context, ownerID string) error
}

// View is the cart as returned to callers.
type View struct {
	OwnerID     string       `json:"owner_id"`
	Items       []Item       `json:"items"`
	CustomItems []CustomItem `json:"custom_items"`
	Totals      Snapshot     `json:"totals"`
}

// ItemInput upserts a standard line keyed by product and size.
type ItemInput struct {
	ProductID string          `json:"product_id" validate:"required"`
	Name      string          `json:"name" validate:"required"`
	Size      string          `json:"size"`
	ImageURL  *string         `json:"image_url"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity" validate:"gte=1"`
}

// CustomItemInput creates or updates a configurator line. A nil ID creates.
type CustomItemInput struct {
	ID            *uuid.UUID           `json:"id"`
	Kind          enums.CustomItemKind `json:"kind" validate:"required"`
	Name          string               `json:"name" validate:"required"`
	Configuration map[string]any       `json:"configuration"`
	UnitPrice     decimal.Decimal      `json:"unit_price"`
	Quantity      int                  `json:"quantity" validate:"gte=1"`
}

// ServiceParams wires the cart service.
type ServiceParams struct {
	Repo     Repository
	Tx       txRunner
	Cache    QueryStore
	CacheTTL time.Duration
	Rules    Rules
	Memo     *Memo
	Logger   *logger.Logger
}

type service struct {
	repo   Repository
	tx     txRunner
	cache  *queryCache
	rules  Rules
	memo   *Memo
	logger *logger.Logger
}

// NewService builds the cart service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	memo := params.Memo
	if memo == nil {
		memo = NewMemo(0)
	}
	rules := params.Rules
	if rules.Currency == "" {
		rules = DefaultRules()
	}
	return &service{
		repo:   params.Repo,
		tx:     params.Tx,
		cache:  newQueryCache(params.Cache, params.CacheTTL),
		rules:  rules,
		memo:   memo,
		logger: params.Logger,
	}, nil
}

func (s *service) Get(ctx context.Context, ownerID string) (*View, error) {
	ownerID, err := requireOwner(ownerID)
	if err != nil {
		return nil, err
	}
	ctx = s.logger.WithOwnerID(ctx, ownerID)

	items, err := s.loadItems(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	custom, err := s.loadCustomItems(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	return &View{
		OwnerID:     ownerID,
		Items:       items,
		CustomItems: custom,
		Totals:      s.memo.Aggregate(items, custom, s.rules),
	}, nil
}

func (s *service) UpsertItem(ctx context.Context, ownerID string, input ItemInput) (*View, error) {
	ownerID, err := requireOwner(ownerID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.ProductID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product_id is required")
	}
	if err := validateLine(input.Quantity, input.UnitPrice); err != nil {
		return nil, err
	}

	_, err = s.repo.UpsertItem(ctx, &models.CartItem{
		OwnerID:   ownerID,
		ProductID: strings.TrimSpace(input.ProductID),
		Size:      strings.TrimSpace(input.Size),
		Name:      strings.TrimSpace(input.Name),
		ImageURL:  input.ImageURL,
		UnitPrice: input.UnitPrice,
		Quantity:  input.Quantity,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "upsert cart item")
	}
	return s.afterMutation(ctx, ownerID)
}

func (s *service) RemoveItem(ctx context.Context, ownerID string, itemID uuid.UUID) (*View, error) {
	ownerID, err := requireOwner(ownerID)
	if err != nil {
		return nil, err
	}
	removed, err := s.repo.DeleteItem(ctx, ownerID, itemID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove cart item")
	}
	if !removed {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	return s.afterMutation(ctx, ownerID)
}

func (s *service) UpsertCustomItem(ctx context.Context, ownerID string, input CustomItemInput) (*View, error) {
	ownerID, err := requireOwner(ownerID)
	if err != nil {
		return nil, err
	}
	if !input.Kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid custom item kind %q", input.Kind))
	}
	if err := validateLine(input.Quantity, input.UnitPrice); err != nil {
		return nil, err
	}

	record := &models.CustomItem{
		OwnerID:       ownerID,
		Kind:          input.Kind,
		Name:          strings.TrimSpace(input.Name),
		Configuration: input.Configuration,
		UnitPrice:     input.UnitPrice,
		Quantity:      input.Quantity,
	}
	if input.ID != nil {
		record.ID = *input.ID
	}

	if _, err := s.repo.SaveCustomItem(ctx, record); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "custom item id already in use")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save custom item")
	}
	return s.afterMutation(ctx, ownerID)
}

func (s *service) RemoveCustomItem(ctx context.Context, ownerID string, itemID uuid.UUID) (*View, error) {
	ownerID, err := requireOwner(ownerID)
	if err != nil {
		return nil, err
	}
	removed, err := s.repo.DeleteCustomItem(ctx, ownerID, itemID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove custom item")
	}
	if !removed {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "custom item not found")
	}
	return s.afterMutation(ctx, ownerID)
}

func (s *service) Clear(ctx context.Context, ownerID string) error {
	ownerID, err := requireOwner(ownerID)
	if err != nil {
		return err
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).DeleteAll(ctx, ownerID)
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
	}
	s.logger.Info(s.logger.WithOwnerID(ctx, ownerID), "cart.cleared")
	return nil
}

func (s *service) Invalidate(ctx context.Context, ownerID string) error {
	if err := s.cache.invalidate(ctx, ownerID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "invalidate cart queries")
	}
	return nil
}

// afterMutation invalidates the cached queries and recomputes the view from the store.
func (s *service) afterMutation(ctx context.Context, ownerID string) (*View, error) {
	if err := s.Invalidate(ctx, ownerID); err != nil {
		s.logger.Error(ctx, "cart.invalidate_failed", err)
	}
	return s.Get(ctx, ownerID)
}

func (s *service) loadItems(ctx context.Context, ownerID string) ([]Item, error) {
	var items []Item
	if ok, err := s.cache.load(ctx, QueryCart, ownerID, &items); err != nil {
		s.logger.Warn(ctx, fmt.Sprintf("cart query cache read failed: %v", err))
	} else if ok {
		return items, nil
	}

	records, err := s.repo.ListItems(ctx, ownerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart items")
	}
	items = make([]Item, 0, len(records))
	for _, r := range records {
		items = append(items, toItem(r))
	}
	if err := s.cache.save(ctx, QueryCart, ownerID, items); err != nil {
		s.logger.Warn(ctx, fmt.Sprintf("cart query cache write failed: %v", err))
	}
	return items, nil
}

func (s *service) loadCustomItems(ctx context.Context, ownerID string) ([]CustomItem, error) {
	var items []CustomItem
	if ok, err := s.cache.load(ctx, QueryCustomJacketCart, ownerID, &items); err != nil {
		s.logger.Warn(ctx, fmt.Sprintf("custom cart query cache read failed: %v", err))
	} else if ok {
		return items, nil
	}

	records, err := s.repo.ListCustomItems(ctx, ownerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load custom items")
	}
	items = make([]CustomItem, 0, len(records))
	for _, r := range records {
		items = append(items, toCustomItem(r))
	}
	if err := s.cache.save(ctx, QueryCustomJacketCart, ownerID, items); err != nil {
		s.logger.Warn(ctx, fmt.Sprintf("custom cart query cache write failed: %v", err))
	}
	return items, nil
}

func requireOwner(ownerID string) (string, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "cart owner is required")
	}
	return ownerID, nil
}

func validateLine(quantity int, unitPrice decimal.Decimal) error {
	if quantity < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if unitPrice.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unit_price must not be negative")
	}
	return nil
}

func toItem(r models.CartItem) Item {
	return Item{
		ID:        r.ID,
		ProductID: r.ProductID,
		Name:      r.Name,
		Size:      r.Size,
		ImageURL:  r.ImageURL,
		UnitPrice: r.UnitPrice,
		Quantity:  r.Quantity,
	}
}

func toCustomItem(r models.CustomItem) CustomItem {
	return CustomItem{
		ID:            r.ID,
		Kind:          r.Kind,
		Name:          r.Name,
		Configuration: r.Configuration,
		UnitPrice:     r.UnitPrice,
		Quantity:      r.Quantity,
	}
}
