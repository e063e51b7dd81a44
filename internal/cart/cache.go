package cart

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/nordstil-checkout/pkg/redis"
)

// Cached query names. Every cart mutation invalidates both.
const (
	QueryCart             = "cart"
	QueryCustomJacketCart = "customJacketCart"
)

// QueryStore is the subset of the redis client used for cart query caching.
type QueryStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	QueryKey(query, ownerID string) string
}

// queryCache stores the item lists behind the cart and customJacketCart queries.
type queryCache struct {
	store QueryStore
	ttl   time.Duration
}

func newQueryCache(store QueryStore, ttl time.Duration) *queryCache {
	if store == nil {
		return nil
	}
	return &queryCache{store: store, ttl: ttl}
}

// load reads a cached query. A miss returns ok=false with a nil error.
func (c *queryCache) load(ctx context.Context, query, ownerID string, out any) (bool, error) {
	if c == nil {
		return false, nil
	}
	raw, err := c.store.Get(ctx, c.store.QueryKey(query, ownerID))
	if err != nil {
		if errors.Is(err, redis.ErrNil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, err
	}
	return true, nil
}

func (c *queryCache) save(ctx context.Context, query, ownerID string, value any) error {
	if c == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, c.store.QueryKey(query, ownerID), payload, c.ttl)
}

// invalidate drops both cached queries for the owner; every key is attempted.
func (c *queryCache) invalidate(ctx context.Context, ownerID string) error {
	if c == nil {
		return nil
	}
	var err error
	for _, query := range []string{QueryCart, QueryCustomJacketCart} {
		err = multierr.Append(err, c.store.Del(ctx, c.store.QueryKey(query, ownerID)))
	}
	return err
}
