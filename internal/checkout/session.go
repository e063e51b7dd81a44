package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/nordstil-checkout/internal/address"
	"github.com/angelmondragon/nordstil-checkout/internal/cart"
	"github.com/angelmondragon/nordstil-checkout/internal/payments"
	"github.com/angelmondragon/nordstil-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/nordstil-checkout/pkg/errors"
	"github.com/angelmondragon/nordstil-checkout/pkg/redis"
	"github.com/angelmondragon/nordstil-checkout/pkg/storefrontapi"
)

// LastError mirrors the message the client shows for the latest failure.
type LastError struct {
	Kind    enums.CheckoutErrorKind `json:"kind"`
	Message string                  `json:"message"`
}

// User is the session's snapshot of the caller. The bearer token is never stored.
type User struct {
	ID    string `json:"id,omitempty"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Session is one checkout attempt, persisted between requests.
type Session struct {
	ID        uuid.UUID            `json:"id"`
	OwnerID   string               `json:"owner_id"`
	User      User                 `json:"user"`
	Form      Form                 `json:"form"`
	Address   address.State        `json:"address"`
	State     enums.CheckoutState  `json:"state"`
	Intent    *payments.Intent     `json:"intent,omitempty"`
	LastError *LastError           `json:"last_error,omitempty"`
	Order     *storefrontapi.Order `json:"order,omitempty"`
	Redirect  string               `json:"redirect,omitempty"`
	Totals    *cart.Rendered       `json:"totals,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// SubmitDisabled is true while a submission is in flight or the flow has ended.
func (s *Session) SubmitDisabled() bool {
	return s.State.IsBusy() || s.State.IsTerminal()
}

func (s *Session) setError(kind enums.CheckoutErrorKind, message string) {
	s.LastError = &LastError{Kind: kind, Message: message}
}

// SessionStore persists sessions and serializes work on one session.
type SessionStore interface {
	Save(ctx context.Context, sess *Session) error
	Load(ctx context.Context, id uuid.UUID) (*Session, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// Lock returns a release func, or a state conflict when another request holds the session.
	Lock(ctx context.Context, id uuid.UUID) (func(), error)
}

type sessionKV interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
	CheckoutSessionKey(sessionID string) string
	CheckoutLockKey(sessionID string) string
}

type redisSessionStore struct {
	kv      sessionKV
	ttl     time.Duration
	lockTTL time.Duration
}

// NewRedisSessionStore keeps sessions as JSON with a sliding TTL.
func NewRedisSessionStore(kv sessionKV, ttl, lockTTL time.Duration) (SessionStore, error) {
	if kv == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	return &redisSessionStore{kv: kv, ttl: ttl, lockTTL: lockTTL}, nil
}

func (s *redisSessionStore) Save(ctx context.Context, sess *Session) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode checkout session")
	}
	if err := s.kv.Set(ctx, s.kv.CheckoutSessionKey(sess.ID.String()), payload, s.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store checkout session")
	}
	return nil
}

func (s *redisSessionStore) Load(ctx context.Context, id uuid.UUID) (*Session, error) {
	raw, err := s.kv.Get(ctx, s.kv.CheckoutSessionKey(id.String()))
	if err != nil {
		if errors.Is(err, redis.ErrNil) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "checkout session not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load checkout session")
	}
	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode checkout session")
	}
	return &sess, nil
}

func (s *redisSessionStore) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.kv.Del(ctx, s.kv.CheckoutSessionKey(id.String())); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete checkout session")
	}
	return nil
}

func (s *redisSessionStore) Lock(ctx context.Context, id uuid.UUID) (func(), error) {
	key := s.kv.CheckoutLockKey(id.String())
	token := uuid.NewString()
	ok, err := s.kv.AcquireLock(ctx, key, token, s.lockTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock checkout session")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "checkout is already processing a request")
	}
	return func() {
		_ = s.kv.ReleaseLock(context.WithoutCancel(ctx), key, token)
	}, nil
}
