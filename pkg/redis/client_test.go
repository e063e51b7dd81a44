package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/angelmondragon/nordstil-checkout/pkg/config"
	"github.com/redis/go-redis/v9"
)

func TestLockLifecycle(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}
	key := client.CheckoutLockKey("sess-1")

	ok, err := client.AcquireLock(ctx, key, "token-a", time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected first acquire to succeed, ok=%v err=%v", ok, err)
	}
	ok, err = client.AcquireLock(ctx, key, "token-b", time.Minute)
	if err != nil || ok {
		t.Fatalf("expected second acquire to fail, ok=%v err=%v", ok, err)
	}

	if err := client.ReleaseLock(ctx, key, "token-b"); err != nil {
		t.Fatalf("release with foreign token: %v", err)
	}
	if _, exists := mock.data[key]; !exists {
		t.Fatalf("foreign token must not release the lock")
	}

	if err := client.ReleaseLock(ctx, key, "token-a"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, exists := mock.data[key]; exists {
		t.Fatalf("lock should be released")
	}
	if err := client.ReleaseLock(ctx, key, "token-a"); err != nil {
		t.Fatalf("releasing a missing lock should be a no-op, got %v", err)
	}
}

func TestGetMissingReturnsErrNil(t *testing.T) {
	client := &Client{store: newMockCmdable()}
	if _, err := client.Get(context.Background(), "missing"); !errors.Is(err, ErrNil) {
		t.Fatalf("expected ErrNil, got %v", err)
	}
}

func TestUninitializedClient(t *testing.T) {
	var client *Client
	if err := client.Ping(context.Background()); err == nil {
		t.Fatalf("expected nil client ping to fail")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("closing nil client should be a no-op")
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	if got := client.IdempotencyKey("scope", "id"); got != "ns:idempotency:scope:id" {
		t.Fatalf("unexpected idempotency key %s", got)
	}
	if got := client.CheckoutSessionKey("abc"); got != "ns:checkout:session:abc" {
		t.Fatalf("unexpected session key %s", got)
	}
	if got := client.CheckoutLockKey("abc"); got != "ns:lock:checkout:abc" {
		t.Fatalf("unexpected lock key %s", got)
	}
	if got := client.QueryKey("cart", "owner-1"); got != "ns:query:cart:owner-1" {
		t.Fatalf("unexpected query key %s", got)
	}
	if got := client.QueryKey("cart", " "); got != "ns:query:cart" {
		t.Fatalf("blank parts should be skipped, got %s", got)
	}
}

func TestOptionsFromConfigRequiresTarget(t *testing.T) {
	if _, err := optionsFromConfig(configWith("", "")); err == nil {
		t.Fatalf("expected error without url or address")
	}
	opts, err := optionsFromConfig(configWith("redis://localhost:6379/3", ""))
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if opts.DB != 3 {
		t.Fatalf("expected db 3 from url, got %d", opts.DB)
	}
}

type mockCmdable struct {
	data map[string]string
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{data: make(map[string]string)}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func configWith(url, addr string) config.RedisConfig {
	return config.RedisConfig{URL: url, Address: addr}
}
