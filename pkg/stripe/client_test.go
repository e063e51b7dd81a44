package stripe

import (
	"context"
	"testing"

	"github.com/angelmondragon/nordstil-checkout/pkg/config"
)

func TestNewClientValidatesKeyAgainstEnv(t *testing.T) {
	cases := []struct {
		name    string
		cfg     config.StripeConfig
		wantErr bool
		wantEnv string
	}{
		{name: "test key", cfg: config.StripeConfig{APIKey: "sk_test_123", Env: "test"}, wantEnv: testEnv},
		{name: "default env", cfg: config.StripeConfig{APIKey: "rk_test_123"}, wantEnv: testEnv},
		{name: "live key", cfg: config.StripeConfig{APIKey: "sk_live_123", Env: "LIVE"}, wantEnv: liveEnv},
		{name: "missing key", cfg: config.StripeConfig{Env: "test"}, wantErr: true},
		{name: "live key in test", cfg: config.StripeConfig{APIKey: "sk_live_123", Env: "test"}, wantErr: true},
		{name: "unknown env", cfg: config.StripeConfig{APIKey: "sk_test_123", Env: "staging"}, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, err := NewClient(context.Background(), tc.cfg, nil)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if client.Environment() != tc.wantEnv {
				t.Fatalf("expected env %q, got %q", tc.wantEnv, client.Environment())
			}
			if client.API() == nil {
				t.Fatalf("expected api client")
			}
		})
	}
}

func TestNilClientAccessors(t *testing.T) {
	var c *Client
	if c.API() != nil || c.Environment() != "" {
		t.Fatalf("nil client should return zero values")
	}
}
