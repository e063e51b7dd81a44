package storefrontapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/nordstil-checkout/pkg/config"
	pkgerrors "github.com/angelmondragon/nordstil-checkout/pkg/errors"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func newTestClient(t *testing.T, cfg config.BackendConfig, rt roundTripFunc) *Client {
	t.Helper()
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://backend.test/api"
	}
	client, err := NewClient(cfg, WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestFetchUserAddressesForwardsToken(t *testing.T) {
	var capturedURL, capturedAuth string
	client := newTestClient(t, config.BackendConfig{}, func(req *http.Request) (*http.Response, error) {
		capturedURL = req.URL.String()
		capturedAuth = req.Header.Get("Authorization")
		return jsonResponse(http.StatusOK, `[{"id":"a1","name":"Astrid","city":"Oslo","postal_code":"0150","is_default":true}]`), nil
	})

	addresses, err := client.FetchUserAddresses(context.Background(), "tok-123")
	if err != nil {
		t.Fatalf("fetch addresses: %v", err)
	}
	if capturedURL != "http://backend.test/api/addresses" {
		t.Fatalf("unexpected URL %q", capturedURL)
	}
	if capturedAuth != "Bearer tok-123" {
		t.Fatalf("unexpected auth header %q", capturedAuth)
	}
	if len(addresses) != 1 || !addresses[0].IsDefault || addresses[0].PostalCode != "0150" {
		t.Fatalf("unexpected addresses %+v", addresses)
	}
}

func TestFetchUserAddressesRequiresToken(t *testing.T) {
	called := false
	client := newTestClient(t, config.BackendConfig{}, func(*http.Request) (*http.Response, error) {
		called = true
		return jsonResponse(http.StatusOK, `[]`), nil
	})

	_, err := client.FetchUserAddresses(context.Background(), " ")
	if pkgerrors.CodeOf(err) != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if called {
		t.Fatalf("no request expected without a token")
	}
}

func TestCreatePaymentIntentPayload(t *testing.T) {
	client := newTestClient(t, config.BackendConfig{}, func(req *http.Request) (*http.Response, error) {
		if req.Method != http.MethodPost || req.URL.Path != "/api/payments/create-intent" {
			t.Fatalf("unexpected request %s %s", req.Method, req.URL.Path)
		}
		if req.Header.Get("Authorization") != "" {
			t.Fatalf("guest requests must not send a bearer token")
		}
		var payload map[string]any
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if payload["amount"] != float64(7249) || payload["currency"] != "eur" || payload["customer_email"] != "a@b.se" {
			t.Fatalf("unexpected payload %v", payload)
		}
		meta, _ := payload["metadata"].(map[string]any)
		if meta["shipping_city"] != "Stockholm" {
			t.Fatalf("metadata not forwarded: %v", payload["metadata"])
		}
		return jsonResponse(http.StatusOK, `{"client_secret":"pi_1_secret_2","payment_intent_id":"pi_1"}`), nil
	})

	intent, err := client.CreatePaymentIntent(context.Background(), "", CreateIntentRequest{
		Amount:        7249,
		Currency:      "eur",
		CustomerEmail: "a@b.se",
		Metadata:      map[string]string{"shipping_city": "Stockholm"},
	})
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}
	if intent.ClientSecret != "pi_1_secret_2" || intent.PaymentIntentID != "pi_1" {
		t.Fatalf("unexpected intent %+v", intent)
	}
}

func TestCreateOrderDecodesOrder(t *testing.T) {
	client := newTestClient(t, config.BackendConfig{}, func(req *http.Request) (*http.Response, error) {
		var payload OrderRequest
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if !payload.Total.Equal(decimal.RequireFromString("72.49")) {
			t.Fatalf("unexpected total %s", payload.Total)
		}
		return jsonResponse(http.StatusCreated, `{"order":{"id":"ord_9","status":"paid","total":"72.49"}}`), nil
	})

	order, err := client.CreateOrder(context.Background(), "tok", OrderRequest{
		PaymentMethod: "stripe",
		Total:         decimal.RequireFromString("72.49"),
		Currency:      "eur",
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.ID != "ord_9" || order.Status != "paid" {
		t.Fatalf("unexpected order %+v", order)
	}
}

func TestCreateOrderMissingIDIsDependencyError(t *testing.T) {
	client := newTestClient(t, config.BackendConfig{}, func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"order":{}}`), nil
	})

	_, err := client.CreateOrder(context.Background(), "", OrderRequest{})
	if pkgerrors.CodeOf(err) != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestBackendErrorsCarryStatus(t *testing.T) {
	client := newTestClient(t, config.BackendConfig{}, func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusUnprocessableEntity, `{"error":"bad order"}`), nil
	})

	_, err := client.CreateOrder(context.Background(), "", OrderRequest{})
	if err == nil {
		t.Fatalf("expected error")
	}
	if StatusCode(err) != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d (%v)", StatusCode(err), err)
	}
}

func TestBreakerOpensAfterConsecutiveServerErrors(t *testing.T) {
	calls := 0
	client := newTestClient(t, config.BackendConfig{BreakerFailures: 2, BreakerOpenDelay: time.Minute}, func(*http.Request) (*http.Response, error) {
		calls++
		return jsonResponse(http.StatusBadGateway, `upstream down`), nil
	})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := client.CreateOrder(ctx, "", OrderRequest{}); err == nil {
			t.Fatalf("expected failure on call %d", i)
		}
	}

	_, err := client.CreateOrder(ctx, "", OrderRequest{})
	if err == nil || !strings.Contains(err.Error(), "unavailable") {
		t.Fatalf("expected open breaker error, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("open breaker must not reach the backend, got %d calls", calls)
	}
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	calls := 0
	client := newTestClient(t, config.BackendConfig{BreakerFailures: 1, BreakerOpenDelay: time.Minute}, func(*http.Request) (*http.Response, error) {
		calls++
		return jsonResponse(http.StatusBadRequest, `nope`), nil
	})

	for i := 0; i < 3; i++ {
		_, _ = client.CreateOrder(context.Background(), "", OrderRequest{})
	}
	if calls != 3 {
		t.Fatalf("4xx responses should not open the breaker, got %d calls", calls)
	}
}

func TestTransportErrorIsDependencyError(t *testing.T) {
	client := newTestClient(t, config.BackendConfig{}, func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})

	_, err := client.CreatePaymentIntent(context.Background(), "", CreateIntentRequest{Amount: 100, Currency: "eur"})
	if pkgerrors.CodeOf(err) != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient(config.BackendConfig{}); err == nil {
		t.Fatalf("expected base url error")
	}
}
