package orders

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/nordstil-checkout/internal/reconciliation"
	"github.com/angelmondragon/nordstil-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/nordstil-checkout/pkg/errors"
	"github.com/angelmondragon/nordstil-checkout/pkg/logger"
	"github.com/angelmondragon/nordstil-checkout/pkg/metrics"
	"github.com/angelmondragon/nordstil-checkout/pkg/storefrontapi"
)

type stubOrders struct {
	calls int
	req   storefrontapi.OrderRequest
	token string
	order *storefrontapi.Order
	err   error
}

func (s *stubOrders) CreateOrder(_ context.Context, token string, req storefrontapi.OrderRequest) (*storefrontapi.Order, error) {
	s.calls++
	s.req = req
	s.token = token
	if s.err != nil {
		return nil, s.err
	}
	return s.order, nil
}

type stubCart struct {
	cleared     []string
	invalidated []string
	clearErr    error
}

func (s *stubCart) Clear(_ context.Context, ownerID string) error {
	s.cleared = append(s.cleared, ownerID)
	return s.clearErr
}

func (s *stubCart) Invalidate(_ context.Context, ownerID string) error {
	s.invalidated = append(s.invalidated, ownerID)
	return nil
}

type stubRecorder struct {
	inputs []reconciliation.RecordInput
	err    error
}

func (s *stubRecorder) Record(_ context.Context, input reconciliation.RecordInput) (*reconciliation.Record, error) {
	s.inputs = append(s.inputs, input)
	if s.err != nil {
		return nil, s.err
	}
	return &reconciliation.Record{ID: uuid.MustParse("11111111-1111-1111-1111-111111111111")}, nil
}

func newService(t *testing.T, o *stubOrders, c *stubCart, r *stubRecorder) (Service, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.NewCheckoutMetrics(reg)
	svc, err := NewService(ServiceParams{Orders: o, Cart: c, Reconciliation: r, Metrics: m, Logger: logger.Nop()})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, reg
}

func counterValue(t *testing.T, reg *prometheus.Registry, name, method string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "payment_method" && label.GetValue() == method {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func sampleInput() PersistInput {
	return PersistInput{
		SessionID:     uuid.New(),
		OwnerID:       "user-1",
		Token:         "tok",
		PaymentMethod: enums.PaymentMethodStripe,
		AmountCents:   7249,
		Draft: storefrontapi.OrderRequest{
			ShippingAddress: storefrontapi.OrderAddress{Name: "Astrid", Email: "astrid@example.se"},
			PaymentMethod:   "stripe",
			PaymentIntentID: "pi_1",
			Total:           decimal.RequireFromString("72.49"),
			Currency:        "eur",
		},
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := NewService(ServiceParams{}); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}

func TestPersistClearsCartAndRedirects(t *testing.T) {
	o := &stubOrders{order: &storefrontapi.Order{ID: "ord_42"}}
	c := &stubCart{}
	r := &stubRecorder{}
	svc, reg := newService(t, o, c, r)

	res, err := svc.Persist(context.Background(), sampleInput())
	if err != nil {
		t.Fatalf("persist: %v", err)
	}
	if res.Redirect != "/order-confirmation/ord_42" {
		t.Fatalf("unexpected redirect %q", res.Redirect)
	}
	if o.calls != 1 || o.token != "tok" || o.req.PaymentIntentID != "pi_1" {
		t.Fatalf("unexpected order call %+v", o)
	}
	if len(c.cleared) != 1 || c.cleared[0] != "user-1" {
		t.Fatalf("expected cart cleared once, got %v", c.cleared)
	}
	if len(c.invalidated) != 1 {
		t.Fatalf("expected cached cart queries invalidated, got %v", c.invalidated)
	}
	if len(r.inputs) != 0 {
		t.Fatalf("no reconciliation expected, got %d", len(r.inputs))
	}
	if got := counterValue(t, reg, "checkout_orders_total", "stripe"); got != 1 {
		t.Fatalf("expected order counter 1, got %v", got)
	}
}

func TestPersistKeepsOrderWhenCartClearFails(t *testing.T) {
	o := &stubOrders{order: &storefrontapi.Order{ID: "ord_1"}}
	c := &stubCart{clearErr: errors.New("db down")}
	svc, _ := newService(t, o, c, &stubRecorder{})

	res, err := svc.Persist(context.Background(), sampleInput())
	if err != nil {
		t.Fatalf("order was created, expected success: %v", err)
	}
	if res.Order.ID != "ord_1" {
		t.Fatalf("unexpected order %+v", res.Order)
	}
}

func TestPersistOrderRejectedAfterPayment(t *testing.T) {
	o := &stubOrders{err: pkgerrors.New(pkgerrors.CodeDependency, "orders request failed")}
	c := &stubCart{}
	r := &stubRecorder{}
	svc, reg := newService(t, o, c, r)

	_, err := svc.Persist(context.Background(), sampleInput())
	if err == nil {
		t.Fatal("expected error")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeOrderRecording {
		t.Fatalf("expected order recording error, got %v", err)
	}
	if typed.Message() != RecordingFailedMessage {
		t.Fatalf("unexpected message %q", typed.Message())
	}
	details, ok := typed.Details().(map[string]any)
	if !ok || details["payment_intent_id"] != "pi_1" || details["reconciliation_id"] == nil {
		t.Fatalf("unexpected details %#v", typed.Details())
	}
	if len(c.cleared) != 0 {
		t.Fatal("cart must survive a failed order")
	}
	if len(r.inputs) != 1 {
		t.Fatalf("expected one reconciliation, got %d", len(r.inputs))
	}
	rec := r.inputs[0]
	if rec.PaymentIntentID != "pi_1" || rec.AmountCents != 7249 || rec.CustomerEmail != "astrid@example.se" {
		t.Fatalf("unexpected reconciliation %+v", rec)
	}
	if rec.Draft["payment_intent_id"] != "pi_1" {
		t.Fatalf("expected draft snapshot, got %#v", rec.Draft)
	}
	if got := counterValue(t, reg, "checkout_partial_failures_total", "stripe"); got != 1 {
		t.Fatalf("expected partial failure counter 1, got %v", got)
	}
}

func TestPersistReportsRecordingFailureWhenLedgerFails(t *testing.T) {
	o := &stubOrders{err: errors.New("boom")}
	r := &stubRecorder{err: errors.New("ledger down")}
	svc, _ := newService(t, o, &stubCart{}, r)

	_, err := svc.Persist(context.Background(), sampleInput())
	if pkgerrors.CodeOf(err) != pkgerrors.CodeOrderRecording {
		t.Fatalf("expected order recording error, got %v", err)
	}
	details := pkgerrors.As(err).Details().(map[string]any)
	if _, ok := details["reconciliation_id"]; ok {
		t.Fatal("no reconciliation id expected when the ledger write fails")
	}
}
