package errors

import (
	stdErrors "errors"
	"net/http"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized},
		{code: CodeForbidden, status: http.StatusForbidden},
		{code: CodeNotFound, status: http.StatusNotFound},
		{code: CodeConflict, status: http.StatusConflict},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, detailsOK: true},
		{code: CodePaymentSetup, status: http.StatusBadGateway, retryable: true, detailsOK: true},
		{code: CodePaymentDeclined, status: http.StatusPaymentRequired, retryable: true, detailsOK: true},
		{code: CodeOrderRecording, status: http.StatusBadGateway, detailsOK: true},
		{code: CodeInternal, status: http.StatusInternalServerError, retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestOrderRecordingMessageDiffersFromGenericFailure(t *testing.T) {
	recording := MetadataFor(CodeOrderRecording).PublicMessage
	if recording == MetadataFor(CodeInternal).PublicMessage {
		t.Fatalf("partial failure must not share the generic message")
	}
	if !strings.Contains(recording, "payment succeeded") {
		t.Fatalf("partial failure message must say the payment succeeded, got %q", recording)
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}
	base.WithDetails(map[string]any{"field": "foo"})
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if CodeOf(wrapped) != CodeConflict {
		t.Fatalf("unexpected code %s", CodeOf(wrapped))
	}
	if CodeOf(cause) != CodeInternal {
		t.Fatalf("untyped errors should map to internal")
	}
}

func TestDumpWalksChain(t *testing.T) {
	root := stdErrors.New("connection refused")
	err := Wrap(CodeDependency, root, "create order")

	dump := Dump(err)
	if dump.Code != CodeDependency {
		t.Fatalf("expected dependency code, got %s", dump.Code)
	}
	if len(dump.Chain) != 2 {
		t.Fatalf("expected two chain entries, got %v", dump.Chain)
	}
	fields := dump.Fields()
	if _, ok := fields["sql_code"]; ok {
		t.Fatalf("empty sql columns should be omitted")
	}
	if fields["error_code"] != CodeDependency {
		t.Fatalf("unexpected error_code %v", fields["error_code"])
	}
}

func TestDumpReadsPostgresErrorDetails(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "reconciliations_order_ref_key", TableName: "reconciliations", Detail: "duplicate"}
	err := Wrap(CodeConflict, pgErr, "record reconciliation")

	fields := Dump(err).Fields()
	if fields["sql_code"] != "23505" || fields["sql_constraint"] != "reconciliations_order_ref_key" {
		t.Fatalf("unexpected sql fields %v", fields)
	}
	if fields["sql_table"] != "reconciliations" || fields["sql_detail"] != "duplicate" {
		t.Fatalf("unexpected sql fields %v", fields)
	}
}
