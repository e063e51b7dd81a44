package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/nordstil-checkout/pkg/errors"
	"github.com/angelmondragon/nordstil-checkout/pkg/pagination"
)

type sampleBody struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Quantity int    `json:"quantity" validate:"gte=1"`
}

func TestDecodeJSONBodyReportsFieldsByJSONName(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"","email":"nope","quantity":1}`))
	var body sampleBody
	err := DecodeJSONBody(req, &body)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	details := typed.Details().(map[string]string)
	if details["name"] != "is required" || details["email"] != "must be a valid email" {
		t.Fatalf("unexpected details %v", details)
	}
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a","email":"a@b.se","quantity":1,"extra":true}`))
	var body sampleBody
	if err := DecodeJSONBody(req, &body); pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=500", nil)
	if _, err := ParseQueryInt(req, "limit", 25, 1, 100); pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected range error, got %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	if v, err := ParseQueryInt(req, "limit", 25, 1, 100); err != nil || v != 25 {
		t.Fatalf("expected default 25, got %d %v", v, err)
	}
}

func TestDecodeJSONBodyRejectsEmptyTrailingAndOversizedBodies(t *testing.T) {
	cases := map[string]string{
		"empty":    "",
		"trailing": `{"name":"a","email":"a@b.se","quantity":1}{"name":"b"}`,
		"too big":  `{"name":"` + strings.Repeat("x", MaxBodyBytes) + `","email":"a@b.se","quantity":1}`,
	}
	for name, raw := range cases {
		var body sampleBody
		err := DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(raw)), &body)
		if pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestParsePageParams(t *testing.T) {
	cursor := pagination.Cursor{CreatedAt: time.Now(), ID: uuid.New()}.Encode()
	params, err := ParsePageParams(httptest.NewRequest(http.MethodGet, "/?limit=5&cursor="+cursor, nil))
	if err != nil || params.Limit != 5 || params.Cursor != cursor {
		t.Fatalf("unexpected params %+v %v", params, err)
	}

	params, err = ParsePageParams(httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil || params.Limit != pagination.DefaultLimit || params.Cursor != "" {
		t.Fatalf("expected first page defaults, got %+v %v", params, err)
	}

	_, err = ParsePageParams(httptest.NewRequest(http.MethodGet, "/?cursor=abc", nil))
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if details := typed.Details().(map[string]string); details["cursor"] == "" {
		t.Fatalf("expected cursor detail, got %v", details)
	}
}

func TestParseUUIDParam(t *testing.T) {
	id := uuid.New()
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("sessionId", id.String())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	got, err := ParseUUIDParam(req, "sessionId")
	if err != nil || got != id {
		t.Fatalf("expected %s, got %s %v", id, got, err)
	}
	if _, err := ParseUUIDParam(req, "itemId"); pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for missing param, got %v", err)
	}
}

func TestSanitizeStringCapsRunes(t *testing.T) {
	if got := SanitizeString("  Malmö  ", 5); got != "Malmö" {
		t.Fatalf("unexpected %q", got)
	}
	if got := SanitizeString("Göteborg", 3); got != "Göt" {
		t.Fatalf("unexpected %q", got)
	}
}
