package tenant

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddlewarePrefersHeader(t *testing.T) {
	var got string
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = FromContext(r.Context())
	}))

	const (
		fromHeader = "6f1c0a52-5b8e-4d35-9a34-1d2f0c7e9b10"
		fromQuery  = "0b7e2c44-93a1-4f7d-8c1e-5a6b7c8d9e0f"
	)
	req := httptest.NewRequest(http.MethodGet, "http://example.com/slots?business_id="+fromQuery, nil)
	req.Header.Set(Header, fromHeader)
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != fromHeader {
		t.Fatalf("expected header tenant, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "http://example.com/slots?business_id="+fromQuery, nil)
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != fromQuery {
		t.Fatalf("expected query tenant, got %q", got)
	}
}

func TestMiddlewareDropsMalformedTenant(t *testing.T) {
	for _, raw := range []string{"biz-1", "'; drop table staff --", "6f1c0a52"} {
		got, seen := "unset", false
		h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, seen = FromContext(r.Context())
		}))
		req := httptest.NewRequest(http.MethodGet, "http://example.com/slots", nil)
		req.Header.Set(Header, raw)
		h.ServeHTTP(httptest.NewRecorder(), req)
		if seen {
			t.Fatalf("%q must not become a tenant, got %q", raw, got)
		}
	}
}

func TestMiddlewareCanonicalisesTenant(t *testing.T) {
	var got string
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = FromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "http://example.com/slots", nil)
	req.Header.Set(Header, " 6F1C0A52-5B8E-4D35-9A34-1D2F0C7E9B10 ")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != "6f1c0a52-5b8e-4d35-9a34-1d2f0c7e9b10" {
		t.Fatalf("expected canonical lower-case id, got %q", got)
	}
}

func TestRequire(t *testing.T) {
	if _, err := Require(context.Background()); !errors.Is(err, ErrMissing) {
		t.Fatalf("expected ErrMissing, got %v", err)
	}
	id, err := Require(WithID(context.Background(), " biz-1 "))
	if err != nil || id != "biz-1" {
		t.Fatalf("expected biz-1, got %q (err %v)", id, err)
	}
	if _, ok := FromContext(WithID(context.Background(), "  ")); ok {
		t.Fatal("blank id must not be stored")
	}
}
