package main

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/auth"
)

func TestRequireRole(t *testing.T) {
	h := requireRole(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), "owner", "admin")

	req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	req.Header.Set("X-Role", "staff")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rw.Code)
	}

	reqOK := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	reqOK.Header.Set("X-Role", "owner")
	rwOK := httptest.NewRecorder()
	h.ServeHTTP(rwOK, reqOK)
	if rwOK.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rwOK.Code)
	}
}

func TestRequireAuthHS256(t *testing.T) {
	secret := "test-secret"
	claims := auth.NewClaims("user-1", "biz-1", "owner", time.Hour)
	token, err := auth.SignHS256(claims, secret)
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}

	h := requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-User-Id") != "user-1" || r.Header.Get("X-Business-Id") != "biz-1" || r.Header.Get("X-Role") != "owner" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}), auth.NewVerifier(secret, nil))

	req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Business-Id", "spoofed")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}

	reqBad := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	reqBad.Header.Set("Authorization", "Bearer badtoken")
	rwBad := httptest.NewRecorder()
	h.ServeHTTP(rwBad, reqBad)
	if rwBad.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rwBad.Code)
	}

	rwNone := httptest.NewRecorder()
	h.ServeHTTP(rwNone, httptest.NewRequest(http.MethodGet, "http://example.com", nil))
	if rwNone.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without header, got %d", rwNone.Code)
	}
}

func TestRoutesProxyToBooking(t *testing.T) {
	type seen struct{ path, biz, role string }
	var (
		mu   sync.Mutex
		last seen
	)
	got := func() seen {
		mu.Lock()
		defer mu.Unlock()
		return last
	}
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		last = seen{path: r.URL.Path, biz: r.Header.Get("X-Business-Id"), role: r.Header.Get("X-Role")}
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	u, _ := url.Parse(upstream.URL)
	mux := http.NewServeMux()
	secret := "s"
	registerRoutes(mux, u, auth.NewVerifier(secret, nil))
	gw := httptest.NewServer(mux)
	defer gw.Close()

	staff, _ := auth.SignHS256(auth.NewClaims("u", "biz-1", "staff", time.Hour), secret)
	owner, _ := auth.SignHS256(auth.NewClaims("u", "biz-1", "owner", time.Hour), secret)

	do := func(path, token string, headers map[string]string) int {
		req, _ := http.NewRequest(http.MethodGet, gw.URL+path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("request %s: %v", path, err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	if code := do("/api/v1/public/slots", "", map[string]string{"X-Business-Id": "biz-2", "X-Role": "owner"}); code != http.StatusOK {
		t.Fatalf("public: expected 200, got %d", code)
	}
	if v := got(); v.path != "/api/v1/public/slots" || v.biz != "biz-2" || v.role != "" {
		t.Fatalf("public: unexpected upstream view %+v", v)
	}

	if code := do("/api/v1/appointments", "", nil); code != http.StatusUnauthorized {
		t.Fatalf("appointments without token: expected 401, got %d", code)
	}
	if code := do("/api/v1/appointments", staff, nil); code != http.StatusOK {
		t.Fatalf("appointments as staff: expected 200, got %d", code)
	}

	if code := do("/api/v1/admin/settings", staff, nil); code != http.StatusForbidden {
		t.Fatalf("admin as staff: expected 403, got %d", code)
	}
	if code := do("/api/v1/admin/settings", owner, nil); code != http.StatusOK {
		t.Fatalf("admin as owner: expected 200, got %d", code)
	}
	if v := got(); v.path != "/api/v1/admin/settings" || v.biz != "biz-1" || v.role != "owner" {
		t.Fatalf("admin: unexpected upstream view %+v", v)
	}
}
