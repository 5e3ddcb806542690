// Package tenant carries the resolved business (tenant) id through request contexts.
//
// The id is sourced once at the edge (gateway JWT claim or the X-Business-Id header on
// public routes) and read back by every scoped operation.
package tenant

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const Header = "X-Business-Id"

// QueryParam is accepted on public routes that are reached without a token.
const QueryParam = "business_id"

var ErrMissing = errors.New("tenant context missing")

type ctxKey struct{}

func WithID(ctx context.Context, id string) context.Context {
	id = strings.TrimSpace(id)
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (string, bool) {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id, id != ""
}

// Require returns the tenant id or ErrMissing.
func Require(ctx context.Context) (string, error) {
	id, ok := FromContext(ctx)
	if !ok {
		return "", ErrMissing
	}
	return id, nil
}

// FromRequest reads the tenant header, falling back to the business_id query parameter.
func FromRequest(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(Header)); id != "" {
		return id
	}
	return strings.TrimSpace(r.URL.Query().Get(QueryParam))
}

// Canonical returns id in canonical UUID form, or false when it is not a UUID.
func Canonical(id string) (string, bool) {
	u, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return "", false
	}
	return u.String(), true
}

// Middleware stores the request's tenant id in its context. Requests without a well-formed
// one pass through untouched; scoped handlers reject them.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := Canonical(FromRequest(r)); ok {
			r = r.WithContext(WithID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}
