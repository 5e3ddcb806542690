package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindOfThroughWrapping(t *testing.T) {
	base := New(KindConflict, "staff %s is busy", "s1")
	wrapped := fmt.Errorf("create appointment: %w", base)
	if KindOf(wrapped) != KindConflict {
		t.Fatalf("expected conflict, got %s", KindOf(wrapped))
	}
	if !Is(wrapped, KindConflict) || Is(wrapped, KindNotFound) {
		t.Fatalf("Is mismatch")
	}
	if KindOf(errors.New("boom")) != KindInternal {
		t.Fatalf("untyped errors should be internal")
	}
	if Message(errors.New("pg: password=secret")) != "internal error" {
		t.Fatalf("untyped error message leaked")
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindInvalidRequest:    http.StatusBadRequest,
		KindNotFound:          http.StatusNotFound,
		KindClientBlacklisted: http.StatusForbidden,
		KindNoCapacity:        http.StatusConflict,
		KindConflict:          http.StatusConflict,
		KindInvalidTransition: http.StatusConflict,
		KindPolicyViolation:   http.StatusUnprocessableEntity,
		KindNoTenantContext:   http.StatusBadRequest,
		KindInternal:          http.StatusInternalServerError,
	}
	for kind, want := range cases {
		if got := HTTPStatus(kind); got != want {
			t.Fatalf("%s: expected %d, got %d", kind, want, got)
		}
	}
}
