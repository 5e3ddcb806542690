// Package apperr carries the scheduling error kinds from the engine to the API boundary.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindInvalidRequest    Kind = "INVALID_REQUEST"
	KindNotFound          Kind = "NOT_FOUND"
	KindClientBlacklisted Kind = "CLIENT_BLACKLISTED"
	KindNoCapacity        Kind = "NO_CAPACITY"
	KindConflict          Kind = "CONFLICT"
	KindInvalidTransition Kind = "INVALID_TRANSITION"
	KindPolicyViolation   Kind = "POLICY_VIOLATION"
	KindNoTenantContext   Kind = "NO_TENANT_CONTEXT"
	KindInternal          Kind = "INTERNAL"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the client-facing message, hiding wrapped infrastructure errors.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case KindInvalidRequest, KindNoTenantContext:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindClientBlacklisted:
		return http.StatusForbidden
	case KindNoCapacity, KindConflict, KindInvalidTransition:
		return http.StatusConflict
	case KindPolicyViolation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
