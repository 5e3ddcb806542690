package storage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestErrorClassification(t *testing.T) {
	wrap := func(code string) error {
		return fmt.Errorf("insert appointment: %w", &pgconn.PgError{Code: code})
	}

	if !IsConflict(wrap("23P01")) || IsConflict(wrap("23505")) {
		t.Fatalf("IsConflict must match only exclusion violations")
	}
	if !IsUniqueViolation(wrap("23505")) {
		t.Fatalf("expected unique violation")
	}
	if !IsRetryable(wrap("40001")) || !IsRetryable(wrap("40P01")) || IsRetryable(wrap("23P01")) {
		t.Fatalf("unexpected retry classification")
	}
	if !IsNotFound(fmt.Errorf("select: %w", pgx.ErrNoRows)) || IsNotFound(errors.New("boom")) {
		t.Fatalf("unexpected not-found classification")
	}
}
