// Package storage is the Postgres implementation of the booking storage contracts.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/md-rashed-zaman/slotbook/libs/db"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/lifecycle"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/monitor"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/recurring"
)

// querier is the part of pgx shared by the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

type Store struct {
	pool     *db.Pool
	outbox   *outbox.Repository
	maxTries uint
}

func New(pool *db.Pool, events *outbox.Repository) *Store {
	return &Store{pool: pool, outbox: events, maxTries: 3}
}

// InTx runs fn in one transaction. Serialization failures and deadlocks replay fn from the
// start; every other error is returned as is.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx lifecycle.Tx) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 250 * time.Millisecond

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := s.pool.InTx(ctx, func(tx pgx.Tx) error {
			return fn(ctx, &Tx{tx: tx, outbox: s.outbox})
		})
		if err != nil && !IsRetryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(s.maxTries))
	return err
}

func (s *Store) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	if err := s.pool.InTx(ctx, fn); err != nil {
		return fmt.Errorf("tx: %w", err)
	}
	return nil
}

func nullUUID(id string) any {
	if id == "" {
		return nil
	}
	return id
}

func dateArg(day time.Time) string {
	return day.Format(time.DateOnly)
}

var (
	_ lifecycle.Store = (*Store)(nil)
	_ lifecycle.Tx    = (*Tx)(nil)

	_ availability.HoursStore       = (*Store)(nil)
	_ availability.OccupancyStore   = (*Store)(nil)
	_ availability.StaffDirectory   = (*Store)(nil)
	_ availability.Catalog          = (*Store)(nil)
	_ availability.SettingsProvider = (*Store)(nil)

	_ monitor.NoShowSource   = (*Store)(nil)
	_ monitor.ReminderSource = (*Store)(nil)
	_ recurring.Stamper      = (*Store)(nil)
)
