//go:build integration

package storage_test

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/md-rashed-zaman/slotbook/libs/db"
	"github.com/md-rashed-zaman/slotbook/libs/tenant"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/lifecycle"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/migrations"
)

// Run with: TEST_DATABASE_URL=postgres://... go test -tags integration ./services/booking-service/internal/storage/
var (
	now        = time.Date(2030, 1, 6, 8, 0, 0, 0, time.UTC)
	mondayDate = time.Date(2030, 1, 7, 0, 0, 0, 0, time.UTC)
)

type discard struct{}

func (discard) Notify(context.Context, notify.Notification) {}

type env struct {
	pool    *db.Pool
	store   *storage.Store
	svc     *lifecycle.Service
	ctx     context.Context
	biz     string
	staffID string
	trimID  string
}

// newEnv migrates the database and seeds a fresh tenant, so runs never see each other's rows.
func newEnv(t *testing.T) *env {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := db.Open(ctx, url, db.Options{MaxConns: 16})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(pool.Close)
	if err := db.Migrate(ctx, pool, migrations.FS); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	e := &env{pool: pool, store: storage.New(pool, outbox.NewRepository()), biz: uuid.NewString()}
	if err := e.store.SaveSettings(ctx, model.Settings{BusinessID: e.biz, Timezone: "UTC", SlotStepMinutes: 15}); err != nil {
		t.Fatalf("save settings: %v", err)
	}
	if err := pool.QueryRow(ctx, `INSERT INTO staff (business_id, name) VALUES ($1, 'Avery') RETURNING id::text`, e.biz).Scan(&e.staffID); err != nil {
		t.Fatalf("insert staff: %v", err)
	}
	if err := pool.QueryRow(ctx, `
		INSERT INTO services (business_id, name, duration_minutes) VALUES ($1, 'Trim', 30) RETURNING id::text
	`, e.biz).Scan(&e.trimID); err != nil {
		t.Fatalf("insert service: %v", err)
	}
	var week []model.WorkingHours
	for d := time.Sunday; d <= time.Saturday; d++ {
		week = append(week, model.WorkingHours{BusinessID: e.biz, Weekday: d, IsOpen: true, Open: model.MinuteRange{Start: 9 * 60, End: 18 * 60}})
	}
	if err := e.store.ReplaceWorkingHours(ctx, e.biz, "", week); err != nil {
		t.Fatalf("save hours: %v", err)
	}

	clock := func() time.Time { return now }
	calc := availability.NewCalculator(e.store, e.store, e.store, e.store, e.store, availability.WithClock(clock))
	e.svc = lifecycle.NewService(e.store, calc, discard{}, slog.New(slog.DiscardHandler), lifecycle.WithClock(clock))
	e.ctx = tenant.WithID(ctx, e.biz)
	return e
}

func (e *env) booking(startMinute int, key string) lifecycle.CreateRequest {
	return lifecycle.CreateRequest{
		StaffID:        e.staffID,
		CustomerName:   "Racer",
		ServiceIDs:     []string{e.trimID},
		Date:           mondayDate,
		StartMinute:    startMinute,
		Confirmed:      true,
		IdempotencyKey: key,
	}
}

func TestPostgresConcurrentOverlappingBookingsOneWins(t *testing.T) {
	e := newEnv(t)
	const attempts = 8

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.svc.Create(e.ctx, e.booking(10*60+(i%2)*15, ""))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case apperr.Is(err, apperr.KindConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if successes != 1 || conflicts != attempts-1 {
		t.Fatalf("expected exactly one success, got %d successes and %d conflicts", successes, conflicts)
	}

	var rows int
	if err := e.pool.QueryRow(context.Background(), `SELECT count(*) FROM appointments WHERE business_id = $1`, e.biz).Scan(&rows); err != nil {
		t.Fatalf("count: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected one stored appointment, got %d", rows)
	}
}

// Inserting past the staff-day lock still cannot double-book: 23P01 from the exclusion
// constraint comes back as a Conflict and is not retried.
func TestPostgresExclusionViolationIsConflict(t *testing.T) {
	e := newEnv(t)
	start := mondayDate.Add(11 * time.Hour)
	insert := func(offset time.Duration) error {
		return e.store.InTx(context.Background(), func(ctx context.Context, tx lifecycle.Tx) error {
			return tx.InsertAppointment(ctx, &model.Appointment{
				BusinessID:      e.biz,
				StaffID:         e.staffID,
				CustomerName:    "Direct",
				Date:            mondayDate,
				StartTime:       start.Add(offset),
				EndTime:         start.Add(offset + 30*time.Minute),
				BufferedEnd:     start.Add(offset + 30*time.Minute),
				DurationMinutes: 30,
				Status:          model.StatusConfirmed,
			})
		})
	}
	if err := insert(0); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	err := insert(10 * time.Minute)
	if !apperr.Is(err, apperr.KindConflict) || !storage.IsConflict(err) {
		t.Fatalf("expected Conflict wrapping 23P01, got %v", err)
	}
	if err := insert(30 * time.Minute); err != nil {
		t.Fatalf("back-to-back insert should fit: %v", err)
	}
}

func TestPostgresReplayAfterSlotFills(t *testing.T) {
	e := newEnv(t)
	first, err := e.svc.Create(e.ctx, e.booking(14*60, "key-1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	again, err := e.svc.Create(e.ctx, e.booking(14*60, "key-1"))
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !again.Replayed || again.Appointment.ID != first.Appointment.ID {
		t.Fatalf("expected replay of %s, got %+v", first.Appointment.ID, again)
	}
	if id, err := e.store.IdempotentAppointment(context.Background(), e.biz, "key-1"); err != nil || id != first.Appointment.ID {
		t.Fatalf("stored key: %q, %v", id, err)
	}
}

func TestPostgresElapsedConfirmedPagesByKey(t *testing.T) {
	e := newEnv(t)
	for _, m := range []int{9 * 60, 10 * 60, 11 * 60} {
		if _, err := e.svc.Create(e.ctx, e.booking(m, "")); err != nil {
			t.Fatalf("create at %d: %v", m, err)
		}
	}
	cutoff := mondayDate.Add(24 * time.Hour)
	page, err := e.store.ElapsedConfirmed(context.Background(), e.biz, cutoff, model.EndKey{}, 2)
	if err != nil || len(page) != 2 {
		t.Fatalf("first page: %+v, %v", page, err)
	}
	rest, err := e.store.ElapsedConfirmed(context.Background(), e.biz, cutoff, page[1], 2)
	if err != nil || len(rest) != 1 {
		t.Fatalf("second page: %+v, %v", rest, err)
	}
	if !page[1].Less(rest[0]) {
		t.Fatalf("pages out of order: %+v then %+v", page, rest)
	}
}
