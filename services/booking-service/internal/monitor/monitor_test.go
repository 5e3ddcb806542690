package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/lifecycle"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/memstore"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/notify"
)

const biz = "biz-1"

type recorder struct {
	mu  sync.Mutex
	got []notify.Notification
}

func (r *recorder) Notify(_ context.Context, n notify.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

var now = time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

func seed(st *memstore.Store, id, clientID string, start time.Time, status model.Status) {
	st.PutAppointment(model.Appointment{
		ID:            id,
		BusinessID:    biz,
		StaffID:       "staff-a",
		ClientID:      clientID,
		CustomerEmail: "cleo@example.com",
		StartTime:     start,
		EndTime:       start.Add(30 * time.Minute),
		BufferedEnd:   start.Add(30 * time.Minute),
		Status:        status,
	})
}

func newService(st *memstore.Store, notes lifecycle.Notifier) *lifecycle.Service {
	clock := func() time.Time { return now }
	calc := availability.NewCalculator(st, st, st, st, st, availability.WithClock(clock))
	return lifecycle.NewService(st, calc, notes, slog.New(slog.DiscardHandler), lifecycle.WithClock(clock))
}

type flakyMarker struct {
	next   NoShowMarker
	failID string
}

func (m flakyMarker) MarkNoShow(ctx context.Context, id string) (model.Appointment, error) {
	if id == m.failID {
		return model.Appointment{}, errors.New("row locked")
	}
	return m.next.MarkNoShow(ctx, id)
}

func TestNoShowMonitorMarksElapsedAndIsolatesFailures(t *testing.T) {
	st := memstore.New()
	st.PutClient(model.Client{ID: "client-1", BusinessID: biz, Email: "cleo@example.com", NoShowCount: 2})
	seed(st, "late", "client-1", now.Add(-3*time.Hour), model.StatusConfirmed)
	seed(st, "broken", "client-1", now.Add(-4*time.Hour), model.StatusConfirmed)
	seed(st, "grace", "client-1", now.Add(-80*time.Minute), model.StatusConfirmed)
	seed(st, "pending", "client-1", now.Add(-5*time.Hour), model.StatusPending)

	notes := &recorder{}
	m := NewNoShowMonitor(st, flakyMarker{next: newService(st, notes), failID: "broken"}, slog.New(slog.DiscardHandler))
	m.now = func() time.Time { return now }

	rep, err := m.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Processed != 2 || rep.Succeeded != 1 || len(rep.Failures) != 1 || rep.Failures[0].AppointmentID != "broken" {
		t.Fatalf("unexpected report %+v", rep)
	}

	got, _ := st.Appointment(context.Background(), biz, "late")
	if got.Status != model.StatusNoShow {
		t.Fatalf("expected late to be NO_SHOW, got %s", got.Status)
	}
	for _, id := range []string{"grace", "pending"} {
		a, _ := st.Appointment(context.Background(), biz, id)
		if a.Status == model.StatusNoShow {
			t.Fatalf("%s must not be marked", id)
		}
	}
	if c := st.ClientSnapshot("client-1"); c.NoShowCount != 3 || !c.Blacklisted {
		t.Fatalf("expected escalation to blacklist, got %+v", c)
	}
	if notes.count() != 1 {
		t.Fatalf("expected one blacklist notice, got %d", notes.count())
	}

	rep, _ = m.RunOnce(context.Background())
	if rep.Succeeded != 0 {
		t.Fatalf("second sweep must not re-mark appointments, got %+v", rep)
	}
}

type failingMarker struct {
	next NoShowMarker
	fail map[string]bool
}

func (m failingMarker) MarkNoShow(ctx context.Context, id string) (model.Appointment, error) {
	if m.fail[id] {
		return model.Appointment{}, errors.New("constraint violation")
	}
	return m.next.MarkNoShow(ctx, id)
}

func TestNoShowMonitorPagesPastPermanentFailures(t *testing.T) {
	st := memstore.New()
	st.PutClient(model.Client{ID: "client-1", BusinessID: biz, Email: "cleo@example.com"})
	// The oldest rows fill more than one page and never succeed.
	fail := map[string]bool{}
	for i, id := range []string{"bad-1", "bad-2", "bad-3"} {
		seed(st, id, "client-1", now.Add(-time.Duration(10-i)*time.Hour), model.StatusConfirmed)
		fail[id] = true
	}
	seed(st, "ok-1", "client-1", now.Add(-5*time.Hour), model.StatusConfirmed)
	seed(st, "ok-2", "client-1", now.Add(-4*time.Hour), model.StatusConfirmed)

	m := NewNoShowMonitor(st, failingMarker{next: newService(st, &recorder{}), fail: fail}, slog.New(slog.DiscardHandler))
	m.now = func() time.Time { return now }
	m.batch = 2

	for run := 0; run < 2; run++ {
		rep, err := m.RunOnce(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(rep.Failures) != 3 {
			t.Fatalf("run %d: expected 3 failures, got %+v", run, rep)
		}
	}
	for _, id := range []string{"ok-1", "ok-2"} {
		if a, _ := st.Appointment(context.Background(), biz, id); a.Status != model.StatusNoShow {
			t.Fatalf("%s starved behind failing rows: %s", id, a.Status)
		}
	}
}

func TestReminderMonitorFiresOncePerWindow(t *testing.T) {
	st := memstore.New()
	seed(st, "tomorrow", "", now.Add(24*time.Hour+3*time.Minute), model.StatusConfirmed)
	seed(st, "soon", "", now.Add(time.Hour-4*time.Minute), model.StatusPending)
	seed(st, "later", "", now.Add(2*time.Hour), model.StatusConfirmed)
	seed(st, "cancelled", "", now.Add(time.Hour), model.StatusCancelled)

	notes := &recorder{}
	m := NewReminderMonitor(st, st, notes, slog.New(slog.DiscardHandler))
	m.now = func() time.Time { return now }

	rep, err := m.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Succeeded != 2 || notes.count() != 2 {
		t.Fatalf("expected 2 reminders, got report %+v and %d notices", rep, notes.count())
	}
	windows := map[string]string{}
	for _, n := range notes.got {
		if n.Kind != notify.KindReminder {
			t.Fatalf("unexpected kind %s", n.Kind)
		}
		windows[n.AppointmentID] = n.Variables["window"]
	}
	if windows["tomorrow"] != "24h" || windows["soon"] != "1h" {
		t.Fatalf("unexpected windows %v", windows)
	}

	m.now = func() time.Time { return now.Add(time.Minute) }
	rep, err = m.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Succeeded != 0 || rep.Skipped != 2 || notes.count() != 2 {
		t.Fatalf("reminders must fire at most once, got report %+v and %d notices", rep, notes.count())
	}
}
