package availability_test

import (
	"context"
	"testing"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/memstore"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

const biz = "biz-1"

// monday is 2026-03-02.
func monday(h, m int) time.Time {
	return time.Date(2026, 3, 2, h, m, 0, 0, time.UTC)
}

type fixture struct {
	store *memstore.Store
	calc  *availability.Calculator
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	st := memstore.New()
	st.PutSettings(model.Settings{BusinessID: biz, Timezone: "UTC", SlotStepMinutes: 30, CancellationPolicyHours: 24})
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	st.PutStaff(model.Staff{ID: "staff-b", BusinessID: biz, Name: "Bea", Role: model.RoleStaff, Active: true, CreatedAt: created.Add(time.Minute)})
	st.PutStaff(model.Staff{ID: "staff-a", BusinessID: biz, Name: "Ann", Role: model.RoleTenantAdmin, Active: true, CreatedAt: created})
	st.PutStaff(model.Staff{ID: "staff-off", BusinessID: biz, Name: "Off", Role: model.RoleStaff, Active: false, CreatedAt: created})
	st.PutStaff(model.Staff{ID: "reception", BusinessID: biz, Name: "Desk", Role: "RECEPTION", Active: true, CreatedAt: created})
	st.PutService(model.Service{ID: "cut", BusinessID: biz, Name: "Cut", DurationMinutes: 30, PriceCents: 2500})
	st.PutService(model.Service{ID: "color", BusinessID: biz, Name: "Color", DurationMinutes: 30, BufferMinutes: 15, PriceCents: 4000})
	st.PutHours(model.WorkingHours{
		BusinessID: biz,
		Weekday:    time.Monday,
		IsOpen:     true,
		Open:       model.MinuteRange{Start: 9 * 60, End: 18 * 60},
		Break:      &model.MinuteRange{Start: 12 * 60, End: 13 * 60},
	})
	calc := availability.NewCalculator(st, st, st, st, st, availability.WithClock(func() time.Time { return now }))
	return &fixture{store: st, calc: calc}
}

func (f *fixture) book(staffID string, start, bufferedEnd time.Time, status model.Status) {
	f.store.PutAppointment(model.Appointment{
		BusinessID:  biz,
		StaffID:     staffID,
		StartTime:   start,
		EndTime:     bufferedEnd,
		BufferedEnd: bufferedEnd,
		Status:      status,
	})
}

func slotAt(t *testing.T, slots []availability.Slot, start time.Time) availability.Slot {
	t.Helper()
	for _, s := range slots {
		if s.Start.Equal(start) {
			return s
		}
	}
	t.Fatalf("no slot at %s", start.Format("15:04"))
	return availability.Slot{}
}

func TestAvailableSlotsAllStaffInStableOrder(t *testing.T) {
	f := newFixture(t, monday(0, 0).AddDate(0, 0, -1))

	got, err := f.calc.AvailableSlots(context.Background(), biz, monday(0, 0), []string{"cut"}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].StaffID != "staff-a" || got[1].StaffID != "staff-b" {
		t.Fatalf("expected staff-a then staff-b, got %+v", got)
	}
	for _, ss := range got {
		if len(ss.Slots) != 16 {
			t.Fatalf("%s: expected 16 slots, got %d", ss.StaffID, len(ss.Slots))
		}
		for _, s := range ss.Slots {
			if !s.Available {
				t.Fatalf("%s: slot %s unexpectedly unavailable", ss.StaffID, s.Start.Format("15:04"))
			}
		}
	}
}

func TestAvailableSlotsStaffOverrideAndOmission(t *testing.T) {
	f := newFixture(t, monday(0, 0).AddDate(0, 0, -1))
	f.store.PutHours(model.WorkingHours{BusinessID: biz, StaffID: "staff-b", Weekday: time.Monday, IsOpen: false})
	f.store.PutHours(model.WorkingHours{
		BusinessID: biz, StaffID: "staff-a", Weekday: time.Monday, IsOpen: true,
		Open: model.MinuteRange{Start: 14 * 60, End: 16 * 60},
	})

	got, err := f.calc.AvailableSlots(context.Background(), biz, monday(0, 0), []string{"cut"}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].StaffID != "staff-a" {
		t.Fatalf("expected only staff-a, got %+v", got)
	}
	if n := len(got[0].Slots); n != 4 {
		t.Fatalf("expected 4 slots from staff hours 14-16, got %d", n)
	}
}

func TestAvailableSlotsConflictsUseHalfOpenIntervals(t *testing.T) {
	f := newFixture(t, monday(0, 0).AddDate(0, 0, -1))
	f.book("staff-a", monday(10, 0), monday(10, 30), model.StatusConfirmed)
	f.book("staff-a", monday(14, 0), monday(14, 30), model.StatusCancelled)

	got, err := f.calc.AvailableSlots(context.Background(), biz, monday(0, 0), []string{"cut"}, "staff-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	slots := got[0].Slots
	if slotAt(t, slots, monday(10, 0)).Available {
		t.Fatalf("10:00 should be taken")
	}
	if !slotAt(t, slots, monday(9, 30)).Available || !slotAt(t, slots, monday(10, 30)).Available {
		t.Fatalf("slots touching the booking must stay available")
	}
	if !slotAt(t, slots, monday(14, 0)).Available {
		t.Fatalf("cancelled appointments must not occupy time")
	}
}

func TestAvailableSlotsBufferKeepsNextBookingClear(t *testing.T) {
	f := newFixture(t, monday(0, 0).AddDate(0, 0, -1))
	f.book("staff-a", monday(10, 30), monday(11, 0), model.StatusPending)

	got, err := f.calc.AvailableSlots(context.Background(), biz, monday(0, 0), []string{"color"}, "staff-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	slots := got[0].Slots
	s := slotAt(t, slots, monday(10, 0))
	if s.Available {
		t.Fatalf("10:00 color plus 15m buffer overlaps 10:30 booking")
	}
	if !s.End.Equal(monday(10, 30)) {
		t.Fatalf("slot should report the service-only end, got %s", s.End.Format("15:04"))
	}
	if !slotAt(t, slots, monday(9, 30)).Available {
		t.Fatalf("09:30 buffered to 10:15 should be available")
	}
}

func TestAvailableSlotsFacilityBlockAndPast(t *testing.T) {
	f := newFixture(t, monday(10, 10))
	if _, err := f.store.CreateBlockedSlot(context.Background(), model.BlockedSlot{
		BusinessID: biz, Date: monday(0, 0), Range: model.MinuteRange{Start: 15 * 60, End: 16 * 60}, Reason: "training",
	}); err != nil {
		t.Fatalf("block: %v", err)
	}

	got, err := f.calc.AvailableSlots(context.Background(), biz, monday(0, 0), []string{"cut"}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, ss := range got {
		if slotAt(t, ss.Slots, monday(15, 0)).Available || slotAt(t, ss.Slots, monday(15, 30)).Available {
			t.Fatalf("%s: facility block must cover every staff member", ss.StaffID)
		}
		if !slotAt(t, ss.Slots, monday(16, 0)).Available {
			t.Fatalf("%s: 16:00 touches the block end and should be free", ss.StaffID)
		}
		if slotAt(t, ss.Slots, monday(10, 0)).Available {
			t.Fatalf("%s: 10:00 already started", ss.StaffID)
		}
		if !slotAt(t, ss.Slots, monday(10, 30)).Available {
			t.Fatalf("%s: 10:30 is in the future", ss.StaffID)
		}
	}
}

func TestAvailableSlotsUnknownInputs(t *testing.T) {
	f := newFixture(t, monday(0, 0))
	_, err := f.calc.AvailableSlots(context.Background(), biz, monday(0, 0), []string{"cut", "nope"}, "")
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected NotFound for missing service, got %v", err)
	}
	_, err = f.calc.AvailableSlots(context.Background(), biz, monday(0, 0), []string{"cut"}, "staff-off")
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected NotFound for inactive staff, got %v", err)
	}
}

func TestFindAvailableStaff(t *testing.T) {
	f := newFixture(t, monday(0, 0))
	ctx := context.Background()
	svc := availability.Interval{Start: monday(10, 0), End: monday(10, 30)}

	id, ok, err := f.calc.FindAvailableStaff(ctx, biz, monday(0, 0), svc, svc)
	if err != nil || !ok || id != "staff-a" {
		t.Fatalf("expected staff-a, got %q ok=%v err=%v", id, ok, err)
	}

	f.book("staff-a", monday(10, 0), monday(10, 30), model.StatusConfirmed)
	id, ok, err = f.calc.FindAvailableStaff(ctx, biz, monday(0, 0), svc, svc)
	if err != nil || !ok || id != "staff-b" {
		t.Fatalf("expected staff-b, got %q ok=%v err=%v", id, ok, err)
	}

	f.book("staff-b", monday(9, 45), monday(10, 15), model.StatusConfirmed)
	_, ok, err = f.calc.FindAvailableStaff(ctx, biz, monday(0, 0), svc, svc)
	if err != nil || ok {
		t.Fatalf("expected no capacity, got ok=%v err=%v", ok, err)
	}
}

func TestCheckBookableRules(t *testing.T) {
	f := newFixture(t, monday(0, 0))
	ctx := context.Background()
	iv := func(h1, m1, h2, m2 int) availability.Interval {
		return availability.Interval{Start: monday(h1, m1), End: monday(h2, m2)}
	}
	cases := []struct {
		name    string
		service availability.Interval
	}{
		{"before opening", iv(8, 30, 9, 30)},
		{"past closing", iv(17, 45, 18, 15)},
		{"inside break", iv(11, 45, 12, 15)},
	}
	for _, tc := range cases {
		err := f.calc.CheckBookable(ctx, biz, "staff-a", monday(0, 0), tc.service, tc.service, "")
		if !apperr.Is(err, apperr.KindConflict) {
			t.Fatalf("%s: expected Conflict, got %v", tc.name, err)
		}
	}
	if err := f.calc.CheckBookable(ctx, biz, "staff-a", monday(0, 0), iv(17, 30, 18, 0), iv(17, 30, 18, 0), ""); err != nil {
		t.Fatalf("slot ending at closing time should be bookable: %v", err)
	}
	// Sunday has no hours at all.
	sunday := monday(0, 0).AddDate(0, 0, -1)
	sun := availability.Interval{Start: sunday.Add(10 * time.Hour), End: sunday.Add(10*time.Hour + 30*time.Minute)}
	if err := f.calc.CheckBookable(ctx, biz, "staff-a", sunday, sun, sun, ""); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected Conflict on a closed day, got %v", err)
	}
}
