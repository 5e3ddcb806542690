package availability

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

// HoursStore returns the stored hours for one weekday. An empty staffID reads the
// facility-wide schedule.
type HoursStore interface {
	WorkingHours(ctx context.Context, businessID, staffID string, weekday time.Weekday) (model.WorkingHours, bool, error)
}

type OpenInterval struct {
	Open  Interval
	Break *Interval
}

// Bookable reports whether w fits inside the open interval without touching the break.
func (o OpenInterval) Bookable(w Interval) bool {
	if !o.Open.Contains(w) {
		return false
	}
	return o.Break == nil || !o.Break.Overlaps(w)
}

type HoursResolver struct {
	store HoursStore
}

func NewHoursResolver(store HoursStore) HoursResolver {
	return HoursResolver{store: store}
}

// Resolve prefers the staff member's own hours for the weekday of day and falls back to the
// facility record. day must be local midnight in the tenant location.
func (r HoursResolver) Resolve(ctx context.Context, businessID, staffID string, day time.Time) (OpenInterval, bool, error) {
	wh, ok, err := r.lookup(ctx, businessID, staffID, day.Weekday())
	if err != nil || !ok || !wh.IsOpen || !wh.Open.Valid() {
		return OpenInterval{}, false, err
	}

	loc := day.Location()
	start, end := wh.Open.On(day, loc)
	out := OpenInterval{Open: Interval{Start: start, End: end}}
	if wh.Break != nil && wh.Break.Valid() {
		bs, be := wh.Break.On(day, loc)
		out.Break = &Interval{Start: bs, End: be}
	}
	return out, true, nil
}

func (r HoursResolver) lookup(ctx context.Context, businessID, staffID string, weekday time.Weekday) (model.WorkingHours, bool, error) {
	if staffID != "" {
		wh, ok, err := r.store.WorkingHours(ctx, businessID, staffID, weekday)
		if err != nil || ok {
			return wh, ok, err
		}
	}
	return r.store.WorkingHours(ctx, businessID, "", weekday)
}
