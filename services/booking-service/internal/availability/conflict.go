package availability

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

// OccupancyStore reads what already holds a staff member's time.
type OccupancyStore interface {
	// ActiveIntervals returns [start, buffered_end) of every appointment for the staff member
	// whose status still occupies time and which overlaps span. excludeID is skipped.
	ActiveIntervals(ctx context.Context, businessID, staffID string, span Interval, excludeID string) ([]Interval, error)
	// BlockedSlots returns the staff member's blocks and the facility-wide blocks for day.
	BlockedSlots(ctx context.Context, businessID, staffID string, day time.Time) ([]model.BlockedSlot, error)
}

// Occupancy is a snapshot of one staff member's bookings and blocks, loaded once and
// tested against many windows.
type Occupancy struct {
	Busy    []Interval
	Blocked []Interval
}

func (o Occupancy) IsBlocked(w Interval) bool { return overlapsAny(w, o.Blocked) }

func (o Occupancy) IsBusy(w Interval) bool { return overlapsAny(w, o.Busy) }

func (o Occupancy) Conflicts(w Interval) bool { return o.IsBusy(w) || o.IsBlocked(w) }

func overlapsAny(w Interval, spans []Interval) bool {
	for _, s := range spans {
		if w.Overlaps(s) {
			return true
		}
	}
	return false
}

type ConflictChecker struct {
	store OccupancyStore
}

func NewConflictChecker(store OccupancyStore) ConflictChecker {
	return ConflictChecker{store: store}
}

// Load reads the occupancy overlapping span on day. day must be local midnight in the
// tenant location; blocked minutes are materialised on it.
func (c ConflictChecker) Load(ctx context.Context, businessID, staffID string, day time.Time, span Interval, excludeID string) (Occupancy, error) {
	busy, err := c.store.ActiveIntervals(ctx, businessID, staffID, span, excludeID)
	if err != nil {
		return Occupancy{}, err
	}
	blocks, err := c.store.BlockedSlots(ctx, businessID, staffID, day)
	if err != nil {
		return Occupancy{}, err
	}
	occ := Occupancy{Busy: busy, Blocked: make([]Interval, 0, len(blocks))}
	for _, b := range blocks {
		start, end := b.Range.On(day, day.Location())
		occ.Blocked = append(occ.Blocked, Interval{Start: start, End: end})
	}
	return occ, nil
}

// HasConflict reports whether window overlaps an active appointment or a block.
func (c ConflictChecker) HasConflict(ctx context.Context, businessID, staffID string, day time.Time, window Interval, excludeID string) (bool, error) {
	occ, err := c.Load(ctx, businessID, staffID, day, window, excludeID)
	if err != nil {
		return false, err
	}
	return occ.Conflicts(window), nil
}
