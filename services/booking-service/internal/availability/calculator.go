package availability

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

// BookableRoles are the staff roles that take appointments.
var BookableRoles = []string{model.RoleStaff, model.RoleTenantAdmin}

type StaffDirectory interface {
	// ActiveStaff returns active staff with one of roles ordered by created_at, id.
	ActiveStaff(ctx context.Context, businessID string, roles []string) ([]model.Staff, error)
}

type Catalog interface {
	ServicesByIDs(ctx context.Context, businessID string, ids []string) ([]model.Service, error)
}

type SettingsProvider interface {
	Settings(ctx context.Context, businessID string) (model.Settings, error)
}

type Slot struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Available bool      `json:"available"`
}

type StaffSlots struct {
	StaffID   string `json:"staff_id"`
	StaffName string `json:"staff_name"`
	Slots     []Slot `json:"slots"`
}

type Calculator struct {
	hours     HoursResolver
	conflicts ConflictChecker
	staff     StaffDirectory
	catalog   Catalog
	settings  SettingsProvider
	now       func() time.Time
	workers   int
}

type CalculatorOption func(*Calculator)

func WithClock(now func() time.Time) CalculatorOption {
	return func(c *Calculator) { c.now = now }
}

// WithWorkers bounds how many staff schedules are computed concurrently.
func WithWorkers(n int) CalculatorOption {
	return func(c *Calculator) {
		if n > 0 {
			c.workers = n
		}
	}
}

func NewCalculator(hours HoursStore, occupancy OccupancyStore, staff StaffDirectory, catalog Catalog, settings SettingsProvider, opts ...CalculatorOption) *Calculator {
	c := &Calculator{
		hours:     NewHoursResolver(hours),
		conflicts: NewConflictChecker(occupancy),
		staff:     staff,
		catalog:   catalog,
		settings:  settings,
		now:       time.Now,
		workers:   4,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithOccupancy returns a copy reading bookings and blocks from store, typically a
// transaction-bound store holding the staff-day lock.
func (c *Calculator) WithOccupancy(store OccupancyStore) *Calculator {
	cp := *c
	cp.conflicts = NewConflictChecker(store)
	return &cp
}

func (c *Calculator) Settings(ctx context.Context, businessID string) (model.Settings, error) {
	return c.settings.Settings(ctx, businessID)
}

// Services loads ids in request order, failing with NotFound if any is missing.
func (c *Calculator) Services(ctx context.Context, businessID string, ids []string) ([]model.Service, error) {
	if len(ids) == 0 {
		return nil, apperr.New(apperr.KindInvalidRequest, "at least one service is required")
	}
	found, err := c.catalog.ServicesByIDs(ctx, businessID, ids)
	if err != nil {
		return nil, fmt.Errorf("load services: %w", err)
	}
	byID := make(map[string]model.Service, len(found))
	for _, s := range found {
		byID[s.ID] = s
	}
	out := make([]model.Service, 0, len(ids))
	for _, id := range ids {
		s, ok := byID[id]
		if !ok {
			return nil, apperr.New(apperr.KindNotFound, "service %s not found", id)
		}
		out = append(out, s)
	}
	return out, nil
}

// Staff returns the bookable staff members in stable order, or only staffID when set.
func (c *Calculator) Staff(ctx context.Context, businessID, staffID string) ([]model.Staff, error) {
	all, err := c.staff.ActiveStaff(ctx, businessID, BookableRoles)
	if err != nil {
		return nil, fmt.Errorf("load staff: %w", err)
	}
	if staffID == "" {
		return all, nil
	}
	for _, s := range all {
		if s.ID == staffID {
			return []model.Staff{s}, nil
		}
	}
	return nil, apperr.New(apperr.KindNotFound, "staff %s not found or inactive", staffID)
}

// AvailableSlots lists every staff member's candidate slots for the services on date. Staff
// without working hours that day are omitted. A slot is available when its buffered window
// is free and it has not already started.
func (c *Calculator) AvailableSlots(ctx context.Context, businessID string, date time.Time, serviceIDs []string, staffID string) ([]StaffSlots, error) {
	settings, err := c.settings.Settings(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	services, err := c.Services(ctx, businessID, serviceIDs)
	if err != nil {
		return nil, err
	}
	staff, err := c.Staff(ctx, businessID, staffID)
	if err != nil {
		return nil, err
	}

	items := make([]model.LineItem, len(services))
	for i, s := range services {
		items[i] = s.Snapshot(i)
	}
	dur, _, buf := model.Totals(items)
	duration := time.Duration(dur) * time.Minute
	buffer := time.Duration(buf) * time.Minute

	day := SameDay(date, settings.Location())
	now := c.now()
	step := settings.Step()

	results := make([]*StaffSlots, len(staff))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, member := range staff {
		g.Go(func() error {
			open, ok, err := c.hours.Resolve(gctx, businessID, member.ID, day)
			if err != nil {
				return fmt.Errorf("resolve hours for %s: %w", member.ID, err)
			}
			if !ok {
				return nil
			}
			span := Interval{Start: open.Open.Start, End: open.Open.End.Add(buffer)}
			occ, err := c.conflicts.Load(gctx, businessID, member.ID, day, span, "")
			if err != nil {
				return fmt.Errorf("load occupancy for %s: %w", member.ID, err)
			}
			out := &StaffSlots{StaffID: member.ID, StaffName: member.Name, Slots: []Slot{}}
			for s := range Slots(open.Open, open.Break, duration, step) {
				buffered := Interval{Start: s.Start, End: s.End.Add(buffer)}
				out.Slots = append(out.Slots, Slot{
					Start:     s.Start,
					End:       s.End,
					Available: !s.Start.Before(now) && !occ.Conflicts(buffered),
				})
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]StaffSlots, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out, nil
}

// FindAvailableStaff returns the first staff member, in stable order, who can take the
// booking. ok is false when nobody can, which callers treat as no capacity.
func (c *Calculator) FindAvailableStaff(ctx context.Context, businessID string, day time.Time, service, buffered Interval) (string, bool, error) {
	staff, err := c.Staff(ctx, businessID, "")
	if err != nil {
		return "", false, err
	}
	for _, member := range staff {
		err := c.CheckBookable(ctx, businessID, member.ID, day, service, buffered, "")
		if err == nil {
			return member.ID, true, nil
		}
		if !apperr.Is(err, apperr.KindConflict) {
			return "", false, err
		}
	}
	return "", false, nil
}

// CheckBookable returns a Conflict error naming the first rule the booking breaks: the service
// window must sit inside working hours and outside the break, and the buffered window must not
// touch a block or another active appointment.
func (c *Calculator) CheckBookable(ctx context.Context, businessID, staffID string, day time.Time, service, buffered Interval, excludeID string) error {
	open, ok, err := c.hours.Resolve(ctx, businessID, staffID, day)
	if err != nil {
		return fmt.Errorf("resolve hours: %w", err)
	}
	if !ok || !open.Bookable(service) {
		return apperr.New(apperr.KindConflict, "requested time is outside working hours")
	}
	occ, err := c.conflicts.Load(ctx, businessID, staffID, day, buffered, excludeID)
	if err != nil {
		return fmt.Errorf("load occupancy: %w", err)
	}
	if occ.IsBlocked(buffered) {
		return apperr.New(apperr.KindConflict, "requested time is blocked")
	}
	if occ.IsBusy(buffered) {
		return apperr.New(apperr.KindConflict, "requested time overlaps an existing appointment")
	}
	return nil
}
