// Package memstore is an in-memory implementation of the booking storage contracts. It backs
// unit tests and keeps the same tenancy and occupancy rules as the Postgres store.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/lifecycle"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/outbox"
)

type hoursKey struct {
	biz     string
	staff   string
	weekday time.Weekday
}

type state struct {
	settings  map[string]model.Settings
	staff     map[string]model.Staff
	services  map[string]model.Service
	clients   map[string]model.Client
	hours     map[hoursKey]model.WorkingHours
	blocks    map[string]model.BlockedSlot
	appts     map[string]model.Appointment
	idem      map[string]string
	reminders map[string]bool
	events    []outbox.Event
}

func newState() *state {
	return &state{
		settings:  map[string]model.Settings{},
		staff:     map[string]model.Staff{},
		services:  map[string]model.Service{},
		clients:   map[string]model.Client{},
		hours:     map[hoursKey]model.WorkingHours{},
		blocks:    map[string]model.BlockedSlot{},
		appts:     map[string]model.Appointment{},
		idem:      map[string]string{},
		reminders: map[string]bool{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.settings {
		c.settings[k] = v
	}
	for k, v := range s.staff {
		c.staff[k] = v
	}
	for k, v := range s.services {
		c.services[k] = v
	}
	for k, v := range s.clients {
		c.clients[k] = v
	}
	for k, v := range s.hours {
		c.hours[k] = v
	}
	for k, v := range s.blocks {
		c.blocks[k] = v
	}
	for k, v := range s.appts {
		c.appts[k] = v
	}
	for k, v := range s.idem {
		c.idem[k] = v
	}
	for k, v := range s.reminders {
		c.reminders[k] = v
	}
	c.events = append([]outbox.Event(nil), s.events...)
	return c
}

// Store serialises transactions with txMu; mu guards the committed state for reads.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	st   *state
	now  func() time.Time
}

func New() *Store {
	return &Store{st: newState(), now: time.Now}
}

func (s *Store) view(fn func(st *state)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.st)
}

// mutate writes outside a transaction. It takes txMu so a running transaction cannot
// commit over the change.
func (s *Store) mutate(fn func(st *state)) {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.st)
}

// InTx runs fn against a private copy that replaces the committed state only when fn succeeds.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx lifecycle.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	work := s.st.clone()
	s.mu.RUnlock()

	if err := fn(ctx, &Tx{st: work, now: s.now}); err != nil {
		return err
	}
	s.mu.Lock()
	s.st = work
	s.mu.Unlock()
	return nil
}

// Seeding.

func (s *Store) PutSettings(v model.Settings) { s.mutate(func(st *state) { st.settings[v.BusinessID] = v }) }

func (s *Store) PutStaff(v model.Staff) { s.mutate(func(st *state) { st.staff[v.ID] = v }) }

func (s *Store) PutService(v model.Service) { s.mutate(func(st *state) { st.services[v.ID] = v }) }

func (s *Store) PutClient(v model.Client) { s.mutate(func(st *state) { st.clients[v.ID] = v }) }

func (s *Store) PutHours(v model.WorkingHours) {
	s.mutate(func(st *state) { st.hours[hoursKey{v.BusinessID, v.StaffID, v.Weekday}] = v })
}

func (s *Store) PutAppointment(v model.Appointment) {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	s.mutate(func(st *state) { st.appts[v.ID] = v })
}

func (s *Store) Events() []outbox.Event {
	var out []outbox.Event
	s.view(func(st *state) { out = append(out, st.events...) })
	return out
}

// ClientSnapshot returns the committed client record.
func (s *Store) ClientSnapshot(id string) model.Client {
	var c model.Client
	s.view(func(st *state) { c = st.clients[id] })
	return c
}

// Catalog, directory and settings.

func (s *Store) Settings(_ context.Context, businessID string) (model.Settings, error) {
	v, ok := model.Settings{}, false
	s.view(func(st *state) { v, ok = st.settings[businessID] })
	if ok {
		return v, nil
	}
	return model.DefaultSettings(businessID), nil
}

func (s *Store) SaveSettings(_ context.Context, v model.Settings) error {
	s.PutSettings(v)
	return nil
}

func (s *Store) ActiveStaff(_ context.Context, businessID string, roles []string) ([]model.Staff, error) {
	var out []model.Staff
	s.view(func(st *state) {
		for _, m := range st.staff {
			if m.BusinessID == businessID && m.Active && hasRole(roles, m.Role) {
				out = append(out, m)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func hasRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func (s *Store) ServicesByIDs(_ context.Context, businessID string, ids []string) ([]model.Service, error) {
	var out []model.Service
	s.view(func(st *state) {
		for _, id := range ids {
			if v, ok := st.services[id]; ok && v.BusinessID == businessID {
				out = append(out, v)
			}
		}
	})
	return out, nil
}

func (s *Store) Client(_ context.Context, businessID, id string) (model.Client, bool, error) {
	var (
		c  model.Client
		ok bool
	)
	s.view(func(st *state) { c, ok, _ = clientByID(st, businessID, id) })
	return c, ok, nil
}

func (s *Store) ClientByEmail(_ context.Context, businessID, email string) (model.Client, bool, error) {
	var (
		c  model.Client
		ok bool
	)
	s.view(func(st *state) { c, ok, _ = clientByEmail(st, businessID, email) })
	return c, ok, nil
}

func (s *Store) IdempotentAppointment(_ context.Context, businessID, key string) (string, error) {
	var id string
	s.view(func(st *state) { id = st.idem[businessID+"|"+key] })
	return id, nil
}

func (s *Store) Appointment(_ context.Context, businessID, id string) (model.Appointment, error) {
	var (
		a   model.Appointment
		err error
	)
	s.view(func(st *state) { a, err = appointment(st, businessID, id) })
	return a, err
}

func clientByID(st *state, biz, id string) (model.Client, bool, error) {
	c, ok := st.clients[id]
	if !ok || c.BusinessID != biz {
		return model.Client{}, false, nil
	}
	return c, true, nil
}

func clientByEmail(st *state, biz, email string) (model.Client, bool, error) {
	for _, c := range st.clients {
		if c.BusinessID == biz && strings.EqualFold(c.Email, email) {
			return c, true, nil
		}
	}
	return model.Client{}, false, nil
}

func appointment(st *state, biz, id string) (model.Appointment, error) {
	a, ok := st.appts[id]
	if !ok || a.BusinessID != biz {
		return model.Appointment{}, apperr.New(apperr.KindNotFound, "appointment %s not found", id)
	}
	return a, nil
}

// Schedule.

func (s *Store) WorkingHours(_ context.Context, businessID, staffID string, weekday time.Weekday) (model.WorkingHours, bool, error) {
	var (
		v  model.WorkingHours
		ok bool
	)
	s.view(func(st *state) { v, ok = st.hours[hoursKey{businessID, staffID, weekday}] })
	return v, ok, nil
}

func (s *Store) ReplaceWorkingHours(_ context.Context, businessID, staffID string, week []model.WorkingHours) error {
	s.mutate(func(st *state) {
		for k := range st.hours {
			if k.biz == businessID && k.staff == staffID {
				delete(st.hours, k)
			}
		}
		for _, wh := range week {
			wh.BusinessID, wh.StaffID = businessID, staffID
			st.hours[hoursKey{businessID, staffID, wh.Weekday}] = wh
		}
	})
	return nil
}

func (s *Store) CreateBlockedSlot(_ context.Context, b model.BlockedSlot) (model.BlockedSlot, error) {
	b.ID = uuid.NewString()
	b.CreatedAt = s.now().UTC()
	s.mutate(func(st *state) { st.blocks[b.ID] = b })
	return b, nil
}

func (s *Store) DeleteBlockedSlot(_ context.Context, businessID, id string) error {
	var found bool
	s.mutate(func(st *state) {
		if b, ok := st.blocks[id]; ok && b.BusinessID == businessID {
			delete(st.blocks, id)
			found = true
		}
	})
	if !found {
		return apperr.New(apperr.KindNotFound, "blocked slot %s not found", id)
	}
	return nil
}

func (s *Store) ActiveIntervals(_ context.Context, businessID, staffID string, span availability.Interval, excludeID string) ([]availability.Interval, error) {
	var out []availability.Interval
	s.view(func(st *state) { out = activeIntervals(st, businessID, staffID, span, excludeID) })
	return out, nil
}

func (s *Store) BlockedSlots(_ context.Context, businessID, staffID string, day time.Time) ([]model.BlockedSlot, error) {
	var out []model.BlockedSlot
	s.view(func(st *state) { out = blockedSlots(st, businessID, staffID, day) })
	return out, nil
}

func activeIntervals(st *state, biz, staff string, span availability.Interval, excludeID string) []availability.Interval {
	var out []availability.Interval
	for _, a := range st.appts {
		if a.BusinessID != biz || a.StaffID != staff || a.ID == excludeID || !a.Status.Active() {
			continue
		}
		iv := availability.Interval{Start: a.StartTime, End: a.BufferedEnd}
		if iv.Overlaps(span) {
			out = append(out, iv)
		}
	}
	return out
}

func blockedSlots(st *state, biz, staff string, day time.Time) []model.BlockedSlot {
	y, m, d := day.Date()
	var out []model.BlockedSlot
	for _, b := range st.blocks {
		by, bm, bd := b.Date.Date()
		if b.BusinessID != biz || by != y || bm != m || bd != d {
			continue
		}
		if b.StaffID == "" || b.StaffID == staff {
			out = append(out, b)
		}
	}
	return out
}

// Listing, recurring and monitors.

func (s *Store) ListAppointments(_ context.Context, f model.AppointmentFilter) ([]model.Appointment, error) {
	var out []model.Appointment
	s.view(func(st *state) {
		for _, a := range st.appts {
			if f.Matches(a) {
				out = append(out, a)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) StampRecurring(_ context.Context, businessID string, ids []string, groupID, rule string) error {
	s.mutate(func(st *state) {
		for _, id := range ids {
			if a, ok := st.appts[id]; ok && a.BusinessID == businessID {
				a.RecurringGroup, a.RecurringRule = groupID, rule
				st.appts[id] = a
			}
		}
	})
	return nil
}

func (s *Store) Tenants(context.Context) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	s.view(func(st *state) {
		for _, a := range st.appts {
			if !seen[a.BusinessID] {
				seen[a.BusinessID] = true
				out = append(out, a.BusinessID)
			}
		}
	})
	sort.Strings(out)
	return out, nil
}

func (s *Store) ElapsedConfirmed(_ context.Context, businessID string, cutoff time.Time, after model.EndKey, limit int) ([]model.EndKey, error) {
	var out []model.EndKey
	s.view(func(st *state) {
		for _, a := range st.appts {
			k := model.EndKey{EndTime: a.EndTime, ID: a.ID}
			if a.BusinessID == businessID && a.Status == model.StatusConfirmed && a.EndTime.Before(cutoff) && after.Less(k) {
				out = append(out, k)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) StartingBetween(_ context.Context, businessID string, from, to time.Time) ([]model.Appointment, error) {
	var out []model.Appointment
	s.view(func(st *state) {
		for _, a := range st.appts {
			if a.BusinessID != businessID || (a.Status != model.StatusPending && a.Status != model.StatusConfirmed) {
				continue
			}
			if !a.StartTime.Before(from) && a.StartTime.Before(to) {
				out = append(out, a)
			}
		}
	})
	return out, nil
}

func (s *Store) ClaimReminder(_ context.Context, businessID, appointmentID, window string) (bool, error) {
	key := businessID + "|" + appointmentID + "|" + window
	var claimed bool
	s.mutate(func(st *state) {
		if !st.reminders[key] {
			st.reminders[key] = true
			claimed = true
		}
	})
	return claimed, nil
}

func (s *Store) AppendEvent(_ context.Context, evt outbox.Event) error {
	s.mutate(func(st *state) { st.events = append(st.events, evt) })
	return nil
}
