package model

import "time"

// AppointmentFilter narrows a tenant's appointment listing. Zero fields match everything;
// From and To bound the start time as [From, To).
type AppointmentFilter struct {
	BusinessID string
	Statuses   []Status
	StaffID    string
	ClientID   string
	From       time.Time
	To         time.Time
	Limit      int
}

func (f AppointmentFilter) Matches(a Appointment) bool {
	if a.BusinessID != f.BusinessID {
		return false
	}
	if f.StaffID != "" && a.StaffID != f.StaffID {
		return false
	}
	if f.ClientID != "" && a.ClientID != f.ClientID {
		return false
	}
	if !f.From.IsZero() && a.StartTime.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !a.StartTime.Before(f.To) {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if a.Status == s {
			return true
		}
	}
	return false
}

// EndKey orders appointments by end time then id, for keyset paging. The zero value sorts first.
type EndKey struct {
	EndTime time.Time
	ID      string
}

func (k EndKey) Less(o EndKey) bool {
	if !k.EndTime.Equal(o.EndTime) {
		return k.EndTime.Before(o.EndTime)
	}
	return k.ID < o.ID
}
