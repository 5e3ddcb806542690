package model

import (
	"sync"
	"time"
)

const (
	RoleStaff       = "STAFF"
	RoleTenantAdmin = "TENANT_ADMIN"
)

// BlacklistThreshold is the no-show count at which a client is blacklisted.
const BlacklistThreshold = 3

type Client struct {
	ID              string
	BusinessID      string
	Name            string
	Email           string
	Phone           string
	NoShowCount     int
	Blacklisted     bool
	BlacklistReason string
	BlacklistedAt   *time.Time
}

type Staff struct {
	ID         string
	BusinessID string
	Name       string
	Email      string
	Role       string
	Active     bool
	CreatedAt  time.Time
}

type Service struct {
	ID              string
	BusinessID      string
	Name            string
	DurationMinutes int
	BufferMinutes   int
	PriceCents      int64
}

func (s Service) Snapshot(position int) LineItem {
	return LineItem{
		ServiceID:       s.ID,
		Name:            s.Name,
		PriceCents:      s.PriceCents,
		DurationMinutes: s.DurationMinutes,
		BufferMinutes:   s.BufferMinutes,
		Position:        position,
	}
}

type Settings struct {
	BusinessID              string
	BusinessName            string
	Timezone                string
	CancellationPolicyHours int
	SlotStepMinutes         int
}

// locations caches zone lookups by name. Unknown names are cached as UTC.
var locations sync.Map

// Location falls back to UTC for an empty or unknown zone name.
func (s Settings) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	if loc, ok := locations.Load(s.Timezone); ok {
		return loc.(*time.Location)
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		loc = time.UTC
	}
	actual, _ := locations.LoadOrStore(s.Timezone, loc)
	return actual.(*time.Location)
}

func (s Settings) Step() time.Duration {
	if s.SlotStepMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(s.SlotStepMinutes) * time.Minute
}

func DefaultSettings(businessID string) Settings {
	return Settings{
		BusinessID:              businessID,
		Timezone:                "UTC",
		CancellationPolicyHours: 24,
		SlotStepMinutes:         30,
	}
}
