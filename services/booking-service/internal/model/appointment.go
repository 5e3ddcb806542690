package model

import "time"

// LineItem is a snapshot of a booked service. It is never re-read from the catalog.
type LineItem struct {
	ServiceID       string
	Name            string
	PriceCents      int64
	DurationMinutes int
	BufferMinutes   int
	Position        int
}

type Appointment struct {
	ID              string
	BusinessID      string
	StaffID         string
	ClientID        string
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	Items           []LineItem
	Date            time.Time // tenant-local midnight of the booked day
	StartTime       time.Time
	EndTime         time.Time
	BufferedEnd     time.Time
	DurationMinutes int
	PriceCents      int64
	Status          Status
	CancelledAt     *time.Time
	CancelReason    string
	RecurringGroup  string
	RecurringRule   string
	Notes           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Totals sums durations and prices of the items and returns the trailing buffer of the
// last item, which is the only buffer that affects occupancy.
func Totals(items []LineItem) (durationMinutes int, priceCents int64, bufferMinutes int) {
	for _, it := range items {
		durationMinutes += it.DurationMinutes
		priceCents += it.PriceCents
	}
	if len(items) > 0 {
		bufferMinutes = items[len(items)-1].BufferMinutes
	}
	return durationMinutes, priceCents, bufferMinutes
}

// Window returns the visible end and the occupancy end for items starting at start.
func Window(start time.Time, items []LineItem) (end, bufferedEnd time.Time) {
	dur, _, buf := Totals(items)
	end = start.Add(time.Duration(dur) * time.Minute)
	return end, end.Add(time.Duration(buf) * time.Minute)
}

// Recipient is the email (or phone when email is empty) notifications go to.
func (a Appointment) Recipient() string {
	if a.CustomerEmail != "" {
		return a.CustomerEmail
	}
	return a.CustomerPhone
}
