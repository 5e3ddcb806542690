package model

import "time"

// MinuteRange is a [Start, End) span in minutes from local midnight.
type MinuteRange struct {
	Start int
	End   int
}

func (r MinuteRange) Valid() bool {
	return r.Start >= 0 && r.End <= 24*60 && r.Start < r.End
}

// On materialises the range on the calendar day of day in loc. time.Date normalises the
// minutes, so a DST shift moves the wall time rather than the offset arithmetic.
func (r MinuteRange) On(day time.Time, loc *time.Location) (time.Time, time.Time) {
	y, m, d := day.Date()
	return time.Date(y, m, d, 0, r.Start, 0, 0, loc), time.Date(y, m, d, 0, r.End, 0, 0, loc)
}

// WorkingHours is one weekday of a schedule. StaffID empty means facility-wide.
type WorkingHours struct {
	BusinessID string
	StaffID    string
	Weekday    time.Weekday
	IsOpen     bool
	Open       MinuteRange
	Break      *MinuteRange
}

type BlockedSlot struct {
	ID         string
	BusinessID string
	StaffID    string // empty blocks the whole facility
	Date       time.Time
	Range      MinuteRange
	Reason     string
	CreatedAt  time.Time
}
