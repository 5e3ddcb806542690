package availability

import (
	"iter"
	"time"
)

// Interval is a half-open [Start, End) span.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps uses half-open semantics: intervals that only touch do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && i.End.After(o.Start)
}

func (i Interval) Contains(o Interval) bool {
	return !o.Start.Before(i.Start) && !o.End.After(i.End)
}

func (i Interval) Duration() time.Duration { return i.End.Sub(i.Start) }

// Slots yields candidate windows of length duration inside open, starting at open.Start and
// advancing by step. A candidate that overlaps brk moves the cursor to brk.End instead.
// The sequence is a pure function of its inputs and can be ranged over repeatedly.
func Slots(open Interval, brk *Interval, duration, step time.Duration) iter.Seq[Interval] {
	return func(yield func(Interval) bool) {
		if duration <= 0 || step <= 0 || !open.End.After(open.Start) {
			return
		}
		cursor := open.Start
		for {
			cand := Interval{Start: cursor, End: cursor.Add(duration)}
			if cand.End.After(open.End) {
				return
			}
			if brk != nil && cand.Overlaps(*brk) {
				cursor = brk.End
				continue
			}
			if !yield(cand) {
				return
			}
			cursor = cursor.Add(step)
		}
	}
}

// DayStart returns local midnight of t's calendar day in loc.
func DayStart(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// SameDay keeps the calendar date of day but reads it in loc, ignoring day's own zone.
func SameDay(day time.Time, loc *time.Location) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
