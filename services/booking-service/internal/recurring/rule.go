package recurring

import (
	"strings"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/apperr"
)

type Rule string

const (
	Weekly   Rule = "WEEKLY"
	Biweekly Rule = "BIWEEKLY"
	Monthly  Rule = "MONTHLY"
)

// MaxCount caps one series at a year of weekly instances.
const MaxCount = 52

func ParseRule(raw string) (Rule, error) {
	r := Rule(strings.ToUpper(strings.TrimSpace(raw)))
	switch r {
	case Weekly, Biweekly, Monthly:
		return r, nil
	}
	return "", apperr.New(apperr.KindInvalidRequest, "unknown recurrence rule %q", raw)
}

// Dates returns count calendar days starting at base. Monthly steps keep the day of month,
// clamped to the last day of shorter months.
func Dates(base time.Time, rule Rule, count int) []time.Time {
	out := make([]time.Time, 0, count)
	for i := 0; i < count; i++ {
		switch rule {
		case Weekly:
			out = append(out, base.AddDate(0, 0, 7*i))
		case Biweekly:
			out = append(out, base.AddDate(0, 0, 14*i))
		case Monthly:
			out = append(out, addMonths(base, i))
		}
	}
	return out
}

func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
