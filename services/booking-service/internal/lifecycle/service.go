package lifecycle

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/tenant"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

// Service owns every state change of an appointment.
type Service struct {
	store    Store
	calc     *availability.Calculator
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, calc *availability.Calculator, notifier Notifier, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:    store,
		calc:     calc,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func businessID(ctx context.Context) (string, error) {
	id, err := tenant.Require(ctx)
	if err != nil {
		return "", apperr.Wrap(apperr.KindNoTenantContext, err, "tenant context is required")
	}
	return id, nil
}

// schedule is the resolved time placement of a booking.
type schedule struct {
	day      time.Time
	service  availability.Interval
	buffered availability.Interval
}

func place(date time.Time, startMinute int, items []model.LineItem, loc *time.Location) schedule {
	day := availability.SameDay(date, loc)
	y, m, d := day.Date()
	start := time.Date(y, m, d, 0, startMinute, 0, 0, loc)
	end, buffered := model.Window(start, items)
	return schedule{
		day:      day,
		service:  availability.Interval{Start: start, End: end},
		buffered: availability.Interval{Start: start, End: buffered},
	}
}

// notBefore rejects days before today and start times that have passed, both in loc.
func (s *Service) notBefore(sch schedule, loc *time.Location) error {
	now := s.now()
	if sch.day.Before(availability.DayStart(now, loc)) {
		return apperr.New(apperr.KindInvalidRequest, "date %s is in the past", sch.day.Format(time.DateOnly))
	}
	if sch.service.Start.Before(now) {
		return apperr.New(apperr.KindInvalidRequest, "start time %s has already passed", sch.service.Start.Format("15:04"))
	}
	return nil
}
