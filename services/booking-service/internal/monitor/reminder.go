package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/lifecycle"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/notify"
)

type ReminderWindow struct {
	Name  string
	Ahead time.Duration
}

var DefaultReminderWindows = []ReminderWindow{
	{Name: "24h", Ahead: 24 * time.Hour},
	{Name: "1h", Ahead: time.Hour},
}

// ReminderTolerance is the half-width of the window scanned around each reminder target.
const ReminderTolerance = 5 * time.Minute

type ReminderSource interface {
	Tenants(ctx context.Context) ([]string, error)
	// StartingBetween returns PENDING and CONFIRMED appointments starting in [from, to).
	StartingBetween(ctx context.Context, businessID string, from, to time.Time) ([]model.Appointment, error)
	// ClaimReminder records that window was sent for the appointment. It returns false when
	// the marker already exists.
	ClaimReminder(ctx context.Context, businessID, appointmentID, window string) (bool, error)
}

type SettingsReader interface {
	Settings(ctx context.Context, businessID string) (model.Settings, error)
}

type ReminderMonitor struct {
	source   ReminderSource
	settings SettingsReader
	notifier lifecycle.Notifier
	logger   *slog.Logger
	windows  []ReminderWindow
	now      func() time.Time
}

func NewReminderMonitor(source ReminderSource, settings SettingsReader, notifier lifecycle.Notifier, logger *slog.Logger) *ReminderMonitor {
	return &ReminderMonitor{
		source:   source,
		settings: settings,
		notifier: notifier,
		logger:   logger,
		windows:  DefaultReminderWindows,
		now:      time.Now,
	}
}

func (m *ReminderMonitor) Job(every time.Duration) Job {
	return Job{Name: "reminder-monitor", Every: every, Run: func(ctx context.Context) error {
		_, err := m.RunOnce(ctx)
		return err
	}}
}

// RunOnce claims the marker before dispatching, so a reminder is sent at most once per
// appointment and window no matter how many ticks see it.
func (m *ReminderMonitor) RunOnce(ctx context.Context) (Report, error) {
	var rep Report
	tenants, err := m.source.Tenants(ctx)
	if err != nil {
		return rep, fmt.Errorf("list tenants: %w", err)
	}
	now := m.now()
	for _, biz := range tenants {
		if ctx.Err() != nil {
			return rep, ctx.Err()
		}
		settings, err := m.settings.Settings(ctx, biz)
		if err != nil {
			m.logger.Error("reminder settings failed", "business_id", biz, "err", err)
			continue
		}
		for _, w := range m.windows {
			target := now.Add(w.Ahead)
			appts, err := m.source.StartingBetween(ctx, biz, target.Add(-ReminderTolerance), target.Add(ReminderTolerance))
			if err != nil {
				m.logger.Error("reminder scan failed", "business_id", biz, "window", w.Name, "err", err)
				continue
			}
			for _, appt := range appts {
				claimed, err := m.source.ClaimReminder(ctx, biz, appt.ID, w.Name)
				if err != nil {
					rep.fail(biz, appt.ID, err)
					continue
				}
				if !claimed {
					rep.skip()
					continue
				}
				n := lifecycle.AppointmentNotification(notify.KindReminder, appt, settings)
				n.Variables["window"] = w.Name
				m.notifier.Notify(ctx, n)
				rep.ok()
			}
		}
	}
	if rep.Succeeded > 0 || len(rep.Failures) > 0 {
		m.logger.Info("reminder sweep finished", "sent", rep.Succeeded, "skipped", rep.Skipped, "failed", len(rep.Failures))
	}
	return rep, nil
}
