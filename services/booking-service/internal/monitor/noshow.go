package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/tenant"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

// NoShowGrace is how long after its end a confirmed appointment is declared a no-show.
const NoShowGrace = time.Hour

type NoShowSource interface {
	Tenants(ctx context.Context) ([]string, error)
	// ElapsedConfirmed returns up to limit CONFIRMED appointments that ended before cutoff,
	// ordered by EndKey and strictly after the given key.
	ElapsedConfirmed(ctx context.Context, businessID string, cutoff time.Time, after model.EndKey, limit int) ([]model.EndKey, error)
}

type NoShowMarker interface {
	MarkNoShow(ctx context.Context, id string) (model.Appointment, error)
}

type NoShowMonitor struct {
	source NoShowSource
	marker NoShowMarker
	logger *slog.Logger
	grace  time.Duration
	batch  int
	now    func() time.Time
}

func NewNoShowMonitor(source NoShowSource, marker NoShowMarker, logger *slog.Logger) *NoShowMonitor {
	return &NoShowMonitor{
		source: source,
		marker: marker,
		logger: logger,
		grace:  NoShowGrace,
		batch:  200,
		now:    time.Now,
	}
}

func (m *NoShowMonitor) Job(every time.Duration) Job {
	return Job{Name: "noshow-monitor", Every: every, Run: func(ctx context.Context) error {
		_, err := m.RunOnce(ctx)
		return err
	}}
}

// RunOnce sweeps every tenant. A failing appointment is recorded and the sweep continues;
// only failures to list work abort the run.
func (m *NoShowMonitor) RunOnce(ctx context.Context) (Report, error) {
	var rep Report
	tenants, err := m.source.Tenants(ctx)
	if err != nil {
		return rep, fmt.Errorf("list tenants: %w", err)
	}
	cutoff := m.now().Add(-m.grace)
	for _, biz := range tenants {
		if err := m.sweepTenant(ctx, biz, cutoff, &rep); err != nil {
			return rep, err
		}
	}
	if rep.Processed > 0 {
		m.logger.Info("no-show sweep finished", "processed", rep.Processed, "marked", rep.Succeeded, "failed", len(rep.Failures))
	}
	return rep, nil
}

// sweepTenant pages by key so appointments that keep failing never hide the ones after them.
func (m *NoShowMonitor) sweepTenant(ctx context.Context, biz string, cutoff time.Time, rep *Report) error {
	tctx := tenant.WithID(ctx, biz)
	var after model.EndKey
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		page, err := m.source.ElapsedConfirmed(ctx, biz, cutoff, after, m.batch)
		if err != nil {
			m.logger.Error("no-show scan failed", "business_id", biz, "err", err)
			return nil
		}
		for _, k := range page {
			if _, err := m.marker.MarkNoShow(tctx, k.ID); err != nil {
				m.logger.Error("no-show mark failed", "business_id", biz, "appointment_id", k.ID, "err", err)
				rep.fail(biz, k.ID, err)
				continue
			}
			rep.ok()
		}
		if len(page) == 0 || len(page) < m.batch {
			return nil
		}
		after = page[len(page)-1]
	}
}
