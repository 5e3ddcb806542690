package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/outbox"
)

// RescheduleRequest moves appointment ID to StartMinute on Date. An empty StaffID keeps the
// current staff member.
type RescheduleRequest struct {
	ID          string
	StaffID     string
	Date        time.Time
	StartMinute int
}

func (s *Service) Reschedule(ctx context.Context, req RescheduleRequest) (model.Appointment, error) {
	biz, err := businessID(ctx)
	if err != nil {
		return model.Appointment{}, err
	}
	if req.Date.IsZero() || req.StartMinute < 0 || req.StartMinute >= 24*60 {
		return model.Appointment{}, apperr.New(apperr.KindInvalidRequest, "a new date and start time are required")
	}
	settings, err := s.calc.Settings(ctx, biz)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("load settings: %w", err)
	}
	loc := settings.Location()

	// The unlocked read only picks the staff-day to lock; everything is re-read under it.
	current, err := s.store.Appointment(ctx, biz, req.ID)
	if err != nil {
		return model.Appointment{}, err
	}
	if err := checkReschedulable(current, settings, s.now()); err != nil {
		return model.Appointment{}, err
	}
	staffID := strings.TrimSpace(req.StaffID)
	if staffID == "" {
		staffID = current.StaffID
	} else if _, err := s.calc.Staff(ctx, biz, staffID); err != nil {
		return model.Appointment{}, err
	}

	sch := place(req.Date, req.StartMinute, current.Items, loc)
	if err := s.notBefore(sch, loc); err != nil {
		return model.Appointment{}, err
	}

	var appt model.Appointment
	err = s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.LockStaffDay(ctx, biz, staffID, sch.day); err != nil {
			return fmt.Errorf("lock staff day: %w", err)
		}
		locked, err := tx.AppointmentForUpdate(ctx, biz, req.ID)
		if err != nil {
			return err
		}
		now := s.now()
		if err := checkReschedulable(locked, settings, now); err != nil {
			return err
		}
		// Items are immutable, so sch still matches the locked row.
		if err := s.calc.WithOccupancy(tx).CheckBookable(ctx, biz, staffID, sch.day, sch.service, sch.buffered, locked.ID); err != nil {
			return err
		}

		locked.StaffID = staffID
		locked.Date = sch.day
		locked.StartTime = sch.service.Start
		locked.EndTime = sch.service.End
		locked.BufferedEnd = sch.buffered.End
		locked.UpdatedAt = now.UTC()
		if err := tx.SetSchedule(ctx, locked); err != nil {
			return err
		}
		evt, err := outbox.NewAppointmentEvent(outbox.TypeAppointmentRescheduled, appointmentPayload(locked, locked.Status, "", now))
		if err != nil {
			return err
		}
		if err := tx.AppendEvent(ctx, evt); err != nil {
			return fmt.Errorf("write outbox event: %w", err)
		}
		appt = locked
		return nil
	})
	if err != nil {
		return model.Appointment{}, err
	}

	s.logger.Info("appointment rescheduled", "business_id", biz, "appointment_id", appt.ID, "staff_id", staffID,
		"start_time", appt.StartTime.Format(time.RFC3339))
	s.notifier.Notify(ctx, AppointmentNotification(notify.KindReschedule, appt, settings))
	return appt, nil
}

// checkReschedulable runs before any check on the new slot, so a booking inside the
// policy window is refused as such whatever the target.
func checkReschedulable(a model.Appointment, settings model.Settings, now time.Time) error {
	if a.Status != model.StatusPending && a.Status != model.StatusConfirmed {
		return apperr.New(apperr.KindInvalidTransition, "cannot reschedule a %s appointment", a.Status)
	}
	return checkLeadTime(a, settings, now)
}
