package lifecycle

import (
	"context"
	"fmt"
	"strings"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/outbox"
)

// UpdateStatus applies a staff-driven transition. Staff cancellations are not subject to
// the client lead-time policy.
func (s *Service) UpdateStatus(ctx context.Context, id string, next model.Status, reason string) (model.Appointment, error) {
	if next == model.StatusNoShow {
		return s.MarkNoShow(ctx, id)
	}
	return s.transition(ctx, id, next, strings.TrimSpace(reason), false)
}

// ClientCancel cancels on the client's behalf and enforces the cancellation policy window.
func (s *Service) ClientCancel(ctx context.Context, id, reason string) (model.Appointment, error) {
	return s.transition(ctx, id, model.StatusCancelled, strings.TrimSpace(reason), true)
}

func (s *Service) transition(ctx context.Context, id string, next model.Status, reason string, enforcePolicy bool) (model.Appointment, error) {
	biz, err := businessID(ctx)
	if err != nil {
		return model.Appointment{}, err
	}
	settings, err := s.calc.Settings(ctx, biz)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("load settings: %w", err)
	}

	var appt model.Appointment
	err = s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		current, err := tx.AppointmentForUpdate(ctx, biz, id)
		if err != nil {
			return err
		}
		if err := checkTransition(current, next); err != nil {
			return err
		}
		now := s.now()
		if enforcePolicy {
			if err := checkLeadTime(current, settings, now); err != nil {
				return err
			}
		}

		previous := current.Status
		current.Status = next
		current.UpdatedAt = now.UTC()
		eventType := outbox.TypeAppointmentStatus
		if next == model.StatusCancelled {
			at := now.UTC()
			current.CancelledAt = &at
			current.CancelReason = reason
			eventType = outbox.TypeAppointmentCancelled
		}
		if err := tx.SetStatus(ctx, current); err != nil {
			return err
		}
		evt, err := outbox.NewAppointmentEvent(eventType, appointmentPayload(current, previous, reason, now))
		if err != nil {
			return err
		}
		if err := tx.AppendEvent(ctx, evt); err != nil {
			return fmt.Errorf("write outbox event: %w", err)
		}
		appt = current
		return nil
	})
	if err != nil {
		return model.Appointment{}, err
	}

	s.logger.Info("appointment status changed", "business_id", biz, "appointment_id", id, "status", next)
	if next == model.StatusCancelled {
		s.notifier.Notify(ctx, AppointmentNotification(notify.KindCancellation, appt, settings))
	}
	return appt, nil
}

// MarkNoShow moves a CONFIRMED appointment to NO_SHOW and escalates the client's standing in
// the same transaction. The interactive path and the no-show monitor both land here.
func (s *Service) MarkNoShow(ctx context.Context, id string) (model.Appointment, error) {
	biz, err := businessID(ctx)
	if err != nil {
		return model.Appointment{}, err
	}
	settings, err := s.calc.Settings(ctx, biz)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("load settings: %w", err)
	}

	var (
		appt        model.Appointment
		blacklisted *model.Client
	)
	err = s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		current, err := tx.AppointmentForUpdate(ctx, biz, id)
		if err != nil {
			return err
		}
		if err := checkTransition(current, model.StatusNoShow); err != nil {
			return err
		}
		now := s.now()
		previous := current.Status
		current.Status = model.StatusNoShow
		current.UpdatedAt = now.UTC()
		if err := tx.SetStatus(ctx, current); err != nil {
			return err
		}
		blacklisted, err = escalateNoShow(ctx, tx, current, now)
		if err != nil {
			return err
		}
		evt, err := outbox.NewAppointmentEvent(outbox.TypeAppointmentStatus, appointmentPayload(current, previous, "no-show", now))
		if err != nil {
			return err
		}
		if err := tx.AppendEvent(ctx, evt); err != nil {
			return fmt.Errorf("write outbox event: %w", err)
		}
		appt = current
		return nil
	})
	if err != nil {
		return model.Appointment{}, err
	}

	s.logger.Info("appointment marked no-show", "business_id", biz, "appointment_id", id)
	if blacklisted != nil {
		s.logger.Warn("client blacklisted", "business_id", biz, "client_id", blacklisted.ID, "no_show_count", blacklisted.NoShowCount)
		s.notifier.Notify(ctx, blacklistNotification(*blacklisted, settings))
	}
	return appt, nil
}

// ClearBlacklist is the only way a blacklist flag is removed. The no-show count restarts so
// the threshold applies afresh.
func (s *Service) ClearBlacklist(ctx context.Context, clientID string) (model.Client, error) {
	biz, err := businessID(ctx)
	if err != nil {
		return model.Client{}, err
	}
	var client model.Client
	err = s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		c, ok, err := tx.ClientForUpdate(ctx, biz, clientID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.New(apperr.KindNotFound, "client %s not found", clientID)
		}
		c.Blacklisted = false
		c.BlacklistedAt = nil
		c.BlacklistReason = ""
		c.NoShowCount = 0
		client = c
		return tx.SaveClientStanding(ctx, c)
	})
	if err != nil {
		return model.Client{}, err
	}
	s.logger.Info("client blacklist cleared", "business_id", biz, "client_id", clientID)
	return client, nil
}
