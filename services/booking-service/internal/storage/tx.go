package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/outbox"
)

// Tx implements lifecycle.Tx over one pgx transaction.
type Tx struct {
	tx     pgx.Tx
	outbox *outbox.Repository
}

func (t *Tx) ActiveIntervals(ctx context.Context, businessID, staffID string, span availability.Interval, excludeID string) ([]availability.Interval, error) {
	return activeIntervals(ctx, t.tx, businessID, staffID, span, excludeID)
}

func (t *Tx) BlockedSlots(ctx context.Context, businessID, staffID string, day time.Time) ([]model.BlockedSlot, error) {
	return blockedSlots(ctx, t.tx, businessID, staffID, day)
}

// LockStaffDay takes a transaction-scoped advisory lock keyed by tenant, staff and date.
func (t *Tx) LockStaffDay(ctx context.Context, businessID, staffID string, day time.Time) error {
	key := businessID + "|" + staffID + "|" + dateArg(day)
	if _, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		return fmt.Errorf("lock staff day: %w", err)
	}
	return nil
}

func (t *Tx) ClaimIdempotencyKey(ctx context.Context, businessID, key string) (string, error) {
	if _, err := t.tx.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (business_id, idempotency_key)
		VALUES ($1, $2)
		ON CONFLICT (business_id, idempotency_key) DO NOTHING
	`, businessID, key); err != nil {
		return "", fmt.Errorf("insert idempotency key: %w", err)
	}
	var existing string
	err := t.tx.QueryRow(ctx, `
		SELECT COALESCE(appointment_id::text, '')
		FROM booking_idempotency_keys
		WHERE business_id = $1 AND idempotency_key = $2
		FOR UPDATE
	`, businessID, key).Scan(&existing)
	if err != nil {
		return "", fmt.Errorf("lock idempotency key: %w", err)
	}
	return existing, nil
}

func (t *Tx) SaveIdempotencyKey(ctx context.Context, businessID, key, appointmentID string) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE booking_idempotency_keys
		SET appointment_id = $3::uuid, updated_at = now()
		WHERE business_id = $1 AND idempotency_key = $2
	`, businessID, key, appointmentID)
	if err != nil {
		return fmt.Errorf("save idempotency key: %w", err)
	}
	return nil
}

// InsertAppointment writes the appointment and its line items. An overlap caught by the
// exclusion constraint surfaces as a Conflict.
func (t *Tx) InsertAppointment(ctx context.Context, appt *model.Appointment) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO appointments
			(business_id, staff_id, client_id, customer_name, customer_email, customer_phone,
			 appointment_date, start_time, end_time, buffered_end, duration_minutes, price_cents,
			 status, recurring_group, recurring_rule, notes)
		VALUES ($1, $2, $3::uuid, $4, $5, $6, $7::date, $8, $9, $10, $11, $12, $13, $14::uuid, NULLIF($15, ''), $16)
		RETURNING id::text, created_at, updated_at
	`, appt.BusinessID, appt.StaffID, nullUUID(appt.ClientID), appt.CustomerName, appt.CustomerEmail, appt.CustomerPhone,
		dateArg(appt.Date), appt.StartTime, appt.EndTime, appt.BufferedEnd, appt.DurationMinutes, appt.PriceCents,
		string(appt.Status), nullUUID(appt.RecurringGroup), appt.RecurringRule, appt.Notes,
	).Scan(&appt.ID, &appt.CreatedAt, &appt.UpdatedAt)
	if IsConflict(err) {
		return apperr.Wrap(apperr.KindConflict, err, "time slot already booked")
	}
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}

	batch := &pgx.Batch{}
	for _, it := range appt.Items {
		batch.Queue(`
			INSERT INTO appointment_items
				(appointment_id, position, service_id, service_name, price_cents, duration_minutes, buffer_minutes)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, appt.ID, it.Position, it.ServiceID, it.Name, it.PriceCents, it.DurationMinutes, it.BufferMinutes)
	}
	if err := t.tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert items: %w", err)
	}
	return nil
}

func (t *Tx) AppointmentForUpdate(ctx context.Context, businessID, id string) (model.Appointment, error) {
	return appointmentByID(ctx, t.tx, businessID, id, true)
}

func (t *Tx) SetStatus(ctx context.Context, appt model.Appointment) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE appointments
		SET status = $3, cancelled_at = $4, cancellation_reason = NULLIF($5, ''), updated_at = $6
		WHERE business_id = $1 AND id::text = $2
	`, appt.BusinessID, appt.ID, string(appt.Status), appt.CancelledAt, appt.CancelReason, appt.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return nil
}

func (t *Tx) SetSchedule(ctx context.Context, appt model.Appointment) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE appointments
		SET staff_id = $3, appointment_date = $4::date, start_time = $5, end_time = $6,
		    buffered_end = $7, updated_at = $8
		WHERE business_id = $1 AND id::text = $2
	`, appt.BusinessID, appt.ID, appt.StaffID, dateArg(appt.Date), appt.StartTime, appt.EndTime,
		appt.BufferedEnd, appt.UpdatedAt)
	if IsConflict(err) {
		return apperr.Wrap(apperr.KindConflict, err, "time slot already booked")
	}
	if err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	return nil
}

func (t *Tx) ClientForUpdate(ctx context.Context, businessID, id string) (model.Client, bool, error) {
	return clientByID(ctx, t.tx, businessID, id, true)
}

func (t *Tx) ClientByEmailForUpdate(ctx context.Context, businessID, email string) (model.Client, bool, error) {
	return clientByEmail(ctx, t.tx, businessID, email, true)
}

func (t *Tx) SaveClientStanding(ctx context.Context, c model.Client) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE clients
		SET no_show_count = $3, is_blacklisted = $4, blacklist_reason = $5, blacklisted_at = $6
		WHERE business_id = $1 AND id::text = $2
	`, c.BusinessID, c.ID, c.NoShowCount, c.Blacklisted, c.BlacklistReason, c.BlacklistedAt)
	if err != nil {
		return fmt.Errorf("update client standing: %w", err)
	}
	return nil
}

func (t *Tx) AppendEvent(ctx context.Context, evt outbox.Event) error {
	if err := t.outbox.Insert(ctx, t.tx, evt); err != nil {
		return fmt.Errorf("append outbox event: %w", err)
	}
	return nil
}
