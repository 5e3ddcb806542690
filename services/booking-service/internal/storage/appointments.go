package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/outbox"
)

const appointmentColumns = `id::text, business_id::text, staff_id::text, COALESCE(client_id::text, ''),
	customer_name, customer_email, customer_phone, appointment_date,
	start_time, end_time, buffered_end, duration_minutes, price_cents, status,
	cancelled_at, COALESCE(cancellation_reason, ''), COALESCE(recurring_group::text, ''),
	COALESCE(recurring_rule, ''), notes, created_at, updated_at`

func scanAppointment(row rowScanner) (model.Appointment, error) {
	var (
		a      model.Appointment
		status string
	)
	err := row.Scan(
		&a.ID, &a.BusinessID, &a.StaffID, &a.ClientID,
		&a.CustomerName, &a.CustomerEmail, &a.CustomerPhone, &a.Date,
		&a.StartTime, &a.EndTime, &a.BufferedEnd, &a.DurationMinutes, &a.PriceCents, &status,
		&a.CancelledAt, &a.CancelReason, &a.RecurringGroup,
		&a.RecurringRule, &a.Notes, &a.CreatedAt, &a.UpdatedAt,
	)
	a.Status = model.Status(status)
	return a, err
}

func collectAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Appointment, error) {
		return scanAppointment(row)
	})
}

func appointmentByID(ctx context.Context, q querier, businessID, id string, forUpdate bool) (model.Appointment, error) {
	sql := `SELECT ` + appointmentColumns + ` FROM appointments WHERE business_id = $1 AND id::text = $2`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	a, err := scanAppointment(q.QueryRow(ctx, sql, businessID, id))
	if IsNotFound(err) {
		return model.Appointment{}, apperr.New(apperr.KindNotFound, "appointment %s not found", id)
	}
	if err != nil {
		return model.Appointment{}, fmt.Errorf("select appointment: %w", err)
	}
	items, err := loadItems(ctx, q, []string{a.ID})
	if err != nil {
		return model.Appointment{}, err
	}
	a.Items = items[a.ID]
	return a, nil
}

func loadItems(ctx context.Context, q querier, ids []string) (map[string][]model.LineItem, error) {
	out := make(map[string][]model.LineItem, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := q.Query(ctx, `
		SELECT appointment_id::text, position, service_id::text, service_name,
		       price_cents, duration_minutes, buffer_minutes
		FROM appointment_items
		WHERE appointment_id = ANY($1::uuid[])
		ORDER BY appointment_id, position
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("select items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			apptID string
			it     model.LineItem
		)
		if err := rows.Scan(&apptID, &it.Position, &it.ServiceID, &it.Name,
			&it.PriceCents, &it.DurationMinutes, &it.BufferMinutes); err != nil {
			return nil, err
		}
		out[apptID] = append(out[apptID], it)
	}
	return out, rows.Err()
}

func attachItems(ctx context.Context, q querier, appts []model.Appointment) ([]model.Appointment, error) {
	ids := make([]string, len(appts))
	for i, a := range appts {
		ids[i] = a.ID
	}
	items, err := loadItems(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	for i := range appts {
		appts[i].Items = items[appts[i].ID]
	}
	return appts, nil
}

func activeStatusArgs() []string {
	active := model.ActiveStatuses()
	out := make([]string, len(active))
	for i, s := range active {
		out[i] = string(s)
	}
	return out
}

func activeIntervals(ctx context.Context, q querier, businessID, staffID string, span availability.Interval, excludeID string) ([]availability.Interval, error) {
	rows, err := q.Query(ctx, `
		SELECT start_time, buffered_end
		FROM appointments
		WHERE business_id = $1
		  AND staff_id::text = $2
		  AND status = ANY($3)
		  AND start_time < $5
		  AND buffered_end > $4
		  AND id::text <> $6
		ORDER BY start_time
	`, businessID, staffID, activeStatusArgs(), span.Start, span.End, excludeID)
	if err != nil {
		return nil, fmt.Errorf("select active intervals: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (availability.Interval, error) {
		var iv availability.Interval
		err := row.Scan(&iv.Start, &iv.End)
		return iv, err
	})
}

func (s *Store) Appointment(ctx context.Context, businessID, id string) (model.Appointment, error) {
	return appointmentByID(ctx, s.pool, businessID, id, false)
}

// IdempotentAppointment returns the appointment committed under key, or "" when none is.
func (s *Store) IdempotentAppointment(ctx context.Context, businessID, key string) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(appointment_id::text, '')
		FROM booking_idempotency_keys
		WHERE business_id = $1 AND idempotency_key = $2
	`, businessID, key).Scan(&id)
	if IsNotFound(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load idempotency key: %w", err)
	}
	return id, nil
}

func (s *Store) ActiveIntervals(ctx context.Context, businessID, staffID string, span availability.Interval, excludeID string) ([]availability.Interval, error) {
	return activeIntervals(ctx, s.pool, businessID, staffID, span, excludeID)
}

func (s *Store) ListAppointments(ctx context.Context, f model.AppointmentFilter) ([]model.Appointment, error) {
	sql, args, err := appointmentListQuery(f)
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	appts, err := collectAppointments(rows)
	if err != nil {
		return nil, fmt.Errorf("scan appointments: %w", err)
	}
	return attachItems(ctx, s.pool, appts)
}

// StampRecurring links already created appointments to their series.
func (s *Store) StampRecurring(ctx context.Context, businessID string, ids []string, groupID, rule string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE appointments
		SET recurring_group = $3::uuid, recurring_rule = $4, updated_at = now()
		WHERE business_id = $1 AND id::text = ANY($2)
	`, businessID, ids, groupID, rule)
	if err != nil {
		return fmt.Errorf("stamp recurring: %w", err)
	}
	return nil
}

// Monitors.

func (s *Store) Tenants(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT business_id::text
		FROM appointments
		WHERE status IN ('PENDING', 'CONFIRMED')
		ORDER BY 1
	`)
	if err != nil {
		return nil, fmt.Errorf("select tenants: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// ElapsedConfirmed pages through CONFIRMED appointments that ended before cutoff, resuming
// after the given key.
func (s *Store) ElapsedConfirmed(ctx context.Context, businessID string, cutoff time.Time, after model.EndKey, limit int) ([]model.EndKey, error) {
	if limit <= 0 {
		limit = 500
	}
	var afterEnd *time.Time
	afterID := uuid.Nil.String()
	if !after.EndTime.IsZero() {
		afterEnd, afterID = &after.EndTime, after.ID
	}
	rows, err := s.pool.Query(ctx, `
		SELECT end_time, id::text
		FROM appointments
		WHERE business_id = $1 AND status = 'CONFIRMED' AND end_time < $2
		  AND ($3::timestamptz IS NULL OR (end_time, id) > ($3::timestamptz, $4::uuid))
		ORDER BY end_time, id
		LIMIT $5
	`, businessID, cutoff, afterEnd, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("select elapsed: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.EndKey, error) {
		var k model.EndKey
		err := row.Scan(&k.EndTime, &k.ID)
		return k, err
	})
}

func (s *Store) StartingBetween(ctx context.Context, businessID string, from, to time.Time) ([]model.Appointment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE business_id = $1
		  AND status IN ('PENDING', 'CONFIRMED')
		  AND start_time >= $2 AND start_time < $3
		ORDER BY start_time
	`, businessID, from, to)
	if err != nil {
		return nil, fmt.Errorf("select upcoming: %w", err)
	}
	appts, err := collectAppointments(rows)
	if err != nil {
		return nil, err
	}
	return attachItems(ctx, s.pool, appts)
}

// ClaimReminder inserts the sent marker; a second claim for the same window finds the row.
func (s *Store) ClaimReminder(ctx context.Context, businessID, appointmentID, window string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO reminder_markers (business_id, appointment_id, reminder_window)
		VALUES ($1, $2, $3)
		ON CONFLICT (appointment_id, reminder_window) DO NOTHING
	`, businessID, appointmentID, window)
	if err != nil {
		return false, fmt.Errorf("claim reminder: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// AppendEvent writes one outbox row in its own transaction. Notifications requested after
// a commit go through here.
func (s *Store) AppendEvent(ctx context.Context, evt outbox.Event) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		return s.outbox.Insert(ctx, tx, evt)
	})
}
