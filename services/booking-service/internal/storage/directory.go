package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

// Settings returns the tenant's settings, or the defaults when none were saved.
func (s *Store) Settings(ctx context.Context, businessID string) (model.Settings, error) {
	var v model.Settings
	err := s.pool.QueryRow(ctx, `
		SELECT business_id::text, business_name, timezone, cancellation_policy_hours, slot_step_minutes
		FROM business_settings
		WHERE business_id = $1
	`, businessID).Scan(&v.BusinessID, &v.BusinessName, &v.Timezone, &v.CancellationPolicyHours, &v.SlotStepMinutes)
	if IsNotFound(err) {
		return model.DefaultSettings(businessID), nil
	}
	if err != nil {
		return model.Settings{}, fmt.Errorf("select settings: %w", err)
	}
	return v, nil
}

func (s *Store) SaveSettings(ctx context.Context, v model.Settings) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO business_settings (business_id, business_name, timezone, cancellation_policy_hours, slot_step_minutes)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (business_id) DO UPDATE
		SET business_name = EXCLUDED.business_name,
		    timezone = EXCLUDED.timezone,
		    cancellation_policy_hours = EXCLUDED.cancellation_policy_hours,
		    slot_step_minutes = EXCLUDED.slot_step_minutes,
		    updated_at = now()
	`, v.BusinessID, v.BusinessName, v.Timezone, v.CancellationPolicyHours, v.SlotStepMinutes)
	if err != nil {
		return fmt.Errorf("upsert settings: %w", err)
	}
	return nil
}

func (s *Store) ActiveStaff(ctx context.Context, businessID string, roles []string) ([]model.Staff, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, business_id::text, name, email, role, is_active, created_at
		FROM staff
		WHERE business_id = $1 AND is_active AND role = ANY($2)
		ORDER BY created_at, id
	`, businessID, roles)
	if err != nil {
		return nil, fmt.Errorf("select staff: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Staff, error) {
		var m model.Staff
		err := row.Scan(&m.ID, &m.BusinessID, &m.Name, &m.Email, &m.Role, &m.Active, &m.CreatedAt)
		return m, err
	})
}

func (s *Store) ServicesByIDs(ctx context.Context, businessID string, ids []string) ([]model.Service, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, business_id::text, name, duration_minutes, buffer_minutes, price_cents
		FROM services
		WHERE business_id = $1 AND is_active AND id::text = ANY($2)
	`, businessID, ids)
	if err != nil {
		return nil, fmt.Errorf("select services: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Service, error) {
		var v model.Service
		err := row.Scan(&v.ID, &v.BusinessID, &v.Name, &v.DurationMinutes, &v.BufferMinutes, &v.PriceCents)
		return v, err
	})
}

const clientColumns = `id::text, business_id::text, name, email, phone, no_show_count,
	is_blacklisted, blacklist_reason, blacklisted_at`

func scanClient(row rowScanner) (model.Client, bool, error) {
	var c model.Client
	err := row.Scan(&c.ID, &c.BusinessID, &c.Name, &c.Email, &c.Phone, &c.NoShowCount,
		&c.Blacklisted, &c.BlacklistReason, &c.BlacklistedAt)
	if IsNotFound(err) {
		return model.Client{}, false, nil
	}
	if err != nil {
		return model.Client{}, false, fmt.Errorf("select client: %w", err)
	}
	return c, true, nil
}

func clientByID(ctx context.Context, q querier, businessID, id string, forUpdate bool) (model.Client, bool, error) {
	sql := `SELECT ` + clientColumns + ` FROM clients WHERE business_id = $1 AND id::text = $2`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	return scanClient(q.QueryRow(ctx, sql, businessID, id))
}

func clientByEmail(ctx context.Context, q querier, businessID, email string, forUpdate bool) (model.Client, bool, error) {
	if email == "" {
		return model.Client{}, false, nil
	}
	sql := `SELECT ` + clientColumns + ` FROM clients WHERE business_id = $1 AND email <> '' AND lower(email) = lower($2)`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	return scanClient(q.QueryRow(ctx, sql, businessID, email))
}

func (s *Store) Client(ctx context.Context, businessID, id string) (model.Client, bool, error) {
	return clientByID(ctx, s.pool, businessID, id, false)
}

func (s *Store) ClientByEmail(ctx context.Context, businessID, email string) (model.Client, bool, error) {
	return clientByEmail(ctx, s.pool, businessID, email, false)
}
