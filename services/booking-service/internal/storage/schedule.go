package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

// WorkingHours reads one weekday of a schedule. An empty staffID selects the facility row.
func (s *Store) WorkingHours(ctx context.Context, businessID, staffID string, weekday time.Weekday) (model.WorkingHours, bool, error) {
	var (
		wh                   model.WorkingHours
		breakStart, breakEnd *int
	)
	err := s.pool.QueryRow(ctx, `
		SELECT business_id::text, COALESCE(staff_id::text, ''), is_open, start_minute, end_minute,
		       break_start_minute, break_end_minute
		FROM working_hours
		WHERE business_id = $1
		  AND staff_id IS NOT DISTINCT FROM $2::uuid
		  AND weekday = $3
	`, businessID, nullUUID(staffID), int(weekday)).Scan(
		&wh.BusinessID, &wh.StaffID, &wh.IsOpen, &wh.Open.Start, &wh.Open.End, &breakStart, &breakEnd,
	)
	if IsNotFound(err) {
		return model.WorkingHours{}, false, nil
	}
	if err != nil {
		return model.WorkingHours{}, false, fmt.Errorf("select working hours: %w", err)
	}
	wh.Weekday = weekday
	if breakStart != nil && breakEnd != nil {
		wh.Break = &model.MinuteRange{Start: *breakStart, End: *breakEnd}
	}
	return wh, true, nil
}

// ReplaceWorkingHours swaps every weekday row of one scope for week in a single transaction.
func (s *Store) ReplaceWorkingHours(ctx context.Context, businessID, staffID string, week []model.WorkingHours) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			DELETE FROM working_hours
			WHERE business_id = $1 AND staff_id IS NOT DISTINCT FROM $2::uuid
		`, businessID, nullUUID(staffID)); err != nil {
			return err
		}
		batch := &pgx.Batch{}
		for _, wh := range week {
			var breakStart, breakEnd *int
			if wh.Break != nil {
				breakStart, breakEnd = &wh.Break.Start, &wh.Break.End
			}
			batch.Queue(`
				INSERT INTO working_hours
					(business_id, staff_id, weekday, is_open, start_minute, end_minute, break_start_minute, break_end_minute)
				VALUES ($1, $2::uuid, $3, $4, $5, $6, $7, $8)
			`, businessID, nullUUID(staffID), int(wh.Weekday), wh.IsOpen, wh.Open.Start, wh.Open.End, breakStart, breakEnd)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

func (s *Store) CreateBlockedSlot(ctx context.Context, b model.BlockedSlot) (model.BlockedSlot, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO blocked_slots (business_id, staff_id, block_date, start_minute, end_minute, reason)
		VALUES ($1, $2::uuid, $3::date, $4, $5, $6)
		RETURNING id::text, created_at
	`, b.BusinessID, nullUUID(b.StaffID), dateArg(b.Date), b.Range.Start, b.Range.End, b.Reason).Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		return model.BlockedSlot{}, fmt.Errorf("insert blocked slot: %w", err)
	}
	return b, nil
}

func (s *Store) DeleteBlockedSlot(ctx context.Context, businessID, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM blocked_slots WHERE business_id = $1 AND id::text = $2`, businessID, id)
	if err != nil {
		return fmt.Errorf("delete blocked slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.KindNotFound, "blocked slot %s not found", id)
	}
	return nil
}

func blockedSlots(ctx context.Context, q querier, businessID, staffID string, day time.Time) ([]model.BlockedSlot, error) {
	rows, err := q.Query(ctx, `
		SELECT id::text, business_id::text, COALESCE(staff_id::text, ''), block_date,
		       start_minute, end_minute, reason, created_at
		FROM blocked_slots
		WHERE business_id = $1
		  AND block_date = $2::date
		  AND (staff_id IS NULL OR staff_id::text = $3)
		ORDER BY start_minute
	`, businessID, dateArg(day), staffID)
	if err != nil {
		return nil, fmt.Errorf("select blocked slots: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.BlockedSlot, error) {
		var b model.BlockedSlot
		err := row.Scan(&b.ID, &b.BusinessID, &b.StaffID, &b.Date, &b.Range.Start, &b.Range.End, &b.Reason, &b.CreatedAt)
		return b, err
	})
}

func (s *Store) BlockedSlots(ctx context.Context, businessID, staffID string, day time.Time) ([]model.BlockedSlot, error) {
	return blockedSlots(ctx, s.pool, businessID, staffID, day)
}
