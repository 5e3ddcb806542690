package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/slotbook/libs/db"
)

// PGLocker keeps leases in the job_leases table. A row whose expires_at has passed may be
// taken over by the next caller.
type PGLocker struct {
	pool *db.Pool
}

func NewPGLocker(pool *db.Pool) *PGLocker {
	return &PGLocker{pool: pool}
}

func (l *PGLocker) TryAcquire(ctx context.Context, job string, ttl time.Duration) (Lease, bool, error) {
	owner := uuid.NewString()
	var got string
	err := l.pool.QueryRow(ctx, `
		INSERT INTO job_leases (job_name, owner, expires_at)
		VALUES ($1, $2, now() + make_interval(secs => $3))
		ON CONFLICT (job_name) DO UPDATE
		SET owner = EXCLUDED.owner, expires_at = EXCLUDED.expires_at
		WHERE job_leases.expires_at <= now()
		RETURNING owner
	`, job, owner, ttl.Seconds()).Scan(&got)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("acquire lease %s: %w", job, err)
	}
	return &pgLease{pool: l.pool, job: job, owner: owner}, true, nil
}

type pgLease struct {
	pool  *db.Pool
	job   string
	owner string
}

func (l *pgLease) Release(ctx context.Context) error {
	_, err := l.pool.Exec(ctx, `DELETE FROM job_leases WHERE job_name = $1 AND owner = $2`, l.job, l.owner)
	return err
}
