package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Lease is held by exactly one process for a job until it is released or expires.
type Lease interface {
	Release(ctx context.Context) error
}

// Locker hands out cluster-wide job leases. ok is false while another holder's lease is live.
type Locker interface {
	TryAcquire(ctx context.Context, job string, ttl time.Duration) (Lease, bool, error)
}

type Job struct {
	Name  string
	Every time.Duration
	// TTL bounds a run. A holder that outlives it is treated as abandoned.
	TTL time.Duration
	Run func(ctx context.Context) error
}

type Runner struct {
	locker Locker
	logger *slog.Logger
	jobs   []Job
}

func NewRunner(locker Locker, logger *slog.Logger, jobs ...Job) *Runner {
	for i := range jobs {
		if jobs[i].Every <= 0 {
			jobs[i].Every = time.Minute
		}
		if jobs[i].TTL <= 0 {
			jobs[i].TTL = jobs[i].Every
		}
	}
	return &Runner{locker: locker, logger: logger, jobs: jobs}
}

// Run ticks every job on its own schedule until ctx is done.
func (r *Runner) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, job := range r.jobs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticker := time.NewTicker(job.Every)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if _, err := r.Tick(ctx, job); err != nil {
						r.logger.Error("monitor run failed", "job", job.Name, "err", err)
					}
				}
			}
		}()
	}
	wg.Wait()
}

// Tick runs job once if its lease can be taken. ran is false when another instance holds it.
func (r *Runner) Tick(ctx context.Context, job Job) (ran bool, err error) {
	lease, ok, err := r.locker.TryAcquire(ctx, job.Name, job.TTL)
	if err != nil {
		return false, err
	}
	if !ok {
		r.logger.Debug("monitor lease held elsewhere", "job", job.Name)
		return false, nil
	}
	defer func() {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if rerr := lease.Release(rctx); rerr != nil {
			r.logger.Warn("monitor lease release failed", "job", job.Name, "err", rerr)
		}
	}()

	jctx, cancel := context.WithTimeout(ctx, job.TTL)
	defer cancel()
	started := time.Now()
	err = job.Run(jctx)
	if errors.Is(err, context.DeadlineExceeded) {
		r.logger.Warn("monitor run exceeded lease", "job", job.Name, "ttl", job.TTL)
	}
	r.logger.Debug("monitor run finished", "job", job.Name, "took", time.Since(started))
	return true, err
}
