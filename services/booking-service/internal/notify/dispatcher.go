package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
)

type DispatcherConfig struct {
	QueueSize       int
	Workers         int
	MaxTries        uint
	InitialInterval time.Duration
}

type job struct {
	ctx context.Context
	n   Notification
}

// Dispatcher delivers notifications off the request path. Notify never blocks: when the
// queue is full the notification is dropped and logged.
type Dispatcher struct {
	sink    Sink
	logger  *slog.Logger
	cfg     DispatcherConfig
	queue   chan job
	wg      sync.WaitGroup
	started sync.Once
}

func NewDispatcher(sink Sink, logger *slog.Logger, cfg DispatcherConfig) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.MaxTries == 0 {
		cfg.MaxTries = 3
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 500 * time.Millisecond
	}
	return &Dispatcher{
		sink:   sink,
		logger: logger,
		cfg:    cfg,
		queue:  make(chan job, cfg.QueueSize),
	}
}

func (d *Dispatcher) Notify(ctx context.Context, n Notification) {
	if n.Recipient == "" {
		d.logger.Debug("notification skipped (no recipient)", "kind", n.Kind, "appointment_id", n.AppointmentID)
		return
	}
	select {
	case d.queue <- job{ctx: context.WithoutCancel(ctx), n: n}:
	default:
		d.logger.Warn("notification dropped (queue full)", "kind", n.Kind, "appointment_id", n.AppointmentID)
	}
}

// Run starts the workers and blocks until ctx is done and in-flight deliveries finish.
func (d *Dispatcher) Run(ctx context.Context) {
	d.started.Do(func() {
		for i := 0; i < d.cfg.Workers; i++ {
			d.wg.Add(1)
			go func() {
				defer d.wg.Done()
				d.work(ctx)
			}()
		}
	})
	<-ctx.Done()
	d.wg.Wait()
}

func (d *Dispatcher) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-d.queue:
			if err := d.deliver(ctx, j); err != nil {
				d.logger.Error("notification failed", "kind", j.n.Kind, "business_id", j.n.BusinessID,
					"appointment_id", j.n.AppointmentID, "err", err)
			}
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, j job) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.cfg.InitialInterval

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		dctx, cancel := context.WithTimeout(j.ctx, 5*time.Second)
		defer cancel()
		return struct{}{}, d.sink.Deliver(dctx, j.n)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(d.cfg.MaxTries))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
