package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/md-rashed-zaman/slotbook/libs/config"
	"github.com/md-rashed-zaman/slotbook/libs/db"
	"github.com/md-rashed-zaman/slotbook/libs/grpcx"
	"github.com/md-rashed-zaman/slotbook/libs/httpx"
	"github.com/md-rashed-zaman/slotbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/slotbook/libs/otel"
	"github.com/md-rashed-zaman/slotbook/libs/runtime"
	"github.com/md-rashed-zaman/slotbook/libs/tenant"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/cache"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/lifecycle"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/monitor"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/recurring"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/migrations"
)

func main() {
	if err := config.Load(); err != nil {
		panic(err)
	}
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
	if err != nil {
		panic(err)
	}
	grpcPort, err := config.Port("GRPC_PORT", "9093")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL, db.Options{MaxConns: int32(config.PositiveInt("DB_MAX_CONNS", 10))})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	if config.Bool("MIGRATE_ON_START", false) {
		if err := db.Migrate(ctx, pool, migrations.FS); err != nil {
			logger.Error("migrations failed", "err", err)
			panic(err)
		}
		logger.Info("migrations applied")
	}

	var rdb *redis.Client
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		redisDB, err := config.Int("REDIS_DB", 0)
		if err != nil {
			panic(err)
		}
		rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       redisDB,
		})
		defer func() { _ = rdb.Close() }()
	}

	outboxRepo := outbox.NewRepository()
	store := storage.New(pool, outboxRepo)

	var settings availability.SettingsProvider = store
	var settingsStore handlers.SettingsStore = store
	if rdb != nil {
		ttl, err := config.Duration("SETTINGS_CACHE_TTL", 5*time.Minute)
		if err != nil {
			panic(err)
		}
		cached := cache.NewSettings(store, cache.NewRedis(rdb), ttl, logger)
		settings, settingsStore = cached, cached
		logger.Info("settings cache enabled (redis)", "ttl", ttl)
	}

	calc := availability.NewCalculator(store, store, store, store, settings,
		availability.WithWorkers(config.PositiveInt("AVAILABILITY_WORKERS", 4)))

	dispatcher := notify.NewDispatcher(notify.NewOutboxSink(store), logger, notify.DispatcherConfig{
		QueueSize: config.PositiveInt("NOTIFY_QUEUE_SIZE", 256),
		Workers:   config.PositiveInt("NOTIFY_WORKERS", 2),
	})
	go dispatcher.Run(ctx)

	bookings := lifecycle.NewService(store, calc, dispatcher, logger)
	expander := recurring.NewExpander(bookings, store, logger)

	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go publisher.Run(ctx)

	if config.Bool("MONITORS_ENABLED", true) {
		locker, err := newLocker(config.String("LEASE_BACKEND", "postgres"), pool, rdb)
		if err != nil {
			panic(err)
		}
		noShowEvery, err := config.Duration("NOSHOW_INTERVAL", 5*time.Minute)
		if err != nil {
			panic(err)
		}
		reminderEvery, err := config.Duration("REMINDER_INTERVAL", time.Minute)
		if err != nil {
			panic(err)
		}
		runner := monitor.NewRunner(locker, logger,
			monitor.NewNoShowMonitor(store, bookings, logger).Job(noShowEvery),
			monitor.NewReminderMonitor(store, settings, dispatcher, logger).Job(reminderEvery),
		)
		go runner.Run(ctx)
	}

	checks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
		{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	}
	if rdb != nil {
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}
	mux := runtime.NewBaseMuxWithReady(checks...)
	handlers.NewBookingHandler(handlers.Deps{
		Availability: calc,
		Bookings:     bookings,
		Recurring:    expander,
		Store:        store,
		Settings:     settingsStore,
		Logger:       logger,
	}).Register(mux)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		tenant.Middleware,
		httpx.WithBodyLimit(1<<20),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcSrv, health := grpcx.NewServer(logger)
	lis, err := net.Listen("tcp", ":"+grpcPort)
	if err != nil {
		logger.Error("grpc listen failed", "err", err)
		panic(err)
	}
	go func() {
		logger.Info("grpc server starting", "addr", lis.Addr().String())
		if err := grpcSrv.Serve(lis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	health.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	grpcSrv.GracefulStop()
	logger.Info("servers stopped")
}

func newLocker(backend string, pool *db.Pool, rdb *redis.Client) (monitor.Locker, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", "postgres":
		return monitor.NewPGLocker(pool), nil
	case "redis":
		if rdb == nil {
			return nil, errors.New("LEASE_BACKEND=redis requires REDIS_ADDR")
		}
		return monitor.NewRedisLocker(rdb, config.String("LEASE_PREFIX", "")), nil
	case "memory":
		return monitor.NewMemoryLocker(), nil
	}
	return nil, errors.New("LEASE_BACKEND must be postgres, redis or memory")
}
