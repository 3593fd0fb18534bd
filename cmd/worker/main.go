package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/clinic-scheduler/internal/config"
	"github.com/jwalitptl/clinic-scheduler/internal/handler/health"
	"github.com/jwalitptl/clinic-scheduler/internal/middleware"
	"github.com/jwalitptl/clinic-scheduler/internal/notification"
	"github.com/jwalitptl/clinic-scheduler/internal/repository/postgres"
	"github.com/jwalitptl/clinic-scheduler/internal/router"
	"github.com/jwalitptl/clinic-scheduler/internal/sweep"
	"github.com/jwalitptl/clinic-scheduler/pkg/logger"
	"github.com/jwalitptl/clinic-scheduler/pkg/messaging/redis"
	"github.com/jwalitptl/clinic-scheduler/pkg/metrics"
	"github.com/jwalitptl/clinic-scheduler/pkg/worker"
)

// The worker runs the periodic sweeps and drains the outbox. Both sweeps are
// idempotent and reminders carry stable ids, so a restart between two ticks
// does not send anything twice. outbox.retention must stay longer than a day
// for that to hold.
func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(&logger.Config{
		Level:   logger.ParseLevel(cfg.Log.Level),
		Console: cfg.Log.Console,
	}).With("worker")

	loc, err := cfg.Clinic.Location()
	if err != nil {
		log.Fatal(err, "Invalid clinic timezone")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		log.Fatal(err, "Failed to connect to database")
	}
	defer db.Close()

	broker, err := redis.NewRedisBroker(ctx, redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, log)
	if err != nil {
		log.Fatal(err, "Failed to create Redis broker")
	}
	defer broker.Close()

	base := postgres.NewBaseRepository(db)
	appointmentRepo := postgres.NewAppointmentRepository(base)
	contactRepo := postgres.NewContactRepository(base)
	outboxRepo := postgres.NewOutboxRepository(base)

	m := metrics.New(cfg.Server.MetricsPrefix, prometheus.DefaultRegisterer)

	processor, err := worker.NewOutboxProcessor(outboxRepo, broker, worker.OutboxProcessorConfig{
		BatchSize:     cfg.Outbox.BatchSize,
		PollInterval:  cfg.Outbox.PollInterval,
		RetryAttempts: cfg.Outbox.RetryAttempts,
		RetryDelay:    cfg.Outbox.RetryDelay,
	}, log, m)
	if err != nil {
		log.Fatal(err, "Invalid outbox configuration")
	}
	cleanup := worker.NewOutboxCleanupWorker(outboxRepo, cfg.Outbox.Retention, cfg.Worker.CleanupInterval, log)

	runner := sweep.NewRunner(sweep.Options{
		Appointments: appointmentRepo,
		Contacts:     contactRepo,
		Dispatcher:   notification.NewOutboxDispatcher(outboxRepo),
		Location:     loc,
		OverdueGrace: cfg.Sweep.OverdueGrace,
		ReminderTTL:  cfg.Sweep.ReminderDedupTTL,
		Logger:       log,
		Metrics:      m,
	})
	sched, err := sweep.NewScheduler(runner, sweep.ScheduleConfig{
		ReminderSpec:    cfg.Sweep.ReminderSchedule,
		OverdueInterval: cfg.Sweep.OverdueInterval,
	}, nil, log, m)
	if err != nil {
		log.Fatal(err, "Invalid sweep schedule")
	}

	r := router.NewRouter(router.RouterConfig{
		CORSConfig:     middleware.DefaultCORSConfig(),
		RequestTimeout: cfg.Server.RequestTimeout,
		Logger:         log,
		Metrics:        m,
	}, nil, health.NewHandler(map[string]health.Pinger{
		"database": db,
		"redis":    health.PingFunc(broker.Ping),
	}, prometheus.DefaultGatherer))
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Worker.HealthPort),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(err, "Health check server failed")
			stop()
		}
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		processor.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		cleanup.Start(ctx)
	}()
	sched.Start()

	log.Info("Worker started",
		"timezone", loc.String(),
		"reminder_schedule", cfg.Sweep.ReminderSchedule,
		"overdue_interval", cfg.Sweep.OverdueInterval.String())

	<-ctx.Done()
	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := sched.Stop(shutdownCtx); err != nil {
		log.Error(err, "Sweep did not finish before shutdown")
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "Health server forced to shutdown")
	}
	wg.Wait()
	log.Info("Worker exited")
}
