package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hackgods/clinic-crm/internal/api"
	"github.com/hackgods/clinic-crm/internal/appointment"
	"github.com/hackgods/clinic-crm/internal/config"
	"github.com/hackgods/clinic-crm/internal/db"
	"github.com/hackgods/clinic-crm/internal/eventlog"
	"github.com/hackgods/clinic-crm/internal/lead"
	"github.com/hackgods/clinic-crm/internal/metrics"
	"github.com/hackgods/clinic-crm/internal/patient"
	redisclient "github.com/hackgods/clinic-crm/internal/redis"
	"github.com/hackgods/clinic-crm/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Default().Error("config load error", "error", err)
		os.Exit(1)
	}

	logger := logging.NewWithOptions(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	logger.Info("api-server starting up", "env", cfg.Env, "http_port", cfg.HTTPPort, "version", cfg.Version)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Error("postgres connection error", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(rootCtx, cfg)
	if err != nil {
		logger.Error("redis connection error", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("error closing redis", "error", err)
		}
	}()
	logger.Info("connected to Redis", "addr", cfg.RedisAddr)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	events := eventlog.NewPgRecorder(pgPool, logger)

	appointments := appointment.NewService(
		appointment.NewPgRepository(pgPool),
		redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL),
		appointment.NewCatalog(cfg.SlotCatalog),
		appointment.WithEvents(events),
		appointment.WithMetrics(m),
		appointment.WithLogger(logger),
	)
	patients := patient.NewService(patient.NewPgRepository(pgPool), logger)
	leads := lead.NewService(lead.NewPgRepository(pgPool), appointments, events, m, logger)
	appointments.AddStatusObserver(leads)

	srv := &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: api.NewRouter(api.RouterConfig{
			Appointments: appointments,
			Leads:        leads,
			Patients:     patients,
			Postgres:     pgPool,
			Redis:        rdb,
			Logger:       logger,
			Metrics:      m,
			Gatherer:     reg,
			Env:          cfg.Env,
			Version:      cfg.Version,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", srv.Addr, "slots", len(cfg.SlotCatalog))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-rootCtx.Done():
	case err := <-serveErr:
		if err != nil {
			logger.Error("http server error", "error", err)
		}
	}

	logger.Info("shutting down api-server", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
