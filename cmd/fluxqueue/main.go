// Command fluxqueue is the durable, multi-tenant job queue and worker
// runtime binary.
//
// Subcommands:
//
//	serve    — HTTP server + embedded worker pool (default for small deployments)
//	worker   — standalone worker pool only (scaled-out deployments)
//	migrate  — run pending database migrations and exit
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	// Embeds the IANA timezone database in the binary so that
	// time.LoadLocation works inside distroless containers that have no
	// /usr/share/zoneinfo.
	_ "time/tzdata"

	// Automatically sets GOMEMLIMIT from the cgroup memory limit so that
	// the Go GC triggers before the OOM killer fires in containers.
	_ "github.com/KimMachineGun/automemlimit"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/fluxqueue/fluxqueue/internal/admission"
	"github.com/fluxqueue/fluxqueue/internal/api"
	"github.com/fluxqueue/fluxqueue/internal/config"
	"github.com/fluxqueue/fluxqueue/internal/eventbus"
	"github.com/fluxqueue/fluxqueue/internal/jobqueue"
	"github.com/fluxqueue/fluxqueue/internal/observer"
	"github.com/fluxqueue/fluxqueue/internal/store"
	"github.com/fluxqueue/fluxqueue/internal/worker"
	"github.com/fluxqueue/fluxqueue/migrations"
)

func main() {
	root := &cobra.Command{
		Use:   "fluxqueue",
		Short: "fluxqueue — durable, multi-tenant job queue and worker runtime",
		// Silence default error printing; we print it ourselves with slog.
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.AddCommand(
		serveCmd(),
		workerCmd(),
		migrateCmd(),
	)

	if err := root.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// ── serve ─────────────────────────────────────────────────────────────────────

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server and embedded worker pool",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	pool, err := newPool(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer pool.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	st := store.New(pool)
	gate := admission.New()
	bus := eventbus.New(256)
	jobs := jobqueue.New(st, gate, bus)
	gateway := observer.NewGateway(bus)
	defer gateway.Close()

	if cfg.ObserverWebhookURL != "" {
		client, err := observer.BuildSafeClient()
		if err != nil {
			return fmt.Errorf("build webhook client: %w", err)
		}
		webhookObs := observer.NewWebhookObserver(cfg.ObserverWebhookURL, cfg.ObserverWebhookSecret, client)
		go webhookObs.Run(ctx, bus)
	}

	// Start embedded worker pool. Runs until ctx is cancelled, at which
	// point in-flight jobs drain: a worker finishing its current job
	// observes ctx on its next loop iteration and exits; unfinished
	// leases simply expire and are reclaimed by the next pool instance.
	workerPool := worker.New(st, gate, bus, worker.Config{
		NumWorkers:              cfg.WorkerCount,
		LeaseTTL:                cfg.LeaseTTL(),
		PollInterval:            cfg.WorkerPollInterval,
		MetricsSnapshotInterval: cfg.MetricsSnapshotInterval(),
	})
	go func() {
		if err := workerPool.Start(ctx); err != nil { //nolint:contextcheck // ctx is the process-lifetime context
			slog.Error("worker pool stopped with error", "error", err)
		}
	}()

	handler := api.NewServer(jobs, gateway, cfg, pool).Handler()

	// Explicit timeouts prevent Slowloris attacks. WriteTimeout is
	// intentionally omitted — the websocket event stream needs
	// unbounded write time.
	httpSrv := &http.Server{ //nolint:exhaustruct // WriteTimeout intentionally omitted for the websocket stream
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("server started", "addr", cfg.ListenAddr)
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		stop() // release signal notification
	}

	slog.Info("shutting down", "timeout_seconds", cfg.ShutdownTimeoutSeconds)
	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.ShutdownTimeoutSeconds)*time.Second,
	)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

// ── worker ────────────────────────────────────────────────────────────────────

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Start the standalone worker pool (no HTTP server)",
		RunE:  runWorker,
	}
}

func runWorker(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	pool, err := newPool(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer pool.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	st := store.New(pool)
	gate := admission.New()
	bus := eventbus.New(256)

	workerPool := worker.New(st, gate, bus, worker.Config{
		NumWorkers:              cfg.WorkerCount,
		LeaseTTL:                cfg.LeaseTTL(),
		PollInterval:            cfg.WorkerPollInterval,
		MetricsSnapshotInterval: cfg.MetricsSnapshotInterval(),
	})

	slog.Info("worker started")
	return workerPool.Start(ctx) // blocks until ctx cancelled, then drains in-flight jobs
}

// ── migrate ───────────────────────────────────────────────────────────────────

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run pending database migrations and exit",
		RunE:  runMigrate,
	}
}

func runMigrate(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	slog.Info("running migrations")

	// Source: embedded SQL files from the migrations package.
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}

	// golang-migrate requires a *sql.DB. Use pgx's stdlib adapter so the
	// same driver is used project-wide. No pooling needed here — this
	// is a one-shot migration run.
	connCfg, err := pgx.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("parse db url: %w", err)
	}
	db := stdlib.OpenDB(*connCfg)
	defer db.Close() //nolint:errcheck

	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migrate init: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}

	version, _, _ := m.Version() //nolint:errcheck
	slog.Info("migrations complete", "version", version)
	return nil
}

// ── helpers ───────────────────────────────────────────────────────────────────

// newPool creates and validates a pgxpool with statement-timeout and
// pool-sizing settings from config.
//
// Retries up to 10 times with linear backoff to handle container startup
// races where Postgres is not immediately ready.
func newPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Global per-query statement timeout prevents runaway queries from
	// holding connections indefinitely.
	poolCfg.ConnConfig.RuntimeParams["statement_timeout"] = strconv.Itoa(cfg.DBStatementTimeoutMS)

	poolCfg.MaxConns = cfg.DBMaxConns
	poolCfg.MaxConnIdleTime = cfg.DBMaxConnIdleTime

	var (
		pool    *pgxpool.Pool
		connErr error
	)
	for attempt := 1; attempt <= 10; attempt++ {
		pool, connErr = pgxpool.NewWithConfig(ctx, poolCfg)
		if connErr == nil {
			if connErr = pool.Ping(ctx); connErr == nil {
				break
			}
			pool.Close()
		}
		slog.Warn("database not ready, retrying", "attempt", attempt, "error", connErr)
		// time.NewTimer (not time.After) to avoid leaking the timer if
		// ctx is cancelled before the timer fires.
		timer := time.NewTimer(time.Duration(attempt) * time.Second)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	if connErr != nil {
		return nil, fmt.Errorf("database unavailable after retries: %w", connErr)
	}

	var pgMaxConnsStr string
	if err := pool.QueryRow(ctx, "SHOW max_connections").Scan(&pgMaxConnsStr); err == nil {
		if pgMaxConns, err := strconv.Atoi(pgMaxConnsStr); err == nil {
			if int(cfg.DBMaxConns) > int(float64(pgMaxConns)*0.8) {
				slog.Warn("DB_MAX_CONNS exceeds 80% of Postgres max_connections",
					"db_max_conns", cfg.DBMaxConns,
					"postgres_max_connections", pgMaxConns,
				)
			}
		}
	}

	return pool, nil
}

// newLogger creates a slog.Logger based on the configured log level and format.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "text" || cfg.IsDevelopment() {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
