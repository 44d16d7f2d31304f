// Package main is the entry point for the VQE service.
// It runs variational eigensolver jobs on reference Hamiltonians, verifies
// them against exact diagonalization and keeps every run in a SQLite archive.
//
// The application follows the usual layering:
// - Core packages (hamiltonian, ansatz, oracle, cost, optimizers, vqe) are
//   free of infrastructure
// - Repository pattern for the run archive
// - Service layer for building, running and verifying jobs
// - HTTP handlers and a websocket stream for the API
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

	"github.com/aristath/vqe/internal/config"
	"github.com/aristath/vqe/internal/database"
	"github.com/aristath/vqe/internal/metrics"
	"github.com/aristath/vqe/internal/modules/runs"
	"github.com/aristath/vqe/internal/modules/verification"
	"github.com/aristath/vqe/internal/scheduler"
	"github.com/aristath/vqe/internal/server"
	"github.com/aristath/vqe/pkg/logger"
)

func main() {
	// Load configuration first to get log level
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().
		Str("backend", cfg.Backend).
		Str("method", cfg.Method).
		Str("data_dir", cfg.DataDir).
		Msg("Starting VQE service")

	// Run archive. Durable profile: every stored run survives a crash.
	db, err := database.New(database.Config{
		Path:    cfg.DatabasePath(),
		Profile: database.ProfileDurable,
		Name:    "runs",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open runs database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate runs database")
	}

	// Metrics live on a private registry with the Go and process collectors
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	repo := runs.NewRepository(db, log)
	verifier := verification.New(log)
	service := runs.NewService(repo, verifier, m, runs.DefaultsFromConfig(cfg), log)

	// Background jobs
	sched := scheduler.New(log)
	if err := sched.AddJob(scheduler.CheckpointSchedule, scheduler.NewCheckpointJob(db, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register checkpoint job")
	}
	if cfg.BenchmarkSchedule != "" {
		benchmark := scheduler.NewBenchmarkJob(service, scheduler.DefaultBenchmarkRequest(), cfg.Timeout, log)
		if err := sched.AddJob(cfg.BenchmarkSchedule, benchmark); err != nil {
			log.Fatal().Err(err).Str("schedule", cfg.BenchmarkSchedule).Msg("Failed to register benchmark job")
		}
	}
	sched.Start()

	srv := server.New(server.Config{
		Log:     log,
		DB:      db,
		Metrics: m,
		Runs:    service,
		Jobs:    sched,
		Port:    cfg.Port,
		DevMode: cfg.DevMode,
	})

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop the scheduler first so no benchmark starts mid-shutdown
	if err := sched.Stop(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Scheduler did not drain")
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Flush the WAL before the deferred close
	if err := db.WALCheckpoint("TRUNCATE"); err != nil {
		log.Warn().Err(err).Msg("Final WAL checkpoint failed")
	}

	log.Info().Msg("Server stopped")
}
