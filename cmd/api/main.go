package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ledgerlink/internal/domain/webhook"
	"ledgerlink/internal/interfaces/scheduler"
	"ledgerlink/internal/shared/config"
	"ledgerlink/internal/shared/telemetry"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := context.Background()

	if cfg.Telemetry.Enabled {
		shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
			ServiceName:  cfg.Telemetry.ServiceName,
			Environment:  cfg.Telemetry.Environment,
			OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
			MetricsPort:  cfg.Telemetry.MetricsPort,
			SampleRatio:  cfg.Telemetry.SampleRatio,
		})
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTelemetry(shutdownCtx); err != nil {
				log.Printf("Error shutting down telemetry: %v", err)
			}
		}()
	}

	deps, err := NewDependencies(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	sched, err := startReplayScheduler(deps, cfg)
	if err != nil {
		return err
	}

	server := NewServer(SetupRoutes(deps, cfg), cfg, sched)
	serveErr := server.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-serveErr:
		server.Shutdown(30 * time.Second)
		return fmt.Errorf("server failed: %w", err)
	}

	server.Shutdown(30 * time.Second)
	return nil
}

// startReplayScheduler retries failed webhook events in the background.
// It returns nil when replay is disabled.
func startReplayScheduler(deps *Dependencies, cfg *config.Config) (*scheduler.Scheduler, error) {
	if !cfg.Replay.Enabled {
		log.Println("Webhook replay scheduler is disabled")
		return nil, nil
	}

	provider := scheduler.NewReplayProvider(deps.Router, webhook.StatusFailed, cfg.Replay.BatchSize, cfg.Replay.MaxAttempts)
	sched, err := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Interval:    cfg.Replay.Interval,
		WorkerCount: cfg.Replay.Workers,
		QueueSize:   cfg.Replay.QueueSize,
		JobProvider: provider.Jobs,
		OnRejected:  provider.Forget,
	})
	if err != nil {
		return nil, err
	}

	sched.Start()
	return sched, nil
}
