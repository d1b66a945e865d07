package main

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"ledgerlink/internal/domain/connection"
	"ledgerlink/internal/domain/notification"
	"ledgerlink/internal/domain/servicedata"
	"ledgerlink/internal/domain/transaction"
	"ledgerlink/internal/domain/webhook"
	"ledgerlink/internal/infrastructure/crypto"
	"ledgerlink/internal/infrastructure/postgres"
	"ledgerlink/internal/interfaces/scheduler"
)

type replayOptions struct {
	status  string
	id      string
	workers int
	limit   int
	timeout time.Duration
}

func newReplayCmd() *cobra.Command {
	var opts replayOptions

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-dispatch stored webhook events",
		Long: `Re-dispatch stored webhook events without re-verifying their signatures.

Events are read from the webhook audit log. Already processed events are skipped.`,
		Example: `  admin replay --status=failed
  admin replay --status=pending --workers=8 --limit=500
  admin replay --id=3f1c2a9e-0b7d-4c55-9d57-2b1f0e6f8a11`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.status, "status", string(webhook.StatusFailed), "Replay events in this status (failed or pending)")
	cmd.Flags().StringVar(&opts.id, "id", "", "Replay a single event by id")
	cmd.Flags().IntVar(&opts.workers, "workers", 4, "Number of concurrent workers")
	cmd.Flags().IntVar(&opts.limit, "limit", 100, "Maximum number of events to replay")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 30*time.Minute, "Timeout for the whole run")
	return cmd
}

func runReplay(cmd *cobra.Command, opts replayOptions) error {
	status := webhook.Status(opts.status)
	if status != webhook.StatusFailed && status != webhook.StatusPending {
		return fmt.Errorf("--status must be %q or %q", webhook.StatusFailed, webhook.StatusPending)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	db, err := postgres.New(ctx, cfg.Database.ConnectionString(), postgres.PoolConfig{MaxOpenConns: opts.workers + 2})
	if err != nil {
		return err
	}
	defer db.Close()

	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		return err
	}

	verifier, err := webhook.NewVerifier(cfg.Provider.WebhookSecret)
	if err != nil {
		return err
	}

	router := webhook.NewRouter(webhook.RouterDeps{
		Verifier:     verifier,
		Connections:  connection.NewService(postgres.NewConnectionRepository(db), notification.NopNotifier{}),
		Transactions: transaction.NewSynchronizer(postgres.NewTransactionRepository(db)),
		Snapshots:    servicedata.NewService(postgres.NewSnapshotRepository(db)),
		Events:       postgres.NewWebhookEventRepository(db, encryptor),
	})

	if opts.id != "" {
		if err := router.Replay(ctx, opts.id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Replayed %s\n", opts.id)
		return nil
	}

	records, err := router.PendingReplays(ctx, status, opts.limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		log.Printf("No %s webhook events to replay", status)
		return nil
	}

	log.Printf("Replaying %d %s event(s) with %d workers", len(records), status, opts.workers)
	start := time.Now()

	var (
		mu       sync.Mutex
		failures []string
	)
	done := func(record *webhook.EventRecord, err error) {
		if err == nil {
			return
		}
		mu.Lock()
		failures = append(failures, fmt.Sprintf("%s (%s): %v", record.ID, record.EventType, err))
		mu.Unlock()
	}

	pool := scheduler.NewWorkerPool(opts.workers, 0, len(records))
	pool.Start()
	jobs := make([]scheduler.Job, 0, len(records))
	for _, record := range records {
		jobs = append(jobs, scheduler.NewReplayJob(record, router, done))
	}
	pool.SubmitBatch(jobs)
	pool.Shutdown()

	printReplaySummary(cmd, len(records), failures, time.Since(start))
	if len(failures) > 0 {
		return fmt.Errorf("%d of %d event(s) failed to replay", len(failures), len(records))
	}
	return nil
}

func printReplaySummary(cmd *cobra.Command, total int, failures []string, elapsed time.Duration) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n=== Replay ===\n")
	fmt.Fprintf(out, "  Events:    %d\n", total)
	fmt.Fprintf(out, "  Succeeded: %d\n", total-len(failures))
	fmt.Fprintf(out, "  Failed:    %d\n", len(failures))
	fmt.Fprintf(out, "  Elapsed:   %v\n", elapsed.Round(time.Millisecond))

	for i, f := range failures {
		if i >= 5 {
			fmt.Fprintf(out, "    ... and %d more errors\n", len(failures)-5)
			break
		}
		fmt.Fprintf(out, "    - %s\n", f)
	}
}
