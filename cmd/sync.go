package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/mirrorwave/tunesync/internal/formatter"
	"github.com/mirrorwave/tunesync/internal/repositories"
	"github.com/mirrorwave/tunesync/internal/shared"
	"github.com/mirrorwave/tunesync/internal/tasks"
	"github.com/urfave/cli/v3"
)

// SyncRun performs an immediate library sync for one service.
func (r *Runner) SyncRun(ctx context.Context, cmd *cli.Command) error {
	service := cmd.String("service")

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	syncer := tasks.NewLibrarySyncer(r.catalogResolver(), repositories.NewSnapshotRepository(db), r.logger)

	r.writePlain("Syncing %s library...\n", service)
	stats, err := syncer.RunSync(ctx, r.userID(), service)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(stats, true)
	}

	r.writePlain("✓ Sync complete: +%d -%d ~%d (%d items)\n", stats.Added, stats.Removed, stats.Updated, stats.Total)
	return nil
}

// SyncEnqueue queues sync jobs and drains the queue once, blocking until
// every job reaches a terminal outcome.
func (r *Runner) SyncEnqueue(ctx context.Context, cmd *cli.Command) error {
	services := cmd.StringSlice("service")
	if len(services) == 0 {
		return fmt.Errorf("%w: at least one --service", shared.ErrMissingArgument)
	}
	priority := cmd.Int("priority")

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	syncer := tasks.NewLibrarySyncer(r.catalogResolver(), repositories.NewSnapshotRepository(db), r.logger)
	scheduler := tasks.NewScheduler(syncer, repositories.NewSyncAuditRepository(db), tasks.SchedulerOpts{
		MaxRetries: r.config.Sync.MaxRetries,
		BaseDelay:  time.Duration(r.config.Sync.BaseDelayMS) * time.Millisecond,
		MaxJitter:  time.Duration(r.config.Sync.JitterMS) * time.Millisecond,
		Logger:     r.logger,
	})

	for _, service := range services {
		if err := scheduler.Enqueue(r.userID(), service, priority); err != nil {
			return fmt.Errorf("failed to enqueue %s: %w", service, err)
		}
		r.writePlain("→ Queued %s sync (priority %d)\n", service, priority)
	}

	drainCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := scheduler.Start(drainCtx); err != nil {
		return err
	}

	// The queue is empty once every entry has succeeded, exhausted its
	// retries, or is waiting out a backoff that Stop will interrupt.
	idle := 0
	for idle < 2 {
		select {
		case <-drainCtx.Done():
			idle = 2
		case <-time.After(100 * time.Millisecond):
			if len(scheduler.Pending()) == 0 {
				idle++
			} else {
				idle = 0
			}
		}
	}
	scheduler.Stop()

	r.writePlain("✓ Queue drained, see 'tunesync sync status' for outcomes\n")
	return nil
}

// SyncWatch runs the sync scheduler until interrupted, draining queued
// jobs highest-priority-first with retry and audit recording.
func (r *Runner) SyncWatch(ctx context.Context, cmd *cli.Command) error {
	services := cmd.StringSlice("service")
	if len(services) == 0 {
		services = []string{"spotify", "applemusic"}
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	syncer := tasks.NewLibrarySyncer(r.catalogResolver(), repositories.NewSnapshotRepository(db), r.logger)
	scheduler := tasks.NewScheduler(syncer, repositories.NewSyncAuditRepository(db), tasks.SchedulerOpts{
		MaxRetries: r.config.Sync.MaxRetries,
		BaseDelay:  time.Duration(r.config.Sync.BaseDelayMS) * time.Millisecond,
		MaxJitter:  time.Duration(r.config.Sync.JitterMS) * time.Millisecond,
		Logger:     r.logger,
	})

	for i, service := range services {
		// Earlier services get higher priority so order is deterministic.
		if err := scheduler.Enqueue(r.userID(), service, len(services)-i); err != nil {
			return fmt.Errorf("failed to enqueue %s: %w", service, err)
		}
		r.writePlain("→ Queued %s sync\n", service)
	}

	watchCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := scheduler.Start(watchCtx); err != nil {
		return err
	}
	r.writePlain("→ Scheduler running, press Ctrl+C to stop\n")

	interval := time.Duration(cmd.Int("interval")) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-watchCtx.Done():
			r.writePlain("\n→ Stopping scheduler...\n")
			scheduler.Stop()
			r.writePlain("✓ Scheduler stopped\n")
			return nil
		case <-ticker.C:
			for i, service := range services {
				if err := scheduler.Enqueue(r.userID(), service, len(services)-i); err != nil {
					r.logger.Warn("failed to enqueue sync", "service", service, "error", err)
				}
			}
			r.logger.Info("scheduled periodic sync", "services", services)
		}
	}
}

// SyncStatus lists past sync outcomes from the audit table.
func (r *Runner) SyncStatus(ctx context.Context, cmd *cli.Command) error {
	limit := cmd.Int("limit")

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	entries, err := repositories.NewSyncAuditRepository(db).ListByUser(r.userID(), limit)
	if err != nil {
		return fmt.Errorf("failed to list sync history: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(entries, true)
	}

	return r.writePlain("%s", formatter.SyncHistoryText(entries))
}

// syncCommand handles library sync operations.
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Keep library snapshots up to date",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Sync one service's library now",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "service",
						Usage:    "Service to sync (spotify or applemusic)",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.SyncRun,
			},
			{
				Name:  "enqueue",
				Usage: "Queue sync jobs and drain the queue once",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  "service",
						Usage: "Services to sync (repeatable)",
					},
					&cli.IntFlag{
						Name:  "priority",
						Usage: "Job priority, higher runs first",
						Value: 1,
					},
				},
				Action: r.SyncEnqueue,
			},
			{
				Name:  "watch",
				Usage: "Run the sync scheduler until interrupted",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  "service",
						Usage: "Services to sync (repeatable, default both)",
					},
					&cli.IntFlag{
						Name:  "interval",
						Usage: "Seconds between periodic re-syncs",
						Value: 300,
					},
				},
				Action: r.SyncWatch,
			},
			{
				Name:    "status",
				Aliases: []string{"history"},
				Usage:   "Show past sync outcomes",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of records",
						Value: 20,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.SyncStatus,
			},
		},
	}
}
