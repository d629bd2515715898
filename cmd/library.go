package main

import (
	"context"
	"fmt"
	"time"

	"github.com/mirrorwave/tunesync/internal/formatter"
	"github.com/mirrorwave/tunesync/internal/repositories"
	"github.com/mirrorwave/tunesync/internal/tasks"
	"github.com/urfave/cli/v3"
)

// LibraryShow fetches and prints a service's current library.
func (r *Runner) LibraryShow(ctx context.Context, cmd *cli.Command) error {
	service := cmd.String("service")

	catalog, err := r.resolveCatalog(service)
	if err != nil {
		return err
	}

	r.logger.Info("fetching library", "service", service)
	snapshot, err := catalog.GetLibrary(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch library: %w", err)
	}
	snapshot.CapturedAt = time.Now().UTC()

	if cmd.Bool("json") {
		return r.writeJSON(snapshot, true)
	}

	return r.writePlain("%s", formatter.SnapshotText(snapshot))
}

// LibraryDiff compares the service's current library against the stored
// snapshot without saving anything.
func (r *Runner) LibraryDiff(ctx context.Context, cmd *cli.Command) error {
	service := cmd.String("service")

	catalog, err := r.resolveCatalog(service)
	if err != nil {
		return err
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	previous, err := repositories.NewSnapshotRepository(db).Get(r.userID(), service)
	if err != nil {
		return fmt.Errorf("failed to load stored snapshot: %w", err)
	}

	current, err := catalog.GetLibrary(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch library: %w", err)
	}

	stats := tasks.Diff(previous, current)

	if cmd.Bool("json") {
		return r.writeJSON(stats, true)
	}

	if previous == nil {
		r.writePlain("No stored snapshot for %s, everything counts as new.\n", service)
	} else {
		r.writePlain("Compared against snapshot from %s\n", previous.CapturedAt.Format(time.RFC3339))
	}
	r.writePlain("Added: %d  Removed: %d  Updated: %d  (current total %d)\n", stats.Added, stats.Removed, stats.Updated, stats.Total)

	return nil
}

// libraryCommand handles library inspection operations.
func libraryCommand(r *Runner) *cli.Command {
	serviceFlag := func() *cli.StringFlag {
		return &cli.StringFlag{
			Name:     "service",
			Usage:    "Service to inspect (spotify or applemusic)",
			Required: true,
		}
	}

	return &cli.Command{
		Name:    "library",
		Aliases: []string{"lib"},
		Usage:   "Inspect service libraries",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Fetch and print a service's library",
				Flags: []cli.Flag{
					serviceFlag(),
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.LibraryShow,
			},
			{
				Name:  "diff",
				Usage: "Compare the live library against the stored snapshot",
				Flags: []cli.Flag{
					serviceFlag(),
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.LibraryDiff,
			},
		},
	}
}
