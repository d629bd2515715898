package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/mirrorwave/tunesync/internal/formatter"
	"github.com/mirrorwave/tunesync/internal/models"
	"github.com/mirrorwave/tunesync/internal/repositories"
	"github.com/mirrorwave/tunesync/internal/tasks"
	"github.com/urfave/cli/v3"
)

// TransferRun copies one album or playlist from a source service to a
// destination service.
func (r *Runner) TransferRun(ctx context.Context, cmd *cli.Command) error {
	fromService := cmd.String("from")
	toService := cmd.String("to")

	source, err := r.resolveCatalog(fromService)
	if err != nil {
		return err
	}
	destination, err := r.resolveCatalog(toService)
	if err != nil {
		return err
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	req := tasks.TransferRequest{
		UserID:      r.userID(),
		Kind:        models.ItemKind(cmd.String("kind")),
		SourceID:    cmd.String("id"),
		Name:        cmd.String("name"),
		Artist:      cmd.String("artist"),
		UPC:         cmd.String("upc"),
		Description: cmd.String("description"),
	}

	r.logger.Info("starting transfer", "kind", req.Kind, "source", req.SourceID, "from", fromService, "to", toService)
	r.writePlain("Starting %s transfer...\n", req.Kind)
	r.writePlain("Source: %s (%s)\n", req.SourceID, fromService)
	r.writePlain("Destination: %s\n\n", toService)

	progressCh := make(chan tasks.StageUpdate, 50)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for update := range progressCh {
			switch update.Stage {
			case tasks.StageFetching:
				r.writePlain("📥 %s\n", update.Message)
			case tasks.StageCreating:
				r.writePlain("📝 %s\n", update.Message)
			case tasks.StageSearching:
				r.writePlain("🔍 %s\n", update.Message)
			case tasks.StageAdding:
				r.writePlain("➕ %s\n", update.Message)
			}
		}
	}()

	orchestrator := tasks.NewOrchestrator(source, destination, repositories.NewTransferRepository(db), r.logger)
	result, err := orchestrator.Run(ctx, req, progressCh)
	close(progressCh)
	wg.Wait()

	if err != nil {
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader("Transfer Complete!")
	r.writePlain("%s\n", result.Message)
	if result.AlreadyOwned {
		r.writePlain("Already in destination library, nothing added.\n")
	} else {
		r.writePlain("Destination ID: %s\n", result.DestinationID)
	}
	if result.Requested > 0 {
		r.writePlain("Matched: %d/%d tracks\n", result.Matched, result.Requested)
	}

	return nil
}

// TransferHistory lists past transfers from the audit table.
func (r *Runner) TransferHistory(ctx context.Context, cmd *cli.Command) error {
	limit := cmd.Int("limit")
	useJSON := cmd.Bool("json")
	useCSV := cmd.Bool("csv")

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	records, err := repositories.NewTransferRepository(db).ListByUser(r.userID(), limit)
	if err != nil {
		return fmt.Errorf("failed to list transfers: %w", err)
	}

	if useJSON {
		return r.writeJSON(records, true)
	}

	if useCSV {
		path, err := formatter.WriteTransferHistoryCSV(records, cmd.String("output"))
		if err != nil {
			return fmt.Errorf("failed to write CSV: %w", err)
		}
		r.writePlain("✓ Transfer history written to %s\n", path)
		return nil
	}

	return r.writePlain("%s", formatter.TransferHistoryText(records))
}

// transferCommand handles album and playlist transfer operations.
func transferCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "transfer",
		Usage: "Transfer albums and playlists between services",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Transfer one album or playlist",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "kind",
						Usage:    "Item kind ('album' or 'playlist')",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Source item ID",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "name",
						Usage: "Item name, used for matching and playlist creation",
					},
					&cli.StringFlag{
						Name:  "artist",
						Usage: "Album artist, used for matching",
					},
					&cli.StringFlag{
						Name:  "upc",
						Usage: "Album UPC for exact-code matching",
					},
					&cli.StringFlag{
						Name:  "description",
						Usage: "Description for the created playlist",
					},
					&cli.StringFlag{
						Name:  "from",
						Usage: "Source service (spotify or applemusic)",
						Value: "spotify",
					},
					&cli.StringFlag{
						Name:  "to",
						Usage: "Destination service (spotify or applemusic)",
						Value: "applemusic",
					},
				},
				Action: r.TransferRun,
			},
			{
				Name:  "history",
				Usage: "Show past transfers",
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
					&cli.BoolFlag{
						Name:  "csv",
						Usage: "Write history to a CSV file",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "CSV output path",
					},
				},
				Action: r.TransferHistory,
			},
		},
	}
}
