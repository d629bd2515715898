package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mirrorwave/tunesync/internal/repositories"
	"github.com/mirrorwave/tunesync/internal/shared"
	"github.com/mirrorwave/tunesync/internal/tasks"
	"github.com/mirrorwave/tunesync/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal UI for library transfer.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
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

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/tunesync-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.logger = fileLogger

	orchestrator := tasks.NewOrchestrator(source, destination, repositories.NewTransferRepository(db), fileLogger)

	model := ui.NewModel(ctx, source, orchestrator, r.userID(), toService)
	p := tea.NewProgram(model)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}

// tuiCommand returns the top-level TUI command for interactive transfers.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch interactive TUI for library transfer",
		Flags: []cli.Flag{
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
		Action: r.TUI,
	}
}
