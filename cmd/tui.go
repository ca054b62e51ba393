package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/respect/internal/repositories"
	"github.com/desertthunder/respect/internal/shared"
	"github.com/desertthunder/respect/internal/ui"
)

// TUI launches the interactive terminal UI for running syncs.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/respect-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	shared.SetLogLevel(fileLogger, r.config.Log.ParsedLevel())
	r.SetLogger(fileLogger)

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	orchestrator, err := r.newOrchestrator(db)
	if err != nil {
		return err
	}

	model := ui.NewModel(ctx, cmd.String("subject"), orchestrator, repositories.NewPlaylistRepository(db))
	p := tea.NewProgram(model, tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
