package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/respect/internal/models"
	"github.com/desertthunder/respect/internal/tasks"
)

// SyncRun runs one sync pipeline for a subject and prints its progress and result.
//
// The sync type is passed through unparsed so that an unknown type is rejected, and audited, by the engine.
func (r *Runner) SyncRun(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	orchestrator, err := r.newOrchestrator(db)
	if err != nil {
		return err
	}

	subject := cmd.String("subject")
	req := tasks.Request{
		SubjectID:  subject,
		SyncType:   models.SyncType(cmd.String("type")),
		PlaylistID: cmd.String("playlist"),
		ArtistID:   cmd.String("artist"),
		CallerID:   subject,
	}
	asJSON := cmd.Bool("json")

	r.logger.Info("starting sync", "subject", subject, "type", req.SyncType)

	progress := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			if !asJSON {
				r.writeProgress(update)
			}
		}
	}()

	result := orchestrator.Run(ctx, req, progress)
	close(progress)
	<-done

	if asJSON {
		if err := r.writeJSON(result, true); err != nil {
			return err
		}
	} else {
		r.writePlain("\n")
		r.writePlainHeader(fmt.Sprintf("Sync %s: %s", req.SyncType, outcome(result)))
		r.writePlain("Processed: %d\n", result.Processed)
		r.writePlain("Failed:    %d\n", result.Failed)
		if result.Error != "" {
			r.writePlain("Error:     %s\n", result.Error)
		}
	}

	if result.Success {
		return nil
	}
	if result.Err != nil {
		return fmt.Errorf("%s sync failed: %w", req.SyncType, result.Err)
	}
	return errors.New(result.Error)
}

// SyncTypes lists every sync pipeline with its description.
func (r *Runner) SyncTypes(ctx context.Context, cmd *cli.Command) error {
	for _, t := range models.SyncTypes {
		var args string
		switch {
		case t.NeedsPlaylist():
			args = " --playlist <id>"
		case t.NeedsArtist():
			args = " --artist <id>"
		}
		if err := r.writePlain("%-16s %s%s\n", t, t.Description(), args); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) writeProgress(update tasks.ProgressUpdate) {
	if update.Message == "" {
		return
	}

	switch update.State {
	case tasks.Fetching:
		r.writePlain("📥 %s\n", update.Message)
	case tasks.Extracting:
		r.writePlain("🔍 %s\n", update.Message)
	case tasks.Persisting:
		if update.Total > 0 {
			r.writePlain("   [%d/%d] %s\n", update.Step, update.Total, update.Message)
		} else {
			r.writePlain("   %s\n", update.Message)
		}
	case tasks.Failed:
		r.writePlain("✗ %s\n", update.Message)
	default:
		r.writePlain("%s\n", update.Message)
	}
}

func outcome(result tasks.SyncResult) string {
	switch {
	case !result.Success:
		return "failed"
	case result.Failed > 0:
		return "partial"
	default:
		return "complete"
	}
}
