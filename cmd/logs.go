package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/respect/internal/formatter"
	"github.com/desertthunder/respect/internal/repositories"
)

// LogsList prints a subject's recent sync runs as a table, CSV or JSON.
func (r *Runner) LogsList(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"), formatter.FormatTable, formatter.FormatCSV, formatter.FormatJSON)
	if err != nil {
		return err
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	subject := cmd.String("subject")
	logs, err := repositories.NewSyncLogRepository(db).ListBySubject(subject, int(cmd.Int("limit")))
	if err != nil {
		return err
	}

	if len(logs) == 0 && format == formatter.FormatTable {
		return r.writePlain("no sync runs recorded for %s\n", subject)
	}

	data, err := formatter.FormatSyncLogs(logs, format)
	if err != nil {
		return err
	}
	if err := r.writePlain("%s", data); err != nil {
		return err
	}
	if len(data) > 0 && data[len(data)-1] != '\n' {
		return r.writePlain("\n")
	}
	return nil
}
