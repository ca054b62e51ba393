package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/respect/internal/server"
)

// Serve starts the sync RPC server and blocks until the context is cancelled.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	tokens, err := server.NewCallerTokens(r.config.Server.JWTSecret)
	if err != nil {
		return err
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	orchestrator, err := r.newOrchestrator(db)
	if err != nil {
		return err
	}

	srv := server.New(r.config.Server, orchestrator, tokens, r.logger)
	if err := srv.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// TokenIssue prints a signed caller token for a subject.
func (r *Runner) TokenIssue(ctx context.Context, cmd *cli.Command) error {
	tokens, err := server.NewCallerTokens(r.config.Server.JWTSecret)
	if err != nil {
		return err
	}

	token, err := tokens.Issue(cmd.String("subject"), cmd.Duration("ttl"))
	if err != nil {
		return err
	}
	return r.writePlain("%s\n", token)
}
