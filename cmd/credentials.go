package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/respect/internal/models"
	"github.com/desertthunder/respect/internal/repositories"
)

// CredentialsSet stores a subject's Spotify tokens.
func (r *Runner) CredentialsSet(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	subject := cmd.String("subject")
	cred := &models.Credential{
		SubjectID:    subject,
		AccessToken:  cmd.String("access-token"),
		RefreshToken: cmd.String("refresh-token"),
		ExpiresAt:    time.Now().Add(cmd.Duration("expires-in")),
	}

	if err := repositories.NewCredentialRepository(db).Save(cred); err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}

	r.logger.Info("credential saved", "subject", subject)
	return r.writePlain("✓ credential saved for %s (expires %s)\n", subject, cred.ExpiresAt.Format(time.RFC3339))
}

// CredentialsShow prints a subject's credential with tokens masked.
func (r *Runner) CredentialsShow(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	cred, err := repositories.NewCredentialRepository(db).Get(cmd.String("subject"))
	if err != nil {
		return err
	}

	status := "valid"
	if cred.ExpiresWithin(time.Now(), r.config.Sync.TokenSkew()) {
		status = "expired (refreshed on next sync)"
	}

	r.writePlainHeader("Credential: " + cred.SubjectID)
	r.writePlain("Access token:  %s\n", mask(cred.AccessToken))
	r.writePlain("Refresh token: %s\n", mask(cred.RefreshToken))
	r.writePlain("Expires at:    %s (%s)\n", cred.ExpiresAt.Format(time.RFC3339), status)
	r.writePlain("Updated at:    %s\n", cred.UpdatedAt.Format(time.RFC3339))
	return nil
}

// CredentialsDelete removes a subject's credential.
func (r *Runner) CredentialsDelete(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	subject := cmd.String("subject")
	if err := repositories.NewCredentialRepository(db).Delete(subject); err != nil {
		return err
	}
	return r.writePlain("✓ credential removed for %s\n", subject)
}

// mask keeps the first four characters of a secret.
func mask(s string) string {
	switch {
	case s == "":
		return "(none)"
	case len(s) <= 4:
		return "****"
	default:
		return s[:4] + "****"
	}
}
