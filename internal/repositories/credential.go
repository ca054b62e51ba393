package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/respect/internal/models"
)

// CredentialRepository stores upstream OAuth tokens, one row per subject.
type CredentialRepository struct {
	db *sql.DB
}

// NewCredentialRepository creates a new CredentialRepository with the given database connection
func NewCredentialRepository(db *sql.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Get loads the credential for subjectID.
func (r *CredentialRepository) Get(subjectID string) (*models.Credential, error) {
	query := `
		SELECT subject_id, access_token, refresh_token, expires_at, updated_at
		FROM credentials
		WHERE subject_id = ?
	`

	var c models.Credential
	err := r.db.QueryRow(query, subjectID).Scan(&c.SubjectID, &c.AccessToken, &c.RefreshToken, &c.ExpiresAt, &c.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "credential", subjectID)
	}
	return &c, nil
}

// Save inserts or replaces the credential for its subject.
func (r *CredentialRepository) Save(c *models.Credential) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	c.UpdatedAt = time.Now().UTC()

	query := `
		INSERT INTO credentials (subject_id, access_token, refresh_token, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(subject_id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`

	if _, err := r.db.Exec(query, c.SubjectID, c.AccessToken, c.RefreshToken, c.ExpiresAt.UTC(), c.UpdatedAt); err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	return nil
}

// Delete removes the credential for subjectID.
func (r *CredentialRepository) Delete(subjectID string) error {
	result, err := r.db.Exec("DELETE FROM credentials WHERE subject_id = ?", subjectID)
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return notFound(sql.ErrNoRows, "credential", subjectID)
	}
	return nil
}
