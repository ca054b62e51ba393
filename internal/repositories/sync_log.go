package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/respect/internal/models"
	"github.com/desertthunder/respect/internal/shared"
)

// SyncLogRepository appends and reads sync audit rows. Rows are never updated or deleted.
type SyncLogRepository struct {
	db *sql.DB
}

// NewSyncLogRepository creates a new SyncLogRepository with the given database connection
func NewSyncLogRepository(db *sql.DB) *SyncLogRepository {
	return &SyncLogRepository{db: db}
}

// Create appends entry, assigning its ID and timestamp when unset.
func (r *SyncLogRepository) Create(entry *models.SyncLog) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if entry.ID == "" {
		entry.ID = shared.GenerateID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO sync_logs (id, subject_id, sync_type, status, items_processed, items_failed, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		entry.ID,
		entry.SubjectID,
		string(entry.SyncType),
		string(entry.Status),
		entry.ItemsProcessed,
		entry.ItemsFailed,
		nullString(entry.ErrorMessage),
		entry.CreatedAt,
	)
	if err != nil {
		return insertErr(err, "sync log", entry.ID)
	}
	return nil
}

// ListBySubject returns a subject's most recent entries, newest first. A limit of zero returns all.
func (r *SyncLogRepository) ListBySubject(subjectID string, limit int) ([]*models.SyncLog, error) {
	query := `
		SELECT id, subject_id, sync_type, status, items_processed, items_failed, error_message, created_at
		FROM sync_logs
		WHERE subject_id = ?
		ORDER BY created_at DESC, rowid DESC
	`
	args := []any{subjectID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync logs: %w", err)
	}
	defer rows.Close()

	var entries []*models.SyncLog
	for rows.Next() {
		var (
			e        models.SyncLog
			syncType string
			status   string
			errMsg   sql.NullString
		)
		err := rows.Scan(&e.ID, &e.SubjectID, &syncType, &status, &e.ItemsProcessed, &e.ItemsFailed, &errMsg, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync log: %w", err)
		}
		e.SyncType = models.SyncType(syncType)
		e.Status = models.SyncStatus(status)
		e.ErrorMessage = errMsg.String
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return entries, nil
}
