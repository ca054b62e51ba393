package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/respect/internal/models"
	"github.com/desertthunder/respect/internal/shared"
)

// SyncLogRecorder is the storage side of [SyncLogger].
type SyncLogRecorder interface {
	Create(entry *models.SyncLog) error
}

// SyncLogger appends one audit row per run.
type SyncLogger struct {
	repo   SyncLogRecorder
	logger *log.Logger
	now    func() time.Time
}

// NewSyncLogger creates a SyncLogger writing to repo.
func NewSyncLogger(repo SyncLogRecorder, logger *log.Logger) *SyncLogger {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &SyncLogger{repo: repo, logger: logger, now: time.Now}
}

// Record writes the outcome of a run. A failed write is logged and otherwise ignored so that it
// never hides the run's own result.
func (s *SyncLogger) Record(ctx context.Context, subjectID string, syncType models.SyncType, res SyncResult) bool {
	entry := &models.SyncLog{
		SubjectID:      subjectID,
		SyncType:       syncType,
		Status:         models.StatusFor(res.Success, res.Failed),
		ItemsProcessed: res.Processed,
		ItemsFailed:    res.Failed,
		ErrorMessage:   res.Error,
		CreatedAt:      s.now().UTC(),
	}

	err := ctx.Err()
	if err == nil {
		err = s.repo.Create(entry)
	}
	if err != nil {
		s.logger.Error("sync log not written", "subject", subjectID, "sync_type", syncType,
			"error", fmt.Errorf("%w: %w", shared.ErrLogging, err))
		return false
	}
	return true
}
