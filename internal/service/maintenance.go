package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/macromaster/ingest-server-go/internal/audit"
	"github.com/macromaster/ingest-server-go/internal/database"
	apperrors "github.com/macromaster/ingest-server-go/internal/errors"
	"github.com/macromaster/ingest-server-go/internal/model"
	"github.com/macromaster/ingest-server-go/internal/repository"
	"github.com/macromaster/ingest-server-go/internal/telemetry"
)

const (
	jobCleanup = "cleanup"
	jobBackup  = "backup"
)

type CleanupResult struct {
	Interactions int64 `json:"interactions_deleted"`
	Sessions     int64 `json:"sessions_deleted"`
	SystemLogs   int64 `json:"system_logs_deleted"`
}

type MaintenanceService struct {
	db              *database.DB
	interactionRepo repository.InteractionRepository
	sessionRepo     repository.SessionRepository
	logRepo         repository.SystemLogRepository
	audit           *audit.Logger
	logRetention    int
	now             func() time.Time
}

func NewMaintenanceService(
	db *database.DB,
	interactionRepo repository.InteractionRepository,
	sessionRepo repository.SessionRepository,
	logRepo repository.SystemLogRepository,
	auditLogger *audit.Logger,
	logRetention int,
) *MaintenanceService {
	return &MaintenanceService{
		db:              db,
		interactionRepo: interactionRepo,
		sessionRepo:     sessionRepo,
		logRepo:         logRepo,
		audit:           auditLogger,
		logRetention:    logRetention,
		now:             time.Now,
	}
}

// CleanupOldData removes interactions older than daysToKeep, closed sessions
// started before the same cutoff that own no interactions, and all but the
// newest system log entries, so that the table holds at most logRetention
// rows once the outcome entry is written. Each deletion commits on its own; a failure in
// one does not stop the others.
func (s *MaintenanceService) CleanupOldData(ctx context.Context, daysToKeep int) (*CleanupResult, error) {
	if daysToKeep < 0 {
		return nil, apperrors.InvalidInput("days", "must not be negative")
	}

	cutoff := s.now().Add(-time.Duration(daysToKeep) * 24 * time.Hour)
	result := &CleanupResult{}
	var errs []error

	n, err := s.interactionRepo.DeleteBefore(ctx, cutoff)
	if err != nil {
		errs = append(errs, fmt.Errorf("delete interactions: %w", err))
	}
	result.Interactions = n

	n, err = s.sessionRepo.DeleteInactiveBefore(ctx, cutoff)
	if err != nil {
		errs = append(errs, fmt.Errorf("delete sessions: %w", err))
	}
	result.Sessions = n

	// One slot is left for the outcome entry written below.
	n, err = s.logRepo.TrimToNewest(ctx, max(s.logRetention-1, 0))
	if err != nil {
		errs = append(errs, fmt.Errorf("trim system logs: %w", err))
	}
	result.SystemLogs = n

	if err := errors.Join(errs...); err != nil {
		telemetry.RecordMaintenance(jobCleanup, telemetry.ResultFailure)
		s.audit.Error(ctx, model.ComponentDatabase, "Cleanup failed", err)
		return result, apperrors.Persistence("Cleanup failed", err)
	}

	telemetry.RecordMaintenance(jobCleanup, telemetry.ResultSuccess)
	s.audit.Info(ctx, model.ComponentDatabase, fmt.Sprintf(
		"Cleanup completed: %d interactions, %d sessions, %d log entries removed (kept %d days)",
		result.Interactions, result.Sessions, result.SystemLogs, daysToKeep,
	))

	return result, nil
}

// BackupDatabase writes a point-in-time copy beside the database file and
// returns its path. On failure no backup file is left behind.
func (s *MaintenanceService) BackupDatabase(ctx context.Context) (string, error) {
	path, err := s.db.Backup(ctx)
	if err != nil {
		telemetry.RecordMaintenance(jobBackup, telemetry.ResultFailure)
		s.audit.Error(ctx, model.ComponentDatabase, "Backup failed", err)
		return "", apperrors.BackupFailed(err)
	}

	telemetry.RecordMaintenance(jobBackup, telemetry.ResultSuccess)
	s.audit.Info(ctx, model.ComponentDatabase, fmt.Sprintf("Database backed up to %s", path))
	return path, nil
}

func (s *MaintenanceService) Info(ctx context.Context) (*database.Info, error) {
	info, err := s.db.Info(ctx)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return info, nil
}
