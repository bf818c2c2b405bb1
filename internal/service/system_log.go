package service

import (
	"context"

	apperrors "github.com/macromaster/ingest-server-go/internal/errors"
	"github.com/macromaster/ingest-server-go/internal/model"
	"github.com/macromaster/ingest-server-go/internal/repository"
)

type SystemLogService struct {
	logRepo repository.SystemLogRepository
}

func NewSystemLogService(logRepo repository.SystemLogRepository) *SystemLogService {
	return &SystemLogService{logRepo: logRepo}
}

func (s *SystemLogService) List(ctx context.Context, filter model.SystemLogFilter) ([]model.SystemLog, error) {
	switch filter.Level {
	case "", model.LogLevelInfo, model.LogLevelWarning, model.LogLevelError, model.LogLevelCritical:
	default:
		return nil, apperrors.InvalidInput("level", "must be one of INFO, WARNING, ERROR, CRITICAL")
	}
	filter.Limit = clampLimit(filter.Limit)

	logs, err := s.logRepo.List(ctx, filter)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return logs, nil
}

func (s *SystemLogService) Resolve(ctx context.Context, id int64) error {
	ok, err := s.logRepo.Resolve(ctx, id)
	if err != nil {
		return apperrors.Database(err)
	}
	if !ok {
		return apperrors.NotFound("Log entry")
	}
	return nil
}
