package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/macromaster/ingest-server-go/internal/audit"
	"github.com/macromaster/ingest-server-go/internal/database"
	apperrors "github.com/macromaster/ingest-server-go/internal/errors"
	"github.com/macromaster/ingest-server-go/internal/model"
	"github.com/macromaster/ingest-server-go/internal/repository"
	"github.com/macromaster/ingest-server-go/internal/telemetry"
)

const (
	sessionEventStarted   = "started"
	sessionEventEnded     = "ended"
	sessionEventDuplicate = "duplicate"
	sessionEventUnknown   = "unknown_session"
)

type SessionService struct {
	db          *database.DB
	sessionRepo repository.SessionRepository
	audit       *audit.Logger
	now         func() time.Time
}

func NewSessionService(
	db *database.DB,
	sessionRepo repository.SessionRepository,
	auditLogger *audit.Logger,
) *SessionService {
	return &SessionService{
		db:          db,
		sessionRepo: sessionRepo,
		audit:       auditLogger,
		now:         time.Now,
	}
}

func (s *SessionService) StartSession(ctx context.Context, sessionID, username, displayMode string) (*model.Session, error) {
	if sessionID == "" {
		return nil, apperrors.MissingRequired("session_id")
	}
	if username == "" {
		return nil, apperrors.MissingRequired("username")
	}

	session, err := s.sessionRepo.Create(ctx, model.CreateSessionParams{
		SessionID:   sessionID,
		Username:    username,
		DisplayMode: displayMode,
		StartTime:   s.now(),
	})
	if errors.Is(err, repository.ErrDuplicate) {
		telemetry.RecordSessionEvent(sessionEventDuplicate)
		return nil, apperrors.DuplicateSession(sessionID)
	}
	if err != nil {
		s.audit.Error(ctx, model.ComponentIngestion, fmt.Sprintf("Failed to start session %s", sessionID), err)
		return nil, apperrors.Persistence("Failed to start session", err)
	}

	telemetry.RecordSessionEvent(sessionEventStarted)
	s.audit.Info(ctx, model.ComponentIngestion, fmt.Sprintf("Session %s started for user %s", sessionID, username))

	return session, nil
}

// EndSession closes a session and records its cumulative active time, which
// sums every interaction the session ever recorded rather than the metrics
// window. It returns false without error for an unknown id.
func (s *SessionService) EndSession(ctx context.Context, sessionID string) (bool, error) {
	if sessionID == "" {
		return false, apperrors.MissingRequired("session_id")
	}

	var (
		ended    bool
		activeMs int64
	)
	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		repo := s.sessionRepo.WithTx(tx)

		total, err := repo.SumExecutionTime(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("sum execution time: %w", err)
		}
		activeMs = total

		ended, err = repo.End(ctx, sessionID, s.now(), total)
		if err != nil {
			return fmt.Errorf("end session: %w", err)
		}
		return nil
	})
	if err != nil {
		s.audit.Error(ctx, model.ComponentIngestion, fmt.Sprintf("Failed to end session %s", sessionID), err)
		return false, apperrors.Persistence("Failed to end session", err)
	}

	if !ended {
		telemetry.RecordSessionEvent(sessionEventUnknown)
		log.Warn().Str("sessionId", sessionID).Msg("end requested for unknown session")
		return false, nil
	}

	telemetry.RecordSessionEvent(sessionEventEnded)
	s.audit.Log(ctx, audit.Entry{
		Level:     model.LogLevelInfo,
		Component: model.ComponentIngestion,
		Message:   fmt.Sprintf("Session %s ended", sessionID),
		Fields:    map[string]interface{}{"total_active_time_ms": activeMs},
	})

	return true, nil
}

// GetSession returns nil without error when the session does not exist.
func (s *SessionService) GetSession(ctx context.Context, sessionID string) (*model.Session, error) {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return session, nil
}

func (s *SessionService) ListSessions(ctx context.Context, activeOnly bool, limit int) ([]model.Session, error) {
	sessions, err := s.sessionRepo.List(ctx, activeOnly, clampLimit(limit))
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if sessions == nil {
		sessions = []model.Session{}
	}
	return sessions, nil
}

func (s *SessionService) CountActive(ctx context.Context) (int, error) {
	count, err := s.sessionRepo.CountActive(ctx)
	if err != nil {
		return 0, apperrors.Database(err)
	}
	return count, nil
}
