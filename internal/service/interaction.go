package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/macromaster/ingest-server-go/internal/audit"
	"github.com/macromaster/ingest-server-go/internal/database"
	apperrors "github.com/macromaster/ingest-server-go/internal/errors"
	"github.com/macromaster/ingest-server-go/internal/live"
	"github.com/macromaster/ingest-server-go/internal/model"
	"github.com/macromaster/ingest-server-go/internal/repository"
	"github.com/macromaster/ingest-server-go/internal/telemetry"
)

type MetricsRecomputer interface {
	Recompute(ctx context.Context, sessionID string) (*model.MetricsSnapshot, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event live.Event) error
}

type InteractionService struct {
	db              *database.DB
	interactionRepo repository.InteractionRepository
	metrics         MetricsRecomputer
	publisher       EventPublisher
	audit           *audit.Logger
	now             func() time.Time
}

// NewInteractionService wires the recorder. publisher may be nil, in which
// case no live updates are emitted.
func NewInteractionService(
	db *database.DB,
	interactionRepo repository.InteractionRepository,
	metrics MetricsRecomputer,
	publisher EventPublisher,
	auditLogger *audit.Logger,
) *InteractionService {
	return &InteractionService{
		db:              db,
		interactionRepo: interactionRepo,
		metrics:         metrics,
		publisher:       publisher,
		audit:           auditLogger,
		now:             time.Now,
	}
}

// RecordInteraction stores one interaction and its degradation counts as a
// unit, then refreshes the session's cached metrics. A failed write leaves no
// rows behind and is reported as a persistence error. A failed refresh is
// logged but does not fail the call, since the interaction itself is durable.
func (s *InteractionService) RecordInteraction(ctx context.Context, sessionID string, payload model.InteractionPayload) (int64, error) {
	if sessionID == "" {
		telemetry.RecordInteraction(telemetry.ResultInvalid)
		return 0, apperrors.MissingRequired("session_id")
	}
	if payload.InteractionType == "" {
		telemetry.RecordInteraction(telemetry.ResultInvalid)
		return 0, apperrors.MissingRequired("interaction_type")
	}

	params := s.buildParams(sessionID, payload)
	counts := resolveDegradationCounts(payload.DegradationCounts, payload.DegradationAssignments)

	var interactionID int64
	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		repo := s.interactionRepo.WithTx(tx)

		id, err := repo.Create(ctx, params)
		if err != nil {
			return fmt.Errorf("insert interaction: %w", err)
		}
		if err := repo.CreateDegradationCounts(ctx, id, counts); err != nil {
			return err
		}
		interactionID = id
		return nil
	})
	if err != nil {
		telemetry.RecordInteraction(telemetry.ResultFailure)
		s.audit.Error(ctx, model.ComponentIngestion, fmt.Sprintf("Failed to record interaction for session %s", sessionID), err)
		return 0, apperrors.Persistence("Failed to record interaction", err)
	}
	telemetry.RecordInteraction(telemetry.ResultSuccess)

	snapshot, err := s.metrics.Recompute(ctx, sessionID)
	if err != nil {
		s.audit.Error(ctx, model.ComponentIngestion, fmt.Sprintf("Failed to update metrics for session %s", sessionID), err)
		return interactionID, nil
	}

	s.publish(ctx, sessionID, snapshot)

	log.Debug().
		Str("sessionId", sessionID).
		Int64("interactionId", interactionID).
		Str("type", payload.InteractionType).
		Msg("interaction recorded")

	return interactionID, nil
}

func (s *InteractionService) buildParams(sessionID string, payload model.InteractionPayload) model.CreateInteractionParams {
	ts := s.now()
	if payload.Timestamp != nil {
		ts = payload.Timestamp.Time()
	}

	displayMode := payload.DisplayMode
	if displayMode == "" {
		displayMode = payload.CanvasMode
	}

	return model.CreateInteractionParams{
		SessionID:              sessionID,
		Timestamp:              ts,
		InteractionType:        payload.InteractionType,
		ButtonKey:              payload.ButtonKey,
		Layer:                  payload.Layer,
		ExecutionTimeMs:        payload.ExecutionTimeMs,
		TotalBoxes:             payload.TotalBoxes,
		DegradationAssignments: payload.DegradationAssignments,
		SeverityLevel:          payload.SeverityLevel,
		DisplayMode:            displayMode,
		SessionActiveTimeMs:    payload.SessionActiveTimeMs,
		BreakModeActive:        payload.BreakModeActive,
	}
}

func (s *InteractionService) publish(ctx context.Context, sessionID string, snapshot *model.MetricsSnapshot) {
	if s.publisher == nil {
		return
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		log.Error().Err(err).Str("sessionId", sessionID).Msg("failed to encode live update")
		return
	}

	if err := s.publisher.Publish(ctx, live.Event{
		Type:      live.EventMetricsUpdated,
		SessionID: sessionID,
		Data:      data,
	}); err != nil {
		log.Warn().Err(err).Str("sessionId", sessionID).Msg("failed to publish live update")
	}
}

// RecentInteractions returns the newest interactions first. limit defaults
// to 100 and is capped at 1000.
func (s *InteractionService) RecentInteractions(ctx context.Context, sessionID string, limit int) ([]model.Interaction, error) {
	interactions, err := s.interactionRepo.FindRecent(ctx, sessionID, clampLimit(limit))
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return interactions, nil
}

func (s *InteractionService) DegradationCounts(ctx context.Context, interactionID int64) ([]model.DegradationCount, error) {
	counts, err := s.interactionRepo.FindDegradationCounts(ctx, interactionID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return counts, nil
}
