package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/macromaster/ingest-server-go/internal/config"
	apperrors "github.com/macromaster/ingest-server-go/internal/errors"
	"github.com/macromaster/ingest-server-go/internal/model"
	"github.com/macromaster/ingest-server-go/internal/repository"
	"github.com/macromaster/ingest-server-go/internal/telemetry"
)

type MetricsService struct {
	interactionRepo repository.InteractionRepository
	cacheRepo       repository.MetricsCacheRepository
	window          time.Duration
	now             func() time.Time
}

func NewMetricsService(
	interactionRepo repository.InteractionRepository,
	cacheRepo repository.MetricsCacheRepository,
	window time.Duration,
) *MetricsService {
	return &MetricsService{
		interactionRepo: interactionRepo,
		cacheRepo:       cacheRepo,
		window:          window,
		now:             time.Now,
	}
}

// Recompute aggregates the session's interactions inside the sliding window
// and replaces its cached snapshot.
func (s *MetricsService) Recompute(ctx context.Context, sessionID string) (*model.MetricsSnapshot, error) {
	started := time.Now()
	defer func() { telemetry.ObserveRecompute(time.Since(started)) }()

	now := s.now()
	since := now.Add(-s.window)

	agg, err := s.interactionRepo.Aggregate(ctx, sessionID, since)
	if err != nil {
		return nil, fmt.Errorf("aggregate interactions: %w", err)
	}
	summary, err := s.interactionRepo.DegradationSummary(ctx, sessionID, since)
	if err != nil {
		return nil, fmt.Errorf("degradation summary: %w", err)
	}

	snapshot := BuildSnapshot(agg, summary)
	data, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}

	if err := s.cacheRepo.Upsert(ctx, sessionID, config.SessionMetricsKind, data, now); err != nil {
		return nil, fmt.Errorf("store snapshot: %w", err)
	}
	return snapshot, nil
}

// GetMetrics returns the cached snapshot bytes exactly as stored, or nil when
// the session has never been aggregated. It never recomputes.
func (s *MetricsService) GetMetrics(ctx context.Context, sessionID string) (*model.CachedMetrics, error) {
	row, err := s.cacheRepo.Find(ctx, sessionID, config.SessionMetricsKind)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if row == nil {
		return nil, nil
	}
	return &model.CachedMetrics{
		Data:        json.RawMessage(row.MetricData),
		LastUpdated: row.LastUpdated,
	}, nil
}

func EmptySnapshot() *model.MetricsSnapshot {
	return &model.MetricsSnapshot{
		DegradationSummary: map[string]int64{},
	}
}

// BuildSnapshot derives the cached document from a windowed aggregate.
// Both rates are floored at a divisor of 1 so an empty or instantaneous
// window never divides by zero.
func BuildSnapshot(agg *model.SessionAggregate, summary map[string]int64) *model.MetricsSnapshot {
	if summary == nil {
		summary = map[string]int64{}
	}

	seconds := math.Max(float64(agg.TotalTimeMs)/1000, 1)
	perExecution := round(float64(agg.TotalBoxes)/math.Max(float64(agg.TotalExecutions), 1), 2)

	var lastActivity *string
	if agg.LastActivity != nil {
		s := agg.LastActivity.UTC().Format(time.RFC3339Nano)
		lastActivity = &s
	}

	return &model.MetricsSnapshot{
		SessionStats: model.SessionStats{
			TotalExecutions:    agg.TotalExecutions,
			TotalBoxes:         agg.TotalBoxes,
			TotalTimeMs:        agg.TotalTimeMs,
			AvgExecutionTimeMs: round(agg.AvgTimeMs, 1),
			BoxesPerSecond:     round(float64(agg.TotalBoxes)/seconds, 2),
			LastActivity:       lastActivity,
		},
		DegradationSummary: summary,
		PerformanceMetrics: model.PerformanceMetrics{
			EfficiencyScore:      perExecution,
			AvgBoxesPerExecution: perExecution,
		},
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
