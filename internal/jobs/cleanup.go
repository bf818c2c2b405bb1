package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/macromaster/ingest-server-go/internal/service"
)

const cleanupTimeout = 30 * time.Second

type Cleaner interface {
	CleanupOldData(ctx context.Context, daysToKeep int) (*service.CleanupResult, error)
}

// CleanupJob prunes old data once at start and then on every tick. It runs
// on its own goroutine alongside request handling.
type CleanupJob struct {
	cleaner    Cleaner
	daysToKeep int
	interval   time.Duration
	done       chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

func NewCleanupJob(cleaner Cleaner, daysToKeep int, interval time.Duration) *CleanupJob {
	return &CleanupJob{
		cleaner:    cleaner,
		daysToKeep: daysToKeep,
		interval:   interval,
		done:       make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	j.wg.Add(1)
	go j.run()
	log.Info().
		Dur("interval", j.interval).
		Int("daysToKeep", j.daysToKeep).
		Msg("cleanup job started")
}

// Stop signals the job and waits for an in-flight run to finish.
func (j *CleanupJob) Stop() {
	j.stopOnce.Do(func() {
		close(j.done)
		j.wg.Wait()
		log.Info().Msg("cleanup job stopped")
	})
}

func (j *CleanupJob) run() {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.cleanup()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.cleanup()
		}
	}
}

func (j *CleanupJob) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	result, err := j.cleaner.CleanupOldData(ctx, j.daysToKeep)
	if err != nil {
		log.Error().Err(err).Msg("scheduled cleanup failed")
		return
	}

	if result.Interactions > 0 || result.Sessions > 0 || result.SystemLogs > 0 {
		log.Info().
			Int64("interactions", result.Interactions).
			Int64("sessions", result.Sessions).
			Int64("systemLogs", result.SystemLogs).
			Msg("cleaned up old data")
	}
}
