// Package jobs contains the background jobs run by the progression worker.
package jobs

import (
	"context"

	"github.com/quizowl/quizowl-progression/internal/infrastructure/sync"
	"github.com/quizowl/quizowl-progression/pkg/logger"
)

// DrainOutboxJob uploads pending XP events to the remote backend.
type DrainOutboxJob struct {
	uploader *sync.Uploader
	log      *logger.Logger
}

// NewDrainOutboxJob creates a new DrainOutboxJob.
func NewDrainOutboxJob(uploader *sync.Uploader, log *logger.Logger) *DrainOutboxJob {
	if log == nil {
		log = logger.Default()
	}
	return &DrainOutboxJob{
		uploader: uploader,
		log:      log.With(logger.Component("drain_outbox_job")),
	}
}

// Name returns the unique name of the job.
func (j *DrainOutboxJob) Name() string {
	return "drain_outbox"
}

// Description returns a human-readable description of the job.
func (j *DrainOutboxJob) Description() string {
	return "Uploads unsynced XP events to the remote backend"
}

// Run drains the outbox until empty or an upload fails.
func (j *DrainOutboxJob) Run(ctx context.Context) error {
	uploaded, err := j.uploader.Drain(ctx)
	if err != nil {
		// Sync is best-effort; the next pass retries remaining events.
		j.log.Warn("outbox drain interrupted",
			logger.Int("uploaded", uploaded),
			logger.Err(err),
		)
		return err
	}

	if uploaded > 0 {
		j.log.Info("outbox drained", logger.Int("uploaded", uploaded))
	}

	return nil
}
