package jobs

import (
	"context"
	"time"

	domain "github.com/quizowl/quizowl-progression/internal/domain/progression"
	"github.com/quizowl/quizowl-progression/internal/infrastructure/persistence/postgres"
	"github.com/quizowl/quizowl-progression/pkg/logger"
	"github.com/quizowl/quizowl-progression/pkg/timeutil"
)

// sweepBatchSize limits how many at-risk streaks one run inspects.
const sweepBatchSize = 1000

// StreakSweepJob invalidates cached snapshots for users whose streak is
// at risk, so the next progress read recomputes hoursUntilStreakLost
// from fresh data. Streak breaks themselves happen lazily on the next
// activity, the sweep only keeps the read side honest overnight.
type StreakSweepJob struct {
	progress *postgres.ProgressRepository
	cache    domain.ProgressCache
	clock    timeutil.Clock
	log      *logger.Logger
}

// NewStreakSweepJob creates a new StreakSweepJob.
func NewStreakSweepJob(
	progress *postgres.ProgressRepository,
	cache domain.ProgressCache,
	clock timeutil.Clock,
	log *logger.Logger,
) *StreakSweepJob {
	if clock == nil {
		clock = timeutil.NewSystemClock(nil)
	}
	if log == nil {
		log = logger.Default()
	}
	return &StreakSweepJob{
		progress: progress,
		cache:    cache,
		clock:    clock,
		log:      log.With(logger.Component("streak_sweep_job")),
	}
}

// Name returns the unique name of the job.
func (j *StreakSweepJob) Name() string {
	return "streak_sweep"
}

// Description returns a human-readable description of the job.
func (j *StreakSweepJob) Description() string {
	return "Invalidates cached snapshots for streaks nearing the grace deadline"
}

// Run sweeps users whose last activity is older than 24 hours.
// At that point hoursUntilStreakLost drops below 12 and clients start
// surfacing the warning.
func (j *StreakSweepJob) Run(ctx context.Context) error {
	now := j.clock.Now()
	cutoff := now.Add(-24 * time.Hour)

	userIDs, err := j.progress.ListStreaksAtRisk(ctx, cutoff, sweepBatchSize)
	if err != nil {
		return err
	}
	if len(userIDs) == 0 {
		return nil
	}

	invalidated := 0
	for _, userID := range userIDs {
		if err := ctx.Err(); err != nil {
			return err
		}

		if j.cache == nil {
			continue
		}
		if err := j.cache.Invalidate(ctx, userID); err != nil {
			j.log.Warn("failed to invalidate snapshot",
				logger.UserID(userID),
				logger.Err(err),
			)
			continue
		}
		invalidated++
	}

	j.log.Info("streak sweep completed",
		logger.Int("at_risk", len(userIDs)),
		logger.Int("invalidated", invalidated),
	)

	return nil
}
