package jobs

import (
	"context"

	app "github.com/quizowl/quizowl-progression/internal/application/progression"
	domain "github.com/quizowl/quizowl-progression/internal/domain/progression"
	"github.com/quizowl/quizowl-progression/internal/infrastructure/persistence/postgres"
	"github.com/quizowl/quizowl-progression/pkg/logger"
	"github.com/quizowl/quizowl-progression/pkg/timeutil"
)

// rotateBatchSize limits how many stale challenges one run replaces.
const rotateBatchSize = 500

// RotateChallengesJob replaces stale daily challenges after midnight.
// Challenges are also rotated lazily on first access, so this job only
// warms the table for users who have not opened the app yet.
type RotateChallengesJob struct {
	challenges  *postgres.ChallengeRepository
	coordinator *app.Coordinator
	clock       timeutil.Clock
	log         *logger.Logger
}

// NewRotateChallengesJob creates a new RotateChallengesJob.
func NewRotateChallengesJob(
	challenges *postgres.ChallengeRepository,
	coordinator *app.Coordinator,
	clock timeutil.Clock,
	log *logger.Logger,
) *RotateChallengesJob {
	if clock == nil {
		clock = timeutil.NewSystemClock(nil)
	}
	if log == nil {
		log = logger.Default()
	}
	return &RotateChallengesJob{
		challenges:  challenges,
		coordinator: coordinator,
		clock:       clock,
		log:         log.With(logger.Component("rotate_challenges_job")),
	}
}

// Name returns the unique name of the job.
func (j *RotateChallengesJob) Name() string {
	return "rotate_challenges"
}

// Description returns a human-readable description of the job.
func (j *RotateChallengesJob) Description() string {
	return "Replaces stale daily challenges with fresh ones for the new day"
}

// Run rotates challenges for users whose stored challenge is stale.
func (j *RotateChallengesJob) Run(ctx context.Context) error {
	today := j.clock.Now().Format(domain.DayFormat)

	rotated := 0
	for {
		userIDs, err := j.challenges.ListStaleUserIDs(ctx, today, rotateBatchSize)
		if err != nil {
			return err
		}
		if len(userIDs) == 0 {
			break
		}

		batchRotated := 0
		for _, userID := range userIDs {
			if err := ctx.Err(); err != nil {
				return err
			}

			if _, err := j.coordinator.GetOrCreateTodayChallenge(ctx, userID); err != nil {
				j.log.Warn("failed to rotate challenge",
					logger.UserID(userID),
					logger.Err(err),
				)
				continue
			}
			batchRotated++
		}
		rotated += batchRotated

		// A batch with zero successes would re-list the same users forever.
		if batchRotated == 0 || len(userIDs) < rotateBatchSize {
			break
		}
	}

	if rotated > 0 {
		j.log.Info("challenges rotated", logger.Int("count", rotated))
	}

	return nil
}
