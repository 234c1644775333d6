package progression

import (
	"context"
	"errors"
	"fmt"
	"sync"

	domain "github.com/quizowl/quizowl-progression/internal/domain/progression"
	"github.com/quizowl/quizowl-progression/internal/domain/shared"
	"github.com/quizowl/quizowl-progression/pkg/logger"
	"github.com/quizowl/quizowl-progression/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESSION COORDINATOR
//
// The single writer for per-user progression state. Every operation follows
// the same shape: serialize on the user, load the record, mutate a working
// copy, run the badge pass, save the whole record atomically, then fan out
// side effects (XP event log, cache invalidation, domain events). A failed
// save leaves nothing behind - the working copy is simply discarded.
// ══════════════════════════════════════════════════════════════════════════════

const (
	// lessonXP is the fixed reward for a completed lesson.
	lessonXP = 20

	// streakBonusDivisor implements the 10%-per-streak-day bonus:
	// bonus = base * currentStreak / 10, floored by integer division.
	streakBonusDivisor = 10
)

// Coordinator orchestrates all progression mutations.
type Coordinator struct {
	progressRepo  domain.ProgressRepository
	challengeRepo domain.ChallengeRepository
	eventRepo     domain.XPEventRepository
	cache         domain.ProgressCache
	scorer        *domain.QuizScorer
	evaluator     *domain.BadgeEvaluator
	generator     *domain.ChallengeGenerator
	publisher     shared.EventPublisher
	clock         timeutil.Clock
	newID         func() string
	log           *logger.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// CoordinatorConfig wires the coordinator's dependencies.
type CoordinatorConfig struct {
	ProgressRepo  domain.ProgressRepository
	ChallengeRepo domain.ChallengeRepository
	EventRepo     domain.XPEventRepository
	Cache         domain.ProgressCache
	Evaluator     *domain.BadgeEvaluator
	Generator     *domain.ChallengeGenerator
	Publisher     shared.EventPublisher
	Clock         timeutil.Clock
	NewID         func() string
	Logger        *logger.Logger
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	if cfg.Clock == nil {
		cfg.Clock = timeutil.NewSystemClock(nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	if cfg.Evaluator == nil {
		cfg.Evaluator = domain.NewBadgeEvaluator(domain.DefaultBadgeCatalog())
	}

	return &Coordinator{
		progressRepo:  cfg.ProgressRepo,
		challengeRepo: cfg.ChallengeRepo,
		eventRepo:     cfg.EventRepo,
		cache:         cfg.Cache,
		scorer:        domain.NewQuizScorer(),
		evaluator:     cfg.Evaluator,
		generator:     cfg.Generator,
		publisher:     cfg.Publisher,
		clock:         cfg.Clock,
		newID:         cfg.NewID,
		log:           cfg.Logger.With(logger.Component("coordinator")),
		locks:         make(map[string]*sync.Mutex),
	}
}

// lockUser serializes operations per user identifier.
func (c *Coordinator) lockUser(userID string) func() {
	c.mu.Lock()
	lock, ok := c.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[userID] = lock
	}
	c.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// loadOrCreate loads the user's progress, lazily creating an empty record.
func (c *Coordinator) loadOrCreate(ctx context.Context, userID string) (*domain.UserProgress, error) {
	progress, err := c.progressRepo.Load(ctx, userID)
	if err == nil {
		return progress, nil
	}
	if errors.Is(err, domain.ErrProgressNotFound) {
		return domain.NewUserProgress(userID, c.clock.Now())
	}
	return nil, shared.WrapError("progression", "Load", shared.ErrServiceUnavailable,
		"failed to load user progress", err)
}

// ══════════════════════════════════════════════════════════════════════════════
// AWARD XP
// ══════════════════════════════════════════════════════════════════════════════

// AwardXP atomically grants XP plus the streak bonus, recomputes the level,
// applies the activity transition, runs the badge pass, and saves the record.
func (c *Coordinator) AwardXP(ctx context.Context, cmd AwardXPCommand) (*AwardResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	unlock := c.lockUser(cmd.UserID)
	defer unlock()

	progress, err := c.loadOrCreate(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}

	source := cmd.Source
	if source == "" {
		source = domain.SourceManual
	}

	result := c.applyAward(progress, cmd.Amount, source, cmd.Description, cmd.CorrelationID)

	if err := c.persist(ctx, progress, result, source, cmd.Description); err != nil {
		return nil, err
	}

	return result, nil
}

// applyAward mutates the working copy with an XP grant and the activity
// transition, and runs the badge pass. Nothing is persisted here.
//
// The streak bonus is computed from the streak value as loaded; the activity
// transition is applied afterwards, in the same operation. Badge XP rewards
// are folded into the total by the evaluator but never trigger a second
// evaluation within this pass.
func (c *Coordinator) applyAward(
	progress *domain.UserProgress,
	base int,
	source domain.XPSource,
	description string,
	correlationID string,
) *AwardResult {
	now := c.clock.Now()

	bonus := base * progress.CurrentStreak / streakBonusDivisor
	app := progress.AddXP(domain.XP(base + bonus))
	transition := domain.RecordActivity(progress, now)
	badges := c.evaluator.Evaluate(progress, now)
	progress.Touch(now)

	result := &AwardResult{
		UserID:           progress.UserID,
		BaseAmount:       base,
		StreakBonus:      bonus,
		TotalAwarded:     base + bonus,
		NewTotalXP:       int(progress.TotalXP),
		PreviousLevel:    int(app.PreviousLevel),
		NewLevel:         int(progress.Level),
		LeveledUp:        progress.Level > app.PreviousLevel,
		CurrentStreak:    progress.CurrentStreak,
		StreakTransition: transition,
		NewBadges:        badges,
		AwardedAt:        now,
	}

	result.Events = c.buildEvents(progress, result, source, description, correlationID)
	return result
}

// buildEvents assembles the domain events for a completed award.
func (c *Coordinator) buildEvents(
	progress *domain.UserProgress,
	result *AwardResult,
	source domain.XPSource,
	description string,
	correlationID string,
) []shared.Event {
	now := result.AwardedAt
	events := make([]shared.Event, 0, 4)

	if result.TotalAwarded > 0 {
		ev := shared.NewXPAwardedEvent(
			progress.UserID, result.BaseAmount, result.StreakBonus,
			result.NewTotalXP, string(source), description, now,
		)
		if correlationID != "" {
			ev.BaseEvent = ev.BaseEvent.WithCorrelationID(correlationID)
		}
		events = append(events, ev)
	}

	if result.LeveledUp {
		events = append(events, shared.NewLevelUpEvent(
			progress.UserID, result.PreviousLevel, result.NewLevel, result.NewTotalXP, now,
		))
	}

	switch result.StreakTransition {
	case domain.StreakStarted:
		events = append(events, shared.NewStreakStartedEvent(
			progress.UserID, progress.LongestStreak, now,
		))
	case domain.StreakContinued:
		events = append(events, shared.NewStreakContinuedEvent(
			progress.UserID, progress.CurrentStreak, progress.LongestStreak, now,
		))
	case domain.StreakBroken:
		events = append(events, shared.NewStreakBrokenEvent(
			progress.UserID, progress.CurrentStreak, progress.LongestStreak, now,
		))
	}

	for _, badge := range result.NewBadges {
		events = append(events, shared.NewBadgeUnlockedEvent(
			progress.UserID, string(badge.ID), badge.Name, int(badge.XPReward), now,
		))
	}

	return events
}

// persist saves the record and fans out side effects. The save is the only
// step that can fail the operation; everything after it is best-effort.
func (c *Coordinator) persist(
	ctx context.Context,
	progress *domain.UserProgress,
	result *AwardResult,
	source domain.XPSource,
	description string,
) error {
	if err := progress.Validate(); err != nil {
		return fmt.Errorf("progression: invariant check failed before save: %w", err)
	}

	if err := c.progressRepo.Save(ctx, progress); err != nil {
		return shared.WrapError("progression", "Save", shared.ErrServiceUnavailable,
			"failed to save user progress", err)
	}

	c.appendXPEvents(ctx, progress, result, source, description)

	if c.cache != nil {
		if err := c.cache.Invalidate(ctx, progress.UserID); err != nil {
			c.log.Warn("cache invalidation failed",
				logger.UserID(progress.UserID), logger.Err(err))
		}
	}

	c.publish(result.Events)

	c.log.Info("progression updated",
		logger.UserID(progress.UserID),
		logger.XPAmount(result.TotalAwarded),
		logger.LevelNum(result.NewLevel),
		logger.StreakDays(result.CurrentStreak),
		logger.Int("new_badges", len(result.NewBadges)),
	)

	return nil
}

// appendXPEvents writes the award to the XP event log (the sync outbox).
// Failures here are logged, never surfaced: local state is the source of
// truth and remote sync is eventual.
func (c *Coordinator) appendXPEvents(
	ctx context.Context,
	progress *domain.UserProgress,
	result *AwardResult,
	source domain.XPSource,
	description string,
) {
	if c.eventRepo == nil || c.newID == nil {
		return
	}

	events := make([]domain.XPEvent, 0, 1+len(result.NewBadges))
	if result.TotalAwarded > 0 {
		events = append(events, domain.XPEvent{
			ID:          c.newID(),
			UserID:      progress.UserID,
			Amount:      domain.XP(result.TotalAwarded),
			Source:      source,
			Description: description,
			CreatedAt:   result.AwardedAt,
		})
	}
	for _, badge := range result.NewBadges {
		events = append(events, domain.XPEvent{
			ID:          c.newID(),
			UserID:      progress.UserID,
			Amount:      badge.XPReward,
			Source:      domain.SourceBadge,
			Description: badge.Name,
			CreatedAt:   result.AwardedAt,
		})
	}

	for _, ev := range events {
		if err := c.eventRepo.Append(ctx, ev); err != nil {
			c.log.Warn("xp event log append failed",
				logger.UserID(progress.UserID), logger.Err(err))
		}
	}
}

// publish sends events to the bus, logging failures.
func (c *Coordinator) publish(events []shared.Event) {
	if c.publisher == nil {
		return
	}
	for _, event := range events {
		if err := c.publisher.Publish(event); err != nil {
			c.log.Warn("event publish failed",
				logger.String("event_type", string(event.EventType())), logger.Err(err))
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// QUIZ COMPLETED
// ══════════════════════════════════════════════════════════════════════════════

// OnQuizCompleted scores the quiz, updates the quiz counters, and delegates
// to the award path with the scorer's XP amount.
func (c *Coordinator) OnQuizCompleted(ctx context.Context, cmd QuizCompletedCommand) (*QuizCompletedResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	quiz, err := c.scorer.Score(domain.QuizSubmission{
		QuizID:         cmd.QuizID,
		Subject:        cmd.Subject,
		TotalQuestions: cmd.TotalQuestions,
		CorrectAnswers: cmd.CorrectAnswers,
		TopicResults:   cmd.TopicResults,
	})
	if err != nil {
		return nil, fmt.Errorf("quiz_completed: %w", err)
	}

	unlock := c.lockUser(cmd.UserID)
	defer unlock()

	progress, err := c.loadOrCreate(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}

	progress.RecordQuiz(cmd.Subject, quiz.Perfect)

	description := fmt.Sprintf("quiz %s: %d/%d", cmd.QuizID, cmd.CorrectAnswers, cmd.TotalQuestions)
	award := c.applyAward(progress, int(quiz.XPEarned), domain.SourceQuiz, description, cmd.CorrelationID)

	quizEvent := shared.NewQuizCompletedEvent(
		cmd.UserID, cmd.QuizID, cmd.Subject.String(),
		cmd.CorrectAnswers, cmd.TotalQuestions,
		quiz.ScorePercentage, award.TotalAwarded, quiz.Perfect, award.AwardedAt,
	)
	award.Events = append(award.Events, quizEvent)

	if err := c.persist(ctx, progress, award, domain.SourceQuiz, description); err != nil {
		return nil, err
	}

	return &QuizCompletedResult{Quiz: quiz, Award: *award}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LESSON COMPLETED
// ══════════════════════════════════════════════════════════════════════════════

// OnLessonCompleted increments the lesson counter and awards the fixed
// lesson reward.
func (c *Coordinator) OnLessonCompleted(ctx context.Context, cmd LessonCompletedCommand) (*AwardResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	unlock := c.lockUser(cmd.UserID)
	defer unlock()

	progress, err := c.loadOrCreate(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}

	progress.RecordLesson()

	description := fmt.Sprintf("lesson %s", cmd.LessonID)
	result := c.applyAward(progress, lessonXP, domain.SourceLesson, description, cmd.CorrelationID)

	lessonEvent := shared.NewLessonCompletedEvent(
		cmd.UserID, cmd.LessonID, cmd.Subject.String(), result.TotalAwarded, result.AwardedAt,
	)
	result.Events = append(result.Events, lessonEvent)

	if err := c.persist(ctx, progress, result, domain.SourceLesson, description); err != nil {
		return nil, err
	}

	return result, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE STREAK
// ══════════════════════════════════════════════════════════════════════════════

// UpdateStreak applies the streak transition for bare activity and runs a
// badge pass: streak-threshold badges can unlock here without any XP event.
func (c *Coordinator) UpdateStreak(ctx context.Context, cmd UpdateStreakCommand) (*StreakResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	unlock := c.lockUser(cmd.UserID)
	defer unlock()

	progress, err := c.loadOrCreate(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}

	award := c.applyAward(progress, 0, domain.SourceManual, "streak activity", cmd.CorrelationID)

	if err := c.persist(ctx, progress, award, domain.SourceManual, "streak activity"); err != nil {
		return nil, err
	}

	return &StreakResult{
		UserID:               cmd.UserID,
		Transition:           award.StreakTransition,
		CurrentStreak:        progress.CurrentStreak,
		LongestStreak:        progress.LongestStreak,
		HoursUntilStreakLost: domain.HoursUntilStreakLost(progress, c.clock.Now()),
		NewBadges:            award.NewBadges,
		Events:               award.Events,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DAILY CHALLENGE
// ══════════════════════════════════════════════════════════════════════════════

// GetOrCreateTodayChallenge returns today's challenge for the user,
// generating and persisting a fresh one if the stored instance is stale.
func (c *Coordinator) GetOrCreateTodayChallenge(ctx context.Context, userID string) (*domain.DailyChallenge, error) {
	if userID == "" {
		return nil, domain.ErrInvalidUserID
	}

	unlock := c.lockUser(userID)
	defer unlock()

	now := c.clock.Now()

	stored, err := c.challengeRepo.GetCurrent(ctx, userID)
	if err != nil && !errors.Is(err, domain.ErrChallengeNotFound) {
		return nil, shared.WrapError("challenge", "Load", shared.ErrServiceUnavailable,
			"failed to load daily challenge", err)
	}

	challenge, created, err := c.generator.GetOrCreateToday(stored, userID, now)
	if err != nil {
		return nil, err
	}

	if created {
		if err := c.challengeRepo.Save(ctx, challenge); err != nil {
			return nil, shared.WrapError("challenge", "Save", shared.ErrServiceUnavailable,
				"failed to save daily challenge", err)
		}

		c.publish([]shared.Event{shared.NewChallengeIssuedEvent(
			userID, challenge.ID, challenge.TemplateID, challenge.Day,
			int(challenge.XPReward), now,
		)})

		c.log.Info("daily challenge issued",
			logger.UserID(userID),
			logger.ChallengeID(challenge.ID),
			logger.String("template", challenge.TemplateID),
		)
	}

	return challenge, nil
}

// CompleteDailyChallenge marks today's challenge complete and awards its
// reward. Completing a stale or already-completed challenge is a benign
// no-op that awards no XP.
func (c *Coordinator) CompleteDailyChallenge(ctx context.Context, cmd CompleteChallengeCommand) (*ChallengeResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	unlock := c.lockUser(cmd.UserID)
	defer unlock()

	now := c.clock.Now()
	result := &ChallengeResult{UserID: cmd.UserID}

	challenge, err := c.challengeRepo.GetCurrent(ctx, cmd.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrChallengeNotFound) {
			result.Stale = true
			return result, nil
		}
		return nil, shared.WrapError("challenge", "Load", shared.ErrServiceUnavailable,
			"failed to load daily challenge", err)
	}

	result.Challenge = challenge

	switch canErr := challenge.CanComplete(now); {
	case errors.Is(canErr, domain.ErrChallengeStale):
		result.Stale = true
		return result, nil
	case errors.Is(canErr, domain.ErrChallengeCompleted):
		result.AlreadyCompleted = true
		return result, nil
	}

	progress, err := c.loadOrCreate(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}

	description := fmt.Sprintf("daily challenge %s", challenge.TemplateID)
	award := c.applyAward(progress, int(challenge.XPReward), domain.SourceChallenge, description, cmd.CorrelationID)

	award.Events = append(award.Events, shared.NewChallengeCompletedEvent(
		cmd.UserID, challenge.ID, challenge.Day, int(challenge.XPReward), now,
	))

	// The award is made durable before the completed flag: a failed
	// progress save leaves the challenge open, so the client's retry
	// still lands the reward.
	if err := c.persist(ctx, progress, award, domain.SourceChallenge, description); err != nil {
		return nil, err
	}

	challenge.Complete(now)
	if err := c.challengeRepo.Save(ctx, challenge); err != nil {
		return nil, shared.WrapError("challenge", "Save", shared.ErrServiceUnavailable,
			"failed to save daily challenge", err)
	}

	result.Completed = true
	result.Award = *award
	return result, nil
}
