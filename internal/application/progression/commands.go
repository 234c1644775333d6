// Package progression contains the write-side orchestration of the
// progression engine (CQRS - Commands). The Coordinator is the only
// component allowed to mutate UserProgress records.
package progression

import (
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/quizowl/quizowl-progression/internal/domain/progression"
	"github.com/quizowl/quizowl-progression/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

// AwardXPCommand requests a direct XP grant for a user.
type AwardXPCommand struct {
	// UserID is the user receiving the XP.
	UserID string

	// Amount is the base XP amount (before the streak bonus).
	Amount int

	// Source describes where the XP came from.
	Source domain.XPSource

	// Description is a human-readable reason, stored in the XP event log.
	Description string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c AwardXPCommand) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return fmt.Errorf("award_xp: %w", domain.ErrInvalidUserID)
	}
	if c.Amount < 0 {
		return fmt.Errorf("award_xp: %w", domain.ErrNegativeXPAmount)
	}
	if c.Source != "" && !c.Source.IsValid() {
		return fmt.Errorf("award_xp: unknown xp source: %s", c.Source)
	}
	return nil
}

// QuizCompletedCommand reports a finished quiz.
type QuizCompletedCommand struct {
	// UserID is the user who completed the quiz.
	UserID string

	// QuizID identifies the quiz instance.
	QuizID string

	// Subject is the quiz subject.
	Subject domain.Subject

	// TotalQuestions is the number of questions in the quiz.
	TotalQuestions int

	// CorrectAnswers is the number answered correctly.
	CorrectAnswers int

	// TopicResults carries optional per-topic breakdowns.
	TopicResults []domain.TopicResult

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c QuizCompletedCommand) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return fmt.Errorf("quiz_completed: %w", domain.ErrInvalidUserID)
	}
	if c.TotalQuestions < 0 || c.CorrectAnswers < 0 || c.CorrectAnswers > c.TotalQuestions {
		return fmt.Errorf("quiz_completed: %w", domain.ErrInvalidQuizCounts)
	}
	if c.Subject != "" && !c.Subject.IsValid() {
		return fmt.Errorf("quiz_completed: %w", domain.ErrInvalidSubject)
	}
	return nil
}

// LessonCompletedCommand reports a finished lesson.
type LessonCompletedCommand struct {
	// UserID is the user who completed the lesson.
	UserID string

	// LessonID identifies the lesson.
	LessonID string

	// Subject is the lesson subject (optional).
	Subject domain.Subject

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c LessonCompletedCommand) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return fmt.Errorf("lesson_completed: %w", domain.ErrInvalidUserID)
	}
	if c.Subject != "" && !c.Subject.IsValid() {
		return fmt.Errorf("lesson_completed: %w", domain.ErrInvalidSubject)
	}
	return nil
}

// UpdateStreakCommand records bare activity for streak purposes,
// without any XP being earned.
type UpdateStreakCommand struct {
	// UserID is the user whose streak should be updated.
	UserID string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c UpdateStreakCommand) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return fmt.Errorf("update_streak: %w", domain.ErrInvalidUserID)
	}
	return nil
}

// CompleteChallengeCommand requests completion of today's challenge.
type CompleteChallengeCommand struct {
	// UserID is the user completing the challenge.
	UserID string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c CompleteChallengeCommand) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return fmt.Errorf("complete_challenge: %w", domain.ErrInvalidUserID)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// RESULTS
// ══════════════════════════════════════════════════════════════════════════════

// AwardResult is the consolidated outcome of any XP-granting operation.
type AwardResult struct {
	// UserID is the user the award applied to.
	UserID string

	// BaseAmount is the XP before the streak bonus.
	BaseAmount int

	// StreakBonus is floor(base * currentStreak * 0.1), computed from the
	// streak value as loaded.
	StreakBonus int

	// TotalAwarded is base + bonus (badge rewards not included here).
	TotalAwarded int

	// NewTotalXP is the user's total XP after the award, including any
	// badge rewards unlocked in the same pass.
	NewTotalXP int

	// PreviousLevel is the level before the award.
	PreviousLevel int

	// NewLevel is the level after the award.
	NewLevel int

	// LeveledUp is true if NewLevel > PreviousLevel.
	LeveledUp bool

	// CurrentStreak is the streak after the operation's activity transition.
	CurrentStreak int

	// StreakTransition describes what happened to the streak.
	StreakTransition domain.StreakTransition

	// NewBadges lists badges unlocked during this operation.
	NewBadges []domain.Badge

	// Events contains domain events generated.
	Events []shared.Event

	// AwardedAt is when the operation ran.
	AwardedAt time.Time
}

// QuizCompletedResult combines the scored quiz with its award.
type QuizCompletedResult struct {
	// Quiz is the scoring outcome (percentage, tier, topics).
	Quiz domain.QuizResult

	// Award is the XP award outcome.
	Award AwardResult
}

// StreakResult is the outcome of a bare streak update.
type StreakResult struct {
	// UserID is the user whose streak was updated.
	UserID string

	// Transition describes what happened to the streak.
	Transition domain.StreakTransition

	// CurrentStreak is the streak after the transition.
	CurrentStreak int

	// LongestStreak is the best streak on record.
	LongestStreak int

	// HoursUntilStreakLost is the countdown until the grace window closes.
	HoursUntilStreakLost float64

	// NewBadges lists streak badges unlocked by this update.
	NewBadges []domain.Badge

	// Events contains domain events generated.
	Events []shared.Event
}

// ChallengeResult is the outcome of a challenge completion attempt.
type ChallengeResult struct {
	// UserID is the user who attempted the completion.
	UserID string

	// Completed is true if the challenge was marked complete by this call.
	Completed bool

	// AlreadyCompleted is true if the challenge had been completed earlier today.
	AlreadyCompleted bool

	// Stale is true if the stored challenge no longer matches today.
	Stale bool

	// Challenge is the challenge the attempt applied to (nil if none stored).
	Challenge *domain.DailyChallenge

	// Award is the XP award, zero-valued unless Completed.
	Award AwardResult
}

// ErrStoreUnavailable signals that the durable store could not be read or
// written; in-memory state is left untouched and the caller may retry.
var ErrStoreUnavailable = shared.ErrStoreUnavailable

// IsStoreUnavailable reports whether err is a store availability failure.
func IsStoreUnavailable(err error) bool {
	return errors.Is(err, shared.ErrServiceUnavailable)
}
