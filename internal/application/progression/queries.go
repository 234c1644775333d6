package progression

import (
	"context"
	"errors"
	"sort"
	"time"

	domain "github.com/quizowl/quizowl-progression/internal/domain/progression"
	"github.com/quizowl/quizowl-progression/internal/domain/shared"
	"github.com/quizowl/quizowl-progression/pkg/logger"
	"github.com/quizowl/quizowl-progression/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// QUERIES (CQRS - read side)
// Snapshot views over UserProgress with derived presentation values.
// Reads go through the cache when available; writes invalidate it.
// ══════════════════════════════════════════════════════════════════════════════

// BadgeView is a badge as presented to clients.
type BadgeView struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	XPReward    int       `json:"xp_reward"`
	UnlockedAt  time.Time `json:"unlocked_at"`
}

// ProgressSummary is the consolidated read model for a user.
type ProgressSummary struct {
	UserID               string      `json:"user_id"`
	TotalXP              int         `json:"total_xp"`
	Level                int         `json:"level"`
	ProgressToNextLevel  float64     `json:"progress_to_next_level"`
	XPToNextLevel        int         `json:"xp_to_next_level"`
	CurrentStreak        int         `json:"current_streak"`
	LongestStreak        int         `json:"longest_streak"`
	HoursUntilStreakLost float64     `json:"hours_until_streak_lost"`
	QuizzesCompleted     int         `json:"quizzes_completed"`
	PerfectScores        int         `json:"perfect_scores"`
	LessonsCompleted     int         `json:"lessons_completed"`
	Badges               []BadgeView `json:"badges"`
	LastActivityAt       time.Time   `json:"last_activity_at,omitempty"`
}

// ProgressQueryHandler serves read-side progression queries.
type ProgressQueryHandler struct {
	progressRepo domain.ProgressRepository
	cache        domain.ProgressCache
	catalog      *domain.BadgeCatalog
	clock        timeutil.Clock
	cacheTTL     time.Duration
	log          *logger.Logger
}

// NewProgressQueryHandler creates a query handler.
func NewProgressQueryHandler(
	progressRepo domain.ProgressRepository,
	cache domain.ProgressCache,
	catalog *domain.BadgeCatalog,
	clock timeutil.Clock,
	cacheTTL time.Duration,
	log *logger.Logger,
) *ProgressQueryHandler {
	if clock == nil {
		clock = timeutil.NewSystemClock(nil)
	}
	if log == nil {
		log = logger.Default()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}

	return &ProgressQueryHandler{
		progressRepo: progressRepo,
		cache:        cache,
		catalog:      catalog,
		clock:        clock,
		cacheTTL:     cacheTTL,
		log:          log.With(logger.Component("progress_query")),
	}
}

// GetProgressSummary returns the user's progress view.
// A user with no recorded events yet gets an empty level-1 summary.
func (h *ProgressQueryHandler) GetProgressSummary(ctx context.Context, userID string) (*ProgressSummary, error) {
	if userID == "" {
		return nil, domain.ErrInvalidUserID
	}

	progress, err := h.loadProgress(ctx, userID)
	if err != nil {
		return nil, err
	}

	return h.summarize(progress), nil
}

// loadProgress tries the cache first, then the durable store.
func (h *ProgressQueryHandler) loadProgress(ctx context.Context, userID string) (*domain.UserProgress, error) {
	if h.cache != nil {
		cached, err := h.cache.Get(ctx, userID)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, domain.ErrProgressNotFound) {
			h.log.Warn("progress cache read failed", logger.UserID(userID), logger.Err(err))
		}
	}

	progress, err := h.progressRepo.Load(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrProgressNotFound) {
			return domain.NewUserProgress(userID, h.clock.Now())
		}
		return nil, shared.WrapError("progression", "Load", shared.ErrServiceUnavailable,
			"failed to load user progress", err)
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, progress, h.cacheTTL); err != nil {
			h.log.Warn("progress cache write failed", logger.UserID(userID), logger.Err(err))
		}
	}

	return progress, nil
}

// summarize computes the derived presentation values.
func (h *ProgressQueryHandler) summarize(p *domain.UserProgress) *ProgressSummary {
	now := h.clock.Now()

	badges := make([]BadgeView, 0, len(p.EarnedBadges))
	for id, unlockedAt := range p.EarnedBadges {
		view := BadgeView{ID: string(id), UnlockedAt: unlockedAt}
		if def, ok := h.catalog.Get(id); ok {
			view.Name = def.Name
			view.Description = def.Description
			view.Category = string(def.Category)
			view.XPReward = int(def.XPReward)
		}
		badges = append(badges, view)
	}

	// Map iteration order is random; clients get unlock order.
	sort.Slice(badges, func(i, j int) bool {
		if badges[i].UnlockedAt.Equal(badges[j].UnlockedAt) {
			return badges[i].ID < badges[j].ID
		}
		return badges[i].UnlockedAt.Before(badges[j].UnlockedAt)
	})

	return &ProgressSummary{
		UserID:               p.UserID,
		TotalXP:              int(p.TotalXP),
		Level:                int(p.Level),
		ProgressToNextLevel:  domain.ProgressToNextLevel(p.TotalXP),
		XPToNextLevel:        int(domain.XPToNextLevel(p.TotalXP)),
		CurrentStreak:        p.CurrentStreak,
		LongestStreak:        p.LongestStreak,
		HoursUntilStreakLost: domain.HoursUntilStreakLost(p, now),
		QuizzesCompleted:     p.QuizzesCompleted,
		PerfectScores:        p.PerfectScores,
		LessonsCompleted:     p.LessonsCompleted,
		Badges:               badges,
		LastActivityAt:       p.LastActivityAt,
	}
}
