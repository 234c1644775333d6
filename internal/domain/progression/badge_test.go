package progression

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgeCatalog_Register(t *testing.T) {
	catalog := NewBadgeCatalog()

	err := catalog.Register(Badge{
		ID:        "test_badge",
		Predicate: func(p *UserProgress) bool { return true },
	})
	require.NoError(t, err)
	assert.Equal(t, 1, catalog.Len())

	err = catalog.Register(Badge{
		ID:        "test_badge",
		Predicate: func(p *UserProgress) bool { return true },
	})
	assert.Error(t, err, "duplicate ID is rejected")

	err = catalog.Register(Badge{ID: "no_predicate"})
	assert.Error(t, err)
}

func TestDefaultBadgeCatalog(t *testing.T) {
	catalog := DefaultBadgeCatalog()

	assert.Equal(t, 10, catalog.Len())

	badge, ok := catalog.Get(BadgeQuizFirst)
	assert.True(t, ok)
	assert.Equal(t, XP(25), badge.XPReward)

	_, ok = catalog.Get("unknown")
	assert.False(t, ok)
}

func TestBadgeEvaluator_FirstQuizPerfect(t *testing.T) {
	evaluator := NewBadgeEvaluator(DefaultBadgeCatalog())
	p := newTestProgress(t)
	now := time.Now()

	// A fresh user acing their first quiz unlocks both quiz badges
	// in the same pass.
	p.RecordQuiz("math", true)

	unlocked := evaluator.Evaluate(p, now)

	ids := make([]BadgeID, 0, len(unlocked))
	for _, b := range unlocked {
		ids = append(ids, b.ID)
	}
	assert.ElementsMatch(t, []BadgeID{BadgeQuizFirst, BadgeQuizPerfect}, ids)

	// Rewards folded into TotalXP: 25 + 30.
	assert.Equal(t, XP(55), p.TotalXP)
	assert.True(t, p.HasBadge(BadgeQuizFirst))
	assert.True(t, p.HasBadge(BadgeQuizPerfect))
}

func TestBadgeEvaluator_Idempotent(t *testing.T) {
	evaluator := NewBadgeEvaluator(DefaultBadgeCatalog())
	p := newTestProgress(t)
	now := time.Now()

	p.RecordQuiz("math", false)

	first := evaluator.Evaluate(p, now)
	assert.Len(t, first, 1)

	second := evaluator.Evaluate(p, now)
	assert.Empty(t, second, "already unlocked badges are never re-issued")
}

func TestBadgeEvaluator_NoChainedUnlocksWithinPass(t *testing.T) {
	// Badge rewards are applied after predicates are checked. If a reward
	// pushes the user over another badge's threshold, that badge is issued
	// on the next pass, not this one.
	catalog := NewBadgeCatalog()
	require.NoError(t, catalog.Register(Badge{
		ID: "first_quiz", XPReward: 100,
		Predicate: func(p *UserProgress) bool { return p.QuizzesCompleted >= 1 },
	}))
	require.NoError(t, catalog.Register(Badge{
		ID: "rich", XPReward: 10,
		Predicate: func(p *UserProgress) bool { return p.TotalXP >= 100 },
	}))

	evaluator := NewBadgeEvaluator(catalog)
	p := newTestProgress(t)
	now := time.Now()
	p.RecordQuiz("math", false)

	first := evaluator.Evaluate(p, now)
	require.Len(t, first, 1)
	assert.Equal(t, BadgeID("first_quiz"), first[0].ID)
	assert.Equal(t, XP(100), p.TotalXP)

	second := evaluator.Evaluate(p, now)
	require.Len(t, second, 1)
	assert.Equal(t, BadgeID("rich"), second[0].ID)
}

func TestBadgeEvaluator_StreakBadges(t *testing.T) {
	evaluator := NewBadgeEvaluator(DefaultBadgeCatalog())
	p := newTestProgress(t)
	p.CurrentStreak = 7
	p.LongestStreak = 7

	unlocked := evaluator.Evaluate(p, time.Now())

	ids := make([]BadgeID, 0, len(unlocked))
	for _, b := range unlocked {
		ids = append(ids, b.ID)
	}
	assert.ElementsMatch(t, []BadgeID{BadgeStreakThree, BadgeStreakSeven}, ids)
}

func TestBadgeEvaluator_SubjectExpert(t *testing.T) {
	evaluator := NewBadgeEvaluator(DefaultBadgeCatalog())
	p := newTestProgress(t)

	for i := 0; i < 4; i++ {
		p.RecordQuiz("math", false)
	}
	// quiz_first unlocks on the first pass; clear the slate for clarity.
	evaluator.Evaluate(p, time.Now())

	p.RecordQuiz("math", false)
	unlocked := evaluator.Evaluate(p, time.Now())

	require.Len(t, unlocked, 1)
	assert.Equal(t, BadgeSubjectExpert, unlocked[0].ID)
}
