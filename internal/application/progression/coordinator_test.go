package progression

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/quizowl/quizowl-progression/internal/domain/progression"
	"github.com/quizowl/quizowl-progression/internal/domain/shared"
	"github.com/quizowl/quizowl-progression/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY FAKES
// ══════════════════════════════════════════════════════════════════════════════

type fakeProgressRepo struct {
	records  map[string]*domain.UserProgress
	saveErr  error
	loadErr  error
	saveSeen int
}

func newFakeProgressRepo() *fakeProgressRepo {
	return &fakeProgressRepo{records: make(map[string]*domain.UserProgress)}
}

func (r *fakeProgressRepo) Load(ctx context.Context, userID string) (*domain.UserProgress, error) {
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	p, ok := r.records[userID]
	if !ok {
		return nil, domain.ErrProgressNotFound
	}
	return p.Clone(), nil
}

func (r *fakeProgressRepo) Save(ctx context.Context, progress *domain.UserProgress) error {
	r.saveSeen++
	if r.saveErr != nil {
		return r.saveErr
	}
	r.records[progress.UserID] = progress.Clone()
	return nil
}

type fakeChallengeRepo struct {
	challenges map[string]*domain.DailyChallenge
	saveErr    error
}

func newFakeChallengeRepo() *fakeChallengeRepo {
	return &fakeChallengeRepo{challenges: make(map[string]*domain.DailyChallenge)}
}

func (r *fakeChallengeRepo) GetCurrent(ctx context.Context, userID string) (*domain.DailyChallenge, error) {
	c, ok := r.challenges[userID]
	if !ok {
		return nil, domain.ErrChallengeNotFound
	}
	copied := *c
	return &copied, nil
}

func (r *fakeChallengeRepo) Save(ctx context.Context, challenge *domain.DailyChallenge) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	copied := *challenge
	r.challenges[challenge.UserID] = &copied
	return nil
}

type fakeEventRepo struct {
	appended []domain.XPEvent
}

func (r *fakeEventRepo) Append(ctx context.Context, event domain.XPEvent) error {
	r.appended = append(r.appended, event)
	return nil
}

func (r *fakeEventRepo) ListUnsynced(ctx context.Context, limit int) ([]domain.XPEvent, error) {
	var out []domain.XPEvent
	for _, ev := range r.appended {
		if ev.SyncedAt.IsZero() {
			out = append(out, ev)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *fakeEventRepo) MarkSynced(ctx context.Context, ids []string, at time.Time) error {
	for i := range r.appended {
		for _, id := range ids {
			if r.appended[i].ID == id {
				r.appended[i].SyncedAt = at
			}
		}
	}
	return nil
}

type fakeCache struct {
	invalidated []string
}

func (c *fakeCache) Get(ctx context.Context, userID string) (*domain.UserProgress, error) {
	return nil, domain.ErrProgressNotFound
}

func (c *fakeCache) Set(ctx context.Context, progress *domain.UserProgress, ttl time.Duration) error {
	return nil
}

func (c *fakeCache) Invalidate(ctx context.Context, userID string) error {
	c.invalidated = append(c.invalidated, userID)
	return nil
}

type capturingPublisher struct {
	events []shared.Event
}

func (p *capturingPublisher) Publish(event shared.Event) error {
	p.events = append(p.events, event)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// TEST HARNESS
// ══════════════════════════════════════════════════════════════════════════════

type coordinatorFixture struct {
	coordinator *Coordinator
	progress    *fakeProgressRepo
	challenges  *fakeChallengeRepo
	events      *fakeEventRepo
	cache       *fakeCache
	publisher   *capturingPublisher
	clock       *timeutil.ManualClock
}

func newCoordinatorFixture(t *testing.T) *coordinatorFixture {
	t.Helper()

	f := &coordinatorFixture{
		progress:   newFakeProgressRepo(),
		challenges: newFakeChallengeRepo(),
		events:     &fakeEventRepo{},
		cache:      &fakeCache{},
		publisher:  &capturingPublisher{},
		clock:      timeutil.NewManualClock(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)),
	}

	idCounter := 0
	newID := func() string {
		idCounter++
		return fmt.Sprintf("id-%d", idCounter)
	}

	f.coordinator = NewCoordinator(CoordinatorConfig{
		ProgressRepo:  f.progress,
		ChallengeRepo: f.challenges,
		EventRepo:     f.events,
		Cache:         f.cache,
		Generator:     domain.NewChallengeGenerator(domain.DefaultChallengeTemplates(), rand.New(rand.NewSource(7)), newID),
		Publisher:     f.publisher,
		Clock:         f.clock,
		NewID:         newID,
	})

	return f
}

// ══════════════════════════════════════════════════════════════════════════════
// AWARD XP
// ══════════════════════════════════════════════════════════════════════════════

func TestAwardXP_FreshUser(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	result, err := f.coordinator.AwardXP(ctx, AwardXPCommand{UserID: "u1", Amount: 60})
	require.NoError(t, err)

	assert.Equal(t, 60, result.BaseAmount)
	assert.Equal(t, 0, result.StreakBonus, "no streak yet, no bonus")
	assert.Equal(t, 60, result.NewTotalXP)
	assert.Equal(t, 2, result.NewLevel)
	assert.True(t, result.LeveledUp)
	assert.Equal(t, domain.StreakStarted, result.StreakTransition)
	assert.Equal(t, 1, result.CurrentStreak)

	saved := f.progress.records["u1"]
	require.NotNil(t, saved)
	assert.Equal(t, domain.XP(60), saved.TotalXP)
	assert.Contains(t, f.cache.invalidated, "u1")
}

func TestAwardXP_StreakBonusUsesLoadedStreak(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	// Build a 3-day streak.
	for i := 0; i < 3; i++ {
		_, err := f.coordinator.AwardXP(ctx, AwardXPCommand{UserID: "u1", Amount: 10})
		require.NoError(t, err)
		f.clock.Advance(24 * time.Hour)
	}

	saved := f.progress.records["u1"]
	require.Equal(t, 3, saved.CurrentStreak)

	// Next-day award: bonus computed from the pre-transition streak of 3.
	result, err := f.coordinator.AwardXP(ctx, AwardXPCommand{UserID: "u1", Amount: 10})
	require.NoError(t, err)

	assert.Equal(t, 3, result.StreakBonus) // 10 * 3 / 10
	assert.Equal(t, 13, result.TotalAwarded)
	assert.Equal(t, 4, result.CurrentStreak, "transition applied after the bonus")
}

func TestAwardXP_BonusFlooredByIntegerDivision(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	// Seed a user with a 3-day streak directly.
	p, err := domain.NewUserProgress("u1", f.clock.Now())
	require.NoError(t, err)
	p.CurrentStreak = 3
	p.LongestStreak = 3
	p.LastActivityAt = f.clock.Now().Add(-2 * time.Hour)
	require.NoError(t, f.progress.Save(ctx, p))

	result, err := f.coordinator.AwardXP(ctx, AwardXPCommand{UserID: "u1", Amount: 25})
	require.NoError(t, err)

	assert.Equal(t, 7, result.StreakBonus) // floor(25 * 3 / 10)
}

func TestAwardXP_ValidationErrors(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	_, err := f.coordinator.AwardXP(ctx, AwardXPCommand{UserID: "", Amount: 10})
	assert.ErrorIs(t, err, domain.ErrInvalidUserID)

	_, err = f.coordinator.AwardXP(ctx, AwardXPCommand{UserID: "u1", Amount: -5})
	assert.ErrorIs(t, err, domain.ErrNegativeXPAmount)

	assert.Equal(t, 0, f.progress.saveSeen, "nothing persisted on validation failure")
}

func TestAwardXP_SaveFailureDiscardsWorkingCopy(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	_, err := f.coordinator.AwardXP(ctx, AwardXPCommand{UserID: "u1", Amount: 10})
	require.NoError(t, err)

	f.progress.saveErr = errors.New("connection reset")

	_, err = f.coordinator.AwardXP(ctx, AwardXPCommand{UserID: "u1", Amount: 50})
	require.Error(t, err)
	assert.True(t, IsStoreUnavailable(err))

	// The stored record still reflects only the first award.
	saved := f.progress.records["u1"]
	assert.Equal(t, domain.XP(10), saved.TotalXP)
}

func TestAwardXP_WritesOutboxEvents(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	result, err := f.coordinator.AwardXP(ctx, AwardXPCommand{
		UserID: "u1", Amount: 40, Source: domain.SourceManual, Description: "migration backfill",
	})
	require.NoError(t, err)

	// One event for the award itself plus one per unlocked badge.
	require.Len(t, f.events.appended, 1+len(result.NewBadges))
	assert.Equal(t, domain.XP(40), f.events.appended[0].Amount)
	assert.Equal(t, domain.SourceManual, f.events.appended[0].Source)
}

// ══════════════════════════════════════════════════════════════════════════════
// QUIZ COMPLETED
// ══════════════════════════════════════════════════════════════════════════════

func TestOnQuizCompleted_FreshUserPerfectQuiz(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	result, err := f.coordinator.OnQuizCompleted(ctx, QuizCompletedCommand{
		UserID:         "u1",
		QuizID:         "q1",
		Subject:        "math",
		TotalQuestions: 5,
		CorrectAnswers: 5,
	})
	require.NoError(t, err)

	// 5*5=25 base, perfect 1.5x = 37
	assert.Equal(t, domain.XP(37), result.Quiz.XPEarned)
	assert.True(t, result.Quiz.Perfect)

	// quiz_first and quiz_perfect unlock in the same pass.
	ids := make([]domain.BadgeID, 0, len(result.Award.NewBadges))
	for _, b := range result.Award.NewBadges {
		ids = append(ids, b.ID)
	}
	assert.ElementsMatch(t, []domain.BadgeID{domain.BadgeQuizFirst, domain.BadgeQuizPerfect}, ids)

	// 37 + badge rewards 25 + 30
	assert.Equal(t, 92, result.Award.NewTotalXP)

	saved := f.progress.records["u1"]
	assert.Equal(t, 1, saved.QuizzesCompleted)
	assert.Equal(t, 1, saved.PerfectScores)
	assert.Equal(t, 1, saved.SubjectQuizCounts["math"])
}

func TestOnQuizCompleted_InvalidCounts(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	_, err := f.coordinator.OnQuizCompleted(ctx, QuizCompletedCommand{
		UserID: "u1", TotalQuestions: 3, CorrectAnswers: 4,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidQuizCounts)
}

func TestOnQuizCompleted_PublishesQuizEvent(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	_, err := f.coordinator.OnQuizCompleted(ctx, QuizCompletedCommand{
		UserID: "u1", QuizID: "q1", TotalQuestions: 4, CorrectAnswers: 2,
	})
	require.NoError(t, err)

	var seen bool
	for _, ev := range f.publisher.events {
		if ev.EventType() == shared.EventQuizCompleted {
			seen = true
		}
	}
	assert.True(t, seen, "quiz completion event published")
}

// ══════════════════════════════════════════════════════════════════════════════
// LESSON COMPLETED
// ══════════════════════════════════════════════════════════════════════════════

func TestOnLessonCompleted(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	result, err := f.coordinator.OnLessonCompleted(ctx, LessonCompletedCommand{
		UserID: "u1", LessonID: "l1",
	})
	require.NoError(t, err)

	assert.Equal(t, 20, result.BaseAmount)
	assert.Equal(t, 20, result.NewTotalXP)

	saved := f.progress.records["u1"]
	assert.Equal(t, 1, saved.LessonsCompleted)
}

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE STREAK
// ══════════════════════════════════════════════════════════════════════════════

func TestUpdateStreak_NoXPAwarded(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	result, err := f.coordinator.UpdateStreak(ctx, UpdateStreakCommand{UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, domain.StreakStarted, result.Transition)
	assert.Equal(t, 1, result.CurrentStreak)
	assert.InDelta(t, 36.0, result.HoursUntilStreakLost, 0.001)

	saved := f.progress.records["u1"]
	assert.Equal(t, domain.XP(0), saved.TotalXP)
	assert.Empty(t, f.events.appended, "bare activity writes no XP events")
}

func TestUpdateStreak_UnlocksStreakBadge(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	var last *StreakResult
	for i := 0; i < 3; i++ {
		var err error
		last, err = f.coordinator.UpdateStreak(ctx, UpdateStreakCommand{UserID: "u1"})
		require.NoError(t, err)
		f.clock.Advance(24 * time.Hour)
	}

	require.Len(t, last.NewBadges, 1)
	assert.Equal(t, domain.BadgeStreakThree, last.NewBadges[0].ID)

	// Badge XP reward is still folded into the total.
	saved := f.progress.records["u1"]
	assert.Equal(t, domain.XP(30), saved.TotalXP)
}

// ══════════════════════════════════════════════════════════════════════════════
// DAILY CHALLENGE
// ══════════════════════════════════════════════════════════════════════════════

func TestGetOrCreateTodayChallenge_StableWithinDay(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	first, err := f.coordinator.GetOrCreateTodayChallenge(ctx, "u1")
	require.NoError(t, err)

	f.clock.Advance(6 * time.Hour)

	second, err := f.coordinator.GetOrCreateTodayChallenge(ctx, "u1")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "same challenge all day")
}

func TestGetOrCreateTodayChallenge_RotatesNextDay(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	first, err := f.coordinator.GetOrCreateTodayChallenge(ctx, "u1")
	require.NoError(t, err)

	f.clock.Advance(24 * time.Hour)

	second, err := f.coordinator.GetOrCreateTodayChallenge(ctx, "u1")
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, f.clock.Now().Format(domain.DayFormat), second.Day)
}

func TestCompleteDailyChallenge_AwardsReward(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	challenge, err := f.coordinator.GetOrCreateTodayChallenge(ctx, "u1")
	require.NoError(t, err)

	result, err := f.coordinator.CompleteDailyChallenge(ctx, CompleteChallengeCommand{UserID: "u1"})
	require.NoError(t, err)

	assert.True(t, result.Completed)
	assert.False(t, result.AlreadyCompleted)
	assert.False(t, result.Stale)
	assert.Equal(t, int(challenge.XPReward), result.Award.BaseAmount)

	stored := f.challenges.challenges["u1"]
	assert.True(t, stored.Completed)
}

func TestCompleteDailyChallenge_SecondAttemptIsNoOp(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	_, err := f.coordinator.GetOrCreateTodayChallenge(ctx, "u1")
	require.NoError(t, err)

	_, err = f.coordinator.CompleteDailyChallenge(ctx, CompleteChallengeCommand{UserID: "u1"})
	require.NoError(t, err)

	totalAfterFirst := f.progress.records["u1"].TotalXP

	result, err := f.coordinator.CompleteDailyChallenge(ctx, CompleteChallengeCommand{UserID: "u1"})
	require.NoError(t, err)

	assert.False(t, result.Completed)
	assert.True(t, result.AlreadyCompleted)
	assert.Equal(t, totalAfterFirst, f.progress.records["u1"].TotalXP, "no double reward")
}

func TestCompleteDailyChallenge_StaleIsBenign(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	_, err := f.coordinator.GetOrCreateTodayChallenge(ctx, "u1")
	require.NoError(t, err)

	f.clock.Advance(24 * time.Hour)

	result, err := f.coordinator.CompleteDailyChallenge(ctx, CompleteChallengeCommand{UserID: "u1"})
	require.NoError(t, err)

	assert.False(t, result.Completed)
	assert.True(t, result.Stale)
	assert.Nil(t, f.progress.records["u1"], "no progress record created for a stale completion")
}

func TestCompleteDailyChallenge_NoChallengeStored(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	result, err := f.coordinator.CompleteDailyChallenge(ctx, CompleteChallengeCommand{UserID: "u1"})
	require.NoError(t, err)

	assert.True(t, result.Stale)
	assert.Nil(t, result.Challenge)
}

func TestCompleteDailyChallenge_ProgressSaveFailureKeepsRewardClaimable(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	challenge, err := f.coordinator.GetOrCreateTodayChallenge(ctx, "u1")
	require.NoError(t, err)

	f.progress.saveErr = errors.New("connection reset")

	_, err = f.coordinator.CompleteDailyChallenge(ctx, CompleteChallengeCommand{UserID: "u1"})
	require.Error(t, err)
	assert.True(t, IsStoreUnavailable(err))
	assert.False(t, f.challenges.challenges["u1"].Completed, "challenge stays open after a failed award")

	// The store recovers; the retry must land the reward.
	f.progress.saveErr = nil

	result, err := f.coordinator.CompleteDailyChallenge(ctx, CompleteChallengeCommand{UserID: "u1"})
	require.NoError(t, err)

	assert.True(t, result.Completed)
	assert.False(t, result.AlreadyCompleted)
	assert.Equal(t, int(challenge.XPReward), result.Award.BaseAmount)
	assert.Equal(t, domain.XP(result.Award.NewTotalXP), f.progress.records["u1"].TotalXP)
	assert.True(t, f.challenges.challenges["u1"].Completed)
}
