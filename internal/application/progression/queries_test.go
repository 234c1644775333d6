package progression

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/quizowl/quizowl-progression/internal/domain/progression"
	"github.com/quizowl/quizowl-progression/pkg/timeutil"
)

// recordingCache wraps fakeCache with a settable hit and call counters.
type recordingCache struct {
	fakeCache
	stored  *domain.UserProgress
	getErr  error
	gets    int
	sets    int
	lastSet *domain.UserProgress
}

func (c *recordingCache) Get(ctx context.Context, userID string) (*domain.UserProgress, error) {
	c.gets++
	if c.getErr != nil {
		return nil, c.getErr
	}
	if c.stored == nil {
		return nil, domain.ErrProgressNotFound
	}
	return c.stored.Clone(), nil
}

func (c *recordingCache) Set(ctx context.Context, progress *domain.UserProgress, ttl time.Duration) error {
	c.sets++
	c.lastSet = progress
	return nil
}

func newQueryFixture(t *testing.T) (*ProgressQueryHandler, *fakeProgressRepo, *recordingCache, *timeutil.ManualClock) {
	t.Helper()

	repo := newFakeProgressRepo()
	cache := &recordingCache{}
	clock := timeutil.NewManualClock(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
	handler := NewProgressQueryHandler(repo, cache, domain.DefaultBadgeCatalog(), clock, time.Minute, nil)

	return handler, repo, cache, clock
}

func TestGetProgressSummary_FreshUser(t *testing.T) {
	handler, _, _, _ := newQueryFixture(t)

	summary, err := handler.GetProgressSummary(context.Background(), "nobody")
	require.NoError(t, err)

	assert.Equal(t, "nobody", summary.UserID)
	assert.Equal(t, 0, summary.TotalXP)
	assert.Equal(t, 1, summary.Level)
	assert.Equal(t, 50, summary.XPToNextLevel)
	assert.Equal(t, 0, summary.CurrentStreak)
	assert.Empty(t, summary.Badges)
}

func TestGetProgressSummary_EmptyUserID(t *testing.T) {
	handler, _, _, _ := newQueryFixture(t)

	_, err := handler.GetProgressSummary(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidUserID)
}

func TestGetProgressSummary_RepoFallbackBackfillsCache(t *testing.T) {
	handler, repo, cache, clock := newQueryFixture(t)
	ctx := context.Background()

	p, err := domain.NewUserProgress("u1", clock.Now())
	require.NoError(t, err)
	p.AddXP(120)
	require.NoError(t, repo.Save(ctx, p))

	summary, err := handler.GetProgressSummary(ctx, "u1")
	require.NoError(t, err)

	assert.Equal(t, 120, summary.TotalXP)
	assert.Equal(t, 2, summary.Level)
	assert.Equal(t, 1, cache.gets, "cache consulted first")
	assert.Equal(t, 1, cache.sets, "store hit backfills the cache")
	assert.Equal(t, "u1", cache.lastSet.UserID)
}

func TestGetProgressSummary_CacheHitSkipsStore(t *testing.T) {
	handler, repo, cache, clock := newQueryFixture(t)

	p, err := domain.NewUserProgress("u1", clock.Now())
	require.NoError(t, err)
	p.AddXP(75)
	cache.stored = p

	summary, err := handler.GetProgressSummary(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, 75, summary.TotalXP)
	assert.Equal(t, 0, repo.saveSeen)
	assert.Equal(t, 0, cache.sets, "no backfill on a cache hit")
}

func TestGetProgressSummary_CacheFailureFallsThrough(t *testing.T) {
	handler, repo, cache, clock := newQueryFixture(t)
	ctx := context.Background()

	cache.getErr = errors.New("redis: connection refused")

	p, err := domain.NewUserProgress("u1", clock.Now())
	require.NoError(t, err)
	p.AddXP(30)
	require.NoError(t, repo.Save(ctx, p))

	summary, err := handler.GetProgressSummary(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 30, summary.TotalXP)
}

func TestGetProgressSummary_StoreUnavailable(t *testing.T) {
	handler, repo, _, _ := newQueryFixture(t)

	repo.loadErr = errors.New("dial tcp: connection refused")

	_, err := handler.GetProgressSummary(context.Background(), "u1")
	require.Error(t, err)
	assert.True(t, IsStoreUnavailable(err))
}

func TestGetProgressSummary_BadgesResolvedFromCatalog(t *testing.T) {
	handler, repo, _, clock := newQueryFixture(t)
	ctx := context.Background()

	p, err := domain.NewUserProgress("u1", clock.Now())
	require.NoError(t, err)
	p.GrantBadge(domain.BadgeQuizFirst, clock.Now())
	p.AddXP(25)
	require.NoError(t, repo.Save(ctx, p))

	summary, err := handler.GetProgressSummary(ctx, "u1")
	require.NoError(t, err)

	require.Len(t, summary.Badges, 1)
	badge := summary.Badges[0]
	assert.Equal(t, string(domain.BadgeQuizFirst), badge.ID)
	assert.NotEmpty(t, badge.Name, "name resolved from the catalog")
	assert.Equal(t, 25, badge.XPReward)
	assert.Equal(t, clock.Now(), badge.UnlockedAt)
}

func TestGetProgressSummary_StreakCountdown(t *testing.T) {
	handler, repo, _, clock := newQueryFixture(t)
	ctx := context.Background()

	p, err := domain.NewUserProgress("u1", clock.Now())
	require.NoError(t, err)
	domain.RecordActivity(p, clock.Now())
	require.NoError(t, repo.Save(ctx, p))

	clock.Advance(24 * time.Hour)

	summary, err := handler.GetProgressSummary(ctx, "u1")
	require.NoError(t, err)
	assert.InDelta(t, 12.0, summary.HoursUntilStreakLost, 0.001)
}

func TestGetProgressSummary_BadgesInUnlockOrder(t *testing.T) {
	handler, repo, _, clock := newQueryFixture(t)
	ctx := context.Background()

	p, err := domain.NewUserProgress("u1", clock.Now())
	require.NoError(t, err)
	p.GrantBadge(domain.BadgeStreakSeven, clock.Now().Add(48*time.Hour))
	p.GrantBadge(domain.BadgeQuizFirst, clock.Now())
	p.GrantBadge(domain.BadgeStreakThree, clock.Now().Add(24*time.Hour))
	p.AddXP(130)
	require.NoError(t, repo.Save(ctx, p))

	summary, err := handler.GetProgressSummary(ctx, "u1")
	require.NoError(t, err)

	require.Len(t, summary.Badges, 3)
	assert.Equal(t, string(domain.BadgeQuizFirst), summary.Badges[0].ID)
	assert.Equal(t, string(domain.BadgeStreakThree), summary.Badges[1].ID)
	assert.Equal(t, string(domain.BadgeStreakSeven), summary.Badges[2].ID)
}
