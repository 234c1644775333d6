package progression

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGenerator() *ChallengeGenerator {
	counter := 0
	newID := func() string {
		counter++
		return fmt.Sprintf("challenge-%d", counter)
	}
	return NewChallengeGenerator(DefaultChallengeTemplates(), rand.New(rand.NewSource(42)), newID)
}

func TestChallengeGenerator_CreatesForNewUser(t *testing.T) {
	gen := newTestGenerator()
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	challenge, created, err := gen.GetOrCreateToday(nil, "user-1", now)
	require.NoError(t, err)

	assert.True(t, created)
	assert.Equal(t, "user-1", challenge.UserID)
	assert.Equal(t, "2025-03-01", challenge.Day)
	assert.False(t, challenge.Completed)
	assert.NotEmpty(t, challenge.ID)
	assert.NotEmpty(t, challenge.TemplateID)
}

func TestChallengeGenerator_SameDayIsStable(t *testing.T) {
	gen := newTestGenerator()
	morning := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	evening := time.Date(2025, 3, 1, 22, 0, 0, 0, time.UTC)

	first, _, err := gen.GetOrCreateToday(nil, "user-1", morning)
	require.NoError(t, err)

	second, created, err := gen.GetOrCreateToday(first, "user-1", evening)
	require.NoError(t, err)

	assert.False(t, created)
	assert.Same(t, first, second, "a valid stored challenge is returned unchanged")
}

func TestChallengeGenerator_NextDayRotates(t *testing.T) {
	gen := newTestGenerator()
	day1 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC)

	first, _, err := gen.GetOrCreateToday(nil, "user-1", day1)
	require.NoError(t, err)

	second, created, err := gen.GetOrCreateToday(first, "user-1", day2)
	require.NoError(t, err)

	assert.True(t, created)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, "2025-03-02", second.Day)
}

func TestChallengeGenerator_EmptyTemplatePool(t *testing.T) {
	gen := NewChallengeGenerator(nil, rand.New(rand.NewSource(1)), func() string { return "x" })

	_, _, err := gen.GetOrCreateToday(nil, "user-1", time.Now())
	assert.ErrorIs(t, err, ErrChallengeNotFound)
}

func TestDailyChallenge_Complete(t *testing.T) {
	now := time.Date(2025, 3, 1, 15, 0, 0, 0, time.UTC)
	challenge := &DailyChallenge{
		ID:     "c1",
		UserID: "user-1",
		Day:    "2025-03-01",
	}

	assert.True(t, challenge.Complete(now))
	assert.True(t, challenge.Completed)
	assert.Equal(t, now, challenge.CompletedAt)

	// Second completion on the same day is a no-op.
	assert.False(t, challenge.Complete(now.Add(time.Hour)))
	assert.Equal(t, now, challenge.CompletedAt)
}

func TestDailyChallenge_CompleteStale(t *testing.T) {
	challenge := &DailyChallenge{
		ID:     "c1",
		UserID: "user-1",
		Day:    "2025-03-01",
	}

	nextDay := time.Date(2025, 3, 2, 0, 30, 0, 0, time.UTC)

	assert.True(t, challenge.IsStale(nextDay))
	assert.False(t, challenge.Complete(nextDay))
	assert.False(t, challenge.Completed)
}

func TestDailyChallenge_CanComplete(t *testing.T) {
	gen := newTestGenerator()
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	challenge, _, err := gen.GetOrCreateToday(nil, "user-1", now)
	require.NoError(t, err)

	assert.NoError(t, challenge.CanComplete(now))
	assert.ErrorIs(t, challenge.CanComplete(now.Add(24*time.Hour)), ErrChallengeStale)

	challenge.Complete(now)
	assert.ErrorIs(t, challenge.CanComplete(now), ErrChallengeCompleted)
}
