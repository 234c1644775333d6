package progression

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProgress(t *testing.T) *UserProgress {
	t.Helper()
	p, err := NewUserProgress("user-1", time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return p
}

func TestRecordActivity_FirstActivity(t *testing.T) {
	p := newTestProgress(t)
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	transition := RecordActivity(p, now)

	assert.Equal(t, StreakStarted, transition)
	assert.Equal(t, 1, p.CurrentStreak)
	assert.Equal(t, 1, p.LongestStreak)
	assert.Equal(t, now, p.LastActivityAt)
}

func TestRecordActivity_SameDayRefreshes(t *testing.T) {
	p := newTestProgress(t)
	morning := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	evening := time.Date(2025, 3, 1, 21, 0, 0, 0, time.UTC)

	RecordActivity(p, morning)
	transition := RecordActivity(p, evening)

	assert.Equal(t, StreakRefreshed, transition)
	assert.Equal(t, 1, p.CurrentStreak)
	assert.Equal(t, evening, p.LastActivityAt)
}

func TestRecordActivity_NextDayWithinGraceContinues(t *testing.T) {
	p := newTestProgress(t)
	day1 := time.Date(2025, 3, 1, 22, 0, 0, 0, time.UTC)

	RecordActivity(p, day1)

	// 35 hours later: past midnight, still inside the 36-hour window.
	transition := RecordActivity(p, day1.Add(35*time.Hour))

	assert.Equal(t, StreakContinued, transition)
	assert.Equal(t, 2, p.CurrentStreak)
	assert.Equal(t, 2, p.LongestStreak)
}

func TestRecordActivity_BeyondGraceBreaks(t *testing.T) {
	p := newTestProgress(t)
	day1 := time.Date(2025, 3, 1, 22, 0, 0, 0, time.UTC)

	RecordActivity(p, day1)
	RecordActivity(p, day1.Add(26*time.Hour)) // streak = 2

	transition := RecordActivity(p, p.LastActivityAt.Add(37*time.Hour))

	assert.Equal(t, StreakBroken, transition)
	assert.Equal(t, 1, p.CurrentStreak)
	assert.Equal(t, 2, p.LongestStreak, "longest streak survives the break")
}

func TestRecordActivity_LongRun(t *testing.T) {
	p := newTestProgress(t)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 7; i++ {
		RecordActivity(p, now.Add(time.Duration(i)*24*time.Hour))
	}

	assert.Equal(t, 7, p.CurrentStreak)
	assert.Equal(t, 7, p.LongestStreak)
}

func TestHoursUntilStreakLost(t *testing.T) {
	p := newTestProgress(t)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 0.0, HoursUntilStreakLost(p, now), "no activity yet")

	RecordActivity(p, now)

	assert.InDelta(t, 36.0, HoursUntilStreakLost(p, now), 0.001)
	assert.InDelta(t, 12.0, HoursUntilStreakLost(p, now.Add(24*time.Hour)), 0.001)
	assert.Equal(t, 0.0, HoursUntilStreakLost(p, now.Add(40*time.Hour)))
}

func TestIsStreakBroken(t *testing.T) {
	p := newTestProgress(t)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.False(t, IsStreakBroken(p, now), "no activity means nothing to break")

	RecordActivity(p, now)

	assert.False(t, IsStreakBroken(p, now.Add(35*time.Hour)))
	assert.True(t, IsStreakBroken(p, now.Add(37*time.Hour)))
}

func TestRecordActivity_DayBoundaryInCallerZone(t *testing.T) {
	p := newTestProgress(t)
	zone := time.FixedZone("UTC+5", 5*60*60)

	// The stored timestamp carries UTC, as after a database read:
	// 22:00 UTC on March 1 is already 03:00 March 2 in the app zone.
	RecordActivity(p, time.Date(2025, 3, 1, 22, 0, 0, 0, time.UTC))

	sameDay := time.Date(2025, 3, 2, 9, 0, 0, 0, zone)
	transition := RecordActivity(p, sameDay)

	assert.Equal(t, StreakRefreshed, transition, "same day in the app zone")
	assert.Equal(t, 1, p.CurrentStreak)

	nextDay := time.Date(2025, 3, 3, 8, 0, 0, 0, zone)
	transition = RecordActivity(p, nextDay)

	assert.Equal(t, StreakContinued, transition)
	assert.Equal(t, 2, p.CurrentStreak)
}
