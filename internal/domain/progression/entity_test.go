package progression

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUserProgress(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	p, err := NewUserProgress("user-1", now)
	require.NoError(t, err)

	assert.Equal(t, "user-1", p.UserID)
	assert.Equal(t, XP(0), p.TotalXP)
	assert.Equal(t, Level(1), p.Level)
	assert.Equal(t, 0, p.CurrentStreak)
	assert.True(t, p.LastActivityAt.IsZero())
	assert.NotNil(t, p.SubjectQuizCounts)
	assert.NotNil(t, p.EarnedBadges)
	assert.NoError(t, p.Validate())
}

func TestNewUserProgress_EmptyID(t *testing.T) {
	_, err := NewUserProgress("", time.Now())
	assert.ErrorIs(t, err, ErrInvalidUserID)

	_, err = NewUserProgress("   ", time.Now())
	assert.ErrorIs(t, err, ErrInvalidUserID)
}

func TestAddXP_LevelUp(t *testing.T) {
	p := newTestProgress(t)

	app := p.AddXP(49)
	assert.Equal(t, Level(1), app.NewLevel)
	assert.False(t, app.LeveledUp)

	app = p.AddXP(1)
	assert.Equal(t, XP(50), app.NewTotal)
	assert.Equal(t, Level(1), app.PreviousLevel)
	assert.Equal(t, Level(2), app.NewLevel)
	assert.True(t, app.LeveledUp)
	assert.Equal(t, Level(2), p.Level)
}

func TestAddXP_NegativeClampedToZero(t *testing.T) {
	p := newTestProgress(t)
	p.AddXP(100)

	app := p.AddXP(-50)

	assert.Equal(t, XP(0), app.Amount)
	assert.Equal(t, XP(100), p.TotalXP, "total XP never decreases")
}

func TestRecordQuiz(t *testing.T) {
	p := newTestProgress(t)

	p.RecordQuiz("math", false)
	p.RecordQuiz("math", true)
	p.RecordQuiz("", false)

	assert.Equal(t, 3, p.QuizzesCompleted)
	assert.Equal(t, 1, p.PerfectScores)
	assert.Equal(t, 2, p.SubjectQuizCount("math"))
	assert.Equal(t, 0, p.SubjectQuizCount("history"))
}

func TestGrantBadge_Idempotent(t *testing.T) {
	p := newTestProgress(t)
	now := time.Now()

	assert.True(t, p.GrantBadge(BadgeQuizFirst, now))
	assert.False(t, p.GrantBadge(BadgeQuizFirst, now.Add(time.Hour)))
	assert.True(t, p.HasBadge(BadgeQuizFirst))
	assert.Equal(t, now, p.EarnedBadges[BadgeQuizFirst], "first unlock time wins")
}

func TestValidate_LevelMismatch(t *testing.T) {
	p := newTestProgress(t)
	p.TotalXP = 500
	p.Level = 1 // LevelFor(500) is 4

	assert.Error(t, p.Validate())
}

func TestValidate_StreakInvariant(t *testing.T) {
	p := newTestProgress(t)
	p.CurrentStreak = 5
	p.LongestStreak = 3

	assert.Error(t, p.Validate())
}

func TestClone_DeepCopy(t *testing.T) {
	p := newTestProgress(t)
	p.RecordQuiz("math", true)
	p.GrantBadge(BadgeQuizFirst, time.Now())

	clone := p.Clone()
	clone.SubjectQuizCounts["math"] = 99
	clone.GrantBadge(BadgeQuizTen, time.Now())
	clone.AddXP(1000)

	assert.Equal(t, 1, p.SubjectQuizCounts["math"], "original maps untouched")
	assert.False(t, p.HasBadge(BadgeQuizTen))
	assert.Equal(t, XP(0), p.TotalXP)
}

func TestClone_Nil(t *testing.T) {
	var p *UserProgress
	assert.Nil(t, p.Clone())
}
