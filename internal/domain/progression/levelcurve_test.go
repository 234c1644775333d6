package progression

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelFor_FixedPoints(t *testing.T) {
	assert.Equal(t, Level(1), LevelFor(0))
	assert.Equal(t, Level(1), LevelFor(49))
	assert.Equal(t, Level(2), LevelFor(50))
	assert.Equal(t, Level(2), LevelFor(199))
	assert.Equal(t, Level(3), LevelFor(200))
	assert.Equal(t, Level(4), LevelFor(450))
}

func TestLevelFor_NegativeXP(t *testing.T) {
	assert.Equal(t, Level(1), LevelFor(-10))
}

func TestLevelFor_Cap(t *testing.T) {
	assert.Equal(t, Level(MaxLevel), LevelFor(XPRequiredFor(MaxLevel)))
	assert.Equal(t, Level(MaxLevel), LevelFor(10_000_000))
}

func TestXPRequiredFor_RoundTrip(t *testing.T) {
	// Threshold XP of every level must map back to exactly that level,
	// and one XP below must map to the level before it.
	for l := Level(2); l <= MaxLevel; l++ {
		threshold := XPRequiredFor(l)
		assert.Equal(t, l, LevelFor(threshold), "level %d threshold %d", l, threshold)
		assert.Equal(t, l-1, LevelFor(threshold-1), "below threshold of level %d", l)
	}
}

func TestXPRequiredFor_LevelOne(t *testing.T) {
	assert.Equal(t, XP(0), XPRequiredFor(1))
	assert.Equal(t, XP(0), XPRequiredFor(0))
	assert.Equal(t, XP(0), XPRequiredFor(-3))
}

func TestLevelFor_Monotonic(t *testing.T) {
	prev := LevelFor(0)
	for xp := XP(1); xp <= 5000; xp++ {
		cur := LevelFor(xp)
		assert.GreaterOrEqual(t, cur, prev, "xp=%d", xp)
		prev = cur
	}
}

func TestProgressToNextLevel(t *testing.T) {
	assert.Equal(t, 0.0, ProgressToNextLevel(0))
	assert.InDelta(t, 0.5, ProgressToNextLevel(25), 0.001)
	assert.Equal(t, 1.0, ProgressToNextLevel(XPRequiredFor(MaxLevel)))
}

func TestXPToNextLevel(t *testing.T) {
	assert.Equal(t, XP(50), XPToNextLevel(0))
	assert.Equal(t, XP(1), XPToNextLevel(49))
	assert.Equal(t, XP(0), XPToNextLevel(XPRequiredFor(MaxLevel)))
}
