package progression

import "math"

// ══════════════════════════════════════════════════════════════════════════════
// LEVEL CURVE
// Детерминированное отображение между суммарным XP и уровнем.
// Чистые тотальные функции, без состояния.
// ══════════════════════════════════════════════════════════════════════════════

const (
	// LevelCurveK - коэффициент кривой уровней: уровень L требует (L-1)^2 * K XP.
	LevelCurveK = 50

	// MaxLevel - потолок уровней. XP продолжает накапливаться и после него,
	// но уровень больше не растёт.
	MaxLevel = 50
)

// XPRequiredFor возвращает суммарный XP, необходимый для достижения уровня.
// Уровень 1 требует 0 XP.
func XPRequiredFor(level Level) XP {
	if level <= 1 {
		return 0
	}
	if level > MaxLevel {
		level = MaxLevel
	}
	n := int(level) - 1
	return XP(n * n * LevelCurveK)
}

// LevelFor возвращает уровень для суммарного XP.
// Для любого xp >= 0 результат не меньше 1 и не больше MaxLevel.
func LevelFor(xp XP) Level {
	if xp <= 0 {
		return 1
	}

	level := Level(math.Sqrt(float64(xp)/float64(LevelCurveK))) + 1
	if level > MaxLevel {
		return MaxLevel
	}
	if level < 1 {
		return 1
	}
	return level
}

// ProgressToNextLevel возвращает долю пути до следующего уровня в [0, 1].
// Возвращает 1.0, если уровень уже максимальный.
func ProgressToNextLevel(xp XP) float64 {
	level := LevelFor(xp)
	if level >= MaxLevel {
		return 1.0
	}

	current := XPRequiredFor(level)
	next := XPRequiredFor(level + 1)

	fraction := float64(xp-current) / float64(next-current)
	if fraction < 0 {
		return 0
	}
	if fraction > 1 {
		return 1
	}
	return fraction
}

// XPToNextLevel возвращает, сколько XP осталось до следующего уровня.
// Возвращает 0 на максимальном уровне.
func XPToNextLevel(xp XP) XP {
	level := LevelFor(xp)
	if level >= MaxLevel {
		return 0
	}

	remaining := XPRequiredFor(level+1) - xp
	if remaining < 0 {
		return 0
	}
	return remaining
}
