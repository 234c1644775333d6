package progression

import (
	"fmt"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// BADGES (Бейджи)
//
// Каталог статичен и неизменяем во время работы. Предикат каждого бейджа -
// чистая функция от UserProgress. Оценка идемпотентна: уже разблокированные
// бейджи никогда не возвращаются повторно.
// ══════════════════════════════════════════════════════════════════════════════

// BadgeID представляет идентификатор бейджа.
type BadgeID string

// Идентификаторы бейджей каталога по умолчанию.
const (
	BadgeQuizFirst     BadgeID = "quiz_first"
	BadgeQuizTen       BadgeID = "quiz_10"
	BadgeQuizPerfect   BadgeID = "quiz_perfect"
	BadgeStreakThree   BadgeID = "streak_3"
	BadgeStreakSeven   BadgeID = "streak_7"
	BadgeStreakThirty  BadgeID = "streak_30"
	BadgeLevelFive     BadgeID = "level_5"
	BadgeLevelTen      BadgeID = "level_10"
	BadgeLevelTwenty5  BadgeID = "level_25"
	BadgeSubjectExpert BadgeID = "subject_expert"
)

// BadgeCategory представляет категорию бейджа.
type BadgeCategory string

const (
	// CategoryQuiz - бейджи за количество и качество квизов.
	CategoryQuiz BadgeCategory = "quiz"
	// CategoryStreak - бейджи за серии активных дней.
	CategoryStreak BadgeCategory = "streak"
	// CategoryLevel - бейджи за достигнутые уровни.
	CategoryLevel BadgeCategory = "level"
	// CategorySubject - бейджи за глубину в отдельном предмете.
	CategorySubject BadgeCategory = "subject"
)

// BadgePredicate - чистый предикат разблокировки над прогрессом.
type BadgePredicate func(p *UserProgress) bool

// Badge - неизменяемое определение бейджа из каталога.
type Badge struct {
	// ID - уникальный идентификатор.
	ID BadgeID

	// Name - отображаемое название.
	Name string

	// Description - условие разблокировки в человекочитаемом виде.
	Description string

	// Category - категория бейджа.
	Category BadgeCategory

	// XPReward - XP-награда за разблокировку.
	XPReward XP

	// Predicate - условие разблокировки.
	Predicate BadgePredicate
}

// BadgeCatalog - упорядоченный реестр определений бейджей.
type BadgeCatalog struct {
	badges []Badge
	index  map[BadgeID]int
}

// NewBadgeCatalog создаёт пустой каталог.
func NewBadgeCatalog() *BadgeCatalog {
	return &BadgeCatalog{
		index: make(map[BadgeID]int),
	}
}

// Register добавляет бейдж в каталог.
// Возвращает ошибку при дублировании идентификатора.
func (c *BadgeCatalog) Register(badge Badge) error {
	if badge.ID == "" || badge.Predicate == nil {
		return fmt.Errorf("badge %q: id and predicate are required", badge.ID)
	}
	if _, exists := c.index[badge.ID]; exists {
		return fmt.Errorf("badge %q already registered", badge.ID)
	}

	c.index[badge.ID] = len(c.badges)
	c.badges = append(c.badges, badge)
	return nil
}

// Get возвращает определение бейджа по идентификатору.
func (c *BadgeCatalog) Get(id BadgeID) (Badge, bool) {
	i, ok := c.index[id]
	if !ok {
		return Badge{}, false
	}
	return c.badges[i], true
}

// All возвращает все бейджи в порядке регистрации.
func (c *BadgeCatalog) All() []Badge {
	out := make([]Badge, len(c.badges))
	copy(out, c.badges)
	return out
}

// Len возвращает размер каталога.
func (c *BadgeCatalog) Len() int {
	return len(c.badges)
}

// DefaultBadgeCatalog возвращает встроенный каталог бейджей.
// Список фиксирован на этапе компиляции и не управляется сервером.
func DefaultBadgeCatalog() *BadgeCatalog {
	catalog := NewBadgeCatalog()

	defs := []Badge{
		{
			ID: BadgeQuizFirst, Name: "Первый шаг", Category: CategoryQuiz,
			Description: "Завершён первый квиз", XPReward: 25,
			Predicate: func(p *UserProgress) bool { return p.QuizzesCompleted >= 1 },
		},
		{
			ID: BadgeQuizTen, Name: "Десятка", Category: CategoryQuiz,
			Description: "Завершено 10 квизов", XPReward: 50,
			Predicate: func(p *UserProgress) bool { return p.QuizzesCompleted >= 10 },
		},
		{
			ID: BadgeQuizPerfect, Name: "Без ошибок", Category: CategoryQuiz,
			Description: "Квиз пройден на 100%", XPReward: 30,
			Predicate: func(p *UserProgress) bool { return p.PerfectScores >= 1 },
		},
		{
			ID: BadgeStreakThree, Name: "Разогрев", Category: CategoryStreak,
			Description: "3 дня подряд", XPReward: 30,
			Predicate: func(p *UserProgress) bool { return p.CurrentStreak >= 3 },
		},
		{
			ID: BadgeStreakSeven, Name: "Неделя огня", Category: CategoryStreak,
			Description: "7 дней подряд", XPReward: 75,
			Predicate: func(p *UserProgress) bool { return p.CurrentStreak >= 7 },
		},
		{
			ID: BadgeStreakThirty, Name: "Железная воля", Category: CategoryStreak,
			Description: "30 дней подряд", XPReward: 300,
			Predicate: func(p *UserProgress) bool { return p.CurrentStreak >= 30 },
		},
		{
			ID: BadgeLevelFive, Name: "Подмастерье", Category: CategoryLevel,
			Description: "Достигнут 5 уровень", XPReward: 50,
			Predicate: func(p *UserProgress) bool { return p.Level >= 5 },
		},
		{
			ID: BadgeLevelTen, Name: "Мастер", Category: CategoryLevel,
			Description: "Достигнут 10 уровень", XPReward: 100,
			Predicate: func(p *UserProgress) bool { return p.Level >= 10 },
		},
		{
			ID: BadgeLevelTwenty5, Name: "Гроссмейстер", Category: CategoryLevel,
			Description: "Достигнут 25 уровень", XPReward: 250,
			Predicate: func(p *UserProgress) bool { return p.Level >= 25 },
		},
		{
			ID: BadgeSubjectExpert, Name: "Эксперт предмета", Category: CategorySubject,
			Description: "5 квизов по одному предмету", XPReward: 60,
			Predicate: func(p *UserProgress) bool {
				for _, count := range p.SubjectQuizCounts {
					if count >= 5 {
						return true
					}
				}
				return false
			},
		},
	}

	for _, b := range defs {
		// Каталог собирается из констант, Register не может вернуть ошибку.
		if err := catalog.Register(b); err != nil {
			panic(err)
		}
	}

	return catalog
}

// ══════════════════════════════════════════════════════════════════════════════
// BADGE EVALUATOR
// ══════════════════════════════════════════════════════════════════════════════

// BadgeEvaluator оценивает каталог против текущего прогресса.
type BadgeEvaluator struct {
	catalog *BadgeCatalog
}

// NewBadgeEvaluator создаёт оценщик для каталога.
func NewBadgeEvaluator(catalog *BadgeCatalog) *BadgeEvaluator {
	return &BadgeEvaluator{catalog: catalog}
}

// Catalog возвращает каталог оценщика.
func (e *BadgeEvaluator) Catalog() *BadgeCatalog {
	return e.catalog
}

// Evaluate возвращает бейджи, разблокированные на этом проходе, и применяет
// их побочные эффекты к прогрессу.
//
// Все предикаты проверяются против состояния на входе; найденные бейджи
// выдаются вместе, одним проходом. XP-награды складываются в TotalXP после
// проверки предикатов, и повторная оценка внутри того же прохода не
// выполняется: если награда открыла условие следующего бейджа, его выдаст
// следующий вызов Evaluate.
func (e *BadgeEvaluator) Evaluate(p *UserProgress, now time.Time) []Badge {
	var unlocked []Badge

	for _, badge := range e.catalog.badges {
		if p.HasBadge(badge.ID) {
			continue
		}
		if badge.Predicate(p) {
			unlocked = append(unlocked, badge)
		}
	}

	var reward XP
	for _, badge := range unlocked {
		p.GrantBadge(badge.ID, now)
		reward += badge.XPReward
	}
	if reward > 0 {
		p.AddXP(reward)
	}

	return unlocked
}
