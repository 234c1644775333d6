package progression

import (
	"math/rand"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// DAILY CHALLENGE (Ежедневное задание)
//
// Одно активное задание на пользователя на календарный день. Задание
// становится устаревшим в момент смены дня; устаревшее задание нельзя
// завершить и за него не начисляется XP.
// ══════════════════════════════════════════════════════════════════════════════

// ChallengeType представляет тип ежедневного задания.
type ChallengeType string

const (
	// ChallengeQuiz - пройти любой квиз.
	ChallengeQuiz ChallengeType = "quiz"
	// ChallengePerfect - пройти квиз на 100%.
	ChallengePerfect ChallengeType = "perfect_score"
	// ChallengeSubject - пройти квиз по конкретному предмету.
	ChallengeSubject ChallengeType = "subject_quiz"
	// ChallengeStreak - сохранить серию активных дней.
	ChallengeStreak ChallengeType = "streak"
)

// DayFormat - формат календарного дня задания.
const DayFormat = "2006-01-02"

// ChallengeTemplate - неизменяемый шаблон ежедневного задания.
type ChallengeTemplate struct {
	// ID - идентификатор шаблона.
	ID string

	// Type - тип задания.
	Type ChallengeType

	// Description - текст задания.
	Description string

	// XPReward - награда за выполнение.
	XPReward XP

	// Subject - предмет для заданий типа ChallengeSubject (иначе пусто).
	Subject Subject
}

// DefaultChallengeTemplates возвращает встроенный набор шаблонов.
func DefaultChallengeTemplates() []ChallengeTemplate {
	return []ChallengeTemplate{
		{ID: "daily_quiz", Type: ChallengeQuiz, Description: "Пройди любой квиз сегодня", XPReward: 30},
		{ID: "daily_perfect", Type: ChallengePerfect, Description: "Пройди квиз без единой ошибки", XPReward: 50},
		{ID: "daily_math", Type: ChallengeSubject, Description: "Пройди квиз по математике", XPReward: 40, Subject: "math"},
		{ID: "daily_streak", Type: ChallengeStreak, Description: "Сохрани серию активных дней", XPReward: 25},
	}
}

// DailyChallenge - активный экземпляр задания для пользователя.
type DailyChallenge struct {
	// ID - уникальный идентификатор экземпляра.
	ID string

	// UserID - владелец задания.
	UserID string

	// TemplateID - шаблон, из которого создано задание.
	TemplateID string

	// Type - тип задания.
	Type ChallengeType

	// Description - текст задания.
	Description string

	// XPReward - награда за выполнение.
	XPReward XP

	// Subject - предмет (для subject-заданий).
	Subject Subject

	// Day - календарный день действия в формате DayFormat.
	Day string

	// Completed - выполнено ли задание.
	Completed bool

	// CompletedAt - время выполнения (нулевое, если не выполнено).
	CompletedAt time.Time

	// CreatedAt - время создания экземпляра.
	CreatedAt time.Time
}

// IsStale проверяет, устарело ли задание относительно момента now.
func (c *DailyChallenge) IsStale(now time.Time) bool {
	return c.Day != now.Format(DayFormat)
}

// CanComplete проверяет, можно ли выполнить задание на момент now.
// Возвращает ErrChallengeStale или ErrChallengeCompleted; обе ситуации
// для вызывающего кода доброкачественные, а не ошибки операции.
func (c *DailyChallenge) CanComplete(now time.Time) error {
	if c.IsStale(now) {
		return ErrChallengeStale
	}
	if c.Completed {
		return ErrChallengeCompleted
	}
	return nil
}

// Complete помечает задание выполненным.
// Возвращает false без изменений, если задание устарело или уже выполнено.
func (c *DailyChallenge) Complete(now time.Time) bool {
	if c.Completed || c.IsStale(now) {
		return false
	}
	c.Completed = true
	c.CompletedAt = now
	return true
}

// ChallengeGenerator выбирает задание дня из набора шаблонов.
// Генератор случайности и фабрика идентификаторов внедряются снаружи,
// чтобы тесты были детерминированными.
type ChallengeGenerator struct {
	templates []ChallengeTemplate
	newID     func() string

	mu  sync.Mutex
	rng *rand.Rand
}

// NewChallengeGenerator создаёт генератор заданий.
func NewChallengeGenerator(templates []ChallengeTemplate, rng *rand.Rand, newID func() string) *ChallengeGenerator {
	return &ChallengeGenerator{
		templates: templates,
		rng:       rng,
		newID:     newID,
	}
}

// GetOrCreateToday возвращает задание на сегодня.
// Если сохранённое задание ещё действует - возвращает его без изменений.
// Иначе выбирает новый шаблон равновероятно и создаёт свежий экземпляр,
// который должен заменить прежний (устаревший) в хранилище.
func (g *ChallengeGenerator) GetOrCreateToday(stored *DailyChallenge, userID string, now time.Time) (*DailyChallenge, bool, error) {
	if stored != nil && !stored.IsStale(now) {
		return stored, false, nil
	}

	if len(g.templates) == 0 {
		return nil, false, ErrChallengeNotFound
	}

	g.mu.Lock()
	template := g.templates[g.rng.Intn(len(g.templates))]
	g.mu.Unlock()

	challenge := &DailyChallenge{
		ID:          g.newID(),
		UserID:      userID,
		TemplateID:  template.ID,
		Type:        template.Type,
		Description: template.Description,
		XPReward:    template.XPReward,
		Subject:     template.Subject,
		Day:         now.Format(DayFormat),
		Completed:   false,
		CreatedAt:   now,
	}

	return challenge, true, nil
}
