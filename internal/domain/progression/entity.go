package progression

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// XP представляет очки опыта пользователя.
type XP int

// IsValid проверяет, что XP неотрицательный.
func (x XP) IsValid() bool {
	return x >= 0
}

// Add складывает XP.
func (x XP) Add(delta XP) XP {
	return x + delta
}

// Level представляет уровень пользователя, вычисляемый из XP.
type Level int

// IsValid проверяет, что уровень в допустимом диапазоне.
func (l Level) IsValid() bool {
	return l >= 1 && l <= MaxLevel
}

// Subject представляет предмет (тему) квиза, например "math" или "history".
type Subject string

// IsValid проверяет корректность идентификатора предмета.
func (s Subject) IsValid() bool {
	str := string(s)
	return len(str) >= 1 && len(str) <= 50 && !strings.ContainsAny(str, " \t\n\r")
}

// String возвращает строковое представление предмета.
func (s Subject) String() string {
	return string(s)
}

// XPSource описывает источник начисления XP.
type XPSource string

const (
	// SourceQuiz - XP за завершённый квиз.
	SourceQuiz XPSource = "quiz"
	// SourceLesson - XP за завершённый урок.
	SourceLesson XPSource = "lesson"
	// SourceChallenge - XP за выполненное ежедневное задание.
	SourceChallenge XPSource = "challenge"
	// SourceBadge - XP-награда за разблокированный бейдж.
	SourceBadge XPSource = "badge"
	// SourceManual - ручное начисление (доначисления, миграции).
	SourceManual XPSource = "manual"
)

// IsValid проверяет, что источник известен.
func (s XPSource) IsValid() bool {
	switch s {
	case SourceQuiz, SourceLesson, SourceChallenge, SourceBadge, SourceManual:
		return true
	default:
		return false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidUserID - пустой или некорректный идентификатор пользователя.
	ErrInvalidUserID = errors.New("invalid user id: must be non-empty")

	// ErrNegativeXPAmount - отрицательная сумма XP.
	ErrNegativeXPAmount = errors.New("invalid xp amount: must be non-negative")

	// ErrInvalidSubject - некорректный идентификатор предмета.
	ErrInvalidSubject = errors.New("invalid subject: must be 1-50 chars without whitespace")

	// ErrInvalidQuizCounts - некорректные счётчики вопросов квиза.
	ErrInvalidQuizCounts = errors.New("invalid quiz counts: correct must be within [0, total]")

	// ErrProgressNotFound - прогресс пользователя не найден.
	ErrProgressNotFound = errors.New("user progress not found")

	// ErrChallengeNotFound - ежедневное задание не найдено.
	ErrChallengeNotFound = errors.New("daily challenge not found")

	// ErrChallengeStale - задание относится не к текущему дню.
	ErrChallengeStale = errors.New("daily challenge is not for the current day")

	// ErrChallengeCompleted - задание уже выполнено сегодня.
	ErrChallengeCompleted = errors.New("daily challenge already completed today")
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: USER PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

// UserProgress - центральная сущность движка прогрессии.
// Одна запись на пользователя; мутируется только через операции координатора.
type UserProgress struct {
	// UserID - идентификатор пользователя.
	UserID string

	// TotalXP - суммарный XP. Монотонно неубывающий.
	TotalXP XP

	// Level - текущий уровень. Всегда равен LevelFor(TotalXP).
	Level Level

	// CurrentStreak - текущая серия активных дней.
	CurrentStreak int

	// LongestStreak - лучшая серия. Инвариант: LongestStreak >= CurrentStreak.
	LongestStreak int

	// LastActivityAt - момент последней активности (нулевое значение = активности не было).
	LastActivityAt time.Time

	// QuizzesCompleted - общее количество завершённых квизов.
	QuizzesCompleted int

	// PerfectScores - количество квизов, пройденных на 100%.
	PerfectScores int

	// LessonsCompleted - количество завершённых уроков.
	LessonsCompleted int

	// SubjectQuizCounts - количество квизов по каждому предмету.
	SubjectQuizCounts map[Subject]int

	// EarnedBadges - разблокированные бейджи и время разблокировки.
	EarnedBadges map[BadgeID]time.Time

	// CreatedAt - время создания записи.
	CreatedAt time.Time

	// UpdatedAt - время последнего обновления.
	UpdatedAt time.Time
}

// NewUserProgress создаёт пустую запись прогресса для нового пользователя.
// Все счётчики нулевые, уровень 1.
func NewUserProgress(userID string, now time.Time) (*UserProgress, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidUserID
	}

	return &UserProgress{
		UserID:            userID,
		TotalXP:           0,
		Level:             1,
		CurrentStreak:     0,
		LongestStreak:     0,
		LastActivityAt:    time.Time{},
		QuizzesCompleted:  0,
		PerfectScores:     0,
		LessonsCompleted:  0,
		SubjectQuizCounts: make(map[Subject]int),
		EarnedBadges:      make(map[BadgeID]time.Time),
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS (Business Logic)
// ══════════════════════════════════════════════════════════════════════════════

// XPApplication описывает результат одного начисления XP.
type XPApplication struct {
	// Amount - сколько XP начислено.
	Amount XP

	// NewTotal - суммарный XP после начисления.
	NewTotal XP

	// PreviousLevel - уровень до начисления.
	PreviousLevel Level

	// NewLevel - уровень после начисления.
	NewLevel Level

	// LeveledUp - true, если уровень вырос.
	LeveledUp bool
}

// AddXP начисляет XP и пересчитывает уровень.
// Отрицательные суммы запрещены валидацией на уровне координатора;
// здесь они трактуются как ноль, чтобы сохранить монотонность TotalXP.
func (p *UserProgress) AddXP(amount XP) XPApplication {
	if amount < 0 {
		amount = 0
	}

	previousLevel := p.Level
	p.TotalXP = p.TotalXP.Add(amount)
	p.Level = LevelFor(p.TotalXP)

	return XPApplication{
		Amount:        amount,
		NewTotal:      p.TotalXP,
		PreviousLevel: previousLevel,
		NewLevel:      p.Level,
		LeveledUp:     p.Level > previousLevel,
	}
}

// RecordQuiz обновляет счётчики после завершения квиза.
func (p *UserProgress) RecordQuiz(subject Subject, perfect bool) {
	p.QuizzesCompleted++
	if subject != "" {
		if p.SubjectQuizCounts == nil {
			p.SubjectQuizCounts = make(map[Subject]int)
		}
		p.SubjectQuizCounts[subject]++
	}
	if perfect {
		p.PerfectScores++
	}
}

// RecordLesson обновляет счётчик уроков.
func (p *UserProgress) RecordLesson() {
	p.LessonsCompleted++
}

// HasBadge проверяет, разблокирован ли бейдж.
func (p *UserProgress) HasBadge(id BadgeID) bool {
	_, ok := p.EarnedBadges[id]
	return ok
}

// GrantBadge помечает бейдж разблокированным.
// Возвращает false, если бейдж уже был разблокирован.
func (p *UserProgress) GrantBadge(id BadgeID, at time.Time) bool {
	if p.HasBadge(id) {
		return false
	}
	if p.EarnedBadges == nil {
		p.EarnedBadges = make(map[BadgeID]time.Time)
	}
	p.EarnedBadges[id] = at
	return true
}

// EarnedBadgeIDs возвращает идентификаторы разблокированных бейджей.
// Порядок не определён.
func (p *UserProgress) EarnedBadgeIDs() []BadgeID {
	ids := make([]BadgeID, 0, len(p.EarnedBadges))
	for id := range p.EarnedBadges {
		ids = append(ids, id)
	}
	return ids
}

// SubjectQuizCount возвращает количество квизов по предмету.
func (p *UserProgress) SubjectQuizCount(subject Subject) int {
	return p.SubjectQuizCounts[subject]
}

// Touch обновляет время последнего изменения записи.
func (p *UserProgress) Touch(now time.Time) {
	p.UpdatedAt = now
}

// Validate проверяет инварианты записи прогресса.
func (p *UserProgress) Validate() error {
	if strings.TrimSpace(p.UserID) == "" {
		return ErrInvalidUserID
	}
	if !p.TotalXP.IsValid() {
		return ErrNegativeXPAmount
	}
	if p.Level != LevelFor(p.TotalXP) {
		return fmt.Errorf("level %d does not match total xp %d (expected %d)",
			p.Level, p.TotalXP, LevelFor(p.TotalXP))
	}
	if p.CurrentStreak < 0 || p.LongestStreak < p.CurrentStreak {
		return fmt.Errorf("streak invariant violated: current=%d longest=%d",
			p.CurrentStreak, p.LongestStreak)
	}
	if p.QuizzesCompleted < 0 || p.PerfectScores < 0 || p.LessonsCompleted < 0 {
		return errors.New("counters cannot be negative")
	}
	return nil
}

// String возвращает строковое представление прогресса для логирования.
func (p *UserProgress) String() string {
	return fmt.Sprintf(
		"UserProgress{UserID: %s, XP: %d, Level: %d, Streak: %d/%d, Badges: %d}",
		p.UserID, p.TotalXP, p.Level, p.CurrentStreak, p.LongestStreak, len(p.EarnedBadges),
	)
}

// Clone создаёт глубокую копию записи прогресса.
// Карты копируются целиком: изменения копии не затрагивают оригинал.
func (p *UserProgress) Clone() *UserProgress {
	if p == nil {
		return nil
	}

	clone := *p

	clone.SubjectQuizCounts = make(map[Subject]int, len(p.SubjectQuizCounts))
	for k, v := range p.SubjectQuizCounts {
		clone.SubjectQuizCounts[k] = v
	}

	clone.EarnedBadges = make(map[BadgeID]time.Time, len(p.EarnedBadges))
	for k, v := range p.EarnedBadges {
		clone.EarnedBadges[k] = v
	}

	return &clone
}
