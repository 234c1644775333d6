package progression

import (
	"math"
	"sort"
)

// ══════════════════════════════════════════════════════════════════════════════
// QUIZ SCORING
// Превращает сырые ответы квиза в процент, XP и разбор по темам.
// ══════════════════════════════════════════════════════════════════════════════

const (
	// xpPerCorrectAnswer - базовый XP за каждый правильный ответ.
	xpPerCorrectAnswer = 5

	// participationFloorXP - минимальный XP за любую попытку.
	participationFloorXP = 10

	// perfectMultiplier - множитель за квиз, пройденный на 100%.
	perfectMultiplier = 1.5

	// quizXPCap - потолок XP за один квиз (защита от гринда).
	quizXPCap = 100
)

// PerformanceTier представляет оценку результата квиза.
type PerformanceTier string

const (
	// TierExcellent - 90% и выше.
	TierExcellent PerformanceTier = "excellent"
	// TierGood - от 70% до 90%.
	TierGood PerformanceTier = "good"
	// TierPass - от 50% до 70%.
	TierPass PerformanceTier = "pass"
	// TierFail - ниже 50%.
	TierFail PerformanceTier = "fail"
)

// TierFor возвращает оценку для процента правильных ответов.
func TierFor(percentage float64) PerformanceTier {
	switch {
	case percentage >= 90:
		return TierExcellent
	case percentage >= 70:
		return TierGood
	case percentage >= 50:
		return TierPass
	default:
		return TierFail
	}
}

// QuizSubmission - сырые данные завершённого квиза.
type QuizSubmission struct {
	// QuizID - идентификатор квиза.
	QuizID string

	// Subject - предмет квиза.
	Subject Subject

	// TotalQuestions - общее количество вопросов.
	TotalQuestions int

	// CorrectAnswers - количество правильных ответов.
	CorrectAnswers int

	// TopicResults - результаты по темам (опционально).
	TopicResults []TopicResult
}

// TopicResult - результат по одной теме внутри квиза.
type TopicResult struct {
	// Topic - название темы.
	Topic string

	// Total - вопросов по теме.
	Total int

	// Correct - правильных ответов по теме.
	Correct int
}

// Validate проверяет корректность данных квиза.
func (s QuizSubmission) Validate() error {
	if s.TotalQuestions < 0 || s.CorrectAnswers < 0 {
		return ErrInvalidQuizCounts
	}
	if s.CorrectAnswers > s.TotalQuestions {
		return ErrInvalidQuizCounts
	}
	if s.Subject != "" && !s.Subject.IsValid() {
		return ErrInvalidSubject
	}
	return nil
}

// QuizResult - итог скоринга квиза. Транзиентный объект, не хранится
// как самостоятельная сущность.
type QuizResult struct {
	// QuizID - идентификатор квиза.
	QuizID string

	// Subject - предмет квиза.
	Subject Subject

	// TotalQuestions - общее количество вопросов.
	TotalQuestions int

	// CorrectAnswers - количество правильных ответов.
	CorrectAnswers int

	// ScorePercentage - процент правильных ответов [0, 100].
	ScorePercentage float64

	// XPEarned - заработанный XP (до серийного бонуса).
	XPEarned XP

	// Perfect - true, если все ответы правильные и вопросов больше нуля.
	Perfect bool

	// Tier - оценка результата.
	Tier PerformanceTier

	// WeakTopics - темы с результатом ниже 50%.
	WeakTopics []string

	// StrongTopics - темы, закрытые на 100% (минимум два вопроса).
	StrongTopics []string
}

// QuizScorer вычисляет результат квиза.
type QuizScorer struct{}

// NewQuizScorer создаёт скорер.
func NewQuizScorer() *QuizScorer {
	return &QuizScorer{}
}

// Score вычисляет процент и XP для квиза.
//
// Правила:
//   - процент = correct / total * 100; при total == 0 процент равен 0
//   - базовый XP = correct * 5, но не меньше 10 за любую попытку
//   - идеальный результат умножает базу на 1.5 с округлением вниз
//   - итог ограничен потолком 100 XP за квиз
func (qs *QuizScorer) Score(submission QuizSubmission) (QuizResult, error) {
	if err := submission.Validate(); err != nil {
		return QuizResult{}, err
	}

	total := submission.TotalQuestions
	correct := submission.CorrectAnswers

	percentage := 0.0
	if total > 0 {
		percentage = float64(correct) / float64(total) * 100
	}

	perfect := total > 0 && correct == total

	xp := correct * xpPerCorrectAnswer
	if xp < participationFloorXP {
		xp = participationFloorXP
	}
	if perfect {
		xp = int(math.Floor(float64(xp) * perfectMultiplier))
	}
	if xp > quizXPCap {
		xp = quizXPCap
	}

	weak, strong := analyzeTopics(submission.TopicResults)

	return QuizResult{
		QuizID:          submission.QuizID,
		Subject:         submission.Subject,
		TotalQuestions:  total,
		CorrectAnswers:  correct,
		ScorePercentage: percentage,
		XPEarned:        XP(xp),
		Perfect:         perfect,
		Tier:            TierFor(percentage),
		WeakTopics:      weak,
		StrongTopics:    strong,
	}, nil
}

// analyzeTopics разбирает результаты по темам на слабые и сильные.
// Слабая тема - меньше 50% правильных; сильная - 100% при двух и более вопросах.
func analyzeTopics(results []TopicResult) (weak, strong []string) {
	for _, r := range results {
		if r.Total <= 0 || r.Correct < 0 || r.Correct > r.Total {
			continue
		}

		ratio := float64(r.Correct) / float64(r.Total)
		switch {
		case ratio < 0.5:
			weak = append(weak, r.Topic)
		case r.Correct == r.Total && r.Total >= 2:
			strong = append(strong, r.Topic)
		}
	}

	sort.Strings(weak)
	sort.Strings(strong)
	return weak, strong
}
