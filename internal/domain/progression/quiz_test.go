package progression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuizScorer_TypicalQuiz(t *testing.T) {
	scorer := NewQuizScorer()

	result, err := scorer.Score(QuizSubmission{
		QuizID:         "quiz-1",
		Subject:        "math",
		TotalQuestions: 20,
		CorrectAnswers: 15,
	})
	require.NoError(t, err)

	assert.InDelta(t, 75.0, result.ScorePercentage, 0.001)
	assert.Equal(t, XP(75), result.XPEarned)
	assert.False(t, result.Perfect)
	assert.Equal(t, TierGood, result.Tier)
}

func TestQuizScorer_ParticipationFloor(t *testing.T) {
	scorer := NewQuizScorer()

	// Zero correct answers still earn the participation floor.
	result, err := scorer.Score(QuizSubmission{TotalQuestions: 10, CorrectAnswers: 0})
	require.NoError(t, err)

	assert.Equal(t, XP(10), result.XPEarned)
	assert.Equal(t, 0.0, result.ScorePercentage)
	assert.Equal(t, TierFail, result.Tier)
	assert.False(t, result.Perfect)
}

func TestQuizScorer_EmptyQuiz(t *testing.T) {
	scorer := NewQuizScorer()

	// A zero-question quiz is not perfect and scores zero percent.
	result, err := scorer.Score(QuizSubmission{TotalQuestions: 0, CorrectAnswers: 0})
	require.NoError(t, err)

	assert.Equal(t, 0.0, result.ScorePercentage)
	assert.False(t, result.Perfect)
	assert.Equal(t, XP(10), result.XPEarned)
}

func TestQuizScorer_PerfectMultiplier(t *testing.T) {
	scorer := NewQuizScorer()

	result, err := scorer.Score(QuizSubmission{TotalQuestions: 10, CorrectAnswers: 10})
	require.NoError(t, err)

	// 10 * 5 = 50, perfect 1.5x = 75
	assert.Equal(t, XP(75), result.XPEarned)
	assert.True(t, result.Perfect)
	assert.Equal(t, TierExcellent, result.Tier)
}

func TestQuizScorer_PerfectFloorsOddHalf(t *testing.T) {
	scorer := NewQuizScorer()

	result, err := scorer.Score(QuizSubmission{TotalQuestions: 3, CorrectAnswers: 3})
	require.NoError(t, err)

	// 3 * 5 = 15, perfect 1.5x = 22.5, floored to 22
	assert.Equal(t, XP(22), result.XPEarned)
}

func TestQuizScorer_Cap(t *testing.T) {
	scorer := NewQuizScorer()

	result, err := scorer.Score(QuizSubmission{TotalQuestions: 50, CorrectAnswers: 50})
	require.NoError(t, err)

	// 50 * 5 = 250, perfect 375, capped at 100
	assert.Equal(t, XP(100), result.XPEarned)
}

func TestQuizScorer_InvalidCounts(t *testing.T) {
	scorer := NewQuizScorer()

	_, err := scorer.Score(QuizSubmission{TotalQuestions: 5, CorrectAnswers: 6})
	assert.ErrorIs(t, err, ErrInvalidQuizCounts)

	_, err = scorer.Score(QuizSubmission{TotalQuestions: -1, CorrectAnswers: 0})
	assert.ErrorIs(t, err, ErrInvalidQuizCounts)
}

func TestQuizScorer_InvalidSubject(t *testing.T) {
	scorer := NewQuizScorer()

	_, err := scorer.Score(QuizSubmission{Subject: "has space", TotalQuestions: 5, CorrectAnswers: 5})
	assert.ErrorIs(t, err, ErrInvalidSubject)
}

func TestTierFor_Boundaries(t *testing.T) {
	assert.Equal(t, TierExcellent, TierFor(100))
	assert.Equal(t, TierExcellent, TierFor(90))
	assert.Equal(t, TierGood, TierFor(89.9))
	assert.Equal(t, TierGood, TierFor(70))
	assert.Equal(t, TierPass, TierFor(69.9))
	assert.Equal(t, TierPass, TierFor(50))
	assert.Equal(t, TierFail, TierFor(49.9))
	assert.Equal(t, TierFail, TierFor(0))
}

func TestAnalyzeTopics(t *testing.T) {
	scorer := NewQuizScorer()

	result, err := scorer.Score(QuizSubmission{
		TotalQuestions: 10,
		CorrectAnswers: 6,
		TopicResults: []TopicResult{
			{Topic: "fractions", Total: 4, Correct: 1},  // weak: 25%
			{Topic: "geometry", Total: 3, Correct: 3},   // strong: 100%, >= 2 questions
			{Topic: "algebra", Total: 1, Correct: 1},    // single question, not strong
			{Topic: "logic", Total: 2, Correct: 1},      // 50%, neither
			{Topic: "corrupted", Total: 0, Correct: -1}, // ignored
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"fractions"}, result.WeakTopics)
	assert.Equal(t, []string{"geometry"}, result.StrongTopics)
}
