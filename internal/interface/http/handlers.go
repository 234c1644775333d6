package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	app "github.com/quizowl/quizowl-progression/internal/application/progression"
	domain "github.com/quizowl/quizowl-progression/internal/domain/progression"
	"github.com/quizowl/quizowl-progression/internal/domain/shared"
	"github.com/quizowl/quizowl-progression/pkg/logger"
)

// maxBodyBytes bounds request bodies; progression payloads are tiny.
const maxBodyBytes = 64 << 10 // 64 KB

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot returns basic server info.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSONError(w, http.StatusNotFound, "not_found", "The requested resource was not found")
		return
	}

	info := map[string]interface{}{
		"service": "quizowl-progression",
		"version": "1.0.0",
		"status":  "running",
		"uptime":  s.Uptime().String(),
	}

	writeJSON(w, http.StatusOK, info)
}

// handleHealth returns detailed health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker == nil {
		writeJSON(w, http.StatusOK, HealthStatus{Healthy: true, Ready: true})
		return
	}

	status := s.deps.HealthChecker.Check(r.Context())

	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, status)
}

// handleReady returns readiness status (for Kubernetes).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSONError(w, http.StatusServiceUnavailable, "not_ready", status.Message)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ready": true})
}

// handleLive returns liveness status (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"alive": true})
}

// handleMetrics returns server metrics as JSON.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	metrics := map[string]interface{}{
		"uptime_seconds": s.Uptime().Seconds(),
		"timestamp":      time.Now().UTC(),
	}

	writeJSON(w, http.StatusOK, metrics)
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST / RESPONSE DTOs
// ══════════════════════════════════════════════════════════════════════════════

type quizCompletedRequest struct {
	QuizID         string             `json:"quiz_id"`
	Subject        string             `json:"subject"`
	TotalQuestions int                `json:"total_questions"`
	CorrectAnswers int                `json:"correct_answers"`
	TopicResults   []topicResultInput `json:"topic_results,omitempty"`
}

type topicResultInput struct {
	Topic   string `json:"topic"`
	Total   int    `json:"total"`
	Correct int    `json:"correct"`
}

type lessonCompletedRequest struct {
	LessonID string `json:"lesson_id"`
	Subject  string `json:"subject,omitempty"`
}

type awardXPRequest struct {
	Amount      int    `json:"amount"`
	Source      string `json:"source,omitempty"`
	Description string `json:"description,omitempty"`
}

// awardView is the wire form of an XP award outcome.
type awardView struct {
	UserID           string      `json:"user_id"`
	BaseAmount       int         `json:"base_amount"`
	StreakBonus      int         `json:"streak_bonus"`
	TotalAwarded     int         `json:"total_awarded"`
	NewTotalXP       int         `json:"new_total_xp"`
	PreviousLevel    int         `json:"previous_level"`
	NewLevel         int         `json:"new_level"`
	LeveledUp        bool        `json:"leveled_up"`
	CurrentStreak    int         `json:"current_streak"`
	StreakTransition string      `json:"streak_transition"`
	NewBadges        []badgeView `json:"new_badges"`
	AwardedAt        time.Time   `json:"awarded_at"`
}

type badgeView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	XPReward    int    `json:"xp_reward"`
}

type quizView struct {
	QuizID          string   `json:"quiz_id"`
	Subject         string   `json:"subject,omitempty"`
	TotalQuestions  int      `json:"total_questions"`
	CorrectAnswers  int      `json:"correct_answers"`
	ScorePercentage float64  `json:"score_percentage"`
	XPEarned        int      `json:"xp_earned"`
	Perfect         bool     `json:"perfect"`
	Tier            string   `json:"tier"`
	WeakTopics      []string `json:"weak_topics,omitempty"`
	StrongTopics    []string `json:"strong_topics,omitempty"`
}

type quizCompletedResponse struct {
	Quiz  quizView  `json:"quiz"`
	Award awardView `json:"award"`
}

type streakView struct {
	UserID               string      `json:"user_id"`
	Transition           string      `json:"transition"`
	CurrentStreak        int         `json:"current_streak"`
	LongestStreak        int         `json:"longest_streak"`
	HoursUntilStreakLost float64     `json:"hours_until_streak_lost"`
	NewBadges            []badgeView `json:"new_badges"`
}

type challengeView struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	Description string     `json:"description"`
	XPReward    int        `json:"xp_reward"`
	Subject     string     `json:"subject,omitempty"`
	Day         string     `json:"day"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type completeChallengeResponse struct {
	Completed        bool           `json:"completed"`
	AlreadyCompleted bool           `json:"already_completed"`
	Stale            bool           `json:"stale"`
	Challenge        *challengeView `json:"challenge,omitempty"`
	Award            *awardView     `json:"award,omitempty"`
}

func toAwardView(a *app.AwardResult) awardView {
	return awardView{
		UserID:           a.UserID,
		BaseAmount:       a.BaseAmount,
		StreakBonus:      a.StreakBonus,
		TotalAwarded:     a.TotalAwarded,
		NewTotalXP:       a.NewTotalXP,
		PreviousLevel:    a.PreviousLevel,
		NewLevel:         a.NewLevel,
		LeveledUp:        a.LeveledUp,
		CurrentStreak:    a.CurrentStreak,
		StreakTransition: string(a.StreakTransition),
		NewBadges:        toBadgeViews(a.NewBadges),
		AwardedAt:        a.AwardedAt,
	}
}

func toBadgeViews(badges []domain.Badge) []badgeView {
	views := make([]badgeView, 0, len(badges))
	for _, b := range badges {
		views = append(views, badgeView{
			ID:          string(b.ID),
			Name:        b.Name,
			Description: b.Description,
			XPReward:    int(b.XPReward),
		})
	}
	return views
}

func toQuizView(q domain.QuizResult) quizView {
	return quizView{
		QuizID:          q.QuizID,
		Subject:         string(q.Subject),
		TotalQuestions:  q.TotalQuestions,
		CorrectAnswers:  q.CorrectAnswers,
		ScorePercentage: q.ScorePercentage,
		XPEarned:        int(q.XPEarned),
		Perfect:         q.Perfect,
		Tier:            string(q.Tier),
		WeakTopics:      q.WeakTopics,
		StrongTopics:    q.StrongTopics,
	}
}

func toChallengeView(c *domain.DailyChallenge) *challengeView {
	if c == nil {
		return nil
	}
	view := &challengeView{
		ID:          c.ID,
		Type:        string(c.Type),
		Description: c.Description,
		XPReward:    int(c.XPReward),
		Subject:     string(c.Subject),
		Day:         c.Day,
		Completed:   c.Completed,
	}
	if !c.CompletedAt.IsZero() {
		at := c.CompletedAt
		view.CompletedAt = &at
	}
	return view
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESSION WRITE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleQuizCompleted records a finished quiz and returns the score and award.
// POST /v1/users/{id}/quiz-completed
func (s *Server) handleQuizCompleted(w http.ResponseWriter, r *http.Request) {
	if s.deps.Coordinator == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Progression coordinator not configured")
		return
	}

	userID := r.PathValue("id")

	var req quizCompletedRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	topics := make([]domain.TopicResult, 0, len(req.TopicResults))
	for _, t := range req.TopicResults {
		topics = append(topics, domain.TopicResult{Topic: t.Topic, Total: t.Total, Correct: t.Correct})
	}

	result, err := s.deps.Coordinator.OnQuizCompleted(r.Context(), app.QuizCompletedCommand{
		UserID:         userID,
		QuizID:         req.QuizID,
		Subject:        domain.Subject(req.Subject),
		TotalQuestions: req.TotalQuestions,
		CorrectAnswers: req.CorrectAnswers,
		TopicResults:   topics,
		CorrelationID:  getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err, "quiz completed")
		return
	}

	writeJSON(w, http.StatusOK, quizCompletedResponse{
		Quiz:  toQuizView(result.Quiz),
		Award: toAwardView(&result.Award),
	})
}

// handleLessonCompleted records a finished lesson.
// POST /v1/users/{id}/lesson-completed
func (s *Server) handleLessonCompleted(w http.ResponseWriter, r *http.Request) {
	if s.deps.Coordinator == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Progression coordinator not configured")
		return
	}

	userID := r.PathValue("id")

	var req lessonCompletedRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.deps.Coordinator.OnLessonCompleted(r.Context(), app.LessonCompletedCommand{
		UserID:        userID,
		LessonID:      req.LessonID,
		Subject:       domain.Subject(req.Subject),
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err, "lesson completed")
		return
	}

	writeJSON(w, http.StatusOK, toAwardView(result))
}

// handleAwardXP grants XP directly, outside quizzes and lessons.
// POST /v1/users/{id}/xp
func (s *Server) handleAwardXP(w http.ResponseWriter, r *http.Request) {
	if s.deps.Coordinator == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Progression coordinator not configured")
		return
	}

	userID := r.PathValue("id")

	var req awardXPRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.deps.Coordinator.AwardXP(r.Context(), app.AwardXPCommand{
		UserID:        userID,
		Amount:        req.Amount,
		Source:        domain.XPSource(req.Source),
		Description:   req.Description,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err, "award xp")
		return
	}

	writeJSON(w, http.StatusOK, toAwardView(result))
}

// handleUpdateStreak records bare activity without XP.
// POST /v1/users/{id}/streak
func (s *Server) handleUpdateStreak(w http.ResponseWriter, r *http.Request) {
	if s.deps.Coordinator == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Progression coordinator not configured")
		return
	}

	userID := r.PathValue("id")

	result, err := s.deps.Coordinator.UpdateStreak(r.Context(), app.UpdateStreakCommand{
		UserID:        userID,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err, "update streak")
		return
	}

	writeJSON(w, http.StatusOK, streakView{
		UserID:               result.UserID,
		Transition:           string(result.Transition),
		CurrentStreak:        result.CurrentStreak,
		LongestStreak:        result.LongestStreak,
		HoursUntilStreakLost: result.HoursUntilStreakLost,
		NewBadges:            toBadgeViews(result.NewBadges),
	})
}

// handleCompleteChallenge attempts to complete today's challenge.
// A stale or already-completed challenge is reported in the body, not as
// an error, so retrying clients never see a failure for a benign race.
// POST /v1/users/{id}/challenge/complete
func (s *Server) handleCompleteChallenge(w http.ResponseWriter, r *http.Request) {
	if s.deps.Coordinator == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Progression coordinator not configured")
		return
	}

	userID := r.PathValue("id")

	result, err := s.deps.Coordinator.CompleteDailyChallenge(r.Context(), app.CompleteChallengeCommand{
		UserID:        userID,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err, "complete challenge")
		return
	}

	resp := completeChallengeResponse{
		Completed:        result.Completed,
		AlreadyCompleted: result.AlreadyCompleted,
		Stale:            result.Stale,
		Challenge:        toChallengeView(result.Challenge),
	}
	if result.Completed {
		award := toAwardView(&result.Award)
		resp.Award = &award
	}

	writeJSON(w, http.StatusOK, resp)
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESSION READ HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetProgress returns a user's progress summary. Unknown users get a
// fresh zero-state summary rather than a 404, matching the offline-first
// client which creates local state before the server ever hears about it.
// GET /v1/users/{id}/progress
func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	if s.deps.Queries == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Progress queries not configured")
		return
	}

	userID := r.PathValue("id")

	summary, err := s.deps.Queries.GetProgressSummary(r.Context(), userID)
	if err != nil {
		s.writeDomainError(w, r, err, "get progress")
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// handleGetChallenge returns today's challenge, generating one if needed.
// GET /v1/users/{id}/challenge
func (s *Server) handleGetChallenge(w http.ResponseWriter, r *http.Request) {
	if s.deps.Coordinator == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Progression coordinator not configured")
		return
	}

	userID := r.PathValue("id")

	challenge, err := s.deps.Coordinator.GetOrCreateTodayChallenge(r.Context(), userID)
	if err != nil {
		s.writeDomainError(w, r, err, "get challenge")
		return
	}

	writeJSON(w, http.StatusOK, toChallengeView(challenge))
}

// ══════════════════════════════════════════════════════════════════════════════
// SHARED HANDLER HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// decodeBody parses the JSON request body into dst. An empty body decodes
// to the zero value so optional-body endpoints stay callable with no payload.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer body.Close()

	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return true
		}
		writeJSONError(w, http.StatusBadRequest, "invalid_json", "Request body is not valid JSON")
		return false
	}
	return true
}

// writeDomainError maps application errors onto HTTP status codes.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error, op string) {
	switch {
	case errors.Is(err, domain.ErrInvalidUserID),
		errors.Is(err, domain.ErrNegativeXPAmount),
		errors.Is(err, domain.ErrInvalidSubject),
		errors.Is(err, domain.ErrInvalidQuizCounts),
		errors.Is(err, shared.ErrValidation),
		errors.Is(err, shared.ErrInvalidInput):
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())

	case errors.Is(err, domain.ErrChallengeNotFound),
		errors.Is(err, domain.ErrProgressNotFound),
		errors.Is(err, shared.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())

	case app.IsStoreUnavailable(err):
		s.log.Error("store unavailable",
			logger.String("operation", op),
			logger.String("request_id", getRequestID(r.Context())),
			logger.Err(err),
		)
		writeJSONError(w, http.StatusServiceUnavailable, "store_unavailable", "Progress store is temporarily unavailable")

	default:
		s.log.Error("request failed",
			logger.String("operation", op),
			logger.String("request_id", getRequestID(r.Context())),
			logger.Err(err),
		)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
