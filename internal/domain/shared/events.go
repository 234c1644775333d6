// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven architecture.
// Each event represents something significant that happened in the domain.
const (
	// Progression events
	EventXPAwarded EventType = "progression.xp_awarded"
	EventLevelUp   EventType = "progression.level_up"

	// Streak events
	EventStreakStarted   EventType = "progression.streak_started"
	EventStreakContinued EventType = "progression.streak_continued"
	EventStreakBroken    EventType = "progression.streak_broken"

	// Badge events
	EventBadgeUnlocked EventType = "progression.badge_unlocked"

	// Quiz events
	EventQuizCompleted   EventType = "progression.quiz_completed"
	EventLessonCompleted EventType = "progression.lesson_completed"

	// Challenge events
	EventChallengeIssued    EventType = "progression.challenge_issued"
	EventChallengeCompleted EventType = "progression.challenge_completed"

	// System events
	EventSyncCompleted EventType = "system.sync_completed"
	EventSyncFailed    EventType = "system.sync_failed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// NewBaseEventAt creates a base event with an explicit timestamp.
// Use this when the occurrence time comes from an injected clock.
func NewBaseEventAt(eventType EventType, aggregateID string, at time.Time) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   at,
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Progression Events
// ═══════════════════════════════════════════════════════════════════════════

// XPAwardedEvent is emitted when a user earns XP.
type XPAwardedEvent struct {
	BaseEvent
	UserID      string `json:"user_id"`
	Amount      int    `json:"amount"`
	StreakBonus int    `json:"streak_bonus"`
	NewTotal    int    `json:"new_total"`
	Source      string `json:"source"` // e.g., "quiz", "lesson", "challenge", "badge"
	SourceID    string `json:"source_id,omitempty"`
}

// Payload implements Event interface.
func (e XPAwardedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":      e.UserID,
		"amount":       e.Amount,
		"streak_bonus": e.StreakBonus,
		"new_total":    e.NewTotal,
		"source":       e.Source,
		"source_id":    e.SourceID,
	}
}

// NewXPAwardedEvent creates a new XPAwardedEvent.
func NewXPAwardedEvent(userID string, amount, streakBonus, newTotal int, source, sourceID string, at time.Time) XPAwardedEvent {
	return XPAwardedEvent{
		BaseEvent:   NewBaseEventAt(EventXPAwarded, userID, at),
		UserID:      userID,
		Amount:      amount,
		StreakBonus: streakBonus,
		NewTotal:    newTotal,
		Source:      source,
		SourceID:    sourceID,
	}
}

// LevelUpEvent is emitted when a user's level increases.
// If a large XP grant crosses several level boundaries at once,
// a single event carries the old and new level.
type LevelUpEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	OldLevel int    `json:"old_level"`
	NewLevel int    `json:"new_level"`
	TotalXP  int    `json:"total_xp"`
}

// Payload implements Event interface.
func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"old_level": e.OldLevel,
		"new_level": e.NewLevel,
		"total_xp":  e.TotalXP,
	}
}

// NewLevelUpEvent creates a new LevelUpEvent.
func NewLevelUpEvent(userID string, oldLevel, newLevel, totalXP int, at time.Time) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent: NewBaseEventAt(EventLevelUp, userID, at),
		UserID:    userID,
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
		TotalXP:   totalXP,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Streak Events
// ═══════════════════════════════════════════════════════════════════════════

// StreakContinuedEvent is emitted when a user extends their daily streak.
// A streak of 1 on a fresh start is emitted as EventStreakStarted instead.
type StreakContinuedEvent struct {
	BaseEvent
	UserID        string `json:"user_id"`
	CurrentStreak int    `json:"current_streak"`
	LongestStreak int    `json:"longest_streak"`
}

// Payload implements Event interface.
func (e StreakContinuedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.UserID,
		"current_streak": e.CurrentStreak,
		"longest_streak": e.LongestStreak,
	}
}

// NewStreakContinuedEvent creates a new StreakContinuedEvent.
func NewStreakContinuedEvent(userID string, current, longest int, at time.Time) StreakContinuedEvent {
	return StreakContinuedEvent{
		BaseEvent:     NewBaseEventAt(EventStreakContinued, userID, at),
		UserID:        userID,
		CurrentStreak: current,
		LongestStreak: longest,
	}
}

// NewStreakStartedEvent creates the event for a streak beginning at day 1.
func NewStreakStartedEvent(userID string, longest int, at time.Time) StreakContinuedEvent {
	return StreakContinuedEvent{
		BaseEvent:     NewBaseEventAt(EventStreakStarted, userID, at),
		UserID:        userID,
		CurrentStreak: 1,
		LongestStreak: longest,
	}
}

// StreakBrokenEvent is emitted when a user's streak resets after a gap.
type StreakBrokenEvent struct {
	BaseEvent
	UserID         string `json:"user_id"`
	PreviousStreak int    `json:"previous_streak"`
	LongestStreak  int    `json:"longest_streak"`
}

// Payload implements Event interface.
func (e StreakBrokenEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":         e.UserID,
		"previous_streak": e.PreviousStreak,
		"longest_streak":  e.LongestStreak,
	}
}

// NewStreakBrokenEvent creates a new StreakBrokenEvent.
func NewStreakBrokenEvent(userID string, previousStreak, longest int, at time.Time) StreakBrokenEvent {
	return StreakBrokenEvent{
		BaseEvent:      NewBaseEventAt(EventStreakBroken, userID, at),
		UserID:         userID,
		PreviousStreak: previousStreak,
		LongestStreak:  longest,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Badge Events
// ═══════════════════════════════════════════════════════════════════════════

// BadgeUnlockedEvent is emitted when a user unlocks a badge.
type BadgeUnlockedEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	BadgeID  string `json:"badge_id"`
	Name     string `json:"name"`
	RewardXP int    `json:"reward_xp"`
}

// Payload implements Event interface.
func (e BadgeUnlockedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"badge_id":  e.BadgeID,
		"name":      e.Name,
		"reward_xp": e.RewardXP,
	}
}

// NewBadgeUnlockedEvent creates a new BadgeUnlockedEvent.
func NewBadgeUnlockedEvent(userID, badgeID, name string, rewardXP int, at time.Time) BadgeUnlockedEvent {
	return BadgeUnlockedEvent{
		BaseEvent: NewBaseEventAt(EventBadgeUnlocked, userID, at),
		UserID:    userID,
		BadgeID:   badgeID,
		Name:      name,
		RewardXP:  rewardXP,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Quiz Events
// ═══════════════════════════════════════════════════════════════════════════

// QuizCompletedEvent is emitted after a quiz is scored and XP applied.
type QuizCompletedEvent struct {
	BaseEvent
	UserID     string  `json:"user_id"`
	QuizID     string  `json:"quiz_id"`
	Subject    string  `json:"subject"`
	Correct    int     `json:"correct"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
	XPEarned   int     `json:"xp_earned"`
	Perfect    bool    `json:"perfect"`
}

// Payload implements Event interface.
func (e QuizCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":    e.UserID,
		"quiz_id":    e.QuizID,
		"subject":    e.Subject,
		"correct":    e.Correct,
		"total":      e.Total,
		"percentage": e.Percentage,
		"xp_earned":  e.XPEarned,
		"perfect":    e.Perfect,
	}
}

// NewQuizCompletedEvent creates a new QuizCompletedEvent.
func NewQuizCompletedEvent(userID, quizID, subject string, correct, total int, percentage float64, xpEarned int, perfect bool, at time.Time) QuizCompletedEvent {
	return QuizCompletedEvent{
		BaseEvent:  NewBaseEventAt(EventQuizCompleted, userID, at),
		UserID:     userID,
		QuizID:     quizID,
		Subject:    subject,
		Correct:    correct,
		Total:      total,
		Percentage: percentage,
		XPEarned:   xpEarned,
		Perfect:    perfect,
	}
}

// LessonCompletedEvent is emitted after a lesson completion is recorded.
type LessonCompletedEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	LessonID string `json:"lesson_id"`
	Subject  string `json:"subject"`
	XPEarned int    `json:"xp_earned"`
}

// Payload implements Event interface.
func (e LessonCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"lesson_id": e.LessonID,
		"subject":   e.Subject,
		"xp_earned": e.XPEarned,
	}
}

// NewLessonCompletedEvent creates a new LessonCompletedEvent.
func NewLessonCompletedEvent(userID, lessonID, subject string, xpEarned int, at time.Time) LessonCompletedEvent {
	return LessonCompletedEvent{
		BaseEvent: NewBaseEventAt(EventLessonCompleted, userID, at),
		UserID:    userID,
		LessonID:  lessonID,
		Subject:   subject,
		XPEarned:  xpEarned,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Challenge Events
// ═══════════════════════════════════════════════════════════════════════════

// ChallengeIssuedEvent is emitted when a daily challenge is generated.
type ChallengeIssuedEvent struct {
	BaseEvent
	UserID      string `json:"user_id"`
	ChallengeID string `json:"challenge_id"`
	TemplateID  string `json:"template_id"`
	Day         string `json:"day"` // e.g., "2026-08-31"
	RewardXP    int    `json:"reward_xp"`
}

// Payload implements Event interface.
func (e ChallengeIssuedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":      e.UserID,
		"challenge_id": e.ChallengeID,
		"template_id":  e.TemplateID,
		"day":          e.Day,
		"reward_xp":    e.RewardXP,
	}
}

// NewChallengeIssuedEvent creates a new ChallengeIssuedEvent.
func NewChallengeIssuedEvent(userID, challengeID, templateID, day string, rewardXP int, at time.Time) ChallengeIssuedEvent {
	return ChallengeIssuedEvent{
		BaseEvent:   NewBaseEventAt(EventChallengeIssued, userID, at),
		UserID:      userID,
		ChallengeID: challengeID,
		TemplateID:  templateID,
		Day:         day,
		RewardXP:    rewardXP,
	}
}

// ChallengeCompletedEvent is emitted when a user completes the daily challenge.
type ChallengeCompletedEvent struct {
	BaseEvent
	UserID      string `json:"user_id"`
	ChallengeID string `json:"challenge_id"`
	Day         string `json:"day"`
	RewardXP    int    `json:"reward_xp"`
}

// Payload implements Event interface.
func (e ChallengeCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":      e.UserID,
		"challenge_id": e.ChallengeID,
		"day":          e.Day,
		"reward_xp":    e.RewardXP,
	}
}

// NewChallengeCompletedEvent creates a new ChallengeCompletedEvent.
func NewChallengeCompletedEvent(userID, challengeID, day string, rewardXP int, at time.Time) ChallengeCompletedEvent {
	return ChallengeCompletedEvent{
		BaseEvent:   NewBaseEventAt(EventChallengeCompleted, userID, at),
		UserID:      userID,
		ChallengeID: challengeID,
		Day:         day,
		RewardXP:    rewardXP,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// System Events
// ═══════════════════════════════════════════════════════════════════════════

// SyncCompletedEvent is emitted after a successful upload of the XP event
// log to the remote backend.
type SyncCompletedEvent struct {
	BaseEvent
	EventsUploaded int `json:"events_uploaded"`
}

// Payload implements Event interface.
func (e SyncCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"events_uploaded": e.EventsUploaded,
	}
}

// NewSyncCompletedEvent creates a new SyncCompletedEvent.
func NewSyncCompletedEvent(eventsUploaded int, at time.Time) SyncCompletedEvent {
	return SyncCompletedEvent{
		BaseEvent:      NewBaseEventAt(EventSyncCompleted, "system", at),
		EventsUploaded: eventsUploaded,
	}
}

// SyncFailedEvent is emitted when an upload attempt fails after retries.
type SyncFailedEvent struct {
	BaseEvent
	Reason  string `json:"reason"`
	Pending int    `json:"pending"`
}

// Payload implements Event interface.
func (e SyncFailedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"reason":  e.Reason,
		"pending": e.Pending,
	}
}

// NewSyncFailedEvent creates a new SyncFailedEvent.
func NewSyncFailedEvent(reason string, pending int, at time.Time) SyncFailedEvent {
	return SyncFailedEvent{
		BaseEvent: NewBaseEventAt(EventSyncFailed, "system", at),
		Reason:    reason,
		Pending:   pending,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
