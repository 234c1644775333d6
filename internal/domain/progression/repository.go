package progression

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Эти интерфейсы определяют контракт для работы с хранилищем данных.
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRepository определяет операции над записями прогресса.
type ProgressRepository interface {
	// Load возвращает прогресс пользователя.
	// Возвращает ErrProgressNotFound, если записи ещё нет.
	Load(ctx context.Context, userID string) (*UserProgress, error)

	// Save сохраняет запись прогресса целиком, атомарно.
	// Частичная запись полей недопустима.
	Save(ctx context.Context, progress *UserProgress) error
}

// ChallengeRepository определяет операции над ежедневными заданиями.
type ChallengeRepository interface {
	// GetCurrent возвращает последнее сохранённое задание пользователя
	// (возможно, устаревшее). Возвращает ErrChallengeNotFound, если
	// задания ещё не было.
	GetCurrent(ctx context.Context, userID string) (*DailyChallenge, error)

	// Save сохраняет задание, заменяя прежний экземпляр пользователя.
	Save(ctx context.Context, challenge *DailyChallenge) error
}

// XPEvent - запись журнала начислений XP.
// Журнал одновременно служит outbox-очередью для удалённой синхронизации:
// идентификаторы уникальны, повторная отправка безопасна.
type XPEvent struct {
	// ID - уникальный идентификатор события (UUID).
	ID string

	// UserID - пользователь, которому начислен XP.
	UserID string

	// Amount - начисленная сумма (включая серийный бонус).
	Amount XP

	// Source - источник начисления.
	Source XPSource

	// Description - человекочитаемое описание.
	Description string

	// CreatedAt - время начисления.
	CreatedAt time.Time

	// SyncedAt - время успешной синхронизации (нулевое, если не отправлено).
	SyncedAt time.Time
}

// XPEventRepository определяет операции над журналом XP-событий.
type XPEventRepository interface {
	// Append добавляет событие в журнал.
	Append(ctx context.Context, event XPEvent) error

	// ListUnsynced возвращает неотправленные события, старые первыми.
	ListUnsynced(ctx context.Context, limit int) ([]XPEvent, error)

	// MarkSynced помечает события отправленными.
	MarkSynced(ctx context.Context, ids []string, at time.Time) error
}

// ProgressCache определяет кеш снимков прогресса для читающей стороны.
type ProgressCache interface {
	// Get возвращает закешированный прогресс или ErrProgressNotFound.
	Get(ctx context.Context, userID string) (*UserProgress, error)

	// Set сохраняет снимок прогресса с TTL.
	Set(ctx context.Context, progress *UserProgress, ttl time.Duration) error

	// Invalidate удаляет снимок пользователя.
	Invalidate(ctx context.Context, userID string) error
}
