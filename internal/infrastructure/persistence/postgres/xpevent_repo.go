package postgres

import (
	"context"
	"fmt"
	"time"

	domain "github.com/quizowl/quizowl-progression/internal/domain/progression"
)

// ══════════════════════════════════════════════════════════════════════════════
// XP EVENT REPOSITORY (PostgreSQL implementation)
// ══════════════════════════════════════════════════════════════════════════════

// XPEventRepository implements domain.XPEventRepository using PostgreSQL.
// The table is append-only and doubles as the outbox for remote sync:
// rows with NULL synced_at are pending upload.
type XPEventRepository struct {
	conn *Connection
}

// NewXPEventRepository creates a new PostgreSQL XP event repository.
func NewXPEventRepository(conn *Connection) *XPEventRepository {
	return &XPEventRepository{conn: conn}
}

const appendXPEventQuery = `
	INSERT INTO xp_events (id, user_id, amount, source, description, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)
`

const listUnsyncedQuery = `
	SELECT id, user_id, amount, source, description, created_at
	FROM xp_events
	WHERE synced_at IS NULL
	ORDER BY created_at ASC
	LIMIT $1
`

const markSyncedQuery = `
	UPDATE xp_events
	SET synced_at = $2
	WHERE id = ANY($1)
`

// Append adds an event to the log. Re-appending an event with the same
// ID is a no-op, so retries after a partial failure are safe.
func (r *XPEventRepository) Append(ctx context.Context, event domain.XPEvent) error {
	_, err := r.conn.Exec(ctx, appendXPEventQuery,
		event.ID,
		event.UserID,
		int(event.Amount),
		string(event.Source),
		event.Description,
		event.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return nil
		}
		return fmt.Errorf("failed to append xp event %s: %w", event.ID, err)
	}

	return nil
}

func (r *XPEventRepository) ListUnsynced(ctx context.Context, limit int) ([]domain.XPEvent, error) {
	rows, err := r.conn.Query(ctx, listUnsyncedQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unsynced xp events: %w", err)
	}
	defer rows.Close()

	var events []domain.XPEvent
	for rows.Next() {
		var (
			event  domain.XPEvent
			amount int
			source string
		)

		err := rows.Scan(
			&event.ID,
			&event.UserID,
			&amount,
			&source,
			&event.Description,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan xp event: %w", err)
		}

		event.Amount = domain.XP(amount)
		event.Source = domain.XPSource(source)
		events = append(events, event)
	}

	return events, rows.Err()
}

func (r *XPEventRepository) MarkSynced(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := r.conn.Exec(ctx, markSyncedQuery, ids, at)
	if err != nil {
		return fmt.Errorf("failed to mark xp events synced: %w", err)
	}

	return nil
}
