package postgres

import (
	"context"
	"fmt"
	"time"

	domain "github.com/quizowl/quizowl-progression/internal/domain/progression"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHALLENGE REPOSITORY (PostgreSQL implementation)
// ══════════════════════════════════════════════════════════════════════════════

// ChallengeRepository implements domain.ChallengeRepository using PostgreSQL.
// The table holds at most one row per user: saving a fresh challenge
// replaces the stale one in place.
type ChallengeRepository struct {
	conn *Connection
}

// NewChallengeRepository creates a new PostgreSQL challenge repository.
func NewChallengeRepository(conn *Connection) *ChallengeRepository {
	return &ChallengeRepository{conn: conn}
}

const getCurrentChallengeQuery = `
	SELECT user_id, id, template_id, type, description, xp_reward, subject,
		day, completed, completed_at, created_at
	FROM daily_challenges
	WHERE user_id = $1
`

const listStaleChallengeUsersQuery = `
	SELECT user_id
	FROM daily_challenges
	WHERE day <> $1
	ORDER BY created_at ASC
	LIMIT $2
`

const saveChallengeQuery = `
	INSERT INTO daily_challenges (
		user_id, id, template_id, type, description, xp_reward, subject,
		day, completed, completed_at, created_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (user_id) DO UPDATE SET
		id = EXCLUDED.id,
		template_id = EXCLUDED.template_id,
		type = EXCLUDED.type,
		description = EXCLUDED.description,
		xp_reward = EXCLUDED.xp_reward,
		subject = EXCLUDED.subject,
		day = EXCLUDED.day,
		completed = EXCLUDED.completed,
		completed_at = EXCLUDED.completed_at,
		created_at = EXCLUDED.created_at
`

// GetCurrent returns the last stored challenge for the user, possibly stale.
// Returns domain.ErrChallengeNotFound when the user never had one.
func (r *ChallengeRepository) GetCurrent(ctx context.Context, userID string) (*domain.DailyChallenge, error) {
	row := r.conn.QueryRow(ctx, getCurrentChallengeQuery, userID)

	var (
		challenge   domain.DailyChallenge
		xpReward    int
		completedAt *time.Time
	)

	err := row.Scan(
		&challenge.UserID,
		&challenge.ID,
		&challenge.TemplateID,
		&challenge.Type,
		&challenge.Description,
		&xpReward,
		&challenge.Subject,
		&challenge.Day,
		&challenge.Completed,
		&completedAt,
		&challenge.CreatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, domain.ErrChallengeNotFound
		}
		return nil, fmt.Errorf("failed to load challenge for %s: %w", userID, err)
	}

	challenge.XPReward = domain.XP(xpReward)
	if completedAt != nil {
		challenge.CompletedAt = *completedAt
	}

	return &challenge, nil
}

// ListStaleUserIDs returns users whose stored challenge belongs to a day
// other than the given one. Used by the midnight rotation job.
func (r *ChallengeRepository) ListStaleUserIDs(ctx context.Context, day string, limit int) ([]string, error) {
	rows, err := r.conn.Query(ctx, listStaleChallengeUsersQuery, day, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale challenges: %w", err)
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan stale challenge row: %w", err)
		}
		userIDs = append(userIDs, userID)
	}

	return userIDs, rows.Err()
}

func (r *ChallengeRepository) Save(ctx context.Context, challenge *domain.DailyChallenge) error {
	var completedAt *time.Time
	if !challenge.CompletedAt.IsZero() {
		completedAt = &challenge.CompletedAt
	}

	_, err := r.conn.Exec(ctx, saveChallengeQuery,
		challenge.UserID,
		challenge.ID,
		challenge.TemplateID,
		string(challenge.Type),
		challenge.Description,
		int(challenge.XPReward),
		string(challenge.Subject),
		challenge.Day,
		challenge.Completed,
		completedAt,
		challenge.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save challenge for %s: %w", challenge.UserID, err)
	}

	return nil
}
