package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domain "github.com/quizowl/quizowl-progression/internal/domain/progression"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS REPOSITORY (PostgreSQL implementation)
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRepository implements domain.ProgressRepository using PostgreSQL.
type ProgressRepository struct {
	conn *Connection
}

// NewProgressRepository creates a new PostgreSQL progress repository.
func NewProgressRepository(conn *Connection) *ProgressRepository {
	return &ProgressRepository{conn: conn}
}

const progressColumns = `
	user_id, total_xp, level, current_streak, longest_streak, last_activity_at,
	quizzes_completed, perfect_scores, lessons_completed,
	subject_quiz_counts, earned_badges, created_at, updated_at
`

const loadProgressQuery = `
	SELECT ` + progressColumns + `
	FROM user_progress
	WHERE user_id = $1
`

// Save writes the full progress record atomically.
// The record is inserted on first save and fully replaced afterwards.
const saveProgressQuery = `
	INSERT INTO user_progress (` + progressColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	ON CONFLICT (user_id) DO UPDATE SET
		total_xp = EXCLUDED.total_xp,
		level = EXCLUDED.level,
		current_streak = EXCLUDED.current_streak,
		longest_streak = EXCLUDED.longest_streak,
		last_activity_at = EXCLUDED.last_activity_at,
		quizzes_completed = EXCLUDED.quizzes_completed,
		perfect_scores = EXCLUDED.perfect_scores,
		lessons_completed = EXCLUDED.lessons_completed,
		subject_quiz_counts = EXCLUDED.subject_quiz_counts,
		earned_badges = EXCLUDED.earned_badges,
		updated_at = EXCLUDED.updated_at
`

const listStreaksAtRiskQuery = `
	SELECT user_id
	FROM user_progress
	WHERE current_streak > 0
		AND last_activity_at IS NOT NULL
		AND last_activity_at < $1
	ORDER BY last_activity_at ASC
	LIMIT $2
`

// ListStreaksAtRisk returns users with an active streak whose last
// activity is older than the cutoff. Used by the nightly streak sweep.
func (r *ProgressRepository) ListStreaksAtRisk(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	rows, err := r.conn.Query(ctx, listStreaksAtRiskQuery, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list streaks at risk: %w", err)
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan streak row: %w", err)
		}
		userIDs = append(userIDs, userID)
	}

	return userIDs, rows.Err()
}

// Load returns the progress record for the given user.
// Returns domain.ErrProgressNotFound when no record exists.
func (r *ProgressRepository) Load(ctx context.Context, userID string) (*domain.UserProgress, error) {
	row := r.conn.QueryRow(ctx, loadProgressQuery, userID)

	progress, err := scanProgress(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, domain.ErrProgressNotFound
		}
		return nil, fmt.Errorf("failed to load progress for %s: %w", userID, err)
	}

	return progress, nil
}

func (r *ProgressRepository) Save(ctx context.Context, progress *domain.UserProgress) error {
	subjectsJSON, err := json.Marshal(progress.SubjectQuizCounts)
	if err != nil {
		return fmt.Errorf("failed to marshal subject counts: %w", err)
	}

	badgesJSON, err := json.Marshal(progress.EarnedBadges)
	if err != nil {
		return fmt.Errorf("failed to marshal earned badges: %w", err)
	}

	var lastActivity *time.Time
	if !progress.LastActivityAt.IsZero() {
		lastActivity = &progress.LastActivityAt
	}

	_, err = r.conn.Exec(ctx, saveProgressQuery,
		progress.UserID,
		int(progress.TotalXP),
		int(progress.Level),
		progress.CurrentStreak,
		progress.LongestStreak,
		lastActivity,
		progress.QuizzesCompleted,
		progress.PerfectScores,
		progress.LessonsCompleted,
		subjectsJSON,
		badgesJSON,
		progress.CreatedAt,
		progress.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save progress for %s: %w", progress.UserID, err)
	}

	return nil
}

// rowScanner abstracts pgx.Row / pgx.Rows for the scan helper.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProgress(row rowScanner) (*domain.UserProgress, error) {
	var (
		progress     domain.UserProgress
		totalXP      int
		level        int
		lastActivity *time.Time
		subjectsJSON []byte
		badgesJSON   []byte
	)

	err := row.Scan(
		&progress.UserID,
		&totalXP,
		&level,
		&progress.CurrentStreak,
		&progress.LongestStreak,
		&lastActivity,
		&progress.QuizzesCompleted,
		&progress.PerfectScores,
		&progress.LessonsCompleted,
		&subjectsJSON,
		&badgesJSON,
		&progress.CreatedAt,
		&progress.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	progress.TotalXP = domain.XP(totalXP)
	progress.Level = domain.Level(level)
	if lastActivity != nil {
		progress.LastActivityAt = *lastActivity
	}

	progress.SubjectQuizCounts = make(map[domain.Subject]int)
	if len(subjectsJSON) > 0 {
		if err := json.Unmarshal(subjectsJSON, &progress.SubjectQuizCounts); err != nil {
			return nil, fmt.Errorf("failed to unmarshal subject counts: %w", err)
		}
	}

	progress.EarnedBadges = make(map[domain.BadgeID]time.Time)
	if len(badgesJSON) > 0 {
		if err := json.Unmarshal(badgesJSON, &progress.EarnedBadges); err != nil {
			return nil, fmt.Errorf("failed to unmarshal earned badges: %w", err)
		}
	}

	return &progress, nil
}
