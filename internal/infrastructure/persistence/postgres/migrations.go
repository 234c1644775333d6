package postgres

// GetMigrations returns all embedded migrations in order.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_user_progress",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_daily_challenges",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
		{
			Version: 3,
			Name:    "create_xp_events",
			UpSQL:   migration003Up,
			DownSQL: migration003Down,
		},
	}
}

const migration001Up = `
CREATE TABLE IF NOT EXISTS user_progress (
	user_id             TEXT PRIMARY KEY,
	total_xp            INTEGER NOT NULL DEFAULT 0,
	level               INTEGER NOT NULL DEFAULT 1,
	current_streak      INTEGER NOT NULL DEFAULT 0,
	longest_streak      INTEGER NOT NULL DEFAULT 0,
	last_activity_at    TIMESTAMP WITH TIME ZONE,
	quizzes_completed   INTEGER NOT NULL DEFAULT 0,
	perfect_scores      INTEGER NOT NULL DEFAULT 0,
	lessons_completed   INTEGER NOT NULL DEFAULT 0,
	subject_quiz_counts JSONB NOT NULL DEFAULT '{}',
	earned_badges       JSONB NOT NULL DEFAULT '{}',
	created_at          TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
	updated_at          TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_user_progress_level ON user_progress(level DESC, total_xp DESC);
CREATE INDEX IF NOT EXISTS idx_user_progress_streak ON user_progress(current_streak DESC) WHERE current_streak > 0;
`

const migration001Down = `
DROP TABLE IF EXISTS user_progress;
`

const migration002Up = `
CREATE TABLE IF NOT EXISTS daily_challenges (
	user_id      TEXT PRIMARY KEY,
	id           TEXT NOT NULL,
	template_id  TEXT NOT NULL,
	type         TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	xp_reward    INTEGER NOT NULL DEFAULT 0,
	subject      TEXT NOT NULL DEFAULT '',
	day          TEXT NOT NULL,
	completed    BOOLEAN NOT NULL DEFAULT FALSE,
	completed_at TIMESTAMP WITH TIME ZONE,
	created_at   TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_daily_challenges_day ON daily_challenges(day);
`

const migration002Down = `
DROP TABLE IF EXISTS daily_challenges;
`

const migration003Up = `
CREATE TABLE IF NOT EXISTS xp_events (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	amount      INTEGER NOT NULL,
	source      TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
	synced_at   TIMESTAMP WITH TIME ZONE
);

CREATE INDEX IF NOT EXISTS idx_xp_events_user ON xp_events(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_xp_events_unsynced ON xp_events(created_at) WHERE synced_at IS NULL;
`

const migration003Down = `
DROP TABLE IF EXISTS xp_events;
`
