// Package postgres implements the PostgreSQL persistence layer for Questhall
// Progress Hub. This file contains the embedded schema migrations.
package postgres

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_learners",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_progress",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
		{
			Version: 3,
			Name:    "create_reward_claims",
			UpSQL:   migration003Up,
			DownSQL: migration003Down,
		},
		{
			Version: 4,
			Name:    "create_lessons",
			UpSQL:   migration004Up,
			DownSQL: migration004Down,
		},
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Migration 001: learners
// ─────────────────────────────────────────────────────────────────────────────

const migration001Up = `
CREATE TABLE IF NOT EXISTS learners (
	id TEXT PRIMARY KEY,
	display_name TEXT NOT NULL,
	xp INTEGER NOT NULL DEFAULT 0 CHECK (xp >= 0),
	streak_count INTEGER NOT NULL DEFAULT 0,
	last_completed_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_learners_xp ON learners (xp DESC);
`

const migration001Down = `
DROP TABLE IF EXISTS learners;
`

// ─────────────────────────────────────────────────────────────────────────────
// Migration 002: assignments, completions and merged session snapshots
// order_index is part of the assignments key: the same exercise can be
// assigned to a session more than once, and each row counts separately.
// ─────────────────────────────────────────────────────────────────────────────

const migration002Up = `
CREATE TABLE IF NOT EXISTS assignments (
	exercise_id TEXT NOT NULL,
	session_id TEXT NOT NULL,
	unit_id TEXT NOT NULL,
	course_id TEXT NOT NULL,
	order_index INTEGER NOT NULL DEFAULT 0,
	xp_reward INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (session_id, exercise_id, order_index)
);

CREATE INDEX IF NOT EXISTS idx_assignments_unit ON assignments (unit_id);
CREATE INDEX IF NOT EXISTS idx_assignments_course ON assignments (course_id);

CREATE TABLE IF NOT EXISTS completions (
	learner_id TEXT NOT NULL,
	exercise_id TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'not_started',
	score INTEGER,
	attempts INTEGER NOT NULL DEFAULT 0,
	time_spent_sec INTEGER NOT NULL DEFAULT 0,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (learner_id, exercise_id)
);

CREATE TABLE IF NOT EXISTS session_snapshots (
	learner_id TEXT NOT NULL,
	session_id TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'not_started',
	xp_earned INTEGER NOT NULL DEFAULT 0,
	percentage INTEGER NOT NULL DEFAULT 0 CHECK (percentage BETWEEN 0 AND 100),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (learner_id, session_id)
);
`

const migration002Down = `
DROP TABLE IF EXISTS session_snapshots;
DROP TABLE IF EXISTS completions;
DROP TABLE IF EXISTS assignments;
`

// ─────────────────────────────────────────────────────────────────────────────
// Migration 003: reward claims
// The composite primary key doubles as the uniqueness constraint that resolves
// concurrent claim races: exactly one insert per (learner_id, session_id) wins.
// ─────────────────────────────────────────────────────────────────────────────

const migration003Up = `
CREATE TABLE IF NOT EXISTS reward_claims (
	learner_id TEXT NOT NULL,
	session_id TEXT NOT NULL,
	xp_awarded INTEGER NOT NULL CHECK (xp_awarded > 0),
	claimed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	credited_at TIMESTAMPTZ,
	PRIMARY KEY (learner_id, session_id)
);

CREATE INDEX IF NOT EXISTS idx_reward_claims_uncredited
	ON reward_claims (claimed_at) WHERE credited_at IS NULL;
`

const migration003Down = `
DROP TABLE IF EXISTS reward_claims;
`

// ─────────────────────────────────────────────────────────────────────────────
// Migration 004: offline lessons
// ─────────────────────────────────────────────────────────────────────────────

const migration004Up = `
CREATE TABLE IF NOT EXISTS lesson_infos (
	id TEXT PRIMARY KEY,
	course_id TEXT NOT NULL,
	session_date TIMESTAMPTZ NOT NULL,
	xp_bonus_multiplier DOUBLE PRECISION NOT NULL DEFAULT 1.0 CHECK (xp_bonus_multiplier > 0),
	topic TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_lesson_infos_course_date
	ON lesson_infos (course_id, session_date);

CREATE TABLE IF NOT EXISTS lesson_records (
	lesson_info_id TEXT NOT NULL REFERENCES lesson_infos (id) ON DELETE CASCADE,
	learner_id TEXT NOT NULL,
	attendance TEXT NOT NULL,
	performance TEXT NOT NULL DEFAULT '',
	homework TEXT NOT NULL DEFAULT '',
	star_flag BOOLEAN NOT NULL DEFAULT FALSE,
	notes TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (lesson_info_id, learner_id)
);

CREATE INDEX IF NOT EXISTS idx_lesson_records_learner ON lesson_records (learner_id);
`

const migration004Down = `
DROP TABLE IF EXISTS lesson_records;
DROP TABLE IF EXISTS lesson_infos;
`
