// Package sqlite provides SQLite-based persistent storage for PiùCane.
// Uses WAL mode for concurrent reads and crash-safe writes.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)

	"github.com/piucane/piucane/internal/domain"
)

// DB wraps a SQLite connection with WAL mode and migrations.
// It implements domain.Store.
type DB struct {
	db *sql.DB
}

var _ domain.Store = (*DB)(nil)

// Open creates or opens the SQLite database at dir/gamification.db.
// Enables WAL mode, foreign keys, and 5-second busy timeout.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "gamification.db")
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// SQLite is single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS profiles (
			user_id             TEXT PRIMARY KEY,
			total_xp            INTEGER NOT NULL DEFAULT 0 CHECK (total_xp >= 0),
			current_level       INTEGER NOT NULL DEFAULT 1,
			xp_to_next_level    INTEGER NOT NULL DEFAULT 0,
			level_progress      REAL NOT NULL DEFAULT 0,
			premium             BOOLEAN NOT NULL DEFAULT 0,
			missions_started    INTEGER NOT NULL DEFAULT 0,
			missions_completed  INTEGER NOT NULL DEFAULT 0,
			missions_failed     INTEGER NOT NULL DEFAULT 0,
			avg_mission_minutes REAL NOT NULL DEFAULT 0,
			engagement_rate     REAL NOT NULL DEFAULT 0,
			streak_current      INTEGER NOT NULL DEFAULT 0,
			streak_longest      INTEGER NOT NULL DEFAULT 0,
			streak_last_date    INTEGER,
			streak_freeze_used  BOOLEAN NOT NULL DEFAULT 0,
			streak_freeze_week  TEXT NOT NULL DEFAULT '',
			created_at          INTEGER NOT NULL,
			updated_at          INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS mission_progress (
			id                TEXT PRIMARY KEY,
			user_id           TEXT NOT NULL,
			mission_id        TEXT NOT NULL,
			category          TEXT NOT NULL DEFAULT '',
			difficulty        TEXT NOT NULL,
			total_steps       INTEGER NOT NULL,
			steps_completed   INTEGER NOT NULL DEFAULT 0,
			estimated_minutes INTEGER NOT NULL DEFAULT 0,
			status            TEXT NOT NULL,
			time_spent        REAL NOT NULL DEFAULT 0,
			efficiency        REAL NOT NULL DEFAULT 0,
			quality_score     REAL NOT NULL DEFAULT 0,
			reward_xp         INTEGER NOT NULL DEFAULT 0,
			started_at        INTEGER NOT NULL,
			last_active_at    INTEGER NOT NULL,
			completed_at      INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_mission_user_active ON mission_progress(user_id, last_active_at DESC)`,

		`CREATE TABLE IF NOT EXISTS rewards (
			id          TEXT PRIMARY KEY,
			user_id     TEXT NOT NULL,
			type        TEXT NOT NULL,
			value       TEXT NOT NULL,
			sku         TEXT NOT NULL DEFAULT '',
			code        TEXT NOT NULL DEFAULT '',
			status      TEXT NOT NULL,
			earned_at   INTEGER NOT NULL,
			expires_at  INTEGER,
			claimed_at  INTEGER,
			source_type TEXT NOT NULL,
			source_id   TEXT NOT NULL,
			source_name TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rewards_user ON rewards(user_id, earned_at)`,
		`CREATE INDEX IF NOT EXISTS idx_rewards_pending ON rewards(status, expires_at)`,

		// One JSON document per user; the DDA record is read and written whole
		`CREATE TABLE IF NOT EXISTS dda_states (
			user_id    TEXT PRIMARY KEY,
			document   TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS badges (
			user_id     TEXT NOT NULL,
			badge_id    TEXT NOT NULL,
			unlocked_at INTEGER NOT NULL,
			PRIMARY KEY (user_id, badge_id)
		)`,

		`CREATE TABLE IF NOT EXISTS notifications (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id    TEXT NOT NULL,
			type       TEXT NOT NULL,
			title      TEXT NOT NULL,
			body       TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			shown      BOOLEAN DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notif_user_created ON notifications(user_id, created_at)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func nullableUnix(t *time.Time) sql.NullInt64 {
	if t == nil || t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func unixPtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0)
	return &t
}
