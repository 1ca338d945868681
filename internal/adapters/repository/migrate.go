package repository

import (
	"database/sql"
	"errors"
	"fmt"
)

type migration struct {
	version int
	name    string
	up      string
}

// migrations run in order inside one transaction; schema_version tracks
// the last applied version so reopening an existing database is cheap.
var migrations = []migration{
	{
		version: 1,
		name:    "base schema",
		up: `
CREATE TABLE teams (
	id                TEXT PRIMARY KEY,
	name              TEXT NOT NULL,
	score             INTEGER NOT NULL DEFAULT 0,
	competition_start TIMESTAMP NOT NULL,
	competition_end   TIMESTAMP
);

CREATE TABLE boards (
	id       TEXT PRIMARY KEY,
	team_id  TEXT NOT NULL REFERENCES teams(id),
	columns  INTEGER NOT NULL,
	grid_rows INTEGER NOT NULL
);

CREATE TABLE tiles (
	id           TEXT PRIMARY KEY,
	board_id     TEXT NOT NULL REFERENCES boards(id),
	grid_col     TEXT NOT NULL,
	grid_row     INTEGER NOT NULL,
	points       INTEGER NOT NULL DEFAULT 0,
	locked       INTEGER NOT NULL DEFAULT 0,
	requirements TEXT NOT NULL,
	UNIQUE(board_id, grid_col, grid_row)
);

CREATE TABLE members (
	account_id TEXT PRIMARY KEY,
	player     TEXT NOT NULL,
	team_id    TEXT NOT NULL REFERENCES teams(id),
	board_id   TEXT NOT NULL REFERENCES boards(id)
);
CREATE INDEX idx_members_player ON members(player);

CREATE TABLE tile_progress (
	tile_id      TEXT PRIMARY KEY REFERENCES tiles(id),
	version      INTEGER NOT NULL DEFAULT 0,
	value        INTEGER NOT NULL DEFAULT 0,
	metadata     TEXT NOT NULL DEFAULT '{}',
	completed_at TIMESTAMP,
	completed_by TEXT NOT NULL DEFAULT ''
);

CREATE TABLE line_completions (
	board_id        TEXT NOT NULL REFERENCES boards(id),
	line_type       TEXT NOT NULL,
	line_identifier TEXT NOT NULL,
	completed_at    TIMESTAMP NOT NULL,
	PRIMARY KEY (board_id, line_type, line_identifier)
);
`,
	},
	{
		version: 2,
		name:    "effects",
		up: `
CREATE TABLE effect_configs (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	trigger_on  TEXT NOT NULL,
	action      TEXT NOT NULL,
	uses        INTEGER NOT NULL DEFAULT 1,
	ttl_seconds INTEGER NOT NULL DEFAULT 0,
	targeted    INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE board_effects (
	board_id  TEXT NOT NULL REFERENCES boards(id),
	effect_id TEXT NOT NULL REFERENCES effect_configs(id),
	PRIMARY KEY (board_id, effect_id)
);

CREATE TABLE earned_effects (
	id             TEXT PRIMARY KEY,
	team_id        TEXT NOT NULL REFERENCES teams(id),
	effect_id      TEXT NOT NULL REFERENCES effect_configs(id),
	status         TEXT NOT NULL,
	remaining_uses INTEGER NOT NULL,
	expires_at     TIMESTAMP,
	earned_at      TIMESTAMP NOT NULL
);
CREATE INDEX idx_earned_effects_team ON earned_effects(team_id, status);

CREATE TABLE activation_log (
	id             TEXT PRIMARY KEY,
	team_id        TEXT NOT NULL,
	target_team_id TEXT NOT NULL DEFAULT '',
	effect_id      TEXT NOT NULL,
	action         TEXT NOT NULL,
	detail         TEXT NOT NULL DEFAULT '',
	at             TIMESTAMP NOT NULL
);
CREATE INDEX idx_activation_log_team ON activation_log(team_id, at);
`,
	},
}

// migrate applies pending migrations in order.
func migrate(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS schema_version(version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	var current int
	err = tx.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := tx.Exec(`INSERT INTO schema_version(version) VALUES (0)`); err != nil {
			return fmt.Errorf("init schema_version: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("read schema_version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if _, err := tx.Exec(m.up); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		if _, err := tx.Exec(`UPDATE schema_version SET version=?`, m.version); err != nil {
			return fmt.Errorf("update schema_version: %w", err)
		}
		current = m.version
	}
	return tx.Commit()
}
