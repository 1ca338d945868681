package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/clanhall/bingo/internal/domain/model"
	"github.com/clanhall/bingo/pkg/logger"
)

// timeLayout is the canonical storage format for timestamps. The
// fractional part is fixed-width so string comparison in SQL matches
// chronological order; RFC3339Nano trims trailing zeros and sorts
// "00.5Z" before "00Z".
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func parseStoredTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// SQLiteStore implements Store on a sqlite database.
type SQLiteStore struct {
	db     *sql.DB
	logger logger.Logger
}

// Open opens (or creates) the database at path and applies migrations.
func Open(path string, opts ...Option) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// sqlite serializes writers; a single connection avoids SQLITE_BUSY
	// churn under concurrent tile updates.
	db.SetMaxOpenConns(1)
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	s := &SQLiteStore{db: db, logger: logger.Get().Named("store")}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// --- teams ---

func (s *SQLiteStore) CreateTeam(ctx context.Context, t model.Team) error {
	var end sql.NullString
	if t.CompetitionEnd != nil {
		end = sql.NullString{String: t.CompetitionEnd.UTC().Format(timeLayout), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO teams(id, name, score, competition_start, competition_end) VALUES (?,?,?,?,?)`,
		t.ID, t.Name, t.Score, t.CompetitionStart.UTC().Format(timeLayout), end)
	return err
}

func (s *SQLiteStore) Team(ctx context.Context, id string) (model.Team, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, score, competition_start, competition_end FROM teams WHERE id=?`, id)
	return scanTeam(row)
}

func scanTeam(row *sql.Row) (model.Team, error) {
	var t model.Team
	var start string
	var end sql.NullString
	err := row.Scan(&t.ID, &t.Name, &t.Score, &start, &end)
	if errors.Is(err, sql.ErrNoRows) {
		return t, fmt.Errorf("team: %w", ErrNotFound)
	}
	if err != nil {
		return t, err
	}
	if t.CompetitionStart, err = parseStoredTime(start); err != nil {
		return t, err
	}
	if end.Valid {
		at, err := parseStoredTime(end.String)
		if err != nil {
			return t, err
		}
		t.CompetitionEnd = &at
	}
	return t, nil
}

func (s *SQLiteStore) IncrementTeamScore(ctx context.Context, teamID string, delta int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE teams SET score = score + ? WHERE id=?`, delta, teamID)
	if err != nil {
		return err
	}
	return requireRow(res, "team")
}

func (s *SQLiteStore) MultiplyTeamScore(ctx context.Context, teamID string, factor float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE teams SET score = CAST(ROUND(score * ?) AS INTEGER) WHERE id=?`, factor, teamID)
	if err != nil {
		return err
	}
	return requireRow(res, "team")
}

func requireRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}

// --- boards and tiles ---

func (s *SQLiteStore) CreateBoard(ctx context.Context, b model.Board) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO boards(id, team_id, columns, grid_rows) VALUES (?,?,?,?)`,
		b.ID, b.TeamID, b.Columns, b.Rows)
	return err
}

func (s *SQLiteStore) Board(ctx context.Context, id string) (model.Board, error) {
	var b model.Board
	err := s.db.QueryRowContext(ctx,
		`SELECT id, team_id, columns, grid_rows FROM boards WHERE id=?`, id).
		Scan(&b.ID, &b.TeamID, &b.Columns, &b.Rows)
	if errors.Is(err, sql.ErrNoRows) {
		return b, fmt.Errorf("board: %w", ErrNotFound)
	}
	return b, err
}

func (s *SQLiteStore) CreateTile(ctx context.Context, t model.Tile) error {
	reqs, err := encodeTileRequirements(t.Requirements)
	if err != nil {
		return fmt.Errorf("encode requirements: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tiles(id, board_id, grid_col, grid_row, points, locked, requirements) VALUES (?,?,?,?,?,?,?)`,
		t.ID, t.BoardID, t.Position.Column, t.Position.Row, t.Points, boolInt(t.Locked), reqs)
	return err
}

const tileColumns = `id, board_id, grid_col, grid_row, points, locked, requirements`

func scanTile(scan func(dest ...any) error) (model.Tile, error) {
	var t model.Tile
	var locked int
	var reqs string
	if err := scan(&t.ID, &t.BoardID, &t.Position.Column, &t.Position.Row, &t.Points, &locked, &reqs); err != nil {
		return t, err
	}
	t.Locked = locked != 0
	var err error
	t.Requirements, err = decodeTileRequirements(reqs)
	return t, err
}

func (s *SQLiteStore) Tile(ctx context.Context, id string) (model.Tile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+tileColumns+` FROM tiles WHERE id=?`, id)
	t, err := scanTile(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return t, fmt.Errorf("tile: %w", ErrNotFound)
	}
	return t, err
}

func (s *SQLiteStore) queryTiles(ctx context.Context, query string, args ...any) ([]model.Tile, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tiles []model.Tile
	for rows.Next() {
		t, err := scanTile(rows.Scan)
		if err != nil {
			return nil, err
		}
		tiles = append(tiles, t)
	}
	return tiles, rows.Err()
}

func (s *SQLiteStore) TilesForTeam(ctx context.Context, teamID string) ([]model.Tile, error) {
	return s.queryTiles(ctx,
		`SELECT t.`+"id"+`, t.board_id, t.grid_col, t.grid_row, t.points, t.locked, t.requirements
		 FROM tiles t JOIN boards b ON t.board_id = b.id
		 WHERE b.team_id=? ORDER BY t.grid_row, t.grid_col`, teamID)
}

func (s *SQLiteStore) TilesForBoard(ctx context.Context, boardID string) ([]model.Tile, error) {
	return s.queryTiles(ctx,
		`SELECT `+tileColumns+` FROM tiles WHERE board_id=? ORDER BY grid_row, grid_col`, boardID)
}

// SwapTiles exchanges the grid positions of the tiles at a and b.
func (s *SQLiteStore) SwapTiles(ctx context.Context, boardID string, a, b model.Position) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	idAt := func(p model.Position) (string, error) {
		var id string
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM tiles WHERE board_id=? AND grid_col=? AND grid_row=?`,
			boardID, p.Column, p.Row).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("tile at %s: %w", p, ErrNotFound)
		}
		return id, err
	}
	idA, err := idAt(a)
	if err != nil {
		return err
	}
	idB, err := idAt(b)
	if err != nil {
		return err
	}
	// Park tile A outside the grid to dodge the unique position index.
	if _, err := tx.ExecContext(ctx, `UPDATE tiles SET grid_row=-1 WHERE id=?`, idA); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE tiles SET grid_col=?, grid_row=? WHERE id=?`, a.Column, a.Row, idB); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE tiles SET grid_col=?, grid_row=? WHERE id=?`, b.Column, b.Row, idA); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) SetTileLocked(ctx context.Context, boardID string, pos model.Position, locked bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tiles SET locked=? WHERE board_id=? AND grid_col=? AND grid_row=?`,
		boolInt(locked), boardID, pos.Column, pos.Row)
	if err != nil {
		return err
	}
	return requireRow(res, "tile")
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// --- memberships ---

func (s *SQLiteStore) AddMember(ctx context.Context, m model.Membership) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO members(account_id, player, team_id, board_id) VALUES (?,?,?,?)`,
		m.AccountID, m.Player, m.TeamID, m.BoardID)
	return err
}

func (s *SQLiteStore) ResolveAccount(ctx context.Context, player string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT account_id FROM members WHERE player=? LIMIT 1`, player).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("account for %q: %w", player, ErrNotFound)
	}
	return id, err
}

func (s *SQLiteStore) ActiveMemberships(ctx context.Context, player string, at time.Time) ([]model.Membership, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT m.account_id, m.player, m.team_id, m.board_id
		 FROM members m JOIN teams t ON m.team_id = t.id
		 WHERE m.player=? AND t.competition_start <= ?
		   AND (t.competition_end IS NULL OR t.competition_end > ?)`,
		player, at.UTC().Format(timeLayout), at.UTC().Format(timeLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Membership
	for rows.Next() {
		var m model.Membership
		if err := rows.Scan(&m.AccountID, &m.Player, &m.TeamID, &m.BoardID); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// --- tile progress ---

func (s *SQLiteStore) Progress(ctx context.Context, tileID string) (*model.TileProgress, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT tile_id, version, value, metadata, completed_at, completed_by FROM tile_progress WHERE tile_id=?`, tileID)
	p, err := scanProgress(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanProgress(scan func(dest ...any) error) (model.TileProgress, error) {
	var p model.TileProgress
	var meta string
	var completedAt sql.NullString
	if err := scan(&p.TileID, &p.Version, &p.Value, &meta, &completedAt, &p.CompletedBy); err != nil {
		return p, err
	}
	var err error
	if p.Metadata, err = decodeMetadata(meta); err != nil {
		return p, err
	}
	if completedAt.Valid {
		at, err := parseStoredTime(completedAt.String)
		if err != nil {
			return p, err
		}
		p.CompletedAt = &at
	}
	return p, nil
}

func (s *SQLiteStore) ProgressForBoard(ctx context.Context, boardID string) (map[string]model.TileProgress, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT p.tile_id, p.version, p.value, p.metadata, p.completed_at, p.completed_by
		 FROM tile_progress p JOIN tiles t ON p.tile_id = t.id
		 WHERE t.board_id=?`, boardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]model.TileProgress)
	for rows.Next() {
		p, err := scanProgress(rows.Scan)
		if err != nil {
			return nil, err
		}
		out[p.TileID] = p
	}
	return out, rows.Err()
}

// UpsertProgress writes p guarded by its version: the stored row must
// still be at p.Version for the write to land, and the stored version
// advances by one. A fresh row inserts at version 1 (p.Version == 0).
func (s *SQLiteStore) UpsertProgress(ctx context.Context, p model.TileProgress) error {
	meta, err := encodeMetadata(p.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	var completedAt sql.NullString
	if p.CompletedAt != nil {
		completedAt = sql.NullString{String: p.CompletedAt.UTC().Format(timeLayout), Valid: true}
	}

	if p.Version == 0 {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO tile_progress(tile_id, version, value, metadata, completed_at, completed_by)
			 VALUES (?,1,?,?,?,?)`,
			p.TileID, p.Value, meta, completedAt, p.CompletedBy)
		if err != nil && isUniqueViolation(err) {
			return fmt.Errorf("tile %s: %w", p.TileID, ErrVersionConflict)
		}
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE tile_progress SET version=version+1, value=?, metadata=?, completed_at=?, completed_by=?
		 WHERE tile_id=? AND version=?`,
		p.Value, meta, completedAt, p.CompletedBy, p.TileID, p.Version)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("tile %s: %w", p.TileID, ErrVersionConflict)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	// modernc.org/sqlite surfaces constraint failures in the message;
	// the driver does not export a typed error for them.
	return err != nil && strings.Contains(err.Error(), "constraint failed")
}

// --- line completions ---

func (s *SQLiteStore) RecordLineCompletion(ctx context.Context, boardID string, lt model.LineType, identifier string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO line_completions(board_id, line_type, line_identifier, completed_at) VALUES (?,?,?,?)`,
		boardID, string(lt), identifier, time.Now().UTC().Format(timeLayout))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// --- effects ---

func (s *SQLiteStore) AddLineEffect(ctx context.Context, boardID string, cfg model.EffectConfig) error {
	action, err := encodeAction(cfg.Action)
	if err != nil {
		return fmt.Errorf("encode action: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO effect_configs(id, name, trigger_on, action, uses, ttl_seconds, targeted)
		 VALUES (?,?,?,?,?,?,?)`,
		cfg.ID, cfg.Name, string(cfg.Trigger), action, cfg.Uses, int64(cfg.TTL.Seconds()), boolInt(cfg.Targeted)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO board_effects(board_id, effect_id) VALUES (?,?)`, boardID, cfg.ID); err != nil {
		return err
	}
	return tx.Commit()
}

const effectConfigColumns = `id, name, trigger_on, action, uses, ttl_seconds, targeted`

func scanEffectConfig(scan func(dest ...any) error) (model.EffectConfig, error) {
	var cfg model.EffectConfig
	var trigger, action string
	var ttlSeconds int64
	var targeted int
	if err := scan(&cfg.ID, &cfg.Name, &trigger, &action, &cfg.Uses, &ttlSeconds, &targeted); err != nil {
		return cfg, err
	}
	cfg.Trigger = model.EffectTrigger(trigger)
	cfg.TTL = time.Duration(ttlSeconds) * time.Second
	cfg.Targeted = targeted != 0
	var err error
	cfg.Action, err = decodeAction(action)
	return cfg, err
}

func (s *SQLiteStore) LineEffects(ctx context.Context, boardID string) ([]model.EffectConfig, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.name, c.trigger_on, c.action, c.uses, c.ttl_seconds, c.targeted
		 FROM effect_configs c JOIN board_effects be ON c.id = be.effect_id
		 WHERE be.board_id=? ORDER BY c.id`, boardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.EffectConfig
	for rows.Next() {
		cfg, err := scanEffectConfig(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) EffectConfig(ctx context.Context, id string) (model.EffectConfig, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+effectConfigColumns+` FROM effect_configs WHERE id=?`, id)
	cfg, err := scanEffectConfig(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return cfg, fmt.Errorf("effect config: %w", ErrNotFound)
	}
	return cfg, err
}

func (s *SQLiteStore) CreateEarnedEffect(ctx context.Context, e model.EarnedEffect) error {
	var expires sql.NullString
	if e.ExpiresAt != nil {
		expires = sql.NullString{String: e.ExpiresAt.UTC().Format(timeLayout), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO earned_effects(id, team_id, effect_id, status, remaining_uses, expires_at, earned_at)
		 VALUES (?,?,?,?,?,?,?)`,
		e.ID, e.TeamID, e.EffectID, string(e.Status), e.RemainingUses, expires, e.EarnedAt.UTC().Format(timeLayout))
	return err
}

const earnedEffectColumns = `id, team_id, effect_id, status, remaining_uses, expires_at, earned_at`

func scanEarnedEffect(scan func(dest ...any) error) (model.EarnedEffect, error) {
	var e model.EarnedEffect
	var status, earnedAt string
	var expires sql.NullString
	if err := scan(&e.ID, &e.TeamID, &e.EffectID, &status, &e.RemainingUses, &expires, &earnedAt); err != nil {
		return e, err
	}
	e.Status = model.EffectStatus(status)
	var err error
	if e.EarnedAt, err = parseStoredTime(earnedAt); err != nil {
		return e, err
	}
	if expires.Valid {
		at, err := parseStoredTime(expires.String)
		if err != nil {
			return e, err
		}
		e.ExpiresAt = &at
	}
	return e, nil
}

func (s *SQLiteStore) EarnedEffect(ctx context.Context, id string) (model.EarnedEffect, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+earnedEffectColumns+` FROM earned_effects WHERE id=?`, id)
	e, err := scanEarnedEffect(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return e, fmt.Errorf("earned effect: %w", ErrNotFound)
	}
	return e, err
}

func (s *SQLiteStore) UpdateEarnedEffect(ctx context.Context, id string, patch EffectPatch) error {
	set := ""
	var args []any
	if patch.Status != nil {
		set += "status=?"
		args = append(args, string(*patch.Status))
	}
	if patch.RemainingUses != nil {
		if set != "" {
			set += ", "
		}
		set += "remaining_uses=?"
		args = append(args, *patch.RemainingUses)
	}
	if set == "" {
		return nil
	}
	args = append(args, id)
	res, err := s.db.ExecContext(ctx, `UPDATE earned_effects SET `+set+` WHERE id=?`, args...)
	if err != nil {
		return err
	}
	return requireRow(res, "earned effect")
}

func (s *SQLiteStore) AvailableEffects(ctx context.Context, teamID string) ([]model.EarnedEffect, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+earnedEffectColumns+` FROM earned_effects
		 WHERE team_id=? AND status=? ORDER BY earned_at`, teamID, string(model.EffectAvailable))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.EarnedEffect
	for rows.Next() {
		e, err := scanEarnedEffect(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ExpireEffects(ctx context.Context, now time.Time) ([]model.EarnedEffect, error) {
	cutoff := now.UTC().Format(timeLayout)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+earnedEffectColumns+` FROM earned_effects
		 WHERE status=? AND expires_at IS NOT NULL AND expires_at <= ?`,
		string(model.EffectAvailable), cutoff)
	if err != nil {
		return nil, err
	}
	var expired []model.EarnedEffect
	for rows.Next() {
		e, err := scanEarnedEffect(rows.Scan)
		if err != nil {
			rows.Close()
			return nil, err
		}
		expired = append(expired, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(expired) == 0 {
		return nil, nil
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE earned_effects SET status=? WHERE status=? AND expires_at IS NOT NULL AND expires_at <= ?`,
		string(model.EffectExpired), string(model.EffectAvailable), cutoff); err != nil {
		return nil, err
	}
	for i := range expired {
		expired[i].Status = model.EffectExpired
	}
	return expired, nil
}

// --- activation log ---

func (s *SQLiteStore) AppendActivationLog(ctx context.Context, e model.ActivationLogEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO activation_log(id, team_id, target_team_id, effect_id, action, detail, at)
		 VALUES (?,?,?,?,?,?,?)`,
		e.ID, e.TeamID, e.TargetTeamID, e.EffectID, string(e.Action), e.Detail, e.At.UTC().Format(timeLayout))
	return err
}

func (s *SQLiteStore) ActivationLog(ctx context.Context, teamID string) ([]model.ActivationLogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, team_id, target_team_id, effect_id, action, detail, at
		 FROM activation_log WHERE team_id=? OR target_team_id=? ORDER BY at`, teamID, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ActivationLogEntry
	for rows.Next() {
		var e model.ActivationLogEntry
		var action, at string
		if err := rows.Scan(&e.ID, &e.TeamID, &e.TargetTeamID, &e.EffectID, &action, &e.Detail, &at); err != nil {
			return nil, err
		}
		e.Action = model.LogAction(action)
		if e.At, err = parseStoredTime(at); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
