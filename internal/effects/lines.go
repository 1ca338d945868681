package effects

import (
	"context"
	"fmt"
	"strconv"

	"github.com/clanhall/bingo/internal/domain/model"
	"github.com/clanhall/bingo/pkg/logger"
	"github.com/clanhall/bingo/pkg/metrics"
)

// OnTileCompleted checks whether the just-completed tile finished its
// row or column. Each line is recorded at most once; on the first
// completion every effect configured for the board is granted to the
// owning team.
func (e *Engine) OnTileCompleted(ctx context.Context, boardID string, pos model.Position) error {
	board, err := e.store.Board(ctx, boardID)
	if err != nil {
		return fmt.Errorf("load board: %w", err)
	}
	tiles, err := e.store.TilesForBoard(ctx, boardID)
	if err != nil {
		return fmt.Errorf("load tiles: %w", err)
	}
	prog, err := e.store.ProgressForBoard(ctx, boardID)
	if err != nil {
		return fmt.Errorf("load progress: %w", err)
	}

	unlock := e.locks.lockPair(board.TeamID, "")
	defer unlock()

	if lineDone(tiles, prog, func(t model.Tile) bool { return t.Position.Row == pos.Row }, board.Columns) {
		if err := e.recordLine(ctx, board, tiles, model.LineRow, strconv.Itoa(pos.Row),
			func(t model.Tile) bool { return t.Position.Row == pos.Row }); err != nil {
			return err
		}
	}
	if lineDone(tiles, prog, func(t model.Tile) bool { return t.Position.Column == pos.Column }, board.Rows) {
		if err := e.recordLine(ctx, board, tiles, model.LineColumn, pos.Column,
			func(t model.Tile) bool { return t.Position.Column == pos.Column }); err != nil {
			return err
		}
	}
	return nil
}

// lineDone reports whether every one of the expected tiles on the line
// exists and is completed.
func lineDone(tiles []model.Tile, prog map[string]model.TileProgress, onLine func(model.Tile) bool, expected int) bool {
	count := 0
	for _, t := range tiles {
		if !onLine(t) {
			continue
		}
		p, ok := prog[t.ID]
		if !ok || !p.Completed() {
			return false
		}
		count++
	}
	return count == expected && expected > 0
}

// recordLine records the completion idempotently and, when fresh,
// grants the board's configured effects.
func (e *Engine) recordLine(ctx context.Context, board model.Board, tiles []model.Tile, lt model.LineType, identifier string, onLine func(model.Tile) bool) error {
	fresh, err := e.store.RecordLineCompletion(ctx, board.ID, lt, identifier)
	if err != nil {
		return fmt.Errorf("record line completion: %w", err)
	}
	if !fresh {
		return nil
	}
	metrics.RecordLineCompleted()

	var linePoints int64
	for _, t := range tiles {
		if onLine(t) {
			linePoints += t.Points
		}
	}
	e.logger.Info(ctx, "line completed",
		logger.String("board_id", board.ID),
		logger.String("line", string(lt)+" "+identifier),
		logger.Int64("line_points", linePoints),
	)

	cfgs, err := e.store.LineEffects(ctx, board.ID)
	if err != nil {
		return fmt.Errorf("load line effects: %w", err)
	}
	for _, cfg := range cfgs {
		if _, err := e.grantLocked(ctx, board.TeamID, cfg); err != nil {
			return fmt.Errorf("grant %s: %w", cfg.Name, err)
		}
	}
	return nil
}
