package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/quiet-hours/internal/apperror"
	"github.com/sakif/quiet-hours/internal/model"
	"github.com/sakif/quiet-hours/internal/repository"
)

var (
	_ repository.BlockRepository = (*DB)(nil)
	_ repository.ReminderStore   = (*DB)(nil)
)

const blockColumns = `id, user_id, title, description, start_time, end_time,
	remind_before_minutes, reminder_sent_at, created_at, updated_at`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanBlock(s rowScanner) (*model.Block, error) {
	var (
		b                                model.Block
		start, end, createdAt, updatedAt int64
		sentAt                           sql.NullInt64
	)
	if err := s.Scan(
		&b.ID, &b.UserID, &b.Title, &b.Description,
		&start, &end, &b.RemindBeforeMinutes, &sentAt,
		&createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	b.StartTime = fromMillis(start)
	b.EndTime = fromMillis(end)
	b.ReminderSentAt = fromNullMillis(sentAt)
	b.CreatedAt = fromMillis(createdAt)
	b.UpdatedAt = fromMillis(updatedAt)
	return &b, nil
}

func scanBlocks(rows *sql.Rows) ([]model.Block, error) {
	var blocks []model.Block
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning block row: %w", err)
		}
		blocks = append(blocks, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating blocks: %w", err)
	}
	return blocks, nil
}

// Create inserts a new block, filling in its ID and timestamps.
// ReminderSentAt is always stored as NULL: a new block starts PENDING.
func (db *DB) Create(ctx context.Context, block *model.Block) error {
	block.ID = xid.New().String()

	now := time.Now().UTC()
	block.CreatedAt = now
	block.UpdatedAt = now
	block.ReminderSentAt = nil
	if block.RemindBeforeMinutes == 0 {
		block.RemindBeforeMinutes = model.DefaultRemindBeforeMinutes
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO study_blocks (id, user_id, title, description, start_time, end_time,
			remind_before_minutes, reminder_sent_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, NULL, ?, ?)`,
		block.ID,
		block.UserID,
		block.Title,
		block.Description,
		toMillis(block.StartTime),
		toMillis(block.EndTime),
		block.RemindBeforeMinutes,
		toMillis(block.CreatedAt),
		toMillis(block.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating block: %w", err)
	}

	return nil
}

// GetByID retrieves a single block by its ID.
func (db *DB) GetByID(ctx context.Context, id string) (*model.Block, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+blockColumns+` FROM study_blocks WHERE id = ?`, id)

	b, err := scanBlock(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("block", id)
		}
		return nil, fmt.Errorf("sqlite: getting block %s: %w", id, err)
	}

	return b, nil
}

// filterClause returns the SQL predicate for a dashboard filter. The bounds
// match model.BlockFilter.Matches: active is inclusive on both ends.
func filterClause(f model.BlockFilter) string {
	switch f {
	case model.FilterActive:
		return ` AND start_time <= ? AND end_time >= ?`
	case model.FilterUpcoming:
		return ` AND start_time > ?`
	case model.FilterCompleted:
		return ` AND end_time < ?`
	default:
		return ``
	}
}

func filterArgs(f model.BlockFilter, now int64) []any {
	switch f {
	case model.FilterActive:
		return []any{now, now}
	case model.FilterUpcoming, model.FilterCompleted:
		return []any{now}
	default:
		return nil
	}
}

// List returns one owner's blocks ordered by start time ascending.
func (db *DB) List(ctx context.Context, opts repository.ListOptions) ([]model.Block, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = -1
	}

	args := []any{opts.UserID}
	args = append(args, filterArgs(opts.Filter, toMillis(opts.Now))...)
	args = append(args, limit, opts.Offset)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+blockColumns+`
		 FROM study_blocks
		 WHERE user_id = ?`+filterClause(opts.Filter)+`
		 ORDER BY start_time ASC, id ASC
		 LIMIT ? OFFSET ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing blocks: %w", err)
	}
	defer rows.Close()

	blocks, err := scanBlocks(rows)
	if err != nil {
		return nil, err
	}
	if blocks == nil {
		blocks = []model.Block{}
	}
	return blocks, nil
}

// Stats counts one owner's blocks per status in a single pass.
func (db *DB) Stats(ctx context.Context, userID string, now time.Time) (*model.BlockStats, error) {
	n := toMillis(now)
	var s model.BlockStats
	err := db.conn.QueryRowContext(ctx,
		`SELECT
			COALESCE(SUM(CASE WHEN start_time <= ? AND end_time >= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN start_time > ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN end_time < ? THEN 1 ELSE 0 END), 0),
			COUNT(*)
		 FROM study_blocks WHERE user_id = ?`,
		n, n, n, n, userID,
	).Scan(&s.Active, &s.Upcoming, &s.Completed, &s.Total)
	if err != nil {
		return nil, fmt.Errorf("sqlite: counting blocks for %s: %w", userID, err)
	}
	return &s, nil
}

// Update writes the user-editable fields. reminder_sent_at is not among them.
func (db *DB) Update(ctx context.Context, block *model.Block) error {
	block.UpdatedAt = time.Now().UTC()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE study_blocks
		 SET title = ?, description = ?, start_time = ?, end_time = ?,
		     remind_before_minutes = ?, updated_at = ?
		 WHERE id = ?`,
		block.Title,
		block.Description,
		toMillis(block.StartTime),
		toMillis(block.EndTime),
		block.RemindBeforeMinutes,
		toMillis(block.UpdatedAt),
		block.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating block %s: %w", block.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("block", block.ID)
	}

	return nil
}

// Delete removes a block by its ID.
func (db *DB) Delete(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM study_blocks WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting block %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("block", id)
	}

	return nil
}

// QueryBlocksDueForReminder returns pending blocks starting in [from, to].
func (db *DB) QueryBlocksDueForReminder(ctx context.Context, from, to time.Time) ([]model.Block, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+blockColumns+`
		 FROM study_blocks
		 WHERE reminder_sent_at IS NULL
		   AND start_time >= ? AND start_time <= ?
		 ORDER BY start_time ASC, id ASC`,
		toMillis(from), toMillis(to),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: querying blocks due for reminder: %w", err)
	}
	defer rows.Close()

	return scanBlocks(rows)
}

// MarkReminderSent sets reminder_sent_at only while it is still NULL.
//
// When nothing was updated, a second lookup tells the two causes apart:
// the block is gone (NotFound) or it was already sent (Conflict).
func (db *DB) MarkReminderSent(ctx context.Context, blockID string, at time.Time) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE study_blocks SET reminder_sent_at = ?
		 WHERE id = ? AND reminder_sent_at IS NULL`,
		toMillis(at), blockID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: marking reminder sent for %s: %w", blockID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected > 0 {
		return nil
	}

	var exists int
	err = db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM study_blocks WHERE id = ?`, blockID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("sqlite: checking block %s: %w", blockID, err)
	}
	if exists == 0 {
		return apperror.NotFound("block", blockID)
	}
	return apperror.Conflict("block reminder", blockID)
}
