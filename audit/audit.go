// Package audit is an optional Postgres-backed edit journal: every
// committed structural edit (insert/delete/move/copy/sort/fill) can be
// appended as one row carrying the sheet's state immediately before and
// after the edit, for replay or post-hoc review beyond the in-process undo
// register. Nil-safe throughout: editops and the engine facade that drives
// them work identically whether or not a Journal is wired in.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry is one journaled edit.
type Entry struct {
	SheetID string
	Seq     int64
	Op      string
	Before  string
	After   string
	At      time.Time
}

// Journal appends Entry rows to a Postgres table via a pooled connection.
type Journal struct {
	pool *pgxpool.Pool
}

// Open connects a pool to dsn. Callers typically hold the Journal for the
// lifetime of a process and Close it on shutdown.
func Open(ctx context.Context, dsn string) (*Journal, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("audit: open: %w", err)
	}
	return &Journal{pool: pool}, nil
}

// EnsureSchema creates the journal table if it does not already exist. Safe
// to call on every startup.
func (j *Journal) EnsureSchema(ctx context.Context) error {
	_, err := j.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS edit_journal (
	sheet_id        text        NOT NULL,
	seq             bigint      NOT NULL,
	op              text        NOT NULL,
	before_snapshot text        NOT NULL,
	after_snapshot  text        NOT NULL,
	at              timestamptz NOT NULL,
	PRIMARY KEY (sheet_id, seq)
)`)
	if err != nil {
		return fmt.Errorf("audit: ensure schema: %w", err)
	}
	return nil
}

// Record appends one entry.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	_, err := j.pool.Exec(ctx, `
INSERT INTO edit_journal (sheet_id, seq, op, before_snapshot, after_snapshot, at)
VALUES ($1, $2, $3, $4, $5, $6)`,
		e.SheetID, e.Seq, e.Op, e.Before, e.After, e.At)
	if err != nil {
		return fmt.Errorf("audit: record %s/%d: %w", e.SheetID, e.Seq, err)
	}
	return nil
}

// History returns every recorded entry for sheetID in ascending seq order,
// for replay or review.
func (j *Journal) History(ctx context.Context, sheetID string) ([]Entry, error) {
	rows, err := j.pool.Query(ctx, `
SELECT seq, op, before_snapshot, after_snapshot, at
FROM edit_journal
WHERE sheet_id = $1
ORDER BY seq ASC`, sheetID)
	if err != nil {
		return nil, fmt.Errorf("audit: history %s: %w", sheetID, err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e := Entry{SheetID: sheetID}
		if err := rows.Scan(&e.Seq, &e.Op, &e.Before, &e.After, &e.At); err != nil {
			return nil, fmt.Errorf("audit: scan %s: %w", sheetID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close releases the pool.
func (j *Journal) Close() { j.pool.Close() }
