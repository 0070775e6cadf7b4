// Package storage keeps expense rows in SQLite. It serves both as a local
// backend and as the mirror the worker refreshes from the spreadsheet. Row
// positions are ordinal (insertion order), numbered from 2 like sheet rows.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"kakeibo/internal/core"
	ports "kakeibo/internal/sheets"

	_ "modernc.org/sqlite"
)

const firstRow = 2

type SQLiteRepository struct {
	db *sql.DB
}

var _ ports.Store = (*SQLiteRepository)(nil)

// SyncState describes the last full mirror of the spreadsheet.
type SyncState struct {
	SyncedAt time.Time
	RowCount int
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Debug("SQLite schema ready", "path", dbPath, "version", version)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// Positions are computed from row order; one writer keeps them consistent.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const selectRecords = `SELECT created_at, date_text, category, payment_method, spender, amount, description
FROM records ORDER BY id`

func (r *SQLiteRepository) ReadAll(ctx context.Context) ([]core.ExpenseRecord, error) {
	rows, err := r.db.QueryContext(ctx, selectRecords)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []core.ExpenseRecord
	for rows.Next() {
		cols := make([]string, 7)
		if err := rows.Scan(&cols[0], &cols[1], &cols[2], &cols[3], &cols[4], &cols[5], &cols[6]); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, core.NewRecord(cols, core.RowPosition(len(out)+firstRow)))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

const insertRecord = `INSERT INTO records
(created_at, date_text, category, payment_method, spender, amount, description)
VALUES (?, ?, ?, ?, ?, ?, ?)`

func (r *SQLiteRepository) Append(ctx context.Context, rec core.ExpenseRecord) error {
	if _, err := r.db.ExecContext(ctx, insertRecord, tupleArgs(rec)...); err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	slog.DebugContext(ctx, "Record saved to SQLite", "date", rec.DateText, "category", rec.Category, "amount", rec.Amount)
	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, pos core.RowPosition, rec core.ExpenseRecord) error {
	id, err := r.idAt(ctx, r.db, pos)
	if err != nil {
		return err
	}
	args := append(tupleArgs(rec), id)
	_, err = r.db.ExecContext(ctx, `UPDATE records SET
created_at = ?, date_text = ?, category = ?, payment_method = ?, spender = ?, amount = ?, description = ?
WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update record %s: %w", pos, err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, pos core.RowPosition) error {
	id, err := r.idAt(ctx, r.db, pos)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete record %s: %w", pos, err)
	}
	return nil
}

// ReplaceAll swaps the whole table for recs in one transaction and records
// the sync time.
func (r *SQLiteRepository) ReplaceAll(ctx context.Context, recs []core.ExpenseRecord, at time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin mirror: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM records`); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, insertRecord)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()
	for _, rec := range recs {
		if _, err := stmt.ExecContext(ctx, tupleArgs(rec)...); err != nil {
			return fmt.Errorf("insert mirrored record: %w", err)
		}
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO sync_state (id, synced_at, row_count) VALUES (1, ?, ?)
ON CONFLICT(id) DO UPDATE SET synced_at = excluded.synced_at, row_count = excluded.row_count`,
		at.UTC().Format(time.RFC3339), len(recs))
	if err != nil {
		return fmt.Errorf("save sync state: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit mirror: %w", err)
	}
	return nil
}

// LastSync returns the state written by the latest ReplaceAll. ok is false
// when the mirror has never run.
func (r *SQLiteRepository) LastSync(ctx context.Context) (state SyncState, ok bool, err error) {
	var at string
	err = r.db.QueryRowContext(ctx, `SELECT synced_at, row_count FROM sync_state WHERE id = 1`).Scan(&at, &state.RowCount)
	if errors.Is(err, sql.ErrNoRows) {
		return SyncState{}, false, nil
	}
	if err != nil {
		return SyncState{}, false, fmt.Errorf("read sync state: %w", err)
	}
	state.SyncedAt, err = time.Parse(time.RFC3339, at)
	if err != nil {
		return SyncState{}, false, fmt.Errorf("parse sync time: %w", err)
	}
	return state, true, nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *SQLiteRepository) idAt(ctx context.Context, q querier, pos core.RowPosition) (int64, error) {
	if int(pos) < firstRow {
		return 0, fmt.Errorf("%w: %s", core.ErrInvalidRowNumber, pos)
	}
	var id int64
	err := q.QueryRowContext(ctx, `SELECT id FROM records ORDER BY id LIMIT 1 OFFSET ?`, int(pos)-firstRow).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ports.ErrRowNotFound, pos)
	}
	if err != nil {
		return 0, fmt.Errorf("locate %s: %w", pos, err)
	}
	return id, nil
}

func tupleArgs(rec core.ExpenseRecord) []any {
	t := rec.Tuple()
	args := make([]any, len(t))
	for i, v := range t {
		args[i] = v
	}
	return args
}
