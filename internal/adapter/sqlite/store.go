// Package sqlite persists typed observations in an SQLite database, one row
// per (time, station, field).
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/met-odp-etl/internal/domain"
	"github.com/jonboulle/clockwork"
	_ "modernc.org/sqlite"
)

// Store writes observations to SQLite. It implements pipeline.BatchLoader.
type Store struct {
	db    *sql.DB
	runID string
	clock clockwork.Clock
}

// Row is one stored field value. Exactly one of Value and Text is set.
type Row struct {
	Field domain.Field
	Value *float64
	Text  *string
	RunID string
}

// New opens (or creates) the database at path and applies the schema.
func New(path, runID string, clock clockwork.Clock) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite: path is required")
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, runID: runID, clock: clock}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// LoadBatch stores every present field of every observation in one
// transaction. Reloading a record replaces all of its earlier fields.
func (s *Store) LoadBatch(ctx context.Context, batch []domain.Observation) (err error) {
	if len(batch) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	del, err := tx.PrepareContext(ctx, `DELETE FROM observations WHERE time = ? AND station_number = ?`)
	if err != nil {
		return fmt.Errorf("sqlite: prepare delete: %w", err)
	}
	defer del.Close()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO observations (time, station_number, field, value, text, run_id, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(time, station_number, field)
		DO UPDATE SET
			value = excluded.value,
			text = excluded.text,
			run_id = excluded.run_id,
			ingested_at = excluded.ingested_at
	`)
	if err != nil {
		return fmt.Errorf("sqlite: prepare: %w", err)
	}
	defer stmt.Close()

	ingestedAt := s.clock.Now().UTC().Format(time.RFC3339)
	for i := range batch {
		rec := batch[i].Met
		if _, err = del.ExecContext(ctx, rec.Time, rec.StationNumber); err != nil {
			return fmt.Errorf("sqlite: clear %d/%d: %w", rec.StationNumber, rec.Time, err)
		}
		for _, f := range domain.AllFields() {
			var value, text any
			if v, ok := rec.Number(f); ok {
				value = v
			} else if t, ok := rec.Text(f); ok {
				text = t
			} else {
				continue
			}
			if _, err = stmt.ExecContext(ctx, rec.Time, rec.StationNumber, f.Title(), value, text, s.runID, ingestedAt); err != nil {
				return fmt.Errorf("sqlite: insert %d/%d %s: %w", rec.StationNumber, rec.Time, f, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

// Rows returns the stored fields of one observation in catalog order.
func (s *Store) Rows(ctx context.Context, stationNumber int, t int64) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT field, value, text, run_id FROM observations
		WHERE station_number = ? AND time = ?
	`, stationNumber, t)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query: %w", err)
	}
	defer rows.Close()

	byField := make(map[domain.Field]Row)
	for rows.Next() {
		var (
			title string
			value sql.NullFloat64
			text  sql.NullString
			row   Row
		)
		if err := rows.Scan(&title, &value, &text, &row.RunID); err != nil {
			return nil, fmt.Errorf("sqlite: scan: %w", err)
		}
		row.Field, err = domain.FieldFromTitle(title)
		if err != nil {
			return nil, fmt.Errorf("sqlite: stored field: %w", err)
		}
		if value.Valid {
			row.Value = &value.Float64
		}
		if text.Valid {
			row.Text = &text.String
		}
		byField[row.Field] = row
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: rows: %w", err)
	}

	out := make([]Row, 0, len(byField))
	for _, f := range domain.AllFields() {
		if row, ok := byField[f]; ok {
			out = append(out, row)
		}
	}
	return out, nil
}

// Count returns the number of distinct observations stored.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM (SELECT DISTINCT time, station_number FROM observations)`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: count: %w", err)
	}
	return n, nil
}

func (s *Store) migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS observations (
			time INTEGER NOT NULL,
			station_number INTEGER NOT NULL,
			field TEXT NOT NULL,
			value REAL,
			text TEXT,
			run_id TEXT NOT NULL,
			ingested_at TEXT NOT NULL,
			PRIMARY KEY (time, station_number, field)
		);`,
		`CREATE INDEX IF NOT EXISTS observations_station ON observations (station_number, time);`,
	}

	for _, statement := range statements {
		if _, err := s.db.Exec(statement); err != nil {
			return fmt.Errorf("sqlite: migrate: %w", err)
		}
	}
	return nil
}
