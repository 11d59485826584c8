package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperrors "dividend-screener/internal/errors"
	"dividend-screener/internal/models"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Snapshot cache, one row per symbol
	CREATE TABLE IF NOT EXISTS snapshots (
		symbol TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		fetched_at DATETIME NOT NULL
	);

	-- Screener runs
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		provider TEXT,
		universe INTEGER NOT NULL,
		processed INTEGER NOT NULL,
		failed INTEGER NOT NULL
	);

	-- Headline figures per run and symbol
	CREATE TABLE IF NOT EXISTS run_rows (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		price REAL,
		yield REAL,
		growth REAL,
		fair_value REAL,
		upside REAL,
		score REAL NOT NULL,
		signal TEXT,
		action TEXT,
		weight REAL NOT NULL DEFAULT 0,
		error TEXT,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_run_rows_run ON run_rows(run_id);
	CREATE INDEX IF NOT EXISTS idx_run_rows_symbol ON run_rows(symbol);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// Snapshot Cache Methods
// ============================================================================

// SaveSnapshot stores or replaces the cached snapshot of a symbol.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap *models.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	fetchedAt := snap.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO snapshots (symbol, payload, fetched_at)
		VALUES (?, ?, ?)
	`, strings.ToUpper(snap.Identifier), string(payload), fetchedAt.UTC())
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabaseError, fmt.Sprintf("failed to save snapshot: %v", err))
	}
	return nil
}

// GetSnapshot returns the cached snapshot of a symbol if it is younger than
// maxAge. A missing or stale entry returns ErrDataNotFound.
func (s *SQLiteStore) GetSnapshot(ctx context.Context, symbol string, maxAge time.Duration) (*models.Snapshot, error) {
	var payload string
	var fetchedAt time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT payload, fetched_at FROM snapshots WHERE symbol = ?
	`, strings.ToUpper(symbol)).Scan(&payload, &fetchedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrDataNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabaseError, fmt.Sprintf("failed to get snapshot: %v", err))
	}

	if maxAge > 0 && time.Since(fetchedAt) > maxAge {
		return nil, apperrors.ErrDataNotFound
	}

	var snap models.Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snap, nil
}

// ListSnapshots returns all cached symbols, most recent first.
func (s *SQLiteStore) ListSnapshots(ctx context.Context) ([]SnapshotInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, fetched_at FROM snapshots ORDER BY fetched_at DESC, symbol ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var out []SnapshotInfo
	for rows.Next() {
		var info SnapshotInfo
		if err := rows.Scan(&info.Symbol, &info.FetchedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}
	return out, nil
}

// PurgeSnapshots deletes cached snapshots older than the given age. Zero
// deletes everything.
func (s *SQLiteStore) PurgeSnapshots(ctx context.Context, olderThan time.Duration) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if olderThan <= 0 {
		res, err = s.db.ExecContext(ctx, `DELETE FROM snapshots`)
	} else {
		res, err = s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE fetched_at < ?`, time.Now().Add(-olderThan).UTC())
	}
	if err != nil {
		return 0, fmt.Errorf("failed to purge snapshots: %w", err)
	}
	return res.RowsAffected()
}

// ============================================================================
// Run Archive Methods
// ============================================================================

// SaveRun stores a run summary with its rows in one transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *RunRecord, rows []models.Row) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, finished_at, provider, universe, processed, failed)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.StartedAt.UTC(), run.FinishedAt.UTC(), run.Provider, run.Universe, run.Processed, run.Failed)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_rows (run_id, symbol, price, yield, growth, fair_value, upside, score, signal, action, weight, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i := range rows {
		r := NewRunRow(run.ID, &rows[i])
		_, err := stmt.ExecContext(ctx, r.RunID, r.Symbol,
			nullFloat(r.Price), nullFloat(r.Yield), nullFloat(r.Growth), nullFloat(r.FairValue), nullFloat(r.Upside),
			r.Score, r.Signal, r.Action, r.Weight, r.Error)
		if err != nil {
			return fmt.Errorf("failed to insert run row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetRuns retrieves runs, most recent first.
func (s *SQLiteStore) GetRuns(ctx context.Context, filter RunFilter) ([]RunRecord, error) {
	query := "SELECT id, started_at, finished_at, provider, universe, processed, failed FROM runs WHERE 1=1"
	args := []interface{}{}

	if !filter.Since.IsZero() {
		query += " AND started_at >= ?"
		args = append(args, filter.Since.UTC())
	}

	query += " ORDER BY started_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		var provider sql.NullString
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &provider, &r.Universe, &r.Processed, &r.Failed); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.Provider = provider.String
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// GetRun retrieves one run by ID or unique ID prefix.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, provider, universe, processed, failed
		FROM runs WHERE id LIKE ? ORDER BY started_at DESC LIMIT 2
	`, id+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	defer rows.Close()

	var found []RunRecord
	for rows.Next() {
		var r RunRecord
		var provider sql.NullString
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &provider, &r.Universe, &r.Processed, &r.Failed); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.Provider = provider.String
		found = append(found, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	switch len(found) {
	case 0:
		return nil, apperrors.Wrapf(apperrors.ErrDataNotFound, "run %s", id)
	case 1:
		return &found[0], nil
	default:
		return nil, fmt.Errorf("run id prefix %q is ambiguous", id)
	}
}

// GetRunRows retrieves the archived rows of a run in insertion order.
func (s *SQLiteStore) GetRunRows(ctx context.Context, runID string) ([]RunRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, symbol, price, yield, growth, fair_value, upside, score, signal, action, weight, error
		FROM run_rows WHERE run_id = ? ORDER BY id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run rows: %w", err)
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		var r RunRow
		var price, yield, growth, fairValue, upside sql.NullFloat64
		var signal, action, errText sql.NullString
		if err := rows.Scan(&r.RunID, &r.Symbol, &price, &yield, &growth, &fairValue, &upside,
			&r.Score, &signal, &action, &r.Weight, &errText); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		r.Price = fromNull(price)
		r.Yield = fromNull(yield)
		r.Growth = fromNull(growth)
		r.FairValue = fromNull(fairValue)
		r.Upside = fromNull(upside)
		r.Signal = signal.String
		r.Action = action.String
		r.Error = errText.String
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run rows: %w", err)
	}
	return out, nil
}

func nullFloat(p *float64) sql.NullFloat64 {
	v, ok := models.Value(p)
	return sql.NullFloat64{Float64: v, Valid: ok}
}

func fromNull(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	return models.Float(n.Float64)
}
