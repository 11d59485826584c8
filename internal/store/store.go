// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"dividend-screener/internal/models"
)

// DataStore defines the interface for data persistence.
type DataStore interface {
	// Snapshot cache
	SaveSnapshot(ctx context.Context, snap *models.Snapshot) error
	GetSnapshot(ctx context.Context, symbol string, maxAge time.Duration) (*models.Snapshot, error)
	ListSnapshots(ctx context.Context) ([]SnapshotInfo, error)
	PurgeSnapshots(ctx context.Context, olderThan time.Duration) (int64, error)

	// Run archive
	SaveRun(ctx context.Context, run *RunRecord, rows []models.Row) error
	GetRuns(ctx context.Context, filter RunFilter) ([]RunRecord, error)
	GetRun(ctx context.Context, id string) (*RunRecord, error)
	GetRunRows(ctx context.Context, runID string) ([]RunRow, error)

	// Lifecycle
	Close() error
}

// SnapshotInfo describes one cached snapshot.
type SnapshotInfo struct {
	Symbol    string
	FetchedAt time.Time
}

// RunRecord summarizes one screener run.
type RunRecord struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Provider   string
	Universe   int
	Processed  int
	Failed     int
}

// RunRow is the archived headline of one output row.
type RunRow struct {
	RunID     string
	Symbol    string
	Price     *float64
	Yield     *float64
	Growth    *float64
	FairValue *float64
	Upside    *float64
	Score     float64
	Signal    string
	Action    string
	Weight    float64
	Error     string
}

// RunFilter represents filters for querying runs.
type RunFilter struct {
	Since time.Time
	Limit int
}

// NewRunRow flattens an output row for archiving.
func NewRunRow(runID string, r *models.Row) RunRow {
	out := RunRow{
		RunID:     runID,
		Symbol:    r.Symbol(),
		Price:     r.Snapshot.Price,
		Yield:     r.Valuation.YieldRatio,
		Growth:    r.Valuation.DividendGrowth,
		FairValue: r.Valuation.FairValue,
		Upside:    r.Valuation.UpsidePct,
		Score:     r.Valuation.Score,
		Signal:    string(r.Valuation.Signal),
		Action:    string(r.Position.Action),
		Weight:    r.Position.Weight,
	}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return out
}
