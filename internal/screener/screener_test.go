package screener

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dividend-screener/internal/analysis/scoring"
	"dividend-screener/internal/analysis/valuation"
	apperrors "dividend-screener/internal/errors"
	"dividend-screener/internal/models"
	"dividend-screener/internal/normalize"
	"dividend-screener/internal/portfolio"
	"dividend-screener/internal/provider"
	"dividend-screener/internal/store"
)

func yearly(first, years int, start, growth float64) []models.DividendPayment {
	var out []models.DividendPayment
	amount := start
	for y := first; y < first+years; y++ {
		out = append(out, models.DividendPayment{Date: time.Date(y, 6, 15, 0, 0, 0, 0, time.UTC), Amount: amount})
		amount *= 1 + growth
	}
	return out
}

func newRunner(fetcher provider.Fetcher, opts ...Option) *Runner {
	engine := valuation.NewEngine(valuation.DefaultParams(), normalize.Default())
	return New(fetcher, engine, scoring.NewScorer(), opts...)
}

func fixtures() *provider.Static {
	s := provider.NewStatic(
		models.Snapshot{
			Identifier:      "KO",
			Sector:          "Consumer Defensive",
			Price:           models.Float(100),
			AnnualDividend:  models.Float(4),
			PayoutRatio:     models.Float(0.6),
			PriceEarnings:   models.Float(12),
			DividendHistory: yearly(2015, 8, 3, 0.08),
		},
		models.Snapshot{
			Identifier:    "NODIV",
			Price:         models.Float(50),
			PriceEarnings: models.Float(40),
		},
	)
	s.Fail("BAD", apperrors.ErrSymbolNotFound)
	return s
}

func TestRun_EndToEnd(t *testing.T) {
	r := newRunner(fixtures())

	res, err := r.Run(context.Background(), []string{"KO", "BAD", "NODIV"})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Universe)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 1, res.Failed)
	assert.NotEmpty(t, res.RunID)
	require.Len(t, res.Rows, 3, "failed rows are kept blank by default")

	ko := res.Rows[0]
	assert.Equal(t, "KO", ko.Symbol())
	assert.InDelta(t, 0.04, *ko.Valuation.YieldRatio, 1e-12)
	assert.InDelta(t, 133.3333, *ko.Valuation.FairValue, 1e-3)
	assert.InDelta(t, 0.3333, *ko.Valuation.UpsidePct, 1e-3)
	assert.InDelta(t, 0.08, *ko.Valuation.DividendGrowth, 1e-9)
	assert.Equal(t, models.ClassKing, ko.Valuation.DividendClass)
	assert.GreaterOrEqual(t, ko.Valuation.Score, 0.0)
	assert.LessOrEqual(t, ko.Valuation.Score, 100.0)

	bad := res.Rows[1]
	assert.True(t, bad.Failed())
	assert.Equal(t, "BAD", bad.Symbol())
	assert.Nil(t, bad.Valuation.FairValue)

	nodiv := res.Rows[2]
	assert.Nil(t, nodiv.Valuation.YieldRatio)
	assert.Nil(t, nodiv.Valuation.FairValue)
	assert.Equal(t, models.SignalWatch, nodiv.Valuation.Signal)

	assert.Equal(t, models.ActionNone, ko.Position.Action, "no overlay, no action")
}

func TestRun_SkipPolicy(t *testing.T) {
	r := newRunner(fixtures(), WithOnError(OnErrorSkip))

	res, err := r.Run(context.Background(), []string{"BAD", "KO"})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "KO", res.Rows[0].Symbol())
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "BAD", res.Failures[0].Symbol)
}

func TestRun_NoInstruments(t *testing.T) {
	r := newRunner(fixtures())

	res, err := r.Run(context.Background(), []string{"BAD", "ALSO-BAD"})
	assert.ErrorIs(t, err, apperrors.ErrNoInstruments)
	require.NotNil(t, res)
	assert.Equal(t, 2, res.Failed)

	_, err = r.Run(context.Background(), nil)
	assert.ErrorIs(t, err, apperrors.ErrEmptyUniverse)
}

func TestRun_PortfolioOverlay(t *testing.T) {
	s := fixtures()
	s.Add(models.Snapshot{Identifier: "PEP", Price: models.Float(100), AnnualDividend: models.Float(3), PriceEarnings: models.Float(25)})

	r := newRunner(s, WithPortfolio(portfolio.Positions{"PEP": 10}, portfolio.DefaultRules()))
	res, err := r.Run(context.Background(), []string{"KO", "PEP"})
	require.NoError(t, err)

	ko, pep := res.Rows[0], res.Rows[1]
	assert.Equal(t, models.ActionBuy, ko.Position.Action)
	assert.InDelta(t, 1.0, pep.Position.Weight, 1e-12)
	assert.Equal(t, models.ActionTrim, pep.Position.Action)
	assert.True(t, res.Overlay)
}

type recordingArchive struct {
	mu   sync.Mutex
	runs []*store.RunRecord
	rows int
}

func (a *recordingArchive) SaveRun(_ context.Context, run *store.RunRecord, rows []models.Row) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runs = append(a.runs, run)
	a.rows += len(rows)
	return nil
}

func TestRun_ConcurrentKeepsOrderAndArchives(t *testing.T) {
	s := provider.NewStatic()
	var universe []string
	for i := 0; i < 40; i++ {
		sym := fmt.Sprintf("T%02d", i)
		universe = append(universe, sym)
		s.Add(models.Snapshot{Identifier: sym, Price: models.Float(float64(10 + i)), AnnualDividend: models.Float(0.5)})
	}

	archive := &recordingArchive{}
	var calls []int
	r := newRunner(s,
		WithConcurrency(8),
		WithArchive(archive),
		WithProgress(func(done, total int) {
			assert.Equal(t, 40, total)
			calls = append(calls, done)
		}),
	)

	res, err := r.Run(context.Background(), universe)
	require.NoError(t, err)
	for i, row := range res.Rows {
		assert.Equal(t, universe[i], row.Symbol())
	}

	require.Len(t, archive.runs, 1)
	assert.Equal(t, res.RunID, archive.runs[0].ID)
	assert.Equal(t, "static", archive.runs[0].Provider)
	assert.Equal(t, 40, archive.rows)

	require.Len(t, calls, 40)
	assert.Equal(t, 40, calls[len(calls)-1])
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newRunner(fixtures()).Run(ctx, []string{"KO"})
	assert.ErrorIs(t, err, context.Canceled)
}
