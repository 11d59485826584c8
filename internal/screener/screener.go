// Package screener runs the screening pipeline: fetch each ticker, value
// and score it, optionally overlay the portfolio, and collect the rows.
package screener

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"dividend-screener/internal/analysis/scoring"
	"dividend-screener/internal/analysis/valuation"
	apperrors "dividend-screener/internal/errors"
	"dividend-screener/internal/logging"
	"dividend-screener/internal/models"
	"dividend-screener/internal/portfolio"
	"dividend-screener/internal/provider"
	"dividend-screener/internal/store"
)

// Fetch error policies.
const (
	OnErrorBlank = "blank" // keep failed tickers as rows with absent fields
	OnErrorSkip  = "skip"  // drop failed tickers from the output
)

// Archive persists finished runs.
type Archive interface {
	SaveRun(ctx context.Context, run *store.RunRecord, rows []models.Row) error
}

// Failure records a ticker that could not be fetched.
type Failure struct {
	Symbol string
	Err    error
}

// Result is the outcome of one run.
type Result struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Universe   int
	Processed  int
	Failed     int
	Rows       []models.Row
	Failures   []Failure
	Overlay    bool
}

// Duration returns the wall time of the run.
func (r *Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Runner executes screener runs. A Runner may be reused across runs.
type Runner struct {
	fetcher     provider.Fetcher
	engine      *valuation.Engine
	scorer      *scoring.Scorer
	rules       portfolio.Rules
	positions   portfolio.Positions
	overlay     bool
	archive     Archive
	concurrency int
	onError     string
	progress    func(done, total int)
	logger      zerolog.Logger
	now         func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithPortfolio enables the ownership overlay.
func WithPortfolio(positions portfolio.Positions, rules portfolio.Rules) Option {
	return func(r *Runner) {
		r.positions = positions
		r.rules = rules
		r.overlay = true
	}
}

// WithArchive stores every finished run.
func WithArchive(a Archive) Option {
	return func(r *Runner) {
		r.archive = a
	}
}

// WithConcurrency sets the number of parallel fetches. Values below 1
// mean sequential.
func WithConcurrency(n int) Option {
	return func(r *Runner) {
		if n < 1 {
			n = 1
		}
		r.concurrency = n
	}
}

// WithOnError sets the fetch failure policy.
func WithOnError(policy string) Option {
	return func(r *Runner) {
		if policy == OnErrorSkip {
			r.onError = OnErrorSkip
		} else {
			r.onError = OnErrorBlank
		}
	}
}

// WithProgress registers a callback invoked after each ticker completes.
// Calls are serialized.
func WithProgress(fn func(done, total int)) Option {
	return func(r *Runner) {
		r.progress = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

// New creates a runner.
func New(fetcher provider.Fetcher, engine *valuation.Engine, scorer *scoring.Scorer, opts ...Option) *Runner {
	r := &Runner{
		fetcher:     fetcher,
		engine:      engine,
		scorer:      scorer,
		rules:       portfolio.DefaultRules(),
		concurrency: 1,
		onError:     OnErrorBlank,
		logger:      zerolog.Nop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run screens the universe. One ticker failing never aborts the run; the
// run fails with ErrNoInstruments only when no ticker could be processed.
func (r *Runner) Run(ctx context.Context, universe []string) (*Result, error) {
	if len(universe) == 0 {
		return nil, apperrors.ErrEmptyUniverse
	}

	res := &Result{
		RunID:     uuid.NewString(),
		StartedAt: r.now(),
		Universe:  len(universe),
		Overlay:   r.overlay,
	}
	logger := logging.WithRun(r.logger, res.RunID)
	logger.Info().
		Int("universe", len(universe)).
		Str("provider", r.fetcher.Name()).
		Int("concurrency", r.concurrency).
		Msg("Screener run started")

	rows := make([]models.Row, len(universe))

	var (
		mu   sync.Mutex
		done int
	)
	p := pool.New().WithMaxGoroutines(r.concurrency)
	for i, symbol := range universe {
		p.Go(func() {
			rows[i] = r.screen(ctx, logger, symbol)
			if r.progress != nil {
				mu.Lock()
				done++
				r.progress(done, len(universe))
				mu.Unlock()
			}
		})
	}
	p.Wait()

	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(err, "screener run interrupted")
	}

	kept := rows[:0]
	for _, row := range rows {
		if row.Failed() {
			res.Failed++
			res.Failures = append(res.Failures, Failure{Symbol: row.Symbol(), Err: row.Err})
			if r.onError == OnErrorSkip {
				continue
			}
		} else {
			res.Processed++
		}
		kept = append(kept, row)
	}
	res.Rows = kept

	if r.overlay {
		portfolio.Apply(res.Rows, r.positions)
		portfolio.Decide(res.Rows, r.rules)
	}

	res.FinishedAt = r.now()
	logging.LogRun(logger, res.RunID, res.Universe, res.Processed, res.Failed, res.Duration())

	if r.archive != nil {
		record := &store.RunRecord{
			ID:         res.RunID,
			StartedAt:  res.StartedAt,
			FinishedAt: res.FinishedAt,
			Provider:   r.fetcher.Name(),
			Universe:   res.Universe,
			Processed:  res.Processed,
			Failed:     res.Failed,
		}
		if err := r.archive.SaveRun(ctx, record, res.Rows); err != nil {
			logger.Warn().Err(err).Msg("Failed to archive run")
		}
	}

	if res.Processed == 0 {
		return res, apperrors.ErrNoInstruments
	}
	return res, nil
}

// screen fetches and evaluates one ticker. Valuation never fails; only the
// fetch can.
func (r *Runner) screen(ctx context.Context, logger zerolog.Logger, symbol string) models.Row {
	start := time.Now()
	snap, err := r.fetcher.Fetch(ctx, symbol)
	logging.LogFetch(logger, r.fetcher.Name(), symbol, time.Since(start), false, err)
	if err != nil {
		return models.Row{
			Snapshot: models.Snapshot{Identifier: symbol},
			Err:      err,
		}
	}
	if snap.Identifier == "" {
		snap.Identifier = symbol
	}

	return models.Row{
		Snapshot:  *snap,
		Valuation: r.Evaluate(snap),
	}
}

// Evaluate values and scores one snapshot.
func (r *Runner) Evaluate(snap *models.Snapshot) models.Valuation {
	return r.scorer.Evaluate(snap, r.engine.Evaluate(snap))
}
