package cli

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"dividend-screener/internal/analysis/valuation"
	"dividend-screener/internal/config"
	apperrors "dividend-screener/internal/errors"
	"dividend-screener/internal/notify"
	"dividend-screener/internal/output"
	"dividend-screener/internal/portfolio"
	"dividend-screener/internal/provider"
	"dividend-screener/internal/screener"
	"dividend-screener/internal/tickers"
)

// runReport is the outcome of one screening pass including its artifacts.
type runReport struct {
	Result    *screener.Result
	Artifacts []string
}

// newFetcher builds the configured provider behind the circuit breaker,
// wrapped in the snapshot cache when a store is available. The cache sits
// outside the breaker so stale snapshots still serve while it is open.
func newFetcher(cfg *config.Config, cache provider.SnapshotCache, logger zerolog.Logger) (provider.Fetcher, error) {
	if err := provider.ValidateKind(cfg.Provider.Kind); err != nil {
		return nil, err
	}

	var fetcher provider.Fetcher
	switch cfg.Provider.Kind {
	case provider.KindStatic:
		static, err := provider.LoadFixtures(cfg.Provider.Fixtures)
		if err != nil {
			return nil, err
		}
		fetcher = static
	default:
		opts := []provider.YahooOption{
			provider.WithHTTPClient(&http.Client{Timeout: cfg.Provider.Timeout}),
			provider.WithRequestInterval(cfg.Provider.RequestInterval),
			provider.WithMaxRetries(cfg.Provider.MaxRetries),
			provider.WithHistoryRange(cfg.Provider.HistoryRange),
			provider.WithLogger(logger),
		}
		if cfg.Provider.BaseURL != "" {
			opts = append(opts, provider.WithBaseURL(cfg.Provider.BaseURL))
		}
		fetcher = provider.NewYahoo(opts...)
	}

	if bc := cfg.Breaker(); bc.FailureThreshold > 0 {
		fetcher = provider.NewBreaker(fetcher, bc, logger)
	}
	if cache != nil && cfg.Fetch.CacheTTL > 0 {
		fetcher = provider.NewCached(fetcher, cache, cfg.Fetch.CacheTTL, logger)
	}
	return fetcher, nil
}

// loadPortfolio reads the holdings export. A missing export or alias file
// degrades to zero ownership; an unrecognised export shape is fatal.
func loadPortfolio(cfg *config.Config, logger zerolog.Logger) (portfolio.Positions, bool, error) {
	if cfg.Portfolio.Holdings == "" {
		return nil, false, nil
	}

	aliases, err := portfolio.LoadAliases(cfg.Portfolio.Aliases)
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.Portfolio.Aliases).Msg("Ignoring alias file")
		aliases = portfolio.Aliases{}
	}

	positions, format, err := portfolio.LoadPositions(cfg.Portfolio.Holdings, aliases)
	switch {
	case err == nil:
		logger.Info().
			Str("path", cfg.Portfolio.Holdings).
			Str("format", string(format)).
			Int("positions", len(positions)).
			Msg("Holdings loaded")
	case apperrors.Is(err, apperrors.ErrDataNotFound):
		logger.Warn().Err(err).Msg("Holdings export missing, assuming no positions")
		positions = portfolio.Positions{}
	default:
		return nil, false, err
	}
	return positions, true, nil
}

// executeRun performs one full screening pass: universe, fetch, value,
// overlay, artifacts. The result is returned together with
// ErrNoInstruments when nothing could be processed.
func executeRun(ctx context.Context, app *App, cfg *config.Config, progress func(done, total int)) (*runReport, error) {
	logger := app.Logger

	universe, err := tickers.Load(cfg.Tickers.File, cfg.Tickers.Column)
	if err != nil {
		return nil, err
	}
	if len(universe) == 0 {
		return nil, apperrors.Wrapf(apperrors.ErrEmptyUniverse, "%s", cfg.Tickers.File)
	}

	scorer, err := cfg.Scorer()
	if err != nil {
		return nil, err
	}

	positions, overlay, err := loadPortfolio(cfg, logger)
	if err != nil {
		return nil, err
	}

	var cache provider.SnapshotCache
	opts := []screener.Option{
		screener.WithConcurrency(cfg.Fetch.Concurrency),
		screener.WithOnError(cfg.Fetch.OnError),
		screener.WithLogger(logger),
	}
	st, err := app.OpenStore()
	if err != nil {
		logger.Warn().Err(err).Msg("Store unavailable, running without cache and history")
	} else if st != nil {
		cache = st
		opts = append(opts, screener.WithArchive(st))
	}
	if overlay {
		opts = append(opts, screener.WithPortfolio(positions, cfg.Portfolio.Rules))
	}
	if progress != nil {
		opts = append(opts, screener.WithProgress(progress))
	}

	fetcher, err := newFetcher(cfg, cache, logger)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	engine := valuation.NewEngine(cfg.ValuationParams(now), cfg.Normalizer())
	runner := screener.New(fetcher, engine, scorer, opts...)

	res, runErr := runner.Run(ctx, universe)
	if res == nil {
		return nil, runErr
	}

	report := &runReport{Result: res}
	paths, err := output.WriteFiles(res.Rows, output.Options{
		Dir:      cfg.Output.Dir,
		CSVName:  cfg.Output.CSVName,
		HTMLName: cfg.Output.HTMLName,
		CSV:      cfg.Output.CSV,
		HTML:     cfg.Output.HTML,
		Unit:     cfg.Unit(),
		Meta: output.Meta{
			Title:       cfg.Output.Title,
			RunID:       res.RunID,
			GeneratedAt: res.FinishedAt,
			Unit:        cfg.Unit(),
		},
	})
	report.Artifacts = paths
	if err != nil {
		return report, apperrors.Wrap(err, "writing reports")
	}

	return report, runErr
}

// notifyRun sends the run outcome to the configured channels. Delivery
// failures are logged, never returned.
func notifyRun(ctx context.Context, cfg *config.Config, report *runReport, runErr error, logger zerolog.Logger) {
	notifier := cfg.Notifier()
	if !notifier.Enabled() {
		return
	}

	var err error
	switch {
	case report == nil:
		err = notifier.SendError(ctx, runErr, "screener run")
	case runErr != nil:
		err = notifier.SendError(ctx, runErr, "screener run "+report.Result.RunID)
	default:
		res := report.Result
		summary := notify.NewRunSummary(res.RunID, res.Universe, res.Processed, res.Failed,
			res.Duration(), res.Rows, cfg.Schedule.MaxPicks)
		summary.Artifacts = report.Artifacts
		err = notifier.SendRun(ctx, summary)
	}

	if err != nil {
		logger.Warn().Err(err).Strs("channels", notifier.Channels()).Msg("Notification failed")
		return
	}
	logger.Debug().Strs("channels", notifier.Channels()).Msg("Notification sent")
}
