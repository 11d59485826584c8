package cli

import (
	"context"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"dividend-screener/internal/config"
	apperrors "dividend-screener/internal/errors"
	"dividend-screener/internal/models"
	"dividend-screener/pkg/utils"
)

func newRunCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Screen the ticker list and write the reports",
		Long: `Fetch every ticker in the universe, value and score it, and write the
CSV and HTML reports. A ticker that cannot be fetched is logged and kept
as an empty row (or dropped with --on-error skip); the command only fails
when no ticker could be processed.

With a holdings export configured (or --holdings), each row also gets the
owned shares, value, portfolio weight and a BUY/ADD/HOLD/TRIM/AVOID action.`,
		Example: `  screener run
  screener run --tickers watchlist.csv --column Symbol
  screener run --holdings snowball.csv --aliases aliases.csv --unit percent
  screener run --concurrency 4 --top 25 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			cfg, err := runConfig(cmd, app.Config)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var progress func(done, total int)
			if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet && !output.IsJSON() {
				bar := &Output{writer: cmd.ErrOrStderr()}
				progress = func(done, total int) {
					bar.Progress(done, total, "Screening")
				}
			}

			report, err := executeRun(ctx, app, cfg, progress)
			if send, _ := cmd.Flags().GetBool("notify"); send {
				notifyRun(ctx, cfg, report, err, app.Logger)
			}
			if report == nil {
				return err
			}

			top, _ := cmd.Flags().GetInt("top")
			if output.IsJSON() {
				if jerr := output.JSON(newRunJSON(report)); jerr != nil {
					return jerr
				}
			} else {
				printRunSummary(output, report, top)
			}
			return err
		},
	}

	cmd.Flags().String("tickers", "", "ticker file (.txt or .csv), overrides tickers.file")
	cmd.Flags().String("column", "", "CSV column holding tickers")
	cmd.Flags().String("holdings", "", "holdings or transactions export for the portfolio overlay")
	cmd.Flags().String("aliases", "", "alias CSV mapping export names to tickers")
	cmd.Flags().String("out", "", "output directory")
	cmd.Flags().String("unit", "", "ratio unit in reports: fraction or percent")
	cmd.Flags().Int("concurrency", 0, "parallel fetches")
	cmd.Flags().String("on-error", "", "failed tickers: blank or skip")
	cmd.Flags().String("provider", "", "data provider: yahoo or static")
	cmd.Flags().String("fixtures", "", "JSON snapshots for the static provider")
	cmd.Flags().Bool("no-cache", false, "always fetch fresh snapshots")
	cmd.Flags().Bool("no-csv", false, "skip the CSV report")
	cmd.Flags().Bool("no-html", false, "skip the HTML report")
	cmd.Flags().Int("top", 20, "rows shown in the terminal summary (0 for all)")
	cmd.Flags().BoolP("quiet", "q", false, "hide the progress bar")
	cmd.Flags().Bool("notify", false, "send the run summary to the [notify] channels")

	return cmd
}

// runConfig returns a copy of base with the command-line overrides applied
// and validated.
func runConfig(cmd *cobra.Command, base *config.Config) (*config.Config, error) {
	cfg := *base
	flags := cmd.Flags()

	str := func(name string, target *string) {
		if flags.Changed(name) {
			*target, _ = flags.GetString(name)
		}
	}
	str("tickers", &cfg.Tickers.File)
	str("column", &cfg.Tickers.Column)
	str("holdings", &cfg.Portfolio.Holdings)
	str("aliases", &cfg.Portfolio.Aliases)
	str("out", &cfg.Output.Dir)
	str("unit", &cfg.Output.Unit)
	str("on-error", &cfg.Fetch.OnError)
	str("provider", &cfg.Provider.Kind)
	str("fixtures", &cfg.Provider.Fixtures)

	if flags.Changed("concurrency") {
		cfg.Fetch.Concurrency, _ = flags.GetInt("concurrency")
	}
	if noCache, _ := flags.GetBool("no-cache"); noCache {
		cfg.Fetch.CacheTTL = 0
	}
	if noCSV, _ := flags.GetBool("no-csv"); noCSV {
		cfg.Output.CSV = false
	}
	if noHTML, _ := flags.GetBool("no-html"); noHTML {
		cfg.Output.HTML = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func printRunSummary(output *Output, report *runReport, top int) {
	res := report.Result

	counts := map[models.Signal]int{}
	for i := range res.Rows {
		if !res.Rows[i].Failed() {
			counts[res.Rows[i].Valuation.Signal]++
		}
	}

	lines := []string{
		"Run:        " + ShortID(res.RunID),
		"Universe:   " + utils.FormatCount(int64(res.Universe)),
		"Processed:  " + output.Green(utils.FormatCount(int64(res.Processed))),
		"Failed:     " + failedText(output, res.Failed),
		"Duration:   " + FormatDuration(res.Duration()),
		"Signals:    " + output.Signal(models.SignalGold) + " " + itoa(counts[models.SignalGold]) +
			"  " + output.Signal(models.SignalBuy) + " " + itoa(counts[models.SignalBuy]) +
			"  " + output.Signal(models.SignalHold) + " " + itoa(counts[models.SignalHold]) +
			"  " + output.Signal(models.SignalWatch) + " " + itoa(counts[models.SignalWatch]),
	}
	output.Box("Dividend Screener", lines)
	output.Println()

	ranked := rankRows(res.Rows)
	if top > 0 && len(ranked) > top {
		ranked = ranked[:top]
	}

	headers := []string{"Ticker", "Name", "Price", "Yield", "Growth", "Fair Value", "Upside", "Score", "Signal"}
	if res.Overlay {
		headers = append(headers, "Weight", "Action")
	}
	table := NewTable(output, headers...)
	for _, row := range ranked {
		v := row.Valuation
		cells := []string{
			row.Symbol(),
			utils.TruncateString(row.Snapshot.Name, 24),
			FormatPrice(row.Snapshot.Price, row.Snapshot.Currency),
			FormatRatio(v.YieldRatio, models.UnitPercent),
			FormatRatio(v.DividendGrowth, models.UnitPercent),
			FormatPrice(v.FairValue, ""),
			output.Upside(v.UpsidePct),
			FormatScore(v.Score),
			output.Signal(v.Signal),
		}
		if res.Overlay {
			cells = append(cells, FormatWeight(row.Position), output.Action(row.Position.Action))
		}
		table.AddRow(cells...)
	}
	if table.Len() > 0 {
		table.Render()
		output.Println()
	}

	for _, f := range res.Failures {
		output.Warning("✗ %s: %v", f.Symbol, f.Err)
	}
	for _, path := range report.Artifacts {
		output.Success("✓ Wrote %s", path)
	}
	if res.Processed == 0 {
		output.Error("No instruments could be processed")
	}
}

func failedText(output *Output, n int) string {
	text := utils.FormatCount(int64(n))
	if n > 0 {
		return output.Red(text)
	}
	return text
}

// rankRows returns the processed rows by descending score, ties by ticker.
func rankRows(rows []models.Row) []models.Row {
	ranked := make([]models.Row, 0, len(rows))
	for _, row := range rows {
		if !row.Failed() {
			ranked = append(ranked, row)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Valuation.Score != ranked[j].Valuation.Score {
			return ranked[i].Valuation.Score > ranked[j].Valuation.Score
		}
		return ranked[i].Symbol() < ranked[j].Symbol()
	})
	return ranked
}

func itoa(n int) string {
	return utils.FormatCount(int64(n))
}

// runJSON is the --json shape of a run.
type runJSON struct {
	RunID     string        `json:"run_id"`
	Universe  int           `json:"universe"`
	Processed int           `json:"processed"`
	Failed    int           `json:"failed"`
	Duration  string        `json:"duration"`
	Unit      models.Unit   `json:"unit"` // ratios in rows are always fractions
	Artifacts []string      `json:"artifacts"`
	Rows      []models.Row  `json:"rows"`
	Failures  []failureJSON `json:"failures,omitempty"`
}

type failureJSON struct {
	Symbol string `json:"symbol"`
	Error  string `json:"error"`
}

func newRunJSON(report *runReport) runJSON {
	res := report.Result
	out := runJSON{
		RunID:     res.RunID,
		Universe:  res.Universe,
		Processed: res.Processed,
		Failed:    res.Failed,
		Duration:  res.Duration().String(),
		Unit:      models.UnitFraction,
		Artifacts: report.Artifacts,
		Rows:      res.Rows,
	}
	for _, f := range res.Failures {
		out.Failures = append(out.Failures, failureJSON{Symbol: f.Symbol, Error: f.Err.Error()})
	}
	return out
}

// isNoInstruments reports whether err means the run processed nothing.
func isNoInstruments(err error) bool {
	return apperrors.Is(err, apperrors.ErrNoInstruments) || apperrors.Is(err, apperrors.ErrEmptyUniverse)
}
