package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

func newScheduleCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the screener on a cron schedule",
		Long: `Keep running and screen the universe whenever the cron expression fires.
The expression uses the standard five fields (minute hour day month weekday)
and also accepts descriptors such as @daily or @every 6h.

Overlapping runs are skipped. Each run is reported to the channels in the
[notify] section. Stop with Ctrl+C.`,
		Example: `  screener schedule
  screener schedule --cron "30 22 * * 1-5" --now`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			cfg, err := runConfig(cmd, app.Config)
			if err != nil {
				return err
			}
			expr, _ := cmd.Flags().GetString("cron")
			if expr == "" {
				expr = cfg.Schedule.Cron
			}
			sched, err := cron.ParseStandard(expr)
			if err != nil {
				return fmt.Errorf("invalid cron expression %q: %w", expr, err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := app.Logger.With().Str("component", "schedule").Logger()
			job := func() {
				report, err := executeRun(ctx, app, cfg, nil)
				defer notifyRun(ctx, cfg, report, err, logger)
				switch {
				case report == nil:
					logger.Error().Err(err).Msg("Scheduled run failed")
				case err != nil && isNoInstruments(err):
					logger.Error().Str("run_id", report.Result.RunID).Msg("Scheduled run processed no instruments")
				case err != nil:
					logger.Error().Err(err).Str("run_id", report.Result.RunID).Msg("Scheduled run finished with errors")
				default:
					logger.Info().
						Str("run_id", report.Result.RunID).
						Int("processed", report.Result.Processed).
						Int("failed", report.Result.Failed).
						Strs("artifacts", report.Artifacts).
						Msg("Scheduled run completed")
				}
				logger.Info().Time("next", sched.Next(time.Now())).Msg("Waiting for next run")
			}

			c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
			c.Schedule(sched, cron.FuncJob(job))

			output.Info("Scheduler started with %q", expr)
			output.Dim("Next run: %s", FormatDateTime(sched.Next(time.Now())))

			if now, _ := cmd.Flags().GetBool("now"); now {
				job()
			}

			c.Start()
			<-ctx.Done()

			output.Println()
			output.Info("Stopping scheduler, waiting for a running job to finish")
			<-c.Stop().Done()
			return nil
		},
	}

	cmd.Flags().String("cron", "", "cron expression, overrides schedule.cron")
	cmd.Flags().Bool("now", false, "run once immediately before waiting")
	// Same overrides as run.
	cmd.Flags().String("tickers", "", "ticker file (.txt or .csv)")
	cmd.Flags().String("column", "", "CSV column holding tickers")
	cmd.Flags().String("holdings", "", "holdings or transactions export")
	cmd.Flags().String("aliases", "", "alias CSV")
	cmd.Flags().String("out", "", "output directory")
	cmd.Flags().String("unit", "", "ratio unit in reports")
	cmd.Flags().Int("concurrency", 0, "parallel fetches")
	cmd.Flags().String("on-error", "", "failed tickers: blank or skip")
	cmd.Flags().String("provider", "", "data provider")
	cmd.Flags().String("fixtures", "", "JSON snapshots for the static provider")
	cmd.Flags().Bool("no-cache", false, "always fetch fresh snapshots")
	cmd.Flags().Bool("no-csv", false, "skip the CSV report")
	cmd.Flags().Bool("no-html", false, "skip the HTML report")

	return cmd
}
