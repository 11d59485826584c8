package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"dividend-screener/internal/models"
	"dividend-screener/internal/store"
	"dividend-screener/pkg/utils"
)

func newHistoryCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse archived screener runs",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			st, err := requireStore(app)
			if err != nil {
				return err
			}

			limit, _ := cmd.Flags().GetInt("limit")
			days, _ := cmd.Flags().GetInt("days")
			filter := store.RunFilter{Limit: limit}
			if days > 0 {
				filter.Since = time.Now().AddDate(0, 0, -days)
			}

			runs, err := st.GetRuns(ctx, filter)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(runs)
			}
			if len(runs) == 0 {
				output.Info("No runs archived yet. Use 'screener run' first.")
				return nil
			}

			now := time.Now()
			table := NewTable(output, "Run", "Started", "Age", "Provider", "Universe", "Processed", "Failed", "Duration")
			for _, r := range runs {
				table.AddRow(
					ShortID(r.ID),
					FormatDateTime(r.StartedAt),
					utils.FormatAge(r.StartedAt, now),
					r.Provider,
					utils.FormatCount(int64(r.Universe)),
					utils.FormatCount(int64(r.Processed)),
					failedText(output, r.Failed),
					FormatDuration(r.FinishedAt.Sub(r.StartedAt)),
				)
			}
			table.Render()
			return nil
		},
	}
	listCmd.Flags().Int("limit", 20, "maximum runs to show")
	listCmd.Flags().Int("days", 0, "only runs from the last N days")
	cmd.AddCommand(listCmd)

	showCmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the rows of an archived run",
		Long:  "Show the rows of an archived run. A unique prefix of the run ID is enough.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			st, err := requireStore(app)
			if err != nil {
				return err
			}

			run, err := st.GetRun(ctx, args[0])
			if err != nil {
				return err
			}
			rows, err := st.GetRunRows(ctx, run.ID)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"run":  run,
					"rows": rows,
				})
			}

			output.Box("Run "+ShortID(run.ID), []string{
				"ID:         " + run.ID,
				"Started:    " + FormatDateTime(run.StartedAt),
				"Provider:   " + run.Provider,
				fmt.Sprintf("Processed:  %d of %d", run.Processed, run.Universe),
				"Failed:     " + failedText(output, run.Failed),
			})
			output.Println()

			table := NewTable(output, "Ticker", "Price", "Yield", "Growth", "Fair Value", "Upside", "Score", "Signal", "Action", "Weight")
			for _, r := range rows {
				if r.Error != "" {
					table.AddRow(r.Symbol, output.Red("error"), Placeholder, Placeholder, Placeholder, Placeholder,
						Placeholder, Placeholder, Placeholder, Placeholder)
					continue
				}
				weight := Placeholder
				if r.Weight > 0 {
					weight = fmt.Sprintf("%.1f%%", r.Weight*100)
				}
				table.AddRow(
					r.Symbol,
					FormatPrice(r.Price, ""),
					FormatRatio(r.Yield, models.UnitPercent),
					FormatRatio(r.Growth, models.UnitPercent),
					FormatPrice(r.FairValue, ""),
					output.Upside(r.Upside),
					FormatScore(r.Score),
					output.Signal(models.Signal(r.Signal)),
					output.Action(models.Action(r.Action)),
					weight,
				)
			}
			table.Render()
			return nil
		},
	}
	cmd.AddCommand(showCmd)

	return cmd
}

// requireStore opens the store or explains why history is unavailable.
func requireStore(app *App) (store.DataStore, error) {
	st, err := app.OpenStore()
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, fmt.Errorf("the store is disabled; set store.enabled = true in %s", app.Config.Path())
	}
	return st, nil
}
