package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"dividend-screener/internal/store"
)

func newCacheCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and clear the snapshot cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show cached snapshots and their freshness",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			st, err := requireStore(app)
			if err != nil {
				return err
			}
			infos, err := st.ListSnapshots(ctx)
			if err != nil {
				return err
			}

			now := time.Now()
			status := store.CheckFreshness(infos, app.Config.Fetch.CacheTTL, now)

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"ttl":       app.Config.Fetch.CacheTTL.String(),
					"snapshots": status,
				})
			}
			if len(status) == 0 {
				output.Info("Snapshot cache is empty.")
				return nil
			}

			fresh := 0
			table := NewTable(output, "Ticker", "Fetched", "Status")
			for _, f := range status {
				text := store.FormatFreshness(f, now)
				if f.IsFresh {
					fresh++
					text = output.Green(text)
				} else {
					text = output.Yellow(text)
				}
				table.AddRow(f.Symbol, FormatDateTime(f.FetchedAt), text)
			}
			table.Render()
			output.Println()
			output.Dim("%d of %d snapshots fresh (ttl %s)", fresh, len(status), app.Config.Fetch.CacheTTL)
			return nil
		},
	})

	purgeCmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete cached snapshots",
		Example: `  screener cache purge
  screener cache purge --older-than 72h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			st, err := requireStore(app)
			if err != nil {
				return err
			}

			olderThan, _ := cmd.Flags().GetDuration("older-than")
			n, err := st.PurgeSnapshots(ctx, olderThan)
			if err != nil {
				return err
			}

			app.Logger.Info().Int64("deleted", n).Dur("older_than", olderThan).Msg("Snapshot cache purged")
			if output.IsJSON() {
				return output.JSON(map[string]int64{"deleted": n})
			}
			output.Success("✓ Deleted %d cached snapshots", n)
			return nil
		},
	}
	purgeCmd.Flags().Duration("older-than", 0, "only delete snapshots older than this (0 deletes all)")
	cmd.AddCommand(purgeCmd)

	return cmd
}
