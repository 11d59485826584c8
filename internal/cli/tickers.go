package cli

import (
	"github.com/spf13/cobra"

	"dividend-screener/internal/tickers"
)

func newTickersCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tickers",
		Short: "Inspect and build the ticker universe",
	}

	listCmd := &cobra.Command{
		Use:   "list [file]",
		Short: "List the tickers a run would screen",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			path := app.Config.Tickers.File
			if len(args) == 1 {
				path = args[0]
			}
			column, _ := cmd.Flags().GetString("column")
			if column == "" {
				column = app.Config.Tickers.Column
			}

			symbols, err := tickers.Load(path, column)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"file":    path,
					"count":   len(symbols),
					"tickers": symbols,
				})
			}
			for _, s := range symbols {
				output.Println(s)
			}
			output.Dim("%d tickers from %s", len(symbols), path)
			return nil
		},
	}
	listCmd.Flags().String("column", "", "CSV column holding tickers")
	cmd.AddCommand(listCmd)

	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Build a tickers file from the alias CSV",
		Long: `Read the Ticker column of the alias CSV, upper-case and de-duplicate the
entries, and write them one per line to the tickers file.`,
		Example: `  screener tickers generate
  screener tickers generate --aliases ticker_aliases.csv --out tickers.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			aliases, _ := cmd.Flags().GetString("aliases")
			if aliases == "" {
				aliases = app.Config.Tickers.Aliases
			}
			out, _ := cmd.Flags().GetString("out")
			if out == "" {
				out = app.Config.Tickers.File
			}

			symbols, err := tickers.Generate(aliases, out)
			if err != nil {
				return err
			}

			app.Logger.Info().Str("from", aliases).Str("to", out).Int("count", len(symbols)).Msg("Tickers file generated")
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"file": out, "count": len(symbols)})
			}
			output.Success("✓ Wrote %d tickers to %s", len(symbols), out)
			return nil
		},
	}
	generateCmd.Flags().String("aliases", "", "alias CSV with a Ticker column")
	generateCmd.Flags().String("out", "", "tickers file to write")
	cmd.AddCommand(generateCmd)

	return cmd
}
