package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// addHelpCommands adds the workflow guides.
func addHelpCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newExamplesCmd())
	rootCmd.AddCommand(newQuickstartCmd())
}

type example struct {
	Title    string   `json:"title"`
	Commands []string `json:"commands"`
}

var workflowExamples = []example{
	{
		Title: "Daily Screen",
		Commands: []string{
			"screener run                                # Screen tickers.txt with config defaults",
			"screener run --top 10                       # Show only the ten best scores",
			"screener run --unit percent --out reports   # Percent ratios, custom folder",
		},
	},
	{
		Title: "Portfolio Overlay",
		Commands: []string{
			"screener run --holdings holdings.csv        # Add weights and BUY/ADD/TRIM actions",
			"screener run --holdings trades.csv --aliases aliases.csv",
			"screener tickers generate                   # Rebuild tickers.txt from the alias CSV",
		},
	},
	{
		Title: "Offline and Testing",
		Commands: []string{
			"screener run --provider static --fixtures snapshots.json",
			"screener run --no-cache                     # Ignore cached snapshots",
			"screener cache status                       # Inspect snapshot freshness",
		},
	},
	{
		Title: "Automation",
		Commands: []string{
			"screener schedule --cron \"30 22 * * 1-5\"    # Weeknights after the US close",
			"screener run --notify                       # Post the summary to webhook/Telegram",
			"screener history list --days 30             # Runs from the last month",
		},
	},
}

func newExamplesCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "examples",
		Short:       "Show common workflow examples",
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(workflowExamples)
			}

			output.Bold("Common Workflow Examples")
			output.Println()
			for _, ex := range workflowExamples {
				output.Printf("%s\n", output.Cyan(ex.Title))
				for _, c := range ex.Commands {
					output.Printf("  %s\n", c)
				}
				output.Println()
			}
			return nil
		},
	}
}

func newQuickstartCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "quickstart",
		Short:       "New user guide",
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			output.Bold("Dividend Screener - Quick Start Guide")
			output.Println()

			steps := []struct {
				title string
				desc  string
				cmd   string
			}{
				{"Create a Config", "Write a commented config.toml you can edit.", "screener config init"},
				{"List Your Tickers", "One ticker per line, or a CSV with a Ticker column.", "screener tickers list tickers.txt"},
				{"Run the Screener", "Fetch, value and score every ticker.", "screener run"},
				{"Open the Report", "Sort and filter the HTML table in any browser.", "output/screener.html"},
				{"Add Your Holdings", "Point portfolio.holdings at a holdings or transactions export.", "screener run --holdings holdings.csv"},
			}
			for i, s := range steps {
				output.Printf("%s Step %d: %s\n", output.Cyan("→"), i+1, output.paint(color.Bold, s.title))
				output.Printf("  %s\n", s.desc)
				output.Printf("  %s\n\n", output.DimText(s.cmd))
			}

			output.Bold("Getting Help")
			output.Println()
			output.Printf("  %s - Common workflows\n", output.Cyan("screener examples"))
			output.Printf("  %s - Help for any command\n", output.Cyan("screener help <command>"))
			output.Println()

			output.Printf("  %s Signals are screening hints, not investment advice\n", output.Yellow("⚠"))
			return nil
		},
	}
}
