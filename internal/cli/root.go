package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"dividend-screener/internal/config"
	"dividend-screener/internal/logging"
	"dividend-screener/internal/store"
)

// Version information
const (
	Version   = "0.3.0"
	BuildDate = "2024-11-04"
)

// skipConfig marks commands that must work without a loadable config.
const skipConfig = "skip-config"

// App holds the application dependencies.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Store  store.DataStore
}

// OpenStore opens the SQLite store on first use. It returns nil without an
// error when the store is disabled.
func (app *App) OpenStore() (store.DataStore, error) {
	if app.Store != nil || !app.Config.Store.Enabled {
		return app.Store, nil
	}
	s, err := store.NewSQLiteStore(app.Config.Store.Path)
	if err != nil {
		return nil, err
	}
	app.Store = s
	app.Logger.Debug().Str("path", app.Config.Store.Path).Msg("SQLite store initialized")
	return s, nil
}

// Close releases the store.
func (app *App) Close() {
	if app.Store != nil {
		if err := app.Store.Close(); err != nil {
			app.Logger.Warn().Err(err).Msg("Failed to close store")
		}
		app.Store = nil
	}
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd() *cobra.Command {
	app := &App{Logger: zerolog.Nop()}

	rootCmd := &cobra.Command{
		Use:   "screener",
		Short: "Dividend screener - value and rank dividend stocks",
		Long: `Dividend screener fetches fundamentals and dividend history for a list of
tickers, estimates fair value, scores each stock 0-100 and assigns a
GOLD/BUY/HOLD/WATCH signal. With a holdings export it also suggests
BUY/ADD/HOLD/TRIM/AVOID actions for your portfolio.

Results are written as CSV and as a self-contained HTML report.

Use 'screener run' to screen the configured ticker list.
Use 'screener config init' to create a commented config file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if cmd.Annotations[skipConfig] == "true" {
				if debug {
					logging.SetDebugLevel()
				}
				return nil
			}

			dir, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(dir)
			if err != nil {
				return err
			}
			if debug {
				cfg.Log.Level = "debug"
			}
			app.Config = cfg
			app.Logger = logging.NewLoggerWithConfig(cfg.Log)
			app.Logger.Debug().Str("config", cfg.Path()).Msg("Configuration loaded")
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			app.Close()
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/dividend-screener)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newRunCmd(app))
	rootCmd.AddCommand(newTickersCmd(app))
	rootCmd.AddCommand(newHistoryCmd(app))
	rootCmd.AddCommand(newCacheCmd(app))
	rootCmd.AddCommand(newScheduleCmd(app))
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newVersionCmd())
	addHelpCommands(rootCmd)

	return rootCmd
}

// Execute runs the root command and reports a failure on stderr. The
// returned error decides the exit status.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
		return err
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Annotations: map[string]string{skipConfig: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("Dividend Screener v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and manage application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration as TOML",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			data, err := app.Config.TOML()
			if err != nil {
				return err
			}
			output.Dim("# %s", app.Config.Path())
			output.Printf("%s", data)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:         "path",
		Short:       "Show configuration file path",
		Annotations: map[string]string{skipConfig: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			path := configPath(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": path})
			} else {
				output.Println(path)
			}
		},
	})

	initCmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a commented config template",
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			force, _ := cmd.Flags().GetBool("force")
			dir, _ := cmd.Flags().GetString("config")
			if dir == "" {
				dir = config.DefaultConfigDir()
			}
			if err := config.WriteTemplate(dir, force); err != nil {
				return err
			}
			output.Success("✓ Config template written to %s", configPath(cmd))
			return nil
		},
	}
	initCmd.Flags().Bool("force", false, "overwrite an existing config file")
	cmd.AddCommand(initCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if _, err := app.Config.Scorer(); err != nil {
				output.Error("Scoring configuration failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("✓ Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

func configPath(cmd *cobra.Command) string {
	dir, _ := cmd.Flags().GetString("config")
	if dir == "" {
		dir = config.DefaultConfigDir()
	}
	return filepath.Join(dir, config.FileName)
}
