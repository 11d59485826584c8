package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Dividend Screener Configuration
# Ratios are fractions (0.03 = 3%) unless noted. Any key can be overridden
# with an environment variable, e.g. SCREENER_FETCH_CONCURRENCY=4.

[tickers]
# Plain text (one ticker per line, # comments) or CSV with a Ticker column
file = "tickers.txt"
# CSV column holding the tickers; empty means "Ticker", then "Symbol"
column = ""
# Alias CSV read by "screener tickers generate"
aliases = "ticker_aliases.csv"

[provider]
# Data source: "yahoo" or "static" (JSON fixtures, for offline runs)
kind = "yahoo"
# Override the API base URL (empty uses the public endpoint)
base_url = ""
# Minimum gap between outgoing requests
request_interval = "250ms"
# Retries for rate limits and server errors
max_retries = 3
# Dividend history window requested from the chart API
history_range = "10y"
# Per-request timeout
timeout = "30s"
# JSON snapshot file for the static provider
fixtures = ""
# Consecutive provider failures before fetches fail fast; 0 disables
breaker_failures = 5
# How long fetches fail fast before the provider is probed again
breaker_cooldown = "1m"

[fetch]
# Parallel fetches; 1 keeps requests strictly sequential
concurrency = 1
# What to do with a ticker that fails: "blank" emits an empty row, "skip" drops it
on_error = "blank"
# Reuse stored snapshots younger than this; "0s" disables the cache
cache_ttl = "6h"

[normalize]
# Absolute values at or below this are read as fractions, above as percentages
percent_threshold = 1.5
# Yields above this fraction are treated as data errors
yield_ceiling = 0.40

[valuation]
# Yield the stock "should" trade at
normalized_yield = 0.03
# Required return for the Gordon model
discount_rate = 0.09
# Growth cap applied before the Gordon model
max_growth = 0.06
# Growth used when history is too short
default_growth = 0.02
# Clamp applied to the dividend CAGR
growth_floor = -0.50
growth_cap = 0.50
# CAGR window in years
growth_years = 5
# Headline fair value: "yield", "gordon" or "average"
model = "yield"
# Leave the current, incomplete calendar year out of the CAGR
skip_partial_year = false

[scoring]
weight_yield = 0.35
weight_growth = 0.35
weight_valuation = 0.30
# Yield and growth that earn a full sub-score
yield_ceiling = 0.06
growth_ceiling = 0.15
# P/E ramp: pe_best scores 100, pe_worst scores 0
pe_best = 10.0
pe_worst = 30.0
# Sub-scores used when P/E or growth is unknown
pe_missing = 40.0
growth_missing = 0.0
# Signal cut-offs
gold = 85.0
gold_upside = 0.10
buy = 70.0
hold = 55.0
# Raw yields above this are flagged as special dividends (signal WATCH)
special_yield = 0.12
# Payout ratio above which a warning is raised
payout_baseline = 1.0
# Optional CSV (ticker,class) extending the built-in Kings/Aristocrats list
class_file = ""

# Sector payout thresholds: real_estate, energy, utilities, financials
[scoring.payout_overrides]
real_estate = 2.0
energy = 1.6
utilities = 1.25
financials = 1.0

[portfolio]
# Holdings or transactions export; empty disables the overlay
holdings = ""
# Alias CSV mapping export names to tickers
aliases = ""

[portfolio.rules]
trim_weight = 0.07
add_weight = 0.02
min_score_buy = 60.0
min_upside_buy = 0.05
avoid_score = 40.0
avoid_if_no_data = true

[output]
dir = "output"
csv = true
html = true
csv_name = "screener.csv"
html_name = "screener.html"
# Ratio unit in the reports: "fraction" or "percent"
unit = "fraction"
title = "Dividend Screener"

[store]
# SQLite snapshot cache and run history
enabled = true
# Relative paths are resolved against the config directory
path = "data/screener.db"

[schedule]
# Cron expression used by "screener schedule"
cron = "0 7 * * 1-5"
# GOLD and BUY picks listed per notification, 0 for all
max_picks = 10

[notify]
# "all", "signals_only" (runs with GOLD or BUY picks) or "errors_only"
level = "all"

[notify.webhook]
# JSON POST target; empty disables
url = ""

[notify.telegram]
# Bot credentials, better set via SCREENER_NOTIFY_TELEGRAM_BOT_TOKEN in .env
bot_token = ""
chat_id = ""
base_url = ""

[log]
level = "info"
console = true
file = true
file_path = "logs/screener.log"
max_size = 20
max_backups = 7
max_age = 30
`

// createTemplateConfig writes the template when no config file exists yet.
func createTemplateConfig(configDir string) error {
	return WriteTemplate(configDir, false)
}

// WriteTemplate writes the commented config template to configDir. An
// existing file is only replaced when force is set.
func WriteTemplate(configDir string, force bool) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, FileName)
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s", path)
		}
	}

	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}
