// Package config provides configuration management for the dividend screener.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"dividend-screener/internal/analysis/scoring"
	"dividend-screener/internal/analysis/valuation"
	apperrors "dividend-screener/internal/errors"
	"dividend-screener/internal/logging"
	"dividend-screener/internal/models"
	"dividend-screener/internal/normalize"
	"dividend-screener/internal/notify"
	"dividend-screener/internal/portfolio"
	"dividend-screener/internal/provider"
)

// FileName is the config file name inside the config directory.
const FileName = "config.toml"

// EnvPrefix is the prefix of environment overrides, e.g. SCREENER_FETCH_CONCURRENCY.
const EnvPrefix = "SCREENER"

// Config holds all application configuration.
type Config struct {
	Tickers   TickersConfig     `mapstructure:"tickers" toml:"tickers"`
	Provider  ProviderConfig    `mapstructure:"provider" toml:"provider"`
	Fetch     FetchConfig       `mapstructure:"fetch" toml:"fetch"`
	Normalize NormalizeConfig   `mapstructure:"normalize" toml:"normalize"`
	Valuation ValuationConfig   `mapstructure:"valuation" toml:"valuation"`
	Scoring   ScoringConfig     `mapstructure:"scoring" toml:"scoring"`
	Portfolio PortfolioConfig   `mapstructure:"portfolio" toml:"portfolio"`
	Output    OutputConfig      `mapstructure:"output" toml:"output"`
	Store     StoreConfig       `mapstructure:"store" toml:"store"`
	Schedule  ScheduleConfig    `mapstructure:"schedule" toml:"schedule"`
	Notify    notify.Config     `mapstructure:"notify" toml:"notify"`
	Log       logging.LogConfig `mapstructure:"log" toml:"log"`

	dir string
}

// TickersConfig locates the ticker universe.
type TickersConfig struct {
	File    string `mapstructure:"file" toml:"file" validate:"required"`
	Column  string `mapstructure:"column" toml:"column"`
	Aliases string `mapstructure:"aliases" toml:"aliases"` // alias CSV used by "tickers generate"
}

// ProviderConfig selects and tunes the market data source.
type ProviderConfig struct {
	Kind            string        `mapstructure:"kind" toml:"kind" validate:"oneof=yahoo static"`
	BaseURL         string        `mapstructure:"base_url" toml:"base_url" validate:"omitempty,url"`
	RequestInterval time.Duration `mapstructure:"request_interval" toml:"request_interval" validate:"gte=0"`
	MaxRetries      int           `mapstructure:"max_retries" toml:"max_retries" validate:"gte=0,lte=10"`
	HistoryRange    string        `mapstructure:"history_range" toml:"history_range" validate:"required"`
	Timeout         time.Duration `mapstructure:"timeout" toml:"timeout" validate:"gt=0"`
	Fixtures        string        `mapstructure:"fixtures" toml:"fixtures"`                                  // JSON snapshots for the static provider
	BreakerFailures int           `mapstructure:"breaker_failures" toml:"breaker_failures" validate:"gte=0"` // 0 disables the circuit breaker
	BreakerCooldown time.Duration `mapstructure:"breaker_cooldown" toml:"breaker_cooldown" validate:"gte=0"`
}

// FetchConfig controls how the universe is fetched.
type FetchConfig struct {
	Concurrency int           `mapstructure:"concurrency" toml:"concurrency" validate:"gte=1,lte=32"`
	OnError     string        `mapstructure:"on_error" toml:"on_error" validate:"oneof=blank skip"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl" toml:"cache_ttl" validate:"gte=0"` // 0 disables the snapshot cache
}

// NormalizeConfig holds the ratio scale heuristics.
type NormalizeConfig struct {
	PercentThreshold float64 `mapstructure:"percent_threshold" toml:"percent_threshold" validate:"gt=0"`
	YieldCeiling     float64 `mapstructure:"yield_ceiling" toml:"yield_ceiling" validate:"gt=0,lte=1"`
}

// ValuationConfig holds the fair value assumptions. Ratios are fractions.
type ValuationConfig struct {
	NormalizedYield float64 `mapstructure:"normalized_yield" toml:"normalized_yield" validate:"gt=0,lt=1"`
	DiscountRate    float64 `mapstructure:"discount_rate" toml:"discount_rate" validate:"gt=0,lt=1"`
	MaxGrowth       float64 `mapstructure:"max_growth" toml:"max_growth"`
	DefaultGrowth   float64 `mapstructure:"default_growth" toml:"default_growth"`
	GrowthFloor     float64 `mapstructure:"growth_floor" toml:"growth_floor" validate:"gte=-1"`
	GrowthCap       float64 `mapstructure:"growth_cap" toml:"growth_cap"`
	GrowthYears     int     `mapstructure:"growth_years" toml:"growth_years" validate:"gte=1,lte=30"`
	Model           string  `mapstructure:"model" toml:"model" validate:"oneof=yield gordon average"`
	SkipPartialYear bool    `mapstructure:"skip_partial_year" toml:"skip_partial_year"`
}

// ScoringConfig holds the score weights, ramps and signal cut-offs.
type ScoringConfig struct {
	WeightYield     float64            `mapstructure:"weight_yield" toml:"weight_yield" validate:"gte=0"`
	WeightGrowth    float64            `mapstructure:"weight_growth" toml:"weight_growth" validate:"gte=0"`
	WeightValuation float64            `mapstructure:"weight_valuation" toml:"weight_valuation" validate:"gte=0"`
	YieldCeiling    float64            `mapstructure:"yield_ceiling" toml:"yield_ceiling" validate:"gt=0"`
	GrowthCeiling   float64            `mapstructure:"growth_ceiling" toml:"growth_ceiling" validate:"gt=0"`
	PEBest          float64            `mapstructure:"pe_best" toml:"pe_best" validate:"gt=0"`
	PEWorst         float64            `mapstructure:"pe_worst" toml:"pe_worst" validate:"gtfield=PEBest"`
	PEMissing       float64            `mapstructure:"pe_missing" toml:"pe_missing" validate:"gte=0,lte=100"`
	GrowthMissing   float64            `mapstructure:"growth_missing" toml:"growth_missing" validate:"gte=0,lte=100"`
	Gold            float64            `mapstructure:"gold" toml:"gold" validate:"gte=0,lte=100"`
	GoldUpside      float64            `mapstructure:"gold_upside" toml:"gold_upside"`
	Buy             float64            `mapstructure:"buy" toml:"buy" validate:"gte=0,lte=100"`
	Hold            float64            `mapstructure:"hold" toml:"hold" validate:"gte=0,lte=100"`
	SpecialYield    float64            `mapstructure:"special_yield" toml:"special_yield" validate:"gt=0"`
	PayoutBaseline  float64            `mapstructure:"payout_baseline" toml:"payout_baseline" validate:"gt=0"`
	PayoutOverrides map[string]float64 `mapstructure:"payout_overrides" toml:"payout_overrides"`
	ClassFile       string             `mapstructure:"class_file" toml:"class_file"` // CSV of ticker,class entries merged over the built-in list
}

// PortfolioConfig locates the holdings export and the overlay rules.
type PortfolioConfig struct {
	Holdings string          `mapstructure:"holdings" toml:"holdings"` // empty disables the overlay
	Aliases  string          `mapstructure:"aliases" toml:"aliases"`
	Rules    portfolio.Rules `mapstructure:"rules" toml:"rules"`
}

// OutputConfig controls the report artifacts.
type OutputConfig struct {
	Dir      string `mapstructure:"dir" toml:"dir" validate:"required"`
	CSV      bool   `mapstructure:"csv" toml:"csv"`
	HTML     bool   `mapstructure:"html" toml:"html"`
	CSVName  string `mapstructure:"csv_name" toml:"csv_name" validate:"required"`
	HTMLName string `mapstructure:"html_name" toml:"html_name" validate:"required"`
	Unit     string `mapstructure:"unit" toml:"unit" validate:"oneof=fraction percent"`
	Title    string `mapstructure:"title" toml:"title"`
}

// StoreConfig locates the SQLite snapshot cache and run archive.
type StoreConfig struct {
	Enabled bool   `mapstructure:"enabled" toml:"enabled"`
	Path    string `mapstructure:"path" toml:"path"`
}

// ScheduleConfig drives the "schedule" command.
type ScheduleConfig struct {
	Cron     string `mapstructure:"cron" toml:"cron"`
	MaxPicks int    `mapstructure:"max_picks" toml:"max_picks" validate:"gte=0"` // picks listed per notification, 0 for all
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/dividend-screener"
	}
	return filepath.Join(home, ".config", "dividend-screener")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. A missing
// config file is created from the template and defaults apply.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	loadDotEnv(configDir)

	v := newViper(configDir)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("loading %s: %w", FileName, err)
		}
		if err := createTemplateConfig(configDir); err != nil {
			return nil, fmt.Errorf("creating %s: %w", FileName, err)
		}
	}

	cfg := &Config{dir: configDir}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", FileName, err)
	}
	cfg.resolvePaths()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the configuration used when no file or environment
// overrides exist, rooted at configDir.
func Default(configDir string) *Config {
	v := viper.New()
	setDefaults(v, configDir)
	cfg := &Config{dir: configDir}
	_ = v.Unmarshal(cfg)
	cfg.resolvePaths()
	return cfg
}

func newViper(configDir string) *viper.Viper {
	v := viper.New()
	v.SetConfigName(strings.TrimSuffix(FileName, filepath.Ext(FileName)))
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	setDefaults(v, configDir)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// loadDotEnv loads .env from the working directory and the config
// directory without overriding variables already set.
func loadDotEnv(configDir string) {
	for _, path := range []string{".env", filepath.Join(configDir, ".env")} {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
		}
	}
}

func setDefaults(v *viper.Viper, configDir string) {
	vp := valuation.DefaultParams()
	w := scoring.DefaultWeights()
	r := scoring.DefaultRamps()
	t := scoring.DefaultThresholds()
	rules := portfolio.DefaultRules()
	lc := logging.DefaultLogConfig()
	bc := provider.DefaultBreakerConfig()

	v.SetDefault("tickers.file", "tickers.txt")
	v.SetDefault("tickers.column", "")
	v.SetDefault("tickers.aliases", "ticker_aliases.csv")

	v.SetDefault("provider.kind", provider.KindYahoo)
	v.SetDefault("provider.base_url", "")
	v.SetDefault("provider.request_interval", 250*time.Millisecond)
	v.SetDefault("provider.max_retries", 3)
	v.SetDefault("provider.history_range", "10y")
	v.SetDefault("provider.timeout", 30*time.Second)
	v.SetDefault("provider.fixtures", "")
	v.SetDefault("provider.breaker_failures", bc.FailureThreshold)
	v.SetDefault("provider.breaker_cooldown", bc.Cooldown)

	v.SetDefault("fetch.concurrency", 1)
	v.SetDefault("fetch.on_error", "blank")
	v.SetDefault("fetch.cache_ttl", 6*time.Hour)

	v.SetDefault("normalize.percent_threshold", normalize.DefaultPercentThreshold)
	v.SetDefault("normalize.yield_ceiling", normalize.DefaultYieldCeiling)

	v.SetDefault("valuation.normalized_yield", vp.NormalizedYield)
	v.SetDefault("valuation.discount_rate", vp.DiscountRate)
	v.SetDefault("valuation.max_growth", vp.MaxGrowth)
	v.SetDefault("valuation.default_growth", vp.DefaultGrowth)
	v.SetDefault("valuation.growth_floor", vp.GrowthFloor)
	v.SetDefault("valuation.growth_cap", vp.GrowthCap)
	v.SetDefault("valuation.growth_years", vp.GrowthYears)
	v.SetDefault("valuation.model", string(vp.FairValueModel))
	v.SetDefault("valuation.skip_partial_year", vp.SkipPartialYear)

	v.SetDefault("scoring.weight_yield", w.Yield)
	v.SetDefault("scoring.weight_growth", w.Growth)
	v.SetDefault("scoring.weight_valuation", w.Valuation)
	v.SetDefault("scoring.yield_ceiling", r.YieldCeiling)
	v.SetDefault("scoring.growth_ceiling", r.GrowthCeiling)
	v.SetDefault("scoring.pe_best", r.PEBest)
	v.SetDefault("scoring.pe_worst", r.PEWorst)
	v.SetDefault("scoring.pe_missing", r.PEMissing)
	v.SetDefault("scoring.growth_missing", r.GrowthMissing)
	v.SetDefault("scoring.gold", t.Gold)
	v.SetDefault("scoring.gold_upside", t.GoldUpside)
	v.SetDefault("scoring.buy", t.Buy)
	v.SetDefault("scoring.hold", t.Hold)
	v.SetDefault("scoring.special_yield", t.SpecialYield)
	v.SetDefault("scoring.payout_baseline", scoring.DefaultPayoutPolicy().Baseline)
	v.SetDefault("scoring.class_file", "")

	v.SetDefault("portfolio.holdings", "")
	v.SetDefault("portfolio.aliases", "")
	v.SetDefault("portfolio.rules.trim_weight", rules.TrimWeight)
	v.SetDefault("portfolio.rules.add_weight", rules.AddWeight)
	v.SetDefault("portfolio.rules.min_score_buy", rules.MinScoreBuy)
	v.SetDefault("portfolio.rules.min_upside_buy", rules.MinUpsideBuy)
	v.SetDefault("portfolio.rules.avoid_score", rules.AvoidScore)
	v.SetDefault("portfolio.rules.avoid_if_no_data", rules.AvoidIfNoData)

	v.SetDefault("output.dir", "output")
	v.SetDefault("output.csv", true)
	v.SetDefault("output.html", true)
	v.SetDefault("output.csv_name", "screener.csv")
	v.SetDefault("output.html_name", "screener.html")
	v.SetDefault("output.unit", string(models.UnitFraction))
	v.SetDefault("output.title", "Dividend Screener")

	v.SetDefault("store.enabled", true)
	v.SetDefault("store.path", filepath.Join(configDir, "data", "screener.db"))

	v.SetDefault("schedule.cron", "0 7 * * 1-5")
	v.SetDefault("schedule.max_picks", 10)

	v.SetDefault("notify.level", string(notify.LevelAll))
	v.SetDefault("notify.webhook.url", "")
	v.SetDefault("notify.telegram.bot_token", "")
	v.SetDefault("notify.telegram.chat_id", "")
	v.SetDefault("notify.telegram.base_url", "")

	v.SetDefault("log.level", lc.Level)
	v.SetDefault("log.console", lc.Console)
	v.SetDefault("log.file", lc.File)
	v.SetDefault("log.file_path", filepath.Join(configDir, "logs", "screener.log"))
	v.SetDefault("log.max_size", lc.MaxSize)
	v.SetDefault("log.max_backups", lc.MaxBackups)
	v.SetDefault("log.max_age", lc.MaxAge)
}

// resolvePaths makes store and log paths that are relative to the config
// directory absolute. Input and output paths stay relative to the working
// directory.
func (c *Config) resolvePaths() {
	if c.dir == "" {
		return
	}
	if c.Store.Path != "" && !filepath.IsAbs(c.Store.Path) {
		c.Store.Path = filepath.Join(c.dir, c.Store.Path)
	}
	if c.Log.FilePath != "" && !filepath.IsAbs(c.Log.FilePath) {
		c.Log.FilePath = filepath.Join(c.dir, c.Log.FilePath)
	}
}

var validate = validator.New()

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return apperrors.NewValidationError(fe.Namespace(), fe.Value(), fmt.Sprintf("failed %q check", fe.Tag()))
		}
		return fmt.Errorf("%w: %v", apperrors.ErrConfigInvalid, err)
	}

	if c.Valuation.DiscountRate <= c.Valuation.MaxGrowth {
		return apperrors.NewValidationError("valuation.discount_rate", c.Valuation.DiscountRate,
			"must exceed valuation.max_growth")
	}
	if c.Valuation.GrowthFloor > c.Valuation.GrowthCap {
		return apperrors.NewValidationError("valuation.growth_floor", c.Valuation.GrowthFloor,
			"must not exceed valuation.growth_cap")
	}

	s := c.Scoring
	if s.WeightYield+s.WeightGrowth+s.WeightValuation <= 0 {
		return apperrors.NewValidationError("scoring.weight_*", 0.0, "at least one weight must be positive")
	}
	if !(s.Hold <= s.Buy && s.Buy <= s.Gold) {
		return apperrors.NewValidationError("scoring.buy", s.Buy, "cut-offs must satisfy hold <= buy <= gold")
	}
	for key, threshold := range s.PayoutOverrides {
		if _, ok := scoring.ParseSectorCategory(key); !ok {
			return apperrors.NewValidationError("scoring.payout_overrides", key, "unknown sector category")
		}
		if threshold <= 0 {
			return apperrors.NewValidationError("scoring.payout_overrides."+key, threshold, "must be positive")
		}
	}

	rules := c.Portfolio.Rules
	if rules.AddWeight > rules.TrimWeight {
		return apperrors.NewValidationError("portfolio.rules.add_weight", rules.AddWeight,
			"must not exceed portfolio.rules.trim_weight")
	}

	if c.Provider.Kind == provider.KindStatic && c.Provider.Fixtures == "" {
		return apperrors.NewValidationError("provider.fixtures", "", "required for the static provider")
	}
	if c.Store.Enabled && c.Store.Path == "" {
		return apperrors.NewValidationError("store.path", "", "required when the store is enabled")
	}

	return nil
}

// Dir returns the directory the configuration was loaded from.
func (c *Config) Dir() string {
	return c.dir
}

// Path returns the config file path.
func (c *Config) Path() string {
	return filepath.Join(c.dir, FileName)
}

// TOML renders the effective configuration.
func (c *Config) TOML() ([]byte, error) {
	return toml.Marshal(c)
}

// Normalizer builds the ratio normalizer.
func (c *Config) Normalizer() normalize.Normalizer {
	return normalize.New(c.Normalize.PercentThreshold, c.Normalize.YieldCeiling)
}

// ValuationParams builds the valuation assumptions as of now.
func (c *Config) ValuationParams(now time.Time) valuation.Params {
	v := c.Valuation
	return valuation.Params{
		NormalizedYield: v.NormalizedYield,
		DiscountRate:    v.DiscountRate,
		MaxGrowth:       v.MaxGrowth,
		DefaultGrowth:   v.DefaultGrowth,
		GrowthFloor:     v.GrowthFloor,
		GrowthCap:       v.GrowthCap,
		GrowthYears:     v.GrowthYears,
		FairValueModel:  valuation.Model(v.Model),
		SkipPartialYear: v.SkipPartialYear,
		AsOf:            now,
	}
}

// Scorer builds the scorer, merging the optional class file over the
// built-in dividend classes.
func (c *Config) Scorer() (*scoring.Scorer, error) {
	s := c.Scoring

	payout := scoring.DefaultPayoutPolicy()
	payout.Baseline = s.PayoutBaseline
	for key, threshold := range s.PayoutOverrides {
		category, ok := scoring.ParseSectorCategory(key)
		if !ok {
			return nil, apperrors.NewValidationError("scoring.payout_overrides", key, "unknown sector category")
		}
		payout.Overrides[category] = threshold
	}

	classes, err := scoring.LoadClassBook(s.ClassFile)
	if err != nil {
		return nil, err
	}

	return scoring.NewScorerWith(
		scoring.Weights{Yield: s.WeightYield, Growth: s.WeightGrowth, Valuation: s.WeightValuation},
		scoring.Ramps{
			YieldCeiling:  s.YieldCeiling,
			GrowthCeiling: s.GrowthCeiling,
			PEBest:        s.PEBest,
			PEWorst:       s.PEWorst,
			PEMissing:     s.PEMissing,
			GrowthMissing: s.GrowthMissing,
		},
		scoring.Thresholds{
			Gold:         s.Gold,
			GoldUpside:   s.GoldUpside,
			Buy:          s.Buy,
			Hold:         s.Hold,
			SpecialYield: s.SpecialYield,
		},
		payout,
		classes,
	), nil
}

// Breaker builds the provider circuit breaker thresholds.
func (c *Config) Breaker() provider.BreakerConfig {
	bc := provider.DefaultBreakerConfig()
	bc.FailureThreshold = c.Provider.BreakerFailures
	bc.Cooldown = c.Provider.BreakerCooldown
	return bc
}

// Notifier builds the run notifier; it has no channels unless configured.
func (c *Config) Notifier() *notify.Notifier {
	return notify.New(c.Notify)
}

// Unit returns the output unit for ratios.
func (c *Config) Unit() models.Unit {
	return models.Unit(c.Output.Unit)
}
