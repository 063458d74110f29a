package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	amerrors "github.com/Aman-CERP/amansearch/internal/errors"
	"github.com/Aman-CERP/amansearch/internal/search"
)

const (
	// ProjectConfigName is the per-directory configuration file.
	ProjectConfigName = ".amansearch.yaml"

	// projectConfigAltName is accepted when ProjectConfigName is absent.
	projectConfigAltName = ".amansearch.yml"

	// envPrefix prefixes every environment override.
	envPrefix = "AMANSEARCH_"
)

// Config represents the complete amansearch configuration.
type Config struct {
	Version int `yaml:"version" json:"version"`

	// DataDir holds the physical indexes, their write locks and telemetry.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// Collections maps a logical handle to the physical indexes behind it.
	Collections map[string][]string `yaml:"collections" json:"collections"`

	// AliasFile is an optional YAML alias table that overrides Collections
	// and is reloaded when it changes.
	AliasFile string `yaml:"alias_file" json:"alias_file"`

	Search      SearchConfig      `yaml:"search" json:"search"`
	Ranking     RankingConfig     `yaml:"ranking" json:"ranking"`
	Aggregation AggregationConfig `yaml:"aggregation" json:"aggregation"`
	Engine      EngineConfig      `yaml:"engine" json:"engine"`
	Telemetry   TelemetryConfig   `yaml:"telemetry" json:"telemetry"`
	Logging     LoggingConfig     `yaml:"logging" json:"logging"`
}

// SearchConfig configures the request pipeline.
type SearchConfig struct {
	// DefaultSize is the page size used when a caller does not ask for one.
	DefaultSize int `yaml:"default_size" json:"default_size"`

	// MaxSize caps the page size a caller may request.
	MaxSize int `yaml:"max_size" json:"max_size"`

	// MaxOffset rejects deeper pagination (0 disables the check).
	MaxOffset int `yaml:"max_offset" json:"max_offset"`

	// MaxQueryLength rejects longer raw queries (0 disables the check).
	MaxQueryLength int `yaml:"max_query_length" json:"max_query_length"`

	// Timeout bounds one engine round trip, e.g. "5s".
	Timeout string `yaml:"timeout" json:"timeout"`

	// MaxConcurrency bounds parallel per-index sub-queries.
	MaxConcurrency int `yaml:"max_concurrency" json:"max_concurrency"`

	// Suggest enables the zero-result spelling fallback.
	Suggest bool `yaml:"suggest" json:"suggest"`

	DefaultFields   []string `yaml:"default_fields" json:"default_fields"`
	HighlightFields []string `yaml:"highlight_fields" json:"highlight_fields"`
}

// RankingConfig is the reviewable ranking table.
type RankingConfig struct {
	// Fields is ordered from highest to lowest weight.
	Fields []search.FieldWeight `yaml:"fields" json:"fields"`

	PhraseBoost  float64 `yaml:"phrase_boost" json:"phrase_boost"`
	TagBoost     float64 `yaml:"tag_boost" json:"tag_boost"`
	PromoteBoost float64 `yaml:"promote_boost" json:"promote_boost"`

	// ClickWeight scales the ln(1+click_count) popularity bonus.
	ClickWeight   float64 `yaml:"click_weight" json:"click_weight"`
	RescoreWindow int     `yaml:"rescore_window" json:"rescore_window"`

	DemotedExtensions []string `yaml:"demoted_extensions" json:"demoted_extensions"`
	DemotionBonus     float64  `yaml:"demotion_bonus" json:"demotion_bonus"`

	MinShouldMatch search.MinShouldMatch `yaml:"min_should_match" json:"min_should_match"`
}

// AggregationConfig lists the facet fields and date buckets.
type AggregationConfig struct {
	TermFields  []string            `yaml:"term_fields" json:"term_fields"`
	DateFields  []string            `yaml:"date_fields" json:"date_fields"`
	TermSize    int                 `yaml:"term_size" json:"term_size"`
	DateBuckets []search.DateBucket `yaml:"date_buckets" json:"date_buckets"`
}

// EngineConfig configures how engine calls are guarded.
type EngineConfig struct {
	// CircuitMaxFailures opens the circuit after this many consecutive failures.
	CircuitMaxFailures int `yaml:"circuit_max_failures" json:"circuit_max_failures"`

	// CircuitResetTimeout is how long an open circuit waits before probing, e.g. "30s".
	CircuitResetTimeout string `yaml:"circuit_reset_timeout" json:"circuit_reset_timeout"`

	// MaxRetries is the number of retries for retryable engine errors.
	MaxRetries int `yaml:"max_retries" json:"max_retries"`
}

// TelemetryConfig configures query metrics.
type TelemetryConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// DBPath is the SQLite file metrics are flushed to. Empty means
	// <data_dir>/telemetry.db.
	DBPath string `yaml:"db_path" json:"db_path"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level" json:"level"`

	// FilePath is the JSON log file. Empty means ~/.amansearch/logs/amansearch.log.
	FilePath string `yaml:"file_path" json:"file_path"`

	MaxSizeMB int `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int `yaml:"max_files" json:"max_files"`
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	defaults := search.DefaultConfig()
	return &Config{
		Version:     1,
		DataDir:     defaultDataDir(),
		Collections: map[string][]string{},
		Search: SearchConfig{
			DefaultSize:     20,
			MaxSize:         defaults.MaxSize,
			MaxOffset:       defaults.MaxOffset,
			MaxQueryLength:  defaults.MaxQueryLength,
			Timeout:         defaults.Timeout.String(),
			MaxConcurrency:  defaults.MaxConcurrency,
			Suggest:         defaults.Suggest,
			DefaultFields:   defaults.DefaultFields,
			HighlightFields: defaults.HighlightFields,
		},
		Ranking: RankingConfig{
			Fields:            defaults.Ranking.Fields,
			PhraseBoost:       defaults.Ranking.PhraseBoost,
			TagBoost:          defaults.Ranking.TagBoost,
			PromoteBoost:      defaults.Ranking.PromoteBoost,
			ClickWeight:       defaults.Ranking.ClickWeight,
			RescoreWindow:     defaults.Ranking.RescoreWindow,
			DemotedExtensions: defaults.Ranking.DemotedExtensions,
			DemotionBonus:     defaults.Ranking.DemotionBonus,
			MinShouldMatch:    defaults.Ranking.MinShouldMatch,
		},
		Aggregation: AggregationConfig{
			TermFields:  defaults.Aggregation.TermFields,
			DateFields:  defaults.Aggregation.DateFields,
			TermSize:    defaults.Aggregation.TermSize,
			DateBuckets: defaults.Aggregation.DateBuckets,
		},
		Engine: EngineConfig{
			CircuitMaxFailures:  5,
			CircuitResetTimeout: "30s",
			MaxRetries:          1,
		},
		Telemetry: TelemetryConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// defaultDataDir returns ~/.amansearch/data, or a temp path without a home.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".amansearch", "data")
	}
	return filepath.Join(home, ".amansearch", "data")
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/amansearch/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/amansearch/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "amansearch", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "amansearch", "config.yaml")
	}
	return filepath.Join(home, ".config", "amansearch", "config.yaml")
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// Load loads configuration for the given working directory.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/amansearch/config.yaml)
//  3. Project config (.amansearch.yaml in dir)
//  4. Environment variables (AMANSEARCH_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if err := cfg.loadFromDir(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadFile loads defaults overlaid with a single explicit file, then
// environment overrides. Used for --config.
func LoadFile(path string) (*Config, error) {
	cfg := NewConfig()
	if err := cfg.loadYAML(path); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ProjectConfigPath returns the project config file in dir, or "" if there
// is none. .yaml takes precedence over .yml.
func ProjectConfigPath(dir string) string {
	for _, name := range []string{ProjectConfigName, projectConfigAltName} {
		if path := filepath.Join(dir, name); fileExists(path) {
			return path
		}
	}
	return ""
}

func (c *Config) loadFromDir(dir string) error {
	path := ProjectConfigPath(dir)
	if path == "" {
		return nil
	}
	return c.loadYAML(path)
}

// loadYAML overlays a YAML file onto c. Keys absent from the file keep their
// current values; lists in the file replace the current list and collection
// maps are merged by handle.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return amerrors.ConfigFileError(path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return amerrors.ConfigError(fmt.Sprintf("failed to parse config file %s: %v", path, err), err)
	}
	c.resolvePaths(filepath.Dir(path))
	return nil
}

// resolvePaths makes relative file paths in the config relative to base.
func (c *Config) resolvePaths(base string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		if strings.HasPrefix(p, "~/") {
			if home, err := os.UserHomeDir(); err == nil {
				return filepath.Join(home, p[2:])
			}
		}
		return filepath.Join(base, p)
	}
	c.DataDir = abs(c.DataDir)
	c.AliasFile = abs(c.AliasFile)
	c.Telemetry.DBPath = abs(c.Telemetry.DBPath)
	c.Logging.FilePath = abs(c.Logging.FilePath)
}

// applyEnvOverrides applies AMANSEARCH_* environment variable overrides.
// Unparseable values are ignored.
func (c *Config) applyEnvOverrides() {
	if v := getenv("DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := getenv("ALIAS_FILE"); v != "" {
		c.AliasFile = v
	}
	if v := getenv("TIMEOUT"); v != "" {
		if _, err := time.ParseDuration(v); err == nil {
			c.Search.Timeout = v
		}
	}
	if v := getenv("MAX_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.MaxConcurrency = n
		}
	}
	if v := getenv("SUGGEST"); v != "" {
		c.Search.Suggest = parseBool(v)
	}
	if v := getenv("TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = parseBool(v)
	}
	if v := getenv("TELEMETRY_DB"); v != "" {
		c.Telemetry.DBPath = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

func getenv(name string) string {
	return strings.TrimSpace(os.Getenv(envPrefix + name))
}

func parseBool(v string) bool {
	v = strings.ToLower(v)
	return v == "true" || v == "1" || v == "yes"
}

// Validate validates the configuration. Errors carry ERR_102_CONFIG_INVALID.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return amerrors.ConfigError("data_dir must be set", nil)
	}
	for handle, indexes := range c.Collections {
		if handle == "" {
			return amerrors.ConfigError("collections: empty handle", nil)
		}
		for _, idx := range indexes {
			if idx == "" {
				return amerrors.ConfigError(fmt.Sprintf("collections.%s: empty index name", handle), nil)
			}
		}
	}

	s := c.Search
	if s.DefaultSize < 0 || s.MaxSize < 0 {
		return amerrors.ConfigError(fmt.Sprintf("search sizes must be non-negative, got default_size=%d max_size=%d", s.DefaultSize, s.MaxSize), nil)
	}
	if s.MaxSize > 0 && s.DefaultSize > s.MaxSize {
		return amerrors.ConfigError(fmt.Sprintf("search.default_size %d exceeds max_size %d", s.DefaultSize, s.MaxSize), nil)
	}
	if s.MaxOffset < 0 {
		return amerrors.ConfigError(fmt.Sprintf("search.max_offset must be non-negative, got %d", s.MaxOffset), nil)
	}
	if s.MaxQueryLength < 0 {
		return amerrors.ConfigError(fmt.Sprintf("search.max_query_length must be non-negative, got %d", s.MaxQueryLength), nil)
	}
	if _, err := parsePositiveDuration("search.timeout", s.Timeout); err != nil {
		return err
	}
	if s.MaxConcurrency < 1 {
		return amerrors.ConfigError(fmt.Sprintf("search.max_concurrency must be at least 1, got %d", s.MaxConcurrency), nil)
	}

	if err := c.Ranking.validate(); err != nil {
		return err
	}
	if err := c.Aggregation.validate(); err != nil {
		return err
	}

	if c.Engine.CircuitMaxFailures < 1 {
		return amerrors.ConfigError(fmt.Sprintf("engine.circuit_max_failures must be at least 1, got %d", c.Engine.CircuitMaxFailures), nil)
	}
	if _, err := parsePositiveDuration("engine.circuit_reset_timeout", c.Engine.CircuitResetTimeout); err != nil {
		return err
	}
	if c.Engine.MaxRetries < 0 {
		return amerrors.ConfigError(fmt.Sprintf("engine.max_retries must be non-negative, got %d", c.Engine.MaxRetries), nil)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return amerrors.ConfigError(fmt.Sprintf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level), nil)
	}
	return nil
}

func (r RankingConfig) validate() error {
	if len(r.Fields) == 0 {
		return amerrors.ConfigError("ranking.fields must list at least one field", nil)
	}
	for i, f := range r.Fields {
		if f.Field == "" || f.Weight <= 0 {
			return amerrors.ConfigError(fmt.Sprintf("ranking.fields[%d] needs a field and a positive weight", i), nil)
		}
		if i > 0 && f.Weight > r.Fields[i-1].Weight {
			return amerrors.ConfigError(fmt.Sprintf("ranking.fields must be ordered by weight, %s outweighs %s", f.Field, r.Fields[i-1].Field), nil)
		}
	}
	if r.PhraseBoost <= 1 {
		return amerrors.ConfigError(fmt.Sprintf("ranking.phrase_boost must be greater than 1, got %g", r.PhraseBoost), nil)
	}
	if r.TagBoost < 0 || r.PromoteBoost < 0 || r.DemotionBonus < 0 {
		return amerrors.ConfigError("ranking boosts must be non-negative", nil)
	}
	if r.ClickWeight < 0 {
		return amerrors.ConfigError(fmt.Sprintf("ranking.click_weight must be non-negative, got %g", r.ClickWeight), nil)
	}
	if r.RescoreWindow < 0 {
		return amerrors.ConfigError(fmt.Sprintf("ranking.rescore_window must be non-negative, got %d", r.RescoreWindow), nil)
	}
	m := r.MinShouldMatch
	if m.AllBelow < 0 || m.OneMissingBelow < m.AllBelow || m.Ratio <= 0 || m.Ratio > 1 {
		return amerrors.ConfigError(fmt.Sprintf("ranking.min_should_match is inconsistent: %+v", m), nil)
	}
	return nil
}

func (a AggregationConfig) validate() error {
	if a.TermSize < 1 {
		return amerrors.ConfigError(fmt.Sprintf("aggregation.term_size must be at least 1, got %d", a.TermSize), nil)
	}
	for i, b := range a.DateBuckets {
		if b.Label == "" || b.FromDays <= b.ToDays || b.ToDays < 0 {
			return amerrors.ConfigError(fmt.Sprintf("aggregation.date_buckets[%d] needs a label and from_days > to_days >= 0", i), nil)
		}
		if i > 0 && b.ToDays < a.DateBuckets[i-1].FromDays {
			return amerrors.ConfigError(fmt.Sprintf("aggregation.date_buckets[%d] overlaps %s", i, a.DateBuckets[i-1].Label), nil)
		}
	}
	return nil
}

func parsePositiveDuration(name, v string) (time.Duration, error) {
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, amerrors.ConfigError(fmt.Sprintf("%s is not a duration: %q", name, v), err)
	}
	if d <= 0 {
		return 0, amerrors.ConfigError(fmt.Sprintf("%s must be positive, got %s", name, v), nil)
	}
	return d, nil
}

// SearchEngineConfig converts the validated configuration into the search
// pipeline's configuration.
func (c *Config) SearchEngineConfig() search.EngineConfig {
	timeout, _ := time.ParseDuration(c.Search.Timeout)
	cfg := search.DefaultConfig()
	cfg.MaxSize = c.Search.MaxSize
	cfg.MaxOffset = c.Search.MaxOffset
	cfg.MaxQueryLength = c.Search.MaxQueryLength
	cfg.Timeout = timeout
	cfg.MaxConcurrency = c.Search.MaxConcurrency
	cfg.Suggest = c.Search.Suggest
	if len(c.Search.DefaultFields) > 0 {
		cfg.DefaultFields = c.Search.DefaultFields
	}
	if len(c.Search.HighlightFields) > 0 {
		cfg.HighlightFields = c.Search.HighlightFields
	}
	cfg.Ranking = search.RankingConfig{
		Fields:            c.Ranking.Fields,
		PhraseBoost:       c.Ranking.PhraseBoost,
		TagBoost:          c.Ranking.TagBoost,
		PromoteBoost:      c.Ranking.PromoteBoost,
		ClickWeight:       c.Ranking.ClickWeight,
		RescoreWindow:     c.Ranking.RescoreWindow,
		DemotedExtensions: c.Ranking.DemotedExtensions,
		DemotionBonus:     c.Ranking.DemotionBonus,
		MinShouldMatch:    c.Ranking.MinShouldMatch,
	}
	cfg.Aggregation = search.AggregationConfig{
		TermFields:  c.Aggregation.TermFields,
		DateFields:  c.Aggregation.DateFields,
		TermSize:    c.Aggregation.TermSize,
		DateBuckets: c.Aggregation.DateBuckets,
	}
	return cfg
}

// CircuitBreaker builds the engine circuit breaker from the engine section.
func (c *Config) CircuitBreaker() *amerrors.CircuitBreaker {
	reset, err := time.ParseDuration(c.Engine.CircuitResetTimeout)
	if err != nil || reset <= 0 {
		reset = 30 * time.Second
	}
	return amerrors.NewCircuitBreaker("search-engine",
		amerrors.WithMaxFailures(c.Engine.CircuitMaxFailures),
		amerrors.WithResetTimeout(reset))
}

// RetryConfig returns the engine retry policy.
func (c *Config) RetryConfig() amerrors.RetryConfig {
	cfg := amerrors.DefaultRetryConfig()
	cfg.MaxRetries = c.Engine.MaxRetries
	return cfg
}

// TelemetryDBPath returns the metrics database path.
func (c *Config) TelemetryDBPath() string {
	if c.Telemetry.DBPath != "" {
		return c.Telemetry.DBPath
	}
	return filepath.Join(c.DataDir, "telemetry.db")
}

// WriteYAML writes the configuration to a YAML file, creating its directory.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
