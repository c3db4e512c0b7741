package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"worklink/internal/linker"
	"worklink/internal/pattern"
)

// HistoryConfig controls the persisted event→work-item history.
type HistoryConfig struct {
	// Enabled toggles the history linking tier.
	Enabled bool `yaml:"enabled"`
	// MaxSize bounds the number of retained entries. Zero or negative
	// falls back to the built-in default.
	MaxSize int `yaml:"max_size"`
}

// LogConfig selects log verbosity and output encoding.
type LogConfig struct {
	// Level is a zap level name ("debug", "info", "warn", "error").
	Level string `yaml:"level"`
	// Format is "console" or "json".
	Format string `yaml:"format"`
}

// Config is the top-level application configuration.
type Config struct {
	// Timezone is the IANA timezone used for day partitioning and
	// attendance parsing (e.g. "Asia/Tokyo").
	Timezone string `yaml:"timezone"`

	// FeedSource is the calendar feed: an http(s) URL or a local ICS
	// file path.
	FeedSource string `yaml:"feed_source"`

	// AttendancePath is the extracted attendance-record text file.
	AttendancePath string `yaml:"attendance_path"`

	// CatalogPath is the work-item catalog YAML file.
	CatalogPath string `yaml:"catalog_path"`

	// DatabasePath is the SQLite file backing the history store.
	DatabasePath string `yaml:"database_path"`

	// CacheDir holds the conditional-request cache for the feed fetcher.
	CacheDir string `yaml:"cache_dir"`

	// RefreshCron is a cron-style schedule string (e.g. "*/30 * * * *")
	// used for periodic reconciliation in daemon mode.
	RefreshCron string `yaml:"refresh"`

	// StalenessDays is the lookback window: non-recurring events whose
	// day lies further in the past are skipped during normalization.
	StalenessDays int `yaml:"staleness_days"`

	// IgnoreRules excludes matching events from linking entirely.
	IgnoreRules []pattern.Rule `yaml:"ignore_rules"`

	History HistoryConfig `yaml:"history"`

	// TimeOff, if non-nil, enables the time-off pattern tier.
	TimeOff *linker.TimeOffConfig `yaml:"time_off,omitempty"`

	// PaidLeave, if non-nil, enables synthetic paid-leave events.
	PaidLeave *linker.PaidLeaveConfig `yaml:"paid_leave,omitempty"`

	WorkSchedule linker.WorkScheduleConfig `yaml:"work_schedule"`

	Log LogConfig `yaml:"log"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Timezone:       "Asia/Tokyo",
		FeedSource:     "",
		AttendancePath: "",
		CatalogPath:    "./work-items.yaml",
		DatabasePath:   "./var/worklink.db",
		CacheDir:       "./var/feed-cache",
		RefreshCron:    "*/30 * * * *",
		StalenessDays:  30,
		IgnoreRules:    []pattern.Rule{},
		History:        HistoryConfig{Enabled: true, MaxSize: 300},
		Log:            LogConfig{Level: "info", Format: "console"},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Timezone == "" {
		c.Timezone = "Asia/Tokyo"
	}
	if c.CatalogPath == "" {
		c.CatalogPath = "./work-items.yaml"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "./var/worklink.db"
	}
	if c.CacheDir == "" {
		c.CacheDir = "./var/feed-cache"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "*/30 * * * *"
	}
	if c.StalenessDays <= 0 {
		c.StalenessDays = 30
	}
	if c.IgnoreRules == nil {
		c.IgnoreRules = []pattern.Rule{}
	}
	if c.History.MaxSize <= 0 {
		c.History.MaxSize = 300
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	switch c.Log.Format {
	case "console", "json":
		// ok
	default:
		c.Log.Format = "console"
	}
}

// Settings assembles the linker settings out of the loaded config.
func (c *Config) Settings() linker.Settings {
	return linker.Settings{
		IgnoreRules:    c.IgnoreRules,
		TimeOff:        c.TimeOff,
		HistoryLinking: c.History.Enabled,
		WorkSchedule:   c.WorkSchedule,
		PaidLeave:      c.PaidLeave,
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// The write is atomic: the config is marshaled into a temp file in the
// target directory and renamed over the destination, with 0600
// permissions on the final file.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".worklink-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	return nil
}

// Save delegates to the package-level Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
