package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	UI       UIConfig       `mapstructure:"ui"`
	Log      LogConfig      `mapstructure:"log"`
	Dedupe   DedupeConfig   `mapstructure:"dedupe"`
	Formats  []ImportFormat `mapstructure:"format"`
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// UIConfig holds presentation settings.
type UIConfig struct {
	DateFormat     string `mapstructure:"date_format"`
	CurrencySymbol string `mapstructure:"currency_symbol"`
	Timezone       string `mapstructure:"timezone"`
	Timeframe      string `mapstructure:"timeframe"`
	Granularity    string `mapstructure:"granularity"`
}

// LogConfig controls the log file. The TUI owns the terminal, so logs never go to stdout.
type LogConfig struct {
	Level string `mapstructure:"level"`
	Path  string `mapstructure:"path"`
}

// DedupeConfig tunes duplicate detection.
type DedupeConfig struct {
	WindowDays  int     `mapstructure:"window_days"`
	MaxDistance float64 `mapstructure:"max_distance"`
}

// ImportFormat describes how to read one CSV layout. Column indexes are
// zero-based; the optional columns are nil when absent.
type ImportFormat struct {
	Name          string `mapstructure:"name"`
	Description   string `mapstructure:"description"`
	DateFormat    string `mapstructure:"date_format"`
	HasHeader     bool   `mapstructure:"has_header"`
	Delimiter     string `mapstructure:"delimiter"`
	DateCol       int    `mapstructure:"date_col"`
	AmountCol     int    `mapstructure:"amount_col"`
	TitleCol      int    `mapstructure:"title_col"`
	TitleJoin     bool   `mapstructure:"title_join"` // join title_col..end
	CategoryCol   *int   `mapstructure:"category_col"`
	NotesCol      *int   `mapstructure:"notes_col"`
	TagsCol       *int   `mapstructure:"tags_col"`
	CollectionCol *int   `mapstructure:"collection_col"` // blank cells use the import's collection
	AmountStrip   string `mapstructure:"amount_strip"`
	Negate        bool   `mapstructure:"negate"`
}

// DefaultFormats is used when the config declares none.
func DefaultFormats() []ImportFormat {
	return []ImportFormat{
		{
			Name:        "simple",
			Description: "date, amount, title (no header, day-first dates)",
			DateFormat:  "2/01/2006",
			Delimiter:   ",",
			DateCol:     0,
			AmountCol:   1,
			TitleCol:    2,
			TitleJoin:   true,
			AmountStrip: ",$",
		},
	}
}

// FindFormat looks up a format by case-insensitive name.
func (c Config) FindFormat(name string) (ImportFormat, bool) {
	for _, f := range c.Formats {
		if strings.EqualFold(f.Name, strings.TrimSpace(name)) {
			return f, true
		}
	}
	return ImportFormat{}, false
}

// Location resolves ui.timezone, falling back to the local zone.
func (c Config) Location() *time.Location {
	tz := strings.TrimSpace(c.UI.Timezone)
	if tz == "" || strings.EqualFold(tz, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Local
	}
	return loc
}

func dataDir() string {
	if d := os.Getenv("XDG_DATA_HOME"); d != "" {
		return filepath.Join(d, "recordboard")
	}
	return filepath.Join(os.Getenv("HOME"), ".local", "share", "recordboard")
}

// Path returns the config file location. RECORDBOARD_CONFIG overrides it.
func Path() string {
	if p := os.Getenv("RECORDBOARD_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(Dir(), "config.toml")
}

// Dir returns the directory holding config and prefs files.
func Dir() string {
	if p := os.Getenv("RECORDBOARD_CONFIG"); p != "" {
		return filepath.Dir(p)
	}
	if d, err := os.UserConfigDir(); err == nil {
		return filepath.Join(d, "recordboard")
	}
	return filepath.Join(os.Getenv("HOME"), ".config", "recordboard")
}

func newViper() *viper.Viper {
	v := viper.New()

	// default values
	v.SetDefault("database.path", filepath.Join(dataDir(), "recordboard.db"))
	v.SetDefault("ui.date_format", "02 Jan")
	v.SetDefault("ui.currency_symbol", "$")
	v.SetDefault("ui.timezone", "Local")
	v.SetDefault("ui.timeframe", "this-month")
	v.SetDefault("ui.granularity", "week")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.path", filepath.Join(dataDir(), "recordboard.log"))
	v.SetDefault("dedupe.window_days", 7)
	v.SetDefault("dedupe.max_distance", 0.4)

	v.SetConfigType("toml")
	v.SetEnvPrefix("RECORDBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configuration from file and env. Env var overrides use prefix RECORDBOARD_.
// A missing config file is not an error.
func Load() (Config, error) {
	v := newViper()
	path := Path()
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if len(c.Formats) == 0 {
		c.Formats = DefaultFormats()
	}
	return c, nil
}

// Save writes the non-format settings of cfg to the config file, creating
// the directory if needed. Import formats are left to hand editing.
func Save(cfg Config) error {
	path := Path()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	}
	v.Set("database.path", cfg.Database.Path)
	v.Set("ui.date_format", cfg.UI.DateFormat)
	v.Set("ui.currency_symbol", cfg.UI.CurrencySymbol)
	v.Set("ui.timezone", cfg.UI.Timezone)
	v.Set("ui.timeframe", cfg.UI.Timeframe)
	v.Set("ui.granularity", cfg.UI.Granularity)
	v.Set("log.level", cfg.Log.Level)
	v.Set("log.path", cfg.Log.Path)
	v.Set("dedupe.window_days", cfg.Dedupe.WindowDays)
	v.Set("dedupe.max_distance", cfg.Dedupe.MaxDistance)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
