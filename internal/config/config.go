// Package config loads sqlrest settings from defaults, a YAML file,
// SQLREST_ environment variables and command-line flags.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/bgunnarsson/sqlrest/internal/value"
)

// Defaults.
const (
	DefaultDatabase       = "db.sqlite"
	DefaultListen         = ":8000"
	DefaultJournalMode    = "wal"
	DefaultBusyTimeout    = 5 * time.Second
	DefaultMaxOpen        = 4
	DefaultAcquireTimeout = 5 * time.Second
	DefaultConnLifetime   = 5 * time.Minute
	EnvPrefix             = "SQLREST_"
)

// DefaultFiles are looked up in the working directory when no file is given.
var DefaultFiles = []string{"sqlrest.yaml", "sqlrest.yml"}

// PoolConfig sizes the connection pool.
type PoolConfig struct {
	MaxOpen         int           `koanf:"max_open"`
	MaxIdle         int           `koanf:"max_idle"`
	AcquireTimeout  time.Duration `koanf:"acquire_timeout"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

// LogConfig selects the log handler.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Config holds all settings.
type Config struct {
	Database    string        `koanf:"database"`
	Listen      string        `koanf:"listen"`
	JournalMode string        `koanf:"journal_mode"`
	BusyTimeout time.Duration `koanf:"busy_timeout"`
	Blob        string        `koanf:"blob"`
	Pool        PoolConfig    `koanf:"pool"`
	Log         LogConfig     `koanf:"log"`

	// FileUsed is the config file that was read, if any.
	FileUsed string `koanf:"-"`
}

func defaults() map[string]any {
	return map[string]any{
		"database":               DefaultDatabase,
		"listen":                 DefaultListen,
		"journal_mode":           DefaultJournalMode,
		"busy_timeout":           DefaultBusyTimeout,
		"blob":                   string(value.BlobModePlaceholder),
		"pool.max_open":          DefaultMaxOpen,
		"pool.max_idle":          DefaultMaxOpen,
		"pool.acquire_timeout":   DefaultAcquireTimeout,
		"pool.conn_max_lifetime": DefaultConnLifetime,
		"log.level":              "info",
		"log.format":             "text",
	}
}

// Default returns the configuration used when no source sets anything.
func Default() *Config {
	return &Config{
		Database:    DefaultDatabase,
		Listen:      DefaultListen,
		JournalMode: DefaultJournalMode,
		BusyTimeout: DefaultBusyTimeout,
		Blob:        string(value.BlobModePlaceholder),
		Pool: PoolConfig{
			MaxOpen:         DefaultMaxOpen,
			MaxIdle:         DefaultMaxOpen,
			AcquireTimeout:  DefaultAcquireTimeout,
			ConnMaxLifetime: DefaultConnLifetime,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads configuration. Precedence (highest to lowest):
// flags > env vars > config file > defaults.
// Only flags that were explicitly set override other sources; flag names
// map to keys by turning '-' into '_' and the "pool-"/"log-" prefixes into
// nested keys.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	used := findConfigFile(cfgFile)
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", used, err)
		}
	}

	// SQLREST_POOL_MAX_OPEN -> pool.max_open
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			return flagKey(f.Name), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.FileUsed = used

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks values that the loaders cannot.
func (c *Config) Validate() error {
	if c.Database == "" {
		return fmt.Errorf("database must not be empty")
	}
	if _, err := value.ParseBlobMode(c.Blob); err != nil {
		return err
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	if c.Pool.MaxOpen <= 0 {
		return fmt.Errorf("pool.max_open must be positive, got %d", c.Pool.MaxOpen)
	}
	if c.BusyTimeout < 0 {
		return fmt.Errorf("busy_timeout must not be negative")
	}
	if c.Pool.AcquireTimeout < 0 {
		return fmt.Errorf("pool.acquire_timeout must not be negative")
	}
	return nil
}

// BlobMode returns the validated blob mode.
func (c *Config) BlobMode() value.BlobMode {
	m, _ := value.ParseBlobMode(c.Blob)
	return m
}

// ParseLevel maps a level name onto slog.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return l, nil
}

func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range DefaultFiles {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

var nested = []string{"pool", "log"}

func envKey(s string) string {
	return nestKey(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_")
}

func flagKey(name string) string {
	return nestKey(strings.ReplaceAll(name, "-", "_"), "_")
}

func nestKey(key, sep string) string {
	for _, p := range nested {
		if strings.HasPrefix(key, p+sep) {
			return p + "." + strings.TrimPrefix(key, p+sep)
		}
	}
	return key
}
