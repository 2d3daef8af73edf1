// Package config resolves listkeep settings from defaults, an optional
// .env file, LISTKEEP_* environment variables and command-line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Backend names
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
	BackendMemory = "memory"
)

// Config holds the resolved settings
type Config struct {
	Backend      string        `mapstructure:"backend"`
	Path         string        `mapstructure:"path"`
	Key          string        `mapstructure:"key"`
	QuotaBytes   int64         `mapstructure:"quota_bytes"`
	LogLevel     string        `mapstructure:"log_level"`
	Addr         string        `mapstructure:"addr"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// Keys lists every configuration key
var Keys = []string{"backend", "path", "key", "quota_bytes", "log_level", "addr", "poll_interval"}

// FlagName is the command-line flag bound to a configuration key
func FlagName(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

// DefaultPath is where the SQLite database lives unless configured
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".listkeep", "listkeep.db")
}

// SetDefaults registers the default of every key on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("backend", BackendSQLite)
	v.SetDefault("path", DefaultPath())
	v.SetDefault("key", "listkeep_data")
	v.SetDefault("quota_bytes", 5*1024*1024)
	v.SetDefault("log_level", "warn")
	v.SetDefault("addr", ":8080")
	v.SetDefault("poll_interval", 500*time.Millisecond)
}

// Load resolves the configuration. envFile is read if it exists; flags may
// be nil. Flags win over the environment, which wins over defaults.
func Load(envFile string, flags *pflag.FlagSet) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix("listkeep")
	v.AutomaticEnv()

	if flags != nil {
		for _, key := range Keys {
			f := flags.Lookup(FlagName(key))
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", f.Name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values that have a fixed set of choices
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSQLite, BackendFile, BackendMemory:
	default:
		return fmt.Errorf("unknown backend %q (want sqlite, file or memory)", c.Backend)
	}
	if c.Key == "" {
		return fmt.Errorf("key must not be empty")
	}
	if c.QuotaBytes < 0 {
		return fmt.Errorf("quota_bytes must not be negative")
	}
	return nil
}
