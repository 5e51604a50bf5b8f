package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

type Config struct {
	Env      string `mapstructure:"HUGO_ENV"`
	LogLevel string `mapstructure:"HUGO_LOG_LEVEL"`
	Timezone string `mapstructure:"HUGO_TIMEZONE"`

	Database DBConfig      `mapstructure:",squash"`
	Shell    ShellConfig   `mapstructure:",squash"`
	Metrics  MetricsConfig `mapstructure:",squash"`

	location *time.Location
}

type DBConfig struct {
	Driver      string `mapstructure:"HUGO_DRIVER"`
	DataDir     string `mapstructure:"HUGO_DATA_DIR"`
	PostgresDSN string `mapstructure:"HUGO_POSTGRES_DSN"`
}

type ShellConfig struct {
	SQLiteBin string `mapstructure:"HUGO_SQLITE_BIN"`
	PsqlBin   string `mapstructure:"HUGO_PSQL_BIN"`
}

type MetricsConfig struct {
	PushgatewayURL string        `mapstructure:"HUGO_PUSHGATEWAY_URL"`
	PushTimeout    time.Duration `mapstructure:"HUGO_PUSH_TIMEOUT"`
}

func loadDotEnvFiles() {
	candidates := []string{
		".env",
		filepath.Join(xdg.ConfigHome, "hugo", ".env"),
	}

	seen := make(map[string]struct{})
	for _, path := range candidates {
		abs := path
		if !filepath.IsAbs(path) {
			if resolved, err := filepath.Abs(path); err == nil {
				abs = resolved
			}
		}
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}

		if _, err := os.Stat(path); err == nil {
			_ = gotenv.Load(path) // ignore errors; env vars already set take precedence
		}
	}
}

// Load reads configuration from the environment and .env files
func Load() (*Config, error) {
	loadDotEnvFiles()

	v := viper.New()
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Set defaults
	v.SetDefault("HUGO_ENV", "dev")
	v.SetDefault("HUGO_LOG_LEVEL", "warn")
	v.SetDefault("HUGO_TIMEZONE", "")
	v.SetDefault("HUGO_DRIVER", "sqlite")
	v.SetDefault("HUGO_DATA_DIR", filepath.Join(xdg.DataHome, "hugo", "db"))
	v.SetDefault("HUGO_POSTGRES_DSN", "")
	v.SetDefault("HUGO_SQLITE_BIN", "sqlite3")
	v.SetDefault("HUGO_PSQL_BIN", "psql")
	v.SetDefault("HUGO_PUSHGATEWAY_URL", "")
	v.SetDefault("HUGO_PUSH_TIMEOUT", "2s")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.DataDir == "" {
			return fmt.Errorf("HUGO_DATA_DIR is required")
		}
	case "postgres":
		if c.Database.PostgresDSN == "" {
			return fmt.Errorf("HUGO_POSTGRES_DSN is required when HUGO_DRIVER is postgres")
		}
	default:
		return fmt.Errorf("invalid HUGO_DRIVER %q (must be sqlite or postgres)", c.Database.Driver)
	}

	loc := time.Local
	if c.Timezone != "" {
		var err error
		if loc, err = time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("invalid HUGO_TIMEZONE %q: %w", c.Timezone, err)
		}
	}
	c.location = loc

	return nil
}

// Location is the zone absolute TTLs are read in and expiries are shown in
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.Local
	}
	return c.location
}

// SQLitePath returns the store file for a database name
func (c *DBConfig) SQLitePath(name string) string {
	return filepath.Join(c.DataDir, name+".sqlite")
}

// PostgresTable returns the table holding a database name's records
func (c *DBConfig) PostgresTable(name string) string {
	return "hugo_" + name
}
