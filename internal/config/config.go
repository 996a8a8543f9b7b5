package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable holding the config path.
const EnvConfigPath = "SALON_CONFIG_PATH"

type Config struct {
	App struct {
		Environment string `yaml:"environment"`
		Timezone    string `yaml:"timezone"`
	} `yaml:"app"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup BackupConfig `yaml:"backup"`

	Redis struct {
		Address        string `yaml:"address"`
		Password       string `yaml:"password"`
		DB             int    `yaml:"db"`
		LockTTLSeconds int    `yaml:"lock_ttl_seconds"`
	} `yaml:"redis"`

	API struct {
		Address            string  `yaml:"address"`
		RateLimitPerSecond float64 `yaml:"rate_limit_per_second"`
		RateLimitBurst     int     `yaml:"rate_limit_burst"`
	} `yaml:"api"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Session struct {
		IdleMinutes int `yaml:"idle_minutes"`
	} `yaml:"session"`

	Agenda struct {
		RefreshSeconds int `yaml:"refresh_seconds"`
	} `yaml:"agenda"`

	Lifecycle struct {
		CompletionNote string `yaml:"completion_note"`
	} `yaml:"lifecycle"`

	Telegram struct {
		Enabled  bool    `yaml:"enabled"`
		BotToken string  `yaml:"bot_token"`
		Chats    []int64 `yaml:"chats"`
	} `yaml:"telegram"`

	Export struct {
		SheetName string `yaml:"sheet_name"`
	} `yaml:"export"`
}

// BackupConfig controls periodic database snapshots.
type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	IntervalHours int    `yaml:"interval_hours"`
	StoragePath   string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

func (b BackupConfig) Interval() time.Duration {
	if b.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(b.IntervalHours) * time.Hour
}

// Path resolves the config path from the argument, then SALON_CONFIG_PATH,
// then the default location.
func Path(path string) string {
	if path != "" {
		return path
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return env
	}
	return "configs/config.yaml"
}

// Load reads .env (if present) and the YAML config at path.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	path = Path(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/salon.db"
	}
	if cfg.Backup.StoragePath == "" {
		cfg.Backup.StoragePath = "data/backups"
	}
	if cfg.API.Address == "" {
		cfg.API.Address = ":8080"
	}
	if _, err := cfg.Location(); err != nil {
		return nil, err
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Location returns the salon's time zone; empty means local time.
func (c *Config) Location() (*time.Location, error) {
	if c.App.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.App.Timezone, err)
	}
	return loc, nil
}

func (c *Config) IdleMinutes() int {
	if c.Session.IdleMinutes <= 0 {
		return 30
	}
	return c.Session.IdleMinutes
}

func (c *Config) RefreshInterval() time.Duration {
	if c.Agenda.RefreshSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.Agenda.RefreshSeconds) * time.Second
}

func (c *Config) LockTTL() time.Duration {
	if c.Redis.LockTTLSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Redis.LockTTLSeconds) * time.Second
}

func (c *Config) RateLimit() (perSecond float64, burst int) {
	perSecond, burst = c.API.RateLimitPerSecond, c.API.RateLimitBurst
	if perSecond <= 0 {
		perSecond = 10
	}
	if burst <= 0 {
		burst = 20
	}
	return perSecond, burst
}

func (c *Config) SheetName() string {
	if c.Export.SheetName == "" {
		return "Agenda"
	}
	return c.Export.SheetName
}
