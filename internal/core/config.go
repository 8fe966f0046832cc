package core

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the process-wide configuration, read once at startup.
type Config struct {
	APIURL    string `env:"EATER_API_URL"    envDefault:"http://localhost:8080"`
	APIToken  string `env:"EATER_API_TOKEN"`
	UserEmail string `env:"EATER_USER_EMAIL"`
	DataDir   string `env:"EATER_DATA_DIR"`

	FreshnessWindow            time.Duration `env:"EATER_FRESHNESS_WINDOW"             envDefault:"4h"`
	BackgroundRefreshThreshold time.Duration `env:"EATER_BACKGROUND_REFRESH_THRESHOLD" envDefault:"30m"`
	DayPollInterval            time.Duration `env:"EATER_DAY_POLL_INTERVAL"            envDefault:"5m"`
	EndpointSwitchDelay        time.Duration `env:"EATER_ENDPOINT_SWITCH_DELAY"        envDefault:"500ms"`
	StatsParallel              int           `env:"EATER_STATS_PARALLEL"               envDefault:"3"`

	LogLevel  string `env:"LOGGING_LEVEL"  envDefault:"INFO"`
	LogFormat string `env:"LOGGING_FORMAT" envDefault:"CONSOLE"`
}

// LoadConfig parses the environment into a Config and fills derived defaults.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = DataRoot()
	}
	if c.FreshnessWindow <= 0 {
		c.FreshnessWindow = DefaultFreshnessWindow
	}
	if c.BackgroundRefreshThreshold <= 0 {
		c.BackgroundRefreshThreshold = DefaultBackgroundRefreshThreshold
	}
	if c.DayPollInterval <= 0 {
		c.DayPollInterval = DefaultDayPollInterval
	}
	if c.EndpointSwitchDelay < 0 {
		c.EndpointSwitchDelay = DefaultEndpointSwitchDelay
	}
	if c.StatsParallel <= 0 {
		c.StatsParallel = DefaultStatsParallel
	}
}

// StatePath is the SQLite file holding the key-value store.
func (c Config) StatePath() string {
	return filepath.Join(c.DataDir, "state.db")
}

// ImagesDir is the directory holding locally stored food photos.
func (c Config) ImagesDir() string {
	return filepath.Join(c.DataDir, "images")
}
