// Package config loads and validates randmov configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Listing   ListingConfig   `mapstructure:"listing"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	Generator GeneratorConfig `mapstructure:"generator"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int `mapstructure:"port"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
}

// ListingConfig addresses the watchlist pages.
type ListingConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	PagePath string `mapstructure:"page_path"`
	MaxPages int    `mapstructure:"max_pages"`
}

// HTTPConfig configures the page client and its retry behavior.
type HTTPConfig struct {
	UserAgent             string `mapstructure:"user_agent"`
	ConnectTimeoutSeconds int    `mapstructure:"connect_timeout_seconds"`
	ReadTimeoutSeconds    int    `mapstructure:"read_timeout_seconds"`
	MaxRetries            int    `mapstructure:"max_retries"`
	BackoffInitialMs      int    `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs          int    `mapstructure:"backoff_max_ms"`
	RespectRobots         bool   `mapstructure:"respect_robots"`
}

// HeadlessConfig configures the headless rendering subsystem.
type HeadlessConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxParallel   int  `mapstructure:"max_parallel"`
	NavTimeoutSec int  `mapstructure:"nav_timeout_seconds"`
	// SettleDelayMs is how long to let client-side scripts populate the grid
	// after the body is ready.
	SettleDelayMs int `mapstructure:"settle_delay_ms"`
}

// GeneratorConfig selects and tunes the random index generator.
type GeneratorConfig struct {
	Backend     string `mapstructure:"backend"`
	MaxAttempts int    `mapstructure:"max_attempts"`
	Seed        uint64 `mapstructure:"seed"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RANDMOV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Default returns the configuration used when no file or environment overrides
// are present.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults always decode.
	_ = v.Unmarshal(&cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 60)
	v.SetDefault("listing.base_url", "https://letterboxd.com")
	v.SetDefault("listing.page_path", "/%s/watchlist/page/%d/")
	v.SetDefault("listing.max_pages", 0)
	v.SetDefault("http.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 "+
		"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36")
	v.SetDefault("http.connect_timeout_seconds", 5)
	v.SetDefault("http.read_timeout_seconds", 10)
	v.SetDefault("http.max_retries", 2)
	v.SetDefault("http.backoff_initial_ms", 250)
	v.SetDefault("http.backoff_max_ms", 2000)
	v.SetDefault("http.respect_robots", false)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 25)
	v.SetDefault("headless.settle_delay_ms", 500)
	v.SetDefault("generator.backend", "simulator")
	v.SetDefault("generator.max_attempts", 0)
	v.SetDefault("generator.seed", 0)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.RequestTimeoutSeconds < 0 {
		return fmt.Errorf("server.request_timeout_seconds must be >= 0")
	}
	if c.Listing.BaseURL == "" {
		return fmt.Errorf("listing.base_url must be set")
	}
	if strings.Count(c.Listing.PagePath, "%s") != 1 || strings.Count(c.Listing.PagePath, "%d") != 1 ||
		strings.Index(c.Listing.PagePath, "%s") > strings.Index(c.Listing.PagePath, "%d") {
		return fmt.Errorf("listing.page_path must contain %%s (user) followed by %%d (page)")
	}
	if c.Listing.MaxPages < 0 {
		return fmt.Errorf("listing.max_pages must be >= 0")
	}
	if c.HTTP.ConnectTimeoutSeconds <= 0 {
		return fmt.Errorf("http.connect_timeout_seconds must be > 0")
	}
	if c.HTTP.ReadTimeoutSeconds <= 0 {
		return fmt.Errorf("http.read_timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.Headless.NavTimeoutSec < 0 {
		return fmt.Errorf("headless.nav_timeout_seconds must be >= 0")
	}
	if c.Headless.SettleDelayMs < 0 {
		return fmt.Errorf("headless.settle_delay_ms must be >= 0")
	}
	switch c.Generator.Backend {
	case "simulator", "classical":
	default:
		return fmt.Errorf("generator.backend must be simulator or classical, got %q", c.Generator.Backend)
	}
	if c.Generator.MaxAttempts < 0 {
		return fmt.Errorf("generator.max_attempts must be >= 0")
	}
	return nil
}

// ConnectTimeout returns the dial timeout for page requests.
func (c Config) ConnectTimeout() time.Duration {
	return time.Duration(c.HTTP.ConnectTimeoutSeconds) * time.Second
}

// ReadTimeout returns how long to wait for a page response.
func (c Config) ReadTimeout() time.Duration {
	return time.Duration(c.HTTP.ReadTimeoutSeconds) * time.Second
}

// Backoff returns the initial and maximum retry delays.
func (c Config) Backoff() (initial, maxDelay time.Duration) {
	return time.Duration(c.HTTP.BackoffInitialMs) * time.Millisecond,
		time.Duration(c.HTTP.BackoffMaxMs) * time.Millisecond
}

// NavTimeout bounds one headless page render.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Headless.NavTimeoutSec) * time.Second
}

// SettleDelay is the pause between the body becoming ready and the DOM snapshot.
func (c Config) SettleDelay() time.Duration {
	return time.Duration(c.Headless.SettleDelayMs) * time.Millisecond
}

// RequestTimeout bounds each API request; zero disables the limit.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}
