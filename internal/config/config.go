// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger      LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	Browser     BrowserConfig    `mapstructure:"browser" yaml:"browser"`
	Network     NetworkConfig    `mapstructure:"network" yaml:"network"`
	Screenshots ScreenshotConfig `mapstructure:"screenshots" yaml:"screenshots"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// ViewportConfig is the browser window content size.
type ViewportConfig struct {
	Width  int `mapstructure:"width" yaml:"width"`
	Height int `mapstructure:"height" yaml:"height"`
}

// BrowserConfig holds settings for the browser instance.
type BrowserConfig struct {
	// Headless runs the browser without a window at all.
	Headless bool `mapstructure:"headless" yaml:"headless"`
	// Background keeps the window but positions it off-screen so a headed
	// run does not steal focus.
	Background bool           `mapstructure:"background" yaml:"background"`
	Args       []string       `mapstructure:"args" yaml:"args"`
	Viewport   ViewportConfig `mapstructure:"viewport" yaml:"viewport"`
	Locale     string         `mapstructure:"locale" yaml:"locale"`
}

// NetworkConfig tunes timeouts and navigation waits.
type NetworkConfig struct {
	// ActionTimeout bounds every individual page operation (click, fill,
	// wait, ...). The CLI --timeout flag feeds this, in milliseconds.
	ActionTimeout     time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	// WaitUntil is the default navigation barrier: load, domcontentloaded,
	// or networkidle.
	WaitUntil string `mapstructure:"wait_until" yaml:"wait_until"`
	// IdleQuietPeriod is how long the network must be silent before a
	// networkidle navigation is considered settled.
	IdleQuietPeriod time.Duration `mapstructure:"idle_quiet_period" yaml:"idle_quiet_period"`
}

// ScreenshotConfig controls artifact capture.
type ScreenshotConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
	// CleanupOnSuccess deletes all captured artifacts after a fully
	// successful run. Defaults to off; forensic artifacts of a failed run
	// are never cleaned automatically.
	CleanupOnSuccess bool `mapstructure:"cleanup_on_success" yaml:"cleanup_on_success"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "stagecheck")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.background", false)
	v.SetDefault("browser.viewport.width", 1280)
	v.SetDefault("browser.viewport.height", 720)
	v.SetDefault("browser.locale", "en-US")

	// -- Network --
	v.SetDefault("network.action_timeout", "30s")
	v.SetDefault("network.navigation_timeout", "30s")
	v.SetDefault("network.wait_until", "networkidle")
	v.SetDefault("network.idle_quiet_period", "500ms")

	// -- Screenshots --
	v.SetDefault("screenshots.dir", filepath.Join(os.TempDir(), "stagecheck_screenshots"))
	v.SetDefault("screenshots.cleanup_on_success", false)
}

// NewDefaultConfig creates a configuration struct populated with defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with the defaults above, but fail loudly if it does.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a validated configuration from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	if c.Browser.Viewport.Width <= 0 || c.Browser.Viewport.Height <= 0 {
		return fmt.Errorf("browser.viewport dimensions must be positive")
	}
	if c.Network.ActionTimeout <= 0 {
		return fmt.Errorf("network.action_timeout must be a positive duration")
	}
	if c.Network.NavigationTimeout <= 0 {
		return fmt.Errorf("network.navigation_timeout must be a positive duration")
	}
	switch c.Network.WaitUntil {
	case "load", "domcontentloaded", "networkidle":
	default:
		return fmt.Errorf("network.wait_until must be one of load, domcontentloaded, networkidle (got %q)", c.Network.WaitUntil)
	}
	if c.Screenshots.Dir == "" {
		return fmt.Errorf("screenshots.dir must not be empty")
	}
	return nil
}
