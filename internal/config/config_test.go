package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "stagecheck", cfg.Logger.ServiceName)

	assert.False(t, cfg.Browser.Headless)
	assert.False(t, cfg.Browser.Background)
	assert.Equal(t, 1280, cfg.Browser.Viewport.Width)
	assert.Equal(t, 720, cfg.Browser.Viewport.Height)

	assert.Equal(t, 30*time.Second, cfg.Network.ActionTimeout)
	assert.Equal(t, 30*time.Second, cfg.Network.NavigationTimeout)
	assert.Equal(t, "networkidle", cfg.Network.WaitUntil)
	assert.Equal(t, 500*time.Millisecond, cfg.Network.IdleQuietPeriod)

	assert.NotEmpty(t, cfg.Screenshots.Dir)
	assert.False(t, cfg.Screenshots.CleanupOnSuccess)

	require.NoError(t, cfg.Validate())
}

func TestNewConfigFromViper_Overrides(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("browser.headless", true)
	v.Set("browser.viewport.width", 1920)
	v.Set("network.action_timeout", "5s")
	v.Set("screenshots.dir", "/tmp/shots")

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 1920, cfg.Browser.Viewport.Width)
	assert.Equal(t, 5*time.Second, cfg.Network.ActionTimeout)
	assert.Equal(t, "/tmp/shots", cfg.Screenshots.Dir)
}

func TestConfigValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "zero viewport width",
			mutate:  func(c *Config) { c.Browser.Viewport.Width = 0 },
			wantErr: "viewport",
		},
		{
			name:    "negative action timeout",
			mutate:  func(c *Config) { c.Network.ActionTimeout = -time.Second },
			wantErr: "action_timeout",
		},
		{
			name:    "zero navigation timeout",
			mutate:  func(c *Config) { c.Network.NavigationTimeout = 0 },
			wantErr: "navigation_timeout",
		},
		{
			name:    "bogus wait_until",
			mutate:  func(c *Config) { c.Network.WaitUntil = "eventually" },
			wantErr: "wait_until",
		},
		{
			name:    "empty screenshot dir",
			mutate:  func(c *Config) { c.Screenshots.Dir = "" },
			wantErr: "screenshots.dir",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
			}
		})
	}
}
