package server

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"gladewood/server/internal/fov"
)

// Config holds the runtime tunables keeping the hub, transport, and
// diagnostics surface consistent.
type Config struct {
	ListenAddr      string
	DiagnosticsAddr string
	TickInterval    time.Duration
	FOVRadius       int32
	NetworkMargin   int32
	WorldsDir       string
	WorldName       string
	LogLevel        string
	LogFormat       string
}

// DefaultConfig returns the values used when no file or environment
// overrides are present.
func DefaultConfig() Config {
	return Config{
		ListenAddr:      "127.0.0.1:4433",
		DiagnosticsAddr: "127.0.0.1:8190",
		TickInterval:    50 * time.Millisecond,
		FOVRadius:       fov.DefaultRadius,
		NetworkMargin:   fov.DefaultNetworkMargin,
		WorldsDir:       "worlds",
		WorldName:       "gladewood",
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

// LoadConfig reads overrides from an optional config file and from
// GLADEWOOD_* environment variables, layered over the defaults.
func LoadConfig(path string) (Config, error) {
	def := DefaultConfig()

	v := viper.New()
	v.SetDefault("listen_addr", def.ListenAddr)
	v.SetDefault("diagnostics_addr", def.DiagnosticsAddr)
	v.SetDefault("tick_interval", def.TickInterval)
	v.SetDefault("fov_radius", def.FOVRadius)
	v.SetDefault("network_margin", def.NetworkMargin)
	v.SetDefault("worlds_dir", def.WorldsDir)
	v.SetDefault("world_name", def.WorldName)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("log_format", def.LogFormat)

	v.SetEnvPrefix("GLADEWOOD")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := Config{
		ListenAddr:      v.GetString("listen_addr"),
		DiagnosticsAddr: v.GetString("diagnostics_addr"),
		TickInterval:    v.GetDuration("tick_interval"),
		FOVRadius:       v.GetInt32("fov_radius"),
		NetworkMargin:   v.GetInt32("network_margin"),
		WorldsDir:       v.GetString("worlds_dir"),
		WorldName:       v.GetString("world_name"),
		LogLevel:        v.GetString("log_level"),
		LogFormat:       v.GetString("log_format"),
	}
	return cfg.normalized(), nil
}

// normalized clamps out-of-range values back to the defaults so a bad
// override degrades instead of breaking the tick loop.
func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.ListenAddr == "" {
		c.ListenAddr = def.ListenAddr
	}
	if c.DiagnosticsAddr == "" {
		c.DiagnosticsAddr = def.DiagnosticsAddr
	}
	if c.TickInterval <= 0 {
		c.TickInterval = def.TickInterval
	}
	if c.FOVRadius <= 0 {
		c.FOVRadius = def.FOVRadius
	}
	if c.NetworkMargin < 0 {
		c.NetworkMargin = def.NetworkMargin
	}
	if c.WorldsDir == "" {
		c.WorldsDir = def.WorldsDir
	}
	if c.WorldName == "" {
		c.WorldName = def.WorldName
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = def.LogFormat
	}
	return c
}
