// Package config loads the panel's TOML configuration and watches it for
// changes so detection settings can be applied to live sessions without a
// restart.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// ConfigFileName is the TOML config file for user preferences
const ConfigFileName = "config.toml"

// Config is the user-facing configuration in TOML format.
type Config struct {
	// Detection configures prompt-wait classification for all sessions
	Detection DetectionSettings `toml:"detection"`

	// Server configures the websocket endpoint
	Server ServerSettings `toml:"server"`

	// Session configures the command spawned for new sessions
	Session SessionSettings `toml:"session"`

	// Logs configures log output and rotation
	Logs LogSettings `toml:"logs"`
}

// DetectionSettings controls the prompt-wait classifier.
type DetectionSettings struct {
	// Enabled turns wait detection on or off. Defaults to true.
	Enabled *bool `toml:"enabled"`

	// ShowDelayMS is the quiet period in milliseconds before a matched
	// prompt is reported as waiting. Defaults to 2000.
	ShowDelayMS int `toml:"show_delay_ms"`

	// CustomPatterns are extra regular expressions matched against recent
	// output, in addition to the built-in prompt patterns. Invalid entries
	// are skipped with a warning.
	CustomPatterns []string `toml:"custom_patterns"`

	// BufferCapacity is the number of recent output characters retained
	// per session for matching. Defaults to 500.
	BufferCapacity int `toml:"buffer_capacity"`
}

// ServerSettings configures the websocket listener.
type ServerSettings struct {
	// Addr is the listen address, e.g. "127.0.0.1:8787"
	Addr string `toml:"addr"`

	// AuthToken, when set, is required as a query parameter on the
	// websocket upgrade request.
	AuthToken string `toml:"auth_token"`
}

// SessionSettings configures the default command for new sessions.
type SessionSettings struct {
	// Command is the program spawned for each session. Defaults to the
	// user's shell.
	Command string `toml:"command"`

	// Args are passed to the command.
	Args []string `toml:"args"`

	// Cols and Rows are the initial terminal dimensions.
	Cols int `toml:"cols"`
	Rows int `toml:"rows"`
}

// LogSettings configures log output and rotation.
type LogSettings struct {
	// Level is "debug", "info", "warn", or "error". Defaults to "info".
	Level string `toml:"level"`

	// MaxSizeMB is the rotation threshold for the log file. Defaults to 10.
	MaxSizeMB int `toml:"max_size_mb"`

	// MaxBackups is how many rotated files to keep. Defaults to 3.
	MaxBackups int `toml:"max_backups"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	enabled := true
	return &Config{
		Detection: DetectionSettings{
			Enabled:        &enabled,
			ShowDelayMS:    2000,
			BufferCapacity: 500,
		},
		Server: ServerSettings{
			Addr: "127.0.0.1:8787",
		},
		Session: SessionSettings{
			Command: defaultShell(),
			Cols:    80,
			Rows:    24,
		},
		Logs: LogSettings{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

func defaultShell() string {
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell
	}
	return "/bin/sh"
}

// DefaultPath returns the conventional config file location,
// ~/.claude-terminal-panel/config.toml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ConfigFileName
	}
	return filepath.Join(home, ".claude-terminal-panel", ConfigFileName)
}

// Load reads the config file at path, filling defaults for anything the
// file leaves out. A missing file is not an error and yields defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.fillDefaults()
	return cfg, nil
}

// fillDefaults backfills zero values the decode left behind, so partial
// files behave predictably.
func (c *Config) fillDefaults() {
	if c.Detection.Enabled == nil {
		enabled := true
		c.Detection.Enabled = &enabled
	}
	if c.Detection.ShowDelayMS <= 0 {
		c.Detection.ShowDelayMS = 2000
	}
	if c.Detection.BufferCapacity <= 0 {
		c.Detection.BufferCapacity = 500
	}
	if c.Server.Addr == "" {
		c.Server.Addr = "127.0.0.1:8787"
	}
	if c.Session.Command == "" {
		c.Session.Command = defaultShell()
	}
	if c.Session.Cols <= 0 {
		c.Session.Cols = 80
	}
	if c.Session.Rows <= 0 {
		c.Session.Rows = 24
	}
	if c.Logs.Level == "" {
		c.Logs.Level = "info"
	}
	if c.Logs.MaxSizeMB <= 0 {
		c.Logs.MaxSizeMB = 10
	}
	if c.Logs.MaxBackups <= 0 {
		c.Logs.MaxBackups = 3
	}
}

// DetectionEnabled resolves the optional enabled flag.
func (c *Config) DetectionEnabled() bool {
	return c.Detection.Enabled == nil || *c.Detection.Enabled
}

// ShowDelay returns the classifier settle delay as a duration.
func (c *Config) ShowDelay() time.Duration {
	return time.Duration(c.Detection.ShowDelayMS) * time.Millisecond
}
