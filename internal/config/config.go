package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. HTT_API_ADDR.
const EnvPrefix = "HTT"

// Config is the daemon configuration.
type Config struct {
	StateDir    string          `mapstructure:"state_dir"`    // command/status/pid files
	DebugLog    string          `mapstructure:"debug_log"`    // NDJSON diagnostic log path
	CommandPoll time.Duration   `mapstructure:"command_poll"` // fallback polling interval
	Log         LogConfig       `mapstructure:"log"`
	Recorder    RecorderConfig  `mapstructure:"recorder"`
	Notifier    NotifierConfig  `mapstructure:"notifier"`
	API         APIConfig       `mapstructure:"api"`
	Residency   ResidencyConfig `mapstructure:"residency"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// RecorderConfig selects the ffmpeg binary and capture input.
type RecorderConfig struct {
	Binary      string        `mapstructure:"binary"`
	InputFormat string        `mapstructure:"input_format"`
	InputDevice string        `mapstructure:"input_device"`
	StartGrace  time.Duration `mapstructure:"start_grace"`
	StopTimeout time.Duration `mapstructure:"stop_timeout"`
}

type NotifierConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Desktop  bool          `mapstructure:"desktop"`
}

type APIConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Addr        string `mapstructure:"addr"`
	EventBuffer int    `mapstructure:"event_buffer"`
}

type ResidencyConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DefaultPath returns ~/.config/htt/config.toml
func DefaultPath() string {
	return filepath.Join(homeDir(), ".config", "htt", "config.toml")
}

// DefaultStateDir returns ~/.cache/htt
func DefaultStateDir() string {
	return filepath.Join(homeDir(), ".cache", "htt")
}

func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return os.TempDir()
}

func setDefaults(v *viper.Viper) {
	stateDir := DefaultStateDir()
	v.SetDefault("state_dir", stateDir)
	v.SetDefault("debug_log", "")
	v.SetDefault("command_poll", time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")

	v.SetDefault("recorder.binary", "ffmpeg")
	v.SetDefault("recorder.input_format", "")
	v.SetDefault("recorder.input_device", "")
	v.SetDefault("recorder.start_grace", 300*time.Millisecond)
	v.SetDefault("recorder.stop_timeout", 5*time.Second)

	v.SetDefault("notifier.interval", time.Second)
	v.SetDefault("notifier.desktop", true)

	v.SetDefault("api.enabled", true)
	v.SetDefault("api.addr", "127.0.0.1:7821")
	v.SetDefault("api.event_buffer", 16)

	v.SetDefault("residency.enabled", true)
}

// Default returns the configuration used when no file or env overrides exist.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var c Config
	// Defaults always decode.
	_ = v.Unmarshal(&c)
	c.fill()
	return &c
}

// Load reads path (TOML, YAML or JSON by extension) over the defaults and
// applies HTT_* environment overrides. An empty path reads DefaultPath if it
// exists; an explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if filepath.Ext(path) == "" {
			v.SetConfigType("toml")
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	c.fill()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadDotEnv loads .env files into the process environment before Load so
// HTT_* values can live next to the working directory. Missing files are
// ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// fill derives paths that depend on other fields.
func (c *Config) fill() {
	c.StateDir = expandHome(c.StateDir)
	c.Log.File = expandHome(c.Log.File)
	if c.DebugLog == "" {
		c.DebugLog = filepath.Join(c.StateDir, "htt-debug.ndjson")
	}
	c.DebugLog = expandHome(c.DebugLog)
}

// Validate checks Config for validity
func (c *Config) Validate() error {
	if c.StateDir == "" {
		return fmt.Errorf("state_dir must not be empty")
	}
	if c.CommandPoll < 100*time.Millisecond || c.CommandPoll > time.Minute {
		return fmt.Errorf("command_poll must be between 100ms and 1m, got %s", c.CommandPoll)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	if c.Recorder.Binary == "" {
		return fmt.Errorf("recorder.binary must not be empty")
	}
	if (c.Recorder.InputFormat == "") != (c.Recorder.InputDevice == "") {
		return fmt.Errorf("recorder.input_format and recorder.input_device must be set together")
	}
	if c.Recorder.StartGrace <= 0 {
		return fmt.Errorf("recorder.start_grace must be positive, got %s", c.Recorder.StartGrace)
	}
	if c.Recorder.StopTimeout <= 0 {
		return fmt.Errorf("recorder.stop_timeout must be positive, got %s", c.Recorder.StopTimeout)
	}

	if c.Notifier.Interval <= 0 {
		return fmt.Errorf("notifier.interval must be positive, got %s", c.Notifier.Interval)
	}

	if c.API.Enabled && c.API.Addr == "" {
		return fmt.Errorf("api.addr must be set when the API is enabled")
	}
	if c.API.EventBuffer < 1 {
		return fmt.Errorf("api.event_buffer must be at least 1, got %d", c.API.EventBuffer)
	}
	return nil
}

// PIDPath returns the daemon pid file path.
func (c *Config) PIDPath() string {
	return filepath.Join(c.StateDir, "htt-recorder.pid")
}

func expandHome(p string) string {
	if p == "~" {
		return homeDir()
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(homeDir(), p[2:])
	}
	return p
}
