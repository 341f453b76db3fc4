// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads arcade configuration from a YAML file and command-line
// flags.
package config

import (
	"errors"
	"os"
	"slices"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/arcade/internal/xdg"
)

// Defaults.
const (
	DefaultUnitsDir    = "./games"
	DefaultDebounce    = "100ms"
	DefaultAddr        = "127.0.0.1:5001"
	DefaultMetricsAddr = "127.0.0.1:9100"
	DefaultLogFormat   = "json"
	DefaultLogLevel    = "info"
)

// Config is the arcade configuration.
type Config struct {
	Units  UnitsConfig  `koanf:"units" json:"units,omitempty" jsonschema:"description=Unit discovery and reload"`
	Server ServerConfig `koanf:"server" json:"server,omitempty" jsonschema:"description=Listen addresses"`
	Log    LogConfig    `koanf:"log" json:"log,omitempty" jsonschema:"description=Logging"`
}

// UnitsConfig configures the units directory.
type UnitsConfig struct {
	Dir         string   `koanf:"dir" json:"dir,omitempty" jsonschema:"description=Directory scanned for units,minLength=1"`
	Ignore      []string `koanf:"ignore" json:"ignore,omitempty" jsonschema:"description=Glob patterns of base names to skip"`
	Watch       bool     `koanf:"watch" json:"watch,omitempty" jsonschema:"description=Reload units when their files change"`
	Debounce    string   `koanf:"debounce" json:"debounce,omitempty" jsonschema:"description=Delay before a changed unit is reloaded (Go duration)"`
	CallTimeout string   `koanf:"call_timeout" json:"call_timeout,omitempty" jsonschema:"description=Per-call limit for unit capabilities (Go duration; 0 disables)"`
}

// ServerConfig configures listeners.
type ServerConfig struct {
	Addr        string `koanf:"addr" json:"addr,omitempty" jsonschema:"description=HTTP API listen address,minLength=1"`
	MetricsAddr string `koanf:"metrics_addr" json:"metrics_addr,omitempty" jsonschema:"description=Metrics and health listen address (empty disables)"`
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `koanf:"format" json:"format,omitempty" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" json:"level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Units: UnitsConfig{
			Dir:         DefaultUnitsDir,
			Ignore:      []string{"_*", ".*"},
			Watch:       true,
			Debounce:    DefaultDebounce,
			CallTimeout: "0s",
		},
		Server: ServerConfig{
			Addr:        DefaultAddr,
			MetricsAddr: DefaultMetricsAddr,
		},
		Log: LogConfig{
			Format: DefaultLogFormat,
			Level:  DefaultLogLevel,
		},
	}
}

// DebounceDuration parses Units.Debounce.
func (c *Config) DebounceDuration() (time.Duration, error) {
	return parseDuration("units.debounce", c.Units.Debounce)
}

// CallTimeoutDuration parses Units.CallTimeout.
func (c *Config) CallTimeoutDuration() (time.Duration, error) {
	return parseDuration("units.call_timeout", c.Units.CallTimeout)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Units.Dir == "" {
		return oops.In("config").With("key", "units.dir").Errorf("units.dir is required")
	}
	if c.Server.Addr == "" {
		return oops.In("config").With("key", "server.addr").Errorf("server.addr is required")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return oops.In("config").With("key", "log.format").Errorf("log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Log.Level) {
		return oops.In("config").With("key", "log.level").Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	if _, err := c.DebounceDuration(); err != nil {
		return err
	}
	if _, err := c.CallTimeoutDuration(); err != nil {
		return err
	}
	return nil
}

func parseDuration(key, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, oops.In("config").With("key", key).Wrapf(err, "invalid duration for %s", key)
	}
	if d < 0 {
		return 0, oops.In("config").With("key", key).Errorf("%s must not be negative, got %s", key, s)
	}
	return d, nil
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"units-dir":    "units.dir",
	"ignore":       "units.ignore",
	"watch":        "units.watch",
	"debounce":     "units.debounce",
	"call-timeout": "units.call_timeout",
	"addr":         "server.addr",
	"metrics-addr": "server.metrics_addr",
	"log-format":   "log.format",
	"log-level":    "log.level",
}

// BindServeFlags registers the flags that override config keys.
func BindServeFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("units-dir", d.Units.Dir, "directory scanned for units")
	fs.StringSlice("ignore", d.Units.Ignore, "glob patterns of unit files to skip")
	fs.Bool("watch", d.Units.Watch, "reload units when their files change")
	fs.Duration("debounce", 100*time.Millisecond, "delay before a changed unit is reloaded")
	fs.Duration("call-timeout", 0, "per-call limit for unit capabilities (0 = none)")
	fs.String("addr", d.Server.Addr, "HTTP API listen address")
	fs.String("metrics-addr", d.Server.MetricsAddr, "metrics/health HTTP address (empty = disabled)")
	BindLogFlags(fs)
}

// BindLogFlags registers only the logging flags.
func BindLogFlags(fs *pflag.FlagSet) {
	fs.String("log-format", DefaultLogFormat, "log format (json or text)")
	fs.String("log-level", DefaultLogLevel, "log level (debug, info, warn, error)")
}

// Load reads configuration. path is the config file; when empty the XDG
// default is used if it exists. Changed flags in fs override the file and
// unchanged flags fill keys the file does not set. fs may be nil.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	resolved, err := resolvePath(path)
	if err != nil {
		return nil, err
	}
	if resolved != "" {
		data, err := os.ReadFile(resolved) //nolint:gosec // path comes from the operator
		if err != nil {
			return nil, oops.In("config").With("path", resolved).Hint("failed to read config file").Wrap(err)
		}
		if err := ValidateSchema(data); err != nil {
			return nil, oops.In("config").With("path", resolved).Wrap(err)
		}
		if err := k.Load(file.Provider(resolved), yaml.Parser()); err != nil {
			return nil, oops.In("config").With("path", resolved).Hint("failed to parse config file").Wrap(err)
		}
	}

	if fs != nil {
		provider := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(fs, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.In("config").Hint("failed to apply flags").Wrap(err)
		}
	}

	cfg := Default()
	// Slices decode element-wise onto existing values, so start empty.
	cfg.Units.Ignore = nil
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, oops.In("config").Hint("failed to decode config").Wrap(err)
	}
	if !k.Exists("units.ignore") {
		cfg.Units.Ignore = Default().Units.Ignore
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func resolvePath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	def, err := xdg.ConfigFile()
	if err != nil {
		if errors.Is(err, xdg.ErrNoHome) {
			return "", nil
		}
		return "", oops.In("config").Wrap(err)
	}
	if _, err := os.Stat(def); err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", oops.In("config").With("path", def).Wrap(err)
	}
	return def, nil
}
