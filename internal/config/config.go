// Package config loads tsumiki-ls settings.
//
// Sources are layered, later ones winning: built-in defaults, a TOML file,
// TSUMIKI_LS_* environment variables, and explicitly set command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultFileName is looked up in the working directory when no config file
// is given explicitly.
const DefaultFileName = ".tsumiki-ls.toml"

// EnvPrefix prefixes environment overrides. Nested keys are separated by a
// double underscore: TSUMIKI_LS_SERVER__IDLE_TIMEOUT=30s.
const EnvPrefix = "TSUMIKI_LS_"

// Framing modes for the stdio transport.
const (
	FramingAuto   = "auto"
	FramingHeader = "header"
	FramingLine   = "line"
)

// Config is the full set of settings.
type Config struct {
	Log       LogConfig       `koanf:"log"`
	Server    ServerConfig    `koanf:"server"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Check     CheckConfig     `koanf:"check"`
}

// LogConfig controls logrus output. Logs never go to stdout.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	// File redirects logs from stderr to a file.
	File string `koanf:"file"`
}

// ServerConfig controls the language server transport.
type ServerConfig struct {
	Framing string `koanf:"framing"`
	// IdleTimeout closes the connection after this long without a message.
	// Zero disables it.
	IdleTimeout time.Duration `koanf:"idle_timeout"`
}

// TelemetryConfig toggles OpenTelemetry metrics and traces.
type TelemetryConfig struct {
	Metrics bool `koanf:"metrics"`
	Traces  bool `koanf:"traces"`
}

// CheckConfig controls the batch check command.
type CheckConfig struct {
	Color string `koanf:"color"`
	// Jobs bounds the number of files checked in parallel; 0 means one per CPU.
	Jobs int `koanf:"jobs"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Framing: FramingAuto,
		},
		Check: CheckConfig{
			Color: "auto",
		},
	}
}

// Options selects the sources passed to Load.
type Options struct {
	// Path is an explicit config file; it must exist. When empty,
	// DefaultFileName is loaded if present in the working directory.
	Path string

	// Flags holds command-line overrides keyed by dotted config path
	// (e.g. "server.framing"). Only flags the user actually set belong here.
	Flags map[string]any
}

// Load resolves the configuration from all sources.
func Load(opts Options) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	path, err := resolvePath(opts.Path)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: envKey,
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if len(opts.Flags) > 0 {
		if err := k.Load(confmap.Provider(opts.Flags, "."), nil); err != nil {
			return nil, fmt.Errorf("load flags: %w", err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKey maps TSUMIKI_LS_SERVER__IDLE_TIMEOUT to server.idle_timeout.
func envKey(k, v string) (string, any) {
	k = strings.ToLower(strings.TrimPrefix(k, EnvPrefix))
	return strings.ReplaceAll(k, "__", "."), v
}

func resolvePath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file: %w", err)
		}
		return explicit, nil
	}
	if _, err := os.Stat(DefaultFileName); err == nil {
		return DefaultFileName, nil
	}
	return "", nil
}

// Validate rejects unknown enumerated values.
func (c *Config) Validate() error {
	var errs []error
	if !slices.Contains([]string{"trace", "debug", "info", "warn", "warning", "error"}, strings.ToLower(c.Log.Level)) {
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}
	if !slices.Contains([]string{"text", "json"}, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format: must be text or json, got %q", c.Log.Format))
	}
	if !slices.Contains([]string{FramingAuto, FramingHeader, FramingLine}, c.Server.Framing) {
		errs = append(errs, fmt.Errorf("server.framing: must be auto, header or line, got %q", c.Server.Framing))
	}
	if c.Server.IdleTimeout < 0 {
		errs = append(errs, errors.New("server.idle_timeout: must not be negative"))
	}
	if !slices.Contains([]string{"auto", "always", "never"}, c.Check.Color) {
		errs = append(errs, fmt.Errorf("check.color: must be auto, always or never, got %q", c.Check.Color))
	}
	if c.Check.Jobs < 0 {
		errs = append(errs, errors.New("check.jobs: must not be negative"))
	}
	return errors.Join(errs...)
}
