// Package config handles the iridium.toml configuration file and logger
// construction.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/akhildatla/iridium/pkg/vm"
	"github.com/retroenv/retrogolib/log"
)

// FileName is the conventional configuration file name.
const FileName = "iridium.toml"

// ErrInvalidConfig is wrapped by all validation failures.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config represents an iridium.toml configuration.
type Config struct {
	Machine Machine `toml:"machine"`
	Shell   Shell   `toml:"shell"`
	Log     Log     `toml:"log"`
}

// Machine configures the virtual machine.
type Machine struct {
	HeapSize    int    `toml:"heap_size"`
	StrictJumps bool   `toml:"strict_jumps"`
	Division    string `toml:"division"`
	MaxSteps    int64  `toml:"max_steps"`
}

// Shell configures the interactive shell.
type Shell struct {
	Prompt string `toml:"prompt"`
	Banner bool   `toml:"banner"`
}

// Log configures logging.
type Log struct {
	Level string `toml:"level"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Machine: Machine{
			HeapSize: vm.DefaultHeapSize,
			Division: vm.DivisionCompat.String(),
		},
		Shell: Shell{
			Prompt: ">>> ",
			Banner: true,
		},
		Log: Log{
			Level: "info",
		},
	}
}

// Load parses a configuration file. Keys missing from the file keep their
// default values. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks all values for consistency.
func (c *Config) Validate() error {
	if c.Machine.HeapSize < vm.WordSize {
		return fmt.Errorf("%w: heap_size %d is smaller than one word", ErrInvalidConfig, c.Machine.HeapSize)
	}
	if c.Machine.MaxSteps < 0 {
		return fmt.Errorf("%w: max_steps must not be negative", ErrInvalidConfig)
	}
	if _, err := vm.ParseDivisionMode(c.Machine.Division); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return ValidateLevel(c.Log.Level)
}

// VMOptions returns the machine options described by the configuration.
func (c *Config) VMOptions(logger *log.Logger) []vm.Option {
	division, _ := vm.ParseDivisionMode(c.Machine.Division)
	return []vm.Option{
		vm.WithHeapSize(c.Machine.HeapSize),
		vm.WithStrictJumps(c.Machine.StrictJumps),
		vm.WithDivisionMode(division),
		vm.WithLogger(logger),
	}
}

// NewVM creates a machine configured by c.
func (c *Config) NewVM(logger *log.Logger) *vm.VM {
	m := vm.NewVM(c.VMOptions(logger)...)
	m.SetMaxSteps(c.Machine.MaxSteps)
	return m
}

// ValidateLevel checks a log level name.
func ValidateLevel(s string) error {
	switch strings.ToLower(s) {
	case "", "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, s)
	}
}

// Logger creates the logger for the configured level. The debug and quiet
// command line flags take precedence over the file.
func (c *Config) Logger(debug, quiet bool) *log.Logger {
	cfg := log.DefaultConfig()
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		cfg.Level = log.DebugLevel
	case "warn", "warning":
		cfg.Level = log.WarnLevel
	case "error":
		cfg.Level = log.ErrorLevel
	}
	if debug {
		cfg.Level = log.DebugLevel
	} else if quiet {
		cfg.Level = log.ErrorLevel
	}
	return log.NewWithConfig(cfg)
}

// CreateLogger creates a logger with the default configuration adjusted by
// the debug and quiet flags.
func CreateLogger(debug, quiet bool) *log.Logger {
	return Default().Logger(debug, quiet)
}
