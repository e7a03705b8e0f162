// Package config loads nucleus.toml, the knobs for the simulated machine,
// tracing, and the demo workload.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the configuration file searched for upward from the working
// directory.
const FileName = "nucleus.toml"

// Config is the full configuration tree.
type Config struct {
	Machine MachineConfig `toml:"machine"`
	Trace   TraceConfig   `toml:"trace"`
	Demo    DemoConfig    `toml:"demo"`
}

// MachineConfig selects the simulated hardware parameters.
type MachineConfig struct {
	// Hz is the periodic timer interrupt rate; 0 means the default (1024).
	Hz uint32 `toml:"hz"`
}

// TraceConfig selects the tracing subsystem behavior.
type TraceConfig struct {
	Level    string `toml:"level"`     // off|run|task|debug
	Mode     string `toml:"mode"`      // stream|ring|both
	Format   string `toml:"format"`    // text|ndjson
	Output   string `toml:"output"`    // file path, "-" for stderr
	RingSize int    `toml:"ring_size"` // ring capacity, 0 means default
}

// DemoConfig shapes the demo workload run by `nucleus run`.
type DemoConfig struct {
	Workers    int `toml:"workers"`     // contending locker tasks
	Iters      int `toml:"iters"`       // acquire/release rounds per worker
	SleepTicks int `toml:"sleep_ticks"` // ticks slept between rounds
}

// Default returns the configuration used when no file is found.
func Default() Config {
	return Config{
		Trace: TraceConfig{Level: "off", Mode: "ring"},
		Demo:  DemoConfig{Workers: 2, Iters: 1000, SleepTicks: 1},
	}
}

// Find walks upward from startDir looking for nucleus.toml.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load decodes the file at path over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg.normalized(), nil
}

// LoadOrDefault finds and loads the nearest config file, falling back to
// defaults when none exists. The returned path is empty on fallback.
func LoadOrDefault(startDir string) (Config, string, error) {
	path, ok, err := Find(startDir)
	if err != nil {
		return Config{}, "", err
	}
	if !ok {
		return Default(), "", nil
	}
	cfg, err := Load(path)
	return cfg, path, err
}

func (c Config) normalized() Config {
	if c.Demo.Workers <= 0 {
		c.Demo.Workers = 2
	}
	if c.Demo.Iters <= 0 {
		c.Demo.Iters = 1000
	}
	if c.Demo.SleepTicks < 0 {
		c.Demo.SleepTicks = 0
	}
	return c
}
