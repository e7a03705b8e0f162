package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Demo.Workers != 2 || cfg.Demo.Iters != 1000 || cfg.Demo.SleepTicks != 1 {
		t.Fatalf("unexpected demo defaults: %+v", cfg.Demo)
	}
	if cfg.Trace.Level != "off" || cfg.Trace.Mode != "ring" {
		t.Fatalf("unexpected trace defaults: %+v", cfg.Trace)
	}
	if cfg.Machine.Hz != 0 {
		t.Fatalf("machine hz default should defer to the machine package, got %d", cfg.Machine.Hz)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	body := `
[machine]
hz = 256

[trace]
level = "debug"
mode = "both"

[demo]
workers = 4
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Machine.Hz != 256 {
		t.Fatalf("hz = %d, want 256", cfg.Machine.Hz)
	}
	if cfg.Trace.Level != "debug" || cfg.Trace.Mode != "both" {
		t.Fatalf("trace not overlaid: %+v", cfg.Trace)
	}
	if cfg.Demo.Workers != 4 {
		t.Fatalf("workers = %d, want 4", cfg.Demo.Workers)
	}
	// Keys the file omits keep their defaults.
	if cfg.Demo.Iters != 1000 {
		t.Fatalf("iters lost its default: %d", cfg.Demo.Iters)
	}
}

func TestLoadRejectsBadToml(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte("machine = [unclosed"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("malformed config loaded without error")
	}
}

func TestFindWalksUpward(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, FileName)
	if err := os.WriteFile(path, []byte(""), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	nested := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	found, ok, err := Find(nested)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !ok || found != path {
		t.Fatalf("Find = %q, %v; want %q, true", found, ok, path)
	}
}

func TestFindMissing(t *testing.T) {
	_, ok, err := Find(t.TempDir())
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if ok {
		t.Fatalf("found a config in an empty tree")
	}
}

func TestLoadOrDefaultFallsBack(t *testing.T) {
	cfg, path, err := LoadOrDefault(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if path != "" {
		t.Fatalf("fallback reported a path: %q", path)
	}
	if cfg.Demo.Workers != 2 {
		t.Fatalf("fallback is not the default config: %+v", cfg.Demo)
	}
}

func TestNormalizedClampsDemoValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	body := `
[demo]
workers = -1
iters = 0
sleep_ticks = -5
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Demo.Workers != 2 || cfg.Demo.Iters != 1000 || cfg.Demo.SleepTicks != 0 {
		t.Fatalf("normalization failed: %+v", cfg.Demo)
	}
}
