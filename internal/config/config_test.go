package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigParsing(t *testing.T) {
	configContent := `# Global options
results-dir out
log.level debug

[run]
temperature 0.7
experiments  a, b

[other]
max-tokens 50`

	config, err := LoadFromReader(strings.NewReader(configContent))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if value, ok := config.GetGlobalOption("results-dir"); !ok || value != "out" {
		t.Errorf("Expected results-dir=out, got %s (exists: %v)", value, ok)
	}

	if value, ok := config.GetSectionOption("run", "temperature"); !ok || value != "0.7" {
		t.Errorf("Expected run.temperature=0.7, got %s (exists: %v)", value, ok)
	}

	// Values keep everything after the first space, trimmed.
	if value, _ := config.GetSectionOption("run", "experiments"); value != "a, b" {
		t.Errorf("Expected run.experiments=%q, got %q", "a, b", value)
	}

	// Section lookups fall back to globals.
	if value, ok := config.GetSectionOption("run", "log.level"); !ok || value != "debug" {
		t.Errorf("Expected run.log.level=debug (fallback), got %s (exists: %v)", value, ok)
	}

	if value, ok := config.GetSectionOption("nonexistent", "option"); ok {
		t.Errorf("Expected nonexistent option to not exist, but got %s", value)
	}

	// max-tokens is only known in [run].
	if !config.HasWarnings() {
		t.Fatal("Expected a warning for the unknown option in [other]")
	}
}

func TestEmptyConfig(t *testing.T) {
	config, err := LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Failed to load empty config: %v", err)
	}
	if len(config.Global) != 0 || len(config.Sections) != 0 {
		t.Errorf("Expected empty config, got %+v", config)
	}
	if config.HasWarnings() {
		t.Errorf("Expected no warnings, got %v", config.Warnings)
	}
}

func TestLoadFromPath_Missing(t *testing.T) {
	config, err := LoadFromPath(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("Expected missing file to be fine, got %v", err)
	}
	if len(config.Global) != 0 {
		t.Errorf("Expected empty config, got %v", config.Global)
	}
}

func TestLoadFromPath_RejectsSymlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "real")
	if err := os.WriteFile(target, []byte("results-dir x\n"), 0644); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "link")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	if _, err := LoadFromPath(link); err == nil {
		t.Fatal("Expected an error for a symlinked config")
	}
}

func TestSetOptions(t *testing.T) {
	config := NewConfig()
	config.SetGlobalOption("results-dir", "a")
	config.SetSectionOption("run", "temperature", "1")

	if v, _ := config.GetGlobalOption("results-dir"); v != "a" {
		t.Errorf("got %q", v)
	}
	if v, _ := config.GetSectionOption("run", "temperature"); v != "1" {
		t.Errorf("got %q", v)
	}
}

func TestParseBool(t *testing.T) {
	for _, s := range []string{"true", "1", "YES", "on"} {
		if b, err := parseBool(s); err != nil || !b {
			t.Errorf("parseBool(%q) = %v, %v", s, b, err)
		}
	}
	for _, s := range []string{"false", "0", "no", "Off"} {
		if b, err := parseBool(s); err != nil || b {
			t.Errorf("parseBool(%q) = %v, %v", s, b, err)
		}
	}
	if _, err := parseBool("maybe"); err == nil {
		t.Error("expected an error for maybe")
	}
}
