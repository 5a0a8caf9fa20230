package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/joeycumines/turnbench/internal/config"
)

func TestInitialize(t *testing.T) {
	dir := t.TempDir()
	registryPath := filepath.Join(dir, "model_registry.json")
	if err := os.WriteFile(filepath.Join(dir, "echo.js"), []byte(`function respond(messages) { return "hi"; }`), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(registryPath, []byte(`[{"model_name": "echo", "backend": "script", "script": "echo.js"}]`), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := config.NewConfig()
	cfg.SetGlobalOption(config.KeyModelRegistry, registryPath)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	registry, err := initialize(cfg, filepath.Join(dir, "config"), logger)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"config", "generate", "help", "init", "list", "log", "run", "version"}
	if got := registry.List(); !slices.Equal(got, want) {
		t.Errorf("commands = %v, want %v", got, want)
	}

	list, err := registry.Get("list")
	if err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	if err := list.Execute(context.Background(), nil, &out, io.Discard); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "firstlast") || !strings.Contains(out.String(), "verdict") {
		t.Errorf("games not registered: %s", out.String())
	}
}

func TestInitialize_BadRegistry(t *testing.T) {
	registryPath := filepath.Join(t.TempDir(), "model_registry.json")
	if err := os.WriteFile(registryPath, []byte(`not json`), 0644); err != nil {
		t.Fatal(err)
	}
	cfg := config.NewConfig()
	cfg.SetGlobalOption(config.KeyModelRegistry, registryPath)

	if _, err := initialize(cfg, "", slog.New(slog.NewTextHandler(io.Discard, nil))); err == nil {
		t.Fatal("expected a malformed model registry to fail")
	}
}
