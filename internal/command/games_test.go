package command

import (
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joeycumines/turnbench/internal/backend"
	"github.com/joeycumines/turnbench/internal/benchmark"
	"github.com/joeycumines/turnbench/internal/games/firstlast"
	"github.com/joeycumines/turnbench/internal/games/verdict"
)

func testGames(t *testing.T) *benchmark.Registry {
	t.Helper()
	r := benchmark.NewRegistry()
	for _, f := range []benchmark.Factory{firstlast.Game{}, verdict.Game{}} {
		if err := r.Register(f); err != nil {
			t.Fatal(err)
		}
	}
	return r
}

func testModels(t *testing.T) *backend.Registry {
	t.Helper()
	r := backend.NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := r.AddModelSpec(backend.ModelSpec{backend.KeyModelName: "echo", backend.KeyBackend: "script"}); err != nil {
		t.Fatal(err)
	}
	return r
}

func TestListCommand(t *testing.T) {
	out, _, err := execute(t, NewListCommand(testGames(t), nil))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "firstlast") || !strings.Contains(out, "2 players") {
		t.Errorf("missing firstlast line: %s", out)
	}
	if !strings.Contains(out, "verdict") || !strings.Contains(out, "1 player") {
		t.Errorf("missing verdict line: %s", out)
	}
	if strings.Index(out, "firstlast") > strings.Index(out, "verdict") {
		t.Error("games should be sorted")
	}
}

func TestListCommand_Models(t *testing.T) {
	out, _, err := execute(t, NewListCommand(testGames(t), testModels(t)), "-models")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Models:") || !strings.Contains(out, "echo") {
		t.Errorf("unexpected output: %s", out)
	}

	if _, _, err := execute(t, NewListCommand(testGames(t), nil), "-models"); err == nil {
		t.Error("expected error without a model registry")
	}
}

func TestGenerateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "fl.json")
	out, _, err := execute(t, NewGenerateCommand(testGames(t)), "-game", "firstlast", "-out", path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Wrote 3 experiment(s), 30 instance(s)") {
		t.Errorf("unexpected output: %s", out)
	}

	in, err := benchmark.LoadInstances(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(in.Experiments) != 3 {
		t.Fatalf("got %d experiments", len(in.Experiments))
	}
	if got := in.Experiments[0].GameInstances[0].GameID(); got != "0" {
		t.Errorf("first game id = %q", got)
	}
}

func TestGenerateCommand_Errors(t *testing.T) {
	if _, _, err := execute(t, NewGenerateCommand(testGames(t))); err == nil {
		t.Error("expected error without -game")
	}
	if _, _, err := execute(t, NewGenerateCommand(testGames(t)), "-game", "chess"); err == nil {
		t.Error("expected error for unknown game")
	}
}
