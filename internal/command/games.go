package command

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/joeycumines/turnbench/internal/backend"
	"github.com/joeycumines/turnbench/internal/benchmark"
)

// ListCommand lists the registered games, or the known backends and models.
type ListCommand struct {
	*BaseCommand
	games      *benchmark.Registry
	models     *backend.Registry
	listModels bool
}

// NewListCommand creates a new list command. models may be nil.
func NewListCommand(games *benchmark.Registry, models *backend.Registry) *ListCommand {
	return &ListCommand{
		BaseCommand: NewBaseCommand(
			"list",
			"List available games",
			"list [options]",
		),
		games:  games,
		models: models,
	}
}

// SetupFlags configures the flags for the list command.
func (c *ListCommand) SetupFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.listModels, "models", false, "List backends and registered model specs instead of games")
}

// Execute prints the listing.
func (c *ListCommand) Execute(_ context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 {
		_, _ = fmt.Fprintf(stderr, "unexpected arguments: %v\n", args)
		return errors.New("unexpected arguments")
	}

	w := tabwriter.NewWriter(stdout, 0, 8, 2, ' ', 0)
	defer w.Flush()

	if c.listModels {
		if c.models == nil {
			return errors.New("no model registry")
		}
		_, _ = fmt.Fprintln(w, "Backends:")
		for _, name := range c.models.Backends() {
			_, _ = fmt.Fprintf(w, "  %s\n", name)
		}
		_, _ = fmt.Fprintln(w, "Models:")
		for _, spec := range c.models.ModelSpecs() {
			_, _ = fmt.Fprintf(w, "  %s\t%s\n", spec.ModelName(), spec.Backend())
		}
		return nil
	}

	_, _ = fmt.Fprintln(w, "Games:")
	for _, name := range c.games.Names() {
		f, err := c.games.Get(name)
		if err != nil {
			continue
		}
		players := "2 players"
		if f.SinglePlayer() {
			players = "1 player"
		}
		_, _ = fmt.Fprintf(w, "  %s\t%s\t%s\n", name, players, f.Description())
	}
	return nil
}

// GenerateCommand writes a game's default instances file.
type GenerateCommand struct {
	*BaseCommand
	games *benchmark.Registry
	game  string
	out   string
}

// NewGenerateCommand creates a new generate command.
func NewGenerateCommand(games *benchmark.Registry) *GenerateCommand {
	return &GenerateCommand{
		BaseCommand: NewBaseCommand(
			"generate",
			"Generate the instances file of a game",
			"generate -game <name> [-out path]",
		),
		games: games,
	}
}

// SetupFlags configures the flags for the generate command.
func (c *GenerateCommand) SetupFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.game, "game", "", "Game to generate instances for")
	fs.StringVar(&c.out, "out", "", "Output path (default <game>_instances.json)")
}

// Execute generates and stores the instances.
func (c *GenerateCommand) Execute(_ context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 {
		_, _ = fmt.Fprintf(stderr, "unexpected arguments: %v\n", args)
		return errors.New("unexpected arguments")
	}
	if c.game == "" {
		return errors.New("missing -game")
	}
	f, err := c.games.Get(c.game)
	if err != nil {
		return err
	}
	instances, err := f.DefaultInstances()
	if err != nil {
		return fmt.Errorf("failed to generate instances for %s: %w", c.game, err)
	}

	out := c.out
	if out == "" {
		out = c.game + "_instances.json"
	}
	if err := benchmark.StoreInstances(out, instances); err != nil {
		return err
	}

	n := 0
	for _, exp := range instances.Experiments {
		n += len(exp.GameInstances)
	}
	_, _ = fmt.Fprintf(stdout, "Wrote %d experiment(s), %d instance(s) to %s\n", len(instances.Experiments), n, out)
	return nil
}
