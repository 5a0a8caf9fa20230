package command

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/joeycumines/turnbench/internal/backend"
	"github.com/joeycumines/turnbench/internal/benchmark"
	"github.com/joeycumines/turnbench/internal/config"
	"github.com/joeycumines/turnbench/internal/game"
	"github.com/joeycumines/turnbench/internal/logging"
)

// RunCommand plays a game's experiments and stores the results.
type RunCommand struct {
	*BaseCommand
	config *config.Config
	games  *benchmark.Registry
	models *backend.Registry
	human  game.HumanInput
	logger *slog.Logger

	game        string
	modelArgs   []string
	instances   string
	experiments string
	resultsDir  string
	temperature float64
	maxTokens   int
	logLevel    string
	logFile     string
}

// NewRunCommand creates a new run command. human serves players whose model
// is the human marker and may be nil.
func NewRunCommand(cfg *config.Config, games *benchmark.Registry, models *backend.Registry, human game.HumanInput, logger *slog.Logger) *RunCommand {
	return &RunCommand{
		BaseCommand: NewBaseCommand(
			"run",
			"Play a game against one or two models",
			"run -game <name> [-m model ...] [options]",
		),
		config: cfg,
		games:  games,
		models: models,
		human:  human,
		logger: logger,
	}
}

// SetupFlags configures the flags for the run command. Generation defaults
// come from the [run] section of the configuration.
func (c *RunCommand) SetupFlags(fs *flag.FlagSet) {
	c.modelArgs = nil
	fs.StringVar(&c.game, "game", "", "Game to play")
	fs.Func("m", "Model name or JSON spec; repeat or comma-separate names for two players", func(v string) error {
		c.modelArgs = append(c.modelArgs, splitModelArg(v)...)
		return nil
	})
	fs.StringVar(&c.instances, "i", "", "Instances file (default from config, else generated)")
	fs.StringVar(&c.experiments, "e", "", "Comma-separated experiments to run (default all)")
	fs.StringVar(&c.resultsDir, "r", "", "Results directory (default from config)")
	fs.Float64Var(&c.temperature, "t", c.config.GetSectionFloat(config.SectionRun, config.KeyTemperature), "Sampling temperature")
	fs.IntVar(&c.maxTokens, "l", c.config.GetSectionInt(config.SectionRun, config.KeyMaxTokens), "Response length cap")
	fs.StringVar(&c.logLevel, "log-level", "", "Log level for this run: debug, info, warn, error")
	fs.StringVar(&c.logFile, "log-file", "", "Also log to this file for this run")
}

// splitModelArg treats a JSON object as one spec and anything else as a
// comma-separated list of names.
func splitModelArg(v string) []string {
	if v = strings.TrimSpace(v); strings.HasPrefix(v, "{") {
		return []string{v}
	}
	return config.SplitList(v)
}

// Execute runs the benchmark.
func (c *RunCommand) Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
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

	logger := c.logger
	if c.logLevel != "" || c.logFile != "" {
		opts, err := logging.ResolveOptions(c.logLevel, c.logFile, c.config)
		if err != nil {
			return err
		}
		l, closer, err := logging.New(opts, stderr)
		if err != nil {
			return err
		}
		defer closer.Close()
		logger = l
	}
	if logger == nil {
		logger = slog.Default()
	}

	instances, err := c.loadInstances(f, logger)
	if err != nil {
		return err
	}
	models, err := c.resolveModels()
	if err != nil {
		return err
	}

	opts := []benchmark.Option{
		benchmark.WithLogger(logger),
		benchmark.WithModelRegistry(c.models),
		benchmark.WithGenArgs(c.temperature, c.maxTokens),
	}
	if c.human != nil {
		opts = append(opts, benchmark.WithHumanInput(c.human))
	}
	filter := config.SplitList(c.experiments)
	if len(filter) == 0 {
		filter = c.config.GetSectionList(config.SectionRun, config.KeyExperiments)
	}
	if len(filter) > 0 {
		opts = append(opts, benchmark.WithExperimentFilter(filter...))
	}

	resultsDir := c.resultsDir
	if resultsDir == "" {
		resultsDir = c.config.GetString(config.KeyResultsDir)
	}

	sum, err := benchmark.New(f, instances, opts...).Run(ctx, models, resultsDir)
	_, _ = fmt.Fprintf(stdout, "Run %s: %d experiment(s), %d skipped, %d episode(s), %d failed\n",
		sum.RunID, sum.Experiments, sum.Skipped, sum.Episodes, sum.Failed)
	if err != nil {
		return fmt.Errorf("run %s: %w", c.game, err)
	}
	_, _ = fmt.Fprintf(stdout, "Results in %s\n", resultsDir)
	return nil
}

func (c *RunCommand) loadInstances(f benchmark.Factory, logger *slog.Logger) (*benchmark.Instances, error) {
	path := c.instances
	if path == "" {
		path = c.config.GetString(config.KeyInstances)
	}
	if path != "" {
		logger.Info("loading instances", "path", path)
		return benchmark.LoadInstances(path)
	}
	logger.Info("generating instances", "game", f.Name())
	return f.DefaultInstances()
}

func (c *RunCommand) resolveModels() ([]backend.Model, error) {
	if len(c.modelArgs) == 0 {
		return nil, nil
	}
	if c.models == nil {
		return nil, errors.New("no model registry")
	}
	specs := make([]backend.ModelSpec, 0, len(c.modelArgs))
	for _, arg := range c.modelArgs {
		spec, err := backend.ParseSpec(arg)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return c.models.ModelsFor(specs...)
}
