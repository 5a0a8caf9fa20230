// Package benchmark plays every instance of a game's experiments against a
// set of models and stores the results.
package benchmark

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/joeycumines/turnbench/internal/backend"
	"github.com/joeycumines/turnbench/internal/game"
	"github.com/joeycumines/turnbench/internal/results"
)

var (
	// ErrNoPartners means neither run models nor experiment partners exist.
	ErrNoPartners = errors.New("neither dialogue_partners in the experiment nor models given as run argument")
	// ErrTooManyPlayers means a partner group does not fit the game.
	ErrTooManyPlayers = errors.New("too many players")
)

// Summary counts what a run did.
type Summary struct {
	RunID string
	// Experiments counts experiment and partner group combinations played.
	Experiments int
	Skipped     int
	Episodes    int
	Failed      int
}

// Option configures a Benchmark.
type Option func(*Benchmark)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(b *Benchmark) { b.base = l }
}

// WithModelRegistry resolves experiment dialogue partners by name.
func WithModelRegistry(r *backend.Registry) Option {
	return func(b *Benchmark) { b.models = r }
}

// WithExperimentFilter restricts a run to the named experiments.
func WithExperimentFilter(names ...string) Option {
	return func(b *Benchmark) { b.filter = names }
}

// WithClock overrides the wall clock, for episodes as well.
func WithClock(now func() time.Time) Option {
	return func(b *Benchmark) { b.now = now }
}

// WithHumanInput sets where human players read their responses from.
func WithHumanInput(in game.HumanInput) Option {
	return func(b *Benchmark) { b.human = in }
}

// WithGenArgs sets the temperature and response length cap of every model
// that plays, including experiment dialogue partners.
func WithGenArgs(temperature float64, maxTokens int) Option {
	return func(b *Benchmark) { b.gen = &genArgs{temperature, maxTokens} }
}

type genArgs struct {
	temperature float64
	maxTokens   int
}

// Benchmark runs one game's instances.
type Benchmark struct {
	factory   Factory
	instances *Instances
	filter    []string
	models    *backend.Registry
	human     game.HumanInput
	gen       *genArgs
	base      *slog.Logger
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a benchmark of factory's game over instances.
func New(factory Factory, instances *Instances, opts ...Option) *Benchmark {
	b := &Benchmark{
		factory:   factory,
		instances: instances,
		base:      slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.base.With("game", factory.Name())
	return b
}

// Run plays every selected experiment. Run arguments win over experiment
// dialogue partners. A failing episode is logged and counted and the run
// moves on; configuration problems and cancellation stop the run.
func (b *Benchmark) Run(ctx context.Context, models []backend.Model, resultsDir string) (Summary, error) {
	sum := Summary{RunID: uuid.NewString()}
	if len(b.instances.Experiments) == 0 {
		b.logger.Warn("no experiments")
	}
	total := len(b.instances.Experiments)
	for idx, exp := range b.instances.Experiments {
		if len(b.filter) > 0 && !slices.Contains(b.filter, exp.Name) {
			b.logger.Info("skip experiment", "n", idx+1, "of", total, "experiment", exp.Name)
			sum.Skipped++
			continue
		}
		b.logger.Info("run experiment", "n", idx+1, "of", total, "experiment", exp.Name)

		groups, err := b.partners(exp, models)
		if err != nil {
			return sum, err
		}
		for _, group := range groups {
			if err := ctx.Err(); err != nil {
				return sum, err
			}
			if err := b.runExperiment(ctx, idx, exp, group, resultsDir, &sum); err != nil {
				return sum, err
			}
		}
	}
	return sum, nil
}

func (b *Benchmark) partners(exp *Experiment, models []backend.Model) ([][]backend.Model, error) {
	if len(models) > 0 {
		return [][]backend.Model{models}, nil
	}
	if len(exp.DialoguePartners) == 0 {
		return nil, fmt.Errorf("%s: %w", b.factory.Name(), ErrNoPartners)
	}
	if b.models == nil {
		return nil, fmt.Errorf("%s: experiment %q names dialogue partners but no model registry is set", b.factory.Name(), exp.Name)
	}
	groups := make([][]backend.Model, 0, len(exp.DialoguePartners))
	for _, names := range exp.DialoguePartners {
		specs := make([]backend.ModelSpec, 0, len(names))
		for _, name := range names {
			spec, err := backend.ParseSpec(name)
			if err != nil {
				return nil, err
			}
			specs = append(specs, spec)
		}
		group, err := b.models.ModelsFor(specs...)
		if err != nil {
			return nil, fmt.Errorf("experiment %q: %w", exp.Name, err)
		}
		groups = append(groups, group)
	}
	b.logger.Info("using dialogue partners from experiment", "experiment", exp.Name, "partners", exp.DialoguePartners)
	return groups, nil
}

// pair checks group against the game's player count, expanding a single
// model to self-play for two-player games, and names the pair.
func (b *Benchmark) pair(group []backend.Model) ([]backend.Model, string, error) {
	limit := 2
	if b.factory.SinglePlayer() {
		limit = 1
	}
	if len(group) > limit {
		return nil, "", fmt.Errorf("%w for game %q: %d", ErrTooManyPlayers, b.factory.Name(), len(group))
	}
	if len(group) == 0 {
		return nil, "", fmt.Errorf("%s: %w", b.factory.Name(), ErrNoPartners)
	}
	if limit == 2 && len(group) == 1 {
		group = []backend.Model{group[0], group[0]}
	}
	participants := make([]results.Participant, len(group))
	for i, m := range group {
		participants[i] = m
	}
	name, err := results.PairName(participants...)
	if err != nil {
		return nil, "", err
	}
	return group, name, nil
}

func (b *Benchmark) runExperiment(ctx context.Context, idx int, exp *Experiment, group []backend.Model, resultsDir string, sum *Summary) error {
	if b.gen != nil {
		backend.ApplyGenArgs(group, b.gen.temperature, b.gen.maxTokens)
	}
	group, pair, err := b.pair(group)
	if err != nil {
		return err
	}
	logger := b.logger.With("experiment", exp.Name, "pair", pair)

	dir := results.ExperimentDir(resultsDir, results.SanitizeName(pair), b.factory.Name(), idx, results.SanitizeName(exp.Name))
	cfgPath := results.ExperimentFile(dir, results.SanitizeName(exp.Name))
	cfg := exp.Config()
	start := b.now()
	cfg[KeyTimestamp] = start.Format(time.RFC3339Nano)
	cfg[KeyDialoguePartners] = pair
	cfg[KeyRunID] = sum.RunID
	if err := results.WriteJSON(cfgPath, cfg); err != nil {
		return fmt.Errorf("failed to store experiment config: %w", err)
	}
	sum.Experiments++

	failed := 0
	for n, instance := range exp.GameInstances {
		if err := ctx.Err(); err != nil {
			return err
		}
		episodeDir := results.EpisodeDir(dir, n)
		logger.Info("episode", "episode", n, "game_id", instance.GameID())
		sum.Episodes++
		if err := b.runEpisode(ctx, exp, group, cfg, instance, episodeDir); err != nil {
			if ctx.Err() != nil {
				return err
			}
			logger.Error("episode failed, continuing", "episode", n, "game_id", instance.GameID(), "error", err)
			failed++
		}
	}
	sum.Failed += failed
	if failed > 0 {
		logger.Error("episodes failed", "count", failed)
	}

	cfg[KeyDuration] = b.now().Sub(start).String()
	if err := results.WriteJSON(cfgPath, cfg); err != nil {
		return fmt.Errorf("failed to store experiment config: %w", err)
	}
	return nil
}

func (b *Benchmark) runEpisode(ctx context.Context, exp *Experiment, group []backend.Model, cfg map[string]any, instance game.Instance, dir string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("episode panicked: %v", r)
		}
	}()

	if err := results.WriteJSON(filepath.Join(dir, results.InstanceFile), instance); err != nil {
		return err
	}
	ep, err := b.factory.NewEpisode(exp, group,
		game.WithLogger(b.base),
		game.WithClock(b.now),
		game.WithExperiment(maps.Clone(cfg)),
		game.WithHumanInput(b.human),
	)
	if err != nil {
		return fmt.Errorf("failed to create episode: %w", err)
	}
	if err := ep.Setup(ctx, instance); err != nil {
		return err
	}
	if err := ep.Play(ctx); err != nil {
		return err
	}
	return ep.StoreRecords(dir)
}
