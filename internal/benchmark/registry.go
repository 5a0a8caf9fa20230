package benchmark

import (
	"errors"
	"fmt"
	"sort"

	"github.com/joeycumines/turnbench/internal/backend"
	"github.com/joeycumines/turnbench/internal/game"
)

var (
	ErrUnknownGame   = errors.New("unknown game")
	ErrDuplicateGame = errors.New("game already registered")
)

// Factory creates the episodes of one game.
type Factory interface {
	// Name is the game name used on the command line and in result paths.
	Name() string
	Description() string
	// SinglePlayer reports whether exactly one model takes part.
	SinglePlayer() bool
	// NewEpisode builds a fresh, not yet set up, episode for exp played by
	// models. opts are meant for the episode's engine.
	NewEpisode(exp *Experiment, models []backend.Model, opts ...game.Option) (game.Episode, error)
	// DefaultInstances generates the game's standard instances document.
	DefaultInstances() (*Instances, error)
}

// Registry maps game names to factories. Games are added explicitly.
type Registry struct {
	games map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{games: make(map[string]Factory)}
}

// Register adds f under f.Name().
func (r *Registry) Register(f Factory) error {
	name := f.Name()
	if name == "" {
		return fmt.Errorf("game name cannot be empty")
	}
	if _, exists := r.games[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateGame, name)
	}
	r.games[name] = f
	return nil
}

// Get returns the factory registered as name.
func (r *Registry) Get(name string) (Factory, error) {
	f, ok := r.games[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGame, name)
	}
	return f, nil
}

// Names lists registered games in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.games))
	for name := range r.games {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
