package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
)

// Registry resolves model specs to models. Backends and known model specs are
// added explicitly by the caller; nothing is discovered implicitly.
type Registry struct {
	backends map[string]Backend
	specs    []ModelSpec
	logger   *slog.Logger
}

// NewRegistry creates an empty registry. A nil logger uses slog.Default().
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		backends: make(map[string]Backend),
		logger:   logger,
	}
}

// RegisterBackend makes b available under name.
func (r *Registry) RegisterBackend(name string, b Backend) error {
	if name == "" {
		return fmt.Errorf("backend name cannot be empty")
	}
	if b == nil {
		return fmt.Errorf("backend %q is nil", name)
	}
	if _, exists := r.backends[name]; exists {
		return fmt.Errorf("backend %q already registered", name)
	}
	r.backends[name] = b
	return nil
}

// Backends lists registered backend names in sorted order.
func (r *Registry) Backends() []string {
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AddModelSpec appends a known spec. Earlier specs take precedence.
func (r *Registry) AddModelSpec(spec ModelSpec) error {
	if spec.ModelName() == "" {
		return fmt.Errorf("model spec %s has no %s", spec, KeyModelName)
	}
	if !spec.HasBackend() {
		return fmt.Errorf("model spec %s: %w", spec, ErrMissingBackend)
	}
	r.specs = append(r.specs, spec.Clone())
	return nil
}

// ModelSpecs returns copies of the known specs.
func (r *Registry) ModelSpecs() []ModelSpec {
	out := make([]ModelSpec, len(r.specs))
	for i, s := range r.specs {
		out[i] = s.Clone()
	}
	return out
}

// LoadModelRegistry reads a JSON array of model specs from path. A missing
// file is an error only when mandatory is set.
func (r *Registry) LoadModelRegistry(path string, mandatory bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if !mandatory && errors.Is(err, fs.ErrNotExist) {
			r.logger.Debug("model registry not found", "path", path)
			return nil
		}
		return fmt.Errorf("failed to read model registry: %w", err)
	}
	var specs []ModelSpec
	if err := json.Unmarshal(data, &specs); err != nil {
		return fmt.Errorf("failed to parse model registry %s: %w", path, err)
	}
	if len(specs) == 0 && mandatory {
		return fmt.Errorf("%s: %w", path, ErrEmptyRegistry)
	}
	for i, spec := range specs {
		if err := r.AddModelSpec(spec); err != nil {
			return fmt.Errorf("model registry %s entry %d: %w", path, i, err)
		}
	}
	r.logger.Info("loaded model registry", "path", path, "entries", len(specs))
	return nil
}

// ModelFor resolves spec to a model.
//
// Human and programmatic names yield marker models. Otherwise the spec is
// unified with the first registered spec it agrees with, and the resulting
// backend builds the model.
func (r *Registry) ModelFor(spec ModelSpec) (Model, error) {
	switch {
	case spec.IsHuman():
		return NewHumanModel(spec), nil
	case spec.IsProgrammatic():
		return NewProgrammaticModel(spec), nil
	}

	resolved := spec.Clone()
	for _, known := range r.specs {
		unified, err := known.Unify(spec)
		if err != nil {
			continue
		}
		resolved = unified
		break
	}

	name := resolved.Backend()
	if name == "" {
		return nil, fmt.Errorf("model spec %s: %w", spec, ErrMissingBackend)
	}
	b, ok := r.backends[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
	m, err := b.ModelFor(resolved)
	if err != nil {
		return nil, fmt.Errorf("backend %q failed to load %s: %w", name, resolved.ModelName(), err)
	}
	r.logger.Debug("resolved model", "model", resolved.ModelName(), "backend", name)
	return m, nil
}

// ModelsFor resolves each spec in turn.
func (r *Registry) ModelsFor(specs ...ModelSpec) ([]Model, error) {
	models := make([]Model, 0, len(specs))
	for _, s := range specs {
		m, err := r.ModelFor(s)
		if err != nil {
			return nil, err
		}
		models = append(models, m)
	}
	return models, nil
}
