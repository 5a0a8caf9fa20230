package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"slices"
)

// Well-known spec keys.
const (
	KeyModelName = "model_name"
	KeyBackend   = "backend"
	KeyModelID   = "model_id"
)

var (
	programmaticNames = []string{"mock", "dry_run", "programmatic", "custom"}
	humanNames        = []string{"human", "terminal"}
)

// ErrUnification is returned when two specs disagree on a shared key.
var ErrUnification = errors.New("model specs do not unify")

// ModelSpec is a bag of features describing a model. Specs are matched
// against the model registry by unification.
type ModelSpec map[string]any

// SpecFromName returns a spec holding only a model name.
func SpecFromName(name string) ModelSpec {
	return ModelSpec{KeyModelName: name}
}

// ParseSpec interprets s as either a JSON object or a bare model name.
func ParseSpec(s string) (ModelSpec, error) {
	if len(s) > 0 && s[0] == '{' {
		var spec ModelSpec
		if err := json.Unmarshal([]byte(s), &spec); err != nil {
			return nil, fmt.Errorf("failed to parse model spec %q: %w", s, err)
		}
		return spec, nil
	}
	return SpecFromName(s), nil
}

func (s ModelSpec) str(key string) string {
	v, _ := s[key].(string)
	return v
}

func (s ModelSpec) ModelName() string { return s.str(KeyModelName) }
func (s ModelSpec) Backend() string   { return s.str(KeyBackend) }
func (s ModelSpec) HasBackend() bool  { return s.Backend() != "" }

// IsProgrammatic reports whether the spec names a game-scripted player.
func (s ModelSpec) IsProgrammatic() bool {
	return slices.Contains(programmaticNames, s.ModelName())
}

// IsHuman reports whether the spec names an interactive player.
func (s ModelSpec) IsHuman() bool {
	return slices.Contains(humanNames, s.ModelName())
}

// Clone returns a deep copy of s.
func (s ModelSpec) Clone() ModelSpec {
	if s == nil {
		return ModelSpec{}
	}
	out := make(ModelSpec, len(s))
	for k, v := range s {
		out[k] = cloneValue(v)
	}
	return out
}

// Unify merges s and other. Keys present in both must hold equal values,
// except nested objects, which unify recursively. The result holds the union
// of keys; neither input is modified.
func (s ModelSpec) Unify(other ModelSpec) (ModelSpec, error) {
	out, err := unifyMaps(s, other, "")
	if err != nil {
		return nil, err
	}
	return ModelSpec(out), nil
}

func unifyMaps(a, b map[string]any, path string) (map[string]any, error) {
	out := make(map[string]any, len(a)+len(b))
	for k, v := range a {
		out[k] = cloneValue(v)
	}
	for k, bv := range b {
		av, ok := out[k]
		if !ok {
			out[k] = cloneValue(bv)
			continue
		}
		am, aIsMap := asMap(av)
		bm, bIsMap := asMap(bv)
		if aIsMap && bIsMap {
			merged, err := unifyMaps(am, bm, path+k+".")
			if err != nil {
				return nil, err
			}
			out[k] = merged
			continue
		}
		if !reflect.DeepEqual(av, bv) {
			return nil, fmt.Errorf("%w: %s%s is %v in one and %v in the other", ErrUnification, path, k, av, bv)
		}
	}
	return out, nil
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case ModelSpec:
		return m, true
	}
	return nil, false
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = cloneValue(e)
		}
		return out
	case ModelSpec:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	}
	return v
}

func (s ModelSpec) String() string {
	b, err := json.Marshal(map[string]any(s))
	if err != nil {
		return fmt.Sprintf("%v", map[string]any(s))
	}
	return string(b)
}
