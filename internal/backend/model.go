// Package backend defines the contract between players and the response
// generators that sit behind them, plus an explicit registry that resolves
// model specs to concrete models.
package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/joeycumines/turnbench/internal/chat"
)

var (
	// ErrUnknownBackend is returned when a spec names a backend that was never registered.
	ErrUnknownBackend = errors.New("unknown backend")
	// ErrMissingBackend is returned when a spec cannot be resolved to any backend.
	ErrMissingBackend = errors.New("model spec does not name a backend")
	// ErrNotCallable is returned by marker models that are answered by the player itself.
	ErrNotCallable = errors.New("model is not callable")
	// ErrEmptyRegistry is returned when a mandatory model registry file holds no entries.
	ErrEmptyRegistry = errors.New("model registry is empty")
)

// Model generates a response for a message history.
//
// The prompt and response payloads are opaque and only recorded for audit;
// text is the utterance the game acts on.
type Model interface {
	Name() string
	Temperature() float64
	MaxTokens() int
	Spec() ModelSpec
	Respond(ctx context.Context, messages []chat.Message) (prompt any, response map[string]any, text string, err error)
}

// Backend builds models for specs that name it.
type Backend interface {
	ModelFor(spec ModelSpec) (Model, error)
}

// BackendFunc adapts a function to the Backend interface.
type BackendFunc func(spec ModelSpec) (Model, error)

func (f BackendFunc) ModelFor(spec ModelSpec) (Model, error) { return f(spec) }

const (
	// GenArgTemperature is the generation argument key for sampling temperature.
	GenArgTemperature = "temperature"
	// GenArgMaxTokens is the generation argument key for the response length cap.
	GenArgMaxTokens = "max_tokens"

	defaultMaxTokens = 100
)

// BaseModel implements the accessor half of Model. Concrete models embed it
// and supply Respond.
type BaseModel struct {
	spec    ModelSpec
	genArgs map[string]any
}

// NewBaseModel returns a BaseModel for spec with default generation arguments.
func NewBaseModel(spec ModelSpec) BaseModel {
	return BaseModel{
		spec: spec.Clone(),
		genArgs: map[string]any{
			GenArgTemperature: 0.0,
			GenArgMaxTokens:   defaultMaxTokens,
		},
	}
}

func (m *BaseModel) Name() string    { return m.spec.ModelName() }
func (m *BaseModel) Spec() ModelSpec { return m.spec.Clone() }

func (m *BaseModel) Temperature() float64 {
	v, _ := toFloat(m.genArgs[GenArgTemperature])
	return v
}

func (m *BaseModel) MaxTokens() int {
	v, ok := toFloat(m.genArgs[GenArgMaxTokens])
	if !ok {
		return defaultMaxTokens
	}
	return int(v)
}

// SetGenArgs merges args into the generation arguments.
func (m *BaseModel) SetGenArgs(args map[string]any) {
	if m.genArgs == nil {
		m.genArgs = make(map[string]any, len(args))
	}
	for k, v := range args {
		m.genArgs[k] = v
	}
}

// SetGenArg sets a single generation argument.
func (m *BaseModel) SetGenArg(key string, value any) {
	m.SetGenArgs(map[string]any{key: value})
}

// GenArg returns a generation argument.
func (m *BaseModel) GenArg(key string) (any, bool) {
	v, ok := m.genArgs[key]
	return v, ok
}

func (m *BaseModel) String() string { return m.Name() }

// GenArgSetter is implemented by models whose generation arguments can be
// changed after construction.
type GenArgSetter interface {
	SetGenArgs(args map[string]any)
}

// ApplyGenArgs sets temperature and max tokens on every model that supports it.
func ApplyGenArgs(models []Model, temperature float64, maxTokens int) {
	for _, m := range models {
		if s, ok := m.(GenArgSetter); ok {
			s.SetGenArgs(map[string]any{
				GenArgTemperature: temperature,
				GenArgMaxTokens:   maxTokens,
			})
		}
	}
}

// markerModel is a model whose responses are produced by the player wrapper.
type markerModel struct {
	BaseModel
}

func (m *markerModel) Respond(context.Context, []chat.Message) (any, map[string]any, string, error) {
	return nil, nil, "", fmt.Errorf("%s: %w", m.Name(), ErrNotCallable)
}

// HumanModel stands in for a person typing responses.
type HumanModel struct{ markerModel }

// ProgrammaticModel stands in for game-provided scripted responses.
type ProgrammaticModel struct{ markerModel }

// NewHumanModel returns a marker for interactive input.
func NewHumanModel(spec ModelSpec) *HumanModel {
	return &HumanModel{markerModel{NewBaseModel(spec)}}
}

// NewProgrammaticModel returns a marker for game-scripted responses.
func NewProgrammaticModel(spec ModelSpec) *ProgrammaticModel {
	return &ProgrammaticModel{markerModel{NewBaseModel(spec)}}
}

// IsHuman reports whether m is answered by interactive input.
func IsHuman(m Model) bool {
	_, ok := m.(*HumanModel)
	return ok
}

// IsProgrammatic reports whether m is answered by game-scripted logic.
func IsProgrammatic(m Model) bool {
	_, ok := m.(*ProgrammaticModel)
	return ok
}

// ContextExceededError is returned when a prompt leaves too little room in the
// model's context window for the requested response.
type ContextExceededError struct {
	Model       string
	TokensUsed  int
	TokensLeft  int
	ContextSize int
}

func (e *ContextExceededError) Error() string {
	return fmt.Sprintf("context exceeded for %s: %d tokens used, %d left of %d",
		e.Model, e.TokensUsed, e.TokensLeft, e.ContextSize)
}

// CheckContextLimit returns a *ContextExceededError when promptTokens plus
// maxNewTokens does not fit in contextSize.
func CheckContextLimit(model string, contextSize, promptTokens, maxNewTokens int) error {
	left := contextSize - promptTokens
	if left < maxNewTokens {
		return &ContextExceededError{
			Model:       model,
			TokensUsed:  promptTokens,
			TokensLeft:  left,
			ContextSize: contextSize,
		}
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}
