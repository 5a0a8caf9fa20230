// Package script implements a backend whose models are JavaScript programs
// run in a sandboxed goja runtime. It is meant for dry runs and for players
// whose behavior is easier to express as a script than as Go.
//
// A script must define a global function:
//
//	function respond(messages, options) { return "text" }
//
// where messages is the role-normalized history and options carries the
// model name and generation arguments. The function may return a string or an
// object with a string "text" property; any other properties of the object
// are recorded with the response.
package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/require"

	"github.com/joeycumines/turnbench/internal/backend"
	"github.com/joeycumines/turnbench/internal/chat"
)

// Name is the backend name scripts are registered under.
const Name = "script"

// Spec keys understood by this backend.
const (
	KeyScript = "script"
	KeySource = "source"
)

const (
	DefaultInitTimeout = 2 * time.Second
	DefaultCallTimeout = 5 * time.Second
)

var (
	// ErrNoSource is returned when a spec names neither a script file nor inline source.
	ErrNoSource = errors.New("script spec has no script or source")
	// ErrNoRespond is returned when a script does not define respond().
	ErrNoRespond = errors.New("script does not define respond()")
)

// Option configures a Backend.
type Option func(*Backend)

// WithBaseDir resolves relative script paths against dir.
func WithBaseDir(dir string) Option {
	return func(b *Backend) { b.baseDir = dir }
}

// WithCallTimeout bounds each respond() invocation.
func WithCallTimeout(d time.Duration) Option {
	return func(b *Backend) { b.callTimeout = d }
}

// WithLogger sets the logger that receives console output from scripts.
func WithLogger(l *slog.Logger) Option {
	return func(b *Backend) { b.logger = l }
}

// Backend builds script models.
type Backend struct {
	baseDir     string
	callTimeout time.Duration
	logger      *slog.Logger
}

// NewBackend creates a script backend.
func NewBackend(opts ...Option) *Backend {
	b := &Backend{
		callTimeout: DefaultCallTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ModelFor loads and evaluates the script named by spec.
func (b *Backend) ModelFor(spec backend.ModelSpec) (backend.Model, error) {
	source, origin, err := b.loadSource(spec)
	if err != nil {
		return nil, err
	}

	m := &Model{
		BaseModel: backend.NewBaseModel(spec),
		vm:        goja.New(),
		timeout:   b.callTimeout,
		origin:    origin,
	}
	if err := m.init(b.logger.With("model", spec.ModelName())); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), DefaultInitTimeout)
	defer cancel()
	if err := m.guard(ctx, func() error {
		_, err := m.vm.RunScript(origin, source)
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to evaluate %s: %w", origin, err)
	}

	fn, ok := goja.AssertFunction(m.vm.Get("respond"))
	if !ok {
		return nil, fmt.Errorf("%s: %w", origin, ErrNoRespond)
	}
	m.respond = fn
	return m, nil
}

func (b *Backend) loadSource(spec backend.ModelSpec) (source, origin string, err error) {
	if src, ok := spec[KeySource].(string); ok && src != "" {
		return src, spec.ModelName() + ".js", nil
	}
	path, ok := spec[KeyScript].(string)
	if !ok || path == "" {
		return "", "", fmt.Errorf("model %q: %w", spec.ModelName(), ErrNoSource)
	}
	if !filepath.IsAbs(path) && b.baseDir != "" {
		path = filepath.Join(b.baseDir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to read script: %w", err)
	}
	return string(data), path, nil
}

// Model is a backend.Model backed by a script. A Model is safe for use by
// one episode at a time; calls are serialized.
type Model struct {
	backend.BaseModel

	mu      sync.Mutex
	vm      *goja.Runtime
	respond goja.Callable
	timeout time.Duration
	origin  string
	logger  *slog.Logger
}

// functionKinds are function literals whose prototypes expose a constructor
// that compiles source text.
var functionKinds = []string{"function(){}", "function*(){}", "async function(){}"}

func (m *Model) init(logger *slog.Logger) error {
	m.logger = logger
	// Only native modules resolve; scripts cannot require files.
	registry := require.NewRegistry(require.WithLoader(func(string) ([]byte, error) {
		return nil, require.ModuleFileDoesNotExistError
	}))
	registry.RegisterNativeModule(console.ModuleName, console.RequireWithPrinter(&slogPrinter{logger: logger}))
	registry.RegisterNativeModule(TextModuleName, RequireText)
	registry.Enable(m.vm)
	console.Enable(m.vm)

	for _, kind := range functionKinds {
		src := `Object.defineProperty(Object.getPrototypeOf(` + kind + `), "constructor", {value: undefined, writable: false, configurable: false})`
		if _, err := m.vm.RunString(src); err != nil {
			return fmt.Errorf("failed to seal %s constructor: %w", kind, err)
		}
	}
	for _, name := range []string{"eval", "Function", "fetch", "XMLHttpRequest"} {
		_ = m.vm.Set(name, goja.Undefined())
	}
	return nil
}

// guard runs fn, interrupting the runtime when ctx ends.
func (m *Model) guard(ctx context.Context, fn func() error) error {
	fired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		m.vm.Interrupt(context.Cause(ctx))
		close(fired)
	})
	err := fn()
	if !stop() {
		// The interrupt may have landed after fn returned.
		<-fired
		m.vm.ClearInterrupt()
	}
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if cause := context.Cause(ctx); cause != nil {
			return fmt.Errorf("script interrupted: %w", cause)
		}
	}
	return err
}

// Respond calls the script's respond function.
func (m *Model) Respond(ctx context.Context, messages []chat.Message) (any, map[string]any, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	normalized, merged := chat.EnsureAlternatingRoles(messages, true)
	if merged > 0 {
		m.logger.Warn("merged consecutive chat messages", "count", merged)
	}
	prompt := map[string]any{
		"messages":                 normalized,
		backend.GenArgTemperature: m.Temperature(),
		backend.GenArgMaxTokens:   m.MaxTokens(),
	}

	jsMessages := make([]any, len(normalized))
	for i, msg := range normalized {
		entry := map[string]any{"role": string(msg.Role), "content": msg.Content}
		if len(msg.Images) > 0 {
			entry["image"] = append([]string(nil), msg.Images...)
		}
		jsMessages[i] = entry
	}
	options := map[string]any{
		"model":                   m.Name(),
		backend.GenArgTemperature: m.Temperature(),
		backend.GenArgMaxTokens:   m.MaxTokens(),
	}

	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	var result goja.Value
	err := m.guard(callCtx, func() error {
		var err error
		result, err = m.respond(goja.Undefined(), m.vm.ToValue(jsMessages), m.vm.ToValue(options))
		return err
	})
	if err != nil {
		return prompt, nil, "", fmt.Errorf("%s: respond failed: %w", m.origin, err)
	}

	response, text, err := exportResult(result)
	if err != nil {
		return prompt, nil, "", fmt.Errorf("%s: %w", m.origin, err)
	}
	return prompt, response, text, nil
}

func exportResult(v goja.Value) (map[string]any, string, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, "", errors.New("respond returned no value")
	}
	switch exported := v.Export().(type) {
	case string:
		return map[string]any{"text": exported}, exported, nil
	case map[string]any:
		text, ok := exported["text"].(string)
		if !ok {
			return nil, "", errors.New(`respond returned an object without a string "text" property`)
		}
		return exported, text, nil
	default:
		return nil, "", fmt.Errorf("respond returned unsupported type %T", exported)
	}
}

type slogPrinter struct {
	logger *slog.Logger
}

func (p *slogPrinter) Log(s string)   { p.logger.Info(s, "source", "console") }
func (p *slogPrinter) Warn(s string)  { p.logger.Warn(s, "source", "console") }
func (p *slogPrinter) Error(s string) { p.logger.Error(s, "source", "console") }
