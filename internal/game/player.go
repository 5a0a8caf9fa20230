package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joeycumines/turnbench/internal/backend"
	"github.com/joeycumines/turnbench/internal/chat"
)

// CallMetadataKey is the response key under which Player.Respond records
// timing and identity of each call.
const CallMetadataKey = "player_call"

// SourceKind discriminates the variants of Source.
type SourceKind int

const (
	SourceBackend SourceKind = iota
	SourceScripted
	SourceHuman
)

func (k SourceKind) String() string {
	switch k {
	case SourceBackend:
		return "backend"
	case SourceScripted:
		return "scripted"
	case SourceHuman:
		return "human"
	default:
		return fmt.Sprintf("SourceKind(%d)", int(k))
	}
}

// ScriptedFunc produces a response from game logic. It must not fail.
type ScriptedFunc func(history []chat.Message, turn int) string

// HumanInput reads a response typed by a person.
type HumanInput interface {
	ReadResponse(ctx context.Context, descriptor string, history []chat.Message, turn int) (string, error)
}

// Source is the response generator behind a Player. Exactly one of the
// variant payloads is set, as indicated by Kind.
type Source struct {
	kind     SourceKind
	name     string
	model    backend.Model
	scripted ScriptedFunc
	human    HumanInput
}

// BackendSource answers through a model backend.
func BackendSource(m backend.Model) Source {
	return Source{kind: SourceBackend, name: m.Name(), model: m}
}

// ScriptedSource answers through fn.
func ScriptedSource(name string, fn ScriptedFunc) Source {
	return Source{kind: SourceScripted, name: name, scripted: fn}
}

// HumanSource answers through interactive input.
func HumanSource(name string, in HumanInput) Source {
	return Source{kind: SourceHuman, name: name, human: in}
}

var (
	errNoScript = errors.New("programmatic model requires a scripted response function")
	errNoHuman  = errors.New("human model requires an input source")
)

// SourceFor picks the variant for m: programmatic markers use fn, human
// markers use in, and anything else calls the model.
func SourceFor(m backend.Model, fn ScriptedFunc, in HumanInput) (Source, error) {
	switch {
	case backend.IsProgrammatic(m):
		if fn == nil {
			return Source{}, fmt.Errorf("%s: %w", m.Name(), errNoScript)
		}
		return ScriptedSource(m.Name(), fn), nil
	case backend.IsHuman(m):
		if in == nil {
			return Source{}, fmt.Errorf("%s: %w", m.Name(), errNoHuman)
		}
		return HumanSource(m.Name(), in), nil
	default:
		return BackendSource(m), nil
	}
}

func (s Source) Kind() SourceKind { return s.kind }
func (s Source) Name() string     { return s.name }

// Player wraps one Source behind a single call signature.
type Player struct {
	label      string
	source     Source
	descriptor string
	now        func() time.Time
}

// NewPlayer creates a player. The label is a human readable role name such
// as "Guesser"; the descriptor is assigned when the player joins an engine.
func NewPlayer(label string, src Source) *Player {
	return &Player{label: label, source: src, now: time.Now}
}

// Descriptor returns "Player N", or "" before registration.
func (p *Player) Descriptor() string { return p.descriptor }

func (p *Player) Label() string        { return p.label }
func (p *Player) Kind() SourceKind     { return p.source.kind }
func (p *Player) ModelName() string    { return p.source.name }
func (p *Player) Model() backend.Model { return p.source.model }

// Description is the text recorded in the interactions players map.
func (p *Player) Description() string {
	label := p.label
	if label == "" {
		label = p.descriptor
	}
	return fmt.Sprintf("%s, %s", label, p.source.name)
}

func (p *Player) String() string { return p.Description() }

func (p *Player) assignDescriptor(d string) {
	if p.descriptor != "" {
		violation("add player", "player already registered as %q", p.descriptor)
	}
	p.descriptor = d
}

// Respond produces the player's next utterance for history.
//
// The prompt and response payloads are recorded verbatim. For scripted and
// human sources the prompt is the history itself. Backend errors are returned
// unchanged.
func (p *Player) Respond(ctx context.Context, history []chat.Message, turn int) (any, map[string]any, string, error) {
	start := p.now()
	history = chat.Clone(history)

	var (
		prompt   any = history
		response map[string]any
		text     string
	)
	switch p.source.kind {
	case SourceBackend:
		var err error
		prompt, response, text, err = p.source.model.Respond(ctx, history)
		if err != nil {
			return nil, nil, "", err
		}
	case SourceScripted:
		text = p.source.scripted(history, turn)
	case SourceHuman:
		var err error
		text, err = p.source.human.ReadResponse(ctx, p.descriptor, history, turn)
		if err != nil {
			return nil, nil, "", fmt.Errorf("failed to read response for %s: %w", p.descriptor, err)
		}
	default:
		panic(fmt.Sprintf("unhandled player source %v", p.source.kind))
	}

	if response == nil {
		response = make(map[string]any)
	}
	response[CallMetadataKey] = map[string]any{
		"call_start":    start.Format(timestampLayout),
		"call_duration": p.now().Sub(start).String(),
		"response":      text,
		"model_name":    p.source.name,
	}
	return prompt, response, text, nil
}
