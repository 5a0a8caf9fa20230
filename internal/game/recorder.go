package game

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/joeycumines/turnbench/internal/chat"
	"github.com/joeycumines/turnbench/internal/results"
)

// GM is the descriptor of the game master in events and the players map.
const GM = "GM"

// PlayerPrefix starts every player descriptor.
const PlayerPrefix = "Player "

// Action types logged by the engine.
const (
	ActionSendMessage         = "send message"
	ActionSendMessageReprompt = "send message (reprompt)"
	ActionGetMessage          = "get message"
	ActionParse               = "parse"
	ActionMetadata            = "metadata"
)

// Keys of the interactions document owned by the recorder.
const (
	KeyPlayers = "players"
	KeyTurns   = "turns"
)

const timestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// Action is the typed payload of an Event.
type Action struct {
	Type    string `json:"type"`
	Content any    `json:"content"`
}

// Event is one logged interaction.
type Event struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Timestamp string `json:"timestamp"`
	Action    Action `json:"action"`
}

// Call is the prompt and raw response of one player call.
type Call struct {
	Prompt   any
	Response any
}

// Request is a Call as stored in the requests document. Its timestamp equals
// the timestamp of the event it was logged with.
type Request struct {
	Timestamp string `json:"timestamp"`
	Prompt    any    `json:"manipulated_prompt_obj"`
	Response  any    `json:"raw_response_obj"`
}

// Interactions is the interactions document.
type Interactions struct {
	Players map[string]string
	Turns   [][]Event
	// Keys holds game specific entries written with LogKey.
	Keys map[string]any
}

// MarshalJSON flattens Keys next to players and turns.
func (i Interactions) MarshalJSON() ([]byte, error) {
	doc := make(map[string]any, len(i.Keys)+2)
	for k, v := range i.Keys {
		doc[k] = v
	}
	players := i.Players
	if players == nil {
		players = map[string]string{}
	}
	turns := i.Turns
	if turns == nil {
		turns = [][]Event{}
	}
	doc[KeyPlayers] = players
	doc[KeyTurns] = turns
	return json.Marshal(doc)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (i *Interactions) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*i = Interactions{Keys: make(map[string]any)}
	for k, v := range raw {
		var err error
		switch k {
		case KeyPlayers:
			err = json.Unmarshal(v, &i.Players)
		case KeyTurns:
			err = json.Unmarshal(v, &i.Turns)
		default:
			var val any
			err = json.Unmarshal(v, &val)
			i.Keys[k] = val
		}
		if err != nil {
			return fmt.Errorf("invalid %q: %w", k, err)
		}
	}
	return nil
}

// Option configures a Recorder or Engine.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	clock      func() time.Time
	experiment map[string]any
	human      HumanInput
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock overrides the wall clock used for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.clock = now }
}

// WithExperiment attaches the experiment configuration an episode runs under.
func WithExperiment(exp map[string]any) Option {
	return func(o *options) { o.experiment = exp }
}

// WithHumanInput sets where human players read their responses from.
func WithHumanInput(in HumanInput) Option {
	return func(o *options) { o.human = in }
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default(), clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Recorder is the append-only log of one episode.
type Recorder struct {
	name   string
	logger *slog.Logger
	clock  func() time.Time
	last   time.Time

	turn     int
	players  map[string]string
	turns    [][]Event
	keys     map[string]any
	requests []Request
}

// NewRecorder creates an empty recorder for the named game.
func NewRecorder(name string, opts ...Option) *Recorder {
	o := buildOptions(opts)
	return newRecorder(name, o)
}

func newRecorder(name string, o options) *Recorder {
	return &Recorder{
		name:     name,
		logger:   o.logger.With("game", name),
		clock:    o.clock,
		turn:     -1,
		players:  make(map[string]string),
		turns:    make([][]Event, 0),
		keys:     make(map[string]any),
		requests: make([]Request, 0),
	}
}

// Name returns the game name.
func (r *Recorder) Name() string { return r.name }

// Logger returns the recorder's logger.
func (r *Recorder) Logger() *slog.Logger { return r.logger }

// TurnIndex returns the index of the open turn, or -1 before LogNextTurn.
func (r *Recorder) TurnIndex() int { return r.turn }

// LogNextTurn opens a new turn.
func (r *Recorder) LogNextTurn() {
	r.turn++
	r.turns = append(r.turns, make([]Event, 0))
}

// LogEvent appends an event to the open turn. When call is non-nil a request
// record with the same timestamp is appended as well. Payloads are copied, so
// later changes by the caller are not reflected in the log.
func (r *Recorder) LogEvent(from, to string, action Action, call *Call) {
	if r.turn < 0 {
		violation("log event", "no turn is open, call LogNextTurn first")
	}

	ts := r.timestamp()
	r.turns[r.turn] = append(r.turns[r.turn], Event{
		From:      from,
		To:        to,
		Timestamp: ts,
		Action:    Action{Type: action.Type, Content: snapshot(action.Content)},
	})
	if call != nil {
		r.requests = append(r.requests, Request{
			Timestamp: ts,
			Prompt:    snapshot(call.Prompt),
			Response:  snapshot(call.Response),
		})
	}

	r.logger.Debug("event",
		"turn", r.turn,
		"from", from,
		"to", to,
		"type", action.Type,
		"call", call != nil,
	)
}

// timestamp returns a timestamp strictly after the previous one, so that
// request records map to exactly one event.
func (r *Recorder) timestamp() string {
	now := r.clock().Truncate(time.Microsecond)
	if !r.last.IsZero() && !now.After(r.last) {
		now = r.last.Add(time.Microsecond)
	}
	r.last = now
	return now.Format(timestampLayout)
}

// LogKey stores a game specific entry in the interactions document.
func (r *Recorder) LogKey(key string, value any) {
	if key == KeyPlayers || key == KeyTurns {
		violation("log key", "%q is reserved", key)
	}
	r.keys[key] = snapshot(value)
	r.logger.Debug("key", "key", key)
}

// LogPlayers replaces the players map.
func (r *Recorder) LogPlayers(players map[string]string) {
	r.players = make(map[string]string, len(players))
	for k, v := range players {
		r.players[k] = v
	}
}

// Interactions returns a copy of the interactions document.
func (r *Recorder) Interactions() Interactions {
	out := Interactions{
		Players: make(map[string]string, len(r.players)),
		Turns:   make([][]Event, len(r.turns)),
		Keys:    make(map[string]any, len(r.keys)),
	}
	for k, v := range r.players {
		out.Players[k] = v
	}
	for i, events := range r.turns {
		out.Turns[i] = make([]Event, len(events))
		for j, ev := range events {
			ev.Action.Content = snapshot(ev.Action.Content)
			out.Turns[i][j] = ev
		}
	}
	for k, v := range r.keys {
		out.Keys[k] = snapshot(v)
	}
	return out
}

// Requests returns a copy of the requests log.
func (r *Recorder) Requests() []Request {
	out := make([]Request, len(r.requests))
	for i, req := range r.requests {
		req.Prompt = snapshot(req.Prompt)
		req.Response = snapshot(req.Response)
		out[i] = req
	}
	return out
}

// CheckRecords reports integrity problems that would hinder downstream
// consumers of the documents.
func (r *Recorder) CheckRecords() []string {
	var warnings []string
	if len(r.players) == 0 {
		warnings = append(warnings, "players map is empty")
	}
	for name := range r.players {
		if name != GM && !strings.HasPrefix(name, PlayerPrefix) {
			warnings = append(warnings, fmt.Sprintf("invalid player descriptor %q", name))
		}
	}
	if len(r.turns) == 0 {
		warnings = append(warnings, "no turns were logged")
	}
	if len(r.requests) == 0 {
		warnings = append(warnings, "no calls were logged")
	}
	return warnings
}

// StoreRecords writes interactions.json and requests.json into dir.
// Integrity problems are logged as warnings and never prevent the write.
func (r *Recorder) StoreRecords(dir string) error {
	for _, w := range r.CheckRecords() {
		r.logger.Warn("[Records] "+w, "dir", dir)
	}
	if err := results.WriteJSON(filepath.Join(dir, results.InteractionsFile), r.Interactions()); err != nil {
		return fmt.Errorf("failed to store interactions: %w", err)
	}
	if err := results.WriteJSON(filepath.Join(dir, results.RequestsFile), r.Requests()); err != nil {
		return fmt.Errorf("failed to store requests: %w", err)
	}
	r.logger.Info("stored records", "dir", dir, "turns", len(r.turns), "requests", len(r.requests))
	return nil
}

// snapshot copies v so the result shares no mutable memory with it. Values
// of unknown type are frozen as their JSON encoding.
func snapshot(v any) any {
	switch t := v.(type) {
	case nil, string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return t
	case time.Time:
		return t
	case json.RawMessage:
		return append(json.RawMessage(nil), t...)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = snapshot(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = snapshot(e)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(t))
		for k, e := range t {
			out[k] = e
		}
		return out
	case []string:
		return append([]string(nil), t...)
	case []int:
		return append([]int(nil), t...)
	case []float64:
		return append([]float64(nil), t...)
	case []bool:
		return append([]bool(nil), t...)
	case chat.Message:
		return t.Clone()
	case []chat.Message:
		return chat.Clone(t)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return json.RawMessage(b)
}
