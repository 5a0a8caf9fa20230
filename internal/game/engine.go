package game

import (
	"context"
	"fmt"

	"github.com/joeycumines/turnbench/internal/chat"
)

// Engine runs a dialogue game: it owns the players and their histories,
// drives the turn loop and records every step. Game behavior is supplied by
// Rules. An Engine serves exactly one episode and is not safe for concurrent
// use.
type Engine struct {
	*Recorder

	rules      Rules
	experiment map[string]any
	human      HumanInput
	players    []*Player
	histories  map[string][]chat.Message
	turn       int
}

var _ Episode = (*Engine)(nil)

// NewEngine creates an engine for the named game.
func NewEngine(name string, rules Rules, opts ...Option) *Engine {
	o := buildOptions(opts)
	return &Engine{
		Recorder:   newRecorder(name, o),
		rules:      rules,
		experiment: o.experiment,
		human:      o.human,
		histories:  make(map[string][]chat.Message),
	}
}

// Rules returns the rules the engine was created with.
func (g *Engine) Rules() Rules { return g.rules }

// HumanInput returns the input human players read from, which may be nil.
func (g *Engine) HumanInput() HumanInput { return g.human }

// Experiment returns the experiment configuration, which may be nil.
func (g *Engine) Experiment() map[string]any { return g.experiment }

// CurrentTurn is the number of completed turns.
func (g *Engine) CurrentTurn() int { return g.turn }

// AddPlayer registers p as "Player N", N being its 1-based registration
// position, and gives it an empty history. Players are prompted in
// registration order.
func (g *Engine) AddPlayer(p *Player) string {
	d := fmt.Sprintf("%s%d", PlayerPrefix, len(g.players)+1)
	p.assignDescriptor(d)
	g.players = append(g.players, p)
	g.histories[d] = make([]chat.Message, 0)
	return d
}

// Players returns the registered players in registration order.
func (g *Engine) Players() []*Player {
	return append([]*Player(nil), g.players...)
}

// Player returns the player registered under descriptor.
func (g *Engine) Player(descriptor string) (*Player, bool) {
	for _, p := range g.players {
		if p.descriptor == descriptor {
			return p, true
		}
	}
	return nil, false
}

// History returns a copy of p's history.
func (g *Engine) History(p *Player) []chat.Message {
	return chat.Clone(g.history(p, "history"))
}

func (g *Engine) history(p *Player, op string) []chat.Message {
	h, ok := g.histories[p.descriptor]
	if !ok {
		violation(op, "player %q is not registered", p.descriptor)
	}
	return h
}

// AddMessage appends a message to p's own history. This is the only way
// histories grow; no history is ever shared between players.
func (g *Engine) AddMessage(p *Player, role chat.Role, content string, images ...string) {
	h := g.history(p, "add message")
	msg := chat.Message{Role: role, Content: content}
	if len(images) > 0 {
		msg.Images = append([]string(nil), images...)
	}
	g.histories[p.descriptor] = append(h, msg)
}

// AddUserMessage appends a user message to p's history.
func (g *Engine) AddUserMessage(p *Player, content string, images ...string) {
	g.AddMessage(p, chat.RoleUser, content, images...)
}

// AddAssistantMessage appends an assistant message to p's history.
func (g *Engine) AddAssistantMessage(p *Player, content string) {
	g.AddMessage(p, chat.RoleAssistant, content)
}

// AddSystemMessage appends a system message to p's history.
func (g *Engine) AddSystemMessage(p *Player, content string) {
	g.AddMessage(p, chat.RoleSystem, content)
}

// LogMessageTo logs a GM to player message that is not a prompt.
func (g *Engine) LogMessageTo(p *Player, message string) {
	g.LogEvent(GM, p.descriptor, Action{Type: ActionSendMessage, Content: message}, nil)
}

// LogMessageToSelf logs a metadata note from the GM to itself.
func (g *Engine) LogMessageToSelf(message string) {
	g.LogToSelf(ActionMetadata, message)
}

// LogToSelf logs a GM to GM event of the given type.
func (g *Engine) LogToSelf(actionType string, value any) {
	g.LogEvent(GM, GM, Action{Type: actionType, Content: value}, nil)
}

// Setup runs the rules' setup and records the players map.
func (g *Engine) Setup(ctx context.Context, instance Instance) (err error) {
	defer recoverProtocol(&err)

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := g.rules.OnSetup(g, instance); err != nil {
		return fmt.Errorf("failed to set up %s: %w", g.Name(), err)
	}

	players := map[string]string{GM: "Game master for " + g.Name()}
	for _, p := range g.players {
		players[p.descriptor] = p.Description()
	}
	g.LogPlayers(players)
	g.logger.Debug("setup complete", "players", len(g.players), "game_id", instance.GameID())
	return nil
}

// Play runs the game loop until the rules end it.
//
// Each turn opens a new log bucket and prompts every player in order,
// re-prompting while the rules ask for it. The proceed check is repeated
// before every player; once it fails the loop ends without asking again.
// Backend errors are returned unchanged. Protocol violations by the rules are
// returned as *ProtocolError.
func (g *Engine) Play(ctx context.Context) (err error) {
	defer recoverProtocol(&err)

	g.rules.OnBeforeGame(g)
	stopped := false
	for !stopped && g.rules.DoesGameProceed(g) {
		g.LogNextTurn()
		g.rules.OnBeforeTurn(g, g.turn)
		g.logger.Info("turn", "turn", g.turn)

		for _, p := range g.playerSequence() {
			if !g.rules.DoesGameProceed(g) {
				stopped = true
				break
			}
			if err := g.Prompt(ctx, p, false); err != nil {
				return err
			}
			for g.rules.ShouldReprompt(g, p) {
				g.rules.OnBeforeReprompt(g, p)
				if err := g.Prompt(ctx, p, true); err != nil {
					return err
				}
			}
		}

		g.rules.OnAfterTurn(g, g.turn)
		g.turn++
	}
	g.rules.OnAfterGame(g)
	return nil
}

func (g *Engine) playerSequence() []*Player {
	if o, ok := g.rules.(PlayerOrder); ok {
		return o.PlayerSequence(g)
	}
	return g.Players()
}

// Prompt sends p its latest message, records the response and runs it
// through validation, parsing and the history update.
//
// p's history must be non-empty and must not end with an assistant message.
func (g *Engine) Prompt(ctx context.Context, p *Player, reprompt bool) error {
	h := g.history(p, "prompt")
	last, ok := chat.Last(h)
	if !ok {
		violation("prompt", "history of %s is empty", p.descriptor)
	}
	if last.Role == chat.RoleAssistant {
		violation("prompt", "history of %s ends with an unanswered assistant message", p.descriptor)
	}

	actionType := ActionSendMessage
	if reprompt {
		actionType = ActionSendMessageReprompt
	}
	g.LogEvent(GM, p.descriptor, Action{Type: actionType, Content: last.Content}, nil)

	prompt, response, utterance, err := p.Respond(ctx, h, g.turn)
	if err != nil {
		return err
	}

	g.LogEvent(p.descriptor, GM, Action{Type: ActionGetMessage, Content: utterance}, &Call{Prompt: prompt, Response: response})

	g.handleResponse(p, utterance)
	return nil
}

func (g *Engine) handleResponse(p *Player, utterance string) {
	if !g.rules.ValidateResponse(g, p, utterance) {
		g.logger.Debug("response rejected", "player", p.descriptor, "turn", g.turn)
		return
	}
	parsed, log := g.rules.ParseResponse(g, p, utterance)
	if parsed != utterance && log {
		g.LogToSelf(ActionParse, parsed)
	}
	g.AddAssistantMessage(p, parsed)
	g.rules.AfterAddResponse(g, p, parsed)
}
