package game

// Rules supplies the game specific decisions of an Engine. The engine calls
// them at fixed points of its loop; see Engine.Play.
//
// Implementations embed BaseRules and provide OnSetup and DoesGameProceed.
// Rules must guarantee that DoesGameProceed eventually returns false, since
// the engine does not bound the number of turns or rejected responses.
type Rules interface {
	// OnSetup registers players with g.AddPlayer and prepares game state.
	OnSetup(g *Engine, instance Instance) error
	// DoesGameProceed reports whether another player may be prompted.
	DoesGameProceed(g *Engine) bool

	// ValidateResponse decides whether utterance is accepted. A rejected
	// utterance changes no history. This is also where end conditions are
	// usually detected.
	ValidateResponse(g *Engine, p *Player, utterance string) bool
	// ParseResponse may rewrite an accepted utterance. A changed utterance is
	// logged as a parse event when log is true.
	ParseResponse(g *Engine, p *Player, utterance string) (parsed string, log bool)
	// AfterAddResponse runs after the utterance was added to p's history. It
	// is the place to forward the utterance to other players.
	AfterAddResponse(g *Engine, p *Player, utterance string)

	// ShouldReprompt reports whether p is prompted again in the same turn.
	ShouldReprompt(g *Engine, p *Player) bool
	// OnBeforeReprompt must add a new user message to p's history.
	OnBeforeReprompt(g *Engine, p *Player)

	OnBeforeTurn(g *Engine, turn int)
	OnAfterTurn(g *Engine, turn int)
	OnBeforeGame(g *Engine)
	OnAfterGame(g *Engine)
}

// PlayerOrder may be implemented by Rules to change the order in which
// players are prompted within a turn. The default is registration order.
type PlayerOrder interface {
	PlayerSequence(g *Engine) []*Player
}

// BaseRules provides the default for every optional hook of Rules.
type BaseRules struct{}

func (BaseRules) ValidateResponse(*Engine, *Player, string) bool { return true }

func (BaseRules) ParseResponse(_ *Engine, _ *Player, utterance string) (string, bool) {
	return utterance, true
}

func (BaseRules) AfterAddResponse(*Engine, *Player, string) {}
func (BaseRules) ShouldReprompt(*Engine, *Player) bool      { return false }
func (BaseRules) OnBeforeReprompt(*Engine, *Player)         {}
func (BaseRules) OnBeforeTurn(*Engine, int)                 {}
func (BaseRules) OnAfterTurn(*Engine, int)                  {}
func (BaseRules) OnBeforeGame(*Engine)                      {}
func (BaseRules) OnAfterGame(*Engine)                       {}
