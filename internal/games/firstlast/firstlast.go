// Package firstlast implements a two-player word game: players alternate
// sentences whose first and last words start with the current letter, and
// the letter advances after every valid sentence.
package firstlast

import (
	"fmt"
	"strings"

	"github.com/rivo/uniseg"
	"golang.org/x/text/cases"

	"github.com/joeycumines/turnbench/internal/backend"
	"github.com/joeycumines/turnbench/internal/benchmark"
	"github.com/joeycumines/turnbench/internal/chat"
	"github.com/joeycumines/turnbench/internal/game"
)

// Name is the registered game name.
const Name = "firstlast"

// Tag prefixes every well-formed utterance.
const Tag = "I SAY:"

// Instance keys.
const (
	KeyFirstLetter   = "first_letter"
	KeyNTurns        = "n_turns"
	KeyPromptPlayerA = "prompt_player_a"
	KeyPromptPlayerB = "prompt_player_b"
)

// Logged keys.
const (
	LogPlayedTurns          = "Played turns"
	LogCompleteTurns        = "Complete turns"
	LogAborted              = "Aborted"
	LogLose                 = "Lose"
	LogRequestCount         = "Request Count"
	LogParsedRequestCount   = "Parsed Request Count"
	LogViolatedRequestCount = "Violated Request Count"
)

const (
	actionInvalidFormat = "invalid format"
	actionInfo          = "info"
)

var fold = cases.Fold()

// Game is the benchmark factory for FirstLast.
type Game struct{}

var _ benchmark.Factory = Game{}

func (Game) Name() string { return Name }

func (Game) Description() string {
	return "A simple game in which utterances must follow alphabetical rules."
}

func (Game) SinglePlayer() bool { return false }

// NewEpisode needs exactly two models, for players A and B.
func (Game) NewEpisode(exp *benchmark.Experiment, models []backend.Model, opts ...game.Option) (game.Episode, error) {
	if len(models) != 2 {
		return nil, fmt.Errorf("%s needs two models, got %d", Name, len(models))
	}
	r := &rules{topic: exp.Name, models: [2]backend.Model{models[0], models[1]}}
	return game.NewEngine(Name, r, opts...), nil
}

// rules holds the state of one episode.
type rules struct {
	game.BaseRules

	topic  string
	models [2]backend.Model
	a, b   *game.Player

	nTurns   int
	letter   rune
	aborted  bool
	lose     bool
	complete int

	requests []int
	parsed   []int
	violated []int
}

func (r *rules) OnSetup(g *game.Engine, instance game.Instance) error {
	first, err := instance.String(KeyFirstLetter)
	if err != nil {
		return err
	}
	letter, ok := parseLetter(first)
	if !ok {
		return fmt.Errorf("invalid %s %q", KeyFirstLetter, first)
	}
	n, err := instance.Int(KeyNTurns)
	if err != nil {
		return err
	}
	if n < 1 {
		return fmt.Errorf("invalid %s %d", KeyNTurns, n)
	}
	promptA, err := instance.String(KeyPromptPlayerA)
	if err != nil {
		return err
	}
	promptB, err := instance.String(KeyPromptPlayerB)
	if err != nil {
		return err
	}

	r.nTurns, r.letter = n, letter
	r.requests = make([]int, n)
	r.parsed = make([]int, n)
	r.violated = make([]int, n)

	for i, label := range []string{"A", "B"} {
		src, err := game.SourceFor(r.models[i], Speaker(label, letter), g.HumanInput())
		if err != nil {
			return err
		}
		p := game.NewPlayer("Player "+label, src)
		g.AddPlayer(p)
		if i == 0 {
			r.a = p
		} else {
			r.b = p
		}
	}
	g.AddUserMessage(r.a, promptA)
	g.AddUserMessage(r.b, promptB)

	g.LogKey(KeyNTurns, n)
	return nil
}

func (r *rules) DoesGameProceed(g *game.Engine) bool {
	return g.CurrentTurn() < r.nTurns && !r.aborted && !r.lose
}

func (r *rules) ValidateResponse(g *game.Engine, _ *game.Player, utterance string) bool {
	turn := g.CurrentTurn()
	r.requests[turn]++

	first, last, ok := Parse(utterance)
	if !ok {
		r.aborted = true
		g.LogToSelf(actionInvalidFormat, "abort")
		r.violated[turn]++
		return false
	}
	r.parsed[turn]++
	g.LogToSelf(game.ActionMetadata, "valid string")

	if !r.conforms(first, last) {
		r.lose = true
		g.LogToSelf(game.ActionParse, fmt.Sprintf("%s/%s violates rules", first, last))
		return false
	}
	g.LogToSelf(game.ActionParse, fmt.Sprintf("%s/%s conforms to rules", first, last))
	return true
}

// ParseResponse keeps the utterance as is.
func (r *rules) ParseResponse(_ *game.Engine, _ *game.Player, utterance string) (string, bool) {
	return utterance, false
}

func (r *rules) AfterAddResponse(g *game.Engine, p *game.Player, utterance string) {
	if p == r.a {
		g.AddUserMessage(r.b, utterance)
	} else {
		g.AddUserMessage(r.a, utterance)
		r.complete++
	}
	r.letter = nextLetter(r.letter)
}

func (r *rules) OnAfterGame(g *game.Engine) {
	if r.complete == r.nTurns {
		g.LogToSelf(actionInfo, "game successful")
	}
	g.LogToSelf(actionInfo, "end game")

	g.LogKey(LogPlayedTurns, g.CurrentTurn())
	g.LogKey(LogCompleteTurns, r.complete)
	g.LogKey(LogAborted, r.aborted)
	g.LogKey(LogLose, r.lose)
	g.LogKey(LogRequestCount, r.requests)
	g.LogKey(LogParsedRequestCount, r.parsed)
	g.LogKey(LogViolatedRequestCount, r.violated)
}

func (r *rules) conforms(first, last string) bool {
	f := fold.String(firstGrapheme(first))
	return f == string(r.letter) && f == fold.String(firstGrapheme(last))
}

// Parse returns the first and last word after Tag, reporting false when the
// tag or the words are missing.
func Parse(utterance string) (first, last string, ok bool) {
	rest, found := strings.CutPrefix(utterance, Tag)
	if !found {
		return "", "", false
	}
	words := strings.Fields(rest)
	if len(words) == 0 {
		return "", "", false
	}
	return words[0], words[len(words)-1], true
}

func firstGrapheme(s string) string {
	g, _, _, _ := uniseg.FirstGraphemeClusterInString(s, -1)
	return g
}

// parseLetter accepts a single ASCII letter in either case.
func parseLetter(s string) (rune, bool) {
	s = fold.String(s)
	if len(s) != 1 || s[0] < 'a' || s[0] > 'z' {
		return 0, false
	}
	return rune(s[0]), true
}

func nextLetter(l rune) rune {
	if l >= 'z' {
		return 'a'
	}
	return l + 1
}

// Speaker returns the scripted response of a programmatic player: a
// well-formed sentence using the letter after the one the previous sentence
// started with, or initial when there is no previous sentence.
func Speaker(label string, initial rune) game.ScriptedFunc {
	return func(history []chat.Message, turn int) string {
		l := initial
		if last, ok := chat.Last(history); ok {
			if first, _, ok := Parse(last.Content); ok {
				if prev, ok := parseLetter(firstGrapheme(first)); ok {
					l = nextLetter(prev)
				}
			}
		}
		return fmt.Sprintf("%s %cxxx from %s, turn %d %cxxx.", Tag, l, label, turn, l)
	}
}
