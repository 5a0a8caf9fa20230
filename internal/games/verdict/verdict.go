// Package verdict implements a single-player question game. A speaker model
// answers yes or no questions, a scripted judge acknowledges every answer,
// and an expr-lang rule from the experiment decides which answers are valid.
package verdict

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/expr-lang/expr/vm"

	"github.com/joeycumines/turnbench/internal/backend"
	"github.com/joeycumines/turnbench/internal/benchmark"
	"github.com/joeycumines/turnbench/internal/chat"
	"github.com/joeycumines/turnbench/internal/game"
)

// Name is the registered game name.
const Name = "verdict"

// Instance keys.
const (
	KeyPrompt   = "prompt"
	KeyExpected = "expected"
	KeyImage    = "image"
)

// Experiment parameters.
const (
	ParamRule       = "rule"
	ParamNQuestions = "n_questions"
)

// Logged keys.
const (
	LogAborted    = "Aborted"
	LogSuccess    = "Success"
	LogJudgements = "Judgements"
)

const (
	// FollowUp is asked in every round after the first. Its answer is
	// always FollowUpExpected.
	FollowUp         = `Are there any chickens in the picture? Answer with only "Yes" or "No".`
	FollowUpExpected = "no"
	JudgeQuestion    = "Do you think this is correct?"
	JudgeReply       = "That seems right."

	defaultNQuestions = 2
)

// Game is the benchmark factory for verdict.
type Game struct{}

var _ benchmark.Factory = Game{}

func (Game) Name() string { return Name }

func (Game) Description() string {
	return "A single model answers yes or no questions about a described picture."
}

func (Game) SinglePlayer() bool { return true }

// NewEpisode needs exactly one model, the speaker.
func (Game) NewEpisode(exp *benchmark.Experiment, models []backend.Model, opts ...game.Option) (game.Episode, error) {
	if len(models) != 1 {
		return nil, fmt.Errorf("%s needs one model, got %d", Name, len(models))
	}

	src := DefaultRule
	if v, ok := exp.Param(ParamRule); ok {
		s, isStr := v.(string)
		if !isStr || s == "" {
			return nil, fmt.Errorf("experiment %q: %s must be a non-empty string", exp.Name, ParamRule)
		}
		src = s
	}
	rule, err := CompileRule(src)
	if err != nil {
		return nil, err
	}

	n := defaultNQuestions
	if v, ok := exp.Param(ParamNQuestions); ok {
		n, ok = positiveInt(v)
		if !ok {
			return nil, fmt.Errorf("experiment %q: %s must be a positive integer", exp.Name, ParamNQuestions)
		}
	}

	return game.NewEngine(Name, &rules{model: models[0], rule: rule, nQuestions: n}, opts...), nil
}

type rules struct {
	game.BaseRules

	model      backend.Model
	rule       *vm.Program
	nQuestions int

	speaker, judge *game.Player
	prompt, image  string
	expected       string

	correct    bool
	judgements []bool
	aborted    bool
}

func (r *rules) OnSetup(g *game.Engine, instance game.Instance) error {
	var err error
	if r.prompt, err = instance.String(KeyPrompt); err != nil {
		return err
	}
	if r.expected, err = instance.String(KeyExpected); err != nil {
		return err
	}
	r.expected = normalize(r.expected)
	if _, ok := instance[KeyImage]; ok {
		if r.image, err = instance.String(KeyImage); err != nil {
			return err
		}
	}

	src, err := game.SourceFor(r.model, Speaker, g.HumanInput())
	if err != nil {
		return err
	}
	r.speaker = game.NewPlayer("Speaker", src)
	r.judge = game.NewPlayer("Judge", game.ScriptedSource("judge", Judge))
	g.AddPlayer(r.speaker)
	g.AddPlayer(r.judge)
	return nil
}

func (r *rules) DoesGameProceed(*game.Engine) bool {
	return !r.aborted && len(r.judgements) < r.nQuestions
}

func (r *rules) OnBeforeTurn(g *game.Engine, turn int) {
	r.correct = true
	if turn == 0 {
		var images []string
		if r.image != "" {
			images = append(images, r.image)
		}
		g.AddUserMessage(r.speaker, r.prompt, images...)
	} else {
		g.AddUserMessage(r.speaker, FollowUp)
	}
	g.AddUserMessage(r.judge, JudgeQuestion)
}

func (r *rules) ValidateResponse(g *game.Engine, p *game.Player, utterance string) bool {
	if p != r.speaker {
		return true
	}
	utterance = strings.ReplaceAll(utterance, "\n", "")
	env := RuleEnv{
		Utterance: utterance,
		Words:     splitWords(utterance),
		Turn:      g.CurrentTurn(),
		Player:    p.Descriptor(),
	}
	ok, err := EvalRule(r.rule, env)
	if err != nil {
		g.Logger().Warn("rule evaluation failed", "error", err)
	}
	if !ok {
		r.aborted = true
		r.correct = false
		g.LogToSelf("invalid response", "Game aborted.")
		return false
	}

	want := FollowUpExpected
	if g.CurrentTurn() == 0 {
		want = r.expected
	}
	if normalize(utterance) != want {
		r.correct = false
	}
	g.LogToSelf("valid response", "continue")
	return true
}

// ParseResponse drops trailing punctuation and whitespace from the speaker's
// answer.
func (r *rules) ParseResponse(_ *game.Engine, p *game.Player, utterance string) (string, bool) {
	if p != r.speaker {
		return utterance, false
	}
	return strings.TrimRight(utterance, " \t\r\n.!?"), true
}

func (r *rules) AfterAddResponse(g *game.Engine, p *game.Player, utterance string) {
	if p == r.judge {
		g.AddUserMessage(r.speaker, utterance)
	}
}

func (r *rules) OnAfterTurn(g *game.Engine, turn int) {
	g.LogToSelf("judgement", r.correct)
	if r.aborted {
		g.LogToSelf("aborted", true)
	}
	r.judgements = append(r.judgements, r.correct)
	g.Logger().Debug("judged", slog.Int("turn", turn), slog.Bool("correct", r.correct))
}

func (r *rules) OnAfterGame(g *game.Engine) {
	success := !r.aborted
	for _, j := range r.judgements {
		success = success && j
	}
	g.LogKey(LogAborted, r.aborted)
	g.LogKey(LogSuccess, success)
	g.LogKey(LogJudgements, r.judgements)
}

// Speaker is the scripted answer of a programmatic speaker. It alternates
// "Yes" and "No" by turn, so every answer passes the default rule.
func Speaker(_ []chat.Message, turn int) string {
	if turn%2 == 0 {
		return "Yes"
	}
	return "No"
}

// Judge is the judge's scripted response.
func Judge([]chat.Message, int) string { return JudgeReply }

// splitWords splits an answer into words, ignoring surrounding spaces and
// dots.
func splitWords(s string) []string {
	return strings.Fields(strings.Trim(s, " ."))
}

func normalize(s string) string {
	return strings.ToLower(strings.Trim(strings.ReplaceAll(s, "\n", ""), " .!?"))
}

func positiveInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, n > 0
	case float64:
		return int(n), n >= 1 && n == float64(int(n))
	}
	return 0, false
}
