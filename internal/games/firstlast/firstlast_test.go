package firstlast

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/turnbench/internal/backend"
	"github.com/joeycumines/turnbench/internal/benchmark"
	"github.com/joeycumines/turnbench/internal/chat"
	"github.com/joeycumines/turnbench/internal/game"
)

type fixedModel struct {
	backend.BaseModel
	text string
}

func (m *fixedModel) Respond(_ context.Context, msgs []chat.Message) (any, map[string]any, string, error) {
	return msgs, map[string]any{"text": m.text}, m.text, nil
}

func newFixed(text string) *fixedModel {
	return &fixedModel{BaseModel: backend.NewBaseModel(backend.SpecFromName("fixed")), text: text}
}

func mock() backend.Model {
	return backend.NewProgrammaticModel(backend.SpecFromName("mock"))
}

func instance(letter string, turns int) game.Instance {
	return game.Instance{
		game.KeyGameID:   0,
		KeyFirstLetter:   letter,
		KeyNTurns:        turns,
		KeyPromptPlayerA: "start with " + letter,
		KeyPromptPlayerB: "your partner starts",
	}
}

func play(t *testing.T, in game.Instance, models ...backend.Model) *game.Engine {
	t.Helper()
	ep, err := Game{}.NewEpisode(benchmark.NewExperiment("topic"), models)
	require.NoError(t, err)
	g := ep.(*game.Engine)
	ctx := context.Background()
	require.NoError(t, g.Setup(ctx, in))
	require.NoError(t, g.Play(ctx))
	return g
}

func actionsOf(in game.Interactions, typ string) []any {
	var out []any
	for _, turn := range in.Turns {
		for _, ev := range turn {
			if ev.Action.Type == typ {
				out = append(out, ev.Action.Content)
			}
		}
	}
	return out
}

func TestProgrammaticGameCompletes(t *testing.T) {
	t.Parallel()
	g := play(t, instance("a", 3), mock(), mock())
	in := g.Interactions()

	assert.Equal(t, "Game master for firstlast", in.Players[game.GM])
	assert.Equal(t, "Player A, mock", in.Players["Player 1"])
	assert.Equal(t, "Player B, mock", in.Players["Player 2"])

	assert.Equal(t, 3, in.Keys[LogPlayedTurns])
	assert.Equal(t, 3, in.Keys[LogCompleteTurns])
	assert.Equal(t, false, in.Keys[LogAborted])
	assert.Equal(t, false, in.Keys[LogLose])
	assert.Equal(t, []int{2, 2, 2}, in.Keys[LogRequestCount])
	assert.Equal(t, []int{2, 2, 2}, in.Keys[LogParsedRequestCount])
	assert.Equal(t, []int{0, 0, 0}, in.Keys[LogViolatedRequestCount])
	assert.Equal(t, 3, in.Keys[KeyNTurns])

	assert.Equal(t, []any{"game successful", "end game"}, actionsOf(in, "info"))
	assert.Equal(t, []any{
		"axxx/axxx. conforms to rules",
		"bxxx/bxxx. conforms to rules",
		"cxxx/cxxx. conforms to rules",
		"dxxx/dxxx. conforms to rules",
		"exxx/exxx. conforms to rules",
		"fxxx/fxxx. conforms to rules",
	}, actionsOf(in, game.ActionParse))

	// B hears A's sentence right after its own prompt.
	hb := g.History(g.Players()[1])
	require.GreaterOrEqual(t, len(hb), 3)
	assert.Equal(t, "your partner starts", hb[0].Content)
	assert.Equal(t, chat.RoleUser, hb[1].Role)
	assert.Equal(t, "I SAY: axxx from A, turn 0 axxx.", hb[1].Content)
	assert.Equal(t, chat.RoleAssistant, hb[2].Role)
}

func TestInvalidFormatAborts(t *testing.T) {
	t.Parallel()
	g := play(t, instance("a", 3), newFixed("apples are awesome"), mock())
	in := g.Interactions()

	assert.Equal(t, true, in.Keys[LogAborted])
	assert.Equal(t, false, in.Keys[LogLose])
	assert.Equal(t, 1, in.Keys[LogPlayedTurns])
	assert.Equal(t, 0, in.Keys[LogCompleteTurns])
	assert.Equal(t, []int{1, 0, 0}, in.Keys[LogViolatedRequestCount])
	assert.Equal(t, []any{"abort"}, actionsOf(in, "invalid format"))
	assert.Equal(t, []any{"end game"}, actionsOf(in, "info"))

	// B is never prompted and A's history is untouched.
	assert.Len(t, actionsOf(in, game.ActionGetMessage), 1)
	assert.Len(t, g.History(g.Players()[0]), 1)
}

func TestWrongLetterLoses(t *testing.T) {
	t.Parallel()
	g := play(t, instance("b", 2), mock(), newFixed("I SAY: Dogs love cream"))
	in := g.Interactions()

	assert.Equal(t, true, in.Keys[LogLose])
	assert.Equal(t, false, in.Keys[LogAborted])
	assert.Equal(t, []any{
		"bxxx/bxxx. conforms to rules",
		"Dogs/cream violates rules",
	}, actionsOf(in, game.ActionParse))
}

func TestCaseFoldedLetters(t *testing.T) {
	t.Parallel()
	g := play(t, instance("A", 1), newFixed("I SAY: Apples always"), newFixed("I SAY: bears Bite"))
	in := g.Interactions()
	assert.Equal(t, 1, in.Keys[LogCompleteTurns])
	assert.Equal(t, false, in.Keys[LogLose])
}

func TestSetupErrors(t *testing.T) {
	t.Parallel()
	_, err := Game{}.NewEpisode(benchmark.NewExperiment("x"), []backend.Model{mock()})
	require.Error(t, err)

	for name, mutate := range map[string]func(game.Instance){
		"missing letter":  func(in game.Instance) { delete(in, KeyFirstLetter) },
		"bad letter":      func(in game.Instance) { in[KeyFirstLetter] = "ab" },
		"zero turns":      func(in game.Instance) { in[KeyNTurns] = 0 },
		"missing prompt":  func(in game.Instance) { delete(in, KeyPromptPlayerB) },
		"fractional turn": func(in game.Instance) { in[KeyNTurns] = 1.5 },
	} {
		in := instance("a", 2)
		mutate(in)
		ep, err := Game{}.NewEpisode(benchmark.NewExperiment("x"), []backend.Model{mock(), mock()})
		require.NoError(t, err)
		require.Error(t, ep.Setup(context.Background(), in), name)
	}
}

func TestParse(t *testing.T) {
	t.Parallel()
	first, last, ok := Parse("I SAY: one two three")
	require.True(t, ok)
	assert.Equal(t, "one", first)
	assert.Equal(t, "three", last)

	first, last, ok = Parse("I SAY:solo")
	require.True(t, ok)
	assert.Equal(t, "solo", first)
	assert.Equal(t, "solo", last)

	for _, s := range []string{"", "I SAY:", "I SAY:   ", "i say: lower", " I SAY: padded"} {
		_, _, ok := Parse(s)
		assert.False(t, ok, s)
	}
}

func TestSpeaker(t *testing.T) {
	t.Parallel()
	speak := Speaker("B", 'c')
	assert.Equal(t, "I SAY: cxxx from B, turn 0 cxxx.", speak([]chat.Message{{Role: chat.RoleUser, Content: "rules"}}, 0))
	assert.Equal(t, "I SAY: exxx from B, turn 2 exxx.", speak([]chat.Message{{Role: chat.RoleUser, Content: "I SAY: dog days"}}, 2))
	assert.Equal(t, "I SAY: axxx from B, turn 9 axxx.", speak([]chat.Message{{Role: chat.RoleUser, Content: "I SAY: zebra zone"}}, 9))
	assert.Equal(t, "I SAY: cxxx from B, turn 0 cxxx.", speak(nil, 0))
}

func TestGenerateInstances(t *testing.T) {
	t.Parallel()
	gen := func() *benchmark.Instances {
		in, err := GenerateInstances([]string{"food", "space"}, 4, rand.New(rand.NewPCG(1, 2)))
		require.NoError(t, err)
		return in
	}
	a, b := gen(), gen()
	assert.Equal(t, a, b, "generation must be deterministic for a seed")

	require.Len(t, a.Experiments, 2)
	assert.Equal(t, "space", a.Experiments[1].Name)
	require.Len(t, a.Experiments[0].GameInstances, 4)
	for i, in := range a.Experiments[0].GameInstances {
		assert.Equal(t, i, in[game.KeyGameID])
		letter, err := in.String(KeyFirstLetter)
		require.NoError(t, err)
		assert.Contains(t, []string{"a", "b", "c", "d", "e"}, letter)
		n, err := in.Int(KeyNTurns)
		require.NoError(t, err)
		assert.True(t, n >= 3 && n <= 8, n)
		pa, err := in.String(KeyPromptPlayerA)
		require.NoError(t, err)
		assert.Contains(t, pa, `"food"`)
		assert.Contains(t, pa, `letter "`+letter+`"`)
	}

	def, err := Game{}.DefaultInstances()
	require.NoError(t, err)
	assert.Len(t, def.Experiments, len(Topics()))
}
