package verdict

import "github.com/joeycumines/turnbench/internal/benchmark"

type picture struct {
	description string
	clouds      bool
}

var pictures = []picture{
	{"A blue sky with white clouds drifting over a wheat field.", true},
	{"A cloudless desert at noon, the sand glowing under the sun.", false},
	{"Grey storm clouds gathering above a lighthouse.", true},
	{"A lamp-lit library interior with rows of old books.", false},
	{"A mountain peak poking through a layer of fluffy clouds.", true},
	{"A close-up of a red apple on a wooden table.", false},
}

// Prompt renders the opening question for a picture description.
func Prompt(description string) string {
	return "Here is a description of a picture: \"" + description + "\"\n" +
		`Are there any clouds in the picture? Answer with only "Yes" or "No".`
}

// DefaultInstances returns one experiment with a question per bundled
// picture description, using the default rule.
func (Game) DefaultInstances() (*benchmark.Instances, error) {
	g := benchmark.NewGenerator()
	exp := g.AddExperiment("clouds")
	exp.Set(ParamRule, DefaultRule)
	exp.Set(ParamNQuestions, defaultNQuestions)
	for id, p := range pictures {
		expected := "no"
		if p.clouds {
			expected = "yes"
		}
		in := g.AddGameInstance(exp, id)
		in[KeyPrompt] = Prompt(p.description)
		in[KeyExpected] = expected
	}
	return g.Instances(), nil
}
