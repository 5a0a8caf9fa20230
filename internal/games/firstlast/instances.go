package firstlast

import (
	_ "embed"
	"fmt"
	"math/rand/v2"
	"strings"
	"text/template"

	"github.com/joeycumines/turnbench/internal/benchmark"
)

// Generation defaults.
const (
	InstancesPerTopic = 10
	Seed              = 123
)

//go:embed topics.txt
var topicsFile string

//go:embed prompt_a.tmpl
var promptATemplate string

//go:embed prompt_b.tmpl
var promptBTemplate string

var (
	promptA = template.Must(template.New("a").Parse(promptATemplate))
	promptB = template.Must(template.New("b").Parse(promptBTemplate))
)

type promptData struct {
	Topic  string
	Letter string
	NTurns int
}

// Topics lists the bundled experiment topics.
func Topics() []string {
	return strings.Fields(topicsFile)
}

// DefaultInstances generates one experiment per bundled topic.
func (Game) DefaultInstances() (*benchmark.Instances, error) {
	return GenerateInstances(Topics(), InstancesPerTopic, rand.New(rand.NewPCG(Seed, Seed)))
}

// GenerateInstances creates n instances per topic, drawing the first letter
// from a to e and the number of turns from 3 to 8.
func GenerateInstances(topics []string, n int, rng *rand.Rand) (*benchmark.Instances, error) {
	g := benchmark.NewGenerator()
	for _, topic := range topics {
		exp := g.AddExperiment(topic)
		for id := range n {
			letter := string(rune('a' + rng.IntN(5)))
			turns := 3 + rng.IntN(6)
			data := promptData{Topic: topic, Letter: letter, NTurns: turns}

			a, err := render(promptA, data)
			if err != nil {
				return nil, err
			}
			b, err := render(promptB, data)
			if err != nil {
				return nil, err
			}

			in := g.AddGameInstance(exp, id)
			in[KeyFirstLetter] = letter
			in[KeyNTurns] = turns
			in[KeyPromptPlayerA] = a
			in[KeyPromptPlayerB] = b
		}
	}
	return g.Instances(), nil
}

func render(t *template.Template, data promptData) (string, error) {
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("failed to render %s prompt: %w", t.Name(), err)
	}
	return sb.String(), nil
}
