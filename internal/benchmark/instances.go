package benchmark

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"

	"github.com/joeycumines/turnbench/internal/game"
	"github.com/joeycumines/turnbench/internal/results"
)

// Reserved experiment keys.
const (
	KeyName             = "name"
	KeyDialoguePartners = "dialogue_partners"
	KeyGameInstances    = "game_instances"
	KeyTimestamp        = "timestamp"
	KeyRunID            = "run_id"
	KeyDuration         = "duration"
)

// ErrNoExperiments is returned when an instances document lists none.
var ErrNoExperiments = errors.New("no experiments")

// Instances is the root of an instances file.
type Instances struct {
	Experiments []*Experiment `json:"experiments"`
}

// Experiment is a named set of game instances played under one condition.
// Keys other than the reserved ones are kept in Params and written back
// unchanged.
type Experiment struct {
	Name string
	// DialoguePartners lists model name groups to run with when no models
	// are given at run time.
	DialoguePartners [][]string
	GameInstances    []game.Instance
	Params           map[string]any
}

// NewExperiment creates an empty experiment.
func NewExperiment(name string) *Experiment {
	return &Experiment{Name: name, GameInstances: make([]game.Instance, 0), Params: make(map[string]any)}
}

// Set stores an experiment parameter.
func (e *Experiment) Set(key string, value any) {
	if e.Params == nil {
		e.Params = make(map[string]any)
	}
	e.Params[key] = value
}

// Param returns an experiment parameter.
func (e *Experiment) Param(key string) (any, bool) {
	v, ok := e.Params[key]
	return v, ok
}

// Config is the experiment without its game instances, as handed to game
// masters and stored next to the episodes.
func (e *Experiment) Config() map[string]any {
	out := make(map[string]any, len(e.Params)+2)
	maps.Copy(out, e.Params)
	out[KeyName] = e.Name
	if e.DialoguePartners != nil {
		out[KeyDialoguePartners] = e.DialoguePartners
	}
	return out
}

func (e Experiment) MarshalJSON() ([]byte, error) {
	m := e.Config()
	instances := e.GameInstances
	if instances == nil {
		instances = []game.Instance{}
	}
	m[KeyGameInstances] = instances
	return json.Marshal(m)
}

func (e *Experiment) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = Experiment{Params: make(map[string]any)}
	for k, v := range raw {
		var err error
		switch k {
		case KeyName:
			err = json.Unmarshal(v, &e.Name)
		case KeyDialoguePartners:
			err = json.Unmarshal(v, &e.DialoguePartners)
		case KeyGameInstances:
			err = json.Unmarshal(v, &e.GameInstances)
		default:
			var val any
			err = json.Unmarshal(v, &val)
			e.Params[k] = val
		}
		if err != nil {
			return fmt.Errorf("invalid %q: %w", k, err)
		}
	}
	if e.Name == "" {
		return fmt.Errorf("experiment is missing %q", KeyName)
	}
	if e.GameInstances == nil {
		return fmt.Errorf("experiment %q is missing %q", e.Name, KeyGameInstances)
	}
	return nil
}

// LoadInstances reads an instances file.
func LoadInstances(path string) (*Instances, error) {
	var in Instances
	if err := results.ReadJSON(path, &in); err != nil {
		return nil, fmt.Errorf("failed to load instances: %w", err)
	}
	if in.Experiments == nil {
		return nil, fmt.Errorf("%s: %w", path, ErrNoExperiments)
	}
	return &in, nil
}

// StoreInstances writes an instances file.
func StoreInstances(path string, in *Instances) error {
	if err := results.WriteJSON(path, in); err != nil {
		return fmt.Errorf("failed to store instances: %w", err)
	}
	return nil
}

// Generator builds an instances document.
type Generator struct {
	instances Instances
}

// NewGenerator creates a generator with no experiments.
func NewGenerator() *Generator {
	return &Generator{instances: Instances{Experiments: make([]*Experiment, 0)}}
}

// AddExperiment appends a new experiment. Configure it through the returned
// pointer and add instances with AddGameInstance.
func (g *Generator) AddExperiment(name string, partners ...[]string) *Experiment {
	e := NewExperiment(name)
	if len(partners) > 0 {
		e.DialoguePartners = partners
	}
	g.instances.Experiments = append(g.instances.Experiments, e)
	return e
}

// AddGameInstance appends an instance with the given id to exp and returns
// it for filling in.
func (g *Generator) AddGameInstance(exp *Experiment, id int) game.Instance {
	in := game.Instance{game.KeyGameID: id}
	exp.GameInstances = append(exp.GameInstances, in)
	return in
}

// Instances returns the document built so far.
func (g *Generator) Instances() *Instances { return &g.instances }

// Store writes the document to path.
func (g *Generator) Store(path string) error {
	return StoreInstances(path, &g.instances)
}
