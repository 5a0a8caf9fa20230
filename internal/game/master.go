package game

import (
	"context"
	"fmt"
)

// Master is the minimal contract of a game master.
type Master interface {
	Setup(ctx context.Context, instance Instance) error
	Play(ctx context.Context) error
}

// Episode is a Master whose records can be persisted once play ends.
type Episode interface {
	Master
	StoreRecords(dir string) error
}

// KeyGameID identifies an instance within its experiment.
const KeyGameID = "game_id"

// Instance is the per-episode configuration handed to Setup, as decoded from
// an instances file.
type Instance map[string]any

// Get returns the raw value for key.
func (in Instance) Get(key string) (any, error) {
	v, ok := in[key]
	if !ok {
		return nil, fmt.Errorf("instance is missing %q", key)
	}
	return v, nil
}

// String returns key as a string.
func (in Instance) String(key string) (string, error) {
	v, err := in.Get(key)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("instance %q is %T, not a string", key, v)
	}
	return s, nil
}

// Int returns key as an int. JSON numbers must be integral.
func (in Instance) Int(key string) (int, error) {
	v, err := in.Get(key)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("instance %q is %v, not an integer", key, n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("instance %q is %T, not an integer", key, v)
	}
}

// Strings returns key as a list of strings.
func (in Instance) Strings(key string) ([]string, error) {
	v, err := in.Get(key)
	if err != nil {
		return nil, err
	}
	switch list := v.(type) {
	case []string:
		return append([]string(nil), list...), nil
	case []any:
		out := make([]string, len(list))
		for i, e := range list {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("instance %q[%d] is %T, not a string", key, i, e)
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("instance %q is %T, not a list", key, v)
	}
}

// GameID returns the "game_id" entry rendered as text, or "" when absent.
func (in Instance) GameID() string {
	v, ok := in[KeyGameID]
	if !ok {
		return ""
	}
	if f, ok := v.(float64); ok && f == float64(int(f)) {
		return fmt.Sprint(int(f))
	}
	return fmt.Sprint(v)
}
