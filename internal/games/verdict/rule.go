package verdict

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// DefaultRule accepts a single yes or no, ignoring case, spaces and dots.
const DefaultRule = `len(words) == 1 && lower(trim(utterance, " .")) in ["yes", "no"]`

// RuleEnv is what a validation rule can see.
type RuleEnv struct {
	Utterance string   `expr:"utterance"`
	Words     []string `expr:"words"`
	Turn      int      `expr:"turn"`
	Player    string   `expr:"player"`
}

var programs = struct {
	sync.Mutex
	m map[string]*vm.Program
}{m: make(map[string]*vm.Program)}

// CompileRule compiles src, reusing an earlier compilation of the same text.
func CompileRule(src string) (*vm.Program, error) {
	programs.Lock()
	defer programs.Unlock()
	if p, ok := programs.m[src]; ok {
		return p, nil
	}
	p, err := expr.Compile(src, expr.Env(RuleEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("invalid rule %q: %w", src, err)
	}
	programs.m[src] = p
	return p, nil
}

// EvalRule runs a compiled rule.
func EvalRule(p *vm.Program, env RuleEnv) (bool, error) {
	out, err := expr.Run(p, env)
	if err != nil {
		return false, fmt.Errorf("rule failed: %w", err)
	}
	ok, isBool := out.(bool)
	if !isBool {
		return false, fmt.Errorf("rule returned %T, not bool", out)
	}
	return ok, nil
}
