package conditions

import (
	"fmt"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/goliatone/go-customfields/pkg/values"
)

// Rules compiles and caches field rule expressions.
//
// A rule sees:
//   - fields: the whole bag
//   - path: the dotted path of the field being evaluated
//   - value("#sibling"): a field resolved like a condition reference
//   - isEmpty(x): the same emptiness test as the "empty" condition
type Rules struct {
	mu       sync.RWMutex
	programs map[string]*vm.Program
}

// NewRules returns an empty rule cache.
func NewRules() *Rules {
	return &Rules{programs: make(map[string]*vm.Program)}
}

// Compile checks a rule without evaluating it.
func (r *Rules) Compile(rule string) error {
	_, err := r.program(rule)
	return err
}

// Eval runs rule against bag. Compile and runtime failures are returned.
func (r *Rules) Eval(rule string, bag values.Bag, currentPath string) (bool, error) {
	program, err := r.program(rule)
	if err != nil {
		return false, err
	}
	env := map[string]any{
		"fields": map[string]any(bag),
		"path":   currentPath,
		"value": func(ref string) any {
			segments, err := Resolve(ref, currentPath)
			if err != nil {
				return nil
			}
			out, _ := values.Lookup(bag, segments)
			return out
		},
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("conditions: run rule %q: %w", rule, err)
	}
	result, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("conditions: rule %q returned %T, want bool", rule, out)
	}
	return result, nil
}

func (r *Rules) program(rule string) (*vm.Program, error) {
	rule = strings.TrimSpace(rule)
	r.mu.RLock()
	program, ok := r.programs[rule]
	r.mu.RUnlock()
	if ok {
		return program, nil
	}

	program, err := expr.Compile(rule, ruleOptions()...)
	if err != nil {
		return nil, fmt.Errorf("%w: rule %q: %v", ErrMalformedCondition, rule, err)
	}
	r.mu.Lock()
	r.programs[rule] = program
	r.mu.Unlock()
	return program, nil
}

func ruleOptions() []expr.Option {
	return []expr.Option{
		expr.Env(map[string]any{
			"fields": map[string]any{},
			"path":   "",
			"value":  func(string) any { return nil },
		}),
		expr.AsBool(),
		expr.Function("isEmpty", func(params ...any) (any, error) {
			return IsEmpty(params[0]), nil
		}, new(func(any) bool)),
	}
}
