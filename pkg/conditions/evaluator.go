package conditions

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/goliatone/go-customfields/pkg/schema"
	"github.com/goliatone/go-customfields/pkg/values"
)

// LessOrEqualAliasesLess keeps "<=" evaluating exactly like "<". Stored
// definitions were authored against that behaviour; flip it only once the
// intended semantics are confirmed.
const LessOrEqualAliasesLess = true

var (
	// ErrMalformedCondition reports a node that is neither an operator token,
	// a leaf, nor a nested group.
	ErrMalformedCondition = schema.ErrMalformedConditions
	// ErrUnknownOperator reports a leaf whose condition is not supported.
	ErrUnknownOperator = errors.New("conditions: unknown operator")
	// ErrOutOfRange reports a relative path that climbs above the root.
	ErrOutOfRange = errors.New("conditions: relative path out of range")
)

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger sets the logger used for recoverable resolution problems.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithRules replaces the rule compiler (mostly useful to share a cache).
func WithRules(rules *Rules) Option {
	return func(e *Evaluator) {
		if rules != nil {
			e.rules = rules
		}
	}
}

// Evaluator decides field visibility from condition expressions.
type Evaluator struct {
	logger *slog.Logger
	rules  *Rules
}

// New constructs an Evaluator.
func New(options ...Option) *Evaluator {
	e := &Evaluator{logger: slog.Default()}
	for _, opt := range options {
		if opt != nil {
			opt(e)
		}
	}
	if e.rules == nil {
		e.rules = NewRules()
	}
	return e
}

var defaultEvaluator = New()

// Evaluate runs the default evaluator.
func Evaluate(bag values.Bag, conds schema.Conditions, currentPath string) (bool, error) {
	return defaultEvaluator.Evaluate(bag, conds, currentPath)
}

// Evaluate walks conds left to right. Operator tokens set the combiner for the
// following results until changed; the first result stands alone. An empty
// expression is true.
func (e *Evaluator) Evaluate(bag values.Bag, conds schema.Conditions, currentPath string) (bool, error) {
	var (
		result bool
		seen   bool
		op     = schema.OperatorAnd
	)
	for idx, node := range conds {
		var (
			value bool
			err   error
		)
		switch node.Kind {
		case schema.NodeOperator:
			switch node.Operator {
			case schema.OperatorAnd, schema.OperatorOr:
				op = node.Operator
			default:
				return false, fmt.Errorf("%w: unknown operator token %q at %d", ErrMalformedCondition, node.Operator, idx)
			}
			continue
		case schema.NodeGroup:
			value, err = e.Evaluate(bag, node.Group, currentPath)
		case schema.NodeLeaf:
			value, err = e.leaf(bag, node.Leaf, currentPath)
		default:
			return false, fmt.Errorf("%w: invalid node at %d", ErrMalformedCondition, idx)
		}
		if err != nil {
			return false, err
		}

		switch {
		case !seen:
			result, seen = value, true
		case op == schema.OperatorOr:
			result = result || value
		default:
			result = result && value
		}
	}
	if !seen {
		return true, nil
	}
	return result, nil
}

// Visible combines the field's condition expression with its rule string.
func (e *Evaluator) Visible(bag values.Bag, field schema.Field, currentPath string) (bool, error) {
	shown, err := e.Evaluate(bag, field.Conditions, currentPath)
	if err != nil || !shown {
		return false, err
	}
	if strings.TrimSpace(field.Rule) == "" {
		return true, nil
	}
	return e.rules.Eval(field.Rule, bag, currentPath)
}

func (e *Evaluator) leaf(bag values.Bag, leaf schema.Condition, currentPath string) (bool, error) {
	segments, err := Resolve(leaf.Field, currentPath)
	if err != nil {
		if errors.Is(err, ErrOutOfRange) {
			e.logger.Warn("conditions: relative field path out of range",
				"field", leaf.Field,
				"path", currentPath,
			)
			return false, nil
		}
		return false, err
	}
	actual, _ := values.Lookup(bag, segments)
	return Compare(leaf.Condition, actual, leaf.Value)
}

// Resolve turns a condition field reference into bag segments. Each leading
// '#' climbs one segment up from currentPath before the remainder is
// appended; references without '#' are absolute.
func Resolve(field, currentPath string) ([]string, error) {
	field = strings.TrimSpace(field)
	hashes := 0
	for hashes < len(field) && field[hashes] == '#' {
		hashes++
	}
	rest := values.Segments(field[hashes:])
	if hashes == 0 {
		if len(rest) == 0 {
			return nil, fmt.Errorf("%w: empty field reference", ErrMalformedCondition)
		}
		return rest, nil
	}

	base := values.Segments(currentPath)
	if hashes > len(base) {
		return nil, fmt.Errorf("%w: %q from %q", ErrOutOfRange, field, currentPath)
	}
	out := make([]string, 0, len(base)-hashes+len(rest))
	out = append(out, base[:len(base)-hashes]...)
	out = append(out, rest...)
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %q from %q", ErrOutOfRange, field, currentPath)
	}
	return out, nil
}
