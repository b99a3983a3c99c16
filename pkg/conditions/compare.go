package conditions

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/goliatone/go-customfields/pkg/schema"
)

// Supported leaf conditions.
const (
	OpEqual       = "="
	OpNotEqual    = "!="
	OpGreater     = ">"
	OpGreaterEq   = ">="
	OpLess        = "<"
	OpLessEq      = "<="
	OpBetween     = "between"
	OpContains    = "contains"
	OpNotContains = "not_contains"
	OpEmpty       = "empty"
	OpNotEmpty    = "not_empty"
	OpIn          = "in"
	OpNotIn       = "not_in"
)

// Compare applies one leaf condition to the resolved value.
func Compare(condition string, actual, expected any) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(condition)) {
	case OpEqual, "==":
		return Equal(actual, expected), nil
	case OpNotEqual:
		return !Equal(actual, expected), nil
	case OpGreater:
		cmp, ok := order(actual, expected)
		return ok && cmp > 0, nil
	case OpGreaterEq:
		cmp, ok := order(actual, expected)
		return ok && cmp >= 0, nil
	case OpLess:
		cmp, ok := order(actual, expected)
		return ok && cmp < 0, nil
	case OpLessEq:
		cmp, ok := order(actual, expected)
		if LessOrEqualAliasesLess {
			return ok && cmp < 0, nil
		}
		return ok && cmp <= 0, nil
	case OpBetween:
		return between(actual, expected), nil
	case OpContains:
		return contains(actual, expected), nil
	case OpNotContains:
		return !contains(actual, expected), nil
	case OpEmpty:
		return IsEmpty(actual), nil
	case OpNotEmpty:
		return !IsEmpty(actual), nil
	case OpIn:
		return member(expected, actual), nil
	case OpNotIn:
		return !member(expected, actual), nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownOperator, condition)
	}
}

// Equal is strict equality: values must share a kind. Numbers compare by
// value regardless of their Go width; "5" and 5 are different.
func Equal(a, b any) bool {
	if na, ok := number(a); ok {
		nb, ok := number(b)
		return ok && na == nb
	}
	return reflect.DeepEqual(a, b)
}

// IsEmpty reports the canonical empty shapes: nil, "", false, 0, and empty
// containers.
func IsEmpty(value any) bool {
	switch typed := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(typed) == ""
	case bool:
		return !typed
	case []any:
		return len(typed) == 0
	case []string:
		return len(typed) == 0
	case map[string]any:
		return len(typed) == 0
	}
	if n, ok := number(value); ok {
		return n == 0
	}
	return false
}

func number(value any) (float64, bool) {
	if _, isString := value.(string); isString {
		return 0, false
	}
	return schema.ToFloat(value)
}

// order compares two strings lexically, anything else numerically (numeric
// strings included). ok is false when the pair is not comparable.
func order(a, b any) (int, bool) {
	sa, aString := a.(string)
	sb, bString := b.(string)
	if aString && bString {
		if fa, okA := schema.ToFloat(sa); okA {
			if fb, okB := schema.ToFloat(sb); okB {
				return compareFloat(fa, fb), true
			}
		}
		return strings.Compare(sa, sb), true
	}
	fa, okA := schema.ToFloat(a)
	fb, okB := schema.ToFloat(b)
	if !okA || !okB {
		return 0, false
	}
	return compareFloat(fa, fb), true
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func between(actual, expected any) bool {
	bounds, ok := expected.([]any)
	if !ok || len(bounds) != 2 {
		return false
	}
	low, okLow := order(actual, bounds[0])
	high, okHigh := order(actual, bounds[1])
	return okLow && okHigh && low >= 0 && high <= 0
}

func contains(actual, expected any) bool {
	switch typed := actual.(type) {
	case string:
		needle, ok := expected.(string)
		if !ok {
			needle = fmt.Sprint(expected)
		}
		return strings.Contains(typed, needle)
	case []any:
		for _, item := range typed {
			if Equal(item, expected) {
				return true
			}
		}
	case []string:
		needle, ok := expected.(string)
		if !ok {
			return false
		}
		for _, item := range typed {
			if item == needle {
				return true
			}
		}
	case map[string]any:
		key, ok := expected.(string)
		if !ok {
			return false
		}
		_, found := typed[key]
		return found
	}
	return false
}

func member(list, value any) bool {
	switch typed := list.(type) {
	case []any:
		for _, item := range typed {
			if Equal(item, value) {
				return true
			}
		}
	case []string:
		str, ok := value.(string)
		if !ok {
			return false
		}
		for _, item := range typed {
			if item == str {
				return true
			}
		}
	}
	return false
}
