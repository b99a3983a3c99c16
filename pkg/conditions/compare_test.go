package conditions

import "testing"

func TestCompare(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		condition string
		actual    any
		expected  any
		want      bool
	}{
		{"equal strings", "=", "x", "x", true},
		{"equal mixed widths", "=", 3.0, 3, true},
		{"not equal", "!=", "x", "y", true},
		{"greater numbers", ">", 5.0, 3, true},
		{"greater numeric string", ">", "10", 9, true},
		{"greater lexical", ">", "b", "a", true},
		{"greater or equal", ">=", 3.0, 3.0, true},
		{"less", "<", 2.0, 3.0, true},
		{"less or equal below", "<=", 2.0, 3.0, true},
		{"less or equal at bound", "<=", 3.0, 3.0, !LessOrEqualAliasesLess},
		{"greater missing", ">", nil, 1, false},
		{"between inclusive low", "between", 1.0, []any{1.0, 5.0}, true},
		{"between inclusive high", "between", 5.0, []any{1.0, 5.0}, true},
		{"between outside", "between", 6.0, []any{1.0, 5.0}, false},
		{"between malformed", "between", 2.0, 3.0, false},
		{"contains substring", "contains", "hello world", "world", true},
		{"contains member", "contains", []any{"a", "b"}, "b", true},
		{"contains missing member", "contains", []any{"a", "b"}, "c", false},
		{"not contains", "not_contains", "abc", "z", true},
		{"empty nil", "empty", nil, nil, true},
		{"empty list", "empty", []any{}, nil, true},
		{"not empty", "not_empty", "x", nil, true},
		{"in", "in", "b", []any{"a", "b"}, true},
		{"not in", "not_in", "c", []any{"a", "b"}, true},
	}
	for _, tc := range cases {
		got, err := Compare(tc.condition, tc.actual, tc.expected)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: Compare(%q, %v, %v) = %v, want %v", tc.name, tc.condition, tc.actual, tc.expected, got, tc.want)
		}
	}
}
