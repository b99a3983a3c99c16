package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedConditions signals a condition expression that does not follow
// the array-of-tokens shape. It indicates a schema authoring bug.
var ErrMalformedConditions = errors.New("schema: malformed conditions")

// Combining operators accepted between condition nodes.
const (
	OperatorAnd = "and"
	OperatorOr  = "or"
)

// NodeKind identifies the three element shapes of a condition expression.
type NodeKind int

const (
	NodeInvalid NodeKind = iota
	NodeOperator
	NodeLeaf
	NodeGroup
)

// Conditions is a condition expression: operator tokens, leaves, and nested
// sub-expressions in evaluation order.
type Conditions []Node

// Node is one element of a condition expression.
type Node struct {
	Kind     NodeKind
	Operator string
	Leaf     Condition
	Group    Conditions
}

// Condition is a leaf comparison against the value at Field.
type Condition struct {
	Field     string `json:"field"`
	Condition string `json:"condition"`
	Value     any    `json:"value,omitempty"`
}

// And returns the operator token "and".
func And() Node { return Node{Kind: NodeOperator, Operator: OperatorAnd} }

// Or returns the operator token "or".
func Or() Node { return Node{Kind: NodeOperator, Operator: OperatorOr} }

// Leaf wraps a comparison into a node.
func Leaf(field, condition string, value any) Node {
	return Node{Kind: NodeLeaf, Leaf: Condition{Field: field, Condition: condition, Value: value}}
}

// Group wraps a sub-expression into a node.
func Group(nodes ...Node) Node {
	return Node{Kind: NodeGroup, Group: Conditions(nodes)}
}

// UnmarshalJSON requires an array; anything else is a malformed expression.
func (c *Conditions) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*c = nil
		return nil
	}
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return fmt.Errorf("%w: expected an array, got %s", ErrMalformedConditions, abbreviate(trimmed))
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedConditions, err)
	}
	out := make(Conditions, 0, len(raw))
	for idx, item := range raw {
		var node Node
		if err := node.UnmarshalJSON(item); err != nil {
			return fmt.Errorf("conditions[%d]: %w", idx, err)
		}
		out = append(out, node)
	}
	*c = out
	return nil
}

// UnmarshalJSON decodes an operator string, a leaf object, or a nested array.
func (n *Node) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fmt.Errorf("%w: empty node", ErrMalformedConditions)
	}
	switch trimmed[0] {
	case '"':
		var token string
		if err := json.Unmarshal(trimmed, &token); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedConditions, err)
		}
		op := strings.ToLower(strings.TrimSpace(token))
		if op != OperatorAnd && op != OperatorOr {
			return fmt.Errorf("%w: unknown operator token %q", ErrMalformedConditions, token)
		}
		*n = Node{Kind: NodeOperator, Operator: op}
	case '[':
		var group Conditions
		if err := group.UnmarshalJSON(trimmed); err != nil {
			return err
		}
		*n = Node{Kind: NodeGroup, Group: group}
	case '{':
		var leaf Condition
		if err := json.Unmarshal(trimmed, &leaf); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedConditions, err)
		}
		if strings.TrimSpace(leaf.Field) == "" {
			return fmt.Errorf("%w: condition without field", ErrMalformedConditions)
		}
		*n = Node{Kind: NodeLeaf, Leaf: leaf}
	default:
		return fmt.Errorf("%w: unexpected element %s", ErrMalformedConditions, abbreviate(trimmed))
	}
	return nil
}

// MarshalJSON restores the array-of-tokens representation.
func (n Node) MarshalJSON() ([]byte, error) {
	switch n.Kind {
	case NodeOperator:
		return json.Marshal(n.Operator)
	case NodeLeaf:
		return json.Marshal(n.Leaf)
	case NodeGroup:
		if n.Group == nil {
			return []byte("[]"), nil
		}
		return json.Marshal([]Node(n.Group))
	default:
		return nil, fmt.Errorf("%w: cannot encode invalid node", ErrMalformedConditions)
	}
}

// Fields returns every field reference used by the expression, in order.
func (c Conditions) Fields() []string {
	var out []string
	for _, node := range c {
		switch node.Kind {
		case NodeLeaf:
			out = append(out, node.Leaf.Field)
		case NodeGroup:
			out = append(out, node.Group.Fields()...)
		}
	}
	return out
}

func abbreviate(data []byte) string {
	const limit = 32
	if len(data) > limit {
		return string(data[:limit]) + "..."
	}
	return string(data)
}
