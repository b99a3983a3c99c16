package values

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Bag maps field ids to their current values. A Bag handed out by a Store is a
// snapshot: the store never mutates it again, and callers must not either.
type Bag map[string]any

// Clone returns a deep copy of the bag.
func (b Bag) Clone() Bag {
	out := make(Bag, len(b))
	for key, value := range b {
		out[key] = DeepCopy(value)
	}
	return out
}

// With returns a shallow copy of b with key set to value. Values of other keys
// are shared, not copied.
func (b Bag) With(key string, value any) Bag {
	out := make(Bag, len(b)+1)
	for k, v := range b {
		out[k] = v
	}
	out[key] = value
	return out
}

// Merge returns a shallow copy of b overlaid with patch.
func (b Bag) Merge(patch Bag) Bag {
	out := make(Bag, len(b)+len(patch))
	for k, v := range b {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// JSON renders the bag as a JSON object. Nil bags encode as {}.
func (b Bag) JSON() ([]byte, error) {
	if b == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]any(b))
}

// DeepCopy clones maps and slices produced by JSON decoding.
func DeepCopy(value any) any {
	switch typed := value.(type) {
	case Bag:
		return typed.Clone()
	case map[string]any:
		clone := make(map[string]any, len(typed))
		for k, v := range typed {
			clone[k] = DeepCopy(v)
		}
		return clone
	case []any:
		clone := make([]any, len(typed))
		for i, v := range typed {
			clone[i] = DeepCopy(v)
		}
		return clone
	case []string:
		return append([]string(nil), typed...)
	default:
		return typed
	}
}

// Segments splits a field path into its parts. Dots separate names and
// "name[index]" selects an element of a container, so "a.b[2].c" yields
// a, b, 2, c.
func Segments(path string) []string {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(path, ".") {
		for part != "" {
			open := strings.IndexByte(part, '[')
			if open < 0 {
				out = append(out, part)
				break
			}
			if open > 0 {
				out = append(out, part[:open])
			}
			end := strings.IndexByte(part[open:], ']')
			if end < 0 {
				out = append(out, part[open:])
				break
			}
			out = append(out, part[open+1:open+end])
			part = part[open+end+1:]
		}
	}
	return out
}

// Join assembles segments back into a dotted path.
func Join(segments []string) string {
	return strings.Join(segments, ".")
}

// Get resolves a path against the bag. Numeric segments index arrays.
func Get(bag Bag, path string) (any, bool) {
	return Lookup(bag, Segments(path))
}

// Lookup resolves already split segments against the bag.
func Lookup(bag Bag, segments []string) (any, bool) {
	if bag == nil || len(segments) == 0 {
		return nil, false
	}
	var current any = map[string]any(bag)
	for _, segment := range segments {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = next
		case Bag:
			next, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		case []string:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

// ErrIndexRange reports a list index that would grow a list past the allowed
// bound.
var ErrIndexRange = errors.New("values: list index out of range")

// MaxGrowth is how many slots SetPath may add past the end of a list.
const MaxGrowth = 1024

// SetPath returns a copy of bag with value written at path. Containers along
// the path are copied before they are modified so the input bag, and any
// snapshot sharing its nodes, stays unchanged. Missing intermediate nodes are
// created as maps, or as arrays when the next segment is numeric.
func SetPath(bag Bag, path string, value any) (Bag, error) {
	return SetPathWithin(bag, path, value, MaxGrowth)
}

// SetPathWithin is SetPath with lists allowed to grow by at most grow slots.
// An index beyond that returns ErrIndexRange.
func SetPathWithin(bag Bag, path string, value any, grow int) (Bag, error) {
	segments := Segments(path)
	if len(segments) == 0 {
		return nil, fmt.Errorf("values: empty path")
	}
	if _, err := strconv.Atoi(segments[0]); err == nil {
		return nil, fmt.Errorf("values: path %q must start with a field id", path)
	}
	root, err := setIn(map[string]any(bag), segments, value, path, grow)
	if err != nil {
		return nil, err
	}
	return Bag(root.(map[string]any)), nil
}

func setIn(node any, segments []string, value any, path string, grow int) (any, error) {
	segment := segments[0]
	last := len(segments) == 1

	if idx, err := strconv.Atoi(segment); err == nil {
		if idx < 0 {
			return nil, fmt.Errorf("values: negative index in path %q", path)
		}
		list, _ := node.([]any)
		size := len(list)
		if idx >= size {
			if idx-size >= grow {
				return nil, fmt.Errorf("%w: %d in path %q", ErrIndexRange, idx, path)
			}
			size = idx + 1
		}
		clone := make([]any, size)
		copy(clone, list)
		if last {
			clone[idx] = value
			return clone, nil
		}
		child, err := setIn(clone[idx], segments[1:], value, path, grow)
		if err != nil {
			return nil, err
		}
		clone[idx] = child
		return clone, nil
	}

	var src map[string]any
	switch typed := node.(type) {
	case map[string]any:
		src = typed
	case Bag:
		src = typed
	case nil:
	default:
		return nil, fmt.Errorf("values: segment %q of %q does not address an object", segment, path)
	}
	clone := make(map[string]any, len(src)+1)
	for k, v := range src {
		clone[k] = v
	}
	if last {
		clone[segment] = value
		return clone, nil
	}
	child, err := setIn(clone[segment], segments[1:], value, path, grow)
	if err != nil {
		return nil, err
	}
	clone[segment] = child
	return clone, nil
}
