package surface

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/goliatone/go-customfields/pkg/fields"
	"github.com/goliatone/go-customfields/pkg/registry"
	"github.com/goliatone/go-customfields/pkg/schema"
	"github.com/goliatone/go-customfields/pkg/values"
)

// DecodeSubmission rebuilds a value bag from a native form post.
//
// Every root field posts its hidden mirror under its bare id, followed by the
// control inputs of a shown field. Scalar controls reuse the bare id, so the
// last value wins; composite controls post bracketed names ("links[0][url]")
// that are written over the decoded mirror. Multi-choice controls post
// "name[]" with an empty sentinel first, so clearing every choice still
// reaches the server. Keys that do not belong to a field are ignored. A list
// index may grow a list by at most the number of bracketed keys posted;
// anything further is rejected with values.ErrIndexRange.
func DecodeSubmission(reg *registry.Registry, defs []schema.Field, form url.Values) (values.Bag, error) {
	if reg == nil {
		reg = fields.NewRegistry()
	}
	known := make(map[string]schema.Field, len(defs))
	for _, field := range defs {
		if fields.Static(field.Type) {
			continue
		}
		known[field.ID] = field
	}

	bag := values.Bag{}
	for id, field := range known {
		posted, ok := form[id]
		if !ok || len(posted) == 0 {
			continue
		}
		bag[id] = decodeExact(reg.Resolve(field.Type), posted)
	}

	keys := make([]string, 0, len(form))
	for key := range form {
		if strings.Contains(key, "[") {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	touched := make(map[string]bool)
	for _, key := range keys {
		root, segments, list, ok := parseFormKey(key)
		if !ok {
			continue
		}
		if _, found := known[root]; !found {
			continue
		}
		if !touched[root] {
			touched[root] = true
			if !isContainer(bag[root]) {
				delete(bag, root)
			}
		}

		posted := form[key]
		var value any
		if list {
			items := make([]any, 0, len(posted))
			for _, item := range posted {
				if item != "" {
					items = append(items, item)
				}
			}
			value = items
		} else if len(posted) > 0 {
			value = posted[len(posted)-1]
		}

		if len(segments) == 0 {
			bag[root] = value
			continue
		}
		if err := checkIndexes(segments); err != nil {
			return nil, fmt.Errorf("surface: decode %q: %w", key, err)
		}
		next, err := values.SetPathWithin(bag, values.Join(append([]string{root}, segments...)), value, len(keys))
		if err != nil {
			return nil, fmt.Errorf("surface: decode %q: %w", key, err)
		}
		bag = next
	}

	return fields.NormalizeBagWith(reg, defs, bag), nil
}

// DecodeVariation decodes the inputs of one variation row, posted under
// "variable_{loop}[id]".
func DecodeVariation(reg *registry.Registry, defs []schema.Field, form url.Values, loop int) (values.Bag, error) {
	prefix := VariationPrefix(loop) + "["
	scoped := url.Values{}
	for key, posted := range form {
		rest, ok := strings.CutPrefix(key, prefix)
		if !ok {
			continue
		}
		id, tail, ok := strings.Cut(rest, "]")
		if !ok || id == "" {
			continue
		}
		scoped[id+tail] = posted
	}
	return DecodeSubmission(reg, defs, scoped)
}

func decodeExact(caps registry.Capabilities, posted []string) any {
	last := posted[len(posted)-1]
	if !caps.Composite {
		return last
	}
	trimmed := strings.TrimSpace(last)
	if trimmed == "" {
		return nil
	}
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		var decoded any
		if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
			return decoded
		}
	}
	return last
}

// parseFormKey splits "links[0][url]" into links, [0 url]. A trailing "[]"
// marks a list input.
func parseFormKey(key string) (root string, segments []string, list bool, ok bool) {
	open := strings.IndexByte(key, '[')
	if open <= 0 {
		return "", nil, false, false
	}
	root = key[:open]
	rest := key[open:]
	for rest != "" {
		if rest[0] != '[' {
			return "", nil, false, false
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return "", nil, false, false
		}
		segment := rest[1:end]
		rest = rest[end+1:]
		if segment == "" {
			if rest != "" {
				return "", nil, false, false
			}
			list = true
			break
		}
		segments = append(segments, segment)
	}
	return root, segments, list, true
}

// checkIndexes rejects numeric segments that do not fit an int.
func checkIndexes(segments []string) error {
	for _, segment := range segments {
		if strings.Trim(segment, "0123456789") != "" {
			continue
		}
		if _, err := strconv.Atoi(segment); err != nil {
			return fmt.Errorf("%w: %s", values.ErrIndexRange, segment)
		}
	}
	return nil
}

func isContainer(value any) bool {
	switch value.(type) {
	case map[string]any, values.Bag, []any:
		return true
	default:
		return false
	}
}
