package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when a definition id is unknown to a Store.
var ErrNotFound = errors.New("schema: definition not found")

// Store holds definitions keyed by id.
type Store struct {
	definitions map[string]Definition
}

// NewStore builds a store from already decoded definitions.
func NewStore(defs ...Definition) (*Store, error) {
	store := &Store{definitions: make(map[string]Definition, len(defs))}
	for _, def := range defs {
		if err := store.add(def, "memory"); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// LoadFS walks the provided filesystem and parses every JSON/YAML definition
// file. A file may hold a single definition object or a list of them.
func LoadFS(fsys fs.FS) (*Store, error) {
	store := &Store{definitions: make(map[string]Definition)}
	if fsys == nil {
		return store, nil
	}

	err := fs.WalkDir(fsys, ".", func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() || !IsDefinitionFile(path) {
			return nil
		}

		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("schema: read %s: %w", path, err)
		}
		defs, err := Parse(data, path)
		if err != nil {
			return err
		}
		for _, def := range defs {
			if err := store.add(def, path); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

// Parse decodes a JSON or YAML document (chosen by the source extension) into
// definitions. YAML is converted to JSON first so both formats share the same
// decoding rules, including the strict condition-expression shape.
func Parse(data []byte, source string) ([]Definition, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("schema: file %s is empty", source)
	}

	payload := data
	if isYAML(source) {
		var decoded any
		if err := yaml.Unmarshal(data, &decoded); err != nil {
			return nil, fmt.Errorf("schema: parse yaml %s: %w", source, err)
		}
		converted, err := json.Marshal(normalizeYAML(decoded))
		if err != nil {
			return nil, fmt.Errorf("schema: convert yaml %s: %w", source, err)
		}
		payload = converted
	}

	trimmed := strings.TrimSpace(string(payload))
	if strings.HasPrefix(trimmed, "[") {
		var defs []Definition
		if err := json.Unmarshal(payload, &defs); err != nil {
			return nil, fmt.Errorf("schema: parse %s: %w", source, err)
		}
		return defs, nil
	}

	var def Definition
	if err := json.Unmarshal(payload, &def); err != nil {
		return nil, fmt.Errorf("schema: parse %s: %w", source, err)
	}
	if def.ID == "" {
		def.ID = strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	}
	return []Definition{def}, nil
}

// Definition returns the definition for id.
func (s *Store) Definition(id string) (Definition, error) {
	if s == nil {
		return Definition{}, ErrNotFound
	}
	def, ok := s.definitions[id]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return def, nil
}

// IDs lists the known definition ids, sorted.
func (s *Store) IDs() []string {
	if s == nil {
		return nil
	}
	ids := make([]string, 0, len(s.definitions))
	for id := range s.definitions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Empty reports whether the store holds any definitions.
func (s *Store) Empty() bool {
	return s == nil || len(s.definitions) == 0
}

func (s *Store) add(def Definition, source string) error {
	if err := def.Validate(); err != nil {
		return fmt.Errorf("%s: %w", source, err)
	}
	if _, exists := s.definitions[def.ID]; exists {
		return fmt.Errorf("schema: duplicate definition %q (file %s)", def.ID, source)
	}
	s.definitions[def.ID] = def
	return nil
}

// IsDefinitionFile reports whether path looks like a JSON or YAML document.
func IsDefinitionFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	default:
		return false
	}
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// normalizeYAML turns map[any]any nodes (possible for non-string keys) into
// JSON-compatible map[string]any.
func normalizeYAML(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[key] = normalizeYAML(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[fmt.Sprint(key)] = normalizeYAML(item)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for idx, item := range typed {
			out[idx] = normalizeYAML(item)
		}
		return out
	default:
		return typed
	}
}
