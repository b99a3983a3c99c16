package options

import (
	"bufio"
	"context"
	"embed"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/goliatone/go-customfields/pkg/schema"
)

// Default result limits for static sources.
const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// Static is an in-memory source. Matches are case-insensitive on the label
// or value; prefix matches rank before substring matches. A query with a
// Value and no Search returns the option carrying that value so the current
// selection can always be labelled.
type Static struct {
	choices []schema.Choice
	limit   int
	showTop bool
}

// StaticOption configures a Static source.
type StaticOption func(*Static)

// WithLimit sets the default result limit.
func WithLimit(limit int) StaticOption {
	return func(s *Static) {
		if limit > 0 {
			s.limit = limit
		}
	}
}

// WithTopOnEmpty makes an empty search return the first options instead of
// nothing.
func WithTopOnEmpty() StaticOption {
	return func(s *Static) { s.showTop = true }
}

// NewStatic builds a source over choices. The slice is copied.
func NewStatic(choices []schema.Choice, opts ...StaticOption) *Static {
	s := &Static{choices: append([]schema.Choice(nil), choices...), limit: DefaultLimit}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Fetch implements Fetcher.
func (s *Static) Fetch(ctx context.Context, query Query) ([]schema.Choice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Search(query), nil
}

// Search filters the options synchronously.
func (s *Static) Search(query Query) []schema.Choice {
	limit := s.clamp(query.Limit)
	term := strings.ToLower(strings.TrimSpace(query.Search))

	if term == "" {
		out := make([]schema.Choice, 0)
		if selected := selectedValues(query.Value); len(selected) > 0 {
			for _, choice := range s.choices {
				if _, ok := selected[choice.Value]; ok {
					out = append(out, choice)
				}
			}
		}
		if s.showTop {
			for _, choice := range s.choices {
				if len(out) >= limit {
					break
				}
				if !containsChoice(out, choice.Value) {
					out = append(out, choice)
				}
			}
		}
		return out
	}

	type match struct {
		choice   schema.Choice
		isPrefix bool
	}
	matches := make([]match, 0, 32)
	for _, choice := range s.choices {
		label := strings.ToLower(choice.Label)
		value := strings.ToLower(choice.Value)
		if !strings.Contains(label, term) && !strings.Contains(value, term) {
			continue
		}
		matches = append(matches, match{
			choice:   choice,
			isPrefix: strings.HasPrefix(label, term) || strings.HasPrefix(value, term),
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].isPrefix != matches[j].isPrefix {
			return matches[i].isPrefix
		}
		return matches[i].choice.Label < matches[j].choice.Label
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]schema.Choice, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.choice)
	}
	return out
}

func (s *Static) clamp(limit int) int {
	if limit <= 0 {
		limit = s.limit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

func selectedValues(value any) map[string]struct{} {
	out := make(map[string]struct{})
	switch typed := value.(type) {
	case nil:
	case []any:
		for _, item := range typed {
			for key := range selectedValues(item) {
				out[key] = struct{}{}
			}
		}
	case []string:
		for _, item := range typed {
			out[item] = struct{}{}
		}
	case string:
		if typed != "" {
			out[typed] = struct{}{}
		}
	default:
		if f, ok := schema.ToFloat(typed); ok {
			out[strconv.FormatFloat(f, 'f', -1, 64)] = struct{}{}
		} else {
			out[fmt.Sprint(typed)] = struct{}{}
		}
	}
	return out
}

func containsChoice(list []schema.Choice, value string) bool {
	for _, choice := range list {
		if choice.Value == value {
			return true
		}
	}
	return false
}

//go:embed data/iana_timezones.txt
var dataFS embed.FS

var (
	zonesOnce sync.Once
	zones     []string
	zonesErr  error
)

// Timezones returns the embedded IANA zone list.
func Timezones() ([]string, error) {
	zonesOnce.Do(func() {
		f, err := dataFS.Open("data/iana_timezones.txt")
		if err != nil {
			zonesErr = err
			return
		}
		defer func() { _ = f.Close() }()
		zones, zonesErr = LoadLines(f)
	})
	if zonesErr != nil {
		return nil, zonesErr
	}
	return append([]string(nil), zones...), nil
}

// TimezoneSource is a Static source over the IANA zone list.
func TimezoneSource(opts ...StaticOption) (*Static, error) {
	list, err := Timezones()
	if err != nil {
		return nil, fmt.Errorf("options: load timezones: %w", err)
	}
	choices := make([]schema.Choice, 0, len(list))
	for _, zone := range list {
		choices = append(choices, schema.Choice{Value: zone, Label: zone})
	}
	return NewStatic(choices, opts...), nil
}

// LoadLines reads one entry per line, skipping blanks, comments and
// duplicates. The result is sorted.
func LoadLines(r io.Reader) ([]string, error) {
	if r == nil {
		return nil, fmt.Errorf("options: missing reader")
	}
	scanner := bufio.NewScanner(r)
	out := make([]string, 0, 512)
	seen := map[string]struct{}{}
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}
