// Package cli implements the customfields command line: rendering,
// interactive filling, validation, definition import and the JSON Schema of
// the definition format.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-customfields/pkg/prompt"
	"github.com/goliatone/go-customfields/pkg/schema"
	"github.com/goliatone/go-customfields/pkg/values"
)

// ErrInvalid is returned when validation found problems. They have already
// been printed.
var ErrInvalid = errors.New("validation failed")

// Env carries the process handles of a command run.
type Env struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
	// Driver overrides the terminal prompt driver of "fill".
	Driver prompt.Driver
}

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, env Env, args []string) error
}

var commands = []command{
	{name: "render", summary: "Render a definition as an HTML surface", run: runRender},
	{name: "fill", summary: "Fill a definition interactively", run: runFill},
	{name: "validate", summary: "Check definitions and, optionally, a value file", run: runValidate},
	{name: "import", summary: "Build a definition from an OpenAPI request body", run: runImport},
	{name: "schema", summary: "Print the JSON Schema of the definition format", run: runSchema},
}

// Run dispatches args[0] to its command.
func Run(ctx context.Context, env Env, args []string) error {
	if env.Stdout == nil {
		env.Stdout = os.Stdout
	}
	if env.Stderr == nil {
		env.Stderr = os.Stderr
	}
	if env.Logger == nil {
		env.Logger = slog.Default()
	}
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		usage(env.Stderr)
		if len(args) == 0 {
			return errors.New("missing command")
		}
		return nil
	}
	for _, cmd := range commands {
		if cmd.name == args[0] {
			return cmd.run(ctx, env, args[1:])
		}
	}
	usage(env.Stderr)
	return fmt.Errorf("unknown command %q", args[0])
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: customfields <command> [flags]")
	fmt.Fprintln(w)
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %-10s %s\n", cmd.name, cmd.summary)
	}
}

func newFlagSet(env Env, name string) *flag.FlagSet {
	fset := flag.NewFlagSet(name, flag.ContinueOnError)
	fset.SetOutput(env.Stderr)
	return fset
}

// source selects where definitions come from: a directory walked with
// schema.LoadFS or a single file.
type source struct {
	dir  string
	file string
	id   string
}

func (s *source) register(fset *flag.FlagSet) {
	fset.StringVar(&s.dir, "definitions", "", "Directory of JSON/YAML definitions")
	fset.StringVar(&s.file, "file", "", "Single definition file or URL")
	fset.StringVar(&s.id, "id", "", "Definition id (defaults to the only definition)")
}

func (s *source) store(ctx context.Context) (*schema.Store, error) {
	switch {
	case s.file != "":
		data, err := fetch(ctx, s.file)
		if err != nil {
			return nil, err
		}
		defs, err := schema.Parse(data, s.file)
		if err != nil {
			return nil, err
		}
		return schema.NewStore(defs...)
	case s.dir != "":
		return schema.LoadFS(os.DirFS(s.dir))
	default:
		return nil, errors.New("one of -definitions or -file is required")
	}
}

func (s *source) definition(ctx context.Context) (schema.Definition, error) {
	store, err := s.store(ctx)
	if err != nil {
		return schema.Definition{}, err
	}
	if s.id != "" {
		return store.Definition(s.id)
	}
	ids := store.IDs()
	if len(ids) != 1 {
		return schema.Definition{}, fmt.Errorf("-id is required, found %d definitions: %s", len(ids), strings.Join(ids, ", "))
	}
	return store.Definition(ids[0])
}

// fetch reads a local path or an http(s) URL.
func fetch(ctx context.Context, location string) ([]byte, error) {
	src := schema.SourceFromFile(location)
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		var err error
		if src, err = schema.SourceFromURL(location); err != nil {
			return nil, err
		}
	}
	return schema.NewFetcher(schema.WithHTTPClient(http.DefaultClient)).Fetch(ctx, src)
}

// readValues decodes a JSON or YAML value file. An empty path is an empty
// bag.
func readValues(path string) (values.Bag, error) {
	bag := values.Bag{}
	if path == "" {
		return bag, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		for key, value := range raw {
			bag[key] = value
		}
	default:
		if err := json.Unmarshal(data, &bag); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}
	return bag, nil
}

func writeOutput(env Env, path string, data []byte) error {
	if path == "" {
		_, err := env.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(env.Stderr, "Written to %s\n", path)
	return nil
}

var (
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow)
	errColor  = color.New(color.FgRed, color.Bold)
)

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
