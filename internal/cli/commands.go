package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-customfields/pkg/fields"
	"github.com/goliatone/go-customfields/pkg/options"
	"github.com/goliatone/go-customfields/pkg/prompt"
	"github.com/goliatone/go-customfields/pkg/schema"
	"github.com/goliatone/go-customfields/pkg/surface"
)

func runRender(ctx context.Context, env Env, args []string) error {
	fset := newFlagSet(env, "render")
	var src source
	src.register(fset)
	kind := fset.String("surface", "", "Surface kind (page, term, block, variation); defaults to the definition's")
	valuesPath := fset.String("values", "", "JSON/YAML value file")
	tab := fset.String("tab", "", "Active tab of a page surface")
	loop := fset.Int("loop", 0, "Variation row index")
	output := fset.String("output", "", "Output file (stdout if empty)")
	if err := fset.Parse(args); err != nil {
		return err
	}

	def, err := src.definition(ctx)
	if err != nil {
		return err
	}
	bag, err := readValues(*valuesPath)
	if err != nil {
		return err
	}

	surfaceKind := *kind
	if surfaceKind == "" {
		surfaceKind = def.Surface
	}
	opts := []surface.Option{surface.WithValues(bag), surface.WithLogger(env.Logger)}

	var buf bytes.Buffer
	switch surfaceKind {
	case schema.SurfacePage, "":
		page, err := surface.NewPage(def, append(opts, surface.WithTab(*tab))...)
		if err != nil {
			return err
		}
		if err := page.Render(ctx, &buf); err != nil {
			return err
		}
	case schema.SurfaceTerm:
		term, err := surface.NewTermTable(def, opts...)
		if err != nil {
			return err
		}
		if err := term.Render(ctx, &buf); err != nil {
			return err
		}
	case schema.SurfaceBlock:
		block, err := surface.NewBlock(def, opts...)
		if err != nil {
			return err
		}
		if err := block.Render(ctx, &buf); err != nil {
			return err
		}
	case schema.SurfaceVariation:
		variation, err := surface.NewVariation(def, *loop, opts...)
		if err != nil {
			return err
		}
		if err := variation.Render(ctx, &buf); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown surface %q", surfaceKind)
	}
	buf.WriteByte('\n')
	return writeOutput(env, *output, buf.Bytes())
}

func runFill(ctx context.Context, env Env, args []string) error {
	fset := newFlagSet(env, "fill")
	var src source
	src.register(fset)
	valuesPath := fset.String("values", "", "JSON/YAML file with the starting values")
	format := fset.String("format", string(prompt.OutputFormatJSON), "Output format (json, form, pretty)")
	output := fset.String("output", "", "Output file (stdout if empty)")
	if err := fset.Parse(args); err != nil {
		return err
	}

	def, err := src.definition(ctx)
	if err != nil {
		return err
	}
	bag, err := readValues(*valuesPath)
	if err != nil {
		return err
	}

	sources := options.NewSources()
	if timezones, err := options.TimezoneSource(options.WithTopOnEmpty()); err == nil {
		_ = sources.Register("timezones", timezones)
	}
	opts := []prompt.Option{prompt.WithSources(sources), prompt.WithLogger(env.Logger)}
	if env.Driver != nil {
		opts = append(opts, prompt.WithDriver(env.Driver))
	}

	filled, err := prompt.New(opts...).Fill(ctx, def, bag)
	if err != nil {
		return err
	}
	data, err := prompt.Encode(filled, prompt.OutputFormat(*format))
	if err != nil {
		return err
	}
	if len(data) > 0 && data[len(data)-1] != '\n' {
		data = append(data, '\n')
	}
	return writeOutput(env, *output, data)
}

// runValidate parses the definitions, warns about conditions that reference
// unknown sibling fields and, given -values, checks a value file against one
// definition.
func runValidate(ctx context.Context, env Env, args []string) error {
	fset := newFlagSet(env, "validate")
	var src source
	src.register(fset)
	valuesPath := fset.String("values", "", "JSON/YAML value file to check")
	if err := fset.Parse(args); err != nil {
		return err
	}

	store, err := src.store(ctx)
	if err != nil {
		errColor.Fprintf(env.Stderr, "✗ %v\n", err)
		return ErrInvalid
	}
	ids := store.IDs()
	if src.id != "" {
		ids = []string{src.id}
	}
	for _, id := range ids {
		def, err := store.Definition(id)
		if err != nil {
			errColor.Fprintf(env.Stderr, "✗ %v\n", err)
			return ErrInvalid
		}
		okColor.Fprintf(env.Stdout, "✓ %s (%d fields)\n", def.ID, len(def.Fields))
		for _, warning := range lintConditions(def.Fields, "") {
			warnColor.Fprintf(env.Stdout, "  ! %s\n", warning)
		}
	}

	if *valuesPath == "" {
		return nil
	}
	if len(ids) != 1 {
		return errors.New("-values needs a single definition, pass -id")
	}
	def, err := store.Definition(ids[0])
	if err != nil {
		return err
	}
	bag, err := readValues(*valuesPath)
	if err != nil {
		return err
	}
	root, err := surface.NewRoot(def, surface.WithValues(bag), surface.WithLogger(env.Logger))
	if err != nil {
		return err
	}
	valid, err := root.Check(ctx)
	if err != nil {
		errColor.Fprintf(env.Stderr, "✗ %v\n", err)
		return ErrInvalid
	}
	if valid {
		okColor.Fprintf(env.Stdout, "✓ %s is valid\n", *valuesPath)
		return nil
	}
	errs := root.Errors()
	for _, path := range sortedKeys(errs) {
		errColor.Fprintf(env.Stdout, "✗ %s: %s\n", path, strings.Join(errs[path], " "))
	}
	return ErrInvalid
}

var knownTypes = fields.NewRegistry()

func lintConditions(list []schema.Field, scope string) []string {
	known := make(map[string]struct{}, len(list))
	for _, field := range list {
		known[field.ID] = struct{}{}
	}
	var out []string
	for _, field := range list {
		path := field.ID
		if scope != "" {
			path = scope + "." + field.ID
		}
		for _, ref := range field.Conditions.Fields() {
			if strings.HasPrefix(ref, "#") {
				continue
			}
			if _, ok := known[ref]; !ok {
				out = append(out, fmt.Sprintf("%s: condition references unknown field %q", path, ref))
			}
		}
		if field.Type != "" && !knownTypes.Known(field.Type) {
			out = append(out, fmt.Sprintf("%s: unknown field type %q", path, field.Type))
		}
		if len(field.Items) > 0 {
			out = append(out, lintConditions(field.Items, path)...)
		}
	}
	return out
}

func runImport(ctx context.Context, env Env, args []string) error {
	fset := newFlagSet(env, "import")
	openapi := fset.String("openapi", "", "OpenAPI document path or URL (JSON or YAML)")
	operation := fset.String("operation", "", "Operation id whose request body becomes the definition")
	format := fset.String("format", "json", "Output format (json, yaml)")
	output := fset.String("output", "", "Output file (stdout if empty)")
	if err := fset.Parse(args); err != nil {
		return err
	}
	if *openapi == "" || *operation == "" {
		return errors.New("-openapi and -operation are required")
	}

	raw, err := fetch(ctx, *openapi)
	if err != nil {
		return err
	}
	def, err := schema.FromOpenAPI(ctx, raw, *operation)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(def, "", "  ")
	if err != nil {
		return err
	}
	switch *format {
	case "json":
	case "yaml", "yml":
		var generic any
		if err := json.Unmarshal(data, &generic); err != nil {
			return err
		}
		if data, err = yaml.Marshal(generic); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown format %q", *format)
	}
	if len(data) > 0 && data[len(data)-1] != '\n' {
		data = append(data, '\n')
	}
	return writeOutput(env, *output, data)
}

func runSchema(_ context.Context, env Env, args []string) error {
	fset := newFlagSet(env, "schema")
	output := fset.String("output", "", "Output file (stdout if empty)")
	if err := fset.Parse(args); err != nil {
		return err
	}
	data, err := json.MarshalIndent(DefinitionSchema(), "", "  ")
	if err != nil {
		return err
	}
	return writeOutput(env, *output, append(data, '\n'))
}

// DefinitionSchema reflects the JSON Schema of a definition document. Field
// objects accept type specific keys beyond the common ones.
func DefinitionSchema() *jsonschema.Schema {
	leaf := (&jsonschema.Reflector{DoNotReference: true, AllowAdditionalProperties: true}).Reflect(&schema.Condition{})
	leaf.Version = ""
	leaf.Required = []string{"field", "condition"}

	nodeType := reflect.TypeOf(schema.Node{})
	r := &jsonschema.Reflector{
		AllowAdditionalProperties: true,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t != nodeType {
				return nil
			}
			return &jsonschema.Schema{
				OneOf: []*jsonschema.Schema{
					{Type: "string", Enum: []any{schema.OperatorAnd, schema.OperatorOr}},
					leaf,
					{Type: "array", Items: &jsonschema.Schema{}},
				},
			}
		},
	}
	s := r.Reflect(&schema.Definition{})
	s.Title = "customfields definition"
	return s
}
