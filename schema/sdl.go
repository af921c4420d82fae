package schema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/syssam/relgraph"
)

// Prelude declares the custom scalars and relation directives of a
// resolved model.
const Prelude = `scalar Date
scalar UUID
scalar JSON
directive @join on OBJECT
directive @unique on FIELD_DEFINITION
directive @key(name: String!) on FIELD_DEFINITION
directive @ref(name: String!) on FIELD_DEFINITION
directive @field(name: String!, key: String!) on FIELD_DEFINITION
directive @type(name: String!, keys: [String!]!) on FIELD_DEFINITION
`

// Parse reads the object types of a model written in SDL. Scalar and
// directive definitions are accepted and ignored.
func Parse(source string) (*Graph, error) {
	doc, err := parser.ParseSchema(&ast.Source{Name: "model.graphql", Input: source})
	if err != nil {
		return nil, relgraph.NewModelError("", "", "parse model", err)
	}
	if len(doc.Extensions) > 0 {
		return nil, relgraph.Modelf(doc.Extensions[0].Name, "", "type extensions are not supported")
	}
	g := New()
	for _, def := range doc.Definitions {
		switch def.Kind {
		case ast.Scalar:
			continue
		case ast.Object:
		default:
			return nil, relgraph.Modelf(def.Name, "", "unsupported definition kind %s", strings.ToLower(string(def.Kind)))
		}
		t := &Type{Name: def.Name, Join: def.Directives.ForName("join") != nil}
		for _, fd := range def.Fields {
			f, err := parseField(def.Name, fd)
			if err != nil {
				return nil, err
			}
			if !t.AddField(f) {
				return nil, relgraph.Modelf(def.Name, fd.Name, "duplicate field")
			}
		}
		if !g.Add(t) {
			return nil, relgraph.Modelf(def.Name, "", "duplicate type")
		}
	}
	return g, nil
}

func parseField(typeName string, fd *ast.FieldDefinition) (*Field, error) {
	f := &Field{
		Name:     fd.Name,
		Type:     fd.Type.Name(),
		Nullable: !fd.Type.NonNull,
	}
	if fd.Type.Elem != nil {
		f.List, f.Nullable = true, false
	}
	if IsScalar(f.Type) {
		f.Scalar, f.List = true, false
	}
	for _, d := range fd.Directives {
		var (
			rel Relation
			err error
		)
		switch d.Name {
		case "unique":
			f.Unique = true
			continue
		case "ref":
			var name string
			name, err = stringArg(d, "name", true)
			rel = Ref{Type: name}
		case "key":
			var name string
			name, err = stringArg(d, "name", true)
			rel = Key{Column: name}
		case "field":
			m := Mirror{}
			if m.Field, err = stringArg(d, "name", true); err == nil {
				m.Column, err = stringArg(d, "key", false)
			}
			rel = m
		case "type":
			j := Join{}
			if j.Type, err = stringArg(d, "name", true); err == nil {
				j.Keys, err = keysArg(d)
			}
			rel = j
		default:
			continue
		}
		if err != nil {
			return nil, relgraph.NewModelError(typeName, fd.Name, "invalid directive @"+d.Name, err)
		}
		if f.Rel != nil {
			return nil, relgraph.Modelf(typeName, fd.Name, "conflicting relation directives @%s and @%s", f.Rel.Directive(), d.Name)
		}
		f.Rel = rel
	}
	return f, nil
}

func stringArg(d *ast.Directive, name string, required bool) (string, error) {
	arg := d.Arguments.ForName(name)
	if arg == nil || arg.Value == nil || arg.Value.Kind == ast.NullValue {
		if required {
			return "", fmt.Errorf("missing argument %q", name)
		}
		return "", nil
	}
	if arg.Value.Kind != ast.StringValue {
		return "", fmt.Errorf("argument %q must be a string", name)
	}
	if arg.Value.Raw == "" {
		return "", fmt.Errorf("argument %q cannot be empty", name)
	}
	return arg.Value.Raw, nil
}

func keysArg(d *ast.Directive) ([2]string, error) {
	var keys [2]string
	arg := d.Arguments.ForName("keys")
	if arg == nil || arg.Value == nil || arg.Value.Kind == ast.NullValue {
		return keys, nil
	}
	if arg.Value.Kind != ast.ListValue || len(arg.Value.Children) != 2 {
		return keys, fmt.Errorf("argument %q must be a list of two strings", "keys")
	}
	for i, c := range arg.Value.Children {
		if c.Value.Kind != ast.StringValue || c.Value.Raw == "" {
			return keys, fmt.Errorf("argument %q must be a list of two strings", "keys")
		}
		keys[i] = c.Value.Raw
	}
	return keys, nil
}

// Print renders the prelude and all types of g as formatted SDL.
func Print(g *Graph) (string, error) {
	var b strings.Builder
	b.WriteString(Prelude)
	writeTypes(&b, g)
	return Format(b.String())
}

// PrintTypes renders the types of g as formatted SDL, without prelude.
func PrintTypes(g *Graph) (string, error) {
	var b strings.Builder
	writeTypes(&b, g)
	return Format(b.String())
}

// Format parses SDL source and prints it back in canonical layout.
func Format(source string) (string, error) {
	doc, err := parser.ParseSchema(&ast.Source{Name: "schema.graphql", Input: source})
	if err != nil {
		return "", fmt.Errorf("relgraph/schema: format: %w", err)
	}
	var b strings.Builder
	formatter.NewFormatter(&b, formatter.WithIndent("  ")).FormatSchemaDocument(doc)
	return b.String(), nil
}

func writeTypes(b *strings.Builder, g *Graph) {
	for _, t := range g.Types() {
		b.WriteString("type ")
		b.WriteString(t.Name)
		if t.Join {
			b.WriteString(" @join")
		}
		b.WriteString(" {\n")
		for _, f := range t.Fields() {
			b.WriteString("  ")
			b.WriteString(f.Name)
			b.WriteString(": ")
			b.WriteString(f.TypeString())
			b.WriteString(Directives(f))
			b.WriteByte('\n')
		}
		b.WriteString("}\n")
	}
}

// Directives renders the directives of f, each preceded by a space.
func Directives(f *Field) string {
	var b strings.Builder
	switch r := f.Rel.(type) {
	case Ref:
		fmt.Fprintf(&b, " @ref(name: %s)", strconv.Quote(r.Type))
	case Key:
		fmt.Fprintf(&b, " @key(name: %s)", strconv.Quote(r.Column))
	case Mirror:
		fmt.Fprintf(&b, " @field(name: %s", strconv.Quote(r.Field))
		if r.Column != "" {
			fmt.Fprintf(&b, ", key: %s", strconv.Quote(r.Column))
		}
		b.WriteString(")")
	case Join:
		fmt.Fprintf(&b, " @type(name: %s", strconv.Quote(r.Type))
		if r.HasKeys() {
			fmt.Fprintf(&b, ", keys: [%s, %s]", strconv.Quote(r.Keys[0]), strconv.Quote(r.Keys[1]))
		}
		b.WriteString(")")
	}
	if f.Unique {
		b.WriteString(" @unique")
	}
	return b.String()
}
