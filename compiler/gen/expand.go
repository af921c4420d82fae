package gen

import (
	"strings"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/syssam/relgraph"
	"github.com/syssam/relgraph/compiler/load"
	"github.com/syssam/relgraph/compiler/resolve"
	"github.com/syssam/relgraph/schema"
)

// Schema is a resolved model together with the query and mutation
// surface derived from it. A Schema is immutable once built and may be
// shared by concurrent compilations.
type Schema struct {
	// Model is the resolved type graph.
	Model *schema.Graph
	// Source is the formatted SDL of the full surface.
	Source string
	// AST is the validated schema used to check query documents.
	AST *ast.Schema
}

// Type returns the model type named name, or nil.
func (s *Schema) Type(name string) *schema.Type {
	return s.Model.Type(name)
}

// Build runs the full pipeline on a model: normalization, relation
// resolution and expansion.
func Build(model string, opts ...Option) (*Schema, error) {
	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}
	lopts := []load.Option{load.WithLogger(cfg.Logger)}
	if cfg.StrictNames {
		lopts = append(lopts, load.WithStrictNames())
	}
	g, err := load.Normalize(model, lopts...)
	if err != nil {
		return nil, err
	}
	if g, err = resolve.Resolve(g); err != nil {
		return nil, err
	}
	s, err := Expand(g)
	if err != nil {
		return nil, err
	}
	cfg.Logger.Debug("schema built", "types", len(g.Types()), "bytes", len(s.Source))
	return s, nil
}

// Expand derives the query and mutation surface of a resolved graph.
// The graph is retained by the returned Schema and must not be
// modified afterwards.
func Expand(g *schema.Graph) (*Schema, error) {
	e := &expander{}
	e.query.WriteString("type Query {\n")
	e.mutation.WriteString(`type Mutation {
  create(data: CreateData!): Query!
  update(data: UpdateData!): Query!
  delete(data: DeleteData!): Query!
  read: Query!
}
`)
	e.createData.WriteString("input CreateData {\n")
	e.updateData.WriteString("input UpdateData {\n")
	e.deleteData.WriteString("input DeleteData {\n")
	for _, t := range g.Types() {
		e.object(t)
	}
	for _, t := range g.Types() {
		if !t.Join {
			e.inputs(t)
		}
	}
	e.scalars()
	for _, b := range []*strings.Builder{&e.query, &e.createData, &e.updateData, &e.deleteData} {
		b.WriteString("}\n")
	}

	var src strings.Builder
	src.WriteString(schema.Prelude)
	for _, b := range []*strings.Builder{
		&e.query, &e.mutation, &e.objects,
		&e.createData, &e.updateData, &e.deleteData,
		&e.create, &e.update, &e.delete,
		&e.where, &e.order,
	} {
		src.WriteString(b.String())
	}
	src.WriteString("enum Order {\n  asc\n  desc\n}\n")

	formatted, err := schema.Format(src.String())
	if err != nil {
		return nil, relgraph.NewModelError("", "", "expand schema", err)
	}
	doc, gerr := gqlparser.LoadSchema(&ast.Source{Name: "schema.graphql", Input: formatted})
	if gerr != nil {
		return nil, relgraph.NewModelError("", "", "expanded schema is invalid", gerr)
	}
	return &Schema{Model: g, Source: formatted, AST: doc}, nil
}

type expander struct {
	query, mutation, objects             strings.Builder
	createData, updateData, deleteData   strings.Builder
	create, update, delete, where, order strings.Builder
}

// object renders t with relation-aware argument lists.
func (e *expander) object(t *schema.Type) {
	b := &e.objects
	b.WriteString("type " + t.Name)
	if t.Join {
		b.WriteString(" @join")
	}
	b.WriteString(" {\n")
	for _, f := range t.Fields() {
		b.WriteString("  " + f.Name)
		switch {
		case f.Scalar:
		case f.List:
			b.WriteString("(where: Where" + f.Type + ", order: Order" + f.Type + ", limit: Int, offset: Int)")
		default:
			b.WriteString("(where: Where" + f.Type + ")")
		}
		b.WriteString(": " + f.TypeString() + schema.Directives(f) + "\n")
	}
	b.WriteString("}\n")
}

// inputs renders the root accessors and the data, where and order
// inputs of a non-join type.
func (e *expander) inputs(t *schema.Type) {
	one, many := schema.FieldName(t.Name), schema.ListFieldName(t.Name)
	e.query.WriteString("  " + one + "(where: Where" + t.Name + ", order: Order" + t.Name + ", offset: Int): " + t.Name + "\n")
	e.query.WriteString("  " + many + "(where: Where" + t.Name + ", order: Order" + t.Name + ", limit: Int, offset: Int): [" + t.Name + "!]!\n")
	for kind, b := range map[string]*strings.Builder{"Create": &e.createData, "Update": &e.updateData, "Delete": &e.deleteData} {
		b.WriteString("  " + one + ": " + kind + "Data" + t.Name + "\n")
		b.WriteString("  " + many + ": [" + kind + "Data" + t.Name + "!]\n")
	}

	e.create.WriteString("input CreateData" + t.Name + " {\n")
	e.update.WriteString("input UpdateData" + t.Name + " {\n")
	e.delete.WriteString("input DeleteData" + t.Name + " {\n")
	e.where.WriteString("input Where" + t.Name + " {\n")
	e.order.WriteString("input Order" + t.Name + " {\n")
	for _, f := range t.Fields() {
		if !f.Scalar {
			typ := "Data" + f.Type
			if f.List {
				e.create.WriteString("  " + f.Name + ": [Create" + typ + "!]\n")
				e.update.WriteString("  " + f.Name + ": [Update" + typ + "!]\n")
				e.delete.WriteString("  " + f.Name + ": [Delete" + typ + "!]\n")
			} else {
				e.create.WriteString("  " + f.Name + ": Create" + typ + "\n")
				e.update.WriteString("  " + f.Name + ": Update" + typ + "\n")
				e.delete.WriteString("  " + f.Name + ": Delete" + typ + "\n")
			}
			continue
		}
		if _, ok := f.Ref(); !ok {
			switch f.Name {
			case schema.FieldID:
				e.update.WriteString("  " + f.Name + ": " + f.TypeString() + "\n")
				e.delete.WriteString("  " + f.Name + ": " + f.TypeString() + "\n")
			case schema.FieldCreatedAt, schema.FieldUpdatedAt:
			default:
				e.create.WriteString("  " + f.Name + ": " + f.TypeString() + "\n")
				e.update.WriteString("  " + f.Name + ": " + f.Type + "\n")
			}
		}
		e.where.WriteString("  " + f.Name + ": Where" + f.Type + "\n")
		e.order.WriteString("  " + f.Name + ": Order\n")
	}
	for _, op := range schema.LogicalOperators {
		e.where.WriteString("  " + op + ": Where" + t.Name + "\n")
	}
	for _, b := range []*strings.Builder{&e.create, &e.update, &e.delete, &e.where, &e.order} {
		b.WriteString("}\n")
	}
}

// scalars renders one comparison input per scalar kind.
func (e *expander) scalars() {
	for _, s := range schema.Scalars {
		e.where.WriteString("input Where" + s + " {\n")
		for _, op := range schema.OperatorsOf(s) {
			switch op {
			case "in":
				e.where.WriteString("  in: [" + s + "]\n")
			case "like":
				e.where.WriteString("  like: String\n")
			default:
				e.where.WriteString("  " + op + ": " + s + "\n")
			}
		}
		e.where.WriteString("}\n")
	}
}
