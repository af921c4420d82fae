package resolve

import (
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/syssam/relgraph"
	"github.com/syssam/relgraph/schema"
)

// Check verifies that g is fully resolved: every relation field carries
// one relation directive whose columns and join types exist, and the
// printed model loads as a GraphQL schema.
func Check(g *schema.Graph) error {
	for _, t := range g.Types() {
		for _, f := range t.Fields() {
			if err := checkField(g, t, f); err != nil {
				return err
			}
		}
	}
	src, err := schema.Print(g)
	if err != nil {
		return relgraph.NewModelError("", "", "print model", err)
	}
	if _, err := gqlparser.LoadSchema(&ast.Source{Name: "model.graphql", Input: src}); err != nil {
		return relgraph.NewModelError("", "", "load resolved model", err)
	}
	return nil
}

func checkField(g *schema.Graph, t *schema.Type, f *schema.Field) error {
	if f.Scalar {
		switch r := f.Rel.(type) {
		case nil:
		case schema.Ref:
			if g.Type(r.Type) == nil {
				return relgraph.Modelf(t.Name, f.Name, "@ref to undeclared type %q", r.Type)
			}
		default:
			return relgraph.Modelf(t.Name, f.Name, "@%s on a scalar field", r.Directive())
		}
		return nil
	}
	ref := g.Type(f.Type)
	if ref == nil {
		return relgraph.Modelf(t.Name, f.Name, "undeclared type %q", f.Type)
	}
	switch r := f.Rel.(type) {
	case nil:
		return relgraph.Modelf(t.Name, f.Name, "unresolved relation")
	case schema.Key:
		return checkColumn(t, f, r.Column, ref.Name)
	case schema.Mirror:
		if m := ref.Field(r.Field); m == nil || m.Type != t.Name {
			return relgraph.Modelf(t.Name, f.Name, "missing mirror field %s.%s", ref.Name, r.Field)
		}
		return checkColumn(ref, f, r.Column, t.Name)
	case schema.Join:
		jt := g.Type(r.Type)
		if jt == nil || !jt.Join {
			return relgraph.Modelf(t.Name, f.Name, "missing join type %q", r.Type)
		}
		if !r.HasKeys() {
			return relgraph.Modelf(t.Name, f.Name, "join type %q has no keys", r.Type)
		}
		if err := checkColumn(jt, f, r.Keys[0], t.Name); err != nil {
			return err
		}
		return checkColumn(jt, f, r.Keys[1], ref.Name)
	default:
		return relgraph.Modelf(t.Name, f.Name, "@%s requires a scalar field", r.Directive())
	}
}

// checkColumn verifies that owner holds column name referencing ref.
func checkColumn(owner *schema.Type, f *schema.Field, name, ref string) error {
	c := owner.Field(name)
	if c == nil {
		return relgraph.Modelf(owner.Name, f.Name, "missing foreign key %s.%s", owner.Name, name)
	}
	if r, ok := c.Ref(); !ok || r.Type != ref {
		return relgraph.Modelf(owner.Name, name, "foreign key must reference %s", ref)
	}
	return nil
}
