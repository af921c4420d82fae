package resolve

import "github.com/syssam/relgraph/schema"

// Edge describes a resolved relation as seen from one of its fields.
type Edge struct {
	Type   string
	Field  string
	Ref    string
	Rel    Rel
	Mirror string // Empty if the relation has no mirror field.
	// Table is the type holding the foreign key, or the join type.
	Table   string
	Columns []string
}

// Edges lists the relations of a resolved graph, one per relation
// field, in graph order.
func Edges(g *schema.Graph) []*Edge {
	var edges []*Edge
	for _, t := range g.Types() {
		for _, f := range t.Relations() {
			ref := g.Type(f.Type)
			if ref == nil {
				continue
			}
			e := &Edge{Type: t.Name, Field: f.Name, Ref: ref.Name}
			switch r := f.Rel.(type) {
			case schema.Join:
				e.Rel, e.Table, e.Columns = M2M, r.Type, r.Keys[:]
				for _, m := range ref.Relations() {
					if mj, ok := m.Join(); ok && m != f && mj.Type == r.Type && mj.Keys == r.Reverse().Keys {
						e.Mirror = m.Name
						break
					}
				}
			case schema.Mirror:
				e.Rel, e.Mirror, e.Table, e.Columns = O2M, r.Field, ref.Name, []string{r.Column}
				if !f.List {
					e.Rel = O2O
				}
			case schema.Key:
				e.Rel, e.Table, e.Columns = M2O, t.Name, []string{r.Column}
				for _, m := range ref.Relations() {
					if mm, ok := m.Mirror(); ok && m.Type == t.Name && mm.Field == f.Name {
						e.Mirror = m.Name
						if !m.List {
							e.Rel = O2O
						}
						break
					}
				}
				if c := t.Field(r.Column); e.Mirror == "" && c != nil && c.Unique {
					e.Rel = O2O
				}
			default:
				e.Rel = Unk
			}
			edges = append(edges, e)
		}
	}
	return edges
}
