// Package resolve infers the cardinality of every relation in a normalized
// model and materializes its foreign keys, mirror fields and join types.
package resolve

import (
	"fmt"
	"slices"
	"strings"

	"github.com/syssam/relgraph"
	"github.com/syssam/relgraph/schema"
)

// Rel is the cardinality of a relation, seen from its declaring field.
type Rel int

// Relation types.
const (
	Unk Rel = iota // Unknown.
	O2O            // One to one.
	O2M            // One to many.
	M2O            // Many to one.
	M2M            // Many to many.
)

// String returns the relation name.
func (r Rel) String() string {
	s := "Unknown"
	switch r {
	case O2O:
		s = "O2O"
	case O2M:
		s = "O2M"
	case M2O:
		s = "M2O"
	case M2M:
		s = "M2M"
	}
	return s
}

type (
	// plan is the classification of one relation: a declaring field,
	// its mirror, and what has to exist for both to be navigable.
	plan struct {
		typ   *schema.Type
		field *schema.Field
		ref   *schema.Type
		// mirror is nil when the mirror field is synthesized or absent.
		mirror     *schema.Field
		mirrorName string
		fieldRel   schema.Relation
		mirrorRel  schema.Relation
		nullField  bool
		nullMirror bool
		column     *column
		join       *join
	}
	// column is a foreign-key column to be created if missing.
	column struct {
		owner    *schema.Type
		name     string
		ref      string
		nullable bool
		unique   bool
	}
	// join is a join type to be created if missing.
	join struct {
		name  string
		keys  [2]string
		types [2]string
	}
	resolver struct {
		g       *schema.Graph
		plans   []*plan
		covered map[*schema.Field]bool
		// synth holds the fields planned for synthesis, per type.
		synth map[string]map[string]bool
		joins map[string]*plan
	}
)

// Resolve returns a resolved copy of the normalized graph g. Every
// relation field of the result carries exactly one relation directive,
// every foreign-key column exists and every join type exists once.
// Resolving a resolved graph yields the same graph.
func Resolve(g *schema.Graph) (*schema.Graph, error) {
	r := &resolver{
		g:       g.Clone(),
		covered: make(map[*schema.Field]bool),
		synth:   make(map[string]map[string]bool),
		joins:   make(map[string]*plan),
	}
	for _, t := range r.g.Types() {
		for _, f := range schema.NewBaseFields() {
			t.SetField(f)
		}
	}
	if err := r.classify(); err != nil {
		return nil, err
	}
	for _, p := range r.plans {
		if err := r.materialize(p); err != nil {
			return nil, err
		}
	}
	r.g.Sort()
	if err := Check(r.g); err != nil {
		return nil, err
	}
	return r.g, nil
}

// classify plans every relation without touching the graph. Fields with
// explicit directives are planned first, so that their mirrors are never
// picked up by inference.
func (r *resolver) classify() error {
	for _, explicit := range []bool{true, false} {
		for _, t := range r.g.Types() {
			for _, f := range t.Relations() {
				if r.covered[f] || (f.Rel != nil) != explicit {
					continue
				}
				ref := r.g.Type(f.Type)
				if ref == nil {
					return relgraph.Modelf(t.Name, f.Name, "undeclared type %q", f.Type)
				}
				p, err := r.plan(t, f, ref)
				if err != nil {
					return err
				}
				if err := r.add(p); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (r *resolver) plan(t *schema.Type, f *schema.Field, ref *schema.Type) (*plan, error) {
	switch rel := f.Rel.(type) {
	case nil:
		return r.inferred(t, f, ref)
	case schema.Key:
		return r.keyed(t, f, ref, rel)
	case schema.Mirror:
		return r.mirrored(t, f, ref, rel)
	case schema.Join:
		return r.joined(t, f, ref, rel)
	default:
		return nil, relgraph.Modelf(t.Name, f.Name, "@%s requires a scalar field", rel.Directive())
	}
}

// add records p and marks the fields it covers.
func (r *resolver) add(p *plan) error {
	if p.mirror == nil && p.mirrorName != "" {
		if err := r.reserve(p.ref, p.mirrorName); err != nil {
			return relgraph.NewModelError(p.typ.Name, p.field.Name, "mirror field", err)
		}
	}
	if c := p.column; c != nil && c.owner.Field(c.name) == nil {
		if err := r.reserve(c.owner, c.name); err != nil {
			return relgraph.NewModelError(p.typ.Name, p.field.Name, "foreign key", err)
		}
	}
	if j := p.join; j != nil {
		if o, ok := r.joins[j.name]; ok {
			return relgraph.Modelf(p.typ.Name, p.field.Name, "join type %q is already used by %s.%s; name it with @type", j.name, o.typ.Name, o.field.Name)
		}
		r.joins[j.name] = p
	}
	r.covered[p.field] = true
	if p.mirror != nil {
		r.covered[p.mirror] = true
	}
	r.plans = append(r.plans, p)
	return nil
}

func (r *resolver) reserve(t *schema.Type, name string) error {
	if t.Field(name) != nil || r.synth[t.Name][name] {
		return fmt.Errorf("%s.%s already exists", t.Name, name)
	}
	if r.synth[t.Name] == nil {
		r.synth[t.Name] = make(map[string]bool)
	}
	r.synth[t.Name][name] = true
	return nil
}

// inferred plans a field without a relation directive.
func (r *resolver) inferred(t *schema.Type, f *schema.Field, ref *schema.Type) (*plan, error) {
	m, err := r.pick(t, f, ref, r.candidates(t, f, ref, false))
	if err != nil {
		return nil, err
	}
	p := &plan{typ: t, field: f, ref: ref, mirror: m}
	if m == nil {
		p.mirrorName = schema.FieldName(t.Name)
	} else {
		p.mirrorName = m.Name
	}
	mirrorList := m != nil && m.List
	switch {
	case f.List && mirrorList:
		name := schema.JoinTypeName(t.Name, ref.Name)
		keys, err := joinKeys(t, f, ref, m)
		if err != nil {
			return nil, err
		}
		if err := r.checkJoin(t, f, name); err != nil {
			return nil, err
		}
		p.join = &join{name: name, keys: keys, types: [2]string{t.Name, ref.Name}}
		p.fieldRel = schema.Join{Type: name, Keys: keys}
		p.mirrorRel = schema.Join{Type: name, Keys: [2]string{keys[1], keys[0]}}
	case f.List:
		col := schema.KeyFieldName(p.mirrorName)
		p.column = &column{owner: ref, name: col, ref: t.Name, nullable: true}
		p.fieldRel = schema.Mirror{Field: p.mirrorName, Column: col}
		p.mirrorRel = schema.Key{Column: col}
		p.nullMirror = true
	case mirrorList:
		col := schema.KeyFieldName(f.Name)
		p.column = &column{owner: t, name: col, ref: ref.Name, nullable: true}
		p.fieldRel = schema.Key{Column: col}
		p.mirrorRel = schema.Mirror{Field: f.Name, Column: col}
		p.nullField = true
	case f.Nullable:
		col := schema.KeyFieldName(p.mirrorName)
		p.column = &column{owner: ref, name: col, ref: t.Name, nullable: true, unique: true}
		p.fieldRel = schema.Mirror{Field: p.mirrorName, Column: col}
		p.mirrorRel = schema.Key{Column: col}
		p.nullMirror = true
	default:
		col := schema.KeyFieldName(f.Name)
		p.column = &column{owner: t, name: col, ref: ref.Name, unique: true}
		p.fieldRel = schema.Key{Column: col}
		p.mirrorRel = schema.Mirror{Field: f.Name, Column: col}
		p.nullMirror = true
	}
	return p, nil
}

// keyed plans a field holding @key: the declaring type owns the column.
func (r *resolver) keyed(t *schema.Type, f *schema.Field, ref *schema.Type, k schema.Key) (*plan, error) {
	if f.List {
		return nil, relgraph.Modelf(t.Name, f.Name, "@key requires a to-one field")
	}
	m, err := r.explicitMirror(t, f, ref)
	if err != nil {
		return nil, err
	}
	if m == nil {
		if m, err = r.pick(t, f, ref, r.candidates(t, f, ref, false)); err != nil {
			return nil, err
		}
	}
	p := &plan{
		typ:      t,
		field:    f,
		ref:      ref,
		mirror:   m,
		fieldRel: k,
		column:   &column{owner: t, name: k.Column, ref: ref.Name, nullable: f.Nullable},
	}
	if m != nil {
		if mm, ok := m.Mirror(); ok && mm.Column != "" && mm.Column != k.Column {
			return nil, relgraph.Modelf(t.Name, f.Name, "@key(name: %q) contradicts %s.%s @field(key: %q)", k.Column, ref.Name, m.Name, mm.Column)
		}
		p.mirrorName = m.Name
		p.mirrorRel = schema.Mirror{Field: f.Name, Column: k.Column}
		if !m.List {
			p.column.unique = true
			p.nullMirror = true
		}
	}
	return p, nil
}

// explicitMirror returns the field on ref that names f in its @field
// directive, if any.
func (r *resolver) explicitMirror(t *schema.Type, f *schema.Field, ref *schema.Type) (*schema.Field, error) {
	for _, m := range ref.Relations() {
		if mm, ok := m.Mirror(); ok && m != f && m.Type == t.Name && mm.Field == f.Name {
			if r.covered[m] {
				return nil, relgraph.Modelf(ref.Name, m.Name, "mirror %s.%s is claimed by another relation", t.Name, f.Name)
			}
			return m, nil
		}
	}
	return nil, nil
}

// mirrored plans a field holding @field: the referenced type owns the column.
func (r *resolver) mirrored(t *schema.Type, f *schema.Field, ref *schema.Type, mm schema.Mirror) (*plan, error) {
	m := ref.Field(mm.Field)
	col := mm.Column
	if m != nil {
		switch {
		case r.covered[m]:
			return nil, relgraph.Modelf(t.Name, f.Name, "mirror field %s.%s is claimed by another relation", ref.Name, m.Name)
		case m.Scalar || m.List || m.Type != t.Name:
			return nil, relgraph.Modelf(t.Name, f.Name, "mirror field %s.%s must be a to-one %s field", ref.Name, m.Name, t.Name)
		}
		switch mr := m.Rel.(type) {
		case nil:
		case schema.Key:
			if col == "" {
				col = mr.Column
			} else if col != mr.Column {
				return nil, relgraph.Modelf(t.Name, f.Name, "@field(key: %q) contradicts %s.%s @key(name: %q)", col, ref.Name, m.Name, mr.Column)
			}
		default:
			return nil, relgraph.Modelf(t.Name, f.Name, "contradicts %s.%s @%s", ref.Name, m.Name, mr.Directive())
		}
	}
	if col == "" {
		col = schema.KeyFieldName(mm.Field)
	}
	p := &plan{
		typ:        t,
		field:      f,
		ref:        ref,
		mirror:     m,
		mirrorName: mm.Field,
		fieldRel:   schema.Mirror{Field: mm.Field, Column: col},
		mirrorRel:  schema.Key{Column: col},
		column:     &column{owner: ref, name: col, ref: t.Name, nullable: m == nil || m.Nullable, unique: !f.List},
	}
	if !f.List {
		p.nullField = true
	}
	return p, nil
}

// joined plans a list field holding @type.
func (r *resolver) joined(t *schema.Type, f *schema.Field, ref *schema.Type, j schema.Join) (*plan, error) {
	if !f.List {
		return nil, relgraph.Modelf(t.Name, f.Name, "@type requires a list field")
	}
	var m *schema.Field
	for _, o := range ref.Relations() {
		if oj, ok := o.Join(); ok && o != f && o.List && o.Type == t.Name && oj.Type == j.Type && !r.covered[o] {
			m = o
			break
		}
	}
	if m == nil {
		var err error
		if m, err = r.pick(t, f, ref, r.candidates(t, f, ref, true)); err != nil {
			return nil, err
		}
	}
	keys := j.Keys
	mj, mirrorKeys := schema.Join{}, false
	if m != nil {
		mj, mirrorKeys = m.Join()
		mirrorKeys = mirrorKeys && mj.HasKeys()
	}
	switch {
	case j.HasKeys() && mirrorKeys && mj.Reverse().Keys != keys:
		return nil, relgraph.Modelf(t.Name, f.Name, "@type keys %v contradict %s.%s keys %v", keys, ref.Name, m.Name, mj.Keys)
	case j.HasKeys():
	case mirrorKeys:
		keys = mj.Reverse().Keys
	default:
		var err error
		if keys, err = joinKeys(t, f, ref, m); err != nil {
			return nil, err
		}
	}
	if keys[0] == keys[1] {
		return nil, relgraph.Modelf(t.Name, f.Name, "join keys of %q must differ, got %q twice", j.Type, keys[0])
	}
	if err := r.checkJoin(t, f, j.Type); err != nil {
		return nil, err
	}
	p := &plan{
		typ:      t,
		field:    f,
		ref:      ref,
		mirror:   m,
		fieldRel: schema.Join{Type: j.Type, Keys: keys},
		join:     &join{name: j.Type, keys: keys, types: [2]string{t.Name, ref.Name}},
	}
	if m != nil {
		p.mirrorName = m.Name
		p.mirrorRel = schema.Join{Type: j.Type, Keys: [2]string{keys[1], keys[0]}}
	}
	return p, nil
}

func (r *resolver) checkJoin(t *schema.Type, f *schema.Field, name string) error {
	if jt := r.g.Type(name); jt != nil && !jt.Join {
		return relgraph.Modelf(t.Name, f.Name, "join type %q collides with a declared type", name)
	}
	return nil
}

// joinKeys returns the (own, other) join columns of f. Self relations
// name their columns after the fields, so that the two columns differ.
func joinKeys(t *schema.Type, f *schema.Field, ref *schema.Type, m *schema.Field) ([2]string, error) {
	keys := [2]string{schema.KeyFieldName(t.Name), schema.KeyFieldName(ref.Name)}
	if t == ref {
		keys[1] = schema.KeyFieldName(f.Name)
		if m != nil {
			keys[0] = schema.KeyFieldName(m.Name)
		}
	}
	if keys[0] == keys[1] {
		return keys, relgraph.Modelf(t.Name, f.Name, "join keys must differ, got %q twice", keys[0])
	}
	return keys, nil
}

// candidates returns the fields of ref that may mirror f by inference.
func (r *resolver) candidates(t *schema.Type, f *schema.Field, ref *schema.Type, list bool) []*schema.Field {
	var fs []*schema.Field
	for _, m := range ref.Relations() {
		if m == f || m.Rel != nil || m.Type != t.Name || r.covered[m] || (list && !m.List) {
			continue
		}
		fs = append(fs, m)
	}
	return fs
}

// pick selects the mirror among candidates, preferring the
// conventional names for a field pointing back at t.
func (r *resolver) pick(t *schema.Type, f *schema.Field, ref *schema.Type, fs []*schema.Field) (*schema.Field, error) {
	switch len(fs) {
	case 0:
		return nil, nil
	case 1:
		return fs[0], nil
	}
	for _, name := range []string{schema.ListFieldName(t.Name), schema.FieldName(t.Name)} {
		if i := slices.IndexFunc(fs, func(m *schema.Field) bool { return m.Name == name }); i >= 0 {
			return fs[i], nil
		}
	}
	names := make([]string, len(fs))
	for i, m := range fs {
		names[i] = m.Name
	}
	return nil, relgraph.Modelf(t.Name, f.Name, "ambiguous mirror on %s: one of %s; add @field or @type", ref.Name, strings.Join(names, ", "))
}

func (r *resolver) materialize(p *plan) error {
	if c := p.column; c != nil {
		if err := ensureColumn(c.owner, c.name, c.ref, c.nullable, c.unique); err != nil {
			return err
		}
	}
	if j := p.join; j != nil {
		if err := r.ensureJoin(j); err != nil {
			return err
		}
	}
	p.field.Rel = p.fieldRel
	if p.nullField {
		p.field.Nullable = true
	}
	if p.mirrorName == "" {
		return nil
	}
	m := p.mirror
	if m == nil {
		m = &schema.Field{Name: p.mirrorName, Type: p.typ.Name, Nullable: true}
		p.ref.AddField(m)
	}
	m.Rel = p.mirrorRel
	if p.nullMirror {
		m.Nullable = true
	}
	return nil
}

// ensureColumn creates the foreign-key column on t, or completes an
// existing one declared by the model.
func ensureColumn(t *schema.Type, name, ref string, nullable, unique bool) error {
	f := t.Field(name)
	if f == nil {
		t.AddField(&schema.Field{
			Name:     name,
			Type:     schema.PrimaryKey,
			Scalar:   true,
			Nullable: nullable,
			Unique:   unique,
			Rel:      schema.Ref{Type: ref},
		})
		return nil
	}
	if !f.Scalar || f.Type != schema.PrimaryKey {
		return relgraph.Modelf(t.Name, name, "foreign key column must be of type %s", schema.PrimaryKey)
	}
	switch r, ok := f.Ref(); {
	case !ok:
		f.Rel = schema.Ref{Type: ref}
		f.Unique = f.Unique || unique
	case r.Type != ref:
		return relgraph.Modelf(t.Name, name, "foreign key references %s, want %s", r.Type, ref)
	}
	return nil
}

func (r *resolver) ensureJoin(j *join) error {
	jt := r.g.Type(j.name)
	if jt == nil {
		jt = schema.NewType(j.name, schema.NewBaseFields()...)
		jt.Join = true
		r.g.Add(jt)
	}
	for i, key := range j.keys {
		if err := ensureColumn(jt, key, j.types[i], false, false); err != nil {
			return err
		}
	}
	return nil
}
