package schema

import (
	"slices"
	"sort"
)

// Graph is an ordered set of types indexed by name.
type Graph struct {
	types []*Type
	index map[string]*Type
}

// New returns a graph holding the given types in order.
// Later types replace earlier ones with the same name.
func New(types ...*Type) *Graph {
	g := &Graph{index: make(map[string]*Type, len(types))}
	for _, t := range types {
		g.Set(t)
	}
	return g
}

// Types returns the types in graph order.
func (g *Graph) Types() []*Type {
	return g.types
}

// Type returns the type with the given name, or nil.
func (g *Graph) Type(name string) *Type {
	return g.index[name]
}

// Add appends t unless a type with the same name exists.
// It reports whether t was added.
func (g *Graph) Add(t *Type) bool {
	g.init()
	if _, ok := g.index[t.Name]; ok {
		return false
	}
	g.types = append(g.types, t)
	g.index[t.Name] = t
	return true
}

// Set adds t or replaces the type with the same name in place.
func (g *Graph) Set(t *Type) {
	g.init()
	if old, ok := g.index[t.Name]; ok {
		g.types[slices.Index(g.types, old)] = t
	} else {
		g.types = append(g.types, t)
	}
	g.index[t.Name] = t
}

func (g *Graph) init() {
	if g.index == nil {
		g.index = make(map[string]*Type)
	}
}

// Remove deletes the type with the given name.
func (g *Graph) Remove(name string) {
	t, ok := g.index[name]
	if !ok {
		return
	}
	delete(g.index, name)
	g.types = slices.DeleteFunc(g.types, func(o *Type) bool { return o == t })
}

// Sort orders types with non-join types first, then join types,
// each group alphabetically. Fields of every type are sorted too.
func (g *Graph) Sort() {
	sort.SliceStable(g.types, func(i, j int) bool {
		a, b := g.types[i], g.types[j]
		if a.Join != b.Join {
			return !a.Join
		}
		return a.Name < b.Name
	})
	for _, t := range g.types {
		t.SortFields()
	}
}

// Clone returns a deep copy of the graph.
func (g *Graph) Clone() *Graph {
	c := &Graph{
		types: make([]*Type, 0, len(g.types)),
		index: make(map[string]*Type, len(g.types)),
	}
	for _, t := range g.types {
		c.Add(t.Clone())
	}
	return c
}

// Type is an object type of the model.
type Type struct {
	Name string
	// Join marks a synthesized many-to-many association type.
	Join   bool
	fields []*Field
	index  map[string]*Field
}

// NewType returns a type with the given fields.
func NewType(name string, fields ...*Field) *Type {
	t := &Type{Name: name, index: make(map[string]*Field, len(fields))}
	for _, f := range fields {
		t.SetField(f)
	}
	return t
}

// Fields returns the fields in declaration order.
func (t *Type) Fields() []*Field {
	return t.fields
}

// Field returns the field with the given name, or nil.
func (t *Type) Field(name string) *Field {
	return t.index[name]
}

// AddField appends f unless a field with the same name exists.
// It reports whether f was added.
func (t *Type) AddField(f *Field) bool {
	t.init()
	if _, ok := t.index[f.Name]; ok {
		return false
	}
	t.fields = append(t.fields, f)
	t.index[f.Name] = f
	return true
}

// SetField adds f or replaces the field with the same name in place.
func (t *Type) SetField(f *Field) {
	t.init()
	if old, ok := t.index[f.Name]; ok {
		t.fields[slices.Index(t.fields, old)] = f
	} else {
		t.fields = append(t.fields, f)
	}
	t.index[f.Name] = f
}

func (t *Type) init() {
	if t.index == nil {
		t.index = make(map[string]*Field)
	}
}

// RemoveField deletes the field with the given name.
func (t *Type) RemoveField(name string) {
	f, ok := t.index[name]
	if !ok {
		return
	}
	delete(t.index, name)
	t.fields = slices.DeleteFunc(t.fields, func(o *Field) bool { return o == f })
}

// SortFields orders base fields first in their fixed order,
// then the remaining fields alphabetically.
func (t *Type) SortFields() {
	rank := func(name string) int {
		if i := slices.Index(BaseFields, name); i >= 0 {
			return i
		}
		return len(BaseFields)
	}
	sort.SliceStable(t.fields, func(i, j int) bool {
		a, b := t.fields[i].Name, t.fields[j].Name
		if ra, rb := rank(a), rank(b); ra != rb {
			return ra < rb
		}
		return a < b
	})
}

// Clone returns a deep copy of the type.
func (t *Type) Clone() *Type {
	c := &Type{
		Name:   t.Name,
		Join:   t.Join,
		fields: make([]*Field, 0, len(t.fields)),
		index:  make(map[string]*Field, len(t.fields)),
	}
	for _, f := range t.fields {
		c.AddField(f.Clone())
	}
	return c
}

// Relations returns the non-scalar fields of the type.
func (t *Type) Relations() []*Field {
	var fs []*Field
	for _, f := range t.fields {
		if !f.Scalar {
			fs = append(fs, f)
		}
	}
	return fs
}

// Field is a field of an object type.
type Field struct {
	Name string
	// Type is a scalar kind or the name of another type.
	Type     string
	Scalar   bool
	List     bool
	Nullable bool
	Unique   bool
	// Rel is nil for plain scalars and for relations not yet resolved.
	Rel Relation
}

// Clone returns a copy of the field.
func (f *Field) Clone() *Field {
	c := *f
	return &c
}

// Ref returns the referenced type of a foreign-key column.
func (f *Field) Ref() (Ref, bool) {
	r, ok := f.Rel.(Ref)
	return r, ok
}

// Key returns the key relation of the field.
func (f *Field) Key() (Key, bool) {
	k, ok := f.Rel.(Key)
	return k, ok
}

// Mirror returns the mirror relation of the field.
func (f *Field) Mirror() (Mirror, bool) {
	m, ok := f.Rel.(Mirror)
	return m, ok
}

// Join returns the join relation of the field.
func (f *Field) Join() (Join, bool) {
	j, ok := f.Rel.(Join)
	return j, ok
}

// TypeString renders the SDL type of the field. Lists are always
// non-null lists of non-null elements.
func (f *Field) TypeString() string {
	s := f.Type
	if f.List {
		s = "[" + s + "!]"
	}
	if !f.Nullable {
		s += "!"
	}
	return s
}
