// Package load reads a user-authored model and normalizes it into a
// canonical type graph, ready for relation resolution.
package load

import (
	"log/slog"
	"sort"

	"github.com/syssam/relgraph"
	"github.com/syssam/relgraph/schema"
)

// Option configures normalization.
type Option func(*Config) error

// Config holds the normalization settings.
type Config struct {
	// Strict rejects fields whose canonical name is reserved instead
	// of dropping them.
	Strict bool
	Logger *slog.Logger
}

// WithStrictNames reports reserved field names as model errors.
func WithStrictNames() Option {
	return func(c *Config) error {
		c.Strict = true
		return nil
	}
}

// WithLogger sets the logger used for normalization diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) error {
		if l == nil {
			return relgraph.NewConfigError("Logger", nil, "logger cannot be nil")
		}
		c.Logger = l
		return nil
	}
}

// Normalize parses model source and normalizes it.
func Normalize(source string, opts ...Option) (*schema.Graph, error) {
	g, err := schema.Parse(source)
	if err != nil {
		return nil, err
	}
	return NormalizeGraph(g, opts...)
}

// NormalizeGraph returns a canonical copy of g:
//
//   - type and field names are canonicalized, reserved ones are dropped
//   - relation directives that make no sense on a field are cleared
//   - many-to-many join names are unified per pair of fields
//   - declared types standing for a claimed join type are removed
//
// The input graph is not modified.
func NormalizeGraph(g *schema.Graph, opts ...Option) (*schema.Graph, error) {
	cfg := &Config{Logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	n := &normalizer{
		Config:  cfg,
		out:     schema.New(),
		claimed: make(map[string]bool),
	}
	for _, t := range g.Types() {
		if err := n.addType(t); err != nil {
			return nil, err
		}
	}
	if err := n.unify(); err != nil {
		return nil, err
	}
	var removed []string
	for _, t := range n.out.Types() {
		if n.claimed[schema.JoinTypeName(t.Name)] {
			removed = append(removed, t.Name)
		}
	}
	for _, name := range removed {
		n.Logger.Debug("removing declared join type", "type", name)
		n.out.Remove(name)
	}
	if err := n.checkSurface(); err != nil {
		return nil, err
	}
	if err := n.checkRefs(); err != nil {
		return nil, err
	}
	n.out.Sort()
	return n.out, nil
}

type (
	normalizer struct {
		*Config
		out     *schema.Graph
		claimed map[string]bool
		intents []*intent
	}
	// intent is a list field asking for a join type by an explicit name.
	intent struct {
		typ   string
		field *schema.Field
	}
)

func (n *normalizer) addType(t *schema.Type) error {
	name := schema.TypeName(t.Name)
	if schema.IsReservedType(name) {
		n.Logger.Debug("skipping reserved type", "type", t.Name)
		return nil
	}
	nt := schema.NewType(name)
	nt.Join = t.Join
	for _, f := range t.Fields() {
		nf, err := n.field(name, f)
		if err != nil {
			return err
		}
		if nf == nil {
			continue
		}
		if !nt.AddField(nf) {
			return relgraph.Modelf(name, nf.Name, "field %q collides with another field after canonicalization", f.Name)
		}
	}
	if !n.out.Add(nt) {
		return relgraph.Modelf(name, "", "type %q collides with another type after canonicalization", t.Name)
	}
	return nil
}

// checkSurface rejects types whose names the expanded schema generates.
func (n *normalizer) checkSurface() error {
	declared := func(name string) bool { return n.out.Type(name) != nil }
	for _, t := range n.out.Types() {
		if schema.IsSurfaceType(t.Name, declared) {
			return relgraph.Modelf(t.Name, "", "type name %q is reserved by the generated schema", t.Name)
		}
	}
	return nil
}

// field returns the canonical form of f, or nil if it is dropped.
func (n *normalizer) field(typ string, f *schema.Field) (*schema.Field, error) {
	nf := f.Clone()
	nf.Type = schema.TypeName(f.Type)
	nf.Scalar = schema.IsScalar(nf.Type)
	if nf.Scalar {
		nf.List = false
	}
	if nf.List {
		nf.Name = schema.ListFieldName(f.Name)
	} else {
		nf.Name = schema.FieldName(f.Name)
	}
	if schema.IsReservedField(nf.Name) {
		if n.Strict && !isBaseField(nf) {
			return nil, relgraph.Modelf(typ, f.Name, "field name %q is reserved", nf.Name)
		}
		n.Logger.Debug("dropping reserved field", "type", typ, "field", f.Name)
		return nil, nil
	}
	if nf.Scalar {
		if r, ok := nf.Ref(); ok {
			nf.Rel = schema.Ref{Type: schema.TypeName(r.Type)}
		} else {
			nf.Rel = nil
		}
		return nf, nil
	}
	nf.Unique = false
	switch r := nf.Rel.(type) {
	case schema.Ref:
		return nil, relgraph.Modelf(typ, f.Name, "@ref requires a scalar field")
	case schema.Key:
		nf.Rel = schema.Key{Column: schema.FieldName(r.Column)}
	case schema.Mirror:
		if !nf.List {
			nf.Nullable = true
		}
		r.Field = schema.FieldName(r.Field)
		if r.Column != "" {
			r.Column = schema.FieldName(r.Column)
		}
		nf.Rel = r
	case schema.Join:
		if !nf.List {
			return nil, relgraph.Modelf(typ, f.Name, "@type requires a list field")
		}
		if r.HasKeys() {
			r.Keys = [2]string{schema.FieldName(r.Keys[0]), schema.FieldName(r.Keys[1])}
		}
		if schema.TypeName(nf.Name) == nf.Type {
			r.Type = schema.JoinTypeName(typ, nf.Type)
			n.claimed[r.Type] = true
		} else {
			r.Type = schema.JoinTypeName(r.Type)
			n.intents = append(n.intents, &intent{typ: typ, field: nf})
		}
		nf.Rel = r
	}
	return nf, nil
}

// isBaseField reports whether f is an exact server-managed field
// definition, as found in already resolved models.
func isBaseField(f *schema.Field) bool {
	for _, b := range schema.NewBaseFields() {
		if f.Name == b.Name && f.Type == b.Type && !f.Nullable && f.Rel == nil && !f.Unique {
			return true
		}
	}
	return false
}

// unify pairs join intents. Intents sharing a name must be the two
// directions of one relation. Remaining intents over the same pair of
// types, one per direction, are unified to the smaller name.
func (n *normalizer) unify() error {
	var (
		names  []string
		byName = make(map[string][]*intent)
		paired = make(map[*intent]bool)
	)
	for _, i := range n.intents {
		name := joinOf(i).Type
		if _, ok := byName[name]; !ok {
			names = append(names, name)
		}
		byName[name] = append(byName[name], i)
	}
	for _, name := range names {
		is := byName[name]
		switch {
		case len(is) > 2:
			return relgraph.Modelf(is[2].typ, is[2].field.Name, "join type %q is requested by more than two fields", name)
		case len(is) == 2:
			if !opposite(is[0], is[1]) {
				return relgraph.Modelf(is[1].typ, is[1].field.Name, "join type %q is shared with %s.%s, which is not its mirror", name, is[0].typ, is[0].field.Name)
			}
			paired[is[0]], paired[is[1]] = true, true
		}
	}
	var (
		pairs  []string
		byPair = make(map[string][]*intent)
	)
	for _, i := range n.intents {
		if paired[i] {
			continue
		}
		ends := []string{i.typ, i.field.Type}
		sort.Strings(ends)
		key := ends[0] + "." + ends[1]
		if _, ok := byPair[key]; !ok {
			pairs = append(pairs, key)
		}
		byPair[key] = append(byPair[key], i)
	}
	for _, key := range pairs {
		is := byPair[key]
		if len(is) != 2 || !opposite(is[0], is[1]) {
			continue
		}
		a, b := joinOf(is[0]), joinOf(is[1])
		name := min(a.Type, b.Type)
		n.Logger.Debug("unifying join types", "from", max(a.Type, b.Type), "to", name)
		a.Type, b.Type = name, name
		is[0].field.Rel, is[1].field.Rel = a, b
	}
	for _, i := range n.intents {
		n.claimed[joinOf(i).Type] = true
	}
	return nil
}

func joinOf(i *intent) schema.Join {
	j, _ := i.field.Join()
	return j
}

// opposite reports whether a and b point at each other's types.
func opposite(a, b *intent) bool {
	return a.field != b.field && a.typ == b.field.Type && b.typ == a.field.Type
}

func (n *normalizer) checkRefs() error {
	for _, t := range n.out.Types() {
		for _, f := range t.Fields() {
			if !f.Scalar && n.out.Type(f.Type) == nil {
				return relgraph.Modelf(t.Name, f.Name, "undeclared type %q", f.Type)
			}
			if r, ok := f.Ref(); ok && n.out.Type(r.Type) == nil {
				return relgraph.Modelf(t.Name, f.Name, "@ref to undeclared type %q", r.Type)
			}
		}
	}
	return nil
}
