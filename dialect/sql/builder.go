package sql

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/syssam/relgraph/schema"
)

// Ident is a quoted SQL identifier. Idents are built only from the
// resolved model or from compiler-owned names, never from the text of
// an incoming query.
type Ident struct{ name string }

// TableOf returns the table identifier of a model type.
func TableOf(t *schema.Type) Ident { return Ident{t.Name} }

// ColumnOf returns the column identifier of a scalar field.
func ColumnOf(f *schema.Field) Ident { return Ident{f.Name} }

// JoinOf returns the table identifier of a join relation.
func JoinOf(j schema.Join) Ident { return Ident{j.Type} }

// JoinKeyOf returns the i-th key column of a join relation. Key 0
// references the declaring type, key 1 the target type.
func JoinKeyOf(j schema.Join, i int) Ident { return Ident{j.Keys[i]} }

// KeyOf returns the foreign-key column of a key relation.
func KeyOf(k schema.Key) Ident { return Ident{k.Column} }

// MirrorKeyOf returns the foreign-key column of a mirror relation,
// held by the target type.
func MirrorKeyOf(m schema.Mirror) Ident { return Ident{m.Column} }

// IndexOf returns the identifier of the index on column f of t.
func IndexOf(t *schema.Type, f *schema.Field, unique bool) Ident {
	if unique {
		return Ident{t.Name + "_" + f.Name + "_key"}
	}
	return Ident{t.Name + "_" + f.Name}
}

// AliasOf returns the table alias used at a nesting depth.
func AliasOf(depth int) Ident { return Ident{"t" + strconv.Itoa(depth)} }

// Fixed identifiers of compiled statements.
var (
	// ID is the primary-key column of every table.
	ID = Ident{schema.FieldID}
	// CreatedAt and UpdatedAt are the timestamp columns of every table.
	CreatedAt = Ident{schema.FieldCreatedAt}
	UpdatedAt = Ident{schema.FieldUpdatedAt}
	// Data is the single result column of a compiled read.
	Data = Ident{"data"}
	// Derived is the alias of an aggregated derived table.
	Derived = Ident{"t"}
)

// String renders the identifier with embedded quotes doubled.
func (i Ident) String() string {
	return `"` + strings.ReplaceAll(i.name, `"`, `""`) + `"`
}

// Name returns the unquoted identifier.
func (i Ident) Name() string { return i.name }

// Dot renders a column qualified by a table or alias.
func (i Ident) Dot(c Ident) string {
	return i.String() + "." + c.String()
}

// nameRe is the GraphQL Name grammar.
var nameRe = regexp.MustCompile(`^[_A-Za-z][_0-9A-Za-z]*$`)

// Key is a JSON object key rendered as a string literal. Keys come
// from field names and aliases of a validated document, which can only
// be GraphQL names.
type Key struct{ name string }

// KeyOfName returns the key for a GraphQL name, or false if the name
// does not follow the Name grammar.
func KeyOfName(name string) (Key, bool) {
	if !nameRe.MatchString(name) {
		return Key{}, false
	}
	return Key{name}, true
}

// String renders the key as a SQL string literal.
func (k Key) String() string {
	return "'" + k.name + "'"
}

// Ops maps the where-input comparison operators to SQL. "in" is
// rendered as a parameter list and has no entry.
var Ops = map[string]string{
	"eq":   "=",
	"ne":   "!=",
	"gt":   ">",
	"lt":   "<",
	"ge":   ">=",
	"le":   "<=",
	"like": "like",
}

// Directions maps the Order enum values to SQL.
var Directions = map[string]string{
	"asc":  "asc",
	"desc": "desc",
}

// Args is an ordered list of bound parameters.
type Args struct {
	values []any
}

// Add appends v and returns its numbered placeholder.
func (a *Args) Add(v any) string {
	a.values = append(a.values, v)
	return "?" + strconv.Itoa(len(a.values))
}

// List appends every value of vs and returns the comma-joined
// placeholders.
func (a *Args) List(vs []any) string {
	ps := make([]string, len(vs))
	for i, v := range vs {
		ps[i] = a.Add(v)
	}
	return strings.Join(ps, ",")
}

// Len returns the number of bound values.
func (a *Args) Len() int { return len(a.values) }

// Values returns the bound values in placeholder order.
func (a *Args) Values() []any {
	if a.values == nil {
		return []any{}
	}
	return a.values
}

// Statement is a SQL text and its bound parameters.
type Statement struct {
	SQL  string `json:"sql"`
	Args []any  `json:"args"`
}

// NewStatement returns a statement binding the values of args.
func NewStatement(sql string, args *Args) Statement {
	return Statement{SQL: sql, Args: args.Values()}
}
