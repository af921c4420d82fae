// Package schema derives SQLite tables from a resolved model and
// migrates a database to them additively.
package schema

import (
	"strings"

	"github.com/syssam/relgraph/dialect/sql"
	model "github.com/syssam/relgraph/schema"
)

// Table is the storage layout of one model type.
type Table struct {
	Name       string
	Columns    []*Column
	PrimaryKey []*Column
	Indexes    []*Index
	ident      sql.Ident
}

// Column is a table column.
type Column struct {
	Name     string
	Type     string
	Nullable bool
	Unique   bool
	ident    sql.Ident
}

// Index is a single-column index. Unique columns and foreign-key
// columns are indexed.
type Index struct {
	Name    string
	Unique  bool
	Columns []*Column
	ident   sql.Ident
}

// Column returns the named column, or nil.
func (t *Table) Column(name string) *Column {
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Index returns the named index, or nil.
func (t *Table) Index(name string) *Index {
	for _, idx := range t.Indexes {
		if idx.Name == name {
			return idx
		}
	}
	return nil
}

// Tables derives the tables of a resolved graph, one per type, in graph
// order. Relation fields have no column; their foreign keys are the
// @ref scalars.
func Tables(g *model.Graph) []*Table {
	tables := make([]*Table, 0, len(g.Types()))
	for _, t := range g.Types() {
		tables = append(tables, NewTable(t))
	}
	return tables
}

// NewTable derives the table of a model type.
func NewTable(t *model.Type) *Table {
	tb := &Table{Name: t.Name, ident: sql.TableOf(t)}
	for _, f := range t.Fields() {
		if !f.Scalar {
			continue
		}
		c := &Column{
			Name:     f.Name,
			Type:     model.Affinity[f.Type],
			Nullable: f.Nullable,
			Unique:   f.Unique,
			ident:    sql.ColumnOf(f),
		}
		tb.Columns = append(tb.Columns, c)
		if f.Name == model.FieldID {
			tb.PrimaryKey = []*Column{c}
			continue
		}
		_, ref := f.Ref()
		if f.Unique || ref {
			ident := sql.IndexOf(t, f, f.Unique)
			tb.Indexes = append(tb.Indexes, &Index{Name: ident.Name(), Unique: f.Unique, Columns: []*Column{c}, ident: ident})
		}
	}
	return tb
}

// definition renders the column clause of create table and add column.
func (c *Column) definition(pk bool) string {
	var b strings.Builder
	b.WriteString(c.ident.String())
	b.WriteString(" " + c.Type)
	if pk {
		b.WriteString(" primary key")
	}
	if !c.Nullable {
		b.WriteString(" not null")
	}
	return b.String()
}

// CreateTable renders the create table statement of t.
func (t *Table) CreateTable() string {
	defs := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		defs[i] = c.definition(len(t.PrimaryKey) == 1 && t.PrimaryKey[0] == c)
	}
	return "create table if not exists " + t.ident.String() + " (" + strings.Join(defs, ", ") + ")"
}

// AddColumn renders the statement adding c to t.
func (t *Table) AddColumn(c *Column) string {
	return "alter table " + t.ident.String() + " add column " + c.definition(false)
}

// CreateIndex renders the create index statement of idx.
func (t *Table) CreateIndex(idx *Index) string {
	cols := make([]string, len(idx.Columns))
	for i, c := range idx.Columns {
		cols[i] = c.ident.String()
	}
	kind := "index"
	if idx.Unique {
		kind = "unique index"
	}
	return "create " + kind + " if not exists " + idx.ident.String() + " on " + t.ident.String() + " (" + strings.Join(cols, ", ") + ")"
}

// DropIndex renders the statement dropping idx.
func (t *Table) DropIndex(idx *Index) string {
	return "drop index if exists " + idx.ident.String()
}

// DDL renders the statements creating t and its indexes.
func (t *Table) DDL() []string {
	stmts := []string{t.CreateTable()}
	for _, idx := range t.Indexes {
		stmts = append(stmts, t.CreateIndex(idx))
	}
	return stmts
}
