package query

import (
	"fmt"
	"slices"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/syssam/relgraph"
	"github.com/syssam/relgraph/dialect/sql"
	"github.com/syssam/relgraph/schema"
)

// mutation compiles the writes of every mutation field, then a read of
// their Query selections keyed by response key.
func (c *compilation) mutation(set ast.SelectionSet) (sql.Statement, error) {
	fields, err := c.collect([]ast.SelectionSet{set})
	if err != nil {
		return sql.Statement{}, err
	}
	parts := make([]string, 0, 2*len(fields))
	for _, s := range fields {
		key, ok := sql.KeyOfName(s.key)
		if !ok {
			return sql.Statement{}, relgraph.Compilef("Mutation", s.key, "invalid response key")
		}
		if s.field.Name == typename {
			parts = append(parts, key.String(), c.args.Add("Mutation"))
			continue
		}
		if err := c.apply(s.field); err != nil {
			return sql.Statement{}, err
		}
		obj, err := c.root("Query", s.sets)
		if err != nil {
			return sql.Statement{}, err
		}
		parts = append(parts, key.String(), obj)
	}
	return c.read("jsonb_object(" + strings.Join(parts, ",") + ")"), nil
}

// apply compiles the data argument of one mutation field.
func (c *compilation) apply(f *ast.Field) error {
	if f.Name == "read" {
		return nil
	}
	data, err := c.objectArg(f, "data")
	if err != nil {
		return err
	}
	for _, m := range data {
		r, ok := c.roots[m.name]
		if !ok {
			return relgraph.Compilef("Mutation", f.Name, "unknown data field %s", m.name)
		}
		items, ok := objects(m.value)
		if !ok {
			return relgraph.Compilef(r.typ.Name, m.name, "data is not an input object")
		}
		for _, item := range items {
			switch f.Name {
			case "create":
				_, err = c.create(r.typ, item, nil)
			case "update":
				_, err = c.update(r.typ, item, nil)
			case "delete":
				err = c.delete(r.typ, item)
			default:
				err = relgraph.Compilef("Mutation", f.Name, "unknown mutation")
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// assign is a foreign-key column set on a nested row.
type assign struct {
	col sql.Ident
	id  string
}

// row is an ordered column list of an insert or update.
type row struct {
	cols []sql.Ident
	vals []any
}

func (r *row) set(col sql.Ident, v any) {
	if i := slices.Index(r.cols, col); i >= 0 {
		r.vals[i] = v
		return
	}
	r.cols = append(r.cols, col)
	r.vals = append(r.vals, v)
}

// nested is a relation write deferred until the parent row exists.
type nested struct {
	field *schema.Field
	items []object
}

// scalar adds a scalar data member to r.
func scalar(t *schema.Type, r *row, f *schema.Field, v any) error {
	if _, ok := f.Ref(); ok || schema.IsBaseField(f.Name) {
		return relgraph.Compilef(t.Name, f.Name, "field is not writable")
	}
	p, err := param(f, v)
	if err != nil {
		return err
	}
	r.set(sql.ColumnOf(f), p)
	return nil
}

// relations splits the relation members of data. To-one key relations
// are written first by write, which returns the id to store in the
// parent column; the rest are returned for after the parent is written.
func (c *compilation) relations(t *schema.Type, data object, r *row, write func(*schema.Type, object) (string, error)) ([]nested, error) {
	var after []nested
	for _, m := range data {
		f := t.Field(m.name)
		if f == nil {
			return nil, relgraph.Compilef(t.Name, m.name, "unknown data field")
		}
		if f.Scalar || m.value == nil {
			continue
		}
		items, ok := objects(m.value)
		if !ok {
			return nil, relgraph.Compilef(t.Name, f.Name, "data is not an input object")
		}
		k, ok := f.Key()
		if !ok {
			after = append(after, nested{field: f, items: items})
			continue
		}
		for _, item := range items {
			id, err := write(c.schema.Type(f.Type), item)
			if err != nil {
				return nil, err
			}
			r.set(sql.KeyOf(k), id)
		}
	}
	return after, nil
}

// create inserts a row of t and its nested rows, returning the new id.
func (c *compilation) create(t *schema.Type, data object, link *assign) (string, error) {
	id := c.newID()
	r := &row{}
	r.set(sql.ID, id)
	r.set(sql.CreatedAt, c.stamp)
	r.set(sql.UpdatedAt, c.stamp)
	for _, m := range data {
		if f := t.Field(m.name); f != nil && f.Scalar {
			if err := scalar(t, r, f, m.value); err != nil {
				return "", err
			}
		}
	}
	after, err := c.relations(t, data, r, func(t *schema.Type, o object) (string, error) {
		return c.create(t, o, nil)
	})
	if err != nil {
		return "", err
	}
	if link != nil {
		r.set(link.col, link.id)
	}
	var args sql.Args
	vals := make([]string, len(r.cols))
	cols := make([]string, len(r.cols))
	for i, col := range r.cols {
		cols[i] = col.String()
		vals[i] = args.Add(r.vals[i])
	}
	c.emit("insert into "+sql.TableOf(t).String()+" ("+strings.Join(cols, ",")+") values ("+strings.Join(vals, ",")+")", &args)
	err = c.nested(id, after, func(t *schema.Type, o object, link *assign) (string, error) {
		return c.create(t, o, link)
	})
	return id, err
}

// update updates the row of t identified by data's id and links its
// nested rows, returning the id.
func (c *compilation) update(t *schema.Type, data object, link *assign) (string, error) {
	id, err := rowID(t, data)
	if err != nil {
		return "", err
	}
	r := &row{}
	r.set(sql.UpdatedAt, c.stamp)
	for _, m := range data {
		if m.name == schema.FieldID {
			continue
		}
		if f := t.Field(m.name); f != nil && f.Scalar {
			if err := scalar(t, r, f, m.value); err != nil {
				return "", err
			}
		}
	}
	after, err := c.relations(t, data, r, func(t *schema.Type, o object) (string, error) {
		return c.update(t, o, nil)
	})
	if err != nil {
		return "", err
	}
	if link != nil {
		r.set(link.col, link.id)
	}
	var args sql.Args
	sets := make([]string, len(r.cols))
	for i, col := range r.cols {
		sets[i] = col.String() + " = " + args.Add(r.vals[i])
	}
	c.emit("update "+sql.TableOf(t).String()+" set "+strings.Join(sets, ", ")+" where "+sql.ID.String()+" = "+args.Add(id), &args)
	err = c.nested(id, after, func(t *schema.Type, o object, link *assign) (string, error) {
		return c.update(t, o, link)
	})
	return id, err
}

// nested writes deferred relations of the row id: mirror relations
// set the child's column, join relations add a join row.
func (c *compilation) nested(id string, after []nested, write func(*schema.Type, object, *assign) (string, error)) error {
	for _, n := range after {
		target := c.schema.Type(n.field.Type)
		switch rel := n.field.Rel.(type) {
		case schema.Mirror:
			for _, item := range n.items {
				if _, err := write(target, item, &assign{col: sql.MirrorKeyOf(rel), id: id}); err != nil {
					return err
				}
			}
		case schema.Join:
			for _, item := range n.items {
				other, err := write(target, item, nil)
				if err != nil {
					return err
				}
				c.link(rel, id, other)
			}
		default:
			return relgraph.Compilef(n.field.Type, n.field.Name, "relation is not resolved")
		}
	}
	return nil
}

// link inserts the join row of rel between own and other unless it
// exists.
func (c *compilation) link(rel schema.Join, own, other string) {
	j := sql.JoinOf(rel)
	k0, k1 := sql.JoinKeyOf(rel, 0).String(), sql.JoinKeyOf(rel, 1).String()
	var args sql.Args
	id, created, updated := args.Add(c.newID()), args.Add(c.stamp), args.Add(c.stamp)
	a, b := args.Add(own), args.Add(other)
	c.emit(fmt.Sprintf("insert into %s (%s,%s,%s,%s,%s) select %s,%s,%s,%s,%s where not exists (select 1 from %s where %s = %s and %s = %s)",
		j, sql.ID, sql.CreatedAt, sql.UpdatedAt, k0, k1,
		id, created, updated, a, b,
		j, k0, a, k1, b,
	), &args)
}

// delete removes the nested rows named in data, the join rows
// referencing the row, then the row itself.
func (c *compilation) delete(t *schema.Type, data object) error {
	id, err := rowID(t, data)
	if err != nil {
		return err
	}
	for _, m := range data {
		if m.name == schema.FieldID {
			continue
		}
		f := t.Field(m.name)
		if f == nil || f.Scalar {
			return relgraph.Compilef(t.Name, m.name, "unknown delete field")
		}
		items, ok := objects(m.value)
		if !ok {
			return relgraph.Compilef(t.Name, f.Name, "data is not an input object")
		}
		for _, item := range items {
			if err := c.delete(c.schema.Type(f.Type), item); err != nil {
				return err
			}
		}
	}
	seen := make(map[string]bool)
	for _, f := range t.Fields() {
		rel, ok := f.Join()
		if !ok {
			continue
		}
		var args sql.Args
		query := "delete from " + sql.JoinOf(rel).String() + " where " + sql.JoinKeyOf(rel, 0).String() + " = " + args.Add(id)
		if seen[query] {
			continue
		}
		seen[query] = true
		c.emit(query, &args)
	}
	var args sql.Args
	c.emit("delete from "+sql.TableOf(t).String()+" where "+sql.ID.String()+" = "+args.Add(id), &args)
	return nil
}

// rowID returns the id member of update and delete data.
func rowID(t *schema.Type, data object) (string, error) {
	v, _ := data.get(schema.FieldID)
	id, ok := v.(string)
	if !ok || id == "" {
		return "", relgraph.Compilef(t.Name, schema.FieldID, "id is required")
	}
	return id, nil
}

func (c *compilation) emit(query string, args *sql.Args) {
	c.writes = append(c.writes, sql.NewStatement(query, args))
}
