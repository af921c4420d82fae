package query

import (
	"strings"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/syssam/relgraph"
	"github.com/syssam/relgraph/dialect/sql"
	"github.com/syssam/relgraph/schema"
)

const typename = "__typename"

// selected is a response key with the merged selection sets of every
// field selected under it.
type selected struct {
	key   string
	field *ast.Field
	sets  []ast.SelectionSet
}

// collect flattens fragments and merges fields by response key, in
// first-seen order.
func (c *compilation) collect(sets []ast.SelectionSet) ([]*selected, error) {
	var (
		out   []*selected
		index = make(map[string]*selected)
		walk  func(ast.SelectionSet) error
	)
	walk = func(set ast.SelectionSet) error {
		for _, sel := range set {
			switch sel := sel.(type) {
			case *ast.Field:
				ok, err := c.included(sel.Directives)
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
				key := sel.Alias
				if key == "" {
					key = sel.Name
				}
				if s, ok := index[key]; ok {
					s.sets = append(s.sets, sel.SelectionSet)
					continue
				}
				s := &selected{key: key, field: sel, sets: []ast.SelectionSet{sel.SelectionSet}}
				index[key] = s
				out = append(out, s)
			case *ast.InlineFragment:
				ok, err := c.included(sel.Directives)
				if err != nil {
					return err
				}
				if ok {
					if err := walk(sel.SelectionSet); err != nil {
						return err
					}
				}
			case *ast.FragmentSpread:
				ok, err := c.included(sel.Directives)
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
				def := sel.Definition
				if def == nil {
					def = c.doc.Fragments.ForName(sel.Name)
				}
				if def == nil {
					return relgraph.Compilef("", "", "unknown fragment %s", sel.Name)
				}
				if err := walk(def.SelectionSet); err != nil {
					return err
				}
			}
		}
		return nil
	}
	for _, set := range sets {
		if err := walk(set); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// included evaluates the @skip and @include directives.
func (c *compilation) included(ds ast.DirectiveList) (bool, error) {
	for _, name := range [...]string{"skip", "include"} {
		d := ds.ForName(name)
		if d == nil {
			continue
		}
		a := d.Arguments.ForName("if")
		if a == nil {
			continue
		}
		v, err := c.decode(a.Value)
		if err != nil {
			return false, err
		}
		if b, _ := v.(bool); b != (name == "include") {
			return false, nil
		}
	}
	return true, nil
}

// query compiles a query operation.
func (c *compilation) query(set ast.SelectionSet) (sql.Statement, error) {
	obj, err := c.root("Query", []ast.SelectionSet{set})
	if err != nil {
		return sql.Statement{}, err
	}
	return c.read(obj), nil
}

// read wraps the root object in the final select.
func (c *compilation) read(obj string) sql.Statement {
	return sql.NewStatement("select json("+obj+") as "+sql.Data.String(), &c.args)
}

// root renders an object over the Query accessors.
func (c *compilation) root(name string, sets []ast.SelectionSet) (string, error) {
	fields, err := c.collect(sets)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, 2*len(fields))
	for _, s := range fields {
		key, ok := sql.KeyOfName(s.key)
		if !ok {
			return "", relgraph.Compilef(name, s.key, "invalid response key")
		}
		var expr string
		switch f := s.field.Name; {
		case f == typename:
			expr = c.args.Add(name)
		case strings.HasPrefix(f, "__"):
			return "", relgraph.Compilef(name, f, "introspection is not supported")
		default:
			r, ok := c.roots[f]
			if !ok {
				return "", relgraph.Compilef(name, f, "unknown field")
			}
			if expr, err = c.relation(r.typ, r.list, s, 1, ""); err != nil {
				return "", err
			}
		}
		parts = append(parts, key.String(), expr)
	}
	return "jsonb_object(" + strings.Join(parts, ",") + ")", nil
}

// object renders the selected fields of a row of t.
func (c *compilation) object(t *schema.Type, alias sql.Ident, depth int, sets []ast.SelectionSet) (string, error) {
	fields, err := c.collect(sets)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, 2*len(fields))
	for _, s := range fields {
		key, ok := sql.KeyOfName(s.key)
		if !ok {
			return "", relgraph.Compilef(t.Name, s.key, "invalid response key")
		}
		var expr string
		if s.field.Name == typename {
			expr = c.args.Add(t.Name)
		} else {
			f := t.Field(s.field.Name)
			if f == nil {
				return "", relgraph.Compilef(t.Name, s.field.Name, "unknown field")
			}
			if f.Scalar {
				expr = leaf(alias, f)
			} else if expr, err = c.edge(t, alias, f, s, depth); err != nil {
				return "", err
			}
		}
		parts = append(parts, key.String(), expr)
	}
	return "jsonb_object(" + strings.Join(parts, ",") + ")", nil
}

// leaf renders a scalar column as a JSON value.
func leaf(alias sql.Ident, f *schema.Field) string {
	col := alias.Dot(sql.ColumnOf(f))
	switch f.Type {
	case schema.Date:
		return "jsonb_array(0," + col + ")"
	case schema.JSON:
		return "json(" + col + ")"
	case schema.Boolean:
		return "jsonb(case when " + col + " is null then 'null' when " + col + " then 'true' else 'false' end)"
	default:
		return col
	}
}

// edge renders a relation field of t correlated with the parent row.
func (c *compilation) edge(t *schema.Type, parent sql.Ident, f *schema.Field, s *selected, depth int) (string, error) {
	target := c.schema.Type(f.Type)
	if target == nil {
		return "", relgraph.Compilef(t.Name, f.Name, "unknown type %s", f.Type)
	}
	alias := sql.AliasOf(depth + 1)
	var link string
	switch rel := f.Rel.(type) {
	case schema.Join:
		j := sql.JoinOf(rel)
		own, other := j.Dot(sql.JoinKeyOf(rel, 0)), j.Dot(sql.JoinKeyOf(rel, 1))
		link = alias.Dot(sql.ID) + " in (select " + other + " from " + j.String() +
			" where " + other + " is not null and " + own + " = " + parent.Dot(sql.ID) + ")"
	case schema.Mirror:
		link = alias.Dot(sql.MirrorKeyOf(rel)) + " = " + parent.Dot(sql.ID)
	case schema.Key:
		link = alias.Dot(sql.ID) + " = " + parent.Dot(sql.KeyOf(rel))
	default:
		return "", relgraph.Compilef(t.Name, f.Name, "relation is not resolved")
	}
	return c.relation(target, f.List, s, depth+1, link)
}

// relation renders a subquery over t at depth. To-one subqueries
// select a single object; list subqueries aggregate into an array.
func (c *compilation) relation(t *schema.Type, list bool, s *selected, depth int, link string) (string, error) {
	alias := sql.AliasOf(depth)
	obj, err := c.object(t, alias, depth, s.sets)
	if err != nil {
		return "", err
	}
	var preds []string
	if link != "" {
		preds = append(preds, link)
	}
	w, err := c.objectArg(s.field, "where")
	if err != nil {
		return "", err
	}
	pred, err := c.where(t, alias, w)
	if err != nil {
		return "", err
	}
	if pred != "" {
		preds = append(preds, pred)
	}
	o, err := c.objectArg(s.field, "order")
	if err != nil {
		return "", err
	}
	order, err := orderBy(t, alias, o)
	if err != nil {
		return "", err
	}
	limit, hasLimit, err := c.intArg(s.field, "limit")
	if err != nil {
		return "", err
	}
	offset, hasOffset, err := c.intArg(s.field, "offset")
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("select " + obj + " as " + sql.Data.String() + " from " + sql.TableOf(t).String() + " as " + alias.String())
	if len(preds) > 0 {
		b.WriteString(" where " + strings.Join(preds, " and "))
	}
	if order != "" {
		b.WriteString(" order by " + order)
	}
	switch {
	case !list:
		b.WriteString(" limit 1")
	case hasLimit:
		b.WriteString(" limit " + c.args.Add(limit))
	case hasOffset:
		b.WriteString(" limit -1")
	}
	if hasOffset {
		b.WriteString(" offset " + c.args.Add(offset))
	}
	if !list {
		return "(" + b.String() + ")", nil
	}
	return "coalesce((select jsonb_group_array(" + sql.Data.String() + ") from (" + b.String() + ") as " + sql.Derived.String() + "),jsonb_array())", nil
}

// where renders a Where<Type> input as a parenthesized predicate, or
// the empty string when it constrains nothing. Field comparisons and
// not/and subtrees form a conjunction; or adds a disjunct.
func (c *compilation) where(t *schema.Type, alias sql.Ident, w object) (string, error) {
	if w == nil {
		return "", nil
	}
	var (
		preds        []string
		not, and, or object
	)
	for _, m := range w {
		switch m.name {
		case "not", "and", "or":
			if m.value == nil {
				continue
			}
			sub, ok := m.value.(object)
			if !ok {
				return "", relgraph.Compilef(t.Name, m.name, "operand is not an input object")
			}
			switch m.name {
			case "not":
				not = sub
			case "and":
				and = sub
			default:
				or = sub
			}
			continue
		}
		f := t.Field(m.name)
		if f == nil || !f.Scalar {
			return "", relgraph.Compilef(t.Name, m.name, "unknown where field")
		}
		if m.value == nil {
			continue
		}
		ops, ok := m.value.(object)
		if !ok {
			return "", relgraph.Compilef(t.Name, m.name, "comparison is not an input object")
		}
		col := alias.Dot(sql.ColumnOf(f))
		for _, op := range ops {
			if op.value == nil {
				switch op.name {
				case "eq":
					preds = append(preds, col+" is null")
				case "ne":
					preds = append(preds, col+" is not null")
				}
				continue
			}
			switch op.name {
			case "in":
				vs, ok := op.value.([]any)
				if !ok {
					vs = []any{op.value}
				}
				ps := make([]any, len(vs))
				for i, v := range vs {
					p, err := param(f, v)
					if err != nil {
						return "", err
					}
					ps[i] = p
				}
				preds = append(preds, col+" in ("+c.args.List(ps)+")")
			case "like":
				preds = append(preds, col+" like "+c.args.Add(op.value))
			default:
				sqlop, ok := sql.Ops[op.name]
				if !ok {
					return "", relgraph.Compilef(t.Name, m.name, "unknown operator %s", op.name)
				}
				p, err := param(f, op.value)
				if err != nil {
					return "", err
				}
				preds = append(preds, col+" "+sqlop+" "+c.args.Add(p))
			}
		}
	}
	sub, err := c.where(t, alias, not)
	if err != nil {
		return "", err
	}
	if sub != "" {
		preds = append(preds, "not "+sub)
	}
	if sub, err = c.where(t, alias, and); err != nil {
		return "", err
	}
	if sub != "" {
		preds = append(preds, sub)
	}
	if len(preds) > 0 {
		preds = []string{strings.Join(preds, " and ")}
	}
	if sub, err = c.where(t, alias, or); err != nil {
		return "", err
	}
	if sub != "" {
		preds = append(preds, sub)
	}
	if len(preds) == 0 {
		return "", nil
	}
	return "(" + strings.Join(preds, " or ") + ")", nil
}

// orderBy renders an Order<Type> input in member order.
func orderBy(t *schema.Type, alias sql.Ident, o object) (string, error) {
	var terms []string
	for _, m := range o {
		f := t.Field(m.name)
		if f == nil || !f.Scalar {
			return "", relgraph.Compilef(t.Name, m.name, "unknown order field")
		}
		if m.value == nil {
			continue
		}
		v, _ := m.value.(string)
		dir, ok := sql.Directions[v]
		if !ok {
			return "", relgraph.Compilef(t.Name, m.name, "unknown order direction %v", m.value)
		}
		terms = append(terms, alias.Dot(sql.ColumnOf(f))+" "+dir)
	}
	return strings.Join(terms, ","), nil
}
