package query

import (
	"bytes"
	"encoding/json"
	"maps"
	"math"
	"reflect"
	"slices"
	"time"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/syssam/relgraph"
	"github.com/syssam/relgraph/schema"
)

// object is a decoded input object. Members keep source order for
// literals and sorted key order for variables, so predicate and
// order-by lists are deterministic.
type object []member

type member struct {
	name  string
	value any
}

// get returns the value of the named member.
func (o object) get(name string) (any, bool) {
	for _, m := range o {
		if m.name == name {
			return m.value, true
		}
	}
	return nil, false
}

// MarshalJSON encodes the object with its members in order.
func (o object) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, m := range o {
		if i > 0 {
			b.WriteByte(',')
		}
		k, err := json.Marshal(m.name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(m.value)
		if err != nil {
			return nil, err
		}
		b.Write(k)
		b.WriteByte(':')
		b.Write(v)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// arg decodes the named argument of f, or returns nil if absent.
func (c *compilation) arg(f *ast.Field, name string) (any, error) {
	a := f.Arguments.ForName(name)
	if a == nil {
		return nil, nil
	}
	return c.decode(a.Value)
}

// objectArg decodes the named argument of f as an input object.
func (c *compilation) objectArg(f *ast.Field, name string) (object, error) {
	v, err := c.arg(f, name)
	if err != nil || v == nil {
		return nil, err
	}
	o, ok := v.(object)
	if !ok {
		return nil, relgraph.Compilef("", f.Name, "argument %s is not an input object", name)
	}
	return o, nil
}

// intArg decodes the named argument of f as an integer.
func (c *compilation) intArg(f *ast.Field, name string) (int64, bool, error) {
	v, err := c.arg(f, name)
	if err != nil || v == nil {
		return 0, false, err
	}
	n, ok := integer(v)
	if !ok {
		return 0, false, relgraph.Compilef("", f.Name, "argument %s is not an integer", name)
	}
	return n, true, nil
}

// decode converts a document value to Go, resolving variables.
func (c *compilation) decode(v *ast.Value) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch v.Kind {
	case ast.Variable:
		return fromVariable(c.vars[v.Raw]), nil
	case ast.ObjectValue:
		o := make(object, 0, len(v.Children))
		for _, ch := range v.Children {
			x, err := c.decode(ch.Value)
			if err != nil {
				return nil, err
			}
			o = append(o, member{name: ch.Name, value: x})
		}
		return o, nil
	case ast.ListValue:
		l := make([]any, 0, len(v.Children))
		for _, ch := range v.Children {
			x, err := c.decode(ch.Value)
			if err != nil {
				return nil, err
			}
			l = append(l, x)
		}
		return l, nil
	default:
		x, err := v.Value(nil)
		if err != nil {
			return nil, relgraph.Compilef("", "", "decode value %s: %v", v, err)
		}
		return x, nil
	}
}

// fromVariable converts a coerced variable value, turning maps into
// objects with sorted members.
func fromVariable(x any) any {
	switch x := x.(type) {
	case nil, string, bool, int64, float64:
		return x
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		f, _ := x.Float64()
		return f
	case map[string]any:
		o := make(object, 0, len(x))
		for _, k := range slices.Sorted(maps.Keys(x)) {
			o = append(o, member{name: k, value: fromVariable(x[k])})
		}
		return o
	case []any:
		l := make([]any, len(x))
		for i, e := range x {
			l[i] = fromVariable(e)
		}
		return l
	}
	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return x
		}
		l := make([]any, rv.Len())
		for i := range l {
			l[i] = fromVariable(rv.Index(i).Interface())
		}
		return l
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return x
		}
		keys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			keys = append(keys, k.String())
		}
		slices.Sort(keys)
		o := make(object, 0, len(keys))
		for _, k := range keys {
			o = append(o, member{name: k, value: fromVariable(rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key())).Interface())})
		}
		return o
	}
	return x
}

// objects returns the input objects of a to-one or list data value.
func objects(v any) ([]object, bool) {
	switch v := v.(type) {
	case nil:
		return nil, true
	case object:
		return []object{v}, true
	case []any:
		objs := make([]object, 0, len(v))
		for _, e := range v {
			switch e := e.(type) {
			case nil:
			case object:
				objs = append(objs, e)
			default:
				return nil, false
			}
		}
		return objs, true
	}
	return nil, false
}

// integer converts a numeric value to int64 when it is integral.
func integer(v any) (int64, bool) {
	switch v := v.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			return int64(v), true
		}
	case string:
		if i, err := json.Number(v).Int64(); err == nil {
			return i, true
		}
	}
	return 0, false
}

// param converts a value to the bound parameter stored in a column of
// f's scalar kind.
func param(f *schema.Field, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch f.Type {
	case schema.JSON:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, relgraph.Compilef("", f.Name, "encode JSON value: %v", err)
		}
		return string(b), nil
	case schema.Int:
		if n, ok := integer(v); ok {
			return n, nil
		}
	case schema.Date:
		if t, ok := v.(time.Time); ok {
			return t.UTC().Format(TimeFormat), nil
		}
	}
	switch v.(type) {
	case object, []any:
		return nil, relgraph.Compilef("", f.Name, "%s value must be a scalar", f.Type)
	}
	return v, nil
}
