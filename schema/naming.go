package schema

import (
	"regexp"
	"sort"
	"strings"

	"github.com/go-openapi/inflect"
)

var (
	rules      = ruleset()
	trailingID = regexp.MustCompile(`(Id)*$`)
)

var latinPlurals = []string{
	"addend", "agend", "bacteri", "candelabr", "curricul", "dat",
	"desiderat", "errat", "extrem", "millenni", "ov", "quor", "strat", "symposi",
}

func ruleset() *inflect.Ruleset {
	rules := inflect.NewDefaultRuleset()
	// Words already singular but ending in "s".
	for _, w := range []string{"ss", "us", "is"} {
		rules.AddSingular(w, w)
	}
	// Plurals in -a are singularized to -um only for known Latin words,
	// so meta, quota and media keep their names.
	rules.AddSingular("a", "a")
	for _, w := range latinPlurals {
		rules.AddSingular(w+"a", w+"um")
	}
	return rules
}

// TypeName returns the canonical type name of name: singular PascalCase,
// or the scalar kind it spells in any casing.
func TypeName(name string) string {
	name = pascal(rules.Singularize(name))
	if upper := strings.ToUpper(name); IsScalar(upper) {
		return upper
	}
	return name
}

// FieldName returns the canonical name of a to-one or scalar field.
func FieldName(name string) string {
	return camel(rules.Singularize(name))
}

// ListFieldName returns the canonical name of a list field.
func ListFieldName(name string) string {
	return camel(rules.Pluralize(FieldName(name)))
}

// KeyFieldName returns the foreign-key column name for name,
// ending in exactly one "Id".
func KeyFieldName(name string) string {
	return trailingID.ReplaceAllString(FieldName(name), "Id")
}

// JoinTypeName returns the join type name of two types: the canonical
// names sorted and joined with "To". With a single argument it returns
// the canonical form of an existing join type name.
func JoinTypeName(name string, other ...string) string {
	if len(other) > 0 {
		names := []string{TypeName(name), TypeName(other[0])}
		sort.Strings(names)
		return strings.Join(names, "To")
	}
	name = TypeName(name)
	if parts := strings.Split(name, "To"); len(parts) == 2 && parts[0] != "" && parts[1] != "" {
		return JoinTypeName(parts[0], parts[1])
	}
	return name
}

func pascal(s string) string {
	if s == "" {
		return s
	}
	return inflect.Camelize(s)
}

func camel(s string) string {
	if s == "" {
		return s
	}
	return inflect.CamelizeDownFirst(s)
}
