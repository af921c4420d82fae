// Package query compiles GraphQL operations against an expanded schema
// into SQLite statements.
//
// A query compiles to one statement with a single "data" column holding
// the JSON response. Relation fields become correlated subqueries over
// the target table, restricted by the join predicate of the field's
// relation directive; list relations aggregate into arrays. A mutation
// compiles to a list of write statements followed by the same kind of
// read over its Query selections.
//
//	s, err := gen.Build(model)
//	if err != nil {
//	    return err
//	}
//	c := query.New(s)
//	plan, err := c.Compile(`{ users(limit: 10) { name posts { message } } }`, nil)
//
// Identifiers in the produced SQL come from the resolved model only.
// Every value of the document, including limit and offset, is bound as
// a numbered parameter.
package query
