// Package schema provides the type graph that models are normalized,
// resolved and expanded over.
//
// A [Graph] is an ordered set of [Type] values. Every type holds an ordered
// set of [Field] values, and every field carries at most one [Relation]
// describing how it is navigated in SQL:
//
//   - [Ref]: a scalar foreign-key column referencing another type.
//   - [Key]: an object field resolved through a local foreign-key column.
//   - [Mirror]: an object field resolved through the referenced type's
//     foreign-key column pointing back at this row.
//   - [Join]: a list field resolved through a synthesized join type.
//
// # Quick Start
//
// Parse a model, inspect it and print it back:
//
//	g, err := schema.Parse(`
//	    type User {
//	        name: String!
//	        posts: [Post!]!
//	    }
//	    type Post {
//	        message: String!
//	    }
//	`)
//	if err != nil {
//	    return err
//	}
//	posts := g.Type("User").Field("posts")
//	fmt.Println(posts.List, posts.Type) // true Post
//	out, err := schema.Print(g)
//
// # Naming
//
// Type names are singular PascalCase, field names are camelCase and plural
// iff the field is a list. [TypeName], [FieldName], [ListFieldName],
// [KeyFieldName] and [JoinTypeName] implement these conventions and are
// shared by the normalizer, the resolver and the expander.
package schema
