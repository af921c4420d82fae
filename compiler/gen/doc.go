// Package gen expands a resolved model into the full GraphQL surface
// served by the query compiler.
//
// # Pipeline
//
// Build runs the three stages of schema construction:
//
//	model SDL
//	    ↓ load.Normalize      canonical names, join intents
//	    ↓ resolve.Resolve     FK columns, mirrors, join types
//	    ↓ gen.Expand          Query, Mutation and input types
//	*gen.Schema
//
// # Surface
//
// For every non-join type T the expanded schema declares:
//
//   - Query accessors t(where, order, offset): T and
//     ts(where, order, limit, offset): [T!]!
//   - CreateDataT, UpdateDataT and DeleteDataT inputs nesting through
//     relations, plus entries in CreateData, UpdateData and DeleteData
//   - WhereT with one scalar filter per column and and/or/not
//   - OrderT with one Order value per column
//
// Object types keep their relation directives. List relations accept
// where, order, limit and offset; to-one relations accept where.
// Every scalar kind S gets a WhereS input with the comparison operators
// allowed for it.
//
// # Configuration
//
//	s, err := gen.Build(model,
//	    gen.WithLogger(logger),
//	    gen.WithStrictNames(),
//	)
//
// The returned Schema is read-only and safe for concurrent use.
package gen
