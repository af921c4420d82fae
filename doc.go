// Package relgraph holds the error kinds shared by the relgraph
// packages.
//
// relgraph turns a model of GraphQL object types into a SQLite backed
// GraphQL surface. The pipeline runs in four stages:
//
//   - compiler/load normalizes names, drops reserved ones and adds the
//     id, createdAt and updatedAt fields to every type.
//   - compiler/resolve makes every relation explicit: foreign keys,
//     their mirrors and join types for many-to-many fields.
//   - compiler/gen expands the resolved model into the Query and
//     Mutation schema with where, order and data inputs.
//   - compiler/query compiles one operation into a single SQL statement
//     returning the JSON response, preceded by writes for mutations.
//
// Package client runs compiled operations against a database, and
// dialect/sql/schema migrates a database to a model.
//
// Failures are reported as one of four kinds, each matching a sentinel
// with errors.Is:
//
//	ModelError       ErrInvalidModel   the model cannot be built
//	ValidationError  ErrValidation     a document fails validation
//	CompileError     ErrCompile        a valid document cannot be lowered
//	ConfigError      ErrInvalidConfig  an option or setting is invalid
package relgraph
