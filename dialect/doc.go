// Package dialect defines the storage abstraction used by relgraph.
//
// Compiled statements target SQLite only. The interfaces below let the
// client and the migrator run them against a plain connection, a
// transaction or an instrumented wrapper alike:
//
//	type Driver interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	    Tx(ctx context.Context) (Tx, error)
//	    Close() error
//	    Dialect() string
//	}
//
// The Tx interface extends ExecQuerier with Commit and Rollback.
//
// # Sub-packages
//
//   - dialect/sql: identifiers, bound parameters and the database/sql driver
//   - dialect/sql/schema: DDL generation and additive migrations
package dialect
