// Package sql is the SQLite layer of relgraph.
//
// It has two halves. The builder half holds the primitives compiled
// statements are made of: Ident, a quoted identifier that can only be
// derived from the resolved model, and Args, the ordered list of bound
// parameters rendered as ?N placeholders. Values taken from a query
// document never reach statement text.
//
// The driver half wraps database/sql behind the dialect.Driver
// interface and runs statements against modernc.org/sqlite:
//
//	drv, err := sql.Open(dialect.SQLite, "file:app.db")
//	if err != nil {
//	    return err
//	}
//	data, err := sql.QueryJSON(ctx, drv, plan.Read)
//
// StatsDriver and DebugDriver decorate a driver with statement counters
// and slog logging. The Is*ConstraintError helpers classify SQLite
// constraint failures.
package sql
