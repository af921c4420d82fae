package sql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/syssam/relgraph/dialect"

	// Registers the "sqlite" database/sql driver.
	_ "modernc.org/sqlite"
)

type (
	// Rows wraps the sql.Rows to avoid locks copy.
	Rows struct{ ColumnScanner }
	// Result is an alias to sql.Result.
	Result = sql.Result
	// NullString is an alias to sql.NullString.
	NullString = sql.NullString
	// TxOptions holds the transaction options to be used in DB.BeginTx.
	TxOptions = sql.TxOptions
)

// ColumnScanner is the subset of *sql.Rows used to read results.
type ColumnScanner interface {
	Close() error
	Columns() ([]string, error)
	Err() error
	Next() bool
	Scan(dest ...any) error
}

// ExecQuerier is implemented by *sql.DB, *sql.Tx and *sql.Conn.
type ExecQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Conn adapts an ExecQuerier to dialect.ExecQuerier.
type Conn struct {
	ExecQuerier
}

// Driver is a dialect.Driver over a *sql.DB.
type Driver struct {
	Conn
	dialect string
}

var _ dialect.Driver = (*Driver)(nil)

// NewDriver returns a driver of the given dialect over c.
func NewDriver(dialect string, c Conn) *Driver {
	return &Driver{Conn: c, dialect: dialect}
}

// Open opens a database with the registered driverName.
func Open(driverName, source string) (*Driver, error) {
	db, err := sql.Open(driverName, source)
	if err != nil {
		return nil, err
	}
	return OpenDB(driverName, db), nil
}

// OpenDB returns a driver over an open database.
func OpenDB(dialect string, db *sql.DB) *Driver {
	return NewDriver(dialect, Conn{db})
}

// DB returns the underlying database.
func (d Driver) DB() *sql.DB {
	return d.ExecQuerier.(*sql.DB)
}

// Dialect returns the dialect name.
func (d Driver) Dialect() string {
	return d.dialect
}

// Tx starts a transaction.
func (d *Driver) Tx(ctx context.Context) (dialect.Tx, error) {
	return d.BeginTx(ctx, nil)
}

// BeginTx starts a transaction with options.
func (d *Driver) BeginTx(ctx context.Context, opts *TxOptions) (dialect.Tx, error) {
	tx, err := d.DB().BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("dialect/sql: begin: %w", err)
	}
	return &Tx{Conn: Conn{tx}, Tx: tx}, nil
}

// Close closes the database.
func (d *Driver) Close() error { return d.DB().Close() }

// Tx is a dialect.Tx over a *sql.Tx.
type Tx struct {
	Conn
	driver.Tx
}

// Exec executes a statement. args must be a []any; v is nil or a
// *Result receiving the result.
func (c Conn) Exec(ctx context.Context, query string, args, v any) error {
	argv, err := values(args)
	if err != nil {
		return err
	}
	res, ok := v.(*Result)
	if v != nil && !ok {
		return fmt.Errorf("dialect/sql: exec into %T, want *sql.Result", v)
	}
	r, err := c.ExecContext(ctx, query, argv...)
	if err != nil {
		return fmt.Errorf("dialect/sql: exec: %w", err)
	}
	if res != nil {
		*res = r
	}
	return nil
}

// Query executes a query into v, a *Rows. args must be a []any.
func (c Conn) Query(ctx context.Context, query string, args, v any) error {
	rows, ok := v.(*Rows)
	if !ok {
		return fmt.Errorf("dialect/sql: query into %T, want *sql.Rows", v)
	}
	argv, err := values(args)
	if err != nil {
		return err
	}
	r, err := c.QueryContext(ctx, query, argv...)
	if err != nil {
		return fmt.Errorf("dialect/sql: query: %w", err)
	}
	rows.ColumnScanner = r
	return nil
}

func values(args any) ([]any, error) {
	switch args := args.(type) {
	case nil:
		return nil, nil
	case []any:
		return args, nil
	}
	return nil, fmt.Errorf("dialect/sql: args of type %T, want []any", args)
}

// QueryJSON runs a compiled read and returns the JSON value of its
// single "data" column. A NULL value is returned as JSON null.
func QueryJSON(ctx context.Context, q dialect.ExecQuerier, s Statement) (json.RawMessage, error) {
	var rows Rows
	if err := q.Query(ctx, s.SQL, s.Args, &rows); err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("dialect/sql: query json: %w", err)
		}
		return nil, errors.New("dialect/sql: query json: no rows returned")
	}
	var data NullString
	if err := rows.Scan(&data); err != nil {
		return nil, fmt.Errorf("dialect/sql: query json: %w", err)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dialect/sql: query json: %w", err)
	}
	if !data.Valid {
		return json.RawMessage("null"), nil
	}
	if !json.Valid([]byte(data.String)) {
		return nil, fmt.Errorf("dialect/sql: query json: column %s is not valid JSON", Data)
	}
	return json.RawMessage(data.String), nil
}

// ExecAll executes statements in order and stops at the first error.
func ExecAll(ctx context.Context, ex dialect.ExecQuerier, stmts ...Statement) error {
	for i, s := range stmts {
		if err := ex.Exec(ctx, s.SQL, s.Args, nil); err != nil {
			return fmt.Errorf("statement %d: %w", i, err)
		}
	}
	return nil
}
