// Package client executes GraphQL operations against a SQLite database
// through a compiled schema.
//
//	c, err := client.Open(dialect.SQLite, "file:app.db", model)
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//	if err := c.Migrate(ctx); err != nil {
//	    return err
//	}
//	data, err := c.Query(ctx, `{ users { name } }`, nil)
//
// A Client may be used concurrently. Reload swaps the schema without
// interrupting operations already compiled against the previous one.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/syssam/relgraph/compiler/gen"
	"github.com/syssam/relgraph/compiler/query"
	"github.com/syssam/relgraph/dialect"
	"github.com/syssam/relgraph/dialect/sql"
	sqlschema "github.com/syssam/relgraph/dialect/sql/schema"
)

// Client runs operations of one schema over a driver.
type Client struct {
	config
	// reload serializes Reload calls; mu guards compiler.
	reload   sync.Mutex
	mu       sync.RWMutex
	compiler *query.Compiler
}

// config holds the configuration of the client.
type config struct {
	driver     dialect.Driver
	log        *slog.Logger
	debug      bool
	migrate    bool
	slow       time.Duration
	build      []gen.Option
	compile    []query.Option
	migrations []sqlschema.MigrateOption
}

// Option configures a Client.
type Option func(*config)

// Debug logs every statement at debug level.
func Debug() Option {
	return func(c *config) {
		c.debug = true
	}
}

// WithLogger sets the logger of the client and of the schema build,
// compilation and migration it runs. Nil is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.log = l
		}
	}
}

// WithMigration makes Reload migrate the database to the new model
// before swapping it in.
func WithMigration(opts ...sqlschema.MigrateOption) Option {
	return func(c *config) {
		c.migrate = true
		c.migrations = append(c.migrations, opts...)
	}
}

// WithSlowThreshold logs statements slower than d at warn level. It
// applies to drivers created by Open.
func WithSlowThreshold(d time.Duration) Option {
	return func(c *config) {
		c.slow = d
	}
}

// WithBuildOptions passes options to every schema build.
func WithBuildOptions(opts ...gen.Option) Option {
	return func(c *config) {
		c.build = append(c.build, opts...)
	}
}

// WithCompileOptions passes options to every compiler the client
// creates.
func WithCompileOptions(opts ...query.Option) Option {
	return func(c *config) {
		c.compile = append(c.compile, opts...)
	}
}

func newConfig(opts []Option) config {
	cfg := config{log: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// New returns a client of s over drv.
func New(drv dialect.Driver, s *gen.Schema, opts ...Option) *Client {
	c := &Client{config: newConfig(opts)}
	c.driver = drv
	if c.debug {
		c.driver = sql.NewDebugDriver(drv, c.log)
	}
	c.compiler = c.newCompiler(s)
	return c
}

// Open opens a database and builds model. The database is not migrated;
// call Migrate for that.
func Open(driverName, dsn, model string, opts ...Option) (*Client, error) {
	cfg := newConfig(opts)
	s, err := gen.Build(model, append([]gen.Option{gen.WithLogger(cfg.log)}, cfg.build...)...)
	if err != nil {
		return nil, err
	}
	var drv dialect.Driver
	if cfg.slow > 0 {
		drv, err = sql.OpenWithStats(driverName, dsn, sql.WithSlowThreshold(cfg.slow), sql.WithSlowQueryLog(cfg.log))
	} else {
		drv, err = sql.Open(driverName, dsn)
	}
	if err != nil {
		return nil, fmt.Errorf("relgraph/client: open %s: %w", driverName, err)
	}
	return New(drv, s, opts...), nil
}

func (c *Client) newCompiler(s *gen.Schema) *query.Compiler {
	return query.New(s, append([]query.Option{query.WithLogger(c.log)}, c.compile...)...)
}

// current returns the compiler of the active schema.
func (c *Client) current() *query.Compiler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.compiler
}

// Schema returns the active schema.
func (c *Client) Schema() *gen.Schema {
	return c.current().Schema()
}

// Driver returns the driver statements run on.
func (c *Client) Driver() dialect.Driver {
	return c.driver
}

// Compile compiles an operation against the active schema without
// executing it.
func (c *Client) Compile(src string, vars map[string]any) (*query.Plan, error) {
	return c.current().Compile(src, vars)
}

// Query compiles and executes an operation and returns its JSON result.
// A mutation runs its writes and read in one transaction.
func (c *Client) Query(ctx context.Context, src string, vars map[string]any) (json.RawMessage, error) {
	p, err := c.Compile(src, vars)
	if err != nil {
		return nil, err
	}
	return c.Exec(ctx, p)
}

// Exec executes a compiled plan.
func (c *Client) Exec(ctx context.Context, p *query.Plan) (json.RawMessage, error) {
	if !p.Mutation() {
		return sql.QueryJSON(ctx, c.driver, p.Read)
	}
	tx, err := c.driver.Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("relgraph/client: begin: %w", err)
	}
	if err := sql.ExecAll(ctx, tx, p.Writes...); err != nil {
		return nil, rollback(tx, err)
	}
	data, err := sql.QueryJSON(ctx, tx, p.Read)
	if err != nil {
		return nil, rollback(tx, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("relgraph/client: commit: %w", err)
	}
	c.log.DebugContext(ctx, "mutation committed", "writes", len(p.Writes))
	return data, nil
}

// Batch compiles requests concurrently and executes them in order. The
// first failure stops the batch.
func (c *Client) Batch(ctx context.Context, reqs []query.Request) ([]json.RawMessage, error) {
	plans, err := c.current().CompileBatch(ctx, reqs)
	if err != nil {
		return nil, err
	}
	out := make([]json.RawMessage, len(plans))
	for i, p := range plans {
		if out[i], err = c.Exec(ctx, p); err != nil {
			return nil, fmt.Errorf("request %d: %w", i, err)
		}
	}
	return out, nil
}

// Stats returns the statement statistics of a client opened with
// WithSlowThreshold. ok is false when no statistics are collected.
func (c *Client) Stats() (s sql.StatsSnapshot, ok bool) {
	drv := c.driver
	if d, isDebug := drv.(*sql.DebugDriver); isDebug {
		drv = d.Driver
	}
	if d, isStats := drv.(*sql.StatsDriver); isStats {
		return d.QueryStats().Snapshot(), true
	}
	return s, false
}

// Migrate applies the active model to the database.
func (c *Client) Migrate(ctx context.Context) error {
	return c.Migrator().Create(ctx)
}

// Migrator returns the migrator of the active model.
func (c *Client) Migrator() *sqlschema.Migrator {
	return c.migrator(c.Schema())
}

func (c *Client) migrator(s *gen.Schema) *sqlschema.Migrator {
	opts := append([]sqlschema.MigrateOption{sqlschema.WithLogger(c.log)}, c.migrations...)
	return sqlschema.NewMigrator(c.driver, s.Model, opts...)
}

// Reload builds model and makes it the active schema. With
// WithMigration the database is migrated first. On failure the active
// schema is kept.
func (c *Client) Reload(ctx context.Context, model string) error {
	c.reload.Lock()
	defer c.reload.Unlock()
	s, err := gen.Build(model, append([]gen.Option{gen.WithLogger(c.log)}, c.build...)...)
	if err != nil {
		return err
	}
	if c.migrate {
		if err := c.migrator(s).Create(ctx); err != nil {
			return err
		}
	}
	comp := c.newCompiler(s)
	c.mu.Lock()
	c.compiler = comp
	c.mu.Unlock()
	c.log.InfoContext(ctx, "schema reloaded", "types", len(s.Model.Types()))
	return nil
}

// Close closes the database connection.
func (c *Client) Close() error {
	return c.driver.Close()
}

func rollback(tx dialect.Tx, err error) error {
	if rerr := tx.Rollback(); rerr != nil {
		err = fmt.Errorf("%w: %v", err, rerr)
	}
	return err
}
