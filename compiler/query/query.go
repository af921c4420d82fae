package query

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/validator"
	"golang.org/x/sync/errgroup"

	"github.com/syssam/relgraph"
	"github.com/syssam/relgraph/compiler/gen"
	"github.com/syssam/relgraph/dialect/sql"
	"github.com/syssam/relgraph/schema"
)

// TimeFormat is the text layout of Date values written by mutations.
const TimeFormat = "2006-01-02 15:04:05.000"

// Plan is a compiled operation. Writes are executed in order before
// Read, which yields the single JSON result.
type Plan struct {
	Operation ast.Operation   `json:"operation"`
	Writes    []sql.Statement `json:"writes,omitempty"`
	Read      sql.Statement   `json:"read"`
}

// Mutation reports whether the plan writes.
func (p *Plan) Mutation() bool {
	return p.Operation == ast.Mutation
}

// Request is one operation of a batch.
type Request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// Compiler lowers GraphQL operations against a schema to SQLite
// statements. A Compiler holds no per-operation state and is safe for
// concurrent use.
type Compiler struct {
	schema  *gen.Schema
	roots   map[string]root
	log     *slog.Logger
	now     func() time.Time
	newID   func() string
	workers int
}

// root is a Query accessor.
type root struct {
	typ  *schema.Type
	list bool
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithLogger sets the logger. Nil is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(c *Compiler) {
		if l != nil {
			c.log = l
		}
	}
}

// WithClock sets the clock used for createdAt and updatedAt.
func WithClock(now func() time.Time) Option {
	return func(c *Compiler) {
		if now != nil {
			c.now = now
		}
	}
}

// WithIDs sets the primary-key generator of created rows.
// The default generates random UUIDs.
func WithIDs(newID func() string) Option {
	return func(c *Compiler) {
		if newID != nil {
			c.newID = newID
		}
	}
}

// WithWorkers bounds the concurrency of CompileBatch. Values below one
// leave the batch unbounded.
func WithWorkers(n int) Option {
	return func(c *Compiler) {
		c.workers = n
	}
}

// New returns a compiler for s.
func New(s *gen.Schema, opts ...Option) *Compiler {
	c := &Compiler{
		schema:  s,
		roots:   make(map[string]root),
		log:     slog.Default(),
		now:     time.Now,
		newID:   uuid.NewString,
		workers: 8,
	}
	for _, opt := range opts {
		opt(c)
	}
	for _, t := range s.Model.Types() {
		if t.Join {
			continue
		}
		c.roots[schema.FieldName(t.Name)] = root{typ: t}
		c.roots[schema.ListFieldName(t.Name)] = root{typ: t, list: true}
	}
	return c
}

// Schema returns the schema the compiler was built for.
func (c *Compiler) Schema() *gen.Schema {
	return c.schema
}

// Compile validates source against the schema and lowers its single
// operation. Variables are coerced by their declared types.
func (c *Compiler) Compile(source string, vars map[string]any) (*Plan, error) {
	doc, errs := gqlparser.LoadQueryWithRules(c.schema.AST, source, nil)
	if len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return nil, relgraph.NewValidationError(msgs...)
	}
	if len(doc.Operations) != 1 {
		return nil, relgraph.NewValidationError(fmt.Sprintf("document must contain exactly one operation, found %d", len(doc.Operations)))
	}
	op := doc.Operations[0]
	coerced, err := validator.VariableValues(c.schema.AST, op, vars)
	if err != nil {
		return nil, relgraph.NewValidationError(err.Error())
	}
	cc := &compilation{
		Compiler: c,
		doc:      doc,
		vars:     coerced,
		stamp:    c.now().UTC().Format(TimeFormat),
	}
	p := &Plan{Operation: op.Operation}
	switch op.Operation {
	case ast.Query:
		p.Read, err = cc.query(op.SelectionSet)
	case ast.Mutation:
		p.Read, err = cc.mutation(op.SelectionSet)
		p.Writes = cc.writes
	default:
		err = relgraph.Compilef("", "", "unsupported operation %s", op.Operation)
	}
	if err != nil {
		return nil, err
	}
	c.log.Debug("operation compiled", "operation", op.Operation, "writes", len(p.Writes), "args", len(p.Read.Args))
	return p, nil
}

// CompileQuery compiles a query operation to its single read statement.
func (c *Compiler) CompileQuery(source string, vars map[string]any) (sql.Statement, error) {
	p, err := c.Compile(source, vars)
	if err != nil {
		return sql.Statement{}, err
	}
	if p.Mutation() {
		return sql.Statement{}, relgraph.Compilef("", "", "operation is a mutation")
	}
	return p.Read, nil
}

// CompileBatch compiles independent requests concurrently. Plans are
// returned in request order; the first failure cancels the batch.
func (c *Compiler) CompileBatch(ctx context.Context, reqs []Request) ([]*Plan, error) {
	plans := make([]*Plan, len(reqs))
	g, ctx := errgroup.WithContext(ctx)
	if c.workers > 0 {
		g.SetLimit(c.workers)
	}
	for i, r := range reqs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			p, err := c.Compile(r.Query, r.Variables)
			if err != nil {
				return fmt.Errorf("request %d: %w", i, err)
			}
			plans[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return plans, nil
}

// compilation is the state of one Compile call.
type compilation struct {
	*Compiler
	doc    *ast.QueryDocument
	vars   map[string]any
	stamp  string
	args   sql.Args
	writes []sql.Statement
}
