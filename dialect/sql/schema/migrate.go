package schema

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/syssam/relgraph"
	"github.com/syssam/relgraph/dialect"
	"github.com/syssam/relgraph/dialect/sql"
	model "github.com/syssam/relgraph/schema"
)

// SnapshotTable holds one msgpack snapshot per applied model.
const SnapshotTable = "relgraph_schema"

const (
	createSnapshots = `create table if not exists "relgraph_schema" ("version" integer primary key autoincrement, "snapshot" blob not null, "appliedAt" text not null)`
	hasSnapshots    = `select count(*) from sqlite_master where type = 'table' and name = ?1`
	lastSnapshot    = `select "snapshot" from "relgraph_schema" order by "version" desc limit 1`
	insertSnapshot  = `insert into "relgraph_schema" ("snapshot", "appliedAt") values (?1, ?2)`
)

// Migrator applies the tables of a resolved model to a database.
// Migrations are additive: tables, nullable columns and indexes are
// created; anything else is reported as a breaking change.
type Migrator struct {
	drv   dialect.Driver
	graph *model.Graph
	log   *slog.Logger
	opts  []ValidateOption
	now   func() time.Time
}

// MigrateOption configures a Migrator.
type MigrateOption func(*Migrator)

// WithLogger sets the logger. Nil is ignored.
func WithLogger(l *slog.Logger) MigrateOption {
	return func(m *Migrator) {
		if l != nil {
			m.log = l
		}
	}
}

// WithValidateOptions relaxes the diff validation.
func WithValidateOptions(opts ...ValidateOption) MigrateOption {
	return func(m *Migrator) {
		m.opts = append(m.opts, opts...)
	}
}

// NewMigrator returns a migrator of g over drv.
func NewMigrator(drv dialect.Driver, g *model.Graph, opts ...MigrateOption) *Migrator {
	m := &Migrator{drv: drv, graph: g, log: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Plan returns the statements Create would execute.
func (m *Migrator) Plan(ctx context.Context) ([]string, error) {
	p, err := m.plan(ctx, m.drv)
	if err != nil {
		return nil, err
	}
	return p.stmts, nil
}

// Create applies the model in one transaction and records its snapshot.
func (m *Migrator) Create(ctx context.Context) error {
	tx, err := m.drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("relgraph/migrate: begin: %w", err)
	}
	if err := m.create(ctx, tx); err != nil {
		return rollback(tx, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("relgraph/migrate: commit: %w", err)
	}
	return nil
}

func (m *Migrator) create(ctx context.Context, tx dialect.Tx) error {
	p, err := m.plan(ctx, tx)
	if err != nil {
		return err
	}
	if !p.changed {
		m.log.DebugContext(ctx, "model unchanged")
		return nil
	}
	if err := tx.Exec(ctx, createSnapshots, []any{}, nil); err != nil {
		return fmt.Errorf("relgraph/migrate: %w", err)
	}
	for _, s := range p.stmts {
		if err := tx.Exec(ctx, s, []any{}, nil); err != nil {
			return fmt.Errorf("relgraph/migrate: %s: %w", s, err)
		}
	}
	at := m.now().UTC().Format(time.RFC3339)
	if err := tx.Exec(ctx, insertSnapshot, []any{p.snapshot, at}, nil); err != nil {
		return fmt.Errorf("relgraph/migrate: store snapshot: %w", err)
	}
	m.log.InfoContext(ctx, "migration applied", "statements", len(p.stmts), "types", len(m.graph.Types()))
	return nil
}

type plan struct {
	stmts    []string
	snapshot []byte
	changed  bool
}

func (m *Migrator) plan(ctx context.Context, q dialect.ExecQuerier) (*plan, error) {
	desired := Tables(m.graph)
	if r := ValidateSchema(desired); r.HasErrors() {
		return nil, relgraph.NewValidationError(r.Messages()...)
	}
	snap, err := model.MarshalSnapshot(m.graph)
	if err != nil {
		return nil, fmt.Errorf("relgraph/migrate: %w", err)
	}
	prev, err := applied(ctx, q)
	if err != nil {
		return nil, err
	}
	p := &plan{snapshot: snap, changed: !bytes.Equal(prev, snap)}
	if prev == nil {
		for _, t := range desired {
			p.stmts = append(p.stmts, t.DDL()...)
		}
		return p, nil
	}
	if !p.changed {
		return p, nil
	}
	g, err := model.UnmarshalSnapshot(prev)
	if err != nil {
		return nil, fmt.Errorf("relgraph/migrate: applied snapshot: %w", err)
	}
	current := Tables(g)
	r := ValidateDiff(current, desired, m.opts...)
	for _, w := range r.Warnings {
		m.log.WarnContext(ctx, "migration warning", "table", w.Table, "column", w.Column, "message", w.Message)
	}
	if r.HasErrors() {
		return nil, relgraph.NewValidationError(r.Messages()...)
	}
	byName := make(map[string]*Table, len(current))
	for _, t := range current {
		byName[t.Name] = t
	}
	for _, t := range desired {
		cur, ok := byName[t.Name]
		if !ok {
			p.stmts = append(p.stmts, t.DDL()...)
			continue
		}
		for _, c := range t.Columns {
			if cur.Column(c.Name) == nil {
				p.stmts = append(p.stmts, t.AddColumn(c))
			}
		}
		for _, idx := range cur.Indexes {
			if t.Index(idx.Name) == nil {
				p.stmts = append(p.stmts, cur.DropIndex(idx))
			}
		}
		for _, idx := range t.Indexes {
			if cur.Index(idx.Name) == nil {
				p.stmts = append(p.stmts, t.CreateIndex(idx))
			}
		}
	}
	return p, nil
}

// applied returns the last stored snapshot, or nil if none exists.
func applied(ctx context.Context, q dialect.ExecQuerier) ([]byte, error) {
	var n int
	if err := scanOne(ctx, q, hasSnapshots, []any{SnapshotTable}, &n); err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	var snap []byte
	if err := scanOne(ctx, q, lastSnapshot, []any{}, &snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// scanOne scans the first row of a query into dst. No rows leaves dst
// unchanged.
func scanOne(ctx context.Context, q dialect.ExecQuerier, query string, args []any, dst any) error {
	var rows sql.Rows
	if err := q.Query(ctx, query, args, &rows); err != nil {
		return fmt.Errorf("relgraph/migrate: %w", err)
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(dst); err != nil {
			return fmt.Errorf("relgraph/migrate: %w", err)
		}
	}
	return rows.Err()
}

func rollback(tx dialect.Tx, err error) error {
	if rerr := tx.Rollback(); rerr != nil {
		err = fmt.Errorf("%w: %v", err, rerr)
	}
	return err
}
