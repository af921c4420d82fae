package sql

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/syssam/relgraph/dialect"
)

// QueryStats counts the statements run through a StatsDriver. Reads are
// the JSON queries of compiled plans; writes are mutation and migration
// statements. Transactions group the writes of one plan.
type QueryStats struct {
	Reads       atomic.Int64
	Writes      atomic.Int64
	RowsWritten atomic.Int64
	Commits     atomic.Int64
	Rollbacks   atomic.Int64
	// MaxTxWrites is the largest number of writes committed together.
	MaxTxWrites atomic.Int64
	Duration    atomic.Int64 // nanoseconds
	Slow        atomic.Int64
	Errors      atomic.Int64
}

// Snapshot returns a copy of the counters.
func (s *QueryStats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Reads:       s.Reads.Load(),
		Writes:      s.Writes.Load(),
		RowsWritten: s.RowsWritten.Load(),
		Commits:     s.Commits.Load(),
		Rollbacks:   s.Rollbacks.Load(),
		MaxTxWrites: s.MaxTxWrites.Load(),
		Duration:    time.Duration(s.Duration.Load()),
		Slow:        s.Slow.Load(),
		Errors:      s.Errors.Load(),
	}
}

func (s *QueryStats) committed(writes int64) {
	s.Commits.Add(1)
	for {
		cur := s.MaxTxWrites.Load()
		if writes <= cur || s.MaxTxWrites.CompareAndSwap(cur, writes) {
			return
		}
	}
}

// StatsSnapshot is a point-in-time copy of QueryStats.
type StatsSnapshot struct {
	Reads       int64
	Writes      int64
	RowsWritten int64
	Commits     int64
	Rollbacks   int64
	MaxTxWrites int64
	Duration    time.Duration
	Slow        int64
	Errors      int64
}

// Avg returns the average statement duration.
func (s StatsSnapshot) Avg() time.Duration {
	if n := s.Reads + s.Writes; n > 0 {
		return s.Duration / time.Duration(n)
	}
	return 0
}

func (s StatsSnapshot) String() string {
	return fmt.Sprintf("reads=%d writes=%d rows=%d commits=%d rollbacks=%d avg=%s slow=%d errors=%d",
		s.Reads, s.Writes, s.RowsWritten, s.Commits, s.Rollbacks, s.Avg(), s.Slow, s.Errors)
}

// SlowStatement describes a statement that exceeded the slow threshold.
type SlowStatement struct {
	SQL      string
	Args     []any
	Write    bool
	InTx     bool
	Duration time.Duration
}

// SlowQueryHook is called for every slow statement.
type SlowQueryHook func(context.Context, SlowStatement)

// StatsDriver is a Driver that records QueryStats.
type StatsDriver struct {
	*Driver
	stats     QueryStats
	threshold time.Duration
	hook      SlowQueryHook
}

// StatsOption configures a StatsDriver.
type StatsOption func(*StatsDriver)

// WithSlowThreshold sets the duration above which a statement is slow.
// Default is 100ms.
func WithSlowThreshold(d time.Duration) StatsOption {
	return func(s *StatsDriver) { s.threshold = d }
}

// WithSlowQueryHook sets the callback for slow statements.
func WithSlowQueryHook(hook SlowQueryHook) StatsOption {
	return func(s *StatsDriver) { s.hook = hook }
}

// WithSlowQueryLog logs slow statements at warn level. A nil logger
// uses slog.Default().
func WithSlowQueryLog(l *slog.Logger) StatsOption {
	if l == nil {
		l = slog.Default()
	}
	return WithSlowQueryHook(func(ctx context.Context, s SlowStatement) {
		l.WarnContext(ctx, "slow statement",
			"duration", s.Duration, "write", s.Write, "tx", s.InTx, "sql", s.SQL, "args", len(s.Args))
	})
}

// NewStatsDriver wraps drv with statistics collection.
//
//	drv, _ := sql.Open(dialect.SQLite, "file:app.db")
//	c := client.New(sql.NewStatsDriver(drv, sql.WithSlowQueryLog(logger)), s)
func NewStatsDriver(drv *Driver, opts ...StatsOption) *StatsDriver {
	d := &StatsDriver{Driver: drv, threshold: 100 * time.Millisecond}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// OpenWithStats opens a database with statistics collection enabled.
func OpenWithStats(driverName, source string, opts ...StatsOption) (*StatsDriver, error) {
	drv, err := Open(driverName, source)
	if err != nil {
		return nil, err
	}
	return NewStatsDriver(drv, opts...), nil
}

// QueryStats returns the collected statistics.
func (d *StatsDriver) QueryStats() *QueryStats { return &d.stats }

// SlowThreshold returns the slow statement threshold.
func (d *StatsDriver) SlowThreshold() time.Duration { return d.threshold }

// Query executes a read and records it.
func (d *StatsDriver) Query(ctx context.Context, query string, args, v any) error {
	return d.read(ctx, d.Driver, false, query, args, v)
}

// Exec executes a write and records it.
func (d *StatsDriver) Exec(ctx context.Context, query string, args, v any) error {
	return d.write(ctx, d.Driver, false, query, args, v)
}

// Tx starts a transaction whose statements are recorded. Its writes
// count towards MaxTxWrites when it commits.
func (d *StatsDriver) Tx(ctx context.Context) (dialect.Tx, error) {
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &StatsTx{Tx: tx, driver: d}, nil
}

func (d *StatsDriver) read(ctx context.Context, q dialect.ExecQuerier, inTx bool, query string, args, v any) error {
	start := time.Now()
	err := q.Query(ctx, query, args, v)
	d.stats.Reads.Add(1)
	d.done(ctx, SlowStatement{SQL: query, InTx: inTx, Duration: time.Since(start)}, args, err)
	return err
}

func (d *StatsDriver) write(ctx context.Context, q dialect.ExecQuerier, inTx bool, query string, args, v any) error {
	var res Result
	if v == nil {
		v = &res
	}
	start := time.Now()
	err := q.Exec(ctx, query, args, v)
	d.stats.Writes.Add(1)
	if r, ok := v.(*Result); ok && err == nil && *r != nil {
		if n, rerr := (*r).RowsAffected(); rerr == nil {
			d.stats.RowsWritten.Add(n)
		}
	}
	d.done(ctx, SlowStatement{SQL: query, Write: true, InTx: inTx, Duration: time.Since(start)}, args, err)
	return err
}

func (d *StatsDriver) done(ctx context.Context, s SlowStatement, args any, err error) {
	d.stats.Duration.Add(int64(s.Duration))
	if err != nil {
		d.stats.Errors.Add(1)
	}
	if s.Duration <= d.threshold {
		return
	}
	d.stats.Slow.Add(1)
	if d.hook != nil {
		s.Args, _ = args.([]any)
		d.hook(ctx, s)
	}
}

// StatsTx is a transaction of a StatsDriver.
type StatsTx struct {
	dialect.Tx
	driver *StatsDriver
	writes int64
}

// Query executes a read within the transaction and records it.
func (tx *StatsTx) Query(ctx context.Context, query string, args, v any) error {
	return tx.driver.read(ctx, tx.Tx, true, query, args, v)
}

// Exec executes a write within the transaction and records it.
func (tx *StatsTx) Exec(ctx context.Context, query string, args, v any) error {
	tx.writes++
	return tx.driver.write(ctx, tx.Tx, true, query, args, v)
}

// Commit commits the transaction and records its writes.
func (tx *StatsTx) Commit() error {
	if err := tx.Tx.Commit(); err != nil {
		return err
	}
	tx.driver.stats.committed(tx.writes)
	return nil
}

// Rollback rolls back the transaction.
func (tx *StatsTx) Rollback() error {
	tx.driver.stats.Rollbacks.Add(1)
	return tx.Tx.Rollback()
}

// DebugDriver logs every statement at debug level.
type DebugDriver struct {
	dialect.Driver
	log *slog.Logger
}

// NewDebugDriver wraps drv with statement logging. A nil logger uses
// slog.Default().
func NewDebugDriver(drv dialect.Driver, l *slog.Logger) *DebugDriver {
	if l == nil {
		l = slog.Default()
	}
	return &DebugDriver{Driver: drv, log: l}
}

// Query logs and executes a query.
func (d *DebugDriver) Query(ctx context.Context, query string, args, v any) error {
	d.log.DebugContext(ctx, "query", "sql", query, "args", args)
	return d.Driver.Query(ctx, query, args, v)
}

// Exec logs and executes a statement.
func (d *DebugDriver) Exec(ctx context.Context, query string, args, v any) error {
	d.log.DebugContext(ctx, "exec", "sql", query, "args", args)
	return d.Driver.Exec(ctx, query, args, v)
}

// Tx starts a transaction with statement logging.
func (d *DebugDriver) Tx(ctx context.Context) (dialect.Tx, error) {
	d.log.DebugContext(ctx, "begin transaction")
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &DebugTx{Tx: tx, log: d.log}, nil
}

// DebugTx wraps a transaction with statement logging.
type DebugTx struct {
	dialect.Tx
	log *slog.Logger
}

// Query logs and executes a query within the transaction.
func (tx *DebugTx) Query(ctx context.Context, query string, args, v any) error {
	tx.log.DebugContext(ctx, "tx query", "sql", query, "args", args)
	return tx.Tx.Query(ctx, query, args, v)
}

// Exec logs and executes a statement within the transaction.
func (tx *DebugTx) Exec(ctx context.Context, query string, args, v any) error {
	tx.log.DebugContext(ctx, "tx exec", "sql", query, "args", args)
	return tx.Tx.Exec(ctx, query, args, v)
}

// Commit commits the transaction.
func (tx *DebugTx) Commit() error {
	tx.log.Debug("commit transaction")
	return tx.Tx.Commit()
}

// Rollback rolls back the transaction.
func (tx *DebugTx) Rollback() error {
	tx.log.Debug("rollback transaction")
	return tx.Tx.Rollback()
}

var (
	_ dialect.Driver = (*StatsDriver)(nil)
	_ dialect.Tx     = (*StatsTx)(nil)
	_ dialect.Driver = (*DebugDriver)(nil)
	_ dialect.Tx     = (*DebugTx)(nil)
)
