package sql

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/relgraph/dialect"
)

func mockDriver(t *testing.T) (*Driver, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return OpenDB(dialect.SQLite, db), mock
}

func TestOpenDB(t *testing.T) {
	drv, _ := mockDriver(t)
	assert.NotNil(t, drv.DB())
	assert.Equal(t, dialect.SQLite, drv.Dialect())
}

func TestDriverQuery(t *testing.T) {
	drv, mock := mockDriver(t)

	t.Run("query_with_args", func(t *testing.T) {
		mock.ExpectQuery(`select "name" from "User" where "id" = ?1`).
			WithArgs("u1").
			WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Alice"))

		rows := &Rows{}
		err := drv.Query(context.Background(), `select "name" from "User" where "id" = ?1`, []any{"u1"}, rows)
		require.NoError(t, err)
		require.True(t, rows.Next())
		var name string
		require.NoError(t, rows.Scan(&name))
		assert.Equal(t, "Alice", name)
		require.NoError(t, rows.Close())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query_error", func(t *testing.T) {
		mock.ExpectQuery("select 1").WillReturnError(errors.New("database error"))

		err := drv.Query(context.Background(), "select 1", []any{}, &Rows{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "dialect/sql: query")
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid_destination", func(t *testing.T) {
		var dst []string
		err := drv.Query(context.Background(), "select 1", []any{}, &dst)
		require.Error(t, err)
	})

	t.Run("invalid_args", func(t *testing.T) {
		err := drv.Query(context.Background(), "select 1", "x", &Rows{})
		require.Error(t, err)
	})
}

func TestDriverExec(t *testing.T) {
	drv, mock := mockDriver(t)

	mock.ExpectExec(`update "User" set "name" = ?1 where "id" = ?2`).
		WithArgs("Alice", "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	var res Result
	err := drv.Exec(context.Background(), `update "User" set "name" = ?1 where "id" = ?2`, []any{"Alice", "u1"}, &res)
	require.NoError(t, err)
	n, err := res.RowsAffected()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	mock.ExpectExec(`delete from "User"`).WillReturnError(errors.New("constraint violation"))
	err = drv.Exec(context.Background(), `delete from "User"`, []any{}, nil)
	require.Error(t, err)

	err = drv.Exec(context.Background(), `delete from "User"`, []any{}, new(int))
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDriverTransaction(t *testing.T) {
	drv, mock := mockDriver(t)

	t.Run("commit", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(`insert into "User" ("id") values (?1)`).WithArgs("u1").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		tx, err := drv.Tx(context.Background())
		require.NoError(t, err)
		require.NoError(t, tx.Exec(context.Background(), `insert into "User" ("id") values (?1)`, []any{"u1"}, nil))
		require.NoError(t, tx.Commit())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rollback", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(`insert into "User" ("id") values (?1)`).WillReturnError(errors.New("error"))
		mock.ExpectRollback()

		tx, err := drv.Tx(context.Background())
		require.NoError(t, err)
		require.Error(t, tx.Exec(context.Background(), `insert into "User" ("id") values (?1)`, []any{"u1"}, nil))
		require.NoError(t, tx.Rollback())
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestQueryJSON(t *testing.T) {
	const query = `select json(jsonb_object('user',?1)) as "data"`

	t.Run("object", func(t *testing.T) {
		drv, mock := mockDriver(t)
		mock.ExpectQuery(query).WithArgs("x").
			WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(`{"user":"x"}`))
		data, err := QueryJSON(context.Background(), drv, Statement{SQL: query, Args: []any{"x"}})
		require.NoError(t, err)
		assert.JSONEq(t, `{"user":"x"}`, string(data))
	})

	t.Run("null", func(t *testing.T) {
		drv, mock := mockDriver(t)
		mock.ExpectQuery(query).WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(nil))
		data, err := QueryJSON(context.Background(), drv, Statement{SQL: query, Args: []any{}})
		require.NoError(t, err)
		assert.Equal(t, "null", string(data))
	})

	t.Run("no_rows", func(t *testing.T) {
		drv, mock := mockDriver(t)
		mock.ExpectQuery(query).WillReturnRows(sqlmock.NewRows([]string{"data"}))
		_, err := QueryJSON(context.Background(), drv, Statement{SQL: query, Args: []any{}})
		require.ErrorContains(t, err, "no rows")
	})

	t.Run("invalid_json", func(t *testing.T) {
		drv, mock := mockDriver(t)
		mock.ExpectQuery(query).WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(`{"user":`))
		_, err := QueryJSON(context.Background(), drv, Statement{SQL: query, Args: []any{}})
		require.ErrorContains(t, err, "not valid JSON")
	})
}

func TestExecAll(t *testing.T) {
	drv, mock := mockDriver(t)
	mock.ExpectExec("a").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("b").WillReturnError(errors.New("boom"))

	err := ExecAll(context.Background(), drv,
		Statement{SQL: "a", Args: []any{}},
		Statement{SQL: "b", Args: []any{}},
		Statement{SQL: "c", Args: []any{}},
	)
	require.ErrorContains(t, err, "statement 1")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLite(t *testing.T) {
	drv, err := Open(dialect.SQLite, "file::memory:")
	require.NoError(t, err)
	drv.DB().SetMaxOpenConns(1)
	defer drv.Close()
	ctx := context.Background()

	data, err := QueryJSON(ctx, drv, Statement{
		SQL:  `select json(jsonb_object('name',?1,'tags',jsonb_array(?2,?3))) as "data"`,
		Args: []any{"O'Brien", "a", "b"},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"O'Brien","tags":["a","b"]}`, string(data))

	require.NoError(t, ExecAll(ctx, drv,
		Statement{SQL: `create table "User" ("id" text primary key, "email" text unique)`, Args: []any{}},
		Statement{SQL: `insert into "User" ("id","email") values (?1,?2)`, Args: []any{"u1", "a@b.c"}},
	))
	err = drv.Exec(ctx, `insert into "User" ("id","email") values (?1,?2)`, []any{"u2", "a@b.c"}, nil)
	require.Error(t, err)
	assert.True(t, IsConstraintError(err))
	assert.True(t, IsUniqueConstraintError(err))
	assert.False(t, IsForeignKeyConstraintError(err))
}

type codeError int

func (e codeError) Error() string { return "sqlite error" }
func (e codeError) Code() int     { return int(e) }

func TestConstraintErrors(t *testing.T) {
	assert.False(t, IsConstraintError(nil))
	assert.True(t, IsUniqueConstraintError(errors.New("UNIQUE constraint failed: User.email")))
	assert.True(t, IsForeignKeyConstraintError(errors.New("FOREIGN KEY constraint failed")))
	assert.True(t, IsNotNullConstraintError(errors.New("NOT NULL constraint failed: User.name")))

	wrapped := fmt.Errorf("dialect/sql: exec: %w", codeError(787))
	assert.True(t, IsConstraintError(codeError(787)))
	assert.True(t, IsForeignKeyConstraintError(codeError(787)))
	assert.False(t, IsUniqueConstraintError(codeError(787)))
	assert.True(t, IsUniqueConstraintError(codeError(2067)))
	assert.True(t, IsUniqueConstraintError(codeError(1555)))
	assert.False(t, IsConstraintError(codeError(1)))
	assert.True(t, IsConstraintError(wrapped))
	assert.True(t, IsForeignKeyConstraintError(wrapped))
}

func TestStatsDriver(t *testing.T) {
	drv, mock := mockDriver(t)
	var slow []SlowStatement
	stats := NewStatsDriver(drv,
		WithSlowThreshold(-1),
		WithSlowQueryHook(func(_ context.Context, s SlowStatement) {
			slow = append(slow, s)
		}),
	)
	assert.Equal(t, time.Duration(-1), stats.SlowThreshold())
	ctx := context.Background()

	mock.ExpectQuery("select 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectExec("insert").WillReturnError(errors.New("boom"))
	mock.ExpectBegin()
	mock.ExpectExec("update").WithArgs("a").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("delete").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec("update").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	rows := &Rows{}
	require.NoError(t, stats.Query(ctx, "select 1", []any{}, rows))
	require.NoError(t, rows.Close())
	require.Error(t, stats.Exec(ctx, "insert", []any{}, nil))

	tx, err := stats.Tx(ctx)
	require.NoError(t, err)
	var res Result
	require.NoError(t, tx.Exec(ctx, "update", []any{"a"}, &res))
	require.NoError(t, tx.Exec(ctx, "delete", []any{}, nil))
	require.NoError(t, tx.Commit())
	n, err := res.RowsAffected()
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	tx, err = stats.Tx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Exec(ctx, "update", []any{}, nil))
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())

	s := stats.QueryStats().Snapshot()
	assert.Equal(t, StatsSnapshot{
		Reads:       1,
		Writes:      4,
		RowsWritten: 4,
		Commits:     1,
		Rollbacks:   1,
		MaxTxWrites: 2,
		Duration:    s.Duration,
		Slow:        5,
		Errors:      1,
	}, s)
	assert.Contains(t, s.String(), "reads=1 writes=4 rows=4 commits=1 rollbacks=1")

	require.Len(t, slow, 5)
	assert.Equal(t, SlowStatement{SQL: "select 1", Args: []any{}, Duration: slow[0].Duration}, slow[0])
	assert.True(t, slow[1].Write)
	assert.False(t, slow[1].InTx)
	assert.Equal(t, SlowStatement{SQL: "update", Args: []any{"a"}, Write: true, InTx: true, Duration: slow[2].Duration}, slow[2])
	assert.Zero(t, StatsSnapshot{}.Avg())
}

func TestDebugDriver(t *testing.T) {
	drv, mock := mockDriver(t)
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	dbg := NewDebugDriver(drv, l)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`delete from "User"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	tx, err := dbg.Tx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Exec(ctx, `delete from "User"`, []any{}, nil))
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())

	out := buf.String()
	assert.Contains(t, out, "begin transaction")
	assert.Contains(t, out, "tx exec")
	assert.Contains(t, out, "rollback transaction")
}
