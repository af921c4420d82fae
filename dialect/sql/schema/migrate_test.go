package schema

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/relgraph"
	"github.com/syssam/relgraph/dialect"
	"github.com/syssam/relgraph/dialect/sql"
	model "github.com/syssam/relgraph/schema"
)

const base = `id: UUID! createdAt: Date! updatedAt: Date! `

const blog = `
type Post { ` + base + `message: String! user: User @key(name: "userId") userId: UUID @ref(name: "User") }
type User { ` + base + `email: String! @unique posts: [Post!]! @field(name: "user", key: "userId") }
`

func parse(t *testing.T, src string) *model.Graph {
	t.Helper()
	g, err := model.Parse(src)
	require.NoError(t, err)
	return g
}

func openDB(t *testing.T) *sql.Driver {
	t.Helper()
	drv, err := sql.Open(dialect.SQLite, "file::memory:")
	require.NoError(t, err)
	drv.DB().SetMaxOpenConns(1)
	t.Cleanup(func() { drv.Close() })
	return drv
}

func TestTables(t *testing.T) {
	tables := Tables(parse(t, blog))
	require.Len(t, tables, 2)

	post := tables[0]
	assert.Equal(t, "Post", post.Name)
	assert.Equal(t,
		`create table if not exists "Post" ("id" text primary key not null, "createdAt" text not null, "updatedAt" text not null, "message" text not null, "userId" text)`,
		post.CreateTable(),
	)
	require.Len(t, post.Indexes, 1)
	assert.Equal(t, `create index if not exists "Post_userId" on "Post" ("userId")`, post.CreateIndex(post.Indexes[0]))
	assert.Nil(t, post.Column("user"))

	user := tables[1]
	assert.Equal(t, []string{
		`create table if not exists "User" ("id" text primary key not null, "createdAt" text not null, "updatedAt" text not null, "email" text not null)`,
		`create unique index if not exists "User_email_key" on "User" ("email")`,
	}, user.DDL())
	assert.Equal(t, `alter table "User" add column "email" text not null`, user.AddColumn(user.Column("email")))
	assert.Equal(t, `drop index if exists "User_email_key"`, user.DropIndex(user.Index("User_email_key")))
	assert.False(t, ValidateSchema(tables).HasErrors())
}

func TestValidateTable(t *testing.T) {
	tb := &Table{Name: "T", Columns: []*Column{{Name: "a", Type: "text"}, {Name: "a"}}}
	tb.Indexes = []*Index{{Name: "i", Columns: []*Column{{Name: "b"}}}, {Name: "i"}}
	r := ValidateTable(tb)
	assert.True(t, r.HasErrors())
	assert.Len(t, r.Errors, 5)
	assert.Contains(t, r.String(), "table has no primary key")
	assert.Contains(t, r.String(), "duplicate column name")
	assert.Contains(t, r.String(), `index "i" references non-existent column "b"`)

	r = ValidateSchema([]*Table{NewTable(model.NewType("A", model.NewBaseFields()...)), NewTable(model.NewType("A", model.NewBaseFields()...))})
	assert.Equal(t, []string{"A: duplicate table name"}, r.Messages())
}

func TestValidateDiff(t *testing.T) {
	current := Tables(parse(t, blog))

	t.Run("additive", func(t *testing.T) {
		desired := Tables(parse(t, blog+`type Tag { `+base+`}`))
		r := ValidateDiff(current, desired)
		assert.False(t, r.HasErrors())
		assert.Equal(t, "No issues found", r.String())
	})

	t.Run("breaking", func(t *testing.T) {
		desired := Tables(parse(t, `
type User { `+base+`email: Int name: String! }
`))
		r := ValidateDiff(current, desired)
		assert.True(t, r.HasBreakingChanges())
		assert.ElementsMatch(t, []string{
			"Post: table was removed from the model",
			"User.name: new NOT NULL column cannot be added to an existing table",
			"User.email: column type changing from text to integer",
			`User: index "User_email_key" will be dropped`,
		}, r.Messages())
		assert.Len(t, r.Warnings, 1)
	})

	t.Run("allowed", func(t *testing.T) {
		desired := Tables(parse(t, `type User { `+base+`email: String }`))
		r := ValidateDiff(current, desired, AllowDropTable(), AllowDropIndex(), AllowDropColumn())
		assert.False(t, r.HasErrors())
		assert.True(t, r.HasWarnings())
		assert.True(t, r.HasBreakingChanges())
	})
}

func TestMigrator(t *testing.T) {
	ctx := context.Background()
	drv := openDB(t)

	m := NewMigrator(drv, parse(t, blog))
	stmts, err := m.Plan(ctx)
	require.NoError(t, err)
	assert.Len(t, stmts, 4)
	require.NoError(t, m.Create(ctx))
	require.NoError(t, drv.Exec(ctx, `insert into "User" ("id","createdAt","updatedAt","email") values (?1,?1,?1,?2)`, []any{"u1", "a@b.c"}, nil))

	t.Run("unchanged", func(t *testing.T) {
		stmts, err := NewMigrator(drv, parse(t, blog)).Plan(ctx)
		require.NoError(t, err)
		assert.Empty(t, stmts)
		require.NoError(t, NewMigrator(drv, parse(t, blog)).Create(ctx))
	})

	t.Run("additive", func(t *testing.T) {
		next := `
type Post { ` + base + `message: String! user: User @key(name: "userId") userId: UUID @ref(name: "User") }
type User { ` + base + `email: String! @unique name: String posts: [Post!]! @field(name: "user", key: "userId") }
type Tag { ` + base + `label: String! @unique }
`
		m := NewMigrator(drv, parse(t, next))
		stmts, err := m.Plan(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{
			`alter table "User" add column "name" text`,
			`create table if not exists "Tag" ("id" text primary key not null, "createdAt" text not null, "updatedAt" text not null, "label" text not null)`,
			`create unique index if not exists "Tag_label_key" on "Tag" ("label")`,
		}, stmts)
		require.NoError(t, m.Create(ctx))
		require.NoError(t, drv.Exec(ctx, `update "User" set "name" = ?1`, []any{"Alice"}, nil))
	})

	t.Run("breaking", func(t *testing.T) {
		err := NewMigrator(drv, parse(t, `type User { `+base+`email: String! @unique }`)).Create(ctx)
		require.Error(t, err)
		assert.True(t, relgraph.IsValidationError(err))
		assert.Contains(t, err.Error(), "Post: table was removed from the model")

		var n int
		rows := &sql.Rows{}
		require.NoError(t, drv.Query(ctx, `select count(*) from "relgraph_schema"`, []any{}, rows))
		require.True(t, rows.Next())
		require.NoError(t, rows.Scan(&n))
		require.NoError(t, rows.Close())
		assert.Equal(t, 2, n)
	})
}
