package load_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/relgraph"
	"github.com/syssam/relgraph/compiler/load"
	"github.com/syssam/relgraph/schema"
)

const model = `
type users {
  name: String!
  profile: Profile
  classes: Class!
  club: [Club]
}
type Profile {
  age: Int
}
type Class {
  name: String!
  users: [User!]!
}
type Club {
  name: String!
  users: [User!]!
}
`

func fieldNames(t *schema.Type) []string {
	var names []string
	for _, f := range t.Fields() {
		names = append(names, f.Name)
	}
	return names
}

func TestNormalize(t *testing.T) {
	g, err := load.Normalize(model)
	require.NoError(t, err)

	var types []string
	for _, typ := range g.Types() {
		types = append(types, typ.Name)
	}
	assert.Equal(t, []string{"Class", "Club", "Profile", "User"}, types)

	user := g.Type("User")
	assert.Equal(t, []string{"class", "clubs", "name", "profile"}, fieldNames(user))
	class := user.Field("class")
	assert.Equal(t, "Class", class.Type)
	assert.False(t, class.Nullable)
	clubs := user.Field("clubs")
	assert.True(t, clubs.List)
	assert.False(t, clubs.Nullable)
	assert.Nil(t, clubs.Rel)
}

func TestNormalize_ReservedNames(t *testing.T) {
	const src = `
type Query { x: Int }
type User {
  id: ID
  and: String
  name: String
}`
	t.Run("Dropped", func(t *testing.T) {
		g, err := load.Normalize(src)
		require.NoError(t, err)
		assert.Nil(t, g.Type("Query"))
		assert.Equal(t, []string{"name"}, fieldNames(g.Type("User")))
	})
	t.Run("Strict", func(t *testing.T) {
		_, err := load.Normalize(src, load.WithStrictNames())
		require.Error(t, err)
		assert.True(t, relgraph.IsModelError(err))
		assert.Contains(t, err.Error(), "reserved")
	})
	t.Run("StrictAcceptsBaseFields", func(t *testing.T) {
		g, err := load.Normalize(`type User { id: UUID! createdAt: Date! name: String }`, load.WithStrictNames())
		require.NoError(t, err)
		assert.Equal(t, []string{"name"}, fieldNames(g.Type("User")))
	})
}

func TestNormalize_Directives(t *testing.T) {
	g, err := load.Normalize(`
type User {
  email: String @unique @key(name: "x")
  classId: UUID @ref(name: "classes")
  profile: Profile! @field(name: "users")
}
type Profile { bio: String }
type Class { name: String }
`)
	require.NoError(t, err)
	user := g.Type("User")

	email := user.Field("email")
	assert.True(t, email.Unique)
	assert.Nil(t, email.Rel, "scalars keep only @ref and @unique")

	ref, ok := user.Field("classId").Ref()
	require.True(t, ok)
	assert.Equal(t, "Class", ref.Type)

	profile := user.Field("profile")
	assert.True(t, profile.Nullable, "@field makes a to-one field nullable")
	m, ok := profile.Mirror()
	require.True(t, ok)
	assert.Equal(t, "user", m.Field)
}

func TestNormalize_JoinNames(t *testing.T) {
	t.Run("Auto", func(t *testing.T) {
		g, err := load.Normalize(`
type User { clubs: [Club] @type(name: "Whatever") }
type Club { users: [User] }
type UserToClub @join { userId: UUID! clubId: UUID! }
`)
		require.NoError(t, err)
		j, ok := g.Type("User").Field("clubs").Join()
		require.True(t, ok)
		assert.Equal(t, "ClubToUser", j.Type)
		assert.Nil(t, g.Type("UserToClub"))
		assert.Nil(t, g.Type("ClubToUser"))
	})

	t.Run("Unified", func(t *testing.T) {
		g, err := load.Normalize(`
type User { memberships: [Club] @type(name: "Membership") }
type Club { members: [User] @type(name: "Enrollment") }
type Membership { note: String }
type Enrollment { note: String }
`)
		require.NoError(t, err)
		a, _ := g.Type("User").Field("memberships").Join()
		b, _ := g.Type("Club").Field("members").Join()
		assert.Equal(t, "Enrollment", a.Type)
		assert.Equal(t, a.Type, b.Type)
		assert.Nil(t, g.Type("Enrollment"))
		assert.NotNil(t, g.Type("Membership"), "unclaimed names stay ordinary types")
	})

	t.Run("SameName", func(t *testing.T) {
		g, err := load.Normalize(`
type User { memberships: [Club] @type(name: "Membership") }
type Club { members: [User] @type(name: "memberships") }
`)
		require.NoError(t, err)
		a, _ := g.Type("User").Field("memberships").Join()
		b, _ := g.Type("Club").Field("members").Join()
		assert.Equal(t, "Membership", a.Type)
		assert.Equal(t, "Membership", b.Type)
	})

	t.Run("SharedByUnrelatedFields", func(t *testing.T) {
		_, err := load.Normalize(`
type User { memberships: [Club] @type(name: "Membership") owned: [Club] @type(name: "Membership") }
type Club { name: String }
`)
		require.Error(t, err)
		assert.True(t, relgraph.IsModelError(err))
	})

	t.Run("ToOne", func(t *testing.T) {
		_, err := load.Normalize(`
type User { club: Club @type(name: "Membership") }
type Club { name: String }
`)
		require.ErrorContains(t, err, "@type requires a list field")
	})
}

func TestNormalize_DeclaredJoin(t *testing.T) {
	g, err := load.Normalize(`type Person @join { n: Int } type User { name: String }`)
	require.NoError(t, err)
	require.NotNil(t, g.Type("Person"))
	assert.True(t, g.Type("Person").Join)
	assert.False(t, g.Type("User").Join)
	assert.Equal(t, "Person", g.Types()[1].Name)
}

func TestNormalize_Errors(t *testing.T) {
	tests := []struct {
		name, src, msg string
	}{
		{"UndeclaredType", `type User { posts: [Post] }`, `undeclared type "Post"`},
		{"UndeclaredRef", `type User { postId: UUID @ref(name: "Post") }`, `undeclared type "Post"`},
		{"FieldCollision", `type User { post: Post posts: Post } type Post { x: Int }`, "collides"},
		{"TypeCollision", `type User { x: Int } type users { y: Int }`, "collides"},
		{"RefOnRelation", `type User { post: Post @ref(name: "Post") } type Post { x: Int }`, "@ref requires a scalar"},
		{"SurfaceType", `type Order { total: Int }`, `type name "Order" is reserved`},
		{"SurfaceInput", `type User { x: Int } type OrderUser { y: Int }`, `type name "OrderUser" is reserved`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load.Normalize(tt.src)
			require.Error(t, err)
			assert.True(t, relgraph.IsModelError(err), "%T", err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestNormalizeGraph_DoesNotMutate(t *testing.T) {
	g, err := schema.Parse(`type users { Name: String }`)
	require.NoError(t, err)
	_, err = load.NormalizeGraph(g)
	require.NoError(t, err)
	assert.NotNil(t, g.Type("users"))
	assert.NotNil(t, g.Type("users").Field("Name"))

	_, err = load.NormalizeGraph(g, load.WithLogger(nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, relgraph.ErrInvalidConfig)
}
