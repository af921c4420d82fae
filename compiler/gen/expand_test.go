package gen_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/syssam/relgraph"
	"github.com/syssam/relgraph/compiler/gen"
)

const model = `
type Class {
  name: String!
  users: [User!]!
}
type Club {
  name: String!
  users: [User!]!
}
type Profile {
  age: Int
}
type User {
  class: Class!
  clubs: [Club!]!
  name: String!
  profile: Profile
}
`

func names(def *ast.Definition) []string {
	var out []string
	for _, f := range def.Fields {
		if len(f.Name) > 1 && f.Name[:2] == "__" {
			continue
		}
		out = append(out, f.Name)
	}
	return out
}

func args(f *ast.FieldDefinition) []string {
	var out []string
	for _, a := range f.Arguments {
		out = append(out, a.Name+": "+a.Type.String())
	}
	return out
}

func types(def *ast.Definition) map[string]string {
	out := make(map[string]string)
	for _, f := range def.Fields {
		out[f.Name] = f.Type.String()
	}
	return out
}

func TestBuild(t *testing.T) {
	s, err := gen.Build(model)
	require.NoError(t, err)
	require.NotNil(t, s.AST)
	require.NotNil(t, s.Type("ClubToUser"))

	t.Run("Query", func(t *testing.T) {
		q := s.AST.Query
		require.NotNil(t, q)
		assert.Equal(t, []string{
			"class", "classes", "club", "clubs", "profile", "profiles", "user", "users",
		}, names(q))
		one := q.Fields.ForName("class")
		assert.Equal(t, []string{"where: WhereClass", "order: OrderClass", "offset: Int"}, args(one))
		assert.Equal(t, "Class", one.Type.String())
		many := q.Fields.ForName("classes")
		assert.Equal(t, []string{"where: WhereClass", "order: OrderClass", "limit: Int", "offset: Int"}, args(many))
		assert.Equal(t, "[Class!]!", many.Type.String())
	})

	t.Run("Mutation", func(t *testing.T) {
		m := s.AST.Mutation
		require.NotNil(t, m)
		assert.Equal(t, []string{"create", "update", "delete", "read"}, names(m))
		assert.Equal(t, []string{"data: CreateData!"}, args(m.Fields.ForName("create")))
		assert.Equal(t, "Query!", m.Fields.ForName("read").Type.String())
	})

	t.Run("Objects", func(t *testing.T) {
		user := s.AST.Types["User"]
		require.NotNil(t, user)
		assert.Equal(t, []string{
			"id", "createdAt", "updatedAt", "class", "classId", "clubs", "name", "profile",
		}, names(user))
		assert.Equal(t, []string{"where: WhereClub", "order: OrderClub", "limit: Int", "offset: Int"}, args(user.Fields.ForName("clubs")))
		assert.Equal(t, []string{"where: WhereProfile"}, args(user.Fields.ForName("profile")))
		assert.Empty(t, args(user.Fields.ForName("name")))
		require.NotNil(t, user.Fields.ForName("classId").Directives.ForName("ref"))

		join := s.AST.Types["ClubToUser"]
		require.NotNil(t, join)
		assert.NotNil(t, join.Directives.ForName("join"))
		assert.Nil(t, s.AST.Query.Fields.ForName("clubToUser"))
		assert.Nil(t, s.AST.Types["WhereClubToUser"])

		assert.Contains(t, s.Source, `@type(name: "ClubToUser", keys: ["userId","clubId"])`)
	})

	t.Run("DataInputs", func(t *testing.T) {
		assert.Equal(t, []string{"class", "clubs", "name", "profile"}, names(s.AST.Types["CreateDataUser"]))
		assert.Equal(t, map[string]string{
			"class":   "CreateDataClass",
			"clubs":   "[CreateDataClub!]",
			"name":    "String!",
			"profile": "CreateDataProfile",
		}, types(s.AST.Types["CreateDataUser"]))
		assert.Equal(t, map[string]string{
			"id":      "UUID!",
			"class":   "UpdateDataClass",
			"clubs":   "[UpdateDataClub!]",
			"name":    "String",
			"profile": "UpdateDataProfile",
		}, types(s.AST.Types["UpdateDataUser"]))
		assert.Equal(t, []string{"id", "class", "clubs", "profile"}, names(s.AST.Types["DeleteDataUser"]))
		assert.Equal(t, []string{"age", "user"}, names(s.AST.Types["CreateDataProfile"]))
		assert.Equal(t, map[string]string{
			"class":    "CreateDataClass",
			"classes":  "[CreateDataClass!]",
			"club":     "CreateDataClub",
			"clubs":    "[CreateDataClub!]",
			"profile":  "CreateDataProfile",
			"profiles": "[CreateDataProfile!]",
			"user":     "CreateDataUser",
			"users":    "[CreateDataUser!]",
		}, types(s.AST.Types["CreateData"]))
	})

	t.Run("WhereAndOrder", func(t *testing.T) {
		assert.Equal(t, []string{
			"id", "createdAt", "updatedAt", "classId", "name", "and", "or", "not",
		}, names(s.AST.Types["WhereUser"]))
		assert.Equal(t, "WhereUser", s.AST.Types["WhereUser"].Fields.ForName("or").Type.String())
		assert.Equal(t, []string{"id", "createdAt", "updatedAt", "age", "userId"}, names(s.AST.Types["OrderProfile"]))
		assert.Equal(t, "Order", s.AST.Types["OrderProfile"].Fields.ForName("age").Type.String())

		assert.Equal(t, []string{"eq", "ne"}, names(s.AST.Types["WhereBoolean"]))
		assert.Equal(t, map[string]string{
			"eq": "Int", "ne": "Int", "gt": "Int", "lt": "Int", "ge": "Int", "le": "Int",
			"in": "[Int]", "like": "String",
		}, types(s.AST.Types["WhereInt"]))
		for _, scalar := range []string{"ID", "Float", "String", "Date", "UUID", "JSON"} {
			assert.NotNil(t, s.AST.Types["Where"+scalar], scalar)
		}

		order := s.AST.Types["Order"]
		require.NotNil(t, order)
		assert.Equal(t, ast.Enum, order.Kind)
		require.Len(t, order.EnumValues, 2)
		assert.Equal(t, "asc", order.EnumValues[0].Name)
		assert.Equal(t, "desc", order.EnumValues[1].Name)
	})
}

func TestBuild_Deterministic(t *testing.T) {
	a, err := gen.Build(model)
	require.NoError(t, err)
	b, err := gen.Build(model)
	require.NoError(t, err)
	assert.Equal(t, a.Source, b.Source)
}

func TestBuild_Errors(t *testing.T) {
	t.Run("InvalidModel", func(t *testing.T) {
		_, err := gen.Build(`type User { posts: [Post] }`)
		require.Error(t, err)
		assert.True(t, relgraph.IsModelError(err))
	})
	t.Run("StrictNames", func(t *testing.T) {
		_, err := gen.Build(`type User { and: String name: String }`)
		require.NoError(t, err)
		_, err = gen.Build(`type User { and: String name: String }`, gen.WithStrictNames())
		require.Error(t, err)
		assert.True(t, relgraph.IsModelError(err))
	})
	t.Run("SurfaceCollision", func(t *testing.T) {
		for _, src := range []string{
			`type Order { total: Int }`,
			`type User { name: String } type WhereUser { name: String }`,
			`type Post { body: String } type CreateDataPosts { body: String }`,
			`type WhereString { value: String }`,
		} {
			_, err := gen.Build(src)
			require.Error(t, err, src)
			assert.True(t, relgraph.IsModelError(err))
			assert.Contains(t, err.Error(), "reserved by the generated schema")
		}
		_, err := gen.Build(`type OrderItem { total: Int } type WhereTo { place: String }`)
		assert.NoError(t, err)
	})
	t.Run("InvalidOption", func(t *testing.T) {
		_, err := gen.Build(model, gen.WithLogger(nil))
		assert.ErrorIs(t, err, relgraph.ErrInvalidConfig)
	})
}
