package schema_test

import (
	"testing"

	"github.com/syssam/relgraph/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names[T interface{ *schema.Type | *schema.Field }](items []T) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		switch v := any(it).(type) {
		case *schema.Type:
			out = append(out, v.Name)
		case *schema.Field:
			out = append(out, v.Name)
		}
	}
	return out
}

func TestGraph(t *testing.T) {
	t.Run("AddAndLookup", func(t *testing.T) {
		g := schema.New()
		require.True(t, g.Add(schema.NewType("User")))
		require.False(t, g.Add(schema.NewType("User")), "duplicate names are rejected")
		assert.NotNil(t, g.Type("User"))
		assert.Nil(t, g.Type("Post"))
	})

	t.Run("SetReplacesInPlace", func(t *testing.T) {
		g := schema.New(schema.NewType("A"), schema.NewType("B"), schema.NewType("C"))
		b := schema.NewType("B", &schema.Field{Name: "name", Type: schema.String, Scalar: true})
		g.Set(b)
		assert.Equal(t, []string{"A", "B", "C"}, names(g.Types()))
		assert.Same(t, b, g.Type("B"))
	})

	t.Run("Remove", func(t *testing.T) {
		g := schema.New(schema.NewType("A"), schema.NewType("B"))
		g.Remove("A")
		g.Remove("Missing")
		assert.Equal(t, []string{"B"}, names(g.Types()))
		assert.Nil(t, g.Type("A"))
	})

	t.Run("ZeroValue", func(t *testing.T) {
		var g schema.Graph
		assert.True(t, g.Add(&schema.Type{Name: "User"}))
		var typ schema.Type
		assert.True(t, typ.AddField(&schema.Field{Name: "name"}))
	})
}

func TestGraph_Sort(t *testing.T) {
	join := schema.NewType("ClubToUser")
	join.Join = true
	g := schema.New(
		join,
		schema.NewType("User",
			&schema.Field{Name: "name", Type: schema.String, Scalar: true},
			&schema.Field{Name: "updatedAt", Type: schema.Date, Scalar: true},
			&schema.Field{Name: "age", Type: schema.Int, Scalar: true},
			&schema.Field{Name: "id", Type: schema.UUID, Scalar: true},
			&schema.Field{Name: "createdAt", Type: schema.Date, Scalar: true},
		),
		schema.NewType("Club"),
	)
	g.Sort()
	assert.Equal(t, []string{"Club", "User", "ClubToUser"}, names(g.Types()))
	assert.Equal(t, []string{"id", "createdAt", "updatedAt", "age", "name"}, names(g.Type("User").Fields()))
}

func TestGraph_Clone(t *testing.T) {
	g := schema.New(schema.NewType("User",
		&schema.Field{Name: "classId", Type: schema.UUID, Scalar: true, Nullable: true, Rel: schema.Ref{Type: "Class"}},
	))
	c := g.Clone()
	c.Type("User").Field("classId").Nullable = false
	c.Type("User").AddField(&schema.Field{Name: "name", Type: schema.String, Scalar: true})

	assert.True(t, g.Type("User").Field("classId").Nullable)
	assert.Nil(t, g.Type("User").Field("name"))
	ref, ok := c.Type("User").Field("classId").Ref()
	require.True(t, ok)
	assert.Equal(t, "Class", ref.Type)
}

func TestField_TypeString(t *testing.T) {
	tests := []struct {
		field *schema.Field
		want  string
	}{
		{&schema.Field{Type: "String", Nullable: false}, "String!"},
		{&schema.Field{Type: "Int", Nullable: true}, "Int"},
		{&schema.Field{Type: "Post", List: true}, "[Post!]!"},
		{&schema.Field{Type: "Post", List: true, Nullable: true}, "[Post!]"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.field.TypeString())
		})
	}
}

func TestRelation(t *testing.T) {
	f := &schema.Field{Name: "clubs", Type: "Club", List: true, Rel: schema.Join{Type: "ClubToUser", Keys: [2]string{"userId", "clubId"}}}
	j, ok := f.Join()
	require.True(t, ok)
	assert.True(t, j.HasKeys())
	assert.Equal(t, [2]string{"clubId", "userId"}, j.Reverse().Keys)
	assert.Equal(t, "type", f.Rel.Directive())

	_, ok = f.Key()
	assert.False(t, ok)
	_, ok = f.Mirror()
	assert.False(t, ok)
	assert.False(t, schema.Join{Type: "Membership"}.HasKeys())
}

func TestReservedNames(t *testing.T) {
	for _, name := range []string{"id", "createdAt", "updatedAt", "and", "or", "not"} {
		assert.True(t, schema.IsReservedField(name), name)
	}
	assert.False(t, schema.IsReservedField("name"))
	for _, name := range []string{"Query", "Mutation", "Subscription", "UUID", "Date", "JSON", "ID"} {
		assert.True(t, schema.IsReservedType(name), name)
	}
	assert.False(t, schema.IsReservedType("User"))
	assert.Equal(t, []string{"eq", "ne"}, schema.OperatorsOf(schema.Boolean))
	assert.Len(t, schema.OperatorsOf(schema.String), 8)
}

func TestIsSurfaceType(t *testing.T) {
	declared := func(name string) bool { return name == "User" }
	for _, name := range []string{"Order", "CreateData", "WhereUser", "OrderUser", "UpdateDataUser", "WhereInt"} {
		assert.True(t, schema.IsSurfaceType(name, declared), name)
	}
	for _, name := range []string{"User", "OrderItem", "Where", "CreateDataInt", "Orders"} {
		assert.False(t, schema.IsSurfaceType(name, declared), name)
	}
}
