package schema

import (
	"slices"
	"strings"
)

// Scalar kinds understood by the model.
const (
	ID      = "ID"
	Int     = "Int"
	Float   = "Float"
	String  = "String"
	Boolean = "Boolean"
	Date    = "Date"
	UUID    = "UUID"
	JSON    = "JSON"
)

// PrimaryKey is the scalar kind of every id and foreign-key column.
const PrimaryKey = UUID

// Base field names present on every type.
const (
	FieldID        = "id"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

var (
	// Scalars lists the scalar kinds in declaration order.
	Scalars = []string{ID, Int, Float, String, Boolean, Date, UUID, JSON}

	// CustomScalars are the scalar kinds missing from the GraphQL prelude.
	CustomScalars = []string{Date, UUID, JSON}

	// BaseFields lists the server-managed fields in their fixed order.
	BaseFields = []string{FieldID, FieldCreatedAt, FieldUpdatedAt}

	// LogicalOperators are the where-input keywords.
	LogicalOperators = []string{"and", "or", "not"}

	// RootTypes are the GraphQL operation type names.
	RootTypes = []string{"Query", "Mutation", "Subscription"}

	// SurfaceTypes are the fixed type names of the expanded schema.
	SurfaceTypes = []string{"CreateData", "UpdateData", "DeleteData", "Order"}

	// SurfacePrefixes prefix the per-type inputs of the expanded schema.
	SurfacePrefixes = []string{"CreateData", "UpdateData", "DeleteData", "Where", "Order"}
)

// IsScalar reports whether name is a scalar kind.
func IsScalar(name string) bool {
	return slices.Contains(Scalars, name)
}

// IsBaseField reports whether name is one of the server-managed fields.
func IsBaseField(name string) bool {
	return slices.Contains(BaseFields, name)
}

// IsReservedField reports whether name may not be declared by a model.
func IsReservedField(name string) bool {
	return IsBaseField(name) || slices.Contains(LogicalOperators, name)
}

// IsReservedType reports whether name may not be declared by a model.
func IsReservedType(name string) bool {
	return slices.Contains(RootTypes, name) || IsScalar(name)
}

// IsSurfaceType reports whether the expanded schema generates a type
// named name, given the model types reported by declared.
func IsSurfaceType(name string, declared func(string) bool) bool {
	if slices.Contains(SurfaceTypes, name) {
		return true
	}
	for _, p := range SurfacePrefixes {
		rest, ok := strings.CutPrefix(name, p)
		if !ok || rest == "" {
			continue
		}
		if declared(rest) || p == "Where" && IsScalar(rest) {
			return true
		}
	}
	return false
}

// NewBaseFields returns fresh copies of the server-managed fields.
func NewBaseFields() []*Field {
	return []*Field{
		{Name: FieldID, Type: PrimaryKey, Scalar: true},
		{Name: FieldCreatedAt, Type: Date, Scalar: true},
		{Name: FieldUpdatedAt, Type: Date, Scalar: true},
	}
}

// Affinity maps a scalar kind to its SQLite column type.
var Affinity = map[string]string{
	ID:      "text",
	Int:     "integer",
	Float:   "real",
	String:  "text",
	Boolean: "integer",
	Date:    "text",
	UUID:    "text",
	JSON:    "text",
}

// Comparison operators of the where inputs, in SDL order.
var Operators = []string{"eq", "ne", "gt", "lt", "ge", "le", "in", "like"}

// OperatorsOf returns the comparison operators available for a scalar kind.
func OperatorsOf(scalar string) []string {
	if scalar == Boolean {
		return []string{"eq", "ne"}
	}
	return Operators
}
