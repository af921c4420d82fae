package schema

// Relation is the closed set of navigation directives a field may carry.
// The unexported marker method keeps the set sealed to this package.
type Relation interface {
	// Directive returns the directive name used in SDL.
	Directive() string
	relation()
}

type (
	// Ref marks a scalar foreign-key column referencing Type.
	Ref struct {
		Type string
	}

	// Key resolves an object field by matching the referenced row's id
	// against the local foreign-key Column.
	Key struct {
		Column string
	}

	// Mirror resolves an object field by scanning the referenced type for
	// rows whose foreign-key Column equals the local id. Field names the
	// reciprocal field on the referenced type.
	Mirror struct {
		Field  string
		Column string
	}

	// Join resolves a list field through the join type Type. Keys holds
	// the (own column, other column) pair used when traversing from the
	// declaring side.
	Join struct {
		Type string
		Keys [2]string
	}
)

func (Ref) relation()    {}
func (Key) relation()    {}
func (Mirror) relation() {}
func (Join) relation()   {}

// Directive returns "ref".
func (Ref) Directive() string { return "ref" }

// Directive returns "key".
func (Key) Directive() string { return "key" }

// Directive returns "field".
func (Mirror) Directive() string { return "field" }

// Directive returns "type".
func (Join) Directive() string { return "type" }

// HasKeys reports whether both join columns are known.
func (j Join) HasKeys() bool {
	return j.Keys[0] != "" && j.Keys[1] != ""
}

// Reverse returns the join as seen from the other side.
func (j Join) Reverse() Join {
	return Join{Type: j.Type, Keys: [2]string{j.Keys[1], j.Keys[0]}}
}
