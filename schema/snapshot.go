package schema

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// snapshotVersion is bumped whenever the encoded layout changes.
const snapshotVersion = 1

type (
	snapshot struct {
		Version int            `msgpack:"v"`
		Types   []snapshotType `msgpack:"types"`
	}
	snapshotType struct {
		Name   string          `msgpack:"name"`
		Join   bool            `msgpack:"join,omitempty"`
		Fields []snapshotField `msgpack:"fields"`
	}
	snapshotField struct {
		Name     string   `msgpack:"name"`
		Type     string   `msgpack:"type"`
		Scalar   bool     `msgpack:"scalar,omitempty"`
		List     bool     `msgpack:"list,omitempty"`
		Nullable bool     `msgpack:"nullable,omitempty"`
		Unique   bool     `msgpack:"unique,omitempty"`
		Rel      string   `msgpack:"rel,omitempty"`
		Args     []string `msgpack:"args,omitempty"`
	}
)

// MarshalSnapshot encodes a graph with msgpack.
func MarshalSnapshot(g *Graph) ([]byte, error) {
	s := snapshot{Version: snapshotVersion}
	for _, t := range g.Types() {
		st := snapshotType{Name: t.Name, Join: t.Join}
		for _, f := range t.Fields() {
			sf := snapshotField{
				Name:     f.Name,
				Type:     f.Type,
				Scalar:   f.Scalar,
				List:     f.List,
				Nullable: f.Nullable,
				Unique:   f.Unique,
			}
			switch r := f.Rel.(type) {
			case Ref:
				sf.Rel, sf.Args = r.Directive(), []string{r.Type}
			case Key:
				sf.Rel, sf.Args = r.Directive(), []string{r.Column}
			case Mirror:
				sf.Rel, sf.Args = r.Directive(), []string{r.Field, r.Column}
			case Join:
				sf.Rel, sf.Args = r.Directive(), []string{r.Type, r.Keys[0], r.Keys[1]}
			}
			st.Fields = append(st.Fields, sf)
		}
		s.Types = append(s.Types, st)
	}
	return msgpack.Marshal(&s)
}

// UnmarshalSnapshot decodes a graph encoded by MarshalSnapshot.
func UnmarshalSnapshot(data []byte) (*Graph, error) {
	var s snapshot
	if err := msgpack.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("relgraph/schema: decode snapshot: %w", err)
	}
	if s.Version != snapshotVersion {
		return nil, fmt.Errorf("relgraph/schema: unsupported snapshot version %d", s.Version)
	}
	g := New()
	for _, st := range s.Types {
		t := &Type{Name: st.Name, Join: st.Join}
		for _, sf := range st.Fields {
			f := &Field{
				Name:     sf.Name,
				Type:     sf.Type,
				Scalar:   sf.Scalar,
				List:     sf.List,
				Nullable: sf.Nullable,
				Unique:   sf.Unique,
			}
			rel, err := decodeRelation(sf.Rel, sf.Args)
			if err != nil {
				return nil, fmt.Errorf("relgraph/schema: decode snapshot: %s.%s: %w", st.Name, sf.Name, err)
			}
			f.Rel = rel
			t.AddField(f)
		}
		g.Add(t)
	}
	return g, nil
}

func decodeRelation(name string, args []string) (Relation, error) {
	want := map[string]int{"": 0, "ref": 1, "key": 1, "field": 2, "type": 3}
	n, ok := want[name]
	if !ok {
		return nil, fmt.Errorf("unknown relation %q", name)
	}
	if len(args) != n {
		return nil, fmt.Errorf("relation %q expects %d arguments, got %d", name, n, len(args))
	}
	switch name {
	case "ref":
		return Ref{Type: args[0]}, nil
	case "key":
		return Key{Column: args[0]}, nil
	case "field":
		return Mirror{Field: args[0], Column: args[1]}, nil
	case "type":
		return Join{Type: args[0], Keys: [2]string{args[1], args[2]}}, nil
	}
	return nil, nil
}
