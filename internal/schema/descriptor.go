package schema

import (
	"slices"
	"strings"
)

// Operation names a root operation map.
type Operation string

const (
	OpQuery    Operation = "query"
	OpMutation Operation = "mutation"
)

// FieldKind classifies a field for the normalizer.
type FieldKind int

const (
	// KindScalar fields are copied unchanged.
	KindScalar FieldKind = iota
	// KindReference fields hold entities that are replaced by refs.
	KindReference
	// KindEmbedded fields hold value objects normalized inline.
	KindEmbedded
)

func (k FieldKind) String() string {
	switch k {
	case KindReference:
		return "reference"
	case KindEmbedded:
		return "embedded"
	default:
		return "scalar"
	}
}

// Field describes one declared field.
type Field struct {
	Name      string
	TypeName  string // as written, e.g. "[Post!]!"
	Base      string // e.g. "Post"
	ListDepth int
	Kind      FieldKind
}

// IsList reports whether the field holds a list.
func (f Field) IsList() bool {
	return f.ListDepth > 0
}

// TypeDescriptor describes one declared type.
type TypeDescriptor struct {
	Name     string
	Identity string // empty for embedded types
	Embedded bool
	fields   map[string]Field
	order    []string
}

// Field returns the declared field by name.
func (t *TypeDescriptor) Field(name string) (Field, bool) {
	f, ok := t.fields[name]
	return f, ok
}

// Fields returns the declared fields in name order.
func (t *TypeDescriptor) Fields() []Field {
	out := make([]Field, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, t.fields[name])
	}
	return out
}

// References returns the reference fields in name order.
func (t *TypeDescriptor) References() []Field {
	var out []Field
	for _, f := range t.Fields() {
		if f.Kind == KindReference {
			out = append(out, f)
		}
	}
	return out
}

// Descriptor is the parsed schema. It is immutable after Compile.
type Descriptor struct {
	types map[string]*TypeDescriptor
	roots map[Operation]map[string]Field
}

// Type returns the descriptor of a declared type.
func (d *Descriptor) Type(name string) (*TypeDescriptor, bool) {
	t, ok := d.types[name]
	return t, ok
}

// IsEntity reports whether name is a declared, identity-bearing type.
func (d *Descriptor) IsEntity(name string) bool {
	t, ok := d.types[name]
	return ok && !t.Embedded
}

// TypeNames returns all declared type names, sorted.
func (d *Descriptor) TypeNames() []string {
	names := make([]string, 0, len(d.types))
	for name := range d.types {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// RootField returns the declared root field of an operation.
func (d *Descriptor) RootField(op Operation, name string) (Field, bool) {
	f, ok := d.roots[op][name]
	return f, ok
}

// RootFields returns the root fields of an operation in name order.
func (d *Descriptor) RootFields(op Operation) []Field {
	m := d.roots[op]
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	slices.Sort(names)
	out := make([]Field, 0, len(names))
	for _, name := range names {
		out = append(out, m[name])
	}
	return out
}

// LookupRoot finds a root field in any operation, query first.
func (d *Descriptor) LookupRoot(name string) (Field, bool) {
	if f, ok := d.RootField(OpQuery, name); ok {
		return f, true
	}
	return d.RootField(OpMutation, name)
}

// parseTypeRef splits a GraphQL type reference into its base name and list depth.
func parseTypeRef(ref string) (base string, depth int, ok bool) {
	s := strings.TrimSpace(ref)
	for {
		s = strings.TrimSuffix(s, "!")
		if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
			s = strings.TrimSpace(s[1 : len(s)-1])
			depth++
			continue
		}
		break
	}
	if s == "" || strings.ContainsAny(s, "[]! ") {
		return "", 0, false
	}
	return s, depth, true
}
