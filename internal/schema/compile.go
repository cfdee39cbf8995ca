package schema

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// defaultIdentity is used when a type does not name its identity field.
const defaultIdentity = "id"

// SchemaError is a fatal schema problem detected at startup.
type SchemaError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *SchemaError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsSchemaError reports whether err wraps a SchemaError.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

// LoadFile compiles the CUE schema file at path.
func LoadFile(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	v := cuecontext.New().CompileBytes(data, cue.Filename(path))
	return Compile(v)
}

// CompileString compiles CUE schema source.
func CompileString(src string) (*Descriptor, error) {
	return Compile(cuecontext.New().CompileString(src))
}

// Compile builds a Descriptor from a CUE value holding the schema root
// (the struct with type, query and mutation fields).
func Compile(v cue.Value) (*Descriptor, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	d := &Descriptor{
		types: make(map[string]*TypeDescriptor),
		roots: make(map[Operation]map[string]Field),
	}

	typesVal := v.LookupPath(cue.ParsePath("type"))
	if !typesVal.Exists() {
		return nil, &SchemaError{Field: "type", Message: "at least one type is required", Pos: v.Pos()}
	}

	// First pass: names and identity, so field kinds can be resolved in the second.
	raw := make(map[string]cue.Value)
	iter, err := typesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		name := iter.Label()
		td, err := parseTypeHeader(name, iter.Value())
		if err != nil {
			return nil, err
		}
		d.types[name] = td
		raw[name] = iter.Value()
	}

	for _, name := range d.TypeNames() {
		if err := d.parseFields(d.types[name], raw[name]); err != nil {
			return nil, err
		}
	}

	for _, op := range []Operation{OpQuery, OpMutation} {
		roots, err := d.parseRoots(v, op)
		if err != nil {
			return nil, err
		}
		d.roots[op] = roots
	}

	return d, nil
}

// parseTypeHeader reads identity and embedded flags.
func parseTypeHeader(name string, v cue.Value) (*TypeDescriptor, error) {
	td := &TypeDescriptor{Name: name, fields: make(map[string]Field)}

	if ev := v.LookupPath(cue.ParsePath("embedded")); ev.Exists() {
		embedded, err := ev.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		td.Embedded = embedded
	}

	if iv := v.LookupPath(cue.ParsePath("identity")); iv.Exists() {
		if td.Embedded {
			return nil, &SchemaError{
				Field:   fmt.Sprintf("type.%s.identity", name),
				Message: "embedded types cannot declare an identity field",
				Pos:     iv.Pos(),
			}
		}
		identity, err := iv.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		td.Identity = identity
	}

	return td, nil
}

// parseFields reads the fields struct and validates the identity field.
func (d *Descriptor) parseFields(td *TypeDescriptor, v cue.Value) error {
	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return &SchemaError{
			Field:   fmt.Sprintf("type.%s.fields", td.Name),
			Message: "fields are required",
			Pos:     v.Pos(),
		}
	}

	iter, err := fieldsVal.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		f, err := d.parseField(fmt.Sprintf("type.%s.fields.%s", td.Name, iter.Label()), iter.Label(), iter.Value())
		if err != nil {
			return err
		}
		td.fields[f.Name] = f
		td.order = append(td.order, f.Name)
	}
	slices.Sort(td.order)

	if td.Embedded {
		return nil
	}
	if td.Identity == "" {
		if _, ok := td.fields[defaultIdentity]; !ok {
			return &SchemaError{
				Field:   fmt.Sprintf("type.%s", td.Name),
				Message: `type has no identity field: declare "identity", an "id" field, or mark it embedded`,
				Pos:     v.Pos(),
			}
		}
		td.Identity = defaultIdentity
	}
	idField, ok := td.fields[td.Identity]
	if !ok {
		return &SchemaError{
			Field:   fmt.Sprintf("type.%s.identity", td.Name),
			Message: fmt.Sprintf("identity field %q is not declared", td.Identity),
			Pos:     v.Pos(),
		}
	}
	if idField.Kind != KindScalar || idField.IsList() {
		return &SchemaError{
			Field:   fmt.Sprintf("type.%s.identity", td.Name),
			Message: fmt.Sprintf("identity field %q must be a scalar", td.Identity),
			Pos:     v.Pos(),
		}
	}
	return nil
}

// parseField resolves a field type string against the declared types.
func (d *Descriptor) parseField(path, name string, v cue.Value) (Field, error) {
	typeName, err := v.String()
	if err != nil {
		return Field{}, &SchemaError{
			Field:   path,
			Message: "field type must be a string such as \"String\" or \"[Post]\"",
			Pos:     v.Pos(),
		}
	}
	base, depth, ok := parseTypeRef(typeName)
	if !ok {
		return Field{}, &SchemaError{
			Field:   path,
			Message: fmt.Sprintf("malformed type reference %q", typeName),
			Pos:     v.Pos(),
		}
	}

	f := Field{Name: name, TypeName: typeName, Base: base, ListDepth: depth, Kind: KindScalar}
	if td, ok := d.types[base]; ok {
		if td.Embedded {
			f.Kind = KindEmbedded
		} else {
			f.Kind = KindReference
		}
	}
	return f, nil
}

// parseRoots reads the query or mutation root map. Root fields must name
// declared types.
func (d *Descriptor) parseRoots(v cue.Value, op Operation) (map[string]Field, error) {
	roots := make(map[string]Field)
	rootVal := v.LookupPath(cue.ParsePath(string(op)))
	if !rootVal.Exists() {
		return roots, nil
	}

	iter, err := rootVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		path := fmt.Sprintf("%s.%s", op, iter.Label())
		f, err := d.parseField(path, iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		if _, declared := d.types[f.Base]; !declared {
			return nil, &SchemaError{
				Field:   path,
				Message: fmt.Sprintf("root field references undeclared type %q", f.Base),
				Pos:     iter.Value().Pos(),
			}
		}
		roots[f.Name] = f
	}
	return roots, nil
}

// formatCUEError keeps the first error and its position.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		return &SchemaError{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return &SchemaError{Field: "cue", Message: first.Error()}
}
