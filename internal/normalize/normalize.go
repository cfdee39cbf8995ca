// Package normalize flattens nested response trees into entity deltas.
//
// Normalize is a pure function: it never mutates its input and keeps no
// state between calls. Every object of a known entity type is stored once
// under delta[type][id]; wherever it appeared in the tree it is replaced by
// an ir.Ref.
package normalize

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/roach88/graphcache/internal/ir"
	"github.com/roach88/graphcache/internal/schema"
)

// TypenameField names the concrete type of an object in a response.
const TypenameField = "__typename"

// NormalizationError reports an object of a declared type whose identity
// field is missing or unusable.
type NormalizationError struct {
	Type    string
	Field   string
	Path    string
	Message string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize %s at %s: identity field %q %s", e.Type, e.Path, e.Field, e.Message)
}

// IsNormalizationError reports whether err wraps a NormalizationError.
func IsNormalizationError(err error) bool {
	var ne *NormalizationError
	return errors.As(err, &ne)
}

// Option configures a Normalize call.
type Option func(*options)

type options struct {
	aliases map[string]string
}

// WithAliases maps aliased top-level response keys to the root fields they
// select, as localread.RootAliases reports them for the request document.
func WithAliases(aliases map[string]string) Option {
	return func(o *options) {
		o.aliases = aliases
	}
}

// Normalize walks data and returns the delta of every entity it contains.
//
// Top-level keys are resolved in this order:
//  1. a root field of the query or mutation map, after resolving aliases:
//     typed by the root type
//  2. a declared entity type name holding an id -> object map: treated as an
//     already normalized collection, which makes Normalize idempotent
//  3. anything else: untyped, contributes nothing
func Normalize(desc *schema.Descriptor, data ir.Object, opts ...Option) (ir.Delta, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	n := &normalizer{desc: desc, delta: ir.NewDelta()}

	for _, key := range data.SortedKeys() {
		val := data[key]
		field := key
		if name, ok := o.aliases[key]; ok {
			field = name
		}
		if root, ok := desc.LookupRoot(field); ok {
			if _, err := n.walkField(root.Base, val, key); err != nil {
				return nil, err
			}
			continue
		}
		if desc.IsEntity(key) {
			if err := n.walkCollection(key, val); err != nil {
				return nil, err
			}
		}
	}

	return n.delta, nil
}

type normalizer struct {
	desc  *schema.Descriptor
	delta ir.Delta
}

// walkCollection re-normalizes an id -> record map of one type.
func (n *normalizer) walkCollection(typeName string, val ir.Value) error {
	byID, ok := val.(ir.Object)
	if !ok {
		return nil
	}
	for _, id := range byID.SortedKeys() {
		obj, ok := byID[id].(ir.Object)
		if !ok {
			continue
		}
		if _, err := n.walkEntity(typeName, obj, typeName+"."+id); err != nil {
			return err
		}
	}
	return nil
}

// walkField normalizes a value sitting under a field whose declared base type
// is typeName. Lists are walked element-wise at any depth.
func (n *normalizer) walkField(typeName string, val ir.Value, path string) (ir.Value, error) {
	switch v := val.(type) {
	case ir.Array:
		out := make(ir.Array, len(v))
		for i, elem := range v {
			e, err := n.walkField(typeName, elem, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out[i] = e
		}
		return out, nil
	case ir.Object:
		concrete := n.typeOf(v, typeName)
		td, ok := n.desc.Type(concrete)
		if !ok {
			return v, nil
		}
		if td.Embedded {
			return n.walkEmbedded(td, v, path)
		}
		return n.walkEntity(concrete, v, path)
	default:
		// Null, Ref and scalars pass through.
		return val, nil
	}
}

// typeOf prefers a declared __typename over the field's declared type, so
// interface and union members land in their concrete table.
func (n *normalizer) typeOf(obj ir.Object, declared string) string {
	if tn, ok := obj[TypenameField].(ir.String); ok {
		if _, known := n.desc.Type(string(tn)); known {
			return string(tn)
		}
	}
	return declared
}

// walkEntity stores obj under delta[typeName][id] and returns its Ref.
func (n *normalizer) walkEntity(typeName string, obj ir.Object, path string) (ir.Value, error) {
	td, _ := n.desc.Type(typeName)

	id, err := identityOf(td, obj, path)
	if err != nil {
		return nil, err
	}

	rec, err := n.walkFields(td, obj, path)
	if err != nil {
		return nil, err
	}
	n.delta.Put(typeName, id, rec)
	return ir.NewRef(typeName, id), nil
}

// walkEmbedded normalizes the reference fields of a value object and keeps
// the object inline.
func (n *normalizer) walkEmbedded(td *schema.TypeDescriptor, obj ir.Object, path string) (ir.Value, error) {
	rec, err := n.walkFields(td, obj, path)
	if err != nil {
		return nil, err
	}
	return ir.Object(rec), nil
}

func (n *normalizer) walkFields(td *schema.TypeDescriptor, obj ir.Object, path string) (ir.Record, error) {
	rec := make(ir.Record, len(obj))
	for _, name := range obj.SortedKeys() {
		val := obj[name]
		f, declared := td.Field(name)
		if !declared || f.Kind == schema.KindScalar {
			rec[name] = val
			continue
		}
		out, err := n.walkField(f.Base, val, path+"."+name)
		if err != nil {
			return nil, err
		}
		rec[name] = out
	}
	return rec, nil
}

// identityOf extracts the entity id as a string key.
func identityOf(td *schema.TypeDescriptor, obj ir.Object, path string) (string, error) {
	raw, ok := obj[td.Identity]
	if !ok || ir.IsNull(raw) {
		return "", &NormalizationError{
			Type:    td.Name,
			Field:   td.Identity,
			Path:    path,
			Message: "missing",
		}
	}
	switch v := raw.(type) {
	case ir.String:
		return string(v), nil
	case ir.Int:
		return strconv.FormatInt(int64(v), 10), nil
	default:
		return "", &NormalizationError{
			Type:    td.Name,
			Field:   td.Identity,
			Path:    path,
			Message: fmt.Sprintf("must be a string or int, got %s", ir.KindOf(raw)),
		}
	}
}
