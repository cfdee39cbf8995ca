package runtime

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/graphcache/internal/ir"
	"github.com/roach88/graphcache/internal/localread"
)

// Mutation is a mutation document plus the cache updates to run after its
// response has been dispatched.
type Mutation struct {
	Document    string
	UpdateCache []CacheUpdater
}

// Validate reports a missing document as a *ir.ConfigurationError.
func (m Mutation) Validate() error {
	if strings.TrimSpace(m.Document) == "" {
		return ir.NewConfigurationError("mutation", "you have to declare the mutation document")
	}
	return nil
}

// CacheUpdater derives a parent update from the mutation's primary entity,
// the raw response value under the mutation's first root field.
type CacheUpdater func(primary ir.Value) CacheUpdate

// CacheUpdate names the parent entity to patch. Resolve receives a copy of
// the parent record and returns the fields to merge into it.
type CacheUpdate struct {
	ParentType string
	ParentID   string
	Resolve    func(parent ir.Record) (ir.Record, error)
}

// cascade runs a mutation's updaters in order after its primary dispatch.
// Called only from the Run goroutine.
func (r *Runtime) cascade(ctx context.Context, op *operation, data ir.Object) {
	primary := primaryEntity(op.document, data)
	for i, updater := range op.updaters {
		r.applyUpdater(ctx, op, i, updater, primary)
	}
}

func (r *Runtime) applyUpdater(ctx context.Context, op *operation, index int, updater CacheUpdater, primary ir.Value) {
	var update CacheUpdate
	patch, found, err := func() (patch ir.Record, found bool, err error) {
		defer func() {
			if v := recover(); v != nil {
				err = &PanicError{Value: v}
			}
		}()

		update = updater(primary)
		parent, ok := r.store.GetState().Cache.Lookup(update.ParentType, update.ParentID)
		if !ok {
			return nil, false, nil
		}
		if update.Resolve == nil {
			return nil, true, fmt.Errorf("update has no resolve function")
		}
		patch, err = update.Resolve(parent.Clone())
		return patch, true, err
	}()

	switch {
	case err != nil:
		r.metrics.cascade("failed")
		cerr := &CascadeError{
			OperationID: op.id,
			Index:       index,
			ParentType:  update.ParentType,
			ParentID:    update.ParentID,
			Err:         err,
		}
		r.logger.Warn("cascade update failed",
			"operation", op.id,
			"index", index,
			"error", err)
		r.dispatch(ctx, op.id, ir.ErrorAction(cerr))

	case !found:
		r.metrics.cascade("skipped")
		r.logger.Debug("cascade parent not cached",
			"operation", op.id,
			"index", index,
			"parent_type", update.ParentType,
			"parent_id", update.ParentID)

	default:
		r.metrics.cascade("applied")
		r.dispatch(ctx, op.id, ir.UpdateAction(ir.Patch(update.ParentType, update.ParentID, patch)))
	}
}

// primaryEntity picks the response value under the document's first root
// field, falling back to the lexically first data key.
func primaryEntity(document string, data ir.Object) ir.Value {
	if keys, err := localread.RootKeys(document); err == nil && len(keys) > 0 {
		if v, ok := data[keys[0]]; ok {
			return v
		}
	}
	keys := data.SortedKeys()
	if len(keys) == 0 {
		return ir.Null{}
	}
	return data[keys[0]]
}

// ListUpdate is a declarative cache updater that adds or removes the primary
// entity's ValueField to or from the ListField of the parent whose id is the
// primary entity's ParentIDField.
//
// For a created comment {id: "9", postId: "5"}:
//
//	ListUpdate{ParentType: "Post", ParentIDField: "postId", ListField: "commentIds", ValueField: "id"}
//
// appends "9" to Post "5".commentIds.
type ListUpdate struct {
	ParentType    string `yaml:"parent_type" json:"parent_type"`
	ParentIDField string `yaml:"parent_id_field" json:"parent_id_field"`
	ListField     string `yaml:"list_field" json:"list_field"`
	ValueField    string `yaml:"value_field" json:"value_field"`
	Remove        bool   `yaml:"remove,omitempty" json:"remove,omitempty"`
}

// ParseListUpdate parses "Type:parentIDField:listField:valueField".
func ParseListUpdate(expr string, remove bool) (ListUpdate, error) {
	parts := strings.Split(expr, ":")
	if len(parts) != 4 || slices.Contains(parts, "") {
		return ListUpdate{}, ir.NewConfigurationError("update_cache",
			"expected Type:parentIdField:listField:valueField, got %q", expr)
	}
	return ListUpdate{
		ParentType:    parts[0],
		ParentIDField: parts[1],
		ListField:     parts[2],
		ValueField:    parts[3],
		Remove:        remove,
	}, nil
}

// Updater builds the CacheUpdater.
func (u ListUpdate) Updater() CacheUpdater {
	if u.Remove {
		return RemoveFromList(u.ParentType, u.ParentIDField, u.ListField, u.ValueField)
	}
	return AppendToList(u.ParentType, u.ParentIDField, u.ListField, u.ValueField)
}

// AppendToList appends primary[valueField] to parent[listField] unless the
// list already contains it.
func AppendToList(parentType, parentIDField, listField, valueField string) CacheUpdater {
	return listUpdater(parentType, parentIDField, listField, valueField, func(list ir.Array, value ir.Value) ir.Array {
		for _, v := range list {
			if ir.Equal(v, value) {
				return list
			}
		}
		return append(slices.Clone(list), value)
	})
}

// RemoveFromList removes every occurrence of primary[valueField] from
// parent[listField].
func RemoveFromList(parentType, parentIDField, listField, valueField string) CacheUpdater {
	return listUpdater(parentType, parentIDField, listField, valueField, func(list ir.Array, value ir.Value) ir.Array {
		out := make(ir.Array, 0, len(list))
		for _, v := range list {
			if !ir.Equal(v, value) {
				out = append(out, v)
			}
		}
		return out
	})
}

func listUpdater(parentType, parentIDField, listField, valueField string, edit func(ir.Array, ir.Value) ir.Array) CacheUpdater {
	return func(primary ir.Value) CacheUpdate {
		obj, _ := primary.(ir.Object)
		parentID, _ := ir.IDString(obj[parentIDField])
		value := obj[valueField]

		return CacheUpdate{
			ParentType: parentType,
			ParentID:   parentID,
			Resolve: func(parent ir.Record) (ir.Record, error) {
				if ir.IsNull(value) {
					return nil, fmt.Errorf("primary entity has no %q", valueField)
				}
				var list ir.Array
				switch existing := parent[listField].(type) {
				case nil, ir.Null:
				case ir.Array:
					list = existing
				default:
					return nil, fmt.Errorf("%s.%s is %s, not a list", parentType, listField, ir.KindOf(existing))
				}
				return ir.Record{listField: edit(list, value)}, nil
			},
		}
	}
}
