package ir

import (
	"slices"
)

// Record holds the fields of a single entity. Relationship fields hold Ref
// values (or arrays of them), never nested entity objects.
type Record map[string]Value

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Object views the record as an Object.
func (r Record) Object() Object {
	return Object(r)
}

// EntityTable maps type name -> entity id -> record.
//
// Tables handed out by the store are shared snapshots: callers must treat
// them as immutable.
type EntityTable map[string]map[string]Record

// Lookup returns the record for (typeName, id).
func (t EntityTable) Lookup(typeName, id string) (Record, bool) {
	byID, ok := t[typeName]
	if !ok {
		return nil, false
	}
	rec, ok := byID[id]
	return rec, ok
}

// Resolve follows a reference.
func (t EntityTable) Resolve(ref Ref) (Record, bool) {
	return t.Lookup(ref.Type, ref.ID)
}

// IDs returns the ids of typeName in ascending order.
func (t EntityTable) IDs(typeName string) []string {
	byID := t[typeName]
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// TypeNames returns the type names present in the table, sorted.
func (t EntityTable) TypeNames() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Len returns the total number of entities.
func (t EntityTable) Len() int {
	n := 0
	for _, byID := range t {
		n += len(byID)
	}
	return n
}

// Object renders the table as a nested Object (type -> id -> record).
func (t EntityTable) Object() Object {
	out := make(Object, len(t))
	for typeName, byID := range t {
		entities := make(Object, len(byID))
		for id, rec := range byID {
			entities[id] = Object(rec)
		}
		out[typeName] = entities
	}
	return out
}

// Delta is the set of entities touched by one response. It has the shape of
// an EntityTable and is used as a merge patch.
type Delta = EntityTable

// NewDelta returns an empty delta.
func NewDelta() Delta {
	return Delta{}
}

// Put merges rec into the delta entry for (typeName, id), field by field.
// Later fields win.
func (t EntityTable) Put(typeName, id string, rec Record) {
	byID, ok := t[typeName]
	if !ok {
		byID = make(map[string]Record)
		t[typeName] = byID
	}
	existing, ok := byID[id]
	if !ok {
		byID[id] = rec
		return
	}
	merged := existing.Clone()
	for k, v := range rec {
		merged[k] = v
	}
	byID[id] = merged
}

// Patch builds a single-entity delta.
func Patch(typeName, id string, rec Record) Delta {
	return Delta{typeName: {id: rec}}
}

// Equal reports deep equality of two tables.
func (t EntityTable) Equal(other EntityTable) bool {
	return Equal(t.Object(), other.Object())
}
