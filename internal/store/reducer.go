package store

import "github.com/roach88/graphcache/internal/ir"

// reduce is the store's pure reducer.
func reduce(prev State, action ir.Action) State {
	next := prev
	next.Version = prev.Version + 1

	if action.IsError {
		next.LastError = action.Err
		return next
	}

	next.Cache = merge(prev.Cache, action.Payload)
	next.LastError = nil
	return next
}

// merge applies payload to table copy-on-write. Only the type maps and
// records named in the payload are replaced; everything else is shared with
// the previous table.
func merge(table ir.EntityTable, payload ir.Delta) ir.EntityTable {
	if len(payload) == 0 {
		return table
	}

	next := make(ir.EntityTable, len(table)+len(payload))
	for typeName, byID := range table {
		next[typeName] = byID
	}

	for typeName, patches := range payload {
		if len(patches) == 0 {
			continue
		}
		prevByID := table[typeName]
		byID := make(map[string]ir.Record, len(prevByID)+len(patches))
		for id, rec := range prevByID {
			byID[id] = rec
		}
		for id, patch := range patches {
			merged := make(ir.Record, len(byID[id])+len(patch))
			for k, v := range byID[id] {
				merged[k] = v
			}
			for k, v := range patch {
				merged[k] = v
			}
			byID[id] = merged
		}
		next[typeName] = byID
	}
	return next
}
