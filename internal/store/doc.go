// Package store implements the cache store: a synchronous, subscribable
// container for the entity table.
//
// The store is a reducer plus an observer list. It schedules no work of its
// own; Dispatch merges, notifies every listener, and returns.
//
// # Merge Semantics
//
// A successful UPDATE_CACHE action is merged shallowly per entity:
//
//	state[type][id] = { ...state[type][id], ...payload[type][id] }
//
// The merge is copy-on-write. Types and entities absent from the payload
// keep their map identity across dispatches, so consumers can memoize on
// reference equality. Error actions never touch the entity table; the error
// value is kept in State.LastError.
//
// # Reentrancy
//
// Listeners may call GetState. A Dispatch issued while listeners are being
// notified, from a listener or from another goroutine, is merged at once and
// its notification round is queued behind the current one. Rounds run in
// dispatch order and never overlap. A listener that dispatches on every
// notification never lets the queue drain.
package store
