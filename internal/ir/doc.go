// Package ir defines the value model shared by every other package: the
// sealed Value interface, tagged entity references, entity tables, deltas and
// the UPDATE_CACHE action.
//
// This package imports nothing internal. All other internal packages import
// ir; ir imports none of them.
//
// Key constraints:
//   - Relationships are Ref values, never embedded entity objects
//   - Tables returned by the store are immutable snapshots
//   - Canonical JSON (MarshalCanonical) is the only form used for digests
package ir
