// Package journal records every action the runtime dispatches into an
// append-only SQLite table.
//
// The journal is diagnostic. It backs golden traces in the scenario harness and
// the trace command; nothing reads it back into the cache store.
//
// Payloads are stored as canonical JSON (see ir.MarshalCanonical) so two runs
// that dispatch the same actions produce byte-identical journals, and each row
// carries a domain-separated digest of its content.
package journal
