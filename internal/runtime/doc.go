// Package runtime implements the query and mutation pipelines.
//
// A Runtime owns the single goroutine that writes to the cache store. Callers
// issue operations from any goroutine with PerformQuery and PerformMutation;
// each operation's transport call runs in its own goroutine and its outcome
// is enqueued for the Run loop, which normalizes the response and dispatches
// it. Dispatches are therefore serialized, and the primary dispatch of a
// mutation always precedes its cascade dispatches.
//
// Failures after the call returns (transport errors, GraphQL errors without
// data, normalization errors, failing cascade resolvers) never reach the
// caller. They are dispatched as error actions so every subscriber can see
// that the latest operation failed.
//
// Operations are not cancelled when the consumer that issued them goes away;
// their results are still dispatched.
package runtime
