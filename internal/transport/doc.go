// Package transport defines the collaborator the runtime uses to reach a
// GraphQL endpoint, plus two default implementations.
//
// A Transport receives an endpoint, a Request carrying either a query or a
// mutation document with its params, and optional files. It resolves to a
// Response whose Data is decoded into an ir.Object, or fails with an error.
// Retry and backoff are a transport concern; the runtime never retries.
//
// HTTP posts JSON (or multipart/form-data when files are attached) and guards
// the endpoint with a circuit breaker. WebSocket multiplexes requests over a
// single connection using request ids.
package transport
