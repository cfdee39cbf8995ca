// Package localread evaluates GraphQL documents against the cached entity
// table without touching the network.
//
// Root fields are resolved through the schema's query root map:
//
//	user(id: 1) { name }      a single entity type; the entity whose identity
//	                          equals the id argument
//	posts(authorId: 1) { id } a list of an entity type; every cached entity of
//	                          that type, ordered by id and filtered by equality
//	                          on the given arguments
//
// Reference fields are followed into the table. Aliases, fragment spreads,
// inline fragments and the @skip / @include directives are honoured. Fields
// that are not cached resolve to null, so a read against an empty cache
// succeeds with null data rather than failing.
package localread
