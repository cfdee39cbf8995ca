// Package schema derives a Descriptor from a CUE schema definition.
//
// The descriptor is built once at startup and tells the normalizer, for
// every declared type, which field carries the entity identity and which
// fields reference other entities.
//
// # Schema Format
//
//	type: User: {
//		identity: "id"                 // optional, defaults to "id"
//		fields: {
//			id:      "ID!"
//			name:    "String"
//			posts:   "[Post]"
//			address: "Address"
//		}
//	}
//	type: Address: {
//		embedded: true                 // value type, stored inline
//		fields: city: "String"
//	}
//	query:    { user: "User", posts: "[Post]" }
//	mutation: { createPost: "Post" }
//
// Field types use GraphQL notation. A trailing "!" is ignored and "[T]"
// marks a list. A field whose base type is a declared entity type is a
// reference; one whose base type is an embedded type is normalized inline;
// anything else is an opaque scalar.
package schema
