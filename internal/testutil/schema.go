package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/graphcache/internal/schema"
)

// BlogSchema is the fixture schema shared by package tests: users write
// posts, posts collect comments, and addresses are embedded in users.
const BlogSchema = `
type: User: {
	fields: { id: "ID!", name: "String", email: "String", posts: "[Post]", address: "Address" }
}
type: Post: {
	fields: { id: "ID!", title: "String", authorId: "ID", author: "User", comments: "[Comment]", commentIds: "[ID]" }
}
type: Comment: {
	fields: { id: "ID!", postId: "ID", text: "String" }
}
type: Address: {
	embedded: true
	fields: { city: "String", owner: "User" }
}
query: { user: "User", post: "Post", posts: "[Post]", comments: "[Comment]" }
mutation: { comment: "Comment", createComment: "Comment", deleteComment: "Comment", updateUser: "User" }
`

// Schema compiles BlogSchema.
func Schema(t testing.TB) *schema.Descriptor {
	t.Helper()
	d, err := schema.CompileString(BlogSchema)
	require.NoError(t, err)
	return d
}
