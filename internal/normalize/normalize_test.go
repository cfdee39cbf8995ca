package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/graphcache/internal/ir"
	"github.com/roach88/graphcache/internal/schema"
)

const testSchema = `
type: User: {
	fields: { id: "ID!", name: "String", posts: "[Post]", address: "Address", best: "User" }
}
type: Post: {
	fields: { id: "ID!", title: "String", author: "User", comments: "[Comment]", commentIds: "[ID]" }
}
type: Comment: {
	fields: { id: "ID!", postId: "ID", text: "String" }
}
type: Admin: {
	fields: { id: "ID!", level: "Int" }
}
type: Address: {
	embedded: true
	fields: { city: "String", owner: "User" }
}
query: { user: "User", posts: "[Post]", matrix: "[[Post]]" }
mutation: { comment: "Comment" }
`

func loadSchema(t *testing.T) *schema.Descriptor {
	t.Helper()
	d, err := schema.CompileString(testSchema)
	require.NoError(t, err)
	return d
}

func decode(t *testing.T, js string) ir.Object {
	t.Helper()
	obj, err := ir.DecodeObject([]byte(js))
	require.NoError(t, err)
	return obj
}

func TestNormalize_SingleEntity(t *testing.T) {
	d := loadSchema(t)
	delta, err := Normalize(d, decode(t, `{"user": {"id": "1", "name": "Ann"}}`))
	require.NoError(t, err)

	rec, ok := delta.Lookup("User", "1")
	require.True(t, ok)
	assert.Equal(t, ir.String("Ann"), rec["name"])
	assert.Equal(t, 1, delta.Len())
}

func TestNormalize_NestedEntitiesBecomeRefs(t *testing.T) {
	d := loadSchema(t)
	delta, err := Normalize(d, decode(t, `{
		"user": {
			"id": "1",
			"name": "Ann",
			"posts": [
				{"id": "5", "title": "Hello", "author": {"id": "1"},
				 "comments": [{"id": "9", "postId": "5", "text": "hi"}]}
			]
		}
	}`))
	require.NoError(t, err)

	user, _ := delta.Lookup("User", "1")
	assert.Equal(t, ir.Array{ir.NewRef("Post", "5")}, user["posts"])
	assert.Equal(t, ir.String("Ann"), user["name"], "back-reference merge must not drop fields")

	post, _ := delta.Lookup("Post", "5")
	assert.Equal(t, ir.NewRef("User", "1"), post["author"])
	assert.Equal(t, ir.Array{ir.NewRef("Comment", "9")}, post["comments"])

	comment, _ := delta.Lookup("Comment", "9")
	assert.Equal(t, ir.String("hi"), comment["text"])

	assert.Equal(t, 3, delta.Len())
}

func TestNormalize_CyclicReferences(t *testing.T) {
	d := loadSchema(t)
	delta, err := Normalize(d, decode(t, `{
		"user": {"id": "1", "best": {"id": "2", "best": {"id": "1", "name": "Ann"}}}
	}`))
	require.NoError(t, err)

	one, _ := delta.Lookup("User", "1")
	two, _ := delta.Lookup("User", "2")
	assert.Equal(t, ir.NewRef("User", "2"), one["best"])
	assert.Equal(t, ir.NewRef("User", "1"), two["best"])
	assert.Equal(t, ir.String("Ann"), one["name"])
}

func TestNormalize_IntIdentity(t *testing.T) {
	d := loadSchema(t)
	delta, err := Normalize(d, decode(t, `{"user": {"id": 42}}`))
	require.NoError(t, err)

	_, ok := delta.Lookup("User", "42")
	assert.True(t, ok)
}

func TestNormalize_TypenameSelectsConcreteType(t *testing.T) {
	d := loadSchema(t)
	delta, err := Normalize(d, decode(t, `{"user": {"__typename": "Admin", "id": "7", "level": 3}}`))
	require.NoError(t, err)

	_, ok := delta.Lookup("User", "7")
	assert.False(t, ok)
	admin, ok := delta.Lookup("Admin", "7")
	require.True(t, ok)
	assert.Equal(t, ir.Int(3), admin["level"])
}

func TestNormalize_UnknownTypenameFallsBackToDeclared(t *testing.T) {
	d := loadSchema(t)
	delta, err := Normalize(d, decode(t, `{"user": {"__typename": "Ghost", "id": "7"}}`))
	require.NoError(t, err)

	_, ok := delta.Lookup("User", "7")
	assert.True(t, ok)
}

func TestNormalize_EmbeddedStaysInline(t *testing.T) {
	d := loadSchema(t)
	delta, err := Normalize(d, decode(t, `{
		"user": {"id": "1", "address": {"city": "Oslo", "owner": {"id": "2", "name": "Bo"}}}
	}`))
	require.NoError(t, err)

	user, _ := delta.Lookup("User", "1")
	assert.Equal(t, ir.Object{"city": ir.String("Oslo"), "owner": ir.NewRef("User", "2")}, user["address"])

	owner, ok := delta.Lookup("User", "2")
	require.True(t, ok)
	assert.Equal(t, ir.String("Bo"), owner["name"])
}

func TestNormalize_NestedLists(t *testing.T) {
	d := loadSchema(t)
	delta, err := Normalize(d, decode(t, `{"matrix": [[{"id": "1"}], [{"id": "2"}, null]]}`))
	require.NoError(t, err)
	assert.Equal(t, 2, delta.Len())
}

func TestNormalize_UntypedPassThrough(t *testing.T) {
	d := loadSchema(t)
	delta, err := Normalize(d, decode(t, `{
		"user": {"id": "1", "tags": ["a", "b"], "meta": {"id": "x", "nested": {"k": 1}}},
		"serverTime": 12345
	}`))
	require.NoError(t, err)

	user, _ := delta.Lookup("User", "1")
	assert.Equal(t, ir.Strings("a", "b"), user["tags"])
	assert.Equal(t, ir.Object{"id": ir.String("x"), "nested": ir.Object{"k": ir.Int(1)}}, user["meta"])
	assert.Equal(t, 1, delta.Len(), "untyped roots contribute no entities")
}

func TestNormalize_AliasedRoots(t *testing.T) {
	d := loadSchema(t)
	data := decode(t, `{
		"me": {"id": "1", "name": "Ann"},
		"top": [{"id": "5", "title": "Hello"}]
	}`)

	delta, err := Normalize(d, data)
	require.NoError(t, err)
	assert.Equal(t, 0, delta.Len(), "without aliases the keys are untyped")

	delta, err = Normalize(d, data, WithAliases(map[string]string{"me": "user", "top": "posts"}))
	require.NoError(t, err)
	user, ok := delta.Lookup("User", "1")
	require.True(t, ok)
	assert.Equal(t, ir.String("Ann"), user["name"])
	_, ok = delta.Lookup("Post", "5")
	assert.True(t, ok)
}

func TestNormalize_AliasedRootMissingIdentity(t *testing.T) {
	d := loadSchema(t)
	_, err := Normalize(d, decode(t, `{"me": {"name": "Ann"}}`), WithAliases(map[string]string{"me": "user"}))
	require.Error(t, err)
	assert.True(t, IsNormalizationError(err))
}

func TestNormalize_NullReferenceKept(t *testing.T) {
	d := loadSchema(t)
	delta, err := Normalize(d, decode(t, `{"user": {"id": "1", "best": null}}`))
	require.NoError(t, err)

	user, _ := delta.Lookup("User", "1")
	assert.Equal(t, ir.Null{}, user["best"])
}

func TestNormalize_MissingOptionalFieldsIsFine(t *testing.T) {
	d := loadSchema(t)
	_, err := Normalize(d, decode(t, `{"user": {"id": "1"}, "posts": []}`))
	require.NoError(t, err)
}

func TestNormalize_MissingIdentity(t *testing.T) {
	d := loadSchema(t)
	_, err := Normalize(d, decode(t, `{"user": {"id": "1", "posts": [{"title": "no id"}]}}`))
	require.Error(t, err)
	assert.True(t, IsNormalizationError(err))

	var ne *NormalizationError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, "Post", ne.Type)
	assert.Equal(t, "id", ne.Field)
	assert.Equal(t, "user.posts[0]", ne.Path)
}

func TestNormalize_BadIdentityKind(t *testing.T) {
	d := loadSchema(t)
	_, err := Normalize(d, decode(t, `{"user": {"id": true}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be a string or int")
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	d := loadSchema(t)
	data := decode(t, `{"user": {"id": "1", "posts": [{"id": "5"}]}}`)
	_, err := Normalize(d, data)
	require.NoError(t, err)

	posts := data["user"].(ir.Object)["posts"].(ir.Array)
	_, stillObject := posts[0].(ir.Object)
	assert.True(t, stillObject)
}

func TestNormalize_Idempotent(t *testing.T) {
	d := loadSchema(t)
	inputs := []string{
		`{"user": {"id": "1", "name": "Ann"}}`,
		`{"user": {"id": "1", "posts": [{"id": "5", "author": {"id": "1"}, "comments": [{"id": "9"}]}]}}`,
		`{"user": {"id": "1", "address": {"city": "Oslo", "owner": {"id": "2"}}}}`,
		`{"comment": {"id": "9", "postId": "5", "text": "hi"}}`,
	}
	for _, in := range inputs {
		once, err := Normalize(d, decode(t, in))
		require.NoError(t, err)

		twice, err := Normalize(d, once.Object())
		require.NoError(t, err)

		assert.True(t, once.Equal(twice), "normalize(normalize(x)) != normalize(x) for %s", in)
	}
}
