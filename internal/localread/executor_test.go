package localread

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/graphcache/internal/ir"
	"github.com/roach88/graphcache/internal/testutil"
)

func blogTable() ir.EntityTable {
	return ir.EntityTable{
		"User": {
			"1": {
				"id":      ir.String("1"),
				"name":    ir.String("Ann"),
				"posts":   ir.NewArray(ir.NewRef("Post", "10"), ir.NewRef("Post", "11")),
				"address": ir.Object{"city": ir.String("Oslo"), "owner": ir.NewRef("User", "1")},
			},
			"2": {"id": ir.String("2"), "name": ir.String("Bo")},
		},
		"Post": {
			"10": {"id": ir.String("10"), "title": ir.String("first"), "authorId": ir.String("1"), "author": ir.NewRef("User", "1")},
			"11": {"id": ir.String("11"), "title": ir.String("second"), "authorId": ir.String("1"), "author": ir.NewRef("User", "1")},
			"12": {"id": ir.String("12"), "title": ir.String("other"), "authorId": ir.String("2"), "author": ir.NewRef("User", "9")},
		},
	}
}

func execute(t *testing.T, table ir.EntityTable, document string, params ir.Object) ir.Object {
	t.Helper()
	var ex Executor
	res, err := ex.Execute(context.Background(), testutil.Schema(t), table, document, params)
	require.NoError(t, err)
	return res.Data
}

func TestExecute_EntityByIdentity(t *testing.T) {
	data := execute(t, blogTable(), `{ user(id: 1) { id name } }`, nil)
	assert.Equal(t, ir.Object{
		"user": ir.Object{"id": ir.String("1"), "name": ir.String("Ann")},
	}, data)
}

func TestExecute_Variables(t *testing.T) {
	data := execute(t, blogTable(), `query Q($id: ID!) { user(id: $id) { name } }`, ir.Object{"id": ir.String("2")})
	assert.Equal(t, ir.String("Bo"), data["user"].(ir.Object)["name"])
}

func TestExecute_VariableDefault(t *testing.T) {
	data := execute(t, blogTable(), `query Q($id: ID = "2") { user(id: $id) { name } }`, nil)
	assert.Equal(t, ir.String("Bo"), data["user"].(ir.Object)["name"])
}

func TestExecute_FollowsReferences(t *testing.T) {
	data := execute(t, blogTable(), `{ user(id: "1") { posts { title author { name } } } }`, nil)

	posts := data["user"].(ir.Object)["posts"].(ir.Array)
	require.Len(t, posts, 2)
	assert.Equal(t, ir.Object{
		"title":  ir.String("first"),
		"author": ir.Object{"name": ir.String("Ann")},
	}, posts[0])
}

func TestExecute_DanglingReferenceIsNull(t *testing.T) {
	data := execute(t, blogTable(), `{ posts(authorId: "2") { author { name } } }`, nil)
	posts := data["posts"].(ir.Array)
	require.Len(t, posts, 1)
	assert.Equal(t, ir.Null{}, posts[0].(ir.Object)["author"])
}

func TestExecute_ListOrderedByIDAndFiltered(t *testing.T) {
	data := execute(t, blogTable(), `{ posts { id } mine: posts(authorId: 1) { id } }`, nil)

	assert.Equal(t, ir.Array{
		ir.Object{"id": ir.String("10")},
		ir.Object{"id": ir.String("11")},
		ir.Object{"id": ir.String("12")},
	}, data["posts"])
	assert.Equal(t, ir.Array{
		ir.Object{"id": ir.String("10")},
		ir.Object{"id": ir.String("11")},
	}, data["mine"])
}

func TestExecute_EmptyCache(t *testing.T) {
	data := execute(t, ir.EntityTable{}, `{ user(id: 1) { name } posts { id } }`, nil)
	assert.Equal(t, ir.Null{}, data["user"])
	assert.Equal(t, ir.Array{}, data["posts"])
}

func TestExecute_UnknownFieldsAreNull(t *testing.T) {
	data := execute(t, blogTable(), `{ user(id: 1) { nickname } viewer { id } }`, nil)
	assert.Equal(t, ir.Object{"nickname": ir.Null{}}, data["user"])
	assert.Equal(t, ir.Null{}, data["viewer"])
}

func TestExecute_EmbeddedObject(t *testing.T) {
	data := execute(t, blogTable(), `{ user(id: 1) { address { city owner { name } } } }`, nil)
	assert.Equal(t, ir.Object{
		"city":  ir.String("Oslo"),
		"owner": ir.Object{"name": ir.String("Ann")},
	}, data["user"].(ir.Object)["address"])
}

func TestExecute_Fragments(t *testing.T) {
	doc := `
		query {
			user(id: 1) { ...UserBits ... on User { posts { id } } ... on Post { title } }
		}
		fragment UserBits on User { id name __typename }
	`
	data := execute(t, blogTable(), doc, nil)
	user := data["user"].(ir.Object)
	assert.Equal(t, ir.String("Ann"), user["name"])
	assert.Equal(t, ir.String("User"), user["__typename"])
	assert.Contains(t, user, "posts")
	assert.NotContains(t, user, "title")
}

func TestExecute_SkipInclude(t *testing.T) {
	doc := `query Q($full: Boolean!) { user(id: 1) { name id @include(if: $full) posts @skip(if: true) { id } } }`
	data := execute(t, blogTable(), doc, ir.Object{"full": ir.Bool(false)})
	assert.Equal(t, ir.Object{"name": ir.String("Ann")}, data["user"])
}

func TestExecute_NonIdentityArgumentFindsFirstMatch(t *testing.T) {
	data := execute(t, blogTable(), `{ post(title: "second") { id } }`, nil)
	assert.Equal(t, ir.Object{"id": ir.String("11")}, data["post"])
}

func TestExecute_ParseError(t *testing.T) {
	var ex Executor
	_, err := ex.Execute(context.Background(), testutil.Schema(t), blogTable(), `{ user(id: `, nil)
	require.Error(t, err)
	assert.True(t, IsQueryError(err))
}

func TestExecute_RequiresSchema(t *testing.T) {
	var ex Executor
	_, err := ex.Execute(context.Background(), nil, blogTable(), `{ a }`, nil)
	assert.True(t, ir.IsConfigurationError(err))
}

func TestRootKeys(t *testing.T) {
	keys, err := RootKeys(`mutation { created: createComment(text: "x") { id } ...More }
		fragment More on Mutation { updateUser { id } created: createComment { id } }`)
	require.NoError(t, err)
	assert.Equal(t, []string{"created", "updateUser"}, keys)
}

func TestRootAliases(t *testing.T) {
	aliases, err := RootAliases(`query { me: user(id: "1") { id } posts { id } ...Extra }
		fragment Extra on Query { top: posts { id } }`)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"me": "user", "top": "posts"}, aliases)

	aliases, err = RootAliases(`{ user { id } }`)
	require.NoError(t, err)
	assert.Empty(t, aliases)

	_, err = RootAliases(`{`)
	assert.True(t, IsQueryError(err))
}

func TestRootKeys_ParseError(t *testing.T) {
	_, err := RootKeys(`mutation {`)
	assert.True(t, IsQueryError(err))
}
