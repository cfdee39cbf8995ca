package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/graphcache/internal/ir"
)

func loadInline(t *testing.T, yaml string) *Scenario {
	t.Helper()
	s, err := LoadScenario(writeFixture(t, yaml))
	require.NoError(t, err)
	return s
}

func TestRun_QueryPopulatesCache(t *testing.T) {
	result, err := Run(loadInline(t, minimalScenario))
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, int64(1), result.Dispatches)
	require.Len(t, result.Journal, 1)
	assert.Equal(t, "op-1", result.Journal[0].OperationID)
	assert.Equal(t, `{"User":{"1":{"id":"1"}}}`, result.Journal[0].Payload)

	rec, ok := result.Cache.Lookup("User", "1")
	require.True(t, ok)
	assert.Equal(t, ir.Record{"id": ir.String("1")}, rec)
	assert.Empty(t, result.LastError)
}

func TestRun_FailedAssertionsAreReported(t *testing.T) {
	result, err := Run(loadInline(t, `
name: failing
description: assertions that do not hold
schema: schemas/blog.cue
responses:
  - document: '{ user(id: "1") { id name } }'
    data: { user: { id: "1", name: Ann } }
steps:
  - query: '{ user(id: "1") { id name } }'
assertions:
  - type: entity
    entity: User:1
    expect: { name: Bo }
  - type: absent
    entity: User:1
  - type: dispatch_count
    count: 5
  - type: last_error
    contains: boom
`))
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 4)
	assert.Contains(t, result.Errors[0], "Assertion failed: entity")
	assert.Contains(t, result.Errors[0], "User:1.name = Bo")
	assert.Contains(t, result.Errors[1], "Assertion failed: absent")
	assert.Contains(t, result.Errors[2], "5 dispatches")
	assert.Contains(t, result.Errors[3], `error containing "boom"`)
}

func TestRun_UnscriptedDocumentIsTransportError(t *testing.T) {
	result, err := Run(loadInline(t, `
name: unscripted
description: no reply for the document
schema: schemas/blog.cue
steps:
  - query: '{ post(id: "1") { id } }'
assertions:
  - type: last_error
    contains: no stubbed response
`))
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Journal, 1)
	assert.True(t, result.Journal[0].IsError)
	assert.Equal(t, "null", result.Journal[0].Payload)
}

func TestRun_PartialDataIsMerged(t *testing.T) {
	result, err := Run(loadInline(t, `
name: partial
description: data and errors together
schema: schemas/blog.cue
responses:
  - document: '{ user(id: "1") { id name email } }'
    data: { user: { id: "1", name: Ann, email: null } }
    errors:
      - message: email hidden
        path: [user, email]
steps:
  - query: '{ user(id: "1") { id name email } }'
assertions:
  - type: entity
    entity: User:1
    expect: { name: Ann, email: null }
  - type: last_error
`))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_InitialCacheReferences(t *testing.T) {
	result, err := Run(loadInline(t, `
name: refs
description: references in the initial cache are followed by reads
schema: schemas/blog.cue
initial_cache:
  User:
    "1": { id: "1", name: Ann }
  Post:
    "10": { id: "10", title: first, author: { __ref: "User:1" } }
responses:
  - document: '{ post(id: "10") { id title } }'
    data: { post: { id: "10", title: renamed } }
steps:
  - query: '{ post(id: "10") { id title } }'
assertions:
  - type: entity
    entity: Post:10
    expect: { title: renamed, author: "User:1" }
  - type: read
    document: 'query P($id: ID!) { post(id: $id) { title author { name } } }'
    params: { id: "10" }
    expect:
      post: { title: renamed, author: { name: Ann } }
`))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	rec, ok := result.Cache.Lookup("Post", "10")
	require.True(t, ok)
	assert.Equal(t, ir.NewRef("User", "1"), rec["author"])
}

func TestRun_MutationWithFiles(t *testing.T) {
	result, err := Run(loadInline(t, `
name: upload
description: a mutation carrying a file
schema: schemas/blog.cue
responses:
  - document: 'mutation { updateUser(id: "1") { id name } }'
    data: { updateUser: { id: "1", name: Ann } }
steps:
  - mutation: 'mutation { updateUser(id: "1") { id name } }'
    params: { id: "1" }
    files:
      - { field: avatar, name: avatar.png, content: png-bytes }
assertions:
  - type: entity
    entity: User:1
    expect: { name: Ann }
`))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_Deterministic(t *testing.T) {
	s := loadInline(t, minimalScenario)

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	a, err := SnapshotOf(s.Name, first).Marshal()
	require.NoError(t, err)
	b, err := SnapshotOf(s.Name, second).Marshal()
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRun_InvalidSchema(t *testing.T) {
	s := loadInline(t, minimalScenario)
	s.Schema = writeFixture(t, "not: [valid") // a file that is not a schema

	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load schema")
}

func TestValueFromYAML_Refs(t *testing.T) {
	v, err := valueFromYAML(map[string]any{
		"one":  map[string]any{"__ref": "User:1"},
		"many": []any{map[string]any{"__ref": "Post:2"}},
		"keep": map[string]any{"__ref": "User:1", "extra": true},
	})
	require.NoError(t, err)

	obj := v.(ir.Object)
	assert.Equal(t, ir.NewRef("User", "1"), obj["one"])
	assert.Equal(t, ir.Array{ir.NewRef("Post", "2")}, obj["many"])
	assert.IsType(t, ir.Object{}, obj["keep"])
}
