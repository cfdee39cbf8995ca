package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/graphcache/internal/ir"
	"github.com/roach88/graphcache/internal/journal"
	"github.com/roach88/graphcache/internal/testutil"
)

func resultWith(cache ir.EntityTable) *Result {
	r := NewResult()
	r.Cache = cache
	return r
}

func TestAssertEntity(t *testing.T) {
	r := resultWith(ir.EntityTable{
		"User": {"1": {"id": ir.String("1"), "name": ir.String("Ann"), "age": ir.Int(30), "best": ir.NewRef("User", "2")}},
	})

	assert.NoError(t, assertEntity(r, Assertion{Entity: "User:1", Expect: map[string]any{"name": "Ann", "age": 30}}))
	assert.NoError(t, assertEntity(r, Assertion{Entity: "User:1", Expect: map[string]any{"best": "User:2"}}))

	err := assertEntity(r, Assertion{Entity: "User:9", Expect: map[string]any{"name": "Ann"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found in cache")

	err = assertEntity(r, Assertion{Entity: "User:1", Expect: map[string]any{"email": "x"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `field "email" to exist`)

	err = assertEntity(r, Assertion{Entity: "User:1", Expect: map[string]any{"age": "30"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "User:1.age = 30")
}

func TestAssertAbsent(t *testing.T) {
	r := resultWith(ir.EntityTable{"User": {"1": {"id": ir.String("1")}}})

	assert.NoError(t, assertAbsent(r, Assertion{Entity: "User:2"}))
	assert.Error(t, assertAbsent(r, Assertion{Entity: "User:1"}))
}

func TestAssertLastError(t *testing.T) {
	clean := NewResult()
	failed := NewResult()
	failed.LastError = "transport /graphql: network down"

	assert.NoError(t, assertLastError(clean, Assertion{}))
	assert.Error(t, assertLastError(failed, Assertion{}))
	assert.NoError(t, assertLastError(failed, Assertion{Contains: "network down"}))

	err := assertLastError(clean, Assertion{Contains: "network down"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no error state")
}

func TestAssertDispatchCount(t *testing.T) {
	r := NewResult()
	r.Dispatches = 2

	assert.NoError(t, assertDispatchCount(r, Assertion{Count: 2}))
	assert.Error(t, assertDispatchCount(r, Assertion{Count: 3}))
}

func TestAssertRead(t *testing.T) {
	desc := testutil.Schema(t)
	r := resultWith(ir.EntityTable{
		"User": {"1": {"id": ir.String("1"), "name": ir.String("Ann")}},
	})
	ctx := context.Background()

	assert.NoError(t, assertRead(ctx, desc, r, Assertion{
		Document: `{ user(id: "1") { name } }`,
		Expect:   map[string]any{"user": map[string]any{"name": "Ann"}},
	}))

	err := assertRead(ctx, desc, r, Assertion{
		Document: `{ user(id: "1") { name } }`,
		Expect:   map[string]any{"user": nil},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Assertion failed: read")

	err = assertRead(ctx, desc, r, Assertion{Document: `{ user(`, Expect: map[string]any{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "local read to succeed")
}

func TestEvaluateAssertions_ReadNeedsSchema(t *testing.T) {
	errs := EvaluateAssertions(NewResult(), []Assertion{{Type: AssertRead, Document: "{ a }"}}, nil)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "read requires a schema")
}

func TestEvaluateAssertions_UnknownType(t *testing.T) {
	errs := EvaluateAssertions(NewResult(), []Assertion{{Type: "trace_order"}}, &AssertionContext{})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], `unknown assertion type "trace_order"`)
}

func TestAssertionError_ListsDispatches(t *testing.T) {
	err := &AssertionError{
		Type:     AssertEntity,
		Expected: "a",
		Actual:   "b",
		Journal: []journal.Entry{
			{Seq: 1, OperationID: "op-1", Payload: `{"User":{}}`},
			{Seq: 2, OperationID: "op-2", IsError: true, Error: "boom"},
		},
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: entity")
	assert.Contains(t, msg, "Expected: a")
	assert.Contains(t, msg, "Actual: b")
	assert.Contains(t, msg, `[1] op-1 {"User":{}}`)
	assert.Contains(t, msg, "[2] op-2 error: boom")
}
