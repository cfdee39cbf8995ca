package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSON_NumberKinds(t *testing.T) {
	v, err := DecodeJSON([]byte(`{"count": 3, "price": 9.5, "big": 9007199254740993}`))
	require.NoError(t, err)

	obj := v.(Object)
	assert.Equal(t, Int(3), obj["count"])
	assert.Equal(t, Float(9.5), obj["price"])
	assert.Equal(t, Int(9007199254740993), obj["big"], "int64 precision must survive decoding")
}

func TestDecodeJSON_NullAndNesting(t *testing.T) {
	v, err := DecodeJSON([]byte(`{"user": {"id": "1", "tags": ["a", null]}}`))
	require.NoError(t, err)

	user := v.(Object)["user"].(Object)
	assert.Equal(t, String("1"), user["id"])
	assert.Equal(t, Array{String("a"), Null{}}, user["tags"])
}

func TestDecodeObject_RejectsNonObject(t *testing.T) {
	_, err := DecodeObject([]byte(`[1,2]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected JSON object")
}

func TestSortedKeys_UTF16Order(t *testing.T) {
	// U+1F600 encodes as a surrogate pair (0xD83D...) which sorts before U+FF61
	// in UTF-16 but after it in UTF-8.
	obj := Object{"\U0001F600": Int(1), "\uFF61": Int(2), "a": Int(3)}
	assert.Equal(t, []string{"a", "\U0001F600", "\uFF61"}, obj.SortedKeys())
}

func TestEqual(t *testing.T) {
	a := NewObject(O("id", String("1")), O("tags", Strings("x", "y")), O("author", NewRef("User", "2")))
	b := NewObject(O("id", String("1")), O("tags", Strings("x", "y")), O("author", NewRef("User", "2")))
	assert.True(t, Equal(a, b))

	b["tags"] = Strings("x")
	assert.False(t, Equal(a, b))

	assert.True(t, Equal(nil, Null{}))
	assert.False(t, Equal(Int(1), String("1")))
}

func TestToGoRoundTrip(t *testing.T) {
	v := NewObject(O("n", Int(2)), O("f", Float(1.5)), O("ref", NewRef("Post", "5")), O("list", Strings("a")))
	g := ToGo(v).(map[string]any)

	assert.Equal(t, int64(2), g["n"])
	assert.Equal(t, 1.5, g["f"])
	assert.Equal(t, "Post:5", g["ref"])
	assert.Equal(t, []any{"a"}, g["list"])
}

func TestParseRefKey(t *testing.T) {
	ref, ok := ParseRefKey("Comment:a:b")
	require.True(t, ok)
	assert.Equal(t, NewRef("Comment", "a:b"), ref)

	_, ok = ParseRefKey("nocolon")
	assert.False(t, ok)
}
