package ir

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_SortedAndUnescaped(t *testing.T) {
	got, err := MarshalCanonical(Object{"b": String("<&>"), "a": Int(1)})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":"<&>"}`, string(got))
}

func TestMarshalCanonical_Refs(t *testing.T) {
	got, err := MarshalCanonical(Record{"author": NewRef("User", "1")})
	require.NoError(t, err)
	assert.Equal(t, `{"author":{"__ref":"User:1"}}`, string(got))
}

func TestMarshalCanonical_Floats(t *testing.T) {
	got, err := MarshalCanonical(Array{Float(2), Float(0.5), Float(1e21)})
	require.NoError(t, err)
	assert.Equal(t, `[2,0.5,1e+21]`, string(got))

	_, err = MarshalCanonical(Float(math.NaN()))
	require.Error(t, err)
}

func TestMarshalCanonical_NFC(t *testing.T) {
	// "e" + combining acute accent normalizes to U+00E9.
	got, err := MarshalCanonical(String("e\u0301"))
	require.NoError(t, err)
	assert.Equal(t, "\"\u00e9\"", string(got))
}

func TestMarshalCanonical_LineSeparators(t *testing.T) {
	got, err := MarshalCanonical(String("a\u2028b"))
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\"", string(got))

	got, err = MarshalCanonical(String(`a\u2028b`))
	require.NoError(t, err)
	assert.Equal(t, `"a\\u2028b"`, string(got))
}

func TestTableDigest_ContentAddressed(t *testing.T) {
	a := EntityTable{"User": {"1": Record{"name": String("Ann")}}}
	b := EntityTable{"User": {"1": Record{"name": String("Ann")}}}

	da, err := TableDigest(a)
	require.NoError(t, err)
	db, err := TableDigest(b)
	require.NoError(t, err)
	assert.Equal(t, da, db)

	b["User"]["1"]["name"] = String("Bob")
	db2, err := TableDigest(b)
	require.NoError(t, err)
	assert.NotEqual(t, da, db2)
}
