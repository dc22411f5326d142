package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalSortsKeysWithoutWhitespace(t *testing.T) {
	obj := Object{
		"b": Int(2),
		"a": Array{Bool(true), Null{}},
		"c": Object{"z": String("last"), "y": Float(0.25)},
	}

	b, err := MarshalCanonical(obj)

	require.NoError(t, err)
	assert.Equal(t, `{"a":[true,null],"b":2,"c":{"y":0.25,"z":"last"}}`, string(b))
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	b, err := MarshalCanonical(String("<a & b>"))

	require.NoError(t, err)
	assert.Equal(t, `"<a & b>"`, string(b))
}

func TestMarshalCanonicalNFC(t *testing.T) {
	// "e" + combining acute accent normalizes to U+00E9.
	b, err := MarshalCanonical(String("e\u0301"))

	require.NoError(t, err)
	assert.Equal(t, "\"\u00e9\"", string(b))
}

func TestMarshalCanonicalLineSeparatorsLiteral(t *testing.T) {
	b, err := MarshalCanonical(String("a\u2028b\u2029c"))

	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\u2029c\"", string(b))
}

func TestMarshalCanonicalKeepsEscapedBackslash(t *testing.T) {
	// A literal backslash followed by the text "u2028" must stay escaped.
	b, err := MarshalCanonical(String(`\u2028`))

	require.NoError(t, err)
	assert.Equal(t, `"\\u2028"`, string(b))
}

func TestMarshalCanonicalControlCharacters(t *testing.T) {
	b, err := MarshalCanonical(String("tab\tnl\n"))

	require.NoError(t, err)
	assert.Equal(t, `"tab\tnl\n"`, string(b))
}

func TestMarshalCanonicalNilRejected(t *testing.T) {
	_, err := MarshalCanonical(Array{nil})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "array[0]")
}

func TestMarshalCanonicalDeterministic(t *testing.T) {
	obj := Object{}
	for _, k := range []string{"q", "w", "e", "r", "t", "y"} {
		obj[k] = String(k)
	}

	first, err := MarshalCanonical(obj)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := MarshalCanonical(obj)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
