package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueSealed(t *testing.T) {
	var _ Value = Null{}
	var _ Value = String("test")
	var _ Value = Int(42)
	var _ Value = Float(1.5)
	var _ Value = Bool(true)
	var _ Value = Array{String("a"), Int(1)}
	var _ Value = Object{"key": String("value")}
}

func TestObjectSortedKeys(t *testing.T) {
	obj := Object{
		"zebra":  String("z"),
		"apple":  String("a"),
		"banana": String("b"),
	}

	assert.Equal(t, []string{"apple", "banana", "zebra"}, obj.SortedKeys())
}

func TestObjectSortedKeysUTF16Order(t *testing.T) {
	// U+FF61 sorts before U+1F600 in UTF-8 byte order but after it in
	// UTF-16 code units (0xFF61 > 0xD83D surrogate).
	obj := Object{
		"\uFF61":     Int(1),
		"\U0001F600": Int(2),
		"A":          Int(3),
		"a":          Int(4),
	}

	assert.Equal(t, []string{"A", "a", "\U0001F600", "\uFF61"}, obj.SortedKeys())
}

func TestObjectOf(t *testing.T) {
	obj := ObjectOf(O("id", String("s1")), O("x", Int(3)))

	assert.Equal(t, Object{"id": String("s1"), "x": Int(3)}, obj)
	assert.Equal(t, Array{String("a"), String("b")}, Strings("a", "b"))
}

func TestObjectJSONRoundTrip(t *testing.T) {
	src := []byte(`{"id":"a1","x":3,"speed":1.5,"flag":true,"note":null,"tags":["t1",2],"nested":{"k":"v"}}`)

	var obj Object
	require.NoError(t, json.Unmarshal(src, &obj))

	assert.Equal(t, String("a1"), obj["id"])
	assert.Equal(t, Int(3), obj["x"])
	assert.Equal(t, Float(1.5), obj["speed"])
	assert.Equal(t, Bool(true), obj["flag"])
	assert.Equal(t, Null{}, obj["note"])
	assert.Equal(t, Array{String("t1"), Int(2)}, obj["tags"])
	assert.Equal(t, Object{"k": String("v")}, obj["nested"])

	out, err := json.Marshal(obj)
	require.NoError(t, err)

	var again Object
	require.NoError(t, json.Unmarshal(out, &again))
	assert.Equal(t, obj, again)
}

func TestObjectUnmarshalRejectsNonObject(t *testing.T) {
	var obj Object
	err := json.Unmarshal([]byte(`[1,2]`), &obj)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected JSON object")
}

func TestUnmarshalValueLargeInteger(t *testing.T) {
	v, err := UnmarshalValue([]byte(`9007199254740993`))

	require.NoError(t, err)
	assert.Equal(t, Int(9007199254740993), v)
}

func TestMarshalValueIntegralFloatKeepsFraction(t *testing.T) {
	b, err := MarshalValue(Float(2))

	require.NoError(t, err)
	assert.Equal(t, "2.0", string(b))

	v, err := UnmarshalValue(b)
	require.NoError(t, err)
	assert.Equal(t, Float(2), v)
}

func TestMarshalValueNil(t *testing.T) {
	_, err := MarshalValue(nil)
	assert.Error(t, err)
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{Null{}, "null"},
		{String("s"), "string"},
		{Int(1), "number"},
		{Float(1.5), "number"},
		{Bool(false), "bool"},
		{Array{}, "array"},
		{Object{}, "object"},
		{nil, "missing"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KindOf(tt.v))
	}
}
