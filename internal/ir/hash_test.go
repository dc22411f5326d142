package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigestStableAcrossKeyOrder(t *testing.T) {
	a := Object{"x": Int(1), "y": String("two")}
	b := Object{"y": String("two"), "x": Int(1)}

	da, err := Digest(DomainTables, a)
	require.NoError(t, err)
	db, err := Digest(DomainTables, b)
	require.NoError(t, err)

	assert.Equal(t, da, db)
	assert.Len(t, da, 64)
}

func TestDigestDomainSeparation(t *testing.T) {
	v := Object{"x": Int(1)}

	assert.NotEqual(t, MustDigest(DomainTables, v), MustDigest(DomainEntity, v))
}

func TestDigestDetectsContentChange(t *testing.T) {
	a := Object{"ids": Strings("a", "b")}
	b := Object{"ids": Strings("b", "a")}

	assert.NotEqual(t, MustDigest(DomainTables, a), MustDigest(DomainTables, b))
}

func TestMustDigestPanicsOnNil(t *testing.T) {
	assert.Panics(t, func() {
		MustDigest(DomainTables, Array{nil})
	})
}
