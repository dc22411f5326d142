package entities

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gbproject/normgraph/internal/ir"
	"github.com/gbproject/normgraph/internal/schema"
	tu "github.com/gbproject/normgraph/internal/testutil"
)

func TestTable_UnmarshalEmpty(t *testing.T) {
	var tbl Table
	require.NoError(t, json.Unmarshal([]byte(`{}`), &tbl))

	assert.NotNil(t, tbl.IDs)
	assert.NotNil(t, tbl.Entities)
	assert.Equal(t, 0, tbl.Len())
}

func TestTable_NilSafe(t *testing.T) {
	var tbl *Table

	assert.Equal(t, 0, tbl.Len())
	_, ok := tbl.Get("x")
	assert.False(t, ok)
}

func TestNormalized_JSONRoundTrip(t *testing.T) {
	e := New(nil)
	n, err := e.Normalize(tu.SampleProject())
	require.NoError(t, err)

	data, err := json.Marshal(n)
	require.NoError(t, err)

	var decoded Normalized
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.True(t, n.Entities.Equal(decoded.Entities))
	assert.True(t, ir.Equal(n.Result, decoded.Result))

	back, err := e.Denormalize(decoded.Entities, decoded.Result)
	require.NoError(t, err)
	assert.True(t, ir.Equal(tu.SampleProject(), back))
}

func TestTables_Complete(t *testing.T) {
	ts := Tables{schema.Scenes: NewTable()}
	ts.Complete(schema.Project())

	assert.Len(t, ts, len(schema.Project().Types()))
	for _, typ := range schema.Project().Types() {
		assert.NotNil(t, ts[typ])
	}
}

func TestTables_DigestDependsOnOrder(t *testing.T) {
	n, err := New(nil).Normalize(tu.SampleProject())
	require.NoError(t, err)

	d1, err := n.Entities.Digest()
	require.NoError(t, err)

	scenes := n.Entities[schema.Scenes]
	scenes.IDs[0], scenes.IDs[1] = scenes.IDs[1], scenes.IDs[0]

	d2, err := n.Entities.Digest()
	require.NoError(t, err)
	assert.NotEqual(t, d1, d2)
}

func TestTables_Counts(t *testing.T) {
	n, err := New(nil).Normalize(tu.SampleProject())
	require.NoError(t, err)

	counts := n.Entities.Counts()
	assert.Equal(t, 2, counts[schema.Actors])
	assert.Equal(t, 1, counts[schema.Palettes])
	assert.Equal(t, []string{"bg-1"}, n.RootIDs("backgrounds"))
}
