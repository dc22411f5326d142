package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gbproject/normgraph/internal/ir"
	"github.com/gbproject/normgraph/internal/store"
	tu "github.com/gbproject/normgraph/internal/testutil"
)

func TestSnapshotSaveLoad(t *testing.T) {
	db := filepath.Join(t.TempDir(), "snapshots.db")

	stdout, _, err := execute(t, "snapshot", "--db", db, "save", "--name", "main", sampleDocument(t))
	require.NoError(t, err)
	assert.Contains(t, stdout, `✓ Saved snapshot "main" (18 entities in 10 tables)`)

	stdout, _, err = execute(t, "snapshot", "--db", db, "load", "--name", "main", "--denormalize")
	require.NoError(t, err)
	assert.True(t, ir.Equal(tu.SampleProject(), parseOutput(t, stdout)))

	stdout, _, err = execute(t, "snapshot", "--db", db, "load", "--name", "main")
	require.NoError(t, err)
	n, err := LoadNormalized(writeFile(t, "loaded.json", stdout), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"scene-1", "scene-2"}, n.RootIDs("scenes"))
}

func TestSnapshotSaveJSON(t *testing.T) {
	db := filepath.Join(t.TempDir(), "snapshots.db")

	stdout, _, err := execute(t, "--format", "json", "snapshot", "--db", db, "save", "--name", "main", sampleDocument(t))
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   SaveResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "main", resp.Data.Name)
	assert.Equal(t, "project/v1", resp.Data.Schema)
	assert.Len(t, resp.Data.Digest, 64)
}

func TestSnapshotSaveRequiresName(t *testing.T) {
	db := filepath.Join(t.TempDir(), "snapshots.db")

	_, _, err := execute(t, "snapshot", "--db", db, "save", sampleDocument(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name")
}

func TestSnapshotLoadNotFound(t *testing.T) {
	db := filepath.Join(t.TempDir(), "snapshots.db")

	stdout, _, err := execute(t, "snapshot", "--db", db, "load", "--name", "missing")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout, "Error ["+ErrCodeNotFound+"]")
}

func TestSnapshotList(t *testing.T) {
	db := filepath.Join(t.TempDir(), "snapshots.db")

	stdout, _, err := execute(t, "snapshot", "--db", db, "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "No snapshots")

	for _, name := range []string{"beta", "alpha"} {
		_, _, err := execute(t, "snapshot", "--db", db, "save", "--name", name, sampleDocument(t))
		require.NoError(t, err)
	}

	stdout, _, err = execute(t, "--format", "json", "snapshot", "--db", db, "list")
	require.NoError(t, err)

	var resp struct {
		Data []store.SnapshotInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "alpha", resp.Data[0].Name)
	assert.Equal(t, "beta", resp.Data[1].Name)
	assert.Equal(t, resp.Data[0].Digest, resp.Data[1].Digest)
	assert.Equal(t, 18, resp.Data[0].Entities)
}

func TestSnapshotHistory(t *testing.T) {
	db := filepath.Join(t.TempDir(), "snapshots.db")

	docs := []ir.Object{
		tu.Project(tu.Scene("s1", "Town", nil, nil, nil)),
		tu.Project(tu.Scene("s0", "Intro", nil, nil, nil), tu.Scene("s1", "Town", nil, nil, nil)),
		tu.Project(tu.Scene("s1", "City", nil, nil, nil)),
	}
	for i, doc := range docs {
		_, _, err := execute(t, "snapshot", "--db", db, "save", "--name", fmt.Sprintf("v%d", i+1), writeDocument(t, doc))
		require.NoError(t, err)
	}

	stdout, _, err := execute(t, "--format", "json", "snapshot", "--db", db, "history", "scenes:s1")
	require.NoError(t, err)

	var resp struct {
		Data []store.EntityVersion `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, int64(1), resp.Data[0].Seq)
	assert.Equal(t, int64(3), resp.Data[1].Seq)
	assert.NotEqual(t, resp.Data[0].ContentHash, resp.Data[1].ContentHash)

	stdout, _, err = execute(t, "snapshot", "--db", db, "history", "scenes:s1")
	require.NoError(t, err)
	assert.Contains(t, stdout, "#1 ")
	assert.Contains(t, stdout, "#3 ")

	stdout, _, err = execute(t, "snapshot", "--db", db, "history", "scenes:nope")
	require.NoError(t, err)
	assert.Contains(t, stdout, "No stored versions of scenes:nope")

	stdout, _, err = execute(t, "snapshot", "--db", db, "history", "widgets:w1")
	require.Error(t, err)
	assert.Contains(t, stdout, ErrCodeUnknownType)
}

func TestSnapshotDBFromConfig(t *testing.T) {
	db := filepath.Join(t.TempDir(), "configured.db")
	cfg := writeFile(t, "config.yaml", "log:\n  level: error\nstore:\n  path: "+db+"\n")

	stdout, _, err := execute(t, "--config", cfg, "snapshot", "save", "--name", "main", sampleDocument(t))
	require.NoError(t, err)
	assert.Contains(t, stdout, "Saved snapshot")

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()
	infos, err := st.ListSnapshots(t.Context())
	require.NoError(t, err)
	require.Len(t, infos, 1)
}

func TestShortDigest(t *testing.T) {
	assert.Equal(t, "abc", shortDigest("abc"))
	assert.Equal(t, "0123456789ab", shortDigest("0123456789abcdef"))
}
