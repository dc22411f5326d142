package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecursions_ProjectGraph(t *testing.T) {
	recs := Project().Recursions()

	require.Len(t, recs, 1)
	assert.Equal(t, []EntityType{Events, Events}, recs[0].Path)
	assert.Equal(t, "events nest themselves", recs[0].Message)

	assert.True(t, Project().IsRecursive(Events))
	assert.False(t, Project().IsRecursive(Scenes))
	assert.False(t, Project().IsRecursive(Music))
}

func TestRecursions_DAG(t *testing.T) {
	g, err := NewBuilder("t").
		Entity("posts", List("comments", "comments"), Single("author", "authors")).
		Entity("comments", Single("author", "authors")).
		Entity("authors").
		Build()
	require.NoError(t, err)

	recs := g.Recursions()
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
}

func TestRecursions_TwoTypeCycle(t *testing.T) {
	g, err := NewBuilder("t").
		Entity("folders", List("files", "files")).
		Entity("files", Single("parent", "folders")).
		Build()
	require.NoError(t, err)

	recs := g.Recursions()
	require.Len(t, recs, 1)
	assert.Equal(t, []EntityType{"folders", "files", "folders"}, recs[0].Path)
	assert.Equal(t, "mutual nesting: folders -> files -> folders", recs[0].Message)
	assert.True(t, g.IsRecursive("files"))
}

func TestRecursions_ThreeTypeCycle(t *testing.T) {
	g, err := NewBuilder("t").
		Entity("a", Single("next", "b")).
		Entity("b", Single("next", "c")).
		Entity("c", Single("next", "a")).
		Build()
	require.NoError(t, err)

	recs := g.Recursions()
	require.Len(t, recs, 1)
	assert.Equal(t, []EntityType{"a", "b", "c", "a"}, recs[0].Path)
}

func TestRecursions_IndependentCycles(t *testing.T) {
	g, err := NewBuilder("t").
		Entity("events", Branches("children", "events")).
		Entity("menus", List("submenus", "menus")).
		Entity("leaves").
		Build()
	require.NoError(t, err)

	recs := g.Recursions()
	require.Len(t, recs, 2)
	assert.Equal(t, EntityType("events"), recs[0].Path[0])
	assert.Equal(t, EntityType("menus"), recs[1].Path[0])
	assert.False(t, g.IsRecursive("leaves"))
}

func TestRecursions_RepeatedTargetIsOneEdge(t *testing.T) {
	g, err := NewBuilder("t").
		Entity("actors", List("script", "events"), List("startScript", "events")).
		Entity("events").
		Build()
	require.NoError(t, err)

	assert.Equal(t, []EntityType{"events"}, g.dependencies()["actors"])
	assert.Empty(t, g.Recursions())
}

func TestTarjanSCC_SingleNode(t *testing.T) {
	sccs := tarjanSCC([]EntityType{"a"}, dependencyGraph{"a": {}})
	assert.Equal(t, [][]EntityType{{"a"}}, sccs)
}

func TestHasSelfLoop(t *testing.T) {
	deps := dependencyGraph{"a": {"a"}, "b": {"a"}}
	assert.True(t, hasSelfLoop("a", deps))
	assert.False(t, hasSelfLoop("b", deps))
}
