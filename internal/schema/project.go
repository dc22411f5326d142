package schema

import (
	_ "embed"
	"sync"
)

// ProjectVersion is the schema version of the built-in project graph.
const ProjectVersion = "project/v1"

// projectCUE is the CUE rendition of Project(). Kept in sync by tests.
//
//go:embed project.cue
var projectCUE []byte

// ProjectCUE returns the CUE source of the built-in project graph, as a
// starting point for alternative schema versions.
func ProjectCUE() []byte {
	return append([]byte(nil), projectCUE...)
}

var projectGraph = sync.OnceValue(func() *Graph {
	g, err := NewBuilder(ProjectVersion).
		Entity(Events,
			Branches("children", Events),
		).
		Entity(Actors,
			List("script", Events),
			List("startScript", Events),
			List("updateScript", Events),
			List("hit1Script", Events),
			List("hit2Script", Events),
			List("hit3Script", Events),
		).
		Entity(Triggers,
			List("script", Events),
		).
		Entity(Scenes,
			List("actors", Actors),
			List("triggers", Triggers),
			List("script", Events),
			List("playerHit1Script", Events),
			List("playerHit2Script", Events),
			List("playerHit3Script", Events),
		).
		Entity(Backgrounds).
		Entity(Music).
		Entity(SpriteSheets).
		Entity(Variables).
		Entity(CustomEvents).
		Entity(Palettes).
		Root("scenes", Scenes).
		Root("backgrounds", Backgrounds).
		Root("music", Music).
		Root("spriteSheets", SpriteSheets).
		Root("variables", Variables).
		Root("customEvents", CustomEvents).
		Root("palettes", Palettes).
		Build()
	if err != nil {
		panic("schema: invalid project graph: " + err.Error())
	}
	return g
})

// Project returns the shared, immutable graph of the game project format.
func Project() *Graph {
	return projectGraph()
}
