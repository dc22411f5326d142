package testutil

import (
	"github.com/gbproject/normgraph/internal/ir"
)

// Event builds an event occurrence. A nil children map leaves the field
// absent.
func Event(id, command string, children ir.Object) ir.Object {
	ev := ir.ObjectOf(
		ir.O("id", ir.String(id)),
		ir.O("command", ir.String(command)),
	)
	if children != nil {
		ev["children"] = children
	}
	return ev
}

// Branch is one entry of an event's children map.
type Branch struct {
	Key    string
	Events []ir.Value
}

// B is a shorthand for Branch.
func B(key string, events ...ir.Value) Branch {
	return Branch{Key: key, Events: events}
}

// Children builds an event children map from branches.
func Children(branches ...Branch) ir.Object {
	obj := make(ir.Object, len(branches))
	for _, b := range branches {
		obj[b.Key] = ir.ArrayOf(b.Events...)
	}
	return obj
}

// Actor builds an actor occurrence with the given script.
func Actor(id, name string, script ...ir.Value) ir.Object {
	return ir.ObjectOf(
		ir.O("id", ir.String(id)),
		ir.O("name", ir.String(name)),
		ir.O("x", ir.Int(0)),
		ir.O("y", ir.Int(0)),
		ir.O("script", ir.ArrayOf(script...)),
	)
}

// Trigger builds a trigger occurrence with the given script.
func Trigger(id string, script ...ir.Value) ir.Object {
	return ir.ObjectOf(
		ir.O("id", ir.String(id)),
		ir.O("width", ir.Int(1)),
		ir.O("height", ir.Int(1)),
		ir.O("script", ir.ArrayOf(script...)),
	)
}

// Scene builds a scene occurrence.
func Scene(id, name string, actors, triggers, script ir.Array) ir.Object {
	return ir.ObjectOf(
		ir.O("id", ir.String(id)),
		ir.O("name", ir.String(name)),
		ir.O("actors", orEmpty(actors)),
		ir.O("triggers", orEmpty(triggers)),
		ir.O("script", orEmpty(script)),
	)
}

// Leaf builds an occurrence of an entity type without nested fields.
func Leaf(id, name string) ir.Object {
	return ir.ObjectOf(
		ir.O("id", ir.String(id)),
		ir.O("name", ir.String(name)),
	)
}

// Project builds a document with scenes and every leaf root collection
// present and empty.
func Project(scenes ...ir.Value) ir.Object {
	return ir.ObjectOf(
		ir.O("name", ir.String("Test Project")),
		ir.O("scenes", ir.ArrayOf(scenes...)),
		ir.O("backgrounds", ir.Array{}),
		ir.O("music", ir.Array{}),
		ir.O("spriteSheets", ir.Array{}),
		ir.O("variables", ir.Array{}),
		ir.O("customEvents", ir.Array{}),
		ir.O("palettes", ir.Array{}),
	)
}

// SampleProject returns a small document that exercises every nested
// field shape of the project graph: two scenes, actors with scripts,
// a trigger whose script has conditional branches nested two deep, and
// one entry in each leaf collection.
func SampleProject() ir.Object {
	inner := Event("ev-inner", "EVENT_TEXT", nil)
	ifTrue := Event("ev-true", "EVENT_IF_TRUE", Children(
		B("true", inner),
		B("false"),
	))
	onFalse1 := Event("ev-false-1", "EVENT_TEXT", nil)
	onFalse2 := Event("ev-false-2", "EVENT_WAIT", nil)
	cond := Event("ev-cond", "EVENT_IF_FLAG", Children(
		B("true", ifTrue),
		B("false", onFalse1, onFalse2),
	))

	doc := Project(
		Scene("scene-1", "Town",
			ir.ArrayOf(
				Actor("actor-1", "Guard", Event("ev-greet", "EVENT_TEXT", nil)),
				Actor("actor-2", "Cat"),
			),
			ir.ArrayOf(Trigger("trigger-1", cond)),
			ir.ArrayOf(Event("ev-start", "EVENT_FADE_IN", nil)),
		),
		Scene("scene-2", "Cave", nil, nil, nil),
	)
	doc["backgrounds"] = ir.ArrayOf(Leaf("bg-1", "town.png"))
	doc["music"] = ir.ArrayOf(Leaf("music-1", "theme.mod"))
	doc["spriteSheets"] = ir.ArrayOf(Leaf("sprite-1", "guard.png"))
	doc["variables"] = ir.ArrayOf(Leaf("var-1", "hasKey"))
	doc["customEvents"] = ir.ArrayOf(Leaf("custom-1", "Open Door"))
	doc["palettes"] = ir.ArrayOf(Leaf("palette-1", "Default"))
	return doc
}

func orEmpty(arr ir.Array) ir.Array {
	if arr == nil {
		return ir.Array{}
	}
	return arr
}
