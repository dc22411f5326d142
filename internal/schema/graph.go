package schema

import (
	"fmt"
	"slices"
)

// EntityType tags an entity family. Each type owns one table.
type EntityType string

// Project entity types.
const (
	Events       EntityType = "events"
	Actors       EntityType = "actors"
	Triggers     EntityType = "triggers"
	Scenes       EntityType = "scenes"
	Backgrounds  EntityType = "backgrounds"
	Music        EntityType = "music"
	SpriteSheets EntityType = "spriteSheets"
	Variables    EntityType = "variables"
	CustomEvents EntityType = "customEvents"
	Palettes     EntityType = "palettes"
)

// DefaultIDField is the identity field used when a definition names none.
const DefaultIDField = "id"

// Shape describes how a field holds nested entities.
type Shape int

const (
	// ShapeSingle holds one embedded entity; its reference is one id.
	ShapeSingle Shape = iota + 1
	// ShapeList holds an ordered list of entities; its reference is an id list.
	ShapeList
	// ShapeBranchMap maps branch keys to ordered entity lists; its
	// reference maps the same keys to id lists.
	ShapeBranchMap
)

// String returns the shape name used in CUE definitions.
func (s Shape) String() string {
	switch s {
	case ShapeSingle:
		return "single"
	case ShapeList:
		return "list"
	case ShapeBranchMap:
		return "branchMap"
	default:
		return fmt.Sprintf("Shape(%d)", int(s))
	}
}

// ParseShape is the inverse of Shape.String.
func ParseShape(s string) (Shape, error) {
	switch s {
	case "single":
		return ShapeSingle, nil
	case "list":
		return ShapeList, nil
	case "branchMap":
		return ShapeBranchMap, nil
	default:
		return 0, fmt.Errorf("unknown shape %q: must be single, list or branchMap", s)
	}
}

// Field declares a nested-entity field.
type Field struct {
	Name   string     `json:"name"`
	Target EntityType `json:"target"`
	Shape  Shape      `json:"-"`
}

// EntityDef declares one entity type.
type EntityDef struct {
	Type    EntityType
	IDField string
	Fields  []Field
}

// RootField declares a root collection of the project document.
// The root is not an entity; each root field is an ordered list of Target.
type RootField struct {
	Name   string     `json:"name"`
	Target EntityType `json:"target"`
}

// Graph is an immutable schema graph. Build one with a Builder or use
// Project(). A *Graph is safe for concurrent read-only use.
type Graph struct {
	version string
	order   []EntityType
	defs    map[EntityType]EntityDef
	roots   []RootField
}

// Version names the schema version the graph was built for.
func (g *Graph) Version() string {
	return g.version
}

// Types returns every entity type in declaration order.
func (g *Graph) Types() []EntityType {
	return slices.Clone(g.order)
}

// Has reports whether t is declared.
func (g *Graph) Has(t EntityType) bool {
	_, ok := g.defs[t]
	return ok
}

// Entity returns the definition of t.
func (g *Graph) Entity(t EntityType) (EntityDef, bool) {
	def, ok := g.defs[t]
	if !ok {
		return EntityDef{}, false
	}
	def.Fields = slices.Clone(def.Fields)
	return def, true
}

// IDField returns the identity field of t, or "" if t is not declared.
func (g *Graph) IDField(t EntityType) string {
	return g.defs[t].IDField
}

// Fields returns the nested-entity fields of t in declaration order.
// Leaf and undeclared types return nil.
func (g *Graph) Fields(t EntityType) []Field {
	def, ok := g.defs[t]
	if !ok || len(def.Fields) == 0 {
		return nil
	}
	return slices.Clone(def.Fields)
}

// IsLeaf reports whether t declares no nested-entity fields.
func (g *Graph) IsLeaf(t EntityType) bool {
	return len(g.defs[t].Fields) == 0
}

// Roots returns the root collections in declaration order.
func (g *Graph) Roots() []RootField {
	return slices.Clone(g.roots)
}

// Root looks up a root collection by name.
func (g *Graph) Root(name string) (RootField, bool) {
	for _, r := range g.roots {
		if r.Name == name {
			return r, true
		}
	}
	return RootField{}, false
}

// Equal reports whether g and other declare the same types, fields,
// identity fields and roots in the same order. Versions are ignored.
func (g *Graph) Equal(other *Graph) bool {
	if g == nil || other == nil {
		return g == other
	}
	if !slices.Equal(g.order, other.order) || !slices.Equal(g.roots, other.roots) {
		return false
	}
	for _, t := range g.order {
		a, b := g.defs[t], other.defs[t]
		if a.IDField != b.IDField || !slices.Equal(a.Fields, b.Fields) {
			return false
		}
	}
	return true
}

// Description is a serializable view of a Graph.
type Description struct {
	Version   string              `json:"version"`
	Entities  []EntityDescription `json:"entities"`
	Roots     []RootField         `json:"roots"`
	Recursive []Recursion         `json:"recursive,omitempty"`
}

// EntityDescription is a serializable view of an EntityDef.
type EntityDescription struct {
	Type    EntityType         `json:"type"`
	IDField string             `json:"id_field"`
	Fields  []FieldDescription `json:"fields,omitempty"`
}

// FieldDescription is a serializable view of a Field.
type FieldDescription struct {
	Name   string     `json:"name"`
	Target EntityType `json:"target"`
	Shape  string     `json:"shape"`
}

// Describe returns a serializable description of g.
func (g *Graph) Describe() Description {
	d := Description{
		Version:  g.version,
		Entities: make([]EntityDescription, 0, len(g.order)),
		Roots:    g.Roots(),
	}
	if recs := g.Recursions(); len(recs) > 0 {
		d.Recursive = recs
	}
	for _, t := range g.order {
		def := g.defs[t]
		ed := EntityDescription{Type: t, IDField: def.IDField}
		for _, f := range def.Fields {
			ed.Fields = append(ed.Fields, FieldDescription{
				Name:   f.Name,
				Target: f.Target,
				Shape:  f.Shape.String(),
			})
		}
		d.Entities = append(d.Entities, ed)
	}
	return d
}
