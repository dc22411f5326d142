package schema

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue/token"
)

// DefinitionError reports an invalid schema declaration.
// Pos is set when the declaration came from a CUE file.
type DefinitionError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *DefinitionError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Single declares a field holding one nested entity.
func Single(name string, target EntityType) Field {
	return Field{Name: name, Target: target, Shape: ShapeSingle}
}

// List declares a field holding an ordered list of nested entities.
func List(name string, target EntityType) Field {
	return Field{Name: name, Target: target, Shape: ShapeList}
}

// Branches declares a field mapping branch keys to ordered entity lists.
func Branches(name string, target EntityType) Field {
	return Field{Name: name, Target: target, Shape: ShapeBranchMap}
}

// Builder accumulates declarations and validates them in Build.
// Declarations may reference types declared later.
type Builder struct {
	version string
	defs    []EntityDef
	roots   []RootField
	pos     map[string]token.Pos
}

// NewBuilder starts a graph for the given schema version.
func NewBuilder(version string) *Builder {
	return &Builder{version: version, pos: make(map[string]token.Pos)}
}

// Entity declares t with the default identity field.
func (b *Builder) Entity(t EntityType, fields ...Field) *Builder {
	return b.EntityWithID(t, DefaultIDField, fields...)
}

// EntityWithID declares t with an explicit identity field.
func (b *Builder) EntityWithID(t EntityType, idField string, fields ...Field) *Builder {
	b.defs = append(b.defs, EntityDef{Type: t, IDField: idField, Fields: fields})
	return b
}

// Root declares a root collection holding an ordered list of target.
func (b *Builder) Root(name string, target EntityType) *Builder {
	b.roots = append(b.roots, RootField{Name: name, Target: target})
	return b
}

// at records a source position for error reporting on key.
func (b *Builder) at(key string, pos token.Pos) {
	b.pos[key] = pos
}

func (b *Builder) fail(key, msg string) error {
	return &DefinitionError{Field: key, Message: msg, Pos: b.pos[key]}
}

// Build validates the declarations and returns an immutable Graph.
func (b *Builder) Build() (*Graph, error) {
	g := &Graph{
		version: b.version,
		defs:    make(map[EntityType]EntityDef, len(b.defs)),
	}

	for _, def := range b.defs {
		key := "entity." + string(def.Type)
		if strings.TrimSpace(string(def.Type)) == "" {
			return nil, b.fail(key, "entity type name is required")
		}
		if _, dup := g.defs[def.Type]; dup {
			return nil, b.fail(key, "entity type declared twice")
		}
		if def.IDField == "" {
			return nil, b.fail(key+".id", "identity field is required")
		}
		g.order = append(g.order, def.Type)
		g.defs[def.Type] = EntityDef{
			Type:    def.Type,
			IDField: def.IDField,
			Fields:  append([]Field(nil), def.Fields...),
		}
	}

	for _, def := range b.defs {
		seen := make(map[string]bool, len(def.Fields))
		for _, f := range def.Fields {
			key := "entity." + string(def.Type) + ".fields." + f.Name
			switch {
			case f.Name == "":
				return nil, b.fail(key, "field name is required")
			case f.Name == def.IDField:
				return nil, b.fail(key, "identity field cannot hold nested entities")
			case seen[f.Name]:
				return nil, b.fail(key, "field declared twice")
			case !g.Has(f.Target):
				return nil, b.fail(key, fmt.Sprintf("unknown target type %q", f.Target))
			}
			if _, err := ParseShape(f.Shape.String()); err != nil {
				return nil, b.fail(key, err.Error())
			}
			seen[f.Name] = true
		}
	}

	seenRoots := make(map[string]bool, len(b.roots))
	for _, r := range b.roots {
		key := "root." + r.Name
		switch {
		case r.Name == "":
			return nil, b.fail(key, "root name is required")
		case seenRoots[r.Name]:
			return nil, b.fail(key, "root declared twice")
		case !g.Has(r.Target):
			return nil, b.fail(key, fmt.Sprintf("unknown target type %q", r.Target))
		}
		seenRoots[r.Name] = true
		g.roots = append(g.roots, r)
	}

	return g, nil
}
