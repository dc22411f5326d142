package schema

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

// cueConstraint closes the grammar of schema files. It is unified with
// every loaded file so typos in shapes or entity keys fail at load time.
const cueConstraint = `
#Field: {
	target: string
	shape:  "single" | "list" | "branchMap"
}

#Entity: {
	id:     *"id" | string
	fields: [string]: #Field
}

version: string
entity: [string]: #Entity
root: [string]: string
`

// LoadCUE reads and compiles a CUE schema file.
func LoadCUE(path string) (*Graph, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return CompileCUE(src, path)
}

// CompileCUE compiles CUE source into a Graph.
//
// Uses the CUE Go API directly:
//
//	version: "project/v2"
//	entity: events: fields: children: {target: "events", shape: "branchMap"}
//	entity: music: {}
//	root: music: "music"
//
// Entities, fields and roots keep their declaration order.
func CompileCUE(src []byte, filename string) (*Graph, error) {
	ctx := cuecontext.New()

	constraint := ctx.CompileString(cueConstraint, cue.Filename("normgraph-schema.cue"))
	if err := constraint.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	user := ctx.CompileBytes(src, cue.Filename(filename))
	if err := user.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	v := constraint.Unify(user)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	version, err := v.LookupPath(cue.ParsePath("version")).String()
	if err != nil {
		return nil, formatCUEError(err)
	}

	b := NewBuilder(version)
	if err := compileEntities(b, v.LookupPath(cue.ParsePath("entity"))); err != nil {
		return nil, err
	}
	if err := compileRoots(b, v.LookupPath(cue.ParsePath("root"))); err != nil {
		return nil, err
	}
	return b.Build()
}

func compileEntities(b *Builder, v cue.Value) error {
	if !v.Exists() {
		return &DefinitionError{Field: "entity", Message: "at least one entity is required"}
	}
	iter, err := v.Fields()
	if err != nil {
		return formatCUEError(err)
	}

	count := 0
	for iter.Next() {
		count++
		name := iter.Label()
		ev := iter.Value()
		b.at("entity."+name, ev.Pos())

		idField, err := ev.LookupPath(cue.ParsePath("id")).String()
		if err != nil {
			return formatCUEError(err)
		}
		b.at("entity."+name+".id", ev.LookupPath(cue.ParsePath("id")).Pos())

		fields, err := compileFields(b, name, ev.LookupPath(cue.ParsePath("fields")))
		if err != nil {
			return err
		}
		b.EntityWithID(EntityType(name), idField, fields...)
	}
	if count == 0 {
		return &DefinitionError{Field: "entity", Message: "at least one entity is required", Pos: v.Pos()}
	}
	return nil
}

func compileFields(b *Builder, entity string, v cue.Value) ([]Field, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var fields []Field
	for iter.Next() {
		name := iter.Label()
		fv := iter.Value()
		key := "entity." + entity + ".fields." + name
		b.at(key, fv.Pos())

		target, err := fv.LookupPath(cue.ParsePath("target")).String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		shapeName, err := fv.LookupPath(cue.ParsePath("shape")).String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		shape, err := ParseShape(shapeName)
		if err != nil {
			return nil, &DefinitionError{Field: key, Message: err.Error(), Pos: fv.Pos()}
		}
		fields = append(fields, Field{Name: name, Target: EntityType(target), Shape: shape})
	}
	return fields, nil
}

func compileRoots(b *Builder, v cue.Value) error {
	if !v.Exists() {
		return nil
	}
	iter, err := v.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		name := iter.Label()
		target, err := iter.Value().String()
		if err != nil {
			return formatCUEError(err)
		}
		b.at("root."+name, iter.Value().Pos())
		b.Root(name, EntityType(target))
	}
	return nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &DefinitionError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
