package entities

import (
	"fmt"
	"strconv"

	"github.com/gbproject/normgraph/internal/ir"
	"github.com/gbproject/normgraph/internal/schema"
)

// Denormalize rebuilds the nested document from tables and a result root.
//
// Each root collection in result is an ordered id list resolved against
// the table of its target type. Root fields that are not entity
// collections are copied unchanged. A reference to an id missing from
// its table fails the whole call with DANGLING_REFERENCE; nothing is
// skipped. The output shares no containers with tables or result.
func (e *Engine) Denormalize(tables Tables, result ir.Object) (ir.Object, error) {
	start := e.clock.Now()
	d := e.denormalizer(tables)

	doc, err := d.root(result)
	if err != nil {
		err = fmt.Errorf("denormalize: %w", err)
		e.finish(OpDenormalize, nil, err, start)
		return nil, err
	}
	e.finish(OpDenormalize, tables, nil, start)
	return doc, nil
}

// DenormalizeTables rebuilds the document using each root type's table
// order as its root list. It is the inverse of Normalize for documents
// whose root entities are not also nested elsewhere.
func (e *Engine) DenormalizeTables(tables Tables) (ir.Object, error) {
	result := make(ir.Object, len(e.graph.Roots()))
	for _, r := range e.graph.Roots() {
		var ids []string
		if tbl := tables[r.Target]; tbl != nil {
			ids = tbl.IDs
		}
		result[r.Name] = ir.Strings(ids...)
	}
	return e.Denormalize(tables, result)
}

// Resolve rebuilds a single entity of type t with its nested entities
// embedded.
func (e *Engine) Resolve(tables Tables, t schema.EntityType, id string) (ir.Object, error) {
	if !e.graph.Has(t) {
		return nil, fmt.Errorf("resolve: %w", newUnknownTypeError(t))
	}
	obj, err := e.denormalizer(tables).entity(t, id, string(t)+":"+id, 1)
	if err != nil {
		return nil, fmt.Errorf("resolve: %w", err)
	}
	return obj, nil
}

func (e *Engine) denormalizer(tables Tables) *denormalizer {
	return &denormalizer{
		graph:    e.graph,
		maxDepth: e.maxDepth,
		tables:   tables,
		active:   make(map[entityKey]bool),
	}
}

type entityKey struct {
	t  schema.EntityType
	id string
}

// denormalizer holds the state of one Denormalize call. active holds the
// entities on the current resolution path; meeting one again means the
// tables contain a cycle.
type denormalizer struct {
	graph    *schema.Graph
	maxDepth int
	tables   Tables
	active   map[entityKey]bool
}

func (d *denormalizer) root(result ir.Object) (ir.Object, error) {
	doc := make(ir.Object, len(result))
	roots := d.graph.Roots()
	isRoot := make(map[string]bool, len(roots))

	for _, r := range roots {
		isRoot[r.Name] = true
		raw, ok := result[r.Name]
		if !ok {
			continue
		}
		if _, isNull := raw.(ir.Null); isNull {
			doc[r.Name] = ir.Null{}
			continue
		}
		arr, ok := raw.(ir.Array)
		if !ok {
			return nil, newMalformedReference(r.Target,
				fmt.Sprintf("root collection %q must be an id list, got %s", r.Name, ir.KindOf(raw)), r.Name)
		}
		list, err := d.list(r.Target, arr, r.Name, 1)
		if err != nil {
			return nil, err
		}
		doc[r.Name] = list
	}

	for k, v := range result {
		if !isRoot[k] {
			doc[k] = ir.Clone(v)
		}
	}
	return doc, nil
}

// entity resolves id in the table of t. referrer names the reference
// being followed, for error reporting.
func (d *denormalizer) entity(t schema.EntityType, id, referrer string, depth int) (ir.Object, error) {
	if depth > d.maxDepth {
		return nil, newDepthError(depth, d.maxDepth, referrer)
	}
	content, ok := d.tables[t].Get(id)
	if !ok {
		return nil, newDanglingError(t, id, referrer)
	}

	key := entityKey{t: t, id: id}
	if d.active[key] {
		return nil, newCycleError(t, id, referrer)
	}
	d.active[key] = true
	defer delete(d.active, key)

	fields := d.graph.Fields(t)
	nested := make(map[string]bool, len(fields))
	for _, f := range fields {
		nested[f.Name] = true
	}

	out := make(ir.Object, len(content))
	for k, v := range content {
		if !nested[k] {
			out[k] = ir.Clone(v)
		}
	}

	self := string(t) + ":" + id
	for _, f := range fields {
		ref, present := content[f.Name]
		if !present {
			continue
		}
		v, err := d.field(f, ref, self+"."+f.Name, depth)
		if err != nil {
			return nil, err
		}
		out[f.Name] = v
	}
	return out, nil
}

// field embeds the entities named by one reference, keeping its shape.
func (d *denormalizer) field(f schema.Field, ref ir.Value, path string, depth int) (ir.Value, error) {
	if _, isNull := ref.(ir.Null); isNull {
		return ir.Null{}, nil
	}

	switch f.Shape {
	case schema.ShapeSingle:
		id, ok := ref.(ir.String)
		if !ok {
			return nil, newMalformedReference(f.Target,
				fmt.Sprintf("field %q must hold an id, got %s", f.Name, ir.KindOf(ref)), path)
		}
		return d.entity(f.Target, string(id), path, depth+1)

	case schema.ShapeList:
		arr, ok := ref.(ir.Array)
		if !ok {
			return nil, newMalformedReference(f.Target,
				fmt.Sprintf("field %q must hold an id list, got %s", f.Name, ir.KindOf(ref)), path)
		}
		return d.list(f.Target, arr, path, depth+1)

	case schema.ShapeBranchMap:
		branches, ok := ref.(ir.Object)
		if !ok {
			return nil, newMalformedReference(f.Target,
				fmt.Sprintf("field %q must hold a branch map, got %s", f.Name, ir.KindOf(ref)), path)
		}
		out := make(ir.Object, len(branches))
		for _, key := range branches.SortedKeys() {
			branchPath := path + "." + key
			switch b := branches[key].(type) {
			case ir.Null:
				out[key] = ir.Null{}
			case ir.Array:
				list, err := d.list(f.Target, b, branchPath, depth+1)
				if err != nil {
					return nil, err
				}
				out[key] = list
			default:
				return nil, newMalformedReference(f.Target,
					fmt.Sprintf("branch %q of field %q must hold an id list, got %s", key, f.Name, ir.KindOf(b)), branchPath)
			}
		}
		return out, nil

	default:
		return nil, fmt.Errorf("field %q: unsupported shape %s", f.Name, f.Shape)
	}
}

func (d *denormalizer) list(t schema.EntityType, ids ir.Array, path string, depth int) (ir.Array, error) {
	out := make(ir.Array, len(ids))
	for i, raw := range ids {
		itemPath := path + "[" + strconv.Itoa(i) + "]"
		id, ok := raw.(ir.String)
		if !ok {
			return nil, newMalformedReference(t,
				fmt.Sprintf("reference must be an id, got %s", ir.KindOf(raw)), itemPath)
		}
		obj, err := d.entity(t, string(id), itemPath, depth)
		if err != nil {
			return nil, err
		}
		out[i] = obj
	}
	return out, nil
}
