package entities

import (
	"fmt"
	"strconv"

	"github.com/gbproject/normgraph/internal/ir"
	"github.com/gbproject/normgraph/internal/schema"
)

// Normalize flattens a project document into per-type tables.
//
// Root collections are walked in graph declaration order, each occurrence
// pre-order for table positions and post-order for content: an entity is
// stored only after all of its nested entities, so its reference fields are
// built from ids that already exist. Branch maps are walked branch by
// branch in sorted key order, each branch list in order.
//
// Every declared type gets a table, empty or not. Root fields that are not
// entity collections are copied into Result unchanged. The document is not
// mutated and shares no containers with the output. Any fault fails the
// whole call.
func (e *Engine) Normalize(doc ir.Object) (*Normalized, error) {
	start := e.clock.Now()
	n := &normalizer{
		graph:    e.graph,
		maxDepth: e.maxDepth,
		res:      newResolver(e.graph, e.assignMissingIDs),
	}

	result, err := n.root(doc)
	if err != nil {
		err = fmt.Errorf("normalize: %w", err)
		e.finish(OpNormalize, nil, err, start)
		return nil, err
	}

	out := &Normalized{Entities: n.res.tables, Result: result, assigned: n.res.assigned}
	e.finish(OpNormalize, out.Entities, nil, start)
	return out, nil
}

type normalizer struct {
	graph    *schema.Graph
	maxDepth int
	res      *resolver
}

func (n *normalizer) root(doc ir.Object) (ir.Object, error) {
	result := make(ir.Object, len(doc))
	roots := n.graph.Roots()
	isRoot := make(map[string]bool, len(roots))

	for _, r := range roots {
		isRoot[r.Name] = true
		raw, ok := doc[r.Name]
		if !ok {
			continue
		}
		switch v := raw.(type) {
		case ir.Null:
			result[r.Name] = ir.Null{}
		case ir.Array:
			ids, err := n.list(r.Target, v, r.Name, 1)
			if err != nil {
				return nil, err
			}
			result[r.Name] = ids
		default:
			return nil, newMalformedOccurrence(r.Target,
				fmt.Sprintf("root collection %q must be an array, got %s", r.Name, ir.KindOf(raw)), r.Name)
		}
	}

	for k, v := range doc {
		if !isRoot[k] {
			result[k] = ir.Clone(v)
		}
	}
	return result, nil
}

// entity normalizes one occurrence of t at the given depth and returns
// its id.
func (n *normalizer) entity(t schema.EntityType, raw ir.Value, path string, depth int) (string, error) {
	if depth > n.maxDepth {
		return "", newDepthError(depth, n.maxDepth, path)
	}
	occ, ok := raw.(ir.Object)
	if !ok {
		return "", newMalformedOccurrence(t,
			fmt.Sprintf("%s occurrence must be an object, got %s", t, ir.KindOf(raw)), path)
	}

	id, assigned, err := n.res.reserve(t, occ, path)
	if err != nil {
		return "", err
	}

	fields := n.graph.Fields(t)
	nested := make(map[string]bool, len(fields))
	for _, f := range fields {
		nested[f.Name] = true
	}

	content := make(ir.Object, len(occ)+1)
	for k, v := range occ {
		if !nested[k] {
			content[k] = ir.Clone(v)
		}
	}
	if assigned {
		content[n.graph.IDField(t)] = ir.String(id)
	}

	for _, f := range fields {
		raw, present := occ[f.Name]
		if !present {
			continue
		}
		ref, err := n.field(f, raw, path+"."+f.Name, depth)
		if err != nil {
			return "", err
		}
		content[f.Name] = ref
	}

	n.res.store(t, id, content)
	return id, nil
}

// field replaces the nested occurrences of one field with a reference of
// the same shape. Null stays null.
func (n *normalizer) field(f schema.Field, raw ir.Value, path string, depth int) (ir.Value, error) {
	if _, isNull := raw.(ir.Null); isNull {
		return ir.Null{}, nil
	}

	switch f.Shape {
	case schema.ShapeSingle:
		id, err := n.entity(f.Target, raw, path, depth+1)
		if err != nil {
			return nil, err
		}
		return ir.String(id), nil

	case schema.ShapeList:
		arr, ok := raw.(ir.Array)
		if !ok {
			return nil, newMalformedOccurrence(f.Target,
				fmt.Sprintf("field %q must be an array, got %s", f.Name, ir.KindOf(raw)), path)
		}
		return n.list(f.Target, arr, path, depth+1)

	case schema.ShapeBranchMap:
		branches, ok := raw.(ir.Object)
		if !ok {
			return nil, newMalformedOccurrence(f.Target,
				fmt.Sprintf("field %q must be an object of branches, got %s", f.Name, ir.KindOf(raw)), path)
		}
		out := make(ir.Object, len(branches))
		for _, key := range branches.SortedKeys() {
			branchPath := path + "." + key
			switch b := branches[key].(type) {
			case ir.Null:
				out[key] = ir.Null{}
			case ir.Array:
				ids, err := n.list(f.Target, b, branchPath, depth+1)
				if err != nil {
					return nil, err
				}
				out[key] = ids
			default:
				return nil, newMalformedOccurrence(f.Target,
					fmt.Sprintf("branch %q of field %q must be an array, got %s", key, f.Name, ir.KindOf(b)), branchPath)
			}
		}
		return out, nil

	default:
		return nil, fmt.Errorf("field %q: unsupported shape %s", f.Name, f.Shape)
	}
}

// list normalizes an ordered list of occurrences into an ordered id list.
func (n *normalizer) list(t schema.EntityType, arr ir.Array, path string, depth int) (ir.Array, error) {
	ids := make(ir.Array, len(arr))
	for i, occ := range arr {
		id, err := n.entity(t, occ, path+"["+strconv.Itoa(i)+"]", depth)
		if err != nil {
			return nil, err
		}
		ids[i] = ir.String(id)
	}
	return ids, nil
}
