package entities

import (
	"fmt"
	"strconv"

	"github.com/gbproject/normgraph/internal/ir"
	"github.com/gbproject/normgraph/internal/schema"
)

// ClosureViolation is a reference whose target id is missing from its
// table.
type ClosureViolation struct {
	Type   schema.EntityType `json:"type"`
	ID     string            `json:"id"`
	Path   string            `json:"path"`
	Target schema.EntityType `json:"target"`
	Ref    string            `json:"ref"`
}

func (v ClosureViolation) String() string {
	return fmt.Sprintf("%s:%s.%s -> %s %q", v.Type, v.ID, v.Path, v.Target, v.Ref)
}

// CheckClosure lists every reference in tables whose target is missing.
// Types are visited in graph order, ids in table order and fields in
// declaration order, so the result is deterministic. References that are
// not ids at all are skipped; Denormalize reports those.
func CheckClosure(g *schema.Graph, tables Tables) []ClosureViolation {
	violations := []ClosureViolation{}
	for _, t := range g.Types() {
		tbl := tables[t]
		if tbl == nil {
			continue
		}
		fields := g.Fields(t)
		for _, id := range tbl.IDs {
			content := tbl.Entities[id]
			for _, f := range fields {
				check := func(ref ir.Value, path string) {
					s, ok := ref.(ir.String)
					if !ok {
						return
					}
					if _, found := tables[f.Target].Get(string(s)); !found {
						violations = append(violations, ClosureViolation{
							Type: t, ID: id, Path: path, Target: f.Target, Ref: string(s),
						})
					}
				}
				checkList := func(ref ir.Value, path string) {
					arr, _ := ref.(ir.Array)
					for i, item := range arr {
						check(item, path+"["+strconv.Itoa(i)+"]")
					}
				}

				ref, present := content[f.Name]
				if !present {
					continue
				}
				switch f.Shape {
				case schema.ShapeSingle:
					check(ref, f.Name)
				case schema.ShapeList:
					checkList(ref, f.Name)
				case schema.ShapeBranchMap:
					branches, _ := ref.(ir.Object)
					for _, key := range branches.SortedKeys() {
						checkList(branches[key], f.Name+"."+key)
					}
				}
			}
		}
	}
	return violations
}

// Report is the outcome of Verify.
type Report struct {
	// RoundTrip is true when denormalizing the normalized document
	// reproduces the input.
	RoundTrip bool `json:"roundTrip"`

	// Idempotent is true when normalizing the rebuilt document reproduces
	// the same tables and result.
	Idempotent bool `json:"idempotent"`

	// Violations lists references that do not resolve.
	Violations []ClosureViolation `json:"violations"`

	// Digest is the table digest of the first normalization.
	Digest string `json:"digest"`

	// Counts is the number of entities per type.
	Counts map[schema.EntityType]int `json:"counts"`
}

// OK reports whether every check passed.
func (r *Report) OK() bool {
	return r.RoundTrip && r.Idempotent && len(r.Violations) == 0
}

// Verify runs normalize, denormalize and normalize again over doc and
// reports the round-trip, idempotence and closure properties. A structural
// fault in any step is returned as an error rather than a failed report.
//
// Ids derived for occurrences without one are taken back out of the
// rebuilt document before comparing it with doc.
func (e *Engine) Verify(doc ir.Object) (*Report, error) {
	first, err := e.Normalize(doc)
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	rebuilt, err := e.Denormalize(first.Entities, first.Result)
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	second, err := e.Normalize(rebuilt)
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	digest, err := first.Entities.Digest()
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}

	return &Report{
		RoundTrip:  ir.Equal(doc, withoutAssignedIDs(e.graph, rebuilt, first.assigned)),
		Idempotent: first.Entities.Equal(second.Entities) && ir.Equal(first.Result, second.Result),
		Violations: CheckClosure(e.graph, first.Entities),
		Digest:     digest,
		Counts:     first.Entities.Counts(),
	}, nil
}

// withoutAssignedIDs returns a copy of doc in which every entity whose id
// was derived gets back the id value its occurrence had in the input.
func withoutAssignedIDs(g *schema.Graph, doc ir.Object, assigned map[entityKey]ir.Value) ir.Object {
	if len(assigned) == 0 {
		return doc
	}
	out := ir.CloneObject(doc)
	s := &idStripper{graph: g, assigned: assigned}
	for _, r := range g.Roots() {
		if arr, ok := out[r.Name].(ir.Array); ok {
			s.list(r.Target, arr)
		}
	}
	return out
}

type idStripper struct {
	graph    *schema.Graph
	assigned map[entityKey]ir.Value
}

func (s *idStripper) list(t schema.EntityType, arr ir.Array) {
	for _, v := range arr {
		if occ, ok := v.(ir.Object); ok {
			s.entity(t, occ)
		}
	}
}

func (s *idStripper) entity(t schema.EntityType, occ ir.Object) {
	idField := s.graph.IDField(t)
	if id, ok := occ[idField].(ir.String); ok {
		if orig, derived := s.assigned[entityKey{t: t, id: string(id)}]; derived {
			if orig == nil {
				delete(occ, idField)
			} else {
				occ[idField] = orig
			}
		}
	}

	for _, f := range s.graph.Fields(t) {
		switch v := occ[f.Name].(type) {
		case ir.Object:
			if f.Shape == schema.ShapeSingle {
				s.entity(f.Target, v)
				continue
			}
			for _, branch := range v {
				if arr, ok := branch.(ir.Array); ok {
					s.list(f.Target, arr)
				}
			}
		case ir.Array:
			s.list(f.Target, v)
		}
	}
}
