package entities

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/gbproject/normgraph/internal/ir"
	"github.com/gbproject/normgraph/internal/schema"
)

// idNamespace seeds deterministic ids for occurrences without one.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("normgraph:assigned-id"))

// resolver registers entity occurrences into tables.
//
// Registration is split in two phases. reserve runs when the walk enters
// an occurrence (pre-order) and fixes the id's table position on first
// sight. store runs when the walk leaves it (post-order), after its nested
// fields were replaced by references.
type resolver struct {
	graph  *schema.Graph
	tables Tables
	owner  map[string]schema.EntityType
	assign bool

	// assigned maps each derived id to the id value its occurrence
	// carried: nil when the field was absent, ir.Null when it was null.
	assigned map[entityKey]ir.Value
}

func newResolver(g *schema.Graph, assign bool) *resolver {
	return &resolver{
		graph:  g,
		tables: NewTables(g),
		owner:  make(map[string]schema.EntityType),
		assign: assign,

		assigned: make(map[entityKey]ir.Value),
	}
}

// reserve reads the identifier of occ and claims it for t.
// assigned is true when the id was derived because occ had none.
func (r *resolver) reserve(t schema.EntityType, occ ir.Object, path string) (id string, assigned bool, err error) {
	idField := r.graph.IDField(t)
	raw, ok := occ[idField]
	if _, isNull := raw.(ir.Null); !ok || isNull {
		if !r.assign {
			return "", false, newMissingIDError(t, idField, path)
		}
		id = uuid.NewSHA1(idNamespace, []byte(string(t)+"/"+path)).String()
		assigned = true
		r.assigned[entityKey{t: t, id: id}] = raw
	} else {
		s, isString := raw.(ir.String)
		if !isString {
			return "", false, newMalformedOccurrence(t,
				fmt.Sprintf("%s field %q must be a string, got %s", t, idField, ir.KindOf(raw)), path)
		}
		if s == "" {
			return "", false, newMissingIDError(t, idField, path)
		}
		id = string(s)
	}

	if owner, seen := r.owner[id]; seen {
		if owner != t {
			return "", false, newDuplicateError(t, owner, id, path)
		}
		return id, assigned, nil
	}
	r.owner[id] = t
	tbl := r.tables[t]
	tbl.IDs = append(tbl.IDs, id)
	return id, assigned, nil
}

// store saves content under id. A repeated id is merged shallowly with
// the later occurrence's fields winning; its position is unchanged.
func (r *resolver) store(t schema.EntityType, id string, content ir.Object) {
	tbl := r.tables[t]
	existing, ok := tbl.Entities[id]
	if !ok {
		tbl.Entities[id] = content
		return
	}
	for k, v := range content {
		existing[k] = v
	}
}
