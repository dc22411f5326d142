package entities

import (
	"encoding/json"
	"fmt"

	"github.com/gbproject/normgraph/internal/ir"
	"github.com/gbproject/normgraph/internal/schema"
)

// Table holds every entity of one type.
//
// IDs lists identifiers in first-seen order; Entities maps each identifier
// to its content with nested-entity fields replaced by references. The two
// always hold the same identifier set.
type Table struct {
	IDs      []string             `json:"ids"`
	Entities map[string]ir.Object `json:"entities"`
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{IDs: []string{}, Entities: map[string]ir.Object{}}
}

// Len returns the number of entities.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.IDs)
}

// Get returns the content stored under id.
func (t *Table) Get(id string) (ir.Object, bool) {
	if t == nil {
		return nil, false
	}
	obj, ok := t.Entities[id]
	return obj, ok
}

// UnmarshalJSON decodes a table and guarantees non-nil fields, so a
// decoded empty table is indistinguishable from NewTable().
func (t *Table) UnmarshalJSON(data []byte) error {
	type plain Table
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if p.IDs == nil {
		p.IDs = []string{}
	}
	if p.Entities == nil {
		p.Entities = map[string]ir.Object{}
	}
	*t = Table(p)
	return nil
}

// value renders the table as {"ids": [...], "entities": {...}}.
func (t *Table) value() ir.Object {
	ents := make(ir.Object, len(t.Entities))
	for id, obj := range t.Entities {
		ents[id] = obj
	}
	return ir.Object{
		"ids":      ir.Strings(t.IDs...),
		"entities": ents,
	}
}

// Tables holds one table per entity type.
type Tables map[schema.EntityType]*Table

// NewTables returns one empty table for every type declared by g.
func NewTables(g *schema.Graph) Tables {
	ts := make(Tables, len(g.Types()))
	for _, t := range g.Types() {
		ts[t] = NewTable()
	}
	return ts
}

// Table returns the table of t, or nil if absent.
func (ts Tables) Table(t schema.EntityType) *Table {
	return ts[t]
}

// Complete adds an empty table for every type of g that ts lacks.
// Tables decoded from caller-owned state may omit empty types.
func (ts Tables) Complete(g *schema.Graph) {
	for _, t := range g.Types() {
		if ts[t] == nil {
			ts[t] = NewTable()
		}
	}
}

// Counts returns the number of entities per type.
func (ts Tables) Counts() map[schema.EntityType]int {
	counts := make(map[schema.EntityType]int, len(ts))
	for t, tbl := range ts {
		counts[t] = tbl.Len()
	}
	return counts
}

// Value renders all tables as one ir.Object keyed by type.
func (ts Tables) Value() ir.Object {
	obj := make(ir.Object, len(ts))
	for t, tbl := range ts {
		if tbl == nil {
			tbl = NewTable()
		}
		obj[string(t)] = tbl.value()
	}
	return obj
}

// Digest returns the canonical content digest of all tables, id order
// included.
func (ts Tables) Digest() (string, error) {
	d, err := ir.Digest(ir.DomainTables, ts.Value())
	if err != nil {
		return "", fmt.Errorf("tables digest: %w", err)
	}
	return d, nil
}

// Equal reports whether ts and other hold the same types, id orders and
// contents.
func (ts Tables) Equal(other Tables) bool {
	return ir.Equal(ts.Value(), other.Value())
}

// Normalized is the output of normalization: the tables plus the project
// root with every root collection replaced by its ordered id list.
// Root fields that are not entity collections pass through unchanged.
type Normalized struct {
	Entities Tables    `json:"entities"`
	Result   ir.Object `json:"result"`

	// assigned records the ids derived during this normalization.
	// It does not survive serialization.
	assigned map[entityKey]ir.Value
}

// RootIDs returns the ordered id list of a root collection, or nil when
// the collection is absent or null.
func (n *Normalized) RootIDs(collection string) []string {
	arr, ok := n.Result[collection].(ir.Array)
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(arr))
	for _, v := range arr {
		if s, ok := v.(ir.String); ok {
			ids = append(ids, string(s))
		}
	}
	return ids
}

// Value renders the normalized form as {"entities": ..., "result": ...}.
func (n *Normalized) Value() ir.Object {
	return ir.Object{
		"entities": n.Entities.Value(),
		"result":   n.Result,
	}
}

// Digest returns the canonical content digest of tables and result
// together. Two values with equal digests denormalize to equal documents.
func (n *Normalized) Digest() (string, error) {
	d, err := ir.Digest(ir.DomainSnapshot, n.Value())
	if err != nil {
		return "", fmt.Errorf("normalized digest: %w", err)
	}
	return d, nil
}
