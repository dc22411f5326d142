// Package schema declares the entity graph the normalizer walks.
//
// A Graph is a closed set of entity type tags. Each type names its identity
// field and its nested-entity fields; each field names a target type and a
// shape (single reference, ordered list, or branch map of ordered lists).
// The project root is not an entity: it declares root collections, each an
// ordered list of one entity type.
//
// Graphs are immutable once built and are passed explicitly to the
// normalizer, so several schema versions can coexist in one process.
// Project() is the built-in game project graph; alternative versions can be
// written in CUE and loaded with LoadCUE.
package schema
