// Package entities normalizes nested project documents into per-type
// entity tables and rebuilds documents from those tables.
//
// Normalize walks a document against a schema.Graph. Every nested entity
// occurrence is extracted into the table of its type and replaced in its
// parent by a reference of the same shape: an id for a single field, an
// ordered id list for a list field, and a branch-key to id-list object for
// a branch map (event children). Denormalize walks the same graph in
// reverse and substitutes every reference with the entity it names.
//
// ORDERING:
//
// Table ids are ordered by first pre-order sighting, so a scene precedes
// its actors and an event precedes its children. Content is stored
// post-order: a parent is stored after its children were replaced by ids.
// Branch maps are walked in sorted key order, each branch in list order.
//
// DUPLICATES:
//
// Repeated occurrences of one id in one type collapse into a single table
// entry. Contents merge shallowly with later fields winning; the entry
// keeps its first position. One id claimed by two types is rejected with
// DUPLICATE_IDENTIFIER.
//
// FAULTS:
//
// Every fault is an *Error with a Code. No call returns partial output:
// on error the tables or document are discarded. Denormalize fails fast on
// dangling references instead of dropping them.
//
// CONCURRENCY:
//
// An Engine is safe for concurrent use. It performs no locking on the
// documents and tables passed to it; callers must not mutate them during
// a call.
package entities
