// Package store provides SQLite-backed persistence for normalized snapshots.
//
// A snapshot is one entities.Normalized value:
//   - Snapshots: keyed by the digest of tables plus result
//   - Snapshot Types: every entity type present, so empty tables survive
//   - Snapshot Entities: one row per entity with its table position
//   - Snapshot Names: mutable names pointing at the latest digest
//
// # Critical Patterns
//
// Content Addressing
//   - Snapshot digests use ir.DomainSnapshot, entity hashes ir.DomainEntity
//   - Re-saving identical content is a no-op apart from the name update
//
// Deterministic Query Results
//   - Every query that returns rows has an ORDER BY
//   - Table id order is restored from the stored position, never rowid
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
