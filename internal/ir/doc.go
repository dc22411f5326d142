// Package ir provides the value model for project documents and entity tables.
//
// Entity content is opaque to the normalizer: it is carried as a sealed
// Value tree that mirrors JSON (null, string, integer, float, bool, array,
// object). All other internal packages import ir; ir imports nothing
// internal.
//
// Key constraints:
//   - Object keys are iterated in RFC 8785 order (SortedKeys), never map order
//   - Integers and floats are distinct; JSON numbers without a fraction or
//     exponent decode as Int
//   - Canonical JSON (MarshalCanonical) is the only serialization used for
//     digests
package ir
