package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/gbproject/normgraph/internal/entities"
	"github.com/gbproject/normgraph/internal/ir"
	"github.com/gbproject/normgraph/internal/schema"
)

// ErrSnapshotNotFound is returned when no snapshot has the requested name.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// ErrSchemaMismatch is returned when a normalized value is saved under a
// schema version other than the one it was first stored with.
var ErrSchemaMismatch = errors.New("snapshot schema version mismatch")

// SnapshotInfo describes one named snapshot.
type SnapshotInfo struct {
	Name          string `json:"name"`
	Digest        string `json:"digest"`
	SchemaVersion string `json:"schemaVersion"`
	Entities      int    `json:"entities"`
	Seq           int64  `json:"seq"`
}

// EntityVersion is one stored version of an entity: the first snapshot,
// in save order, in which the entity had this content.
type EntityVersion struct {
	Digest      string `json:"digest"`
	Seq         int64  `json:"seq"`
	Position    int    `json:"position"`
	ContentHash string `json:"contentHash"`
}

// SaveSnapshot stores n under name and returns its digest.
//
// Snapshots are content-addressed by entities.Normalized.Digest: saving an
// identical normalized value twice writes its rows once (ON CONFLICT DO
// NOTHING) and only moves the name. The value keeps the schema version it
// was first saved with; saving it under another one fails with
// ErrSchemaMismatch. Everything happens in one transaction.
func (s *Store) SaveSnapshot(ctx context.Context, name, schemaVersion string, n *entities.Normalized) (string, error) {
	if name == "" {
		return "", fmt.Errorf("save snapshot: name is required")
	}
	digest, err := n.Digest()
	if err != nil {
		return "", fmt.Errorf("save snapshot: %w", err)
	}
	resultJSON, err := marshalObject(n.Result)
	if err != nil {
		return "", fmt.Errorf("save snapshot: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("save snapshot: begin: %w", err)
	}
	defer tx.Rollback()

	total := 0
	for _, tbl := range n.Entities {
		total += tbl.Len()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots (digest, schema_version, result, entity_count, seq)
		VALUES (?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM snapshots))
		ON CONFLICT(digest) DO NOTHING
	`, digest, schemaVersion, resultJSON, total)
	if err != nil {
		return "", fmt.Errorf("save snapshot: %w", err)
	}

	var stored string
	if err := tx.QueryRowContext(ctx, `
		SELECT schema_version FROM snapshots WHERE digest = ?
	`, digest).Scan(&stored); err != nil {
		return "", fmt.Errorf("save snapshot: %w", err)
	}
	if stored != schemaVersion {
		return "", fmt.Errorf("save snapshot %q: %w: stored as %q, saving as %q",
			name, ErrSchemaMismatch, stored, schemaVersion)
	}

	if err := writeTables(ctx, tx, digest, n.Entities); err != nil {
		return "", fmt.Errorf("save snapshot: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshot_names (name, digest, seq)
		VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM snapshot_names))
		ON CONFLICT(name) DO UPDATE SET digest = excluded.digest, seq = excluded.seq
	`, name, digest)
	if err != nil {
		return "", fmt.Errorf("save snapshot: name: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("save snapshot: commit: %w", err)
	}
	return digest, nil
}

func writeTables(ctx context.Context, tx *sql.Tx, digest string, tables entities.Tables) error {
	types := make([]string, 0, len(tables))
	for t := range tables {
		types = append(types, string(t))
	}
	sort.Strings(types)

	for _, t := range types {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO snapshot_types (digest, type) VALUES (?, ?)
			ON CONFLICT DO NOTHING
		`, digest, t)
		if err != nil {
			return fmt.Errorf("type %s: %w", t, err)
		}

		tbl := tables[schema.EntityType(t)]
		if tbl == nil {
			continue
		}
		for pos, id := range tbl.IDs {
			content, ok := tbl.Entities[id]
			if !ok {
				return fmt.Errorf("%s %q is listed but has no content", t, id)
			}
			contentJSON, err := marshalObject(content)
			if err != nil {
				return fmt.Errorf("%s %q: %w", t, id, err)
			}
			hash, err := ir.Digest(ir.DomainEntity, content)
			if err != nil {
				return fmt.Errorf("%s %q: %w", t, id, err)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO snapshot_entities (digest, type, position, id, content, content_hash)
				VALUES (?, ?, ?, ?, ?, ?)
				ON CONFLICT DO NOTHING
			`, digest, t, pos, id, contentJSON, hash)
			if err != nil {
				return fmt.Errorf("%s %q: %w", t, id, err)
			}
		}
	}
	return nil
}

// LoadSnapshot returns the snapshot currently named name.
// Tables are rebuilt in stored position order.
func (s *Store) LoadSnapshot(ctx context.Context, name string) (*entities.Normalized, error) {
	var digest, resultJSON string
	err := s.db.QueryRowContext(ctx, `
		SELECT s.digest, s.result
		FROM snapshot_names n
		JOIN snapshots s ON s.digest = n.digest
		WHERE n.name = ?
	`, name).Scan(&digest, &resultJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load snapshot %q: %w", name, ErrSnapshotNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %q: %w", name, err)
	}

	result, err := unmarshalObject(resultJSON)
	if err != nil {
		return nil, fmt.Errorf("load snapshot %q: %w", name, err)
	}
	tables, err := s.readTables(ctx, digest)
	if err != nil {
		return nil, fmt.Errorf("load snapshot %q: %w", name, err)
	}
	return &entities.Normalized{Entities: tables, Result: result}, nil
}

func (s *Store) readTables(ctx context.Context, digest string) (entities.Tables, error) {
	tables := entities.Tables{}

	typeRows, err := s.db.QueryContext(ctx, `
		SELECT type FROM snapshot_types WHERE digest = ? ORDER BY type ASC
	`, digest)
	if err != nil {
		return nil, err
	}
	for typeRows.Next() {
		var t string
		if err := typeRows.Scan(&t); err != nil {
			typeRows.Close()
			return nil, err
		}
		tables[schema.EntityType(t)] = entities.NewTable()
	}
	if err := typeRows.Err(); err != nil {
		typeRows.Close()
		return nil, err
	}
	typeRows.Close()

	rows, err := s.db.QueryContext(ctx, `
		SELECT type, id, content
		FROM snapshot_entities
		WHERE digest = ?
		ORDER BY type ASC, position ASC
	`, digest)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var t, id, contentJSON string
		if err := rows.Scan(&t, &id, &contentJSON); err != nil {
			return nil, err
		}
		content, err := unmarshalObject(contentJSON)
		if err != nil {
			return nil, fmt.Errorf("%s %q: %w", t, id, err)
		}
		tbl := tables[schema.EntityType(t)]
		if tbl == nil {
			tbl = entities.NewTable()
			tables[schema.EntityType(t)] = tbl
		}
		tbl.IDs = append(tbl.IDs, id)
		tbl.Entities[id] = content
	}
	return tables, rows.Err()
}

// ListSnapshots returns every named snapshot ordered by name.
func (s *Store) ListSnapshots(ctx context.Context) ([]SnapshotInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT n.name, n.digest, s.schema_version, s.entity_count, n.seq
		FROM snapshot_names n
		JOIN snapshots s ON s.digest = n.digest
		ORDER BY n.name COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	infos := []SnapshotInfo{}
	for rows.Next() {
		var info SnapshotInfo
		if err := rows.Scan(&info.Name, &info.Digest, &info.SchemaVersion, &info.Entities, &info.Seq); err != nil {
			return nil, fmt.Errorf("list snapshots: %w", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return infos, nil
}

// EntityHistory lists the distinct stored versions of entity id of type
// t in save order. A snapshot repeating earlier content adds no version.
func (s *Store) EntityHistory(ctx context.Context, t schema.EntityType, id string) ([]EntityVersion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.digest, s.seq, e.position, e.content_hash
		FROM snapshot_entities e
		JOIN snapshots s ON s.digest = e.digest
		WHERE e.type = ? AND e.id = ?
		ORDER BY s.seq ASC
	`, string(t), id)
	if err != nil {
		return nil, fmt.Errorf("entity history: %w", err)
	}
	defer rows.Close()

	versions := []EntityVersion{}
	seen := make(map[string]bool)
	for rows.Next() {
		var v EntityVersion
		if err := rows.Scan(&v.Digest, &v.Seq, &v.Position, &v.ContentHash); err != nil {
			return nil, fmt.Errorf("entity history: %w", err)
		}
		if seen[v.ContentHash] {
			continue
		}
		seen[v.ContentHash] = true
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("entity history: %w", err)
	}
	return versions, nil
}

// marshalObject converts an object to canonical JSON TEXT for storage.
func marshalObject(obj ir.Object) (string, error) {
	if obj == nil {
		obj = ir.Object{}
	}
	data, err := ir.MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}
	return string(data), nil
}

// unmarshalObject parses canonical JSON TEXT. Integers keep full int64
// precision through ir's json.Number decoding.
func unmarshalObject(data string) (ir.Object, error) {
	var obj ir.Object
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	if obj == nil {
		obj = ir.Object{}
	}
	return obj, nil
}
