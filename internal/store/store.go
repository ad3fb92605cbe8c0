// Package store persists the durable correspondence between source and
// target ticket identities. A relation row exists exactly when a target
// ticket was successfully created for the source ticket, and is the
// single source of truth for "already migrated".
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS ticket_relations (
	source_system    TEXT NOT NULL,
	source_issue_id  TEXT NOT NULL,
	source_issue_key TEXT NOT NULL,
	target_system    TEXT NOT NULL,
	target_issue_id  TEXT NOT NULL,
	target_issue_key TEXT NOT NULL,
	PRIMARY KEY (source_system, source_issue_id)
);`

// Relation is one persisted source/target identity pair.
type Relation struct {
	SourceSystem   string
	SourceIssueID  string
	SourceIssueKey string
	TargetSystem   string
	TargetIssueID  string
	TargetIssueKey string
}

// Store wraps the relation table.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the sqlite database at path and applies
// the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying store schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert records one relation. Inserting a relation whose
// (source system, source id) already exists is a silent no-op: the
// uniqueness constraint absorbs the race between concurrent runs that
// both created a target ticket for the same source id.
func (s *Store) Insert(ctx context.Context, rel Relation) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO ticket_relations
		 (source_system, source_issue_id, source_issue_key, target_system, target_issue_id, target_issue_key)
		 VALUES (?,?,?,?,?,?)`,
		rel.SourceSystem, rel.SourceIssueID, rel.SourceIssueKey,
		rel.TargetSystem, rel.TargetIssueID, rel.TargetIssueKey)
	if err != nil {
		return fmt.Errorf("inserting relation for %s/%s: %w", rel.SourceSystem, rel.SourceIssueID, err)
	}
	return nil
}

// ExistingSourceIDs reports which of the given ids already have a
// relation row under the given source system.
func (s *Store) ExistingSourceIDs(ctx context.Context, system string, ids []string) (map[string]bool, error) {
	existing := make(map[string]bool)
	if len(ids) == 0 {
		return existing, nil
	}

	query := fmt.Sprintf(
		`SELECT source_issue_id FROM ticket_relations WHERE source_system = ? AND source_issue_id IN (%s)`,
		placeholders(len(ids)))
	rows, err := s.db.QueryContext(ctx, query, args(system, ids)...)
	if err != nil {
		return nil, fmt.Errorf("querying relations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		existing[id] = true
	}
	return existing, rows.Err()
}

// TargetIDs returns the source id -> target id mapping for the given
// source ids under the given source system. Ids with no row are absent
// from the result.
func (s *Store) TargetIDs(ctx context.Context, system string, ids []string) (map[string]string, error) {
	targets := make(map[string]string)
	if len(ids) == 0 {
		return targets, nil
	}

	query := fmt.Sprintf(
		`SELECT source_issue_id, target_issue_id FROM ticket_relations WHERE source_system = ? AND source_issue_id IN (%s)`,
		placeholders(len(ids)))
	rows, err := s.db.QueryContext(ctx, query, args(system, ids)...)
	if err != nil {
		return nil, fmt.Errorf("querying relations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sourceID, targetID string
		if err := rows.Scan(&sourceID, &targetID); err != nil {
			return nil, err
		}
		targets[sourceID] = targetID
	}
	return targets, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func args(system string, ids []string) []any {
	out := make([]any, 0, len(ids)+1)
	out = append(out, system)
	for _, id := range ids {
		out = append(out, id)
	}
	return out
}
