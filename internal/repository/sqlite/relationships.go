package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Relationship is one FGA tuple: subject has relation on object.
type Relationship struct {
	Subject  string `json:"subject"`
	Relation string `json:"relation"`
	Object   string `json:"object"`
}

// AddRelationship stores an FGA tuple.
func (s *Store) AddRelationship(ctx context.Context, subject, relation, object string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fga_relationships (subject, relation, object) VALUES (?, ?, ?)`,
		subject, relation, object)
	if err != nil {
		return fmt.Errorf("add relationship: %w", err)
	}
	return nil
}

// RemoveRelationship deletes an FGA tuple. Returns false when no tuple matched.
func (s *Store) RemoveRelationship(ctx context.Context, subject, relation, object string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM fga_relationships WHERE subject = ? AND relation = ? AND object = ?`,
		subject, relation, object)
	if err != nil {
		return false, fmt.Errorf("remove relationship: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove relationship rows: %w", err)
	}
	return n > 0, nil
}

// ListRelationships returns all FGA tuples, newest first.
func (s *Store) ListRelationships(ctx context.Context) ([]Relationship, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT subject, relation, object FROM fga_relationships ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list relationships: %w", err)
	}
	defer rows.Close()

	var rels []Relationship
	for rows.Next() {
		var r Relationship
		if err := rows.Scan(&r.Subject, &r.Relation, &r.Object); err != nil {
			return nil, fmt.Errorf("scan relationship: %w", err)
		}
		rels = append(rels, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate relationships: %w", err)
	}
	return rels, nil
}

// HasRelationship reports whether the exact tuple exists.
func (s *Store) HasRelationship(ctx context.Context, subject, relation, object string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM fga_relationships WHERE subject = ? AND relation = ? AND object = ? LIMIT 1`,
		subject, relation, object).Scan(&one)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check relationship: %w", err)
}
