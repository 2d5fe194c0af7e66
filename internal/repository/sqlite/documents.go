package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/privara/docsearch/internal/domain"
)

// UpsertDocument inserts or replaces a document. Title and content changes
// bump updated_at; view/helpful counters are preserved on replace.
func (s *Store) UpsertDocument(ctx context.Context, doc *domain.Document) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, title, content, sensitive, author, department, tags, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			sensitive = excluded.sensitive,
			author = excluded.author,
			department = excluded.department,
			tags = excluded.tags,
			version = documents.version + 1,
			updated_at = CURRENT_TIMESTAMP`,
		doc.ID, doc.Title, doc.Content, boolToInt(doc.Sensitive),
		doc.Author, doc.Department, strings.Join(doc.Tags, ","),
	)
	if err != nil {
		return fmt.Errorf("upsert document %s: %w", doc.ID, err)
	}
	return nil
}

// GetDocument returns one document by id.
func (s *Store) GetDocument(ctx context.Context, id string) (domain.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, content, sensitive, author, department, tags,
		       version, view_count, helpful_count, created_at, updated_at
		FROM documents WHERE id = ?`, id)

	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Document{}, fmt.Errorf("document %s: %w", id, domain.ErrDocumentNotFound)
	}
	if err != nil {
		return domain.Document{}, fmt.Errorf("get document %s: %w", id, err)
	}
	return doc, nil
}

// ListDocuments returns all documents ordered by id. The retrieval engine
// rebuilds its index wholesale from this list.
func (s *Store) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, content, sensitive, author, department, tags,
		       version, view_count, helpful_count, created_at, updated_at
		FROM documents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

// CountDocuments returns the number of stored documents.
func (s *Store) CountDocuments(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// IncrementViewCount bumps the analytics view counter for a document.
func (s *Store) IncrementViewCount(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE documents SET view_count = view_count + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("increment view count %s: %w", id, err)
	}
	return nil
}

// IncrementHelpfulCount bumps the helpful counter for a document.
func (s *Store) IncrementHelpfulCount(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE documents SET helpful_count = helpful_count + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("increment helpful count %s: %w", id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (domain.Document, error) {
	var (
		doc       domain.Document
		sensitive int
		tags      string
		created   time.Time
		updated   time.Time
	)
	err := row.Scan(&doc.ID, &doc.Title, &doc.Content, &sensitive,
		&doc.Author, &doc.Department, &tags,
		&doc.Version, &doc.ViewCount, &doc.HelpfulCount, &created, &updated)
	if err != nil {
		return domain.Document{}, err
	}
	doc.Sensitive = sensitive != 0
	if tags != "" {
		doc.Tags = strings.Split(tags, ",")
	}
	doc.CreatedAt = created
	doc.UpdatedAt = updated
	return doc, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
