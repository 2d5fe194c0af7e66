package sqlite

import (
	"context"
	"fmt"

	"github.com/privara/docsearch/internal/domain"
)

// SeedSampleData loads the demo documents and relationships. Idempotent:
// documents are upserted and relationships are only added when missing.
func (s *Store) SeedSampleData(ctx context.Context) error {
	docs := []domain.Document{
		{
			ID:         "doc_salary_2024",
			Title:      "Salary - Engineering",
			Content:    "Employee salaries for 2024. Confidential HR data.",
			Sensitive:  true,
			Department: "hr",
		},
		{
			ID:         "doc_budget_q4",
			Title:      "Budget Q4",
			Content:    "Quarter 4 budget planning and allocations.",
			Department: "finance",
		},
	}
	for i := range docs {
		if err := s.UpsertDocument(ctx, &docs[i]); err != nil {
			return fmt.Errorf("seed document: %w", err)
		}
	}

	rels := []Relationship{
		{Subject: "user:bob", Relation: "can_view", Object: "document:doc_salary_2024"},
		{Subject: "role:employee", Relation: "can_view", Object: "document:doc_budget_q4"},
		{Subject: "role:manager", Relation: "can_view", Object: "document:doc_budget_q4"},
	}
	for _, r := range rels {
		exists, err := s.HasRelationship(ctx, r.Subject, r.Relation, r.Object)
		if err != nil {
			return err
		}
		if !exists {
			if err := s.AddRelationship(ctx, r.Subject, r.Relation, r.Object); err != nil {
				return err
			}
		}
	}
	return nil
}
