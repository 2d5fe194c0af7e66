package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// QueryLog is one logged retrieval request.
type QueryLog struct {
	ID              string    `json:"id"`
	UserSub         string    `json:"user_sub"`
	Query           string    `json:"query"`
	SessionID       string    `json:"session_id"`
	RetrievedDocIDs []string  `json:"retrieved_doc_ids"`
	LatencyMs       float64   `json:"latency_ms"`
	Confidence      *float64  `json:"confidence,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Feedback is user feedback on a logged query.
type Feedback struct {
	QueryID        string   `json:"query_id"`
	Rating         int      `json:"rating"`
	Helpful        bool     `json:"helpful"`
	Comment        string   `json:"comment,omitempty"`
	RelevantDocIDs []string `json:"relevant_doc_ids,omitempty"`
}

// AnalyticsReport aggregates query, document and feedback statistics.
type AnalyticsReport struct {
	TotalQueries   int           `json:"total_queries"`
	TotalDocuments int           `json:"total_documents"`
	AvgLatencyMs   float64       `json:"avg_latency_ms"`
	FeedbackCount  int           `json:"feedback_count"`
	AvgRating      float64       `json:"avg_rating"`
	TopDocuments   []TopDocument `json:"top_documents"`
}

// TopDocument is a most-viewed document entry in the analytics report.
type TopDocument struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	ViewCount int    `json:"view_count"`
}

// AddQueryLog stores a query log entry.
func (s *Store) AddQueryLog(ctx context.Context, log QueryLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO query_logs (id, user_sub, query, session_id, retrieved_doc_ids, latency_ms, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		log.ID, log.UserSub, log.Query, log.SessionID,
		strings.Join(log.RetrievedDocIDs, ","), log.LatencyMs, log.Confidence)
	if err != nil {
		return fmt.Errorf("add query log: %w", err)
	}
	return nil
}

// ListQueryLogs returns the most recent query logs. Empty userSub lists
// logs across all users.
func (s *Store) ListQueryLogs(ctx context.Context, userSub string, limit int) ([]QueryLog, error) {
	query := `
		SELECT id, user_sub, query, session_id, retrieved_doc_ids, latency_ms, confidence, created_at
		FROM query_logs`
	args := []any{}
	if userSub != "" {
		query += ` WHERE user_sub = ?`
		args = append(args, userSub)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list query logs: %w", err)
	}
	defer rows.Close()

	var logs []QueryLog
	for rows.Next() {
		var (
			l          QueryLog
			docIDs     string
			confidence sql.NullFloat64
		)
		if err := rows.Scan(&l.ID, &l.UserSub, &l.Query, &l.SessionID,
			&docIDs, &l.LatencyMs, &confidence, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan query log: %w", err)
		}
		if docIDs != "" {
			l.RetrievedDocIDs = strings.Split(docIDs, ",")
		}
		if confidence.Valid {
			c := confidence.Float64
			l.Confidence = &c
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate query logs: %w", err)
	}
	return logs, nil
}

// AddFeedback stores feedback for a query and bumps helpful counters for
// the documents the user marked relevant.
func (s *Store) AddFeedback(ctx context.Context, fb Feedback) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback (query_id, rating, helpful, comment, relevant_doc_ids)
		VALUES (?, ?, ?, ?, ?)`,
		fb.QueryID, fb.Rating, boolToInt(fb.Helpful), fb.Comment,
		strings.Join(fb.RelevantDocIDs, ","))
	if err != nil {
		return fmt.Errorf("add feedback: %w", err)
	}

	for _, id := range fb.RelevantDocIDs {
		if err := s.IncrementHelpfulCount(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// GetAnalytics builds the aggregate analytics report.
func (s *Store) GetAnalytics(ctx context.Context) (AnalyticsReport, error) {
	var report AnalyticsReport

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(AVG(latency_ms), 0) FROM query_logs`).
		Scan(&report.TotalQueries, &report.AvgLatencyMs)
	if err != nil {
		return AnalyticsReport{}, fmt.Errorf("query stats: %w", err)
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents`).Scan(&report.TotalDocuments); err != nil {
		return AnalyticsReport{}, fmt.Errorf("document stats: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(AVG(rating), 0) FROM feedback`).
		Scan(&report.FeedbackCount, &report.AvgRating)
	if err != nil {
		return AnalyticsReport{}, fmt.Errorf("feedback stats: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, view_count FROM documents
		WHERE view_count > 0 ORDER BY view_count DESC LIMIT 5`)
	if err != nil {
		return AnalyticsReport{}, fmt.Errorf("top documents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d TopDocument
		if err := rows.Scan(&d.ID, &d.Title, &d.ViewCount); err != nil {
			return AnalyticsReport{}, fmt.Errorf("scan top document: %w", err)
		}
		report.TopDocuments = append(report.TopDocuments, d)
	}
	if err := rows.Err(); err != nil {
		return AnalyticsReport{}, fmt.Errorf("iterate top documents: %w", err)
	}
	return report, nil
}
