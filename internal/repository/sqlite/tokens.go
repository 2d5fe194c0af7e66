package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// UpsertToken stores a per-user, per-provider delegated token.
func (s *Store) UpsertToken(ctx context.Context, userSub, provider, token string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vault_tokens (user_sub, provider, token) VALUES (?, ?, ?)
		ON CONFLICT(user_sub, provider) DO UPDATE SET token = excluded.token`,
		userSub, provider, token)
	if err != nil {
		return fmt.Errorf("upsert token: %w", err)
	}
	return nil
}

// GetToken returns a stored token, or empty string when absent.
func (s *Store) GetToken(ctx context.Context, userSub, provider string) (string, error) {
	var token string
	err := s.db.QueryRowContext(ctx,
		`SELECT token FROM vault_tokens WHERE user_sub = ? AND provider = ?`,
		userSub, provider).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get token: %w", err)
	}
	return token, nil
}

// ListTokenProviders returns providers that have a token stored for the user.
func (s *Store) ListTokenProviders(ctx context.Context, userSub string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT provider FROM vault_tokens WHERE user_sub = ? ORDER BY provider`, userSub)
	if err != nil {
		return nil, fmt.Errorf("list token providers: %w", err)
	}
	defer rows.Close()

	var providers []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan provider: %w", err)
		}
		providers = append(providers, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate providers: %w", err)
	}
	return providers, nil
}
