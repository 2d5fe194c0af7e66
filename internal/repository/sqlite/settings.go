package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/privara/docsearch/internal/domain"
)

// GetUserSettings returns settings for a user, or ErrNotFound.
func (s *Store) GetUserSettings(ctx context.Context, userSub string) (domain.UserSettings, error) {
	var st domain.UserSettings
	err := s.db.QueryRowContext(ctx,
		`SELECT city, timezone, theme FROM user_settings WHERE user_sub = ?`,
		userSub).Scan(&st.City, &st.Timezone, &st.Theme)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.UserSettings{}, fmt.Errorf("settings for %s: %w", userSub, domain.ErrNotFound)
	}
	if err != nil {
		return domain.UserSettings{}, fmt.Errorf("get settings: %w", err)
	}
	return st, nil
}

// SetUserSettings inserts or replaces settings for a user.
func (s *Store) SetUserSettings(ctx context.Context, userSub string, st domain.UserSettings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_settings (user_sub, city, timezone, theme) VALUES (?, ?, ?, ?)
		ON CONFLICT(user_sub) DO UPDATE SET
			city = excluded.city,
			timezone = excluded.timezone,
			theme = excluded.theme`,
		userSub, st.City, st.Timezone, st.Theme)
	if err != nil {
		return fmt.Errorf("set settings: %w", err)
	}
	return nil
}
