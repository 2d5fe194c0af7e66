package profile

import (
	"context"

	"github.com/privara/docsearch/internal/domain"
	"github.com/privara/docsearch/internal/transport/weather"
)

// SettingsStore persists per-user preferences.
type SettingsStore interface {
	GetUserSettings(ctx context.Context, userSub string) (domain.UserSettings, error)
	SetUserSettings(ctx context.Context, userSub string, st domain.UserSettings) error
}

// TokenVault stores delegated third-party tokens per user and provider.
// GetToken returns an empty string when no token is stored.
type TokenVault interface {
	UpsertToken(ctx context.Context, userSub, provider, token string) error
	GetToken(ctx context.Context, userSub, provider string) (string, error)
	ListTokenProviders(ctx context.Context, userSub string) ([]string, error)
}

// WeatherFetcher returns current conditions for a city, optionally using a
// delegated token.
type WeatherFetcher interface {
	Fetch(ctx context.Context, city, token string) weather.Report
}
