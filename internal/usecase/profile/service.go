// Package profile serves user preferences, the delegated token vault, and
// the contextual weather assistant built on both.
package profile

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/privara/docsearch/internal/domain"
	"github.com/privara/docsearch/internal/transport/weather"
)

// sharedVaultSub is the fallback vault owner consulted when a user has no
// token of their own for a provider.
const sharedVaultSub = "shared"

// ContextualWeather is the assistant response combining profile, settings
// and third-party weather.
type ContextualWeather struct {
	Message  string              `json:"message"`
	Profile  domain.User         `json:"profile"`
	Settings domain.UserSettings `json:"settings"`
	Weather  weather.Report      `json:"weather"`
}

// Service implements the profile operations.
type Service struct {
	settings SettingsStore
	vault    TokenVault
	weather  WeatherFetcher
	logger   *zap.Logger
}

// NewService creates the profile service.
func NewService(settings SettingsStore, vault TokenVault, weather WeatherFetcher, logger *zap.Logger) *Service {
	return &Service{settings: settings, vault: vault, weather: weather, logger: logger}
}

// GetSettings returns the stored settings for a user. Wraps
// domain.ErrNotFound when none exist.
func (s *Service) GetSettings(ctx context.Context, userSub string) (domain.UserSettings, error) {
	return s.settings.GetUserSettings(ctx, userSub)
}

// UpdateSettings stores the user's settings.
func (s *Service) UpdateSettings(ctx context.Context, userSub string, st domain.UserSettings) error {
	if err := s.settings.SetUserSettings(ctx, userSub, st); err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	return nil
}

// StoreToken saves a delegated token for a provider.
func (s *Service) StoreToken(ctx context.Context, userSub, provider, token string) error {
	if provider == "" || token == "" {
		return fmt.Errorf("provider and token are required: %w", domain.ErrInvalidInput)
	}
	if err := s.vault.UpsertToken(ctx, userSub, provider, token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	return nil
}

// TokenPreview returns a masked preview of the stored token for a provider.
// Wraps domain.ErrNotFound when no token is stored. The raw token never
// leaves the vault.
func (s *Service) TokenPreview(ctx context.Context, userSub, provider string) (string, error) {
	token, err := s.vault.GetToken(ctx, userSub, provider)
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	if token == "" {
		return "", fmt.Errorf("no token stored for provider %s: %w", provider, domain.ErrNotFound)
	}
	return maskToken(token), nil
}

// Weather builds the contextual weather response: it reads the user's
// preferred city and calls the weather provider with the user's delegated
// token, falling back to the shared vault token when the user has none.
func (s *Service) Weather(ctx context.Context, user domain.User) (ContextualWeather, error) {
	settings, err := s.settings.GetUserSettings(ctx, user.Sub)
	if err != nil {
		return ContextualWeather{}, fmt.Errorf("load settings: %w", err)
	}

	token, err := s.vault.GetToken(ctx, user.Sub, "weather")
	if err != nil {
		s.logger.Warn("vault token lookup failed", zap.Error(err))
		token = ""
	}
	if token == "" {
		token, err = s.vault.GetToken(ctx, sharedVaultSub, "weather")
		if err != nil {
			s.logger.Warn("shared vault token lookup failed", zap.Error(err))
			token = ""
		}
	}

	city := settings.City
	if city == "" {
		city = "Seattle"
	}

	report := s.weather.Fetch(ctx, city, token)
	message := fmt.Sprintf("Hi %s, your preferred city is %s. Current conditions there: %s at %g°C.",
		user.Username, city, report.Description, report.TempC)

	return ContextualWeather{
		Message:  message,
		Profile:  user,
		Settings: settings,
		Weather:  report,
	}, nil
}

func maskToken(token string) string {
	if len(token) > 8 {
		return token[:4] + "..." + token[len(token)-4:]
	}
	return "***masked***"
}
