// Package weather fetches current conditions from wttr.in, falling back to
// a cached offline sample when live calls are disabled or fail.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Report is the weather payload returned to callers. UsedToken records
// whether a delegated user token was attached to the upstream call.
type Report struct {
	City        string  `json:"city"`
	Description string  `json:"description"`
	TempC       float64 `json:"temp_c"`
	FeelsLikeC  float64 `json:"feels_like_c"`
	Provider    string  `json:"provider"`
	UsedToken   bool    `json:"used_token"`
	Note        string  `json:"note,omitempty"`
	Error       string  `json:"error,omitempty"`
}

// Client fetches weather reports. Mode "live" calls the wttr.in JSON API;
// any other mode serves the offline sample.
type Client struct {
	mode       string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// New creates a weather client.
func New(mode, baseURL string, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = "https://wttr.in"
	}
	return &Client{
		mode:       mode,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 6 * time.Second},
		logger:     logger,
	}
}

// Fetch returns the weather for a city. The optional token is forwarded as
// an X-User-Token header to demonstrate delegated token usage. Fetch never
// returns an error: live failures degrade to the offline sample with the
// failure recorded in the report.
func (c *Client) Fetch(ctx context.Context, city, token string) Report {
	if c.mode != "live" {
		return offlineSample(city, token, "")
	}

	report, err := c.fetchLive(ctx, city, token)
	if err != nil {
		c.logger.Warn("live weather fetch failed, serving offline sample",
			zap.String("city", city), zap.Error(err))
		return offlineSample(city, token, err.Error())
	}
	return report
}

// wttrResponse mirrors the fields we use from wttr.in's format=j1 payload.
type wttrResponse struct {
	CurrentCondition []struct {
		TempC       string `json:"temp_C"`
		FeelsLikeC  string `json:"FeelsLikeC"`
		WeatherDesc []struct {
			Value string `json:"value"`
		} `json:"weatherDesc"`
	} `json:"current_condition"`
}

func (c *Client) fetchLive(ctx context.Context, city, token string) (Report, error) {
	reqURL := fmt.Sprintf("%s/%s?format=j1", c.baseURL, url.PathEscape(city))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Report{}, fmt.Errorf("build request: %w", err)
	}
	if token != "" {
		req.Header.Set("X-User-Token", token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Report{}, fmt.Errorf("call wttr.in: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Report{}, fmt.Errorf("wttr.in returned status %d", resp.StatusCode)
	}

	var parsed wttrResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Report{}, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.CurrentCondition) == 0 || len(parsed.CurrentCondition[0].WeatherDesc) == 0 {
		return Report{}, fmt.Errorf("response has no current condition")
	}

	current := parsed.CurrentCondition[0]
	tempC, err := strconv.ParseFloat(current.TempC, 64)
	if err != nil {
		return Report{}, fmt.Errorf("parse temp_C: %w", err)
	}
	feelsLikeC, err := strconv.ParseFloat(current.FeelsLikeC, 64)
	if err != nil {
		return Report{}, fmt.Errorf("parse FeelsLikeC: %w", err)
	}

	return Report{
		City:        city,
		Description: current.WeatherDesc[0].Value,
		TempC:       tempC,
		FeelsLikeC:  feelsLikeC,
		Provider:    "wttr.in",
		UsedToken:   token != "",
	}, nil
}

func offlineSample(city, token, fetchErr string) Report {
	return Report{
		City:        city,
		Description: "clear skies",
		TempC:       21,
		FeelsLikeC:  21,
		Provider:    "offline-sample",
		UsedToken:   token != "",
		Note:        "Returned cached sample because live call was skipped or failed.",
		Error:       fetchErr,
	}
}
