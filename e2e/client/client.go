// Package client is a thin HTTP client for the back-office admin API,
// used by the e2e runner.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Config holds client configuration.
type Config struct {
	AdminURL   string
	AdminToken string
}

// RebuildResult mirrors the admin API's rebuild response.
type RebuildResult struct {
	Fetched     int   `json:"fetched"`
	Inserted    int   `json:"inserted"`
	Updated     int   `json:"updated"`
	Deactivated int   `json:"deactivated"`
	DurationMs  int64 `json:"durationMs"`
}

// ErrorResponse represents an error response from the API.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ErrRebuildConflict is returned when a rebuild is already running.
var ErrRebuildConflict = fmt.Errorf("projection rebuild already running")

// TriggerRebuild posts to the rebuild endpoint with the given token and
// returns the run's counters. A 409 maps to ErrRebuildConflict so tests
// can assert on the conflict path.
func TriggerRebuild(ctx context.Context, cfg *Config, token string) (*RebuildResult, error) {
	url := cfg.AdminURL + "/admin/projections/rebuild"

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("X-Admin-Token", token)

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusConflict:
		return nil, ErrRebuildConflict
	default:
		var errResp ErrorResponse
		json.Unmarshal(respBody, &errResp)
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, errResp.Error)
	}

	var result RebuildResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return &result, nil
}

// RebuildStatusCode posts to the rebuild endpoint and returns only the
// HTTP status code, for auth and method tests.
func RebuildStatusCode(ctx context.Context, cfg *Config, method, token string) (int, error) {
	url := cfg.AdminURL + "/admin/projections/rebuild"

	httpReq, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	if token != "" {
		httpReq.Header.Set("X-Admin-Token", token)
	}

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

// CheckHealth checks the health endpoint of the admin server.
func CheckHealth(ctx context.Context, url string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status %d", resp.StatusCode)
	}

	return nil
}
