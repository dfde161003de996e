package tests

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cinemarket/backoffice/e2e/client"
	"github.com/cinemarket/backoffice/e2e/runner"
)

func init() {
	runner.Register(&runner.Test{
		Name:        "rebuild-auth",
		Description: "Rebuild endpoint rejects bad tokens and wrong methods",
		Run:         runRebuildAuthTest,
	})
}

func runRebuildAuthTest(ctx context.Context, cfg *runner.Config) error {
	c := &client.Config{AdminURL: cfg.AdminURL, AdminToken: cfg.AdminToken}

	// 1. Missing token
	status, err := client.RebuildStatusCode(ctx, c, http.MethodPost, "")
	if err != nil {
		return fmt.Errorf("request with missing token failed: %w", err)
	}
	if status != http.StatusUnauthorized {
		return fmt.Errorf("expected 401 for missing token, got %d", status)
	}

	// 2. Wrong token
	status, err = client.RebuildStatusCode(ctx, c, http.MethodPost, "not-the-token")
	if err != nil {
		return fmt.Errorf("request with wrong token failed: %w", err)
	}
	if status != http.StatusUnauthorized {
		return fmt.Errorf("expected 401 for wrong token, got %d", status)
	}

	// 3. Wrong method with a valid token
	status, err = client.RebuildStatusCode(ctx, c, http.MethodGet, cfg.AdminToken)
	if err != nil {
		return fmt.Errorf("GET request failed: %w", err)
	}
	if status != http.StatusMethodNotAllowed {
		return fmt.Errorf("expected 405 for GET, got %d", status)
	}

	return nil
}
