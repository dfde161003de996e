package tests

import (
	"context"
	"fmt"

	"github.com/cinemarket/backoffice/e2e/client"
	"github.com/cinemarket/backoffice/e2e/runner"
)

func init() {
	runner.Register(&runner.Test{
		Name:        "health",
		Description: "Admin server reports healthy",
		Run:         runHealthTest,
	})
}

func runHealthTest(ctx context.Context, cfg *runner.Config) error {
	if err := client.CheckHealth(ctx, cfg.AdminURL); err != nil {
		return fmt.Errorf("admin server unhealthy: %w", err)
	}
	return nil
}
