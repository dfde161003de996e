package tests

import (
	"context"
	"fmt"

	"github.com/cinemarket/backoffice/e2e/client"
	"github.com/cinemarket/backoffice/e2e/runner"
)

func init() {
	runner.Register(&runner.Test{
		Name:        "rebuild",
		Description: "Trigger a projection rebuild and verify a converged second run",
		Run:         runRebuildTest,
	})
}

func runRebuildTest(ctx context.Context, cfg *runner.Config) error {
	c := &client.Config{AdminURL: cfg.AdminURL, AdminToken: cfg.AdminToken}

	// 1. First rebuild: whatever drift existed gets corrected.
	first, err := client.TriggerRebuild(ctx, c, cfg.AdminToken)
	if err != nil {
		return fmt.Errorf("first rebuild failed: %w", err)
	}

	if first.Fetched < 0 || first.Inserted < 0 || first.Updated < 0 || first.Deactivated < 0 {
		return fmt.Errorf("rebuild reported negative counters: %+v", first)
	}
	if first.Inserted+first.Updated > first.Fetched {
		return fmt.Errorf("rebuild changed more rows (%d) than it fetched (%d)",
			first.Inserted+first.Updated, first.Fetched)
	}

	// 2. Second rebuild right after: the store already matches the catalog,
	// so nothing changes.
	second, err := client.TriggerRebuild(ctx, c, cfg.AdminToken)
	if err != nil {
		return fmt.Errorf("second rebuild failed: %w", err)
	}

	if second.Inserted != 0 || second.Updated != 0 || second.Deactivated != 0 {
		return fmt.Errorf("second rebuild was not a no-op: %+v", second)
	}
	if second.Fetched != first.Fetched {
		return fmt.Errorf("catalog size changed between runs: %d vs %d", first.Fetched, second.Fetched)
	}

	return nil
}
