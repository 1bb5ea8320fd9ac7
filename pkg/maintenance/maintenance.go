// Package maintenance toggles the managed application's availability flag
// around destructive operations by delegating to the application's own
// artisan commands. When a stage between Enable and Disable fails, the
// session leaves maintenance enabled on purpose: an interrupted upgrade must
// not silently present a broken live site.
package maintenance

import (
	"context"
	"fmt"

	"github.com/stackmill/upshift/pkg/command"
	"github.com/stackmill/upshift/pkg/config"
	"github.com/stackmill/upshift/pkg/log"
)

// Controller drives the application's maintenance mode and cache commands.
type Controller struct {
	runner   command.Runner
	settings *config.Settings
}

// NewController creates a new maintenance Controller
func NewController(runner command.Runner, settings *config.Settings) *Controller {
	return &Controller{runner: runner, settings: settings}
}

func (c *Controller) artisan(ctx context.Context, target string, args ...string) error {
	return c.runner.Run(ctx, command.Cmd{
		Name: c.settings.PHPBin,
		Args: append([]string{"artisan"}, args...),
		Dir:  target,
	})
}

// Enable puts the installation into maintenance mode.
func (c *Controller) Enable(ctx context.Context, target string) error {
	if err := c.artisan(ctx, target, "down"); err != nil {
		return fmt.Errorf("enable maintenance mode: %w", err)
	}
	logger := log.WithComponent("maintenance")
	logger.Info().Str("target", target).Msg("maintenance mode enabled")
	return nil
}

// Disable takes the installation out of maintenance mode.
func (c *Controller) Disable(ctx context.Context, target string) error {
	if err := c.artisan(ctx, target, "up"); err != nil {
		return fmt.Errorf("disable maintenance mode: %w", err)
	}
	logger := log.WithComponent("maintenance")
	logger.Info().Str("target", target).Msg("maintenance mode disabled")
	return nil
}

// ClearCache drops the application's configuration and data caches. The
// rollback session runs this after a restore so stale caches from the failed
// upgrade cannot survive into the restored installation.
func (c *Controller) ClearCache(ctx context.Context, target string) error {
	if err := c.artisan(ctx, target, "config:clear"); err != nil {
		return fmt.Errorf("clear config cache: %w", err)
	}
	if err := c.artisan(ctx, target, "cache:clear"); err != nil {
		return fmt.Errorf("clear application cache: %w", err)
	}
	logger := log.WithComponent("maintenance")
	logger.Info().Str("target", target).Msg("caches cleared")
	return nil
}
