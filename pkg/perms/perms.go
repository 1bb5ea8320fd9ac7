// Package perms normalizes filesystem ownership and mode bits so the
// runtime's service account can write to the cache and storage subtrees.
package perms

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/stackmill/upshift/pkg/command"
	"github.com/stackmill/upshift/pkg/config"
	"github.com/stackmill/upshift/pkg/log"
)

// Normalizer applies the ownership and mode layout the runtime expects.
type Normalizer struct {
	runner   command.Runner
	settings *config.Settings
}

// NewNormalizer creates a new permission Normalizer
func NewNormalizer(runner command.Runner, settings *config.Settings) *Normalizer {
	return &Normalizer{runner: runner, settings: settings}
}

// Normalize chowns the writable subtrees to the service account and opens
// their mode bits for group writes. A misowned installation is
// non-functional, so any failure here is session-fatal even though the
// schema migration has already succeeded by the time this runs.
func (n *Normalizer) Normalize(ctx context.Context, target string) error {
	logger := log.WithComponent("perms")
	owner := n.settings.ServiceUser + ":" + n.settings.ServiceGroup

	for _, dir := range n.settings.WritableDirs {
		path := filepath.Join(target, dir)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			// Releases are allowed to drop a writable dir; nothing to own.
			logger.Warn().Str("dir", path).Msg("writable directory missing, skipping")
			continue
		}

		if err := n.runner.Run(ctx, command.Cmd{
			Name: "chown",
			Args: []string{"-R", owner, path},
		}); err != nil {
			return fmt.Errorf("chown %s: %w", path, err)
		}
		if err := n.runner.Run(ctx, command.Cmd{
			Name: "chmod",
			Args: []string{"-R", "ug+rwX", path},
		}); err != nil {
			return fmt.Errorf("chmod %s: %w", path, err)
		}
		logger.Debug().Str("dir", path).Str("owner", owner).Msg("permissions normalized")
	}

	logger.Info().Str("target", target).Msg("ownership and modes set for service account")
	return nil
}
