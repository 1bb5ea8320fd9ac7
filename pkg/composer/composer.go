// Package composer reconciles the installation's third-party library set
// against its manifest using the Composer package manager.
package composer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/stackmill/upshift/pkg/command"
	"github.com/stackmill/upshift/pkg/config"
	"github.com/stackmill/upshift/pkg/log"
)

// vendorDir is the resolved-dependency directory Composer manages.
const vendorDir = "vendor"

// Installer reinstalls the dependency set from the manifest in
// production-optimized mode.
type Installer struct {
	runner   command.Runner
	settings *config.Settings
}

// NewInstaller creates a new dependency Installer
func NewInstaller(runner command.Runner, settings *config.Settings) *Installer {
	return &Installer{runner: runner, settings: settings}
}

// Reconcile brings the resolved dependencies in line with the manifest.
// Today that means removing the vendor directory and reinstalling without
// development packages and with an optimized autoloader; the name states the
// contract so a diffing implementation can replace the delete. Reconcile is
// idempotent and safe to run repeatedly.
func (i *Installer) Reconcile(ctx context.Context, target string) error {
	logger := log.WithComponent("composer")

	vendor := filepath.Join(target, vendorDir)
	if err := os.RemoveAll(vendor); err != nil {
		return fmt.Errorf("remove %s: %w", vendor, err)
	}
	logger.Debug().Str("dir", vendor).Msg("removed resolved dependencies")

	err := i.runner.Run(ctx, command.Cmd{
		Name: i.settings.ComposerBin,
		Args: []string{"install", "--no-dev", "--optimize-autoloader", "--no-interaction"},
		Dir:  target,
	})
	if err != nil {
		return fmt.Errorf("install dependencies: %w", err)
	}

	logger.Info().Str("target", target).Msg("dependencies installed from manifest")
	return nil
}
