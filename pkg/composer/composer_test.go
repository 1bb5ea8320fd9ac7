package composer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackmill/upshift/pkg/command"
	"github.com/stackmill/upshift/pkg/config"
)

const installCmdline = "composer install --no-dev --optimize-autoloader --no-interaction"

func newInstaller(fake *command.Fake) *Installer {
	return NewInstaller(fake, &config.Settings{ComposerBin: "composer"})
}

func TestReconcile(t *testing.T) {
	target := t.TempDir()
	vendor := filepath.Join(target, "vendor")
	require.NoError(t, os.MkdirAll(filepath.Join(vendor, "acme", "lib"), 0o755))

	fake := command.NewFake()
	i := newInstaller(fake)

	require.NoError(t, i.Reconcile(context.Background(), target))

	_, err := os.Stat(vendor)
	assert.True(t, os.IsNotExist(err), "vendor dir should be removed before install")
	require.Equal(t, []string{installCmdline}, fake.CallLines())
	assert.Equal(t, target, fake.Calls()[0].Dir)
}

func TestReconcile_Idempotent(t *testing.T) {
	target := t.TempDir()

	fake := command.NewFake()
	i := newInstaller(fake)

	require.NoError(t, i.Reconcile(context.Background(), target))
	require.NoError(t, i.Reconcile(context.Background(), target))
	assert.Len(t, fake.Calls(), 2)
}

func TestReconcile_InstallFailure(t *testing.T) {
	target := t.TempDir()

	fake := command.NewFake()
	fake.FailWith(installCmdline, errors.New("manifest unsatisfiable"))
	i := newInstaller(fake)

	err := i.Reconcile(context.Background(), target)
	assert.ErrorContains(t, err, "install dependencies")
}
