package perms

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

func testSettings() *config.Settings {
	return &config.Settings{
		ServiceUser:  "www-data",
		ServiceGroup: "www-data",
		WritableDirs: []string{"storage", "bootstrap/cache"},
	}
}

func TestNormalize(t *testing.T) {
	target := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(target, "storage"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(target, "bootstrap", "cache"), 0o755))

	fake := command.NewFake()
	n := NewNormalizer(fake, testSettings())

	require.NoError(t, n.Normalize(context.Background(), target))

	assert.Equal(t, []string{
		"chown -R www-data:www-data " + filepath.Join(target, "storage"),
		"chmod -R ug+rwX " + filepath.Join(target, "storage"),
		"chown -R www-data:www-data " + filepath.Join(target, "bootstrap/cache"),
		"chmod -R ug+rwX " + filepath.Join(target, "bootstrap/cache"),
	}, fake.CallLines())
}

func TestNormalize_SkipsMissingDir(t *testing.T) {
	target := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(target, "storage"), 0o755))

	fake := command.NewFake()
	n := NewNormalizer(fake, testSettings())

	require.NoError(t, n.Normalize(context.Background(), target))
	assert.Len(t, fake.Calls(), 2, "only the existing dir gets chown+chmod")
}

func TestNormalize_ChownFailureIsFatal(t *testing.T) {
	target := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(target, "storage"), 0o755))

	fake := command.NewFake()
	fake.FailWith("chown -R www-data:www-data "+filepath.Join(target, "storage"), errors.New("operation not permitted"))
	n := NewNormalizer(fake, testSettings())

	err := n.Normalize(context.Background(), target)
	assert.ErrorContains(t, err, "chown")
}
