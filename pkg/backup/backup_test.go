package backup

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackmill/upshift/pkg/command"
	"github.com/stackmill/upshift/pkg/config"
	"github.com/stackmill/upshift/pkg/types"
)

func testSettings() *config.Settings {
	return &config.Settings{MysqldumpBin: "mysqldump"}
}

func testEnv() *types.EnvironmentConfig {
	return &types.EnvironmentConfig{
		Host: "localhost",
		Port: "3306",
		User: "app",
	}
}

const dumpCmdline = "mysqldump --host localhost --port 3306 --user app appdb"

// buildTree creates a small installation tree under dir.
func buildTree(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "app", "Models"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "storage", "logs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DB_HOST=localhost\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app", "Models", "User.php"), []byte("<?php class User {}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "storage", "logs", "app.log"), []byte("log line\n"), 0o644))
	require.NoError(t, os.Symlink("storage/logs", filepath.Join(dir, "logs")))
}

// snapshotTree reads a tree into a rel-path → content map for byte-for-byte
// comparison. Symlinks map to "-> <dest>".
func snapshotTree(t *testing.T, dir string) map[string]string {
	t.Helper()
	out := map[string]string{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		require.NoError(t, err)
		rel, err := filepath.Rel(dir, path)
		require.NoError(t, err)
		if rel == "." {
			return nil
		}
		info, err := d.Info()
		require.NoError(t, err)
		switch {
		case d.IsDir():
			out[rel] = "dir"
		case info.Mode()&fs.ModeSymlink != 0:
			dest, err := os.Readlink(path)
			require.NoError(t, err)
			out[rel] = "-> " + dest
		default:
			data, err := os.ReadFile(path)
			require.NoError(t, err)
			out[rel] = string(data)
		}
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestPath_NormalizesTrailingSlash(t *testing.T) {
	assert.Equal(t, "/srv/app-backup", Path("/srv/app"))
	assert.Equal(t, "/srv/app-backup", Path("/srv/app/"))
}

func TestCreateRestore_TrailingSlashTarget(t *testing.T) {
	target := filepath.Join(t.TempDir(), "app")
	buildTree(t, target)
	before := snapshotTree(t, target)

	fake := command.NewFake()
	fake.RespondWith(dumpCmdline, "-- dump\n")
	m := NewManager(fake, testSettings())

	// Shell completion leaves a trailing slash on the path; the snapshot
	// must land at the same sibling location either way.
	b, err := m.Create(context.Background(), target+string(filepath.Separator), testEnv(), "appdb")
	require.NoError(t, err)
	assert.Equal(t, Path(target), b.Path)

	require.NoError(t, m.Restore(target+string(filepath.Separator)))
	assert.Equal(t, before, snapshotTree(t, target))
}

func TestCreateRestore_RoundTrip(t *testing.T) {
	target := filepath.Join(t.TempDir(), "app")
	buildTree(t, target)
	before := snapshotTree(t, target)

	fake := command.NewFake()
	fake.RespondWith(dumpCmdline, "-- MySQL dump\n")
	m := NewManager(fake, testSettings())

	b, err := m.Create(context.Background(), target, testEnv(), "appdb")
	require.NoError(t, err)

	// The tree was renamed, not copied: the live path is gone.
	_, err = os.Stat(target)
	assert.True(t, os.IsNotExist(err), "target should be absent after create")

	// The snapshot holds the tree plus the SQL dump at its root.
	assert.Equal(t, Path(target), b.Path)
	data, err := os.ReadFile(b.DumpFile)
	require.NoError(t, err)
	assert.Equal(t, "-- MySQL dump\n", string(data))

	// Restore is a pure move-back: byte-for-byte identity, dump stripped.
	require.NoError(t, m.Restore(target))
	assert.Equal(t, before, snapshotTree(t, target))

	_, err = os.Stat(b.Path)
	assert.True(t, os.IsNotExist(err), "backup should be consumed by restore")
}

func TestCreate_RefusesExistingBackup(t *testing.T) {
	target := filepath.Join(t.TempDir(), "app")
	buildTree(t, target)
	require.NoError(t, os.MkdirAll(Path(target), 0o755))
	before := snapshotTree(t, target)

	m := NewManager(command.NewFake(), testSettings())

	_, err := m.Create(context.Background(), target, testEnv(), "appdb")
	assert.ErrorIs(t, err, ErrBackupExists)
	assert.Equal(t, before, snapshotTree(t, target), "target must be untouched")
}

func TestCreate_DumpFailureUndoesSnapshot(t *testing.T) {
	target := filepath.Join(t.TempDir(), "app")
	buildTree(t, target)
	before := snapshotTree(t, target)

	fake := command.NewFake()
	fake.FailWith(dumpCmdline, errors.New("connection refused"))
	m := NewManager(fake, testSettings())

	_, err := m.Create(context.Background(), target, testEnv(), "appdb")
	require.Error(t, err)

	// The rename was undone: live tree back in place, no backup left behind.
	assert.Equal(t, before, snapshotTree(t, target))
	_, err = os.Stat(Path(target))
	assert.True(t, os.IsNotExist(err))
}

func TestCreate_SkipsDumpWithoutDatabaseName(t *testing.T) {
	target := filepath.Join(t.TempDir(), "app")
	buildTree(t, target)

	fake := command.NewFake()
	m := NewManager(fake, testSettings())

	b, err := m.Create(context.Background(), target, &types.EnvironmentConfig{Host: "localhost"}, "")
	require.NoError(t, err)

	assert.Empty(t, b.DumpFile)
	assert.Empty(t, fake.Calls(), "no dump command should run")
}

func TestMaterialize_RebuildsWorkingTree(t *testing.T) {
	target := filepath.Join(t.TempDir(), "app")
	buildTree(t, target)
	before := snapshotTree(t, target)

	fake := command.NewFake()
	fake.RespondWith(dumpCmdline, "-- dump\n")
	m := NewManager(fake, testSettings())

	b, err := m.Create(context.Background(), target, testEnv(), "appdb")
	require.NoError(t, err)

	require.NoError(t, m.Materialize(b))

	// The working tree matches the original and excludes the dump.
	assert.Equal(t, before, snapshotTree(t, target))

	// The snapshot still holds the dump: it was copied from, not mutated.
	_, err = os.Stat(b.DumpFile)
	assert.NoError(t, err)
}

func TestRestore_NoBackup(t *testing.T) {
	target := filepath.Join(t.TempDir(), "app")
	buildTree(t, target)
	before := snapshotTree(t, target)

	m := NewManager(command.NewFake(), testSettings())

	err := m.Restore(target)
	assert.ErrorIs(t, err, ErrBackupNotFound)
	assert.Equal(t, before, snapshotTree(t, target), "restore must not touch the live tree")
}
