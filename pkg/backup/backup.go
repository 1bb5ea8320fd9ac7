package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/stackmill/upshift/pkg/command"
	"github.com/stackmill/upshift/pkg/config"
	"github.com/stackmill/upshift/pkg/log"
	"github.com/stackmill/upshift/pkg/types"
)

var (
	// ErrBackupExists is returned by Create when a snapshot for the target
	// already exists. Upshift refuses to overwrite it: the operator decides
	// whether to roll back or discard the stale snapshot first.
	ErrBackupExists = errors.New("backup already exists")

	// ErrBackupNotFound is returned by Restore when no snapshot exists for
	// the target. Restore performs no destructive action in that case.
	ErrBackupNotFound = errors.New("backup not found")
)

// dumpPrefix namespaces the SQL dump inside the snapshot so Restore can
// strip it without touching files that belong to the installation itself.
const dumpPrefix = "upshift-"

// Manager creates and restores point-in-time snapshots of an installation:
// the full directory tree moved to a sibling path plus one SQL dump.
type Manager struct {
	runner   command.Runner
	settings *config.Settings
}

// NewManager creates a new backup Manager
func NewManager(runner command.Runner, settings *config.Settings) *Manager {
	return &Manager{runner: runner, settings: settings}
}

// Path returns the snapshot location for a target. The target is cleaned
// first so a trailing slash does not change where the snapshot lands.
func Path(target string) string {
	return filepath.Clean(target) + "-backup"
}

// Create snapshots the target. The tree is renamed, not copied, to the
// sibling backup path: the rename is atomic within the parent directory, so
// there is never a half-written snapshot for a later Restore to trust. The
// database is then dumped into the snapshot root. If the dump fails the
// rename is undone and the live tree is back exactly where it was.
//
// Immediately after Create returns, the live path is absent; the upgrade
// session rebuilds it with Materialize before any destructive stage runs.
func (m *Manager) Create(ctx context.Context, target string, env *types.EnvironmentConfig, dbName string) (*types.Backup, error) {
	logger := log.WithComponent("backup")

	target = filepath.Clean(target)
	if _, err := os.Stat(target); err != nil {
		return nil, fmt.Errorf("stat target %s: %w", target, err)
	}

	bpath := Path(target)
	if _, err := os.Stat(bpath); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrBackupExists, bpath)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("stat backup path %s: %w", bpath, err)
	}

	if err := os.Rename(target, bpath); err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", target, err)
	}
	logger.Info().Str("target", target).Str("backup", bpath).Msg("installation tree snapshotted")

	b := &types.Backup{
		Target:    target,
		Path:      bpath,
		CreatedAt: time.Now(),
	}

	db := dbName
	if db == "" && env != nil {
		db = env.Database
	}
	if db == "" {
		logger.Warn().Str("backup", bpath).Msg("no database name available, skipping SQL dump")
		return b, nil
	}

	dumpFile := filepath.Join(bpath, dumpPrefix+db+".sql")
	if err := m.dump(ctx, env, db, dumpFile); err != nil {
		// Undo the rename so a failed Create leaves the live tree untouched.
		os.Remove(dumpFile)
		if rerr := os.Rename(bpath, target); rerr != nil {
			return nil, fmt.Errorf("dump database %s: %v (and could not undo snapshot: %w)", db, err, rerr)
		}
		return nil, fmt.Errorf("dump database %s: %w", db, err)
	}
	b.DumpFile = dumpFile

	logger.Info().Str("dump", dumpFile).Msg("database dumped into snapshot")
	return b, nil
}

func (m *Manager) dump(ctx context.Context, env *types.EnvironmentConfig, db, dumpFile string) error {
	f, err := os.Create(dumpFile)
	if err != nil {
		return fmt.Errorf("create dump file: %w", err)
	}
	defer f.Close()

	args := []string{}
	var extraEnv []string
	if env != nil {
		if env.Host != "" {
			args = append(args, "--host", env.Host)
		}
		if env.Port != "" {
			args = append(args, "--port", env.Port)
		}
		if env.User != "" {
			args = append(args, "--user", env.User)
		}
		if env.Password != "" {
			// Passed via the environment so it never shows up in ps output.
			extraEnv = append(extraEnv, "MYSQL_PWD="+env.Password)
		}
	}
	args = append(args, db)

	if err := m.runner.Run(ctx, command.Cmd{
		Name:   m.settings.MysqldumpBin,
		Args:   args,
		Env:    extraEnv,
		Stdout: f,
	}); err != nil {
		return err
	}
	return f.Sync()
}

// Materialize rebuilds the live installation tree from the snapshot by
// copying it back to the target path, leaving out the SQL dump. The snapshot
// itself is never mutated.
func (m *Manager) Materialize(b *types.Backup) error {
	if _, err := os.Stat(b.Path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrBackupNotFound, b.Path)
		}
		return fmt.Errorf("stat backup %s: %w", b.Path, err)
	}
	if err := copyTree(b.Path, b.Target); err != nil {
		return fmt.Errorf("materialize %s from %s: %w", b.Target, b.Path, err)
	}
	logger := log.WithComponent("backup")
	logger.Info().
		Str("target", b.Target).
		Str("backup", b.Path).
		Msg("working tree rebuilt from snapshot")
	return nil
}

// Restore replaces the live installation with the snapshot: the current tree
// is deleted entirely and the snapshot is moved back into its place. This is
// destructive and irreversible. When no snapshot exists Restore fails with
// ErrBackupNotFound before touching anything.
func (m *Manager) Restore(target string) error {
	logger := log.WithComponent("backup")

	target = filepath.Clean(target)
	bpath := Path(target)
	if _, err := os.Stat(bpath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrBackupNotFound, bpath)
		}
		return fmt.Errorf("stat backup %s: %w", bpath, err)
	}

	if err := os.RemoveAll(target); err != nil {
		return fmt.Errorf("remove current installation %s: %w", target, err)
	}
	if err := os.Rename(bpath, target); err != nil {
		return fmt.Errorf("move backup into place: %w", err)
	}

	// The dump is snapshot metadata, not installation content.
	dumps, err := filepath.Glob(filepath.Join(target, dumpPrefix+"*.sql"))
	if err == nil {
		for _, d := range dumps {
			if err := os.Remove(d); err != nil {
				logger.Warn().Str("dump", d).Err(err).Msg("could not remove dump file from restored tree")
			}
		}
	}

	logger.Info().Str("target", target).Msg("installation restored from snapshot")
	return nil
}
