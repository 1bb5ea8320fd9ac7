package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stackmill/upshift/pkg/backup"
	"github.com/stackmill/upshift/pkg/command"
	"github.com/stackmill/upshift/pkg/composer"
	"github.com/stackmill/upshift/pkg/log"
	"github.com/stackmill/upshift/pkg/maintenance"
	"github.com/stackmill/upshift/pkg/types"
)

// Rollback restores the installation from its last snapshot, reinstalls the
// dependency set and clears the application caches. It is independent of how
// far a failed upgrade progressed: the snapshot is the single source of
// truth, and a missing snapshot is the session's only expected failure mode.
type Rollback struct {
	cfg   Config
	state types.RollbackState
	rec   *types.SessionRecord

	journal Recorder
	backups backupManager
	maint   maintenanceController
	deps    dependencyInstaller

	privileged func() bool
}

// NewRollback wires a rollback session from the real components.
func NewRollback(cfg Config, runner command.Runner, j Recorder) *Rollback {
	return &Rollback{
		cfg:   cfg,
		state: types.RollbackPreflight,
		rec: &types.SessionRecord{
			ID:        uuid.New().String(),
			Kind:      types.SessionRollback,
			Target:    cfg.Target,
			StartedAt: time.Now(),
		},
		journal:    j,
		backups:    backup.NewManager(runner, cfg.Settings),
		maint:      maintenance.NewController(runner, cfg.Settings),
		deps:       composer.NewInstaller(runner, cfg.Settings),
		privileged: privileged,
	}
}

// ID returns the session's journal ID.
func (r *Rollback) ID() string {
	return r.rec.ID
}

// State returns the session's current state.
func (r *Rollback) State() types.RollbackState {
	return r.state
}

// Record returns the session's journal record.
func (r *Rollback) Record() *types.SessionRecord {
	return r.rec
}

func (r *Rollback) to(state types.RollbackState) {
	r.state = state
	record(r.journal, r.rec, string(state))
	logger := log.WithSession(r.rec.ID)
	logger.Info().Str("state", string(state)).Msg("rollback session state")
}

func (r *Rollback) fail(stage types.RollbackState, err error) error {
	r.state = types.RollbackFailed
	r.rec.FailedStage = string(stage)
	r.rec.Err = err.Error()
	r.rec.FinishedAt = time.Now()
	record(r.journal, r.rec, string(types.RollbackFailed))

	logger := log.WithSession(r.rec.ID)
	logger.Error().
		Err(err).
		Str("stage", string(stage)).
		Msg("rollback session failed")
	return fmt.Errorf("%s: %w", stage, err)
}

// Run drives the rollback chain. When no snapshot exists it fails before
// touching the live installation; there is nothing to compensate at that
// point.
func (r *Rollback) Run(ctx context.Context) error {
	logger := log.WithSession(r.rec.ID)
	logger.Info().Str("target", r.cfg.Target).Msg("starting rollback session")

	r.to(types.RollbackPreflight)
	if !r.privileged() {
		return r.fail(types.RollbackPreflight, ErrNotPrivileged)
	}

	r.to(types.RollbackRestoring)
	if err := r.backups.Restore(r.cfg.Target); err != nil {
		return r.fail(types.RollbackRestoring, err)
	}

	r.to(types.RollbackReinstallingDependencies)
	if err := r.deps.Reconcile(ctx, r.cfg.Target); err != nil {
		return r.fail(types.RollbackReinstallingDependencies, err)
	}

	r.to(types.RollbackClearingCache)
	if err := r.maint.ClearCache(ctx, r.cfg.Target); err != nil {
		return r.fail(types.RollbackClearingCache, err)
	}

	r.rec.FinishedAt = time.Now()
	r.to(types.RollbackCompleted)
	logger.Info().Str("target", r.cfg.Target).Msg("rollback session completed")
	return nil
}
