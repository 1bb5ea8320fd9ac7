package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stackmill/upshift/pkg/backup"
	"github.com/stackmill/upshift/pkg/command"
	"github.com/stackmill/upshift/pkg/composer"
	"github.com/stackmill/upshift/pkg/envfile"
	"github.com/stackmill/upshift/pkg/log"
	"github.com/stackmill/upshift/pkg/maintenance"
	"github.com/stackmill/upshift/pkg/migrate"
	"github.com/stackmill/upshift/pkg/perms"
	"github.com/stackmill/upshift/pkg/release"
	"github.com/stackmill/upshift/pkg/types"
)

type schemaMigrator interface {
	Run(ctx context.Context, target string, env *types.EnvironmentConfig, dbName string) ([]migrate.StepResult, error)
}

// Upgrade is the orchestrating state machine that moves an installation to a
// new release. Each stage runs to completion or the whole session aborts
// into Failed; there is no partial continuation and no automatic rollback —
// recovery from a failed upgrade is an explicit Rollback session.
type Upgrade struct {
	cfg   Config
	state types.SessionState
	rec   *types.SessionRecord

	journal  Recorder
	backups  backupManager
	maint    maintenanceController
	releases releaseFetcher
	deps     dependencyInstaller
	migrator schemaMigrator
	perms    permissionNormalizer

	privileged func() bool
	runtime    runtimeProbe
	readEnv    func(path string) (*types.EnvironmentConfig, error)

	// env is the credential record read once at preflight and handed to the
	// backup and migration stages.
	env *types.EnvironmentConfig
}

// NewUpgrade wires an upgrade session from the real components.
func NewUpgrade(cfg Config, runner command.Runner, j Recorder) *Upgrade {
	return &Upgrade{
		cfg:   cfg,
		state: types.StatePreflight,
		rec: &types.SessionRecord{
			ID:        uuid.New().String(),
			Kind:      types.SessionUpgrade,
			Target:    cfg.Target,
			StartedAt: time.Now(),
		},
		journal:    j,
		backups:    backup.NewManager(runner, cfg.Settings),
		maint:      maintenance.NewController(runner, cfg.Settings),
		releases:   release.NewFetcher(cfg.Settings),
		deps:       composer.NewInstaller(runner, cfg.Settings),
		migrator:   migrate.NewMigrator(runner, cfg.Settings),
		perms:      perms.NewNormalizer(runner, cfg.Settings),
		privileged: privileged,
		runtime:    phpRuntimeProbe(runner, cfg.Settings.PHPBin),
		readEnv:    envfile.Read,
	}
}

// ID returns the session's journal ID.
func (u *Upgrade) ID() string {
	return u.rec.ID
}

// State returns the session's current state.
func (u *Upgrade) State() types.SessionState {
	return u.state
}

// Record returns the session's journal record.
func (u *Upgrade) Record() *types.SessionRecord {
	return u.rec
}

func (u *Upgrade) to(state types.SessionState) {
	u.state = state
	record(u.journal, u.rec, string(state))
	logger := log.WithSession(u.rec.ID)
	logger.Info().Str("state", string(state)).Msg("upgrade session state")
}

// fail transitions the session into Failed, recording the stage that broke.
func (u *Upgrade) fail(stage types.SessionState, err error) error {
	u.state = types.StateFailed
	u.rec.FailedStage = string(stage)
	u.rec.Err = err.Error()
	u.rec.FinishedAt = time.Now()
	record(u.journal, u.rec, string(types.StateFailed))

	logger := log.WithSession(u.rec.ID)
	logger.Error().
		Err(err).
		Str("stage", string(stage)).
		Msg("upgrade session failed")
	return fmt.Errorf("%s: %w", stage, err)
}

// Run drives the session through its eight stages in order. On success the
// backup directory still exists: only a later rollback consumes it.
func (u *Upgrade) Run(ctx context.Context) error {
	logger := log.WithSession(u.rec.ID)
	logger.Info().
		Str("target", u.cfg.Target).
		Str("version", u.cfg.Settings.Version).
		Msg("starting upgrade session")

	u.to(types.StatePreflight)
	if err := u.preflight(ctx); err != nil {
		return u.fail(types.StatePreflight, err)
	}

	u.to(types.StateBackingUp)
	b, err := u.backups.Create(ctx, u.cfg.Target, u.env, u.cfg.DBName)
	if err != nil {
		return u.fail(types.StateBackingUp, err)
	}
	if err := u.backups.Materialize(b); err != nil {
		return u.fail(types.StateBackingUp, err)
	}

	// From here until maintenance-off a failure leaves maintenance enabled:
	// a half-upgraded site must not come back up on its own.
	u.to(types.StateMaintenanceOn)
	if err := u.maint.Enable(ctx, u.cfg.Target); err != nil {
		return u.fail(types.StateMaintenanceOn, err)
	}

	u.to(types.StateFetching)
	if err := u.releases.Fetch(ctx, u.cfg.Target, u.cfg.Settings.Version); err != nil {
		return u.fail(types.StateFetching, err)
	}

	u.to(types.StateInstallingDependencies)
	if err := u.deps.Reconcile(ctx, u.cfg.Target); err != nil {
		return u.fail(types.StateInstallingDependencies, err)
	}

	u.to(types.StateMigrating)
	if _, err := u.migrator.Run(ctx, u.cfg.Target, u.env, u.cfg.DBName); err != nil {
		return u.fail(types.StateMigrating, err)
	}

	u.to(types.StateFixingPermissions)
	if err := u.perms.Normalize(ctx, u.cfg.Target); err != nil {
		return u.fail(types.StateFixingPermissions, err)
	}

	u.to(types.StateMaintenanceOff)
	if err := u.maint.Disable(ctx, u.cfg.Target); err != nil {
		return u.fail(types.StateMaintenanceOff, err)
	}

	u.rec.FinishedAt = time.Now()
	u.to(types.StateCompleted)
	logger.Info().Str("target", u.cfg.Target).Msg("upgrade session completed")
	return nil
}

// preflight runs every precondition before any side effect: privileges,
// runtime version gate, credential file. A failure here leaves the
// installation completely untouched.
func (u *Upgrade) preflight(ctx context.Context) error {
	if !u.privileged() {
		return ErrNotPrivileged
	}

	major, minor, err := u.runtime(ctx)
	if err != nil {
		return fmt.Errorf("probe runtime version: %w", err)
	}
	s := u.cfg.Settings
	if !meetsMinimum(major, minor, s.MinRuntimeMajor, s.MinRuntimeMinor) {
		return fmt.Errorf("%w: found %d.%d, need %d.%d",
			ErrRuntimeTooOld, major, minor, s.MinRuntimeMajor, s.MinRuntimeMinor)
	}

	env, err := u.readEnv(envfile.DefaultPath(u.cfg.Target))
	if err != nil {
		return err
	}
	u.env = env
	return nil
}
