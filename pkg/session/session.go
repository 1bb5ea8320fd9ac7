package session

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/stackmill/upshift/pkg/command"
	"github.com/stackmill/upshift/pkg/config"
	"github.com/stackmill/upshift/pkg/log"
	"github.com/stackmill/upshift/pkg/types"
)

var (
	// ErrNotPrivileged is returned at preflight when the caller lacks the
	// elevated privileges the destructive stages need.
	ErrNotPrivileged = errors.New("session requires elevated privileges")

	// ErrRuntimeTooOld is returned at preflight when the installed language
	// runtime does not meet the minimum version.
	ErrRuntimeTooOld = errors.New("language runtime below minimum version")
)

// Config is the immutable, session-scoped configuration. It is captured once
// when the session is created; nothing mutates it afterwards.
type Config struct {
	// Target is the live installation path.
	Target string
	// DBName optionally overrides the database name from the credential file.
	DBName string
	// Settings are the tool-level settings in effect for this session.
	Settings *config.Settings
}

// Recorder persists session records. *journal.Store satisfies it; a nil
// Recorder disables journaling entirely.
type Recorder interface {
	Record(rec *types.SessionRecord) error
}

// Component interfaces. The sessions depend on these rather than on the
// concrete packages so stage behavior can be substituted in tests.

type backupManager interface {
	Create(ctx context.Context, target string, env *types.EnvironmentConfig, dbName string) (*types.Backup, error)
	Materialize(b *types.Backup) error
	Restore(target string) error
}

type maintenanceController interface {
	Enable(ctx context.Context, target string) error
	Disable(ctx context.Context, target string) error
	ClearCache(ctx context.Context, target string) error
}

type releaseFetcher interface {
	Fetch(ctx context.Context, target, version string) error
}

type dependencyInstaller interface {
	Reconcile(ctx context.Context, target string) error
}

type permissionNormalizer interface {
	Normalize(ctx context.Context, target string) error
}

// privileged reports whether the process can perform the destructive stages.
// Replaced in tests.
func privileged() bool {
	return os.Geteuid() == 0
}

// record appends a transition to the session record and persists it. Journal
// failures are logged, never propagated: history must not block recovery.
func record(j Recorder, rec *types.SessionRecord, state string) {
	rec.Transitions = append(rec.Transitions, types.Transition{
		State: state,
		At:    time.Now(),
	})
	if j == nil {
		return
	}
	if err := j.Record(rec); err != nil {
		logger := log.WithSession(rec.ID)
		logger.Warn().Err(err).Msg("could not persist session record")
	}
}

// runtimeProbe returns the runtime's major.minor version, by default from
// the php binary. Replaced in tests.
type runtimeProbe func(ctx context.Context) (major, minor int, err error)

func phpRuntimeProbe(runner command.Runner, phpBin string) runtimeProbe {
	return func(ctx context.Context) (int, int, error) {
		out, err := runner.Output(ctx, command.Cmd{Name: phpBin, Args: []string{"-v"}})
		if err != nil {
			return 0, 0, err
		}
		return parseRuntimeVersion(out)
	}
}

// meetsMinimum compares versions numerically: 9.0 passes a 8.1 gate even
// though it sorts before it lexically.
func meetsMinimum(major, minor, wantMajor, wantMinor int) bool {
	if major != wantMajor {
		return major > wantMajor
	}
	return minor >= wantMinor
}
