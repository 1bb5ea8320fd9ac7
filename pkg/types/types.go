package types

import (
	"time"
)

// EnvironmentConfig holds the database credentials read from the
// installation's credential file. All fields are strings; Password may be
// empty. Host, User and Database are validated at the point of use, not
// at parse time.
type EnvironmentConfig struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// Backup describes a point-in-time snapshot of an installation: the full
// directory tree moved to a sibling path plus one SQL dump file at its root.
type Backup struct {
	// Target is the live installation path the snapshot was taken from.
	Target string
	// Path is the snapshot directory (<target>-backup).
	Path string
	// DumpFile is the SQL dump inside Path.
	DumpFile string
	// CreatedAt is when the snapshot completed.
	CreatedAt time.Time
}

// SessionKind distinguishes the two session types in the journal.
type SessionKind string

const (
	SessionUpgrade  SessionKind = "upgrade"
	SessionRollback SessionKind = "rollback"
)

// SessionState is the state machine of an upgrade session. The machine is a
// straight line; Failed is reachable from every non-terminal state and no
// state is ever re-entered.
type SessionState string

const (
	StatePreflight              SessionState = "preflight"
	StateBackingUp              SessionState = "backing-up"
	StateMaintenanceOn          SessionState = "maintenance-on"
	StateFetching               SessionState = "fetching"
	StateInstallingDependencies SessionState = "installing-dependencies"
	StateMigrating              SessionState = "migrating"
	StateFixingPermissions      SessionState = "fixing-permissions"
	StateMaintenanceOff         SessionState = "maintenance-off"
	StateCompleted              SessionState = "completed"
	StateFailed                 SessionState = "failed"
)

// RollbackState is the state machine of a rollback session.
type RollbackState string

const (
	RollbackPreflight                RollbackState = "preflight"
	RollbackRestoring                RollbackState = "restoring"
	RollbackReinstallingDependencies RollbackState = "reinstalling-dependencies"
	RollbackClearingCache            RollbackState = "clearing-cache"
	RollbackCompleted                RollbackState = "completed"
	RollbackFailed                   RollbackState = "failed"
)

// StepOutcome is the per-step result of a schema cleanup statement.
// SkippedAlreadyAbsent means the object the statement removes was already
// gone, which is the expected case on re-runs and never an error.
type StepOutcome string

const (
	StepApplied              StepOutcome = "applied"
	StepSkippedAlreadyAbsent StepOutcome = "skipped-already-absent"
	StepFailed               StepOutcome = "failed"
)

// Transition is one recorded state change of a session.
type Transition struct {
	State string    `json:"state"`
	At    time.Time `json:"at"`
}

// SessionRecord is the journal entry for one upgrade or rollback session.
type SessionRecord struct {
	ID          string       `json:"id"`
	Kind        SessionKind  `json:"kind"`
	Target      string       `json:"target"`
	StartedAt   time.Time    `json:"started_at"`
	FinishedAt  time.Time    `json:"finished_at,omitzero"`
	Transitions []Transition `json:"transitions"`
	// FailedStage is the state in which the session failed, empty on success.
	FailedStage string `json:"failed_stage,omitempty"`
	Err         string `json:"error,omitempty"`
}

// Succeeded reports whether the session reached its terminal success state.
// A record without a failure but whose last transition is not the terminal
// state belongs to an interrupted session, which did not succeed.
func (r *SessionRecord) Succeeded() bool {
	if r.FailedStage != "" || r.Err != "" {
		return false
	}
	if len(r.Transitions) == 0 {
		return false
	}
	// Both session kinds share the same terminal success state name.
	return r.Transitions[len(r.Transitions)-1].State == string(StateCompleted)
}

// Interrupted reports whether the session stopped without recording either a
// failure or the terminal success state, typically because the process died
// mid-session.
func (r *SessionRecord) Interrupted() bool {
	return !r.Succeeded() && r.FailedStage == "" && r.Err == ""
}
