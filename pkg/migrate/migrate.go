package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/stackmill/upshift/pkg/command"
	"github.com/stackmill/upshift/pkg/config"
	"github.com/stackmill/upshift/pkg/log"
	"github.com/stackmill/upshift/pkg/types"
)

var (
	// ErrDatabaseUnreachable is returned when the connectivity probe fails.
	// The migrator refuses to run destructive schema edits against a target
	// it cannot reach.
	ErrDatabaseUnreachable = errors.New("database unreachable")

	// ErrMigrationFailed is returned when the authoritative migrate-and-seed
	// procedure fails. This always halts the session.
	ErrMigrationFailed = errors.New("migration failed")

	// ErrIncompleteCredentials is returned when host, user or database name
	// are missing from the credential file.
	ErrIncompleteCredentials = errors.New("incomplete database credentials")
)

// Step is one named, ordered statement against the data store. All Steps in
// CleanupSteps are best-effort: their purpose is "remove if present", so a
// failure because the object is already absent is the expected case.
type Step struct {
	Name string
	SQL  string
}

// StepResult is the recorded outcome of one cleanup Step.
type StepResult struct {
	Step    Step
	Outcome types.StepOutcome
	Err     error
}

// CleanupSteps are the legacy-schema objects known to be obsolete in the
// target version, removed before the authoritative migration runs. Order is
// significant: dependent tables drop before their parents.
var CleanupSteps = []Step{
	{Name: "drop legacy telescope tag index", SQL: "DROP TABLE telescope_entries_tags"},
	{Name: "drop legacy telescope entries", SQL: "DROP TABLE telescope_entries"},
	{Name: "drop legacy telescope monitoring", SQL: "DROP TABLE telescope_monitoring"},
	{Name: "drop retired api_token column", SQL: "ALTER TABLE users DROP COLUMN api_token"},
	{Name: "drop legacy failed_jobs table", SQL: "DROP TABLE failed_jobs_legacy"},
}

// database is the slice of *sql.DB the migrator needs.
type database interface {
	PingContext(ctx context.Context) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	Close() error
}

// Migrator applies the best-effort legacy cleanup and then runs the
// application's authoritative migrate-and-seed procedure.
type Migrator struct {
	runner   command.Runner
	settings *config.Settings
	steps    []Step

	openDB func(dsn string) (database, error)
}

// NewMigrator creates a new schema Migrator
func NewMigrator(runner command.Runner, settings *config.Settings) *Migrator {
	return &Migrator{
		runner:   runner,
		settings: settings,
		steps:    CleanupSteps,
		openDB:   openMySQL,
	}
}

func openMySQL(dsn string) (database, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// dsn builds the driver DSN from the credential record. The driver wants
// "user:password@tcp(host:port)/dbname"; parseTime keeps DATETIME columns
// sane should a statement ever read them back.
func dsn(env *types.EnvironmentConfig, dbName string) string {
	cfg := mysql.NewConfig()
	cfg.User = env.User
	cfg.Passwd = env.Password
	cfg.Net = "tcp"
	cfg.Addr = env.Host + ":" + env.Port
	cfg.DBName = dbName
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

// validate enforces the credential invariant at the point of use.
func validate(env *types.EnvironmentConfig, dbName string) error {
	switch {
	case env == nil:
		return fmt.Errorf("%w: no credentials loaded", ErrIncompleteCredentials)
	case env.Host == "":
		return fmt.Errorf("%w: DB_HOST is empty", ErrIncompleteCredentials)
	case env.User == "":
		return fmt.Errorf("%w: DB_USERNAME is empty", ErrIncompleteCredentials)
	case dbName == "":
		return fmt.Errorf("%w: DB_DATABASE is empty", ErrIncompleteCredentials)
	}
	return nil
}

// Run executes the migration stage: connectivity probe, best-effort cleanup,
// authoritative migrate-and-seed. dbName overrides the credential file's
// database when non-empty. The returned results cover the cleanup steps and
// are complete even when some of them failed.
func (m *Migrator) Run(ctx context.Context, target string, env *types.EnvironmentConfig, dbName string) ([]StepResult, error) {
	logger := log.WithComponent("migrate")

	db := dbName
	if db == "" && env != nil {
		db = env.Database
	}
	if err := validate(env, db); err != nil {
		return nil, err
	}

	conn, err := m.openDB(dsn(env, db))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseUnreachable, err)
	}
	defer conn.Close()

	if err := conn.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseUnreachable, err)
	}
	logger.Debug().Str("database", db).Msg("connectivity probe succeeded")

	results := m.cleanup(ctx, conn)

	if err := m.runner.Run(ctx, command.Cmd{
		Name: m.settings.PHPBin,
		Args: []string{"artisan", "migrate", "--force", "--seed"},
		Dir:  target,
	}); err != nil {
		return results, fmt.Errorf("%w: %v", ErrMigrationFailed, err)
	}

	logger.Info().Str("database", db).Msg("schema migrated and seeded")
	return results, nil
}

// cleanup runs the best-effort steps in order. No outcome aborts the run:
// an absent object is the normal case on re-runs, and an unexpected failure
// is logged and recorded but never propagated.
func (m *Migrator) cleanup(ctx context.Context, conn database) []StepResult {
	logger := log.WithComponent("migrate")

	results := make([]StepResult, 0, len(m.steps))
	for _, step := range m.steps {
		_, err := conn.ExecContext(ctx, step.SQL)
		res := StepResult{Step: step, Outcome: classify(err), Err: err}
		results = append(results, res)

		switch res.Outcome {
		case types.StepApplied:
			logger.Info().Str("step", step.Name).Msg("cleanup step applied")
		case types.StepSkippedAlreadyAbsent:
			logger.Info().Str("step", step.Name).Msg("cleanup step skipped, object already absent")
		case types.StepFailed:
			logger.Warn().Str("step", step.Name).Err(err).Msg("cleanup step failed, continuing")
		}
	}
	return results
}

// MySQL error numbers that mean "the object you are removing is not there".
const (
	errBadTable    = 1051 // DROP TABLE on unknown table
	errUnknownCol  = 1054 // unknown column
	errCantDrop    = 1091 // can't DROP, column/key does not exist
	errNoSuchTable = 1146 // table does not exist
)

// classify maps a cleanup statement error to its step outcome.
func classify(err error) types.StepOutcome {
	if err == nil {
		return types.StepApplied
	}
	var myerr *mysql.MySQLError
	if errors.As(err, &myerr) {
		switch myerr.Number {
		case errBadTable, errUnknownCol, errCantDrop, errNoSuchTable:
			return types.StepSkippedAlreadyAbsent
		}
	}
	return types.StepFailed
}
