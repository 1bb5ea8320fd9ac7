/*
Package migrate applies the schema transition for an upgrade.

The migrator runs three phases in fixed order. First a read-only
connectivity probe, failing fast with ErrDatabaseUnreachable so destructive
schema edits never start against an unreachable target. Second the
best-effort cleanup: each statement removes a table or column known to be
obsolete in the target version, and its result is recorded as Applied,
SkippedAlreadyAbsent or Failed rather than aborting anything — the object
may legitimately be gone from a prior partial run. Third the authoritative
migrate-and-seed procedure, whose failure is ErrMigrationFailed and halts
the session.

Outcome classification relies on the MySQL driver's typed errors: the
"unknown table" and "can't drop" error numbers distinguish nothing-to-drop
from a drop that failed for an unexpected reason.
*/
package migrate
