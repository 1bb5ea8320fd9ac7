/*
Package types defines the shared data model for Upshift: the database
credential record, the backup descriptor, the two session state machines and
the per-step migration outcomes.

Types here have no behavior beyond trivial accessors so that every other
package can depend on them without import cycles.

# Session states

An upgrade session walks a straight line:

	preflight → backing-up → maintenance-on → fetching →
	installing-dependencies → migrating → fixing-permissions →
	maintenance-off → completed

with a single abort edge into failed from any non-terminal state. A rollback
session has its own shorter chain:

	preflight → restoring → reinstalling-dependencies →
	clearing-cache → completed | failed

No state is ever re-entered. When a stage between maintenance-on and
maintenance-off fails, maintenance is intentionally left enabled; recovery is
a rollback session, not a re-toggle.
*/
package types
