/*
Package log provides structured logging for Upshift using zerolog.

The package wraps zerolog behind a global logger initialized once via
log.Init. Console output (colored, human readable) is the default since
upshift is an operator-facing CLI; JSON output is available for running under
automation. Child loggers carry session and stage context:

	sessionLog := log.WithSession(id)
	stageLog := log.WithStage("backing-up")
	stageLog.Info().Str("target", target).Msg("snapshot created")

Best-effort failures are logged at warn level and never abort a session;
fatal stage failures are logged at error level by the session before it
transitions to its failed state. The machine-readable signal of a run is the
process exit status, not the log stream.
*/
package log
