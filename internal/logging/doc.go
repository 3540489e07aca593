// Package logging provides structured logging for Gladoid.
//
// Logs are JSON lines produced by log/slog. A process-wide [Logger] is
// created once from configuration and narrowed per session with
// [Logger.WithSession] and per participant with [Logger.WithParticipant];
// every entry written through a child logger carries those attributes.
//
// When a log directory is configured, entries go to {dir}/gladoid.log through
// a [RotatingWriter] that rolls the file over once it reaches a size limit,
// keeping a bounded number of numbered backups.
//
//	logger, err := logging.NewLogger(dir, "INFO", logging.DefaultRotationConfig())
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	sessLog := logger.WithSession(id).WithParticipant(1)
//	sessLog.Info("decision requested", "deadline", "30s")
//
// All types in this package are safe for concurrent use.
package logging
