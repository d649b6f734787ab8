// Package logger provides the structured logging interface used across dyfav.
//
// It wraps zerolog with a small field-oriented API:
//
//	log, err := logger.New(&cfg.Logging)
//	log.WithField("aweme_id", id).Info("Item downloaded")
//	log.WithError(err).Warn("Image fetch failed")
//
// Console output is colored when stderr is a terminal. When a log file is
// configured, every entry is also appended to it as a JSON line.
//
// Library packages never configure logging themselves; they accept a Logger.
// Tests use NewNopLogger or NewTestLogger.
package logger
