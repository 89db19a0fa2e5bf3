// Package logger provides slog attribute helpers for structured logging of
// session lifecycle and security events.
//
// Helpers follow the empty-Attr pattern: passing a nil error or empty ID
// yields an empty slog.Attr, which slog drops, so call sites never need nil
// checks:
//
//	log.Warn("session binding mismatch",
//		logger.Event("session.anomaly"),
//		logger.SessionID(sess.ID),
//		logger.ClientIP(ip),
//		logger.Error(err),
//	)
//
// The session subsystem treats the logger purely as a write-only
// collaborator; nothing in this package reads or parses log output.
package logger
