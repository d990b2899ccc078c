// Package session provides session storage for the snake server.
//
// Manager keeps sessions in memory keyed by lowercase ID and, when built with
// NewManagerWithPersistence, mirrors them to a SessionPersistence so a
// restart picks up where games left off.
//
// Session Identifiers:
//
// Generated IDs are 4 hex characters. Caller supplied IDs may not contain
// path separators, dots or spaces since they double as file names.
//
// Usage:
//
//	levels, _ := config.NewManager("levels")
//	store, _ := session.NewFilePersistence("sessions", levels)
//	manager := session.NewManagerWithPersistence(store)
//	manager.LoadPersistedSessions()
//
//	level, _ := levels.LoadLevel("snake1")
//	sess, err := manager.Create("", "snake1", level)
//
// Cleanup:
//
// CleanupExpiredSessions drops idle sessions from memory but leaves their
// files, so Get can reload them later. Running sessions are never expired.
// Delete removes both and stops a running loop.
package session
