// Package repositories persists web sessions.
//
// Key Implementations:
//   - [SessionRepository] : SQLite sessions with soft deletes and expiry sweeping
//   - [RedisSessionStore] : Redis sessions expired by key TTL
//
// Both satisfy [SessionStore], which the web server depends on.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
