// package repositories provides persistence layer implementations for web sessions.
//
// Each store implements models.Repository[*models.Session], handling CRUD
// operations, soft deletes, and sequence generation.
package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/djwaifu/internal/models"
)

// SessionStore is the storage the web server keeps sessions in.
type SessionStore interface {
	models.Repository[*models.Session]

	// DeleteExpired removes sessions that expired before now and returns how many were removed.
	DeleteExpired(now time.Time) (int, error)
}

// NextSequence atomically increments and returns the next sequence number for the given table.
//
// Sequence numbers provide human-readable ordering for entities (e.g., session #42).
// They are NOT exposed to visitors but used internally for sorting and debugging.
func NextSequence(db *sql.DB, table string) (int, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sequenceTable := table + "_sequence"

	_, err = tx.Exec(fmt.Sprintf("UPDATE %s SET value = value + 1 WHERE id = 1", sequenceTable))
	if err != nil {
		return 0, fmt.Errorf("failed to increment sequence: %w", err)
	}

	var sequence int
	err = tx.QueryRow(fmt.Sprintf("SELECT value FROM %s WHERE id = 1", sequenceTable)).Scan(&sequence)
	if err != nil {
		return 0, fmt.Errorf("failed to get sequence value: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit sequence transaction: %w", err)
	}

	return sequence, nil
}
