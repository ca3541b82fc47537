// Package database provides database abstraction and management for go-myapp
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"
)

// GetMainDB returns the main database connection for direct access
// This should only be used by specialized tools like usermgr
func (db *Database) GetMainDB() *sql.DB {
	return db.mainDB
}

// GetDataDir returns the data directory path
func (db *Database) GetDataDir() string {
	return db.dbconfig.DataDir
}

// Shutdown marks a clean shutdown in system_status and closes the main database.
// Calling it more than once is a no-op.
func (db *Database) Shutdown() error {
	var errs []error
	db.closeOnce.Do(func() {
		if db.mainDB == nil {
			return
		}
		if err := db.SetShutdownState(ShutdownStateInProgress); err != nil {
			log.Printf("[DATABASE] Warning: Failed to set shutdown state: %v", err)
		}

		// Mark shutdown as clean BEFORE closing main database
		if err := db.SetShutdownState(ShutdownStateClean); err != nil {
			log.Printf("[DATABASE] Warning: Failed to mark shutdown as clean: %v", err)
		}

		if err := db.mainDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close main database: %w", err))
			return
		}
		log.Printf("[DATABASE] Main database closed")
	})
	return errors.Join(errs...)
}

// Stats returns database statistics
type Stats struct {
	MainDB struct {
		OpenConnections int
		IdleConnections int
		InUse           int
		WaitCount       int64
		WaitDuration    time.Duration
	}
}

// GetStats returns database connection statistics
func (db *Database) GetStats() *Stats {
	stats := &Stats{}
	if db.mainDB != nil {
		dbStats := db.mainDB.Stats()
		stats.MainDB.OpenConnections = dbStats.OpenConnections
		stats.MainDB.IdleConnections = dbStats.Idle
		stats.MainDB.InUse = dbStats.InUse
		stats.MainDB.WaitCount = dbStats.WaitCount
		stats.MainDB.WaitDuration = dbStats.WaitDuration
	}
	return stats
}

// Shutdown state constants
const (
	ShutdownStateRunning    = "running"
	ShutdownStateInProgress = "shutting_down"
	ShutdownStateClean      = "clean_shutdown"
	ShutdownStateCrashed    = "crashed"
)

// SetShutdownState updates the shutdown state in the database
func (db *Database) SetShutdownState(state string) error {
	if db.mainDB == nil {
		return fmt.Errorf("main database not initialized")
	}

	var query string
	switch state {
	case ShutdownStateInProgress:
		query = `UPDATE system_status SET shutdown_state = ?, shutdown_started_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP WHERE id = 1`
	case ShutdownStateClean:
		query = `UPDATE system_status SET shutdown_state = ?, shutdown_completed_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP WHERE id = 1`
	default:
		query = `UPDATE system_status SET shutdown_state = ?, updated_at = CURRENT_TIMESTAMP WHERE id = 1`
	}

	if _, err := retryableExec(db.mainDB, query, state); err != nil {
		return fmt.Errorf("failed to update shutdown state to %s: %w", state, err)
	}

	log.Printf("[DATABASE] Shutdown state updated to: %s", state)
	return nil
}

// GetShutdownState retrieves the current shutdown state from the database
func (db *Database) GetShutdownState() (string, error) {
	if db.mainDB == nil {
		return ShutdownStateCrashed, fmt.Errorf("main database not initialized")
	}

	var state string
	err := retryableQueryRowScan(db.mainDB, "SELECT shutdown_state FROM system_status WHERE id = 1", []interface{}{}, &state)
	if err != nil {
		return ShutdownStateCrashed, fmt.Errorf("failed to get shutdown state: %w", err)
	}

	return state, nil
}

// InitializeSystemStatus sets up the system status on startup
func (db *Database) InitializeSystemStatus(appVersion string, pid int, hostname string) error {
	if db.mainDB == nil {
		return fmt.Errorf("main database not initialized")
	}

	query := `UPDATE system_status SET
		shutdown_state = ?,
		app_version = ?,
		pid = ?,
		hostname = ?,
		shutdown_started_at = NULL,
		shutdown_completed_at = NULL,
		last_heartbeat = CURRENT_TIMESTAMP,
		updated_at = CURRENT_TIMESTAMP
		WHERE id = 1`

	if _, err := retryableExec(db.mainDB, query, ShutdownStateRunning, appVersion, pid, hostname); err != nil {
		return fmt.Errorf("failed to initialize system status: %w", err)
	}

	log.Printf("[DATABASE] System status initialized: version=%s, pid=%d, hostname=%s", appVersion, pid, hostname)
	return nil
}

// CheckPreviousShutdown checks if the previous shutdown was clean.
// A freshly created database counts as clean.
func (db *Database) CheckPreviousShutdown() (bool, error) {
	state, err := db.GetShutdownState()
	if err != nil {
		return false, err
	}

	wasClean := state == ShutdownStateClean
	if !wasClean {
		log.Printf("[DATABASE] WARNING: Previous shutdown was not clean. State was: %s", state)
	} else {
		log.Printf("[DATABASE] Previous shutdown was clean")
	}
	return wasClean, nil
}

// IsShuttingDown returns true if the database is in the process of shutting down
func (db *Database) IsShuttingDown() bool {
	state, err := db.GetShutdownState()
	if err != nil {
		return true
	}
	return state == ShutdownStateInProgress || state == ShutdownStateClean
}

// UpdateHeartbeat stamps last_heartbeat every interval until ctx is done
func (db *Database) UpdateHeartbeat(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, err := retryableExec(db.mainDB, "UPDATE system_status SET last_heartbeat = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP WHERE id = 1")
			if err != nil {
				log.Printf("[DATABASE] ERROR UpdateHeartbeat: %v", err)
			}
		}
	}
}
