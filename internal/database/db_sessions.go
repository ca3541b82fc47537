package database

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-while/go-myapp/internal/models"
)

// Session security constants
const (
	SessionIDLength  = 64               // 64 character session ID
	SessionTimeout   = 3 * time.Hour    // 3 hour sliding timeout
	MaxLoginAttempts = 5                // Max failed login attempts
	LoginLockoutTime = 15 * time.Minute // Lockout time after max attempts
)

// sqliteTimeFormat matches CURRENT_TIMESTAMP so stored expiry times compare
// correctly against it as text
const sqliteTimeFormat = "2006-01-02 15:04:05"

var ErrInvalidSession = errors.New("invalid or expired session")

func sqliteTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeFormat)
}

// GenerateSecureSessionID creates a cryptographically secure session ID
func GenerateSecureSessionID() (string, error) {
	bytes := make([]byte, SessionIDLength/2) // hex encoding doubles the length
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate secure session ID: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

const query_CreateUserSession = `UPDATE users SET
	session_id = ?,
	last_login_ip = ?,
	session_expires_at = ?,
	login_attempts = 0,
	updated_at = CURRENT_TIMESTAMP
	WHERE id = ?`

// CreateUserSession creates a new session for the user and invalidates any existing session
func (db *Database) CreateUserSession(userID int64, remoteIP string) (string, error) {
	sessionID, err := GenerateSecureSessionID()
	if err != nil {
		return "", err
	}

	expiresAt := time.Now().Add(SessionTimeout)
	if _, err := retryableExec(db.mainDB, query_CreateUserSession, sessionID, remoteIP, sqliteTime(expiresAt), userID); err != nil {
		return "", fmt.Errorf("failed to create user session: %w", err)
	}
	return sessionID, nil
}

const query_ValidateUserSession = `SELECT ` + userColumns + `
	FROM users WHERE session_id = ? AND session_expires_at > CURRENT_TIMESTAMP`

// ValidateUserSession checks if the session is valid and extends expiration
func (db *Database) ValidateUserSession(sessionID string) (*models.User, error) {
	if sessionID == "" {
		return nil, ErrInvalidSession
	}

	user, err := db.scanUser(query_ValidateUserSession, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidSession
		}
		return nil, fmt.Errorf("failed to validate session: %w", err)
	}

	// sliding timeout
	newExpiresAt := time.Now().Add(SessionTimeout).UTC().Truncate(time.Second)
	updateQuery := `UPDATE users SET session_expires_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	if _, err := retryableExec(db.mainDB, updateQuery, sqliteTime(newExpiresAt), user.ID); err != nil {
		log.Printf("[DATABASE] Warning: Failed to extend session expiration for user %d: %v", user.ID, err)
		return user, nil
	}
	user.SessionExpiresAt = &newExpiresAt
	return user, nil
}

const query_InvalidateUserSession = `UPDATE users SET
	session_id = '',
	session_expires_at = NULL,
	updated_at = CURRENT_TIMESTAMP
	WHERE id = ?`

// InvalidateUserSession clears the user's session
func (db *Database) InvalidateUserSession(userID int64) error {
	_, err := retryableExec(db.mainDB, query_InvalidateUserSession, userID)
	return err
}

const query_InvalidateUserSessionBySessionID = `UPDATE users SET
	session_id = '',
	session_expires_at = NULL,
	updated_at = CURRENT_TIMESTAMP
	WHERE session_id = ? AND session_id != ''`

// InvalidateUserSessionBySessionID clears session by session ID
func (db *Database) InvalidateUserSessionBySessionID(sessionID string) error {
	_, err := retryableExec(db.mainDB, query_InvalidateUserSessionBySessionID, sessionID)
	return err
}

// IncrementLoginAttempts increases the failed login counter
func (db *Database) IncrementLoginAttempts(username string) error {
	query := `UPDATE users SET
		login_attempts = login_attempts + 1,
		updated_at = CURRENT_TIMESTAMP
		WHERE username = ?`
	_, err := retryableExec(db.mainDB, query, username)
	return err
}

// ResetLoginAttempts clears the failed login counter
func (db *Database) ResetLoginAttempts(userID int64) error {
	query := `UPDATE users SET
		login_attempts = 0,
		updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`
	_, err := retryableExec(db.mainDB, query, userID)
	return err
}

// IsUserLockedOut checks if user is temporarily locked out due to failed attempts.
// Unknown usernames are never locked out.
func (db *Database) IsUserLockedOut(username string) (bool, error) {
	query := `SELECT login_attempts, updated_at FROM users WHERE username = ?`

	var attempts int
	var updatedAt time.Time
	err := retryableQueryRowScan(db.mainDB, query, []interface{}{username}, &attempts, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}

	if attempts < MaxLoginAttempts {
		return false, nil
	}
	if time.Now().Before(updatedAt.Add(LoginLockoutTime)) {
		return true, nil
	}

	// Lockout period expired, reset attempts
	resetQuery := `UPDATE users SET login_attempts = 0, updated_at = CURRENT_TIMESTAMP WHERE username = ?`
	if _, err := retryableExec(db.mainDB, resetQuery, username); err != nil {
		log.Printf("[DATABASE] Warning: Failed to reset login attempts for %s: %v", username, err)
	}
	return false, nil
}

// CleanupExpiredSessions removes expired sessions from the database
func (db *Database) CleanupExpiredSessions() (int64, error) {
	query := `UPDATE users SET
		session_id = '',
		session_expires_at = NULL,
		updated_at = CURRENT_TIMESTAMP
		WHERE session_expires_at IS NOT NULL AND session_expires_at < CURRENT_TIMESTAMP`

	result, err := retryableExec(db.mainDB, query)
	if err != nil {
		return 0, err
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected > 0 {
		log.Printf("[DATABASE] Cleaned up %d expired sessions", rowsAffected)
	}
	return rowsAffected, nil
}
