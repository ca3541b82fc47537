package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-while/go-myapp/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

const userColumns = `id, username, email, password_hash, display_name, session_id,
	last_login_ip, session_expires_at, login_attempts, created_at, updated_at`

func scanUserRow(scan func(dest ...interface{}) error) (*models.User, error) {
	var u models.User
	if err := scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.DisplayName, &u.SessionID,
		&u.LastLoginIP, &u.SessionExpiresAt, &u.LoginAttempts, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (db *Database) scanUser(query string, args ...interface{}) (*models.User, error) {
	var u *models.User
	err := retryableQueryRowScanFunc(db.mainDB, query, args, func(row *sql.Row) error {
		var err error
		u, err = scanUserRow(row.Scan)
		return err
	})
	return u, err
}

// retryableQueryRowScanFunc is retryableQueryRowScan for callers that scan
// through a helper instead of a fixed destination list
func retryableQueryRowScanFunc(db *sql.DB, query string, args []interface{}, scan func(*sql.Row) error) error {
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err = scan(db.QueryRow(query, args...))
		if !isRetryableError(err) {
			return err
		}
		if attempt < maxRetries-1 {
			backoff(attempt, "QueryRow scan", query, err)
		}
	}
	return err
}

// --- User Queries ---
const query_InsertUser = `INSERT INTO users (username, email, password_hash, display_name) VALUES (?, ?, ?, ?)`

// InsertUser creates a user and sets u.ID
func (db *Database) InsertUser(u *models.User) error {
	res, err := retryableExec(db.mainDB, query_InsertUser, u.Username, u.Email, u.PasswordHash, u.DisplayName)
	if err != nil {
		return fmt.Errorf("failed to insert user %s: %w", u.Username, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get id of user %s: %w", u.Username, err)
	}
	u.ID = id
	return nil
}

func (db *Database) getUser(query string, arg interface{}) (*models.User, error) {
	u, err := db.scanUser(query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

const query_GetUserByUsername = `SELECT ` + userColumns + ` FROM users WHERE username = ?`

func (db *Database) GetUserByUsername(username string) (*models.User, error) {
	return db.getUser(query_GetUserByUsername, username)
}

const query_GetUserByEmail = `SELECT ` + userColumns + ` FROM users WHERE email = ?`

func (db *Database) GetUserByEmail(email string) (*models.User, error) {
	return db.getUser(query_GetUserByEmail, email)
}

const query_GetUserByID = `SELECT ` + userColumns + ` FROM users WHERE id = ?`

func (db *Database) GetUserByID(id int64) (*models.User, error) {
	return db.getUser(query_GetUserByID, id)
}

// GetAllUsers retrieves all users from the database
const query_GetAllUsers = `SELECT ` + userColumns + ` FROM users ORDER BY username`

func (db *Database) GetAllUsers() ([]*models.User, error) {
	rows, err := retryableQuery(db.mainDB, query_GetAllUsers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUserRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateUserPassword updates a user's password hash
const query_UpdateUserPassword = `UPDATE users SET password_hash = ?, login_attempts = 0, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

func (db *Database) UpdateUserPassword(userID int64, passwordHash string) error {
	res, err := retryableExec(db.mainDB, query_UpdateUserPassword, passwordHash, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// DeleteUser deletes a user and their permissions
func (db *Database) DeleteUser(userID int64) error {
	return retryableTransactionExec(db.mainDB, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM user_permissions WHERE user_id = ?`, userID); err != nil {
			return fmt.Errorf("failed to delete user permissions: %w", err)
		}
		res, err := tx.Exec(`DELETE FROM users WHERE id = ?`, userID)
		if err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrUserNotFound
		}
		return nil
	})
}

// --- UserPermission Queries ---
const query_InsertUserPermission = `INSERT OR IGNORE INTO user_permissions (user_id, permission, granted_at) VALUES (?, ?, ?)`

func (db *Database) InsertUserPermission(up *models.UserPermission) error {
	if up.GrantedAt.IsZero() {
		up.GrantedAt = time.Now()
	}
	_, err := retryableExec(db.mainDB, query_InsertUserPermission, up.UserID, up.Permission, sqliteTime(up.GrantedAt))
	return err
}

const query_GetUserPermissions = `SELECT id, user_id, permission, granted_at FROM user_permissions WHERE user_id = ? ORDER BY permission`

func (db *Database) GetUserPermissions(userID int64) ([]*models.UserPermission, error) {
	rows, err := retryableQuery(db.mainDB, query_GetUserPermissions, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.UserPermission
	for rows.Next() {
		var up models.UserPermission
		if err := rows.Scan(&up.ID, &up.UserID, &up.Permission, &up.GrantedAt); err != nil {
			return nil, err
		}
		out = append(out, &up)
	}
	return out, rows.Err()
}

const query_HasUserPermission = `SELECT COUNT(*) FROM user_permissions WHERE user_id = ? AND permission = ?`

// HasUserPermission reports whether the user was granted the permission
func (db *Database) HasUserPermission(userID int64, permission string) (bool, error) {
	var n int
	if err := retryableQueryRowScan(db.mainDB, query_HasUserPermission, []interface{}{userID, permission}, &n); err != nil {
		return false, err
	}
	return n > 0, nil
}
