package database

import (
	"database/sql"
	"log"
	"math/rand"
	"strings"
	"time"
)

const (
	maxRetries = 100
	baseDelay  = 10 * time.Millisecond
	maxDelay   = 25 * time.Millisecond
)

// isRetryableError checks if the error is a retryable SQLite error
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "database is locked") ||
		strings.Contains(errStr, "database table is locked") ||
		strings.Contains(errStr, "busy")
}

// backoff sleeps before the next attempt: linear growth capped at maxDelay
// plus up to 50% jitter
func backoff(attempt int, what string, query string, err error) {
	delay := time.Duration(attempt+1) * baseDelay
	if delay > maxDelay {
		delay = maxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(delay) / 2))
	time.Sleep(delay + jitter)
	log.Printf("[DATABASE] SQLite retry attempt %d/%d for %s (first 50 chars): %s... Error: %v",
		attempt+1, maxRetries, what, truncateString(query, 50), err)
}

// retryableExec executes a SQL statement with retry logic for lock conflicts
func retryableExec(db *sql.DB, query string, args ...interface{}) (sql.Result, error) {
	var result sql.Result
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		result, err = db.Exec(query, args...)
		if !isRetryableError(err) {
			return result, err
		}
		if attempt < maxRetries-1 {
			backoff(attempt, "exec", query, err)
		}
	}
	return result, err
}

// retryableQueryRowScan executes a QueryRow and Scan with retry logic
func retryableQueryRowScan(db *sql.DB, query string, args []interface{}, dest ...interface{}) error {
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err = db.QueryRow(query, args...).Scan(dest...)
		if !isRetryableError(err) {
			return err
		}
		if attempt < maxRetries-1 {
			backoff(attempt, "QueryRow scan", query, err)
		}
	}
	return err
}

// retryableQuery executes a query that returns multiple rows with retry logic
func retryableQuery(db *sql.DB, query string, args ...interface{}) (*sql.Rows, error) {
	var rows *sql.Rows
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		rows, err = db.Query(query, args...)
		if !isRetryableError(err) {
			return rows, err
		}
		if attempt < maxRetries-1 {
			backoff(attempt, "query", query, err)
		}
	}
	return rows, err
}

// retryableTransactionExec runs txFunc inside a transaction, retrying the
// whole transaction when begin, txFunc or commit hit a lock
func retryableTransactionExec(db *sql.DB, txFunc func(*sql.Tx) error) error {
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		var tx *sql.Tx
		tx, err = db.Begin()
		if err == nil {
			if err = txFunc(tx); err != nil {
				tx.Rollback()
			} else {
				err = tx.Commit()
			}
		}
		if !isRetryableError(err) {
			return err
		}
		if attempt < maxRetries-1 {
			backoff(attempt, "transaction", "", err)
		}
	}
	return err
}

// truncateString truncates a string to the specified length
func truncateString(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length]
}
