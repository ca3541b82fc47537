package database

import (
	"database/sql"

	"github.com/mattn/go-sqlite3"
	"golang.org/x/text/cases"
)

// DriverName is the sqlite3 driver variant used for the main database.
// Every connection it opens has the casefold() SQL function.
const DriverName = "sqlite3_myapp"

func init() {
	sql.Register(DriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("casefold", casefold, true)
		},
	})
}

// casefold folds s for caseless matching. sqlite's own lower() and LIKE
// only know ASCII, so admin search goes through this instead.
// A cases.Caser is stateful, so each call gets its own.
func casefold(s string) string {
	return cases.Fold().String(s)
}
