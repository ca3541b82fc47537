package database

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Database represents the main database connection
type Database struct {
	// Main database connection for system data, users and sample models
	mainDB *sql.DB

	// Database configuration
	dbconfig *DBConfig

	AppName string

	closeOnce sync.Once
}

// DBConfig represents database configuration
type DBConfig struct {
	// Directory to store database files
	DataDir string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// Performance settings
	WALMode   bool   // Write-Ahead Logging
	SyncMode  string // OFF, NORMAL, FULL
	CacheSize int    // KB
	TempStore string // MEMORY, FILE
}

// DefaultDBConfig returns default database configuration
func DefaultDBConfig() (dbconfig *DBConfig) {
	return &DBConfig{
		DataDir:         "./data",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 0, // Unlimited for SQLite - connections don't need to be recycled
		WALMode:         true,
		SyncMode:        "NORMAL",
		CacheSize:       -16384, // -16384 == 1024 KB * 16384 = 16MB cache
		TempStore:       "MEMORY",
	}
}

// OpenDatabase opens (and creates if needed) the main database below
// dbconfig.DataDir, migrates it and records the startup in system_status.
func OpenDatabase(dbconfig *DBConfig) (*Database, error) {
	if dbconfig == nil {
		dbconfig = DefaultDBConfig()
	}

	db := &Database{
		dbconfig: dbconfig,
		AppName:  "go-myapp",
	}

	// Initialize main database
	if err := db.initMainDB(); err != nil {
		return nil, fmt.Errorf("failed to initialize main database: %w", err)
	}

	// Run migrations to ensure all tables exist
	if err := db.Migrate(); err != nil {
		db.mainDB.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	// Check previous shutdown state and initialize system status
	if wasClean, err := db.CheckPreviousShutdown(); err != nil {
		log.Printf("[DATABASE] Warning: Failed to check previous shutdown state: %v", err)
	} else if !wasClean {
		log.Printf("[DATABASE] WARNING: Previous shutdown was not clean")
	}

	hostname, _ := os.Hostname()
	if err := db.InitializeSystemStatus(db.AppName, os.Getpid(), hostname); err != nil {
		log.Printf("[DATABASE] Warning: Failed to initialize system status: %v", err)
	}

	log.Printf("[DATABASE] Initialized: data_dir=%s wal=%t sync=%s", dbconfig.DataDir, dbconfig.WALMode, dbconfig.SyncMode)
	return db, nil
}

// initMainDB initializes the main database connection
func (db *Database) initMainDB() error {
	cfgDir := filepath.Join(db.dbconfig.DataDir, "cfg")
	dbPath := filepath.Join(cfgDir, "myapp.sq3")
	log.Printf("[DATABASE] Opening main database at: %s", dbPath)

	if err := createDirIfNotExists(cfgDir); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	// busy_timeout and foreign_keys must hold on every pooled connection,
	// not just the one the pragmas below run on
	mainDB, err := sql.Open(DriverName, dbPath+"?_busy_timeout=30000&_foreign_keys=on")
	if err != nil {
		return fmt.Errorf("failed to open main database: %w", err)
	}

	// Configure connection pool
	mainDB.SetMaxOpenConns(db.dbconfig.MaxOpenConns)
	mainDB.SetMaxIdleConns(db.dbconfig.MaxIdleConns)
	mainDB.SetConnMaxLifetime(db.dbconfig.ConnMaxLifetime)

	// Test connection
	if err := mainDB.Ping(); err != nil {
		if cerr := mainDB.Close(); cerr != nil {
			return fmt.Errorf("failed to ping main database: %w; also failed to close mainDB: %v", err, cerr)
		}
		return fmt.Errorf("failed to ping main database: %w", err)
	}

	if err := db.applySQLitePragmas(mainDB); err != nil {
		if cerr := mainDB.Close(); cerr != nil {
			return fmt.Errorf("failed to apply SQLite pragmas: %w; also failed to close mainDB: %v", err, cerr)
		}
		return fmt.Errorf("failed to apply SQLite pragmas: %w", err)
	}

	db.mainDB = mainDB
	return nil
}

// applySQLitePragmas applies performance and configuration pragmas to SQLite connection
func (db *Database) applySQLitePragmas(conn *sql.DB) error {
	tempStore := db.dbconfig.TempStore
	if tempStore == "" {
		tempStore = "MEMORY"
	}
	pragmas := []string{
		fmt.Sprintf("PRAGMA cache_size = %d", db.dbconfig.CacheSize),
		fmt.Sprintf("PRAGMA synchronous = %s", db.dbconfig.SyncMode),
		fmt.Sprintf("PRAGMA temp_store = %s", tempStore),
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 30000", // 30 seconds
	}

	if db.dbconfig.WALMode {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
		pragmas = append(pragmas, "PRAGMA wal_autocheckpoint = 1000")
	}

	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute pragma '%s': %w", pragma, err)
		}
	}

	return nil
}

// createDirIfNotExists creates a directory if it doesn't exist
func createDirIfNotExists(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}
