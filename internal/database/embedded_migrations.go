package database

import (
	"embed"
	"fmt"
	"io/fs"
	"log"
	"sort"
	"strings"
	"sync"
)

//go:embed migrations/*.sql
var EmbeddedMigrationsFS embed.FS

// Global migration cache for embedded files
var (
	embeddedMigrationCache     []*MigrationFile
	embeddedMigrationCacheMux  sync.RWMutex
	embeddedMigrationCacheInit bool
)

// getEmbeddedMigrationFiles reads and parses all migration files from embedded filesystem
func getEmbeddedMigrationFiles() ([]*MigrationFile, error) {
	embeddedMigrationCacheMux.RLock()
	if embeddedMigrationCacheInit {
		cachedMigrations := make([]*MigrationFile, len(embeddedMigrationCache))
		copy(cachedMigrations, embeddedMigrationCache)
		embeddedMigrationCacheMux.RUnlock()
		return cachedMigrations, nil
	}
	embeddedMigrationCacheMux.RUnlock()

	files, err := fs.ReadDir(EmbeddedMigrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded migrations directory: %w", err)
	}

	var migrations []*MigrationFile
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".sql") {
			continue
		}
		migration, err := parseMigrationFileName(f.Name())
		if err != nil {
			log.Printf("[DATABASE] Warning: skipping invalid embedded migration file %s: %v", f.Name(), err)
			continue
		}
		migrations = append(migrations, migration)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	embeddedMigrationCacheMux.Lock()
	embeddedMigrationCache = migrations
	embeddedMigrationCacheInit = true
	embeddedMigrationCacheMux.Unlock()

	out := make([]*MigrationFile, len(migrations))
	copy(out, migrations)
	return out, nil
}

// readEmbeddedMigrationContent reads the content of an embedded migration file
func readEmbeddedMigrationContent(migration *MigrationFile) (string, error) {
	content, err := fs.ReadFile(EmbeddedMigrationsFS, migration.FilePath)
	if err != nil {
		return "", fmt.Errorf("failed to read embedded migration file %s: %w", migration.FilePath, err)
	}
	return string(content), nil
}
