package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-while/go-myapp/internal/config"
	"github.com/go-while/go-myapp/internal/database"
)

// loadConfig layers defaults, the optional config file and command-line flags
func loadConfig() (*config.MainConfig, error) {
	mainConfig := config.NewDefaultConfig()
	if configFile != "" {
		if err := mainConfig.LoadFile(configFile); err != nil {
			return nil, err
		}
	}

	// Override config with command-line flags if provided
	if webport > 0 {
		mainConfig.Web.ListenPort = webport
		log.Printf("[WEB]: Overriding listen port with command-line flag: %d", webport)
	}
	if webssl {
		mainConfig.Web.SSL = true
		log.Printf("[WEB]: SSL enabled via command-line flag")
	}
	if webcertFile != "" {
		mainConfig.Web.CertFile = webcertFile
		log.Printf("[WEB]: SSL cert file set: %s", webcertFile)
	}
	if webkeyFile != "" {
		mainConfig.Web.KeyFile = webkeyFile
		log.Printf("[WEB]: SSL key file set: %s", webkeyFile)
	}
	if dataDir != "" {
		mainConfig.Database.DataDir = dataDir
	}

	if err := mainConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return mainConfig, nil
}

func dbConfigFrom(mainConfig *config.MainConfig) *database.DBConfig {
	dbconfig := database.DefaultDBConfig()
	dbconfig.DataDir = mainConfig.Database.DataDir
	dbconfig.WALMode = mainConfig.Database.WALMode
	dbconfig.SyncMode = mainConfig.Database.SyncMode
	if mainConfig.Database.MaxConns > 0 {
		dbconfig.MaxOpenConns = mainConfig.Database.MaxConns
		dbconfig.MaxIdleConns = min(dbconfig.MaxIdleConns, mainConfig.Database.MaxConns)
	}
	if mainConfig.Database.CacheSize != 0 {
		dbconfig.CacheSize = mainConfig.Database.CacheSize
	}
	return dbconfig
}

// monitorUpdateFile checks for path every interval and signals shutdown
// once it appears, renaming it to path.todo
func monitorUpdateFile(ctx context.Context, path string, interval time.Duration, shutdownChan chan<- struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("[WEB]: Update file monitor started, checking for '%s' every %v", path, interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if _, err := os.Stat(path); err != nil {
			continue
		}
		log.Printf("[WEB]: Update file '%s' detected, triggering graceful shutdown", path)
		if err := os.Rename(path, path+".todo"); err != nil {
			log.Printf("[WEB]: Warning: Failed to rename update file '%s': %v", path, err)
			continue
		}
		select {
		case shutdownChan <- struct{}{}:
		default:
		}
		return
	}
}
