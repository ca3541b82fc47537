// Package config provides configuration management for go-myapp.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

var AppVersion = "-unset-" // will be set at build time

const (
	DefaultListenPort      = 11980
	DefaultCleanupInterval = 15 * time.Minute
	DefaultListCacheSize   = 256
	DefaultListCacheMaxAge = 30 * time.Second
)

// MainConfig holds the main configuration for go-myapp
type MainConfig struct {
	// Web interface settings
	Web WebConfig `yaml:"web" json:"web"`

	// Database settings
	Database DatabaseConfig `yaml:"database" json:"database"`

	// Admin site settings
	Admin AdminConfig `yaml:"admin" json:"admin"`

	AppVersion string `yaml:"-" json:"app_version"` // Application version, set at build time
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	DataDir   string `yaml:"data_dir" json:"data_dir"`     // main DB lives in <data_dir>/cfg/
	WALMode   bool   `yaml:"wal_mode" json:"wal_mode"`     // Write-Ahead Logging
	SyncMode  string `yaml:"sync_mode" json:"sync_mode"`   // OFF, NORMAL, FULL
	MaxConns  int    `yaml:"max_conns" json:"max_conns"`   // sql.DB pool size
	CacheSize int    `yaml:"cache_size" json:"cache_size"` // sqlite cache_size pragma
}

// WebConfig holds web interface configuration
type WebConfig struct {
	ListenPort        int           `yaml:"listen_port" json:"listen_port"`
	SSL               bool          `yaml:"ssl" json:"ssl"`
	CertFile          string        `yaml:"cert_file,omitempty" json:"cert_file,omitempty"`
	KeyFile           string        `yaml:"key_file,omitempty" json:"key_file,omitempty"`
	TrustedProxies    []string      `yaml:"trusted_proxies" json:"trusted_proxies"`
	BlockedUserAgents []string      `yaml:"blocked_user_agents" json:"blocked_user_agents"`
	ApacheLog         bool          `yaml:"apache_log" json:"apache_log"` // access log in combined log format
	CleanupInterval   time.Duration `yaml:"session_cleanup_interval" json:"session_cleanup_interval"`
	ListCacheEntries  int           `yaml:"list_cache_entries" json:"list_cache_entries"` // cached API list pages, 0 disables
	ListCacheMaxAge   time.Duration `yaml:"list_cache_max_age" json:"list_cache_max_age"`
	Debug             bool          `yaml:"debug" json:"debug"` // Enable debug logging for sessions/auth
}

// AdminConfig holds admin site configuration
type AdminConfig struct {
	ListPerPage int `yaml:"list_per_page" json:"list_per_page"` // 0 keeps each model's own value
}

// NewDefaultConfig returns a configuration with sensible defaults
func NewDefaultConfig() *MainConfig {
	return &MainConfig{
		AppVersion: AppVersion,
		Web: WebConfig{
			ListenPort:       DefaultListenPort,
			SSL:              false,
			TrustedProxies:   []string{"127.0.0.1", "::1", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"},
			CleanupInterval:  DefaultCleanupInterval,
			ListCacheEntries: DefaultListCacheSize,
			ListCacheMaxAge:  DefaultListCacheMaxAge,
		},
		Database: DatabaseConfig{
			DataDir:   "./data",
			WALMode:   true,
			SyncMode:  "NORMAL",
			MaxConns:  25,
			CacheSize: -16384, // 16MB
		},
	}
}

// LoadFile decodes a YAML file over cfg. Keys missing from the file keep
// their current value, unknown keys are an error.
func (cfg *MainConfig) LoadFile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			log.Printf("[CONFIG] %s is empty, using defaults", path)
			return nil
		}
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	log.Printf("[CONFIG] Loaded configuration from %s", path)
	return nil
}

// Validate checks settings that would otherwise fail late at startup
func (cfg *MainConfig) Validate() error {
	if cfg.Web.ListenPort < 1024 || cfg.Web.ListenPort > 65535 {
		return fmt.Errorf("invalid port number: %d (must be between 1024 and 65535)", cfg.Web.ListenPort)
	}
	if cfg.Web.SSL && (cfg.Web.CertFile == "" || cfg.Web.KeyFile == "") {
		return errors.New("SSL enabled but cert_file or key_file not specified in config")
	}
	if cfg.Database.DataDir == "" {
		return errors.New("database data_dir must not be empty")
	}
	switch cfg.Database.SyncMode {
	case "OFF", "NORMAL", "FULL", "EXTRA":
	default:
		return fmt.Errorf("invalid database sync_mode %q", cfg.Database.SyncMode)
	}
	if cfg.Web.ListCacheEntries < 0 || cfg.Web.ListCacheMaxAge < 0 {
		return errors.New("web list cache settings must not be negative")
	}
	if cfg.Admin.ListPerPage < 0 {
		return fmt.Errorf("invalid admin list_per_page %d", cfg.Admin.ListPerPage)
	}
	return nil
}
