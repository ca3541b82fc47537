package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "myapp.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Web.ListenPort != DefaultListenPort {
		t.Errorf("ListenPort = %d, want %d", cfg.Web.ListenPort, DefaultListenPort)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
web:
  listen_port: 18080
  apache_log: true
  session_cleanup_interval: 5m
  blocked_user_agents: [semrush, mj12]
database:
  data_dir: /var/lib/myapp
admin:
  list_per_page: 25
`)
	cfg := NewDefaultConfig()
	if err := cfg.LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Web.ListenPort != 18080 || !cfg.Web.ApacheLog {
		t.Errorf("web section not applied: %+v", cfg.Web)
	}
	if cfg.Web.CleanupInterval != 5*time.Minute {
		t.Errorf("CleanupInterval = %v, want 5m", cfg.Web.CleanupInterval)
	}
	if len(cfg.Web.BlockedUserAgents) != 2 {
		t.Errorf("BlockedUserAgents = %v", cfg.Web.BlockedUserAgents)
	}
	if cfg.Database.DataDir != "/var/lib/myapp" {
		t.Errorf("DataDir = %q", cfg.Database.DataDir)
	}
	// keys absent from the file keep their defaults
	if cfg.Database.SyncMode != "NORMAL" || !cfg.Database.WALMode {
		t.Errorf("database defaults lost: %+v", cfg.Database)
	}
	if cfg.Admin.ListPerPage != 25 {
		t.Errorf("ListPerPage = %d", cfg.Admin.ListPerPage)
	}
}

func TestLoadFileErrors(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file accepted")
	}

	unknown := writeConfig(t, "web:\n  listen_prot: 8080\n")
	if err := cfg.LoadFile(unknown); err == nil || !strings.Contains(err.Error(), "listen_prot") {
		t.Errorf("unknown key: got %v", err)
	}

	empty := writeConfig(t, "")
	if err := cfg.LoadFile(empty); err != nil {
		t.Errorf("empty file: %v", err)
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*MainConfig)
	}{
		{"low port", func(c *MainConfig) { c.Web.ListenPort = 80 }},
		{"ssl without cert", func(c *MainConfig) { c.Web.SSL = true }},
		{"empty data dir", func(c *MainConfig) { c.Database.DataDir = "" }},
		{"bad sync mode", func(c *MainConfig) { c.Database.SyncMode = "SOMETIMES" }},
		{"negative page size", func(c *MainConfig) { c.Admin.ListPerPage = -1 }},
		{"negative list cache", func(c *MainConfig) { c.Web.ListCacheEntries = -1 }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("Validate() accepted invalid config")
			}
		})
	}
}
