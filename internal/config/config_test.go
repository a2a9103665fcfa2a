// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML and TOML loading, defaults, env var expansion, and validation

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidYAML(t *testing.T) {
	path := writeConfig(t, "coordinator.yaml", `
server:
  grpc_addr: "0.0.0.0:50061"
  http_addr: "0.0.0.0:8089"

storage:
  backend: badger
  path: "/var/lib/easeway"

connections:
  allowed_origins:
    - "chrome-extension://abc"
  max_message_bytes: 4096

statistics:
  history_limit: 50

dedupe:
  ttl: "90s"
  max_entries: 500

logging:
  level: "debug"
  format: "json"

metrics:
  enabled: true
  path: "/metrics"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.GRPCAddr != "0.0.0.0:50061" {
		t.Errorf("GRPCAddr = %q", cfg.Server.GRPCAddr)
	}
	if cfg.Storage.Backend != BackendBadger || cfg.Storage.Path != "/var/lib/easeway" {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if len(cfg.Connections.AllowedOrigins) != 1 || cfg.Connections.AllowedOrigins[0] != "chrome-extension://abc" {
		t.Errorf("AllowedOrigins = %v", cfg.Connections.AllowedOrigins)
	}
	if cfg.Connections.MaxMessageBytes != 4096 {
		t.Errorf("MaxMessageBytes = %d", cfg.Connections.MaxMessageBytes)
	}
	if cfg.Statistics.HistoryLimit != 50 {
		t.Errorf("HistoryLimit = %d", cfg.Statistics.HistoryLimit)
	}
	if cfg.Dedupe.TTL != 90*time.Second || cfg.Dedupe.MaxEntries != 500 {
		t.Errorf("Dedupe = %+v", cfg.Dedupe)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoad_ValidTOML(t *testing.T) {
	path := writeConfig(t, "coordinator.toml", `
[server]
grpc_addr = "127.0.0.1:6000"
http_addr = "127.0.0.1:6001"

[storage]
backend = "memory"

[dedupe]
ttl = "1m"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.HTTPAddr != "127.0.0.1:6001" {
		t.Errorf("HTTPAddr = %q", cfg.Server.HTTPAddr)
	}
	if cfg.Storage.Backend != BackendMemory {
		t.Errorf("Backend = %q", cfg.Storage.Backend)
	}
	if cfg.Dedupe.TTL != time.Minute {
		t.Errorf("TTL = %v", cfg.Dedupe.TTL)
	}
	// Untouched sections keep defaults
	if cfg.Statistics.HistoryLimit != 100 {
		t.Errorf("HistoryLimit = %d, want default 100", cfg.Statistics.HistoryLimit)
	}
}

func TestLoad_DefaultsForMissingSections(t *testing.T) {
	path := writeConfig(t, "coordinator.yaml", `
storage:
  backend: memory
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	def := Default()
	if cfg.Server != def.Server {
		t.Errorf("Server = %+v, want %+v", cfg.Server, def.Server)
	}
	if cfg.Dedupe.TTL != 5*time.Minute || cfg.Dedupe.MaxEntries != 10000 {
		t.Errorf("Dedupe = %+v", cfg.Dedupe)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics = %+v", cfg.Metrics)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_EASEWAY_ADDR", "10.0.0.1:9000")
	t.Setenv("TEST_EASEWAY_KEY", "tskey-123")

	path := writeConfig(t, "coordinator.yaml", `
server:
  grpc_addr: "${TEST_EASEWAY_ADDR}"
  http_addr: "127.0.0.1:8089"
tailscale:
  auth_key: "${TEST_EASEWAY_KEY}"
  hostname: "${TEST_EASEWAY_UNSET}"
storage:
  backend: memory
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.GRPCAddr != "10.0.0.1:9000" {
		t.Errorf("GRPCAddr = %q", cfg.Server.GRPCAddr)
	}
	if cfg.Tailscale.AuthKey != "tskey-123" {
		t.Errorf("AuthKey = %q", cfg.Tailscale.AuthKey)
	}
	if cfg.Tailscale.Hostname != "" {
		t.Errorf("unset variable should expand to empty, got %q", cfg.Tailscale.Hostname)
	}
}

func TestLoad_DBPathOverride(t *testing.T) {
	t.Setenv("EASEWAY_DB_PATH", "/tmp/override.db")

	path := writeConfig(t, "coordinator.yaml", `
storage:
  backend: sqlite
  path: "/somewhere/else.db"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Storage.Path != "/tmp/override.db" {
		t.Errorf("Storage.Path = %q", cfg.Storage.Path)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		want    string
	}{
		{
			name:    "bad yaml",
			file:    "c.yaml",
			content: "server: [unclosed",
			want:    "parsing config file",
		},
		{
			name:    "bad toml",
			file:    "c.toml",
			content: "[server\n",
			want:    "parsing config file",
		},
		{
			name:    "bad duration",
			file:    "c.yaml",
			content: "dedupe:\n  ttl: \"soon\"\n",
			want:    "dedupe.ttl",
		},
		{
			name:    "unknown backend",
			file:    "c.yaml",
			content: "storage:\n  backend: postgres\n",
			want:    "storage.backend",
		},
		{
			name:    "missing path",
			file:    "c.yaml",
			content: "storage:\n  backend: badger\n  path: \"\"\n",
			want:    "storage.path is required",
		},
		{
			name:    "missing grpc addr",
			file:    "c.yaml",
			content: "server:\n  grpc_addr: \"\"\nstorage:\n  backend: memory\n",
			want:    "server.grpc_addr is required",
		},
		{
			name:    "tailscale without hostname",
			file:    "c.yaml",
			content: "tailscale:\n  enabled: true\nstorage:\n  backend: memory\n",
			want:    "tailscale.hostname is required",
		},
		{
			name:    "zero history",
			file:    "c.yaml",
			content: "statistics:\n  history_limit: 0\nstorage:\n  backend: memory\n",
			want:    "history_limit",
		},
		{
			name:    "bad log level",
			file:    "c.yaml",
			content: "logging:\n  level: loud\nstorage:\n  backend: memory\n",
			want:    "logging.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("EASEWAY_DB_PATH", "")
			path := writeConfig(t, tt.file, tt.content)
			_, err := Load(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "reading config file") {
		t.Fatalf("error = %v", err)
	}
}

func TestWriteDefault(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "easeway", "coordinator.yaml")

	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load(default) error = %v", err)
	}
	if cfg.Storage.Backend != BackendSQLite {
		t.Errorf("Backend = %q", cfg.Storage.Backend)
	}

	err = WriteDefault(path)
	if !errors.Is(err, ErrConfigExists) {
		t.Errorf("second WriteDefault() error = %v, want ErrConfigExists", err)
	}
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("EASEWAY_CONFIG", "/etc/easeway.yaml")
	if got := DefaultPath(); got != "/etc/easeway.yaml" {
		t.Errorf("DefaultPath() = %q", got)
	}

	t.Setenv("EASEWAY_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	if got := DefaultPath(); got != filepath.Join("/xdg", "easeway", "coordinator.yaml") {
		t.Errorf("DefaultPath() = %q", got)
	}
}
