// ABOUTME: Default configuration file written by `easeway-coordinator init`
// ABOUTME: Refuses to overwrite an existing file

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrConfigExists is returned by WriteDefault when the target already exists.
var ErrConfigExists = errors.New("config file already exists")

const defaultTemplate = `# easeway coordinator configuration

server:
  grpc_addr: "127.0.0.1:50061"
  http_addr: "127.0.0.1:8089"

tailscale:
  enabled: false
  hostname: "easeway"
  auth_key: "${TS_AUTHKEY}"
  ephemeral: false

storage:
  # sqlite, badger, or memory
  backend: sqlite
  path: "%s"

connections:
  allowed_origins: []
  max_message_bytes: 1048576

statistics:
  history_limit: 100

dedupe:
  ttl: "5m"
  max_entries: 10000

logging:
  level: info
  format: text

metrics:
  enabled: true
  path: /metrics
`

// WriteDefault writes the default configuration to path, creating parent directories.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrConfigExists, path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	body := fmt.Sprintf(defaultTemplate, filepath.Join(DataDir(), "easeway.db"))
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
