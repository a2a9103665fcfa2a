// Package config handles configuration loading for the easeway coordinator.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from EASEWAY_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/easeway/coordinator.yaml
//  3. ~/.config/easeway/coordinator.yaml
//
// Files ending in .toml are read as TOML; anything else as YAML. Sections
// the file omits keep the values from Default, so an empty file runs a
// local coordinator on SQLite.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	tailscale:
//	  auth_key: "${TS_AUTHKEY}"
//
// EASEWAY_DB_PATH, when set, replaces storage.path after the file is read.
//
// # Configuration Sections
//
//	server:
//	  grpc_addr: "127.0.0.1:50061"   # Send and Connect RPCs
//	  http_addr: "127.0.0.1:8089"    # /api/message, /api/connect, /health
//
//	storage:
//	  backend: sqlite                # sqlite | badger | memory
//	  path: "~/.local/share/easeway/easeway.db"
//
//	connections:
//	  allowed_origins: []            # WebSocket origins; empty allows any
//	  max_message_bytes: 1048576
//
//	statistics:
//	  history_limit: 100             # visited-domain history cap
//
//	dedupe:
//	  ttl: "5m"                      # how long a requestId is remembered
//	  max_entries: 10000
//
// Duration values use Go's time.ParseDuration syntax.
package config
