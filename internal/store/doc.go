// Package store provides the persisted key-value namespace owned by the coordinator.
//
// # Architecture
//
// Store is a flat get/set/remove interface over named keys. Atomicity is per key
// only: there are no cross-key transactions, and a read-modify-write over one key
// races with any other writer of that key. Callers that merge into a blob read the
// whole value, mutate it in memory and write it back as one unit.
//
// Backends:
//
//   - SQLiteStore: single kv table (modernc.org/sqlite, WAL mode). Default.
//   - BadgerStore: embedded BadgerDB, keys prefixed with "easeway/".
//   - MockStore: in-memory map with injectable failures. Also the "memory" backend.
//
// # Keys
//
//   - settings: global settings blob (last writer wins)
//   - websitePreferences: userId -> domain -> record
//   - usageStatistics: userId -> statistics record
//   - activeUserId, activeProfileId, authToken: session pointers
//
// # Error Handling
//
//   - ErrNotFound: key has no value
//   - ErrClosed: the store was closed
//
// GetJSON reports an absent key as (false, nil) so callers can treat "never written"
// as an empty value without special-casing ErrNotFound.
package store
