// Package storage is the console's key/value persistence: session tokens,
// roles, the auto-login flag, and the last payload of every bus topic.
//
// # Backends
//
//   - memory: in-process, the default (also used for session scope)
//   - storage/local: a single JSON file
//   - storage/badger: embedded badger database
//   - redis: registered by the redis package, shared between processes
//
//	storage:
//	  provider: local
//	  path: ~/.ylai/storage.json
package storage
