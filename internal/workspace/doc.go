// Package workspace persists chat conversations to disk.
//
// # Overview
//
// Each chat owns one directory under a configurable base path:
//
//	<base>/<chat_id>/workspace.json   metadata (the workspace marker)
//	<base>/<chat_id>/history.json     ordered conversation turns
//	<base>/index.json                 cached catalog of all workspaces
//
// The directory is the sole authority for a chat's persisted state.
// Every mutating call writes synchronously before returning, so on-disk
// state is never older than what the in-memory object reports.
//
// # Workspace
//
// Key operations:
//
//   - Exists(base, id): is there a valid workspace for this chat?
//   - Create(base, id) / Load(base, id): initialize or resume a chat
//   - AppendTurn(role, text): append one turn, persist immediately
//   - History(): turns in append order, for replay into an agent handle
//   - Delete(): remove the directory
//
// Load failures (missing directory, unparsable files) are reported as
// ErrNotFound; callers create a fresh chat instead of failing.
//
// # Index
//
// The Index is a cache over the workspace directories. It must always be
// reconstructible by rescanning the filesystem: the scan is the source
// of truth. A missing, corrupt, or version-mismatched index file
// triggers a wholesale rebuild at construction time, and
// VerifyConsistency/Repair reconcile drift at runtime.
//
// Every index mutation rewrites the whole index file under a mutex.
// This is a single-process design; there is no cross-process locking.
package workspace
