// Package pool amortizes agent backend connection cost across browsers.
//
// # Overview
//
// A Pool holds a small fixed number of pre-connected backend sessions.
// Browsers acquire a handle for the life of one WebSocket connection and
// release it on disconnect. The pool size is a hard cap: when every
// handle is in use, Acquire waits up to its timeout and then fails with
// ErrPoolExhausted. Nothing ever creates an unpooled extra session.
//
// # State machine
//
//	AVAILABLE -> (Acquire) -> IN_USE -> (Release) -> AVAILABLE
//
// # The clearing contract
//
// A handle carries conversational state while bound: message history,
// the bound workspace ID, per-chat stats, and a conversation-scoped
// cache. Release wipes all of it before the handle becomes eligible for
// reacquisition, so one user's content can never leak into another
// user's session. Tests treat any gap here as a severe defect.
//
// # Concurrency
//
// Acquire and Release are safe for concurrent use from many
// connections. A single mutex guards the scan-and-mark; waiters block on
// a signal channel that is closed and replaced on every release.
package pool
