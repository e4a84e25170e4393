// Package session orchestrates browser WebSocket connections.
//
// # Overview
//
// The Manager runs the full lifecycle of one connection:
//
//  1. Acquire a pool handle (an exhausted pool closes the socket with
//     code 1013 and a "server busy" reason)
//  2. Resolve the chat: reuse the requested chat ID when a workspace
//     exists, otherwise mint a new one
//  3. Replay persisted history into the handle when resuming
//  4. Loop over inbound messages until the connection drops
//  5. Always clean up: cancel in-flight requests and pending questions,
//     clear permission grants, discard an abandoned empty chat, release
//     the handle
//
// # Message dispatch
//
// Every inbound chat message runs as an independent task, so a slow
// backend call never blocks receipt of an interrupt. The consequence is
// deliberate and documented: responses to back-to-back prompts may
// interleave, correlated by request_id. History appends, by contrast,
// are serialized per workspace.
//
// # Failure isolation
//
// A failure processing one message produces an error message for that
// request only. A failure on one connection never affects another: all
// cross-connection state lives in the pool, behind its own lock.
package session
