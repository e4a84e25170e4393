// Package backend abstracts the external agent service.
//
// # Overview
//
// The rest of the system depends on three operations: Connect to
// establish a warm session, Send to stream a response for a
// conversation, and Close to tear the session down. Any failure from a
// single Send is recoverable per request; the session stays usable.
//
// Two implementations ship:
//
//   - OpenAIBackend: streaming Chat Completions over an OpenAI-compatible
//     HTTP API (SSE response parsing)
//   - ScriptedBackend: canned in-process responses for development and
//     tests, with configurable reply function and per-event delay
//
// # Events
//
// A Send stream carries thinking, text, and tool_use events and always
// terminates with a done or error event (Done flag set), after which the
// channel is closed.
package backend
