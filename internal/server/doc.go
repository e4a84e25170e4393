// Package server exposes bassi over HTTP: the chat management API, the
// browser WebSocket endpoint, health probes, and Prometheus metrics.
//
// # Endpoints
//
// Chat management:
//
//	GET    /api/chats               list chats (limit, offset, sort, desc, state)
//	GET    /api/chats/search?q=     substring search over names and IDs
//	GET    /api/chats/{id}          chat metadata plus full transcript
//	DELETE /api/chats/{id}          delete a chat and its files
//	POST   /api/chats/{id}/name     set the display name
//	GET    /api/chats/{id}/export   download transcript (format=md|json|html)
//
// Settings:
//
//	GET /api/settings
//	PUT /api/settings               model changes propagate to all pooled sessions
//
// Chat transport:
//
//	GET /ws                         WebSocket upgrade; ?chat_id= resumes a chat
//
// Operations:
//
//	GET /health                     liveness
//	GET /health/ready               readiness, including index consistency
//	GET /metrics                    Prometheus metrics (when enabled)
//
// # Authentication
//
// When a JWT secret is configured, every endpoint except the health
// probes requires a valid HS256 bearer token. WebSocket clients may
// pass the token as a ?token= query parameter instead of a header.
package server
