// Package ws implements the WebSocket hub that streams a session's Golden
// Signature to connected clients.
//
// New(source, interval) creates a Hub.
// Hub.Run(ctx) starts the push ticker and blocks until ctx is cancelled, then
// closes all active connections.
// Hub.Serve upgrades an HTTP connection for one session, sends the golden
// overview immediately, then streams updates on each tick. Approvals are
// pushed as soon as they happen via Hub.Approved; Hub.Notify pushes the
// current overview out of band (after a reset, for instance).
//
// Message format sent to clients:
//
//	{
//	  "event":      "golden" | "approved" | "closed",
//	  "session_id": "...",
//	  "golden":     { /* same schema as GET /api/v1/sessions/{id} */ },
//	  "approval":   { /* only on "approved" */ }
//	}
//
// The upgrader accepts all origins. Apply origin restrictions at the reverse
// proxy level.
package ws
