// Package ws implements the WebSocket hub for formcheck-server.
//
// Hub manages a set of connected dashboards and pushes the current session
// snapshot to all of them every broadcast interval (server.broadcast_interval,
// default 1s). A client whose outgoing buffer fills up is disconnected.
//
// Message format sent to clients:
//
//	{
//	  "event": "snapshot",
//	  "data":  { /* same schema as GET /api/v1/snapshot */ }
//	}
//
// The upgrader accepts all origins. The endpoint is mounted at /ws/stream.
package ws
