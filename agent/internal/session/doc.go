// Package session drives one analysis session: it pulls frames from a
// source.Source, runs them through the shared pose.Engine and hands each
// result to a Sink (the shipper in production).
//
// A Runner owns its session's stability history inside the engine. A frame
// flagged reset by the source clears that history first; when the source is
// exhausted or the runner stops, the session is ended and its state dropped.
//
// Zones and exercise can be swapped while the runner is live (config
// hot-reload) with Update.
package session
