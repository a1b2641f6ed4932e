// Package types defines the records exchanged between formcheck-agent and
// formcheck-server. They are the wire representation of a pose.Result,
// flattened so the server needs no knowledge of the engine's topology.
package types
