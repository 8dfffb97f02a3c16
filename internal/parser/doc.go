// Package parser scans a source tree for node and group definition files,
// validates their shape and turns them into the immutable model the engine
// and the group exporter work on.
package parser
