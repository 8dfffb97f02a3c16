package dag

import "sync"

// Graph is a collection of nodes and their dependencies. Edges point from a
// dependency to its dependent. All operations on the graph are
// concurrency-safe.
type Graph struct {
	// mutex protects the node index during concurrent access.
	mutex sync.RWMutex
	// nodes stores all nodes in the graph, keyed by their unique ID.
	nodes map[string]*node
	// order keeps nodes in discovery order; it is the tie-break for every
	// traversal so results are deterministic.
	order []*node
}

// node represents a single vertex in the graph. It is un-exported to
// enforce interaction with the graph via the public API (using string IDs),
// not by direct struct manipulation.
type node struct {
	id    string
	index int
	// deps holds the nodes this node depends on (predecessors), in insertion order.
	deps []*node
	// dependents holds the nodes that depend on this node (successors), in insertion order.
	dependents []*node
}

func (n *node) hasDependent(other *node) bool {
	for _, d := range n.dependents {
		if d == other {
			return true
		}
	}
	return false
}
