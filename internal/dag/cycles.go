package dag

// Cycles enumerates every simple cycle in the graph using Johnson's
// algorithm. Each cycle starts at its node with the lowest discovery index
// and follows edge direction. Cycles are returned in a deterministic order.
func (g *Graph) Cycles() [][]string {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	var cycles [][]string
	for s := range g.order {
		cycles = append(cycles, g.cyclesFrom(s)...)
	}
	return cycles
}

// cyclesFrom finds the cycles through order[s] within the subgraph of nodes
// whose index is at least s.
func (g *Graph) cyclesFrom(s int) [][]string {
	start := g.order[s]
	blocked := make(map[*node]bool)
	blockers := make(map[*node]map[*node]bool)
	var stack []*node
	var cycles [][]string

	var unblock func(n *node)
	unblock = func(n *node) {
		blocked[n] = false
		for w := range blockers[n] {
			delete(blockers[n], w)
			if blocked[w] {
				unblock(w)
			}
		}
	}

	var circuit func(v *node) bool
	circuit = func(v *node) bool {
		found := false
		stack = append(stack, v)
		blocked[v] = true

		for _, w := range v.dependents {
			if w.index < s {
				continue
			}
			if w == start {
				cycles = append(cycles, ids(stack))
				found = true
			} else if !blocked[w] && circuit(w) {
				found = true
			}
		}

		if found {
			unblock(v)
		} else {
			for _, w := range v.dependents {
				if w.index < s {
					continue
				}
				if blockers[w] == nil {
					blockers[w] = make(map[*node]bool)
				}
				blockers[w][v] = true
			}
		}

		stack = stack[:len(stack)-1]
		return found
	}

	circuit(start)
	return cycles
}
