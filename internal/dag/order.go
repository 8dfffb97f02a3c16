package dag

import (
	"container/heap"

	"github.com/vk/gridseed/internal/model"
)

// Order returns a topological order of the graph. Among nodes that are ready
// at the same time, the one discovered first comes first, so the order is
// stable for a fixed graph. If the graph has cycles, a *model.CycleError
// listing all of them is returned and no order is produced.
func (g *Graph) Order() ([]string, error) {
	if cycles := g.Cycles(); len(cycles) > 0 {
		return nil, &model.CycleError{Cycles: cycles}
	}

	g.mutex.RLock()
	defer g.mutex.RUnlock()

	pending := make(map[*node]int, len(g.order))
	ready := &readyQueue{}
	for _, n := range g.order {
		pending[n] = len(n.deps)
		if len(n.deps) == 0 {
			heap.Push(ready, n)
		}
	}

	out := make([]string, 0, len(g.order))
	for ready.Len() > 0 {
		n := heap.Pop(ready).(*node)
		out = append(out, n.id)
		for _, d := range n.dependents {
			pending[d]--
			if pending[d] == 0 {
				heap.Push(ready, d)
			}
		}
	}
	return out, nil
}

// readyQueue is a min-heap of nodes keyed by discovery index.
type readyQueue []*node

func (q readyQueue) Len() int           { return len(q) }
func (q readyQueue) Less(i, j int) bool { return q[i].index < q[j].index }
func (q readyQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *readyQueue) Push(x any)        { *q = append(*q, x.(*node)) }
func (q *readyQueue) Pop() any {
	old := *q
	n := old[len(old)-1]
	*q = old[:len(old)-1]
	return n
}
