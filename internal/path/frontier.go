package path

import (
	"container/heap"

	"fleetnav/internal/graph"
)

// frontier is the search's min-heap, ordered by f = dist + heuristic with
// insertion sequence as the tie-breaker so equal-cost pops are reproducible
// across runs.
type frontier struct {
	items frontierItems
	seq   int
}

type frontierItem struct {
	node graph.NodeID
	dist float64
	h    float64
	seq  int
}

func (it frontierItem) priority() float64 { return it.dist + it.h }

type frontierItems []frontierItem

func (q frontierItems) Len() int { return len(q) }

func (q frontierItems) Less(i, j int) bool {
	if q[i].priority() != q[j].priority() {
		return q[i].priority() < q[j].priority()
	}
	return q[i].seq < q[j].seq
}

func (q frontierItems) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *frontierItems) Push(x any) { *q = append(*q, x.(frontierItem)) }

func (q *frontierItems) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	*q = old[:n-1]
	return it
}

func newFrontier() *frontier {
	f := &frontier{}
	heap.Init(&f.items)
	return f
}

func (f *frontier) len() int { return f.items.Len() }

func (f *frontier) push(node graph.NodeID, dist, h float64) {
	f.seq++
	heap.Push(&f.items, frontierItem{node: node, dist: dist, h: h, seq: f.seq})
}

func (f *frontier) pop() frontierItem {
	return heap.Pop(&f.items).(frontierItem)
}
