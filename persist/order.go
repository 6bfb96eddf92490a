package persist

import (
	"container/heap"

	"github.com/yourbasic/graph"
)

// cyclicComponents strongly connected components that form a cycle:
// more than one member, or a single member referencing itself
func cyclicComponents(g *graph.Mutable) [][]int {
	var cycles [][]int
	for _, comp := range graph.StrongComponents(g) {
		if len(comp) > 1 || g.Edge(comp[0], comp[0]) {
			cycles = append(cycles, comp)
		}
	}
	return cycles
}

// stableOrder topological order of an acyclic graph, an edge v->w puts v
// before w; among ready nodes the lowest index goes first
func stableOrder(g *graph.Mutable) []int {
	n := g.Order()
	indegree := make([]int, n)
	for v := 0; v < n; v++ {
		g.Visit(v, func(w int, _ int64) bool {
			indegree[w]++
			return false
		})
	}

	ready := &intHeap{}
	for v := 0; v < n; v++ {
		if indegree[v] == 0 {
			heap.Push(ready, v)
		}
	}

	order := make([]int, 0, n)
	for ready.Len() > 0 {
		v := heap.Pop(ready).(int)
		order = append(order, v)
		g.Visit(v, func(w int, _ int64) bool {
			if indegree[w]--; indegree[w] == 0 {
				heap.Push(ready, w)
			}
			return false
		})
	}
	return order
}

type intHeap []int

func (h intHeap) Len() int            { return len(h) }
func (h intHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h intHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *intHeap) Push(x interface{}) { *h = append(*h, x.(int)) }
func (h *intHeap) Pop() interface{} {
	old := *h
	x := old[len(old)-1]
	*h = old[:len(old)-1]
	return x
}
