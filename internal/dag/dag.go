// Package dag is a small directed graph over string ids that keeps insertion
// order everywhere, so every traversal is reproducible.
package dag

import (
	"container/heap"
	"fmt"
	"slices"
)

// Graph is a directed graph. Parallel edges are collapsed; self edges are
// kept so that they surface as one-node cycles.
type Graph struct {
	order []string
	index map[string]int
	succ  map[string][]string
	pred  map[string][]string
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		index: map[string]int{},
		succ:  map[string][]string{},
		pred:  map[string][]string{},
	}
}

// AddNode adds a vertex. Adding the same id twice is an error.
func (g *Graph) AddNode(id string) error {
	if _, exists := g.index[id]; exists {
		return fmt.Errorf("node %q already exists", id)
	}
	g.index[id] = len(g.order)
	g.order = append(g.order, id)
	return nil
}

// AddEdge adds from -> to.
func (g *Graph) AddEdge(from, to string) error {
	if _, ok := g.index[from]; !ok {
		return fmt.Errorf("source node %q not found", from)
	}
	if _, ok := g.index[to]; !ok {
		return fmt.Errorf("destination node %q not found", to)
	}
	if slices.Contains(g.succ[from], to) {
		return nil
	}
	g.succ[from] = append(g.succ[from], to)
	g.pred[to] = append(g.pred[to], from)
	return nil
}

// Nodes returns the vertices in insertion order.
func (g *Graph) Nodes() []string {
	return slices.Clone(g.order)
}

// Successors returns the direct successors of id in insertion order.
func (g *Graph) Successors(id string) []string {
	return slices.Clone(g.succ[id])
}

// Predecessors returns the direct predecessors of id in insertion order.
func (g *Graph) Predecessors(id string) []string {
	return slices.Clone(g.pred[id])
}

// TopologicalSort orders the vertices with Kahn's algorithm. Among vertices
// that are ready at the same time, the one inserted first goes first. The
// second result lists the vertices that could not be ordered because they are
// on, or downstream of, a cycle.
func (g *Graph) TopologicalSort() (order, blocked []string) {
	indegree := make(map[string]int, len(g.order))
	for _, id := range g.order {
		indegree[id] = len(g.pred[id])
	}

	ready := &indexHeap{index: g.index}
	for _, id := range g.order {
		if indegree[id] == 0 {
			heap.Push(ready, id)
		}
	}

	order = make([]string, 0, len(g.order))
	for ready.Len() > 0 {
		id := heap.Pop(ready).(string)
		order = append(order, id)
		for _, next := range g.succ[id] {
			indegree[next]--
			if indegree[next] == 0 {
				heap.Push(ready, next)
			}
		}
	}

	for _, id := range g.order {
		if indegree[id] > 0 {
			blocked = append(blocked, id)
		}
	}
	return order, blocked
}

// DetectCycles returns closed paths, e.g. [a b c a], that together cover
// every vertex lying on a cycle. It walks the graph depth first from every
// vertex in insertion order and records one path per back edge; a vertex on a
// cycle that no back edge closed is then given the shortest cycle through it
// inside its strongly connected component. Each such path starts at its
// earliest inserted vertex. A graph without cycles yields nil.
func (g *Graph) DetectCycles() [][]string {
	const (
		unvisited = iota
		onStack
		done
	)
	state := make(map[string]int, len(g.order))
	var stack []string
	var cycles [][]string
	covered := map[string]bool{}

	var visit func(id string)
	visit = func(id string) {
		state[id] = onStack
		stack = append(stack, id)
		for _, next := range g.succ[id] {
			switch state[next] {
			case unvisited:
				visit(next)
			case onStack:
				start := slices.Index(stack, next)
				cycle := append(slices.Clone(stack[start:]), next)
				cycles = append(cycles, cycle)
				for _, v := range stack[start:] {
					covered[v] = true
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
	}

	for _, id := range g.order {
		if state[id] == unvisited {
			visit(id)
		}
	}

	for _, comp := range g.components() {
		members := make(map[string]bool, len(comp))
		for _, id := range comp {
			members[id] = true
		}
		for _, id := range comp {
			if covered[id] {
				continue
			}
			cycle := g.rotate(g.shortestCycle(id, members))
			cycles = append(cycles, cycle)
			for _, v := range cycle {
				covered[v] = true
			}
		}
	}
	return cycles
}

// components returns the strongly connected components that contain a cycle
// (more than one vertex, or a self edge), found with Tarjan's algorithm. Each
// component lists its vertices in insertion order, and components are ordered
// by their earliest vertex.
func (g *Graph) components() [][]string {
	index := map[string]int{}
	low := map[string]int{}
	onStack := map[string]bool{}
	var stack []string
	var comps [][]string
	next := 0

	var connect func(id string)
	connect = func(id string) {
		index[id], low[id] = next, next
		next++
		stack = append(stack, id)
		onStack[id] = true

		for _, w := range g.succ[id] {
			if _, seen := index[w]; !seen {
				connect(w)
				low[id] = min(low[id], low[w])
			} else if onStack[w] {
				low[id] = min(low[id], index[w])
			}
		}

		if low[id] != index[id] {
			return
		}
		var comp []string
		for {
			w := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[w] = false
			comp = append(comp, w)
			if w == id {
				break
			}
		}
		if len(comp) > 1 || slices.Contains(g.succ[id], id) {
			slices.SortFunc(comp, func(a, b string) int { return g.index[a] - g.index[b] })
			comps = append(comps, comp)
		}
	}

	for _, id := range g.order {
		if _, seen := index[id]; !seen {
			connect(id)
		}
	}
	slices.SortFunc(comps, func(a, b []string) int { return g.index[a[0]] - g.index[b[0]] })
	return comps
}

// shortestCycle finds, breadth first, the shortest closed path from id back
// to id that stays inside members. id must lie on a cycle within members.
func (g *Graph) shortestCycle(id string, members map[string]bool) []string {
	parent := map[string]string{}
	queue := []string{id}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, w := range g.succ[u] {
			if !members[w] {
				continue
			}
			if w == id {
				path := []string{u}
				for v := u; v != id; {
					v = parent[v]
					path = append(path, v)
				}
				slices.Reverse(path)
				return append(path, id)
			}
			if _, seen := parent[w]; !seen {
				parent[w] = u
				queue = append(queue, w)
			}
		}
	}
	return []string{id, id}
}

// rotate makes a closed path start at its earliest inserted vertex.
func (g *Graph) rotate(cycle []string) []string {
	open := cycle[:len(cycle)-1]
	first := 0
	for i, v := range open {
		if g.index[v] < g.index[open[first]] {
			first = i
		}
	}
	out := append(slices.Clone(open[first:]), open[:first]...)
	return append(out, out[0])
}

// indexHeap is a min-heap of ids keyed by insertion index.
type indexHeap struct {
	ids   []string
	index map[string]int
}

func (h *indexHeap) Len() int           { return len(h.ids) }
func (h *indexHeap) Less(i, j int) bool { return h.index[h.ids[i]] < h.index[h.ids[j]] }
func (h *indexHeap) Swap(i, j int)      { h.ids[i], h.ids[j] = h.ids[j], h.ids[i] }
func (h *indexHeap) Push(x any)         { h.ids = append(h.ids, x.(string)) }
func (h *indexHeap) Pop() any {
	last := h.ids[len(h.ids)-1]
	h.ids = h.ids[:len(h.ids)-1]
	return last
}
