package linker

import "sort"

// FindCycleNodes returns the sorted ids of nodes that lie on a cycle or on a
// path between cycles. It returns nil for an acyclic graph.
//
// Nodes are peeled with Kahn's algorithm twice: first every node without
// incoming edges, then every remaining node without outgoing edges. Whatever
// survives both passes cannot be ordered topologically.
func FindCycleNodes(g *Graph) []string {
	alive := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		alive[n.ID] = true
	}
	peel(g, alive, func(e Edge) (string, string) { return e.Source, e.Target })
	peel(g, alive, func(e Edge) (string, string) { return e.Target, e.Source })

	var out []string
	for id, ok := range alive {
		if ok {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// peel repeatedly removes alive nodes with no alive predecessors, where
// dir maps an edge to (from, to).
func peel(g *Graph, alive map[string]bool, dir func(Edge) (string, string)) {
	inDegree := make(map[string]int, len(alive))
	next := make(map[string][]string)
	for id, ok := range alive {
		if ok {
			inDegree[id] = 0
		}
	}
	for _, e := range g.Edges {
		from, to := dir(e)
		if !alive[from] || !alive[to] {
			continue
		}
		next[from] = append(next[from], to)
		inDegree[to]++
	}

	queue := make([]string, 0, len(inDegree))
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		alive[id] = false
		for _, to := range next[id] {
			inDegree[to]--
			if inDegree[to] == 0 {
				queue = append(queue, to)
			}
		}
	}
}
