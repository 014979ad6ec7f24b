package orchestrator

import "sort"

// FindCycles reports the dependency cycles reachable in edges. Each back
// edge found by a depth-first walk yields one cycle, listed from its
// smallest id in edge direction. Duplicate cycles are reported once.
func FindCycles(edges []GraphEdge) [][]ID {
	adj := make(map[ID][]ID)
	for _, e := range edges {
		adj[e.Source] = append(adj[e.Source], e.Target)
	}
	nodes := make([]ID, 0, len(adj))
	for n, next := range adj {
		nodes = append(nodes, n)
		sort.Slice(next, func(i, j int) bool { return next[i] < next[j] })
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })

	const (
		white = iota
		grey
		black
	)
	var (
		color  = make(map[ID]int)
		stack  []ID
		onPos  = make(map[ID]int)
		seen   = make(map[string]bool)
		cycles = [][]ID{}
	)

	var visit func(n ID)
	visit = func(n ID) {
		color[n] = grey
		onPos[n] = len(stack)
		stack = append(stack, n)

		for _, m := range adj[n] {
			switch color[m] {
			case white:
				visit(m)
			case grey:
				c := canonicalCycle(stack[onPos[m]:])
				key := cycleKey(c)
				if !seen[key] {
					seen[key] = true
					cycles = append(cycles, c)
				}
			}
		}

		stack = stack[:len(stack)-1]
		delete(onPos, n)
		color[n] = black
	}

	for _, n := range nodes {
		if color[n] == white {
			visit(n)
		}
	}
	return cycles
}

// canonicalCycle copies path rotated so that it starts at its smallest id.
func canonicalCycle(path []ID) []ID {
	start := 0
	for i, id := range path {
		if id < path[start] {
			start = i
		}
	}
	out := make([]ID, 0, len(path))
	out = append(out, path[start:]...)
	out = append(out, path[:start]...)
	return out
}

func cycleKey(c []ID) string {
	var k string
	for _, id := range c {
		k += string(id) + ">"
	}
	return k
}
