package resolver

import "sort"

// Graph maps an absolute file path to the absolute paths it imports
// locally. A path appears as a key at most once and edge lists hold no
// duplicates.
type Graph map[string][]string

// AddNode ensures path is a key.
func (g Graph) AddNode(path string) {
	if _, ok := g[path]; !ok {
		g[path] = nil
	}
}

// AddEdge records from -> to, ignoring duplicates.
func (g Graph) AddEdge(from, to string) {
	g.AddNode(from)
	for _, existing := range g[from] {
		if existing == to {
			return
		}
	}
	g[from] = append(g[from], to)
}

// Merge unions other into g.
func (g Graph) Merge(other Graph) {
	for from, edges := range other {
		g.AddNode(from)
		for _, to := range edges {
			g.AddEdge(from, to)
		}
	}
}

// Nodes returns every key and edge target, sorted.
func (g Graph) Nodes() []string {
	seen := make(map[string]bool, len(g))
	for from, edges := range g {
		seen[from] = true
		for _, to := range edges {
			seen[to] = true
		}
	}
	nodes := make([]string, 0, len(seen))
	for n := range seen {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)
	return nodes
}

// TopologicalSort orders the graph leaves first: every file comes after
// the files it depends on. Nodes already on the DFS path are skipped, so a
// cyclic graph still yields each node exactly once. Output is
// deterministic: roots are visited in sorted order and edges in insertion
// order.
func TopologicalSort(g Graph) []string {
	nodes := g.Nodes()
	order := make([]string, 0, len(nodes))
	done := make(map[string]bool, len(nodes))
	visiting := make(map[string]bool)

	var visit func(n string)
	visit = func(n string) {
		if done[n] || visiting[n] {
			return
		}
		visiting[n] = true
		for _, dep := range g[n] {
			visit(dep)
		}
		visiting[n] = false
		done[n] = true
		order = append(order, n)
	}

	for _, n := range nodes {
		visit(n)
	}
	return order
}
