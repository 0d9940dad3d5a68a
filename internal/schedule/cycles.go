package schedule

// Cycle is one circular dependency path. The first and last element are the
// same task code and every consecutive pair is connected by an existing edge.
type Cycle struct {
	Path []string
}

// DFS coloring: white = unvisited, gray = on the current recursion stack,
// black = fully explored.
const (
	colorWhite uint8 = iota
	colorGray
	colorBlack
)

// DetectCycles scans the whole graph and returns every cycle found. An empty
// result means the graph is acyclic. Nodes are visited in task-insertion
// order so the report is reproducible given identical input order, and the
// scan keeps going after a cycle is found so disjoint cycles are all
// reported in one pass.
func DetectCycles(g *Graph) []Cycle {
	color := make(map[string]uint8, len(g.order))
	stack := make([]string, 0, len(g.order))
	var cycles []Cycle

	var visit func(code string)
	visit = func(code string) {
		color[code] = colorGray
		stack = append(stack, code)
		for _, edge := range g.succ[code] {
			switch color[edge.To] {
			case colorWhite:
				visit(edge.To)
			case colorGray:
				// The stack slice from the gray node to the current node,
				// closed by this edge, is the cycle.
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i] == edge.To {
						path := append([]string(nil), stack[i:]...)
						path = append(path, edge.To)
						cycles = append(cycles, Cycle{Path: path})
						break
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[code] = colorBlack
	}

	for _, code := range g.order {
		if color[code] == colorWhite {
			visit(code)
		}
	}
	return cycles
}
