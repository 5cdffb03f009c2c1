package hierarchy

// detectCycles returns every cycle reachable through the supertype edges of
// the given adjacency map. Each cycle is reported once, rotated so that it
// starts at its lexically smallest key.
func detectCycles(keys []string, edges map[string][]string) [][]string {
	var cycles [][]string
	visited := make(map[string]bool, len(keys))
	onStack := make(map[string]bool, len(keys))
	seen := make(map[string]bool)

	for _, key := range keys {
		if !visited[key] {
			findCycles(key, edges, visited, onStack, nil, &cycles, seen)
		}
	}
	return cycles
}

func findCycles(curr string, edges map[string][]string, visited, onStack map[string]bool, path []string, cycles *[][]string, seen map[string]bool) {
	visited[curr] = true
	onStack[curr] = true
	path = append(path, curr)

	for _, next := range edges[curr] {
		if onStack[next] {
			cycleStart := -1
			for i, key := range path {
				if key == next {
					cycleStart = i
					break
				}
			}
			if cycleStart == -1 {
				continue
			}
			cycle := canonicalCycle(path[cycleStart:])
			id := cycleID(cycle)
			if !seen[id] {
				seen[id] = true
				*cycles = append(*cycles, cycle)
			}
		} else if !visited[next] {
			findCycles(next, edges, visited, onStack, path, cycles, seen)
		}
	}

	onStack[curr] = false
}

func canonicalCycle(path []string) []string {
	min := 0
	for i := range path {
		if path[i] < path[min] {
			min = i
		}
	}
	out := make([]string, 0, len(path))
	out = append(out, path[min:]...)
	out = append(out, path[:min]...)
	return out
}

func cycleID(cycle []string) string {
	id := ""
	for _, key := range cycle {
		id += key + "\x00"
	}
	return id
}
