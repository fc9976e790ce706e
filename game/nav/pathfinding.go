package nav

// AStar finds the shortest walkable path from `from` to `to` on the grid.
// Returns the path as a slice of cells (excluding the start, including the end).
// Returns nil if no path exists.
func AStar(g *Grid, from, to Cell) []Cell {
	if g == nil || !g.Walkable(to) {
		return nil
	}
	if from == to {
		return []Cell{}
	}

	type node struct {
		c      Cell
		g, f   int
		parent *node
	}

	heuristic := func(a, b Cell) int {
		dx := a.X - b.X
		if dx < 0 {
			dx = -dx
		}
		dz := a.Z - b.Z
		if dz < 0 {
			dz = -dz
		}
		return dx + dz
	}

	// Priority queue.
	var pq []*node
	less := func(i, j int) bool {
		if pq[i].f != pq[j].f {
			return pq[i].f < pq[j].f
		}
		return pq[i].g > pq[j].g
	}
	push := func(n *node) {
		pq = append(pq, n)
		// bubble up
		i := len(pq) - 1
		for i > 0 {
			parent := (i - 1) / 2
			if !less(i, parent) {
				break
			}
			pq[parent], pq[i] = pq[i], pq[parent]
			i = parent
		}
	}
	pop := func() *node {
		n := pq[0]
		last := len(pq) - 1
		pq[0] = pq[last]
		pq = pq[:last]
		// sift down
		i := 0
		for {
			left, right := 2*i+1, 2*i+2
			smallest := i
			if left < len(pq) && less(left, smallest) {
				smallest = left
			}
			if right < len(pq) && less(right, smallest) {
				smallest = right
			}
			if smallest == i {
				break
			}
			pq[i], pq[smallest] = pq[smallest], pq[i]
			i = smallest
		}
		return n
	}

	closed := make(map[Cell]bool)
	gScore := map[Cell]int{from: 0}
	push(&node{c: from, f: heuristic(from, to)})

	dirs := []Cell{{0, 1}, {0, -1}, {1, 0}, {-1, 0}}

	for len(pq) > 0 {
		cur := pop()
		if closed[cur.c] {
			continue
		}
		closed[cur.c] = true

		if cur.c == to {
			var path []Cell
			for n := cur; n.parent != nil; n = n.parent {
				path = append(path, n.c)
			}
			for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
				path[i], path[j] = path[j], path[i]
			}
			return path
		}

		for _, d := range dirs {
			nc := Cell{cur.c.X + d.X, cur.c.Z + d.Z}
			if closed[nc] || !g.Walkable(nc) {
				continue
			}
			ng := cur.g + 1
			if prev, ok := gScore[nc]; !ok || ng < prev {
				gScore[nc] = ng
				push(&node{c: nc, g: ng, f: ng + heuristic(nc, to), parent: cur})
			}
		}
	}

	return nil // no path found
}
