package graph

// dominatorResult holds the Lengauer-Tarjan output, indexed by the same
// compact node indices Finish assigns (0 = synthetic super root).
type dominatorResult struct {
	// idom[v] is the compact index of v's immediate dominator, 0 for
	// nodes rooted directly under the super root, or -1 if v was never
	// reached from the super root (garbage).
	idom []int
}

// lengauerTarjan computes immediate dominators for every node reachable
// from node 0 using the standard Lengauer-Tarjan algorithm: "A Fast
// Algorithm for Finding Dominators in a Flowgraph" (Lengauer, Tarjan,
// 1979). This is the non-hierarchical, non-parallel variant — it walks
// the graph with plain recursion-free DFS and path compression, without
// the teacher's index pre-sizing or worker-pool edge construction, since
// the graph here is already built before this pass runs.
func lengauerTarjan(successors, predecessors [][]int, total int) *dominatorResult {
	parent := make([]int, total)
	semi := make([]int, total)
	idom := make([]int, total)
	ancestor := make([]int, total)
	label := make([]int, total)
	bucket := make([][]int, total)
	dfn := make([]int, total)
	vertex := make([]int, total)

	for i := 0; i < total; i++ {
		semi[i] = -1
		ancestor[i] = -1
		label[i] = i
		idom[i] = -1
		dfn[i] = -1
	}

	n := 0
	type frame struct {
		v, i int
	}
	stack := []frame{{v: 0, i: 0}}
	dfn[0] = 0
	vertex[0] = 0
	semi[0] = 0
	n = 0
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		v := top.v
		advanced := false
		for top.i < len(successors[v]) {
			w := successors[v][top.i]
			top.i++
			if dfn[w] == -1 {
				parent[w] = v
				n++
				dfn[w] = n
				vertex[n] = w
				semi[w] = n
				stack = append(stack, frame{v: w, i: 0})
				advanced = true
				break
			}
		}
		if !advanced {
			stack = stack[:len(stack)-1]
		}
	}

	link := func(v, w int) { ancestor[w] = v }

	var eval func(v int) int
	eval = func(v int) int {
		if ancestor[v] == -1 {
			return v
		}
		compress(v, ancestor, label, semi)
		return label[v]
	}

	for i := n; i >= 1; i-- {
		w := vertex[i]
		for _, v := range predecessors[w] {
			if dfn[v] == -1 {
				continue
			}
			var u int
			if dfn[v] <= dfn[w] {
				u = v
			} else {
				u = eval(v)
			}
			if semi[u] < semi[w] {
				semi[w] = semi[u]
			}
		}
		semiNode := vertex[semi[w]]
		bucket[semiNode] = append(bucket[semiNode], w)
		link(parent[w], w)

		for _, v := range bucket[parent[w]] {
			u := eval(v)
			if semi[u] < semi[v] {
				idom[v] = u
			} else {
				idom[v] = parent[w]
			}
		}
		bucket[parent[w]] = nil
	}

	for i := 1; i <= n; i++ {
		w := vertex[i]
		if idom[w] != vertex[semi[w]] {
			idom[w] = idom[idom[w]]
		}
	}
	idom[0] = -1

	for i := 0; i < total; i++ {
		if dfn[i] == -1 && i != 0 {
			idom[i] = -1
		}
	}

	return &dominatorResult{idom: idom}
}

// compress performs iterative path compression for eval: after it
// returns, label[v] is the node with minimum semidominator on the path
// from v to the root of its ancestor tree.
func compress(v int, ancestor, label, semi []int) {
	path := make([]int, 0, 8)
	cur := v
	for ancestor[cur] != -1 && ancestor[ancestor[cur]] != -1 {
		path = append(path, cur)
		cur = ancestor[cur]
	}
	for i := len(path) - 1; i >= 0; i-- {
		node := path[i]
		anc := ancestor[node]
		if semi[label[anc]] < semi[label[node]] {
			label[node] = label[anc]
		}
		ancestor[node] = ancestor[anc]
	}
}
