// Package cluster groups archive ids into equivalence classes of
// near-duplicate ad text and imagery.
package cluster

// UnionFind is a disjoint-set over archive ids with union by rank and path
// compression. Components enumerate in first-seen order so repeated runs
// over the same input produce the same numbering.
type UnionFind struct {
	parent map[int64]int64
	rank   map[int64]int
	order  []int64
}

// NewUnionFind returns an empty structure.
func NewUnionFind() *UnionFind {
	return &UnionFind{
		parent: make(map[int64]int64),
		rank:   make(map[int64]int),
	}
}

// Add registers x as a singleton if unseen.
func (u *UnionFind) Add(x int64) {
	if _, ok := u.parent[x]; ok {
		return
	}
	u.parent[x] = x
	u.rank[x] = 0
	u.order = append(u.order, x)
}

// Find returns the representative of x's component, adding x if unseen.
func (u *UnionFind) Find(x int64) int64 {
	u.Add(x)
	root := x
	for u.parent[root] != root {
		root = u.parent[root]
	}
	// Path compression.
	for u.parent[x] != root {
		u.parent[x], x = root, u.parent[x]
	}
	return root
}

// Union merges the components of a and b.
func (u *UnionFind) Union(a, b int64) {
	ra, rb := u.Find(a), u.Find(b)
	if ra == rb {
		return
	}
	if u.rank[ra] < u.rank[rb] {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
	if u.rank[ra] == u.rank[rb] {
		u.rank[ra]++
	}
}

// Components returns every equivalence class. Classes appear in the order
// their first member was added; members keep their own insertion order.
func (u *UnionFind) Components() [][]int64 {
	byRoot := make(map[int64]int)
	var components [][]int64
	for _, x := range u.order {
		root := u.Find(x)
		idx, ok := byRoot[root]
		if !ok {
			idx = len(components)
			byRoot[root] = idx
			components = append(components, nil)
		}
		components[idx] = append(components[idx], x)
	}
	return components
}

// Len returns the number of registered elements.
func (u *UnionFind) Len() int {
	return len(u.order)
}
