package cluster

import "github.com/adobservatory/adharvest/internal/fingerprint"

// bkEntry is one indexed fingerprint with the archive id representing it.
type bkEntry struct {
	archiveID int64
	hash      uint64
}

// BKTree is a metric tree over 64-bit fingerprints under Hamming distance.
// It answers range queries without comparing against every entry.
type BKTree struct {
	root *bkNode
	size int
}

type bkNode struct {
	entry    bkEntry
	children map[int]*bkNode
}

// NewBKTree returns an empty tree.
func NewBKTree() *BKTree {
	return &BKTree{}
}

// Add inserts a fingerprint with its representative archive id.
func (t *BKTree) Add(archiveID int64, hash uint64) {
	e := bkEntry{archiveID: archiveID, hash: hash}
	t.size++
	if t.root == nil {
		t.root = &bkNode{entry: e}
		return
	}
	node := t.root
	for {
		d := fingerprint.HammingDistance(e.hash, node.entry.hash)
		child, ok := node.children[d]
		if !ok {
			if node.children == nil {
				node.children = make(map[int]*bkNode)
			}
			node.children[d] = &bkNode{entry: e}
			return
		}
		node = child
	}
}

// Near returns the archive ids of all entries within radius of hash.
func (t *BKTree) Near(hash uint64, radius int) []int64 {
	if t.root == nil {
		return nil
	}
	var found []int64
	stack := []*bkNode{t.root}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		d := fingerprint.HammingDistance(hash, node.entry.hash)
		if d <= radius {
			found = append(found, node.entry.archiveID)
		}
		// The triangle inequality restricts matches to children whose
		// edge distance is within radius of d.
		for cd, child := range node.children {
			if cd >= d-radius && cd <= d+radius {
				stack = append(stack, child)
			}
		}
	}
	return found
}

// Len returns the number of indexed entries.
func (t *BKTree) Len() int {
	return t.size
}
