package cluster

import (
	"reflect"
	"testing"
)

func TestUnionFindSingletons(t *testing.T) {
	uf := NewUnionFind()
	uf.Add(1)
	uf.Add(2)
	uf.Add(3)

	got := uf.Components()
	want := [][]int64{{1}, {2}, {3}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Components() = %v, want %v", got, want)
	}
}

func TestUnionFindMergesTransitively(t *testing.T) {
	uf := NewUnionFind()
	uf.Union(1, 2)
	uf.Union(2, 3)
	uf.Add(4)

	comps := uf.Components()
	if len(comps) != 2 {
		t.Fatalf("got %d components, want 2", len(comps))
	}
	if len(comps[0]) != 3 {
		t.Errorf("first component = %v, want {1 2 3}", comps[0])
	}
	if !reflect.DeepEqual(comps[1], []int64{4}) {
		t.Errorf("second component = %v, want {4}", comps[1])
	}
}

func TestUnionFindIdempotent(t *testing.T) {
	build := func() *UnionFind {
		uf := NewUnionFind()
		uf.Union(10, 20)
		uf.Union(20, 30)
		uf.Union(40, 50)
		uf.Add(60)
		return uf
	}

	a := build().Components()
	b := build().Components()
	if !reflect.DeepEqual(a, b) {
		t.Errorf("repeat runs differ: %v vs %v", a, b)
	}

	// Re-unioning already-joined elements must not change the partition.
	uf := build()
	before := uf.Components()
	uf.Union(10, 30)
	uf.Union(30, 10)
	if !reflect.DeepEqual(uf.Components(), before) {
		t.Error("redundant unions changed the partition")
	}
}

func TestUnionFindFindAddsUnseen(t *testing.T) {
	uf := NewUnionFind()
	if root := uf.Find(7); root != 7 {
		t.Errorf("Find(7) = %d, want 7", root)
	}
	if uf.Len() != 1 {
		t.Errorf("Len() = %d, want 1", uf.Len())
	}
}
