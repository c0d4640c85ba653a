package cluster

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/adobservatory/adharvest/internal/fingerprint"
)

func TestBKTreeEmpty(t *testing.T) {
	tree := NewBKTree()
	if got := tree.Near(42, 3); got != nil {
		t.Errorf("Near on empty tree = %v, want nil", got)
	}
}

func TestBKTreeFindsWithinRadius(t *testing.T) {
	tree := NewBKTree()
	tree.Add(1, 0x0000)
	tree.Add(2, 0x0001) // distance 1 from 0x0000
	tree.Add(3, 0x0007) // distance 3 from 0x0000
	tree.Add(4, 0xffff) // far away

	got := tree.Near(0x0000, 3)
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	want := []int64{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("Near = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Near = %v, want %v", got, want)
		}
	}
}

func TestBKTreeSelfOnly(t *testing.T) {
	tree := NewBKTree()
	tree.Add(1, 0x0000)
	tree.Add(2, 0xffffffffffffffff)

	got := tree.Near(0x0000, 3)
	if len(got) != 1 || got[0] != 1 {
		t.Errorf("Near = %v, want just the probe's entry", got)
	}
}

func TestBKTreeMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	type entry struct {
		id   int64
		hash uint64
	}
	var entries []entry
	tree := NewBKTree()
	for i := 0; i < 500; i++ {
		e := entry{id: int64(i), hash: rng.Uint64()}
		entries = append(entries, e)
		tree.Add(e.id, e.hash)
	}

	for trial := 0; trial < 20; trial++ {
		probe := entries[rng.Intn(len(entries))].hash
		// Flip up to three bits so some probes land near entries.
		for b := 0; b < rng.Intn(4); b++ {
			probe ^= 1 << uint(rng.Intn(64))
		}

		want := map[int64]bool{}
		for _, e := range entries {
			if fingerprint.HammingDistance(probe, e.hash) <= 3 {
				want[e.id] = true
			}
		}

		got := tree.Near(probe, 3)
		if len(got) != len(want) {
			t.Fatalf("trial %d: got %d results, want %d", trial, len(got), len(want))
		}
		for _, id := range got {
			if !want[id] {
				t.Fatalf("trial %d: unexpected id %d", trial, id)
			}
		}
	}
}
