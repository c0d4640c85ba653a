package cluster

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/adobservatory/adharvest/internal/models"
)

// bitDifferenceThreshold is the near-duplicate radius for both modalities.
const bitDifferenceThreshold = 3

// Store is the slice of the relational store the clusterer consumes.
type Store interface {
	AllTextSimHashes(ctx context.Context) (map[uint64][]int64, error)
	AllImageSimHashes(ctx context.Context) (map[uint64][]int64, error)
	UpsertTextClusterAssignments(ctx context.Context, records []models.ClusterAssignment) error
	UpsertImageClusterAssignments(ctx context.Context, records []models.ClusterAssignment) error
	ExistingTextClusterOf(ctx context.Context, archiveID int64) (int64, bool, error)
	ExistingImageClusterOf(ctx context.Context, archiveID int64) (int64, bool, error)
}

// nearIndex is the approximate near-neighbor structure of one modality:
// a banded SimHash index for text, a BK-tree for images.
type nearIndex interface {
	Add(archiveID int64, hash uint64)
	Near(hash uint64) []int64
}

type bkTreeIndex struct {
	tree *BKTree
}

func (b bkTreeIndex) Add(archiveID int64, hash uint64) { b.tree.Add(archiveID, hash) }
func (b bkTreeIndex) Near(hash uint64) []int64 {
	return b.tree.Near(hash, bitDifferenceThreshold)
}

// Clusterer runs the two-modality near-duplicate clustering pass.
type Clusterer struct {
	store Store

	// StableIDs resolves each component's id to the cluster id currently
	// stored for its lowest archive id, keeping numbering stable across
	// runs. Off by default: the partition, not the numbering, is the
	// contract.
	StableIDs bool
}

// NewClusterer builds a clusterer over the store.
func NewClusterer(store Store) *Clusterer {
	return &Clusterer{store: store}
}

// Run clusters both modalities and upserts the assignments, returning the
// text and image assignments written.
func (c *Clusterer) Run(ctx context.Context) ([]models.ClusterAssignment, []models.ClusterAssignment, error) {
	log.Print("Starting text clustering")
	textAssignments, err := c.clusterModality(ctx,
		c.store.AllTextSimHashes, NewSimHashIndex(bitDifferenceThreshold), c.store.ExistingTextClusterOf)
	if err != nil {
		return nil, nil, fmt.Errorf("text clustering: %w", err)
	}
	if err := c.store.UpsertTextClusterAssignments(ctx, textAssignments); err != nil {
		return nil, nil, fmt.Errorf("write text clusters: %w", err)
	}
	log.Printf("Wrote %d text cluster assignments", len(textAssignments))

	log.Print("Starting image clustering")
	imageAssignments, err := c.clusterModality(ctx,
		c.store.AllImageSimHashes, bkTreeIndex{tree: NewBKTree()}, c.store.ExistingImageClusterOf)
	if err != nil {
		return nil, nil, fmt.Errorf("image clustering: %w", err)
	}
	if err := c.store.UpsertImageClusterAssignments(ctx, imageAssignments); err != nil {
		return nil, nil, fmt.Errorf("write image clusters: %w", err)
	}
	log.Printf("Wrote %d image cluster assignments", len(imageAssignments))

	return textAssignments, imageAssignments, nil
}

type existingClusterFn func(ctx context.Context, archiveID int64) (int64, bool, error)

// clusterModality reads one modality's fingerprints, unions exact and near
// duplicates, and numbers the resulting components. Nothing is written
// here; callers only persist after the whole pass succeeds.
func (c *Clusterer) clusterModality(ctx context.Context,
	read func(context.Context) (map[uint64][]int64, error),
	index nearIndex, existing existingClusterFn) ([]models.ClusterAssignment, error) {

	hashToIDs, err := read(ctx)
	if err != nil {
		return nil, fmt.Errorf("read fingerprints: %w", err)
	}
	log.Printf("Have %d distinct fingerprints to process", len(hashToIDs))

	uf := NewUnionFind()
	for hash, ids := range hashToIDs {
		for _, id := range ids {
			uf.Add(id)
		}
		// Archive ids sharing a fingerprint are duplicates outright.
		for _, id := range ids[1:] {
			uf.Union(ids[0], id)
		}
		index.Add(minID(ids), hash)
	}

	for hash := range hashToIDs {
		found := index.Near(hash)
		if len(found) < 2 {
			// Only the probe's own representative matched.
			continue
		}
		for _, id := range found[1:] {
			uf.Union(found[0], id)
		}
	}

	components := uf.Components()
	log.Printf("Got %d clusters", len(components))

	if c.StableIDs {
		return c.stableAssignments(ctx, components, existing)
	}

	var assignments []models.ClusterAssignment
	for clusterID, component := range components {
		for _, archiveID := range component {
			assignments = append(assignments, models.ClusterAssignment{
				ArchiveID: archiveID,
				ClusterID: int64(clusterID),
			})
		}
	}
	return assignments, nil
}

// stableAssignments numbers each component with the cluster id stored for
// its lowest archive id already present in the store, falling back to fresh
// ids past the highest one seen.
func (c *Clusterer) stableAssignments(ctx context.Context,
	components [][]int64, existing existingClusterFn) ([]models.ClusterAssignment, error) {

	type resolved struct {
		component []int64
		clusterID int64
		found     bool
	}

	var maxID int64 = -1
	resolvedComponents := make([]resolved, 0, len(components))
	for _, component := range components {
		sorted := append([]int64(nil), component...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		r := resolved{component: component}
		for _, archiveID := range sorted {
			clusterID, ok, err := existing(ctx, archiveID)
			if err != nil {
				return nil, fmt.Errorf("resolve existing cluster: %w", err)
			}
			if ok {
				r.clusterID, r.found = clusterID, true
				if clusterID > maxID {
					maxID = clusterID
				}
				break
			}
		}
		resolvedComponents = append(resolvedComponents, r)
	}

	next := maxID + 1
	var assignments []models.ClusterAssignment
	for _, r := range resolvedComponents {
		clusterID := r.clusterID
		if !r.found {
			clusterID = next
			next++
		}
		for _, archiveID := range r.component {
			assignments = append(assignments, models.ClusterAssignment{
				ArchiveID: archiveID,
				ClusterID: clusterID,
			})
		}
	}
	return assignments, nil
}

func minID(ids []int64) int64 {
	min := ids[0]
	for _, id := range ids[1:] {
		if id < min {
			min = id
		}
	}
	return min
}
