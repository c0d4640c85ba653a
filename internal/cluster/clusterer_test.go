package cluster

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"testing"

	"github.com/adobservatory/adharvest/internal/models"
)

type fakeStore struct {
	textHashes  map[uint64][]int64
	imageHashes map[uint64][]int64
	readErr     error

	textWritten  []models.ClusterAssignment
	imageWritten []models.ClusterAssignment

	existingText  map[int64]int64
	existingImage map[int64]int64
}

func (f *fakeStore) AllTextSimHashes(ctx context.Context) (map[uint64][]int64, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.textHashes, nil
}

func (f *fakeStore) AllImageSimHashes(ctx context.Context) (map[uint64][]int64, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.imageHashes, nil
}

func (f *fakeStore) UpsertTextClusterAssignments(ctx context.Context, records []models.ClusterAssignment) error {
	f.textWritten = append([]models.ClusterAssignment(nil), records...)
	return nil
}

func (f *fakeStore) UpsertImageClusterAssignments(ctx context.Context, records []models.ClusterAssignment) error {
	f.imageWritten = append([]models.ClusterAssignment(nil), records...)
	return nil
}

func (f *fakeStore) ExistingTextClusterOf(ctx context.Context, archiveID int64) (int64, bool, error) {
	id, ok := f.existingText[archiveID]
	return id, ok, nil
}

func (f *fakeStore) ExistingImageClusterOf(ctx context.Context, archiveID int64) (int64, bool, error) {
	id, ok := f.existingImage[archiveID]
	return id, ok, nil
}

// partition converts assignments to a set-of-sets form that ignores
// cluster numbering.
func partition(assignments []models.ClusterAssignment) [][]int64 {
	byCluster := map[int64][]int64{}
	for _, a := range assignments {
		byCluster[a.ClusterID] = append(byCluster[a.ClusterID], a.ArchiveID)
	}
	var out [][]int64
	for _, members := range byCluster {
		sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
		out = append(out, members)
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

func TestClusterTransitivity(t *testing.T) {
	// A=0x0000, B=0x0001 (distance 1 from A), C=0x0007 (distance 2 from B,
	// 3 from A), D=0xffff (far): expect {A,B,C} and {D}.
	store := &fakeStore{
		textHashes: map[uint64][]int64{
			0x0000: {100},
			0x0001: {101},
			0x0007: {102},
			0xffff: {103},
		},
		imageHashes: map[uint64][]int64{},
	}

	text, _, err := NewClusterer(store).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := partition(text)
	want := [][]int64{{100, 101, 102}, {103}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("partition = %v, want %v", got, want)
	}
	if !reflect.DeepEqual(partition(store.textWritten), want) {
		t.Errorf("written partition = %v, want %v", partition(store.textWritten), want)
	}
}

func TestSharedFingerprintClustersWithoutIndex(t *testing.T) {
	// Archive ids sharing one fingerprint cluster together even when no
	// near neighbor exists.
	store := &fakeStore{
		textHashes:  map[uint64][]int64{},
		imageHashes: map[uint64][]int64{0xdeadbeef: {7, 8, 9}},
	}

	_, image, err := NewClusterer(store).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := partition(image)
	want := [][]int64{{7, 8, 9}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("partition = %v, want %v", got, want)
	}
}

func TestImagePassUsesHammingRadius(t *testing.T) {
	store := &fakeStore{
		textHashes: map[uint64][]int64{},
		imageHashes: map[uint64][]int64{
			0x00: {1},
			0x03: {2}, // distance 2
			0xf0: {3}, // distance 4 from both
		},
	}

	_, image, err := NewClusterer(store).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := partition(image)
	want := [][]int64{{1, 2}, {3}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("partition = %v, want %v", got, want)
	}
}

func TestRerunYieldsSamePartition(t *testing.T) {
	hashes := map[uint64][]int64{
		0x0000: {1, 2},
		0x0001: {3},
		0xff00: {4},
		0xff01: {5},
	}
	run := func() [][]int64 {
		store := &fakeStore{textHashes: hashes, imageHashes: map[uint64][]int64{}}
		text, _, err := NewClusterer(store).Run(context.Background())
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		return partition(text)
	}

	first := run()
	for i := 0; i < 5; i++ {
		if got := run(); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d partition %v differs from %v", i, got, first)
		}
	}
}

func TestReadErrorAbortsBeforeWrite(t *testing.T) {
	store := &fakeStore{readErr: errors.New("connection reset")}

	_, _, err := NewClusterer(store).Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if store.textWritten != nil || store.imageWritten != nil {
		t.Error("assignments written despite read failure")
	}
}

func TestStableIDsReuseExistingClusters(t *testing.T) {
	store := &fakeStore{
		textHashes: map[uint64][]int64{
			0x0000: {10, 11}, // existing cluster 42 via id 10
			0xff00: {20},     // unseen, gets a fresh id
		},
		imageHashes:  map[uint64][]int64{},
		existingText: map[int64]int64{10: 42},
	}

	c := NewClusterer(store)
	c.StableIDs = true
	text, _, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	byID := map[int64]int64{}
	for _, a := range text {
		byID[a.ArchiveID] = a.ClusterID
	}
	if byID[10] != 42 || byID[11] != 42 {
		t.Errorf("component with existing member kept id %d/%d, want 42/42", byID[10], byID[11])
	}
	if byID[20] == 42 {
		t.Error("fresh component reused an existing cluster id")
	}
	if byID[20] <= 42 {
		t.Errorf("fresh id %d not allocated past the maximum seen", byID[20])
	}
}
