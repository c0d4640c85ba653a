package cluster

import "github.com/adobservatory/adharvest/internal/fingerprint"

// simhashBands splits 64-bit keys into k+1 = 4 bands of 16 bits. Two hashes
// within Hamming distance 3 must agree exactly on at least one band, so
// probing each band's table finds every candidate.
const (
	simhashBands    = 4
	simhashBandBits = 64 / simhashBands
)

type indexEntry struct {
	archiveID int64
	hash      uint64
}

// SimHashIndex answers "all indexed keys within Hamming distance k" for
// 64-bit text fingerprints.
type SimHashIndex struct {
	k     int
	bands [simhashBands]map[uint16][]indexEntry
}

// NewSimHashIndex builds an empty index for the given distance threshold.
func NewSimHashIndex(k int) *SimHashIndex {
	idx := &SimHashIndex{k: k}
	for i := range idx.bands {
		idx.bands[i] = make(map[uint16][]indexEntry)
	}
	return idx
}

func band(hash uint64, i int) uint16 {
	return uint16(hash >> (uint(i) * simhashBandBits))
}

// Add indexes a fingerprint with its representative archive id.
func (idx *SimHashIndex) Add(archiveID int64, hash uint64) {
	e := indexEntry{archiveID: archiveID, hash: hash}
	for i := 0; i < simhashBands; i++ {
		b := band(hash, i)
		idx.bands[i][b] = append(idx.bands[i][b], e)
	}
}

// Near returns the archive ids of all indexed entries within Hamming
// distance k of hash.
func (idx *SimHashIndex) Near(hash uint64) []int64 {
	seen := make(map[int64]bool)
	var found []int64
	for i := 0; i < simhashBands; i++ {
		for _, e := range idx.bands[i][band(hash, i)] {
			if seen[e.archiveID] {
				continue
			}
			if fingerprint.HammingDistance(hash, e.hash) <= idx.k {
				seen[e.archiveID] = true
				found = append(found, e.archiveID)
			}
		}
	}
	return found
}
