package retriever

import (
	"log"
	"sync/atomic"
	"time"
)

// Stats tracks pipeline progress counters. All counters are safe for
// concurrent use; the stats HTTP handler reads them while the pipeline
// writes.
type Stats struct {
	snapshotsProcessed   atomic.Int64
	snapshotsFetchFailed atomic.Int64
	adCreativesFound     atomic.Int64
	snapshotsNoCreative  atomic.Int64

	imageDownloadSuccess atomic.Int64
	imageDownloadFailure atomic.Int64
	imageUploads         atomic.Int64

	videoDownloadSuccess atomic.Int64
	videoDownloadFailure atomic.Int64
	videoUploads         atomic.Int64

	currentBatchID atomic.Int64
	startUnixNano  atomic.Int64
}

// NewStats returns a Stats with the rate clock started now.
func NewStats() *Stats {
	s := &Stats{}
	s.ResetClock()
	s.currentBatchID.Store(-1)
	return s
}

// ResetClock restarts the clock used for the seconds-per-creative rate.
// Called at startup and after long idle sleeps so the rate reflects
// active work only.
func (s *Stats) ResetClock() {
	s.startUnixNano.Store(time.Now().UnixNano())
}

// SetCurrentBatch records the batch the pipeline is working on.
func (s *Stats) SetCurrentBatch(batchID int64) {
	s.currentBatchID.Store(batchID)
}

// Snapshot is a point-in-time copy of the counters, serialized by the
// stats endpoint.
type Snapshot struct {
	SnapshotsProcessed   int64   `json:"snapshots_processed"`
	SnapshotsFetchFailed int64   `json:"snapshots_fetch_failed"`
	AdCreativesFound     int64   `json:"ad_creatives_found"`
	SnapshotsNoCreative  int64   `json:"snapshots_without_creative"`
	ImageDownloadSuccess int64   `json:"image_download_success"`
	ImageDownloadFailure int64   `json:"image_download_failure"`
	ImageUploads         int64   `json:"image_uploads"`
	VideoDownloadSuccess int64   `json:"video_download_success"`
	VideoDownloadFailure int64   `json:"video_download_failure"`
	VideoUploads         int64   `json:"video_uploads"`
	CurrentBatchID       int64   `json:"current_batch_id"`
	SecondsPerCreative   float64 `json:"seconds_per_creative"`
}

// Read returns the current counter values.
func (s *Stats) Read() Snapshot {
	snap := Snapshot{
		SnapshotsProcessed:   s.snapshotsProcessed.Load(),
		SnapshotsFetchFailed: s.snapshotsFetchFailed.Load(),
		AdCreativesFound:     s.adCreativesFound.Load(),
		SnapshotsNoCreative:  s.snapshotsNoCreative.Load(),
		ImageDownloadSuccess: s.imageDownloadSuccess.Load(),
		ImageDownloadFailure: s.imageDownloadFailure.Load(),
		ImageUploads:         s.imageUploads.Load(),
		VideoDownloadSuccess: s.videoDownloadSuccess.Load(),
		VideoDownloadFailure: s.videoDownloadFailure.Load(),
		VideoUploads:         s.videoUploads.Load(),
		CurrentBatchID:       s.currentBatchID.Load(),
	}
	elapsed := time.Since(time.Unix(0, s.startUnixNano.Load()))
	denom := snap.AdCreativesFound
	if denom == 0 {
		denom = 1
	}
	snap.SecondsPerCreative = elapsed.Seconds() / float64(denom)
	return snap
}

// Log writes the counters to the process log, one line per counter.
func (s *Stats) Log() {
	snap := s.Read()
	log.Printf("Processed %d archive snapshots.", snap.SnapshotsProcessed)
	log.Printf("Successfully fetched %d images of %d attempts.",
		snap.ImageDownloadSuccess, snap.ImageDownloadSuccess+snap.ImageDownloadFailure)
	log.Printf("Successfully fetched %d videos of %d attempts.",
		snap.VideoDownloadSuccess, snap.VideoDownloadSuccess+snap.VideoDownloadFailure)
	log.Printf("Uploaded %d images and %d videos.", snap.ImageUploads, snap.VideoUploads)
	log.Printf("Snapshots without ad creative data found: %d", snap.SnapshotsNoCreative)
	log.Printf("Snapshot fetch failures: %d", snap.SnapshotsFetchFailed)
	log.Printf("Ad creatives found: %d", snap.AdCreativesFound)
	log.Printf("Average time per ad creative: %.2f seconds.", snap.SecondsPerCreative)
	if snap.CurrentBatchID >= 0 {
		log.Printf("Current batch ID: %d", snap.CurrentBatchID)
	}
}
