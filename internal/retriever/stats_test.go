package retriever

import (
	"testing"
	"time"
)

func TestSecondsPerCreativeUsesCreativeCount(t *testing.T) {
	s := NewStats()
	s.startUnixNano.Store(time.Now().Add(-40 * time.Second).UnixNano())
	s.snapshotsProcessed.Store(10)
	s.adCreativesFound.Store(40)

	got := s.Read().SecondsPerCreative
	// 40 seconds over 40 creatives, not over 10 snapshots.
	if got < 0.9 || got > 1.1 {
		t.Errorf("seconds per creative = %.2f, want about 1.0", got)
	}
}

func TestSecondsPerCreativeGuardsZeroCreatives(t *testing.T) {
	s := NewStats()
	s.startUnixNano.Store(time.Now().Add(-5 * time.Second).UnixNano())
	s.snapshotsProcessed.Store(3)

	got := s.Read().SecondsPerCreative
	if got < 4.5 || got > 5.5 {
		t.Errorf("seconds per creative with no creatives = %.2f, want the raw elapsed seconds", got)
	}
}
