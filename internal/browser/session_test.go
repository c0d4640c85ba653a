package browser

import (
	"context"
	"errors"
	"testing"

	"github.com/adobservatory/adharvest/internal/models"
)

type fakeBrowser struct {
	closed bool
}

func (b *fakeBrowser) Close() error {
	b.closed = true
	return nil
}

type fakeExtractor struct{}

func (fakeExtractor) RetrieveAd(ctx context.Context, archiveID int64) (*Snapshot, error) {
	return &Snapshot{}, nil
}

func newTestManager(resetAfter int) (*Manager, *[]*fakeBrowser) {
	var browsers []*fakeBrowser
	m := NewManager(
		func(ctx context.Context) (Browser, error) {
			b := &fakeBrowser{}
			browsers = append(browsers, b)
			return b, nil
		},
		func(b Browser) (Extractor, error) {
			return fakeExtractor{}, nil
		},
		resetAfter,
	)
	return m, &browsers
}

func TestAcquireBuildsOnce(t *testing.T) {
	m, browsers := newTestManager(10)
	ctx := context.Background()

	e1, err := m.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	e2, err := m.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if e1 == nil || e2 == nil {
		t.Fatal("nil extractor")
	}
	if len(*browsers) != 1 {
		t.Errorf("built %d browsers, want 1", len(*browsers))
	}
}

func TestRecycleClosesOldBrowser(t *testing.T) {
	m, browsers := newTestManager(10)
	ctx := context.Background()

	if _, err := m.Acquire(ctx); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := m.Recycle(ctx); err != nil {
		t.Fatalf("Recycle: %v", err)
	}
	if len(*browsers) != 2 {
		t.Fatalf("built %d browsers, want 2", len(*browsers))
	}
	if !(*browsers)[0].closed {
		t.Error("first browser was not closed on recycle")
	}
	if (*browsers)[1].closed {
		t.Error("second browser must still be open")
	}
}

func TestRecycleCadence(t *testing.T) {
	m, _ := newTestManager(2000)

	m.RecordProcessed(1999)
	if m.NeedsRecycle() {
		t.Error("NeedsRecycle before threshold")
	}
	m.RecordProcessed(1)
	if !m.NeedsRecycle() {
		t.Error("NeedsRecycle not signalled at threshold")
	}

	if _, err := m.Recycle(context.Background()); err != nil {
		t.Fatalf("Recycle: %v", err)
	}
	if m.NeedsRecycle() {
		t.Error("counter not reset after recycle")
	}
}

func TestExtractorFactoryFailureClosesBrowser(t *testing.T) {
	var b *fakeBrowser
	m := NewManager(
		func(ctx context.Context) (Browser, error) {
			b = &fakeBrowser{}
			return b, nil
		},
		func(Browser) (Extractor, error) {
			return nil, errors.New("driver handshake failed")
		},
		0,
	)
	if _, err := m.Acquire(context.Background()); err == nil {
		t.Fatal("expected error from extractor factory")
	}
	if !b.closed {
		t.Error("browser leaked after extractor failure")
	}
}

func TestFetchStatusForError(t *testing.T) {
	cases := []struct {
		err  error
		want models.FetchStatus
	}{
		{ErrNoContentFound, models.FetchStatusNoContentFound},
		{ErrMissingMedia, models.FetchStatusNoContentFound},
		{ErrAgeRestricted, models.FetchStatusAgeRestricted},
		{ErrIPViolation, models.FetchStatusIPViolation},
		{ErrInvalidID, models.FetchStatusInvalidID},
		{ErrWrongArchiveID, models.FetchStatusInvalidID},
		{ErrPermanentlyUnavailable, models.FetchStatusPermanentlyUnavailable},
	}
	for _, c := range cases {
		got, ok := FetchStatusForError(c.err)
		if !ok || got != c.want {
			t.Errorf("FetchStatusForError(%v) = (%v, %v), want (%v, true)", c.err, got, ok, c.want)
		}
	}

	if _, ok := FetchStatusForError(errors.New("boom")); ok {
		t.Error("arbitrary error mapped to a fetch status")
	}
	if _, ok := FetchStatusForError(&DriverError{Err: errors.New("timeout")}); ok {
		t.Error("driver error must not map to a terminal status")
	}
}
