// Package browser owns the lifecycle of the headless-browser context and
// the creative extractor built on top of it. The real driver and extraction
// library live behind the factory seams; this package decides when the pair
// is torn down and rebuilt.
package browser

import (
	"context"
	"fmt"
	"log"
)

// resetAfterSnapshots is the recycle cadence: after this many snapshots the
// browser context is torn down and rebuilt to contain driver leaks.
const resetAfterSnapshots = 2000

// Snapshot is the rendered view of one archive entry.
type Snapshot struct {
	Screenshot []byte
	Creatives  []Creative
}

// Creative is a single rendered ad variant extracted from a snapshot.
type Creative struct {
	Body     string
	Image    *CreativeImage
	VideoURL string
	Link     *LinkAttributes
}

// CreativeImage is a creative's image, already downloaded by the extractor.
type CreativeImage struct {
	URL  string
	Data []byte
}

// LinkAttributes is the outbound link metadata of a creative.
type LinkAttributes struct {
	URL         string
	Caption     string
	Title       string
	Description string
	ButtonText  string
}

// Browser is a live headless-browser context.
type Browser interface {
	Close() error
}

// Extractor retrieves and parses one ad snapshot. Implementations report
// terminal outcomes with the error taxonomy in this package.
type Extractor interface {
	RetrieveAd(ctx context.Context, archiveID int64) (*Snapshot, error)
}

// ContextFactory builds a fresh browser context.
type ContextFactory func(ctx context.Context) (Browser, error)

// ExtractorFactory builds an extractor on top of a browser context.
type ExtractorFactory func(b Browser) (Extractor, error)

// Manager owns the current browser/extractor pair. Not safe for concurrent
// use; the pipeline is the sole owner.
type Manager struct {
	newBrowser   ContextFactory
	newExtractor ExtractorFactory
	resetAfter   int

	browser             Browser
	extractor           Extractor
	processedSinceReset int
}

// NewManager builds a session manager. resetAfter <= 0 selects the default
// cadence of 2000 snapshots.
func NewManager(newBrowser ContextFactory, newExtractor ExtractorFactory, resetAfter int) *Manager {
	if resetAfter <= 0 {
		resetAfter = resetAfterSnapshots
	}
	return &Manager{
		newBrowser:   newBrowser,
		newExtractor: newExtractor,
		resetAfter:   resetAfter,
	}
}

// Acquire returns the current extractor, building the browser/extractor
// pair on first use.
func (m *Manager) Acquire(ctx context.Context) (Extractor, error) {
	if m.extractor != nil {
		return m.extractor, nil
	}
	return m.Recycle(ctx)
}

// Recycle tears down the current pair and builds a fresh one. Used on the
// fixed cadence and after recoverable driver errors.
func (m *Manager) Recycle(ctx context.Context) (Extractor, error) {
	log.Print("Resetting browser context and creative extractor")
	m.teardown()

	b, err := m.newBrowser(ctx)
	if err != nil {
		return nil, fmt.Errorf("create browser context: %w", err)
	}
	e, err := m.newExtractor(b)
	if err != nil {
		if cerr := b.Close(); cerr != nil {
			log.Printf("Closing browser after extractor failure: %v", cerr)
		}
		return nil, fmt.Errorf("create extractor: %w", err)
	}

	m.browser = b
	m.extractor = e
	m.processedSinceReset = 0
	return e, nil
}

// RecordProcessed advances the recycle counter by n snapshots.
func (m *Manager) RecordProcessed(n int) {
	m.processedSinceReset += n
}

// NeedsRecycle reports whether the recycle cadence has been reached.
func (m *Manager) NeedsRecycle() bool {
	return m.processedSinceReset >= m.resetAfter
}

// Close releases the current browser context. Safe to call repeatedly.
func (m *Manager) Close() error {
	var err error
	if m.browser != nil {
		err = m.browser.Close()
	}
	m.browser = nil
	m.extractor = nil
	return err
}

func (m *Manager) teardown() {
	if m.browser != nil {
		if err := m.browser.Close(); err != nil {
			log.Printf("Closing browser context: %v", err)
		}
	}
	m.browser = nil
	m.extractor = nil
}
