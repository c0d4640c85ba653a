// Package retriever drives the creative retrieval pipeline: it leases
// batches of archive IDs, renders each snapshot through the browser
// session manager, fingerprints and uploads the media, and commits the
// results chunk by chunk.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/abadojack/whatlanggo"

	"github.com/adobservatory/adharvest/internal/browser"
	"github.com/adobservatory/adharvest/internal/fingerprint"
	"github.com/adobservatory/adharvest/internal/models"
	"github.com/adobservatory/adharvest/internal/notify"
	"github.com/adobservatory/adharvest/internal/storage"
)

const (
	// noWorkSleep is how long the worker idles when no batch is available.
	noWorkSleep = time.Hour

	// rateLimitSleep is the default pause after the archive throttles this
	// worker, used when the error carries no suggested wait.
	rateLimitSleep = 4 * time.Hour

	// videoFetchTimeout bounds a single video download request.
	videoFetchTimeout = 30 * time.Second
)

// Store is the batch and creative persistence the pipeline writes to.
type Store interface {
	LeaseBatch(ctx context.Context) (*models.Batch, error)
	ReleaseBatch(ctx context.Context, batchID int64) error
	CompleteBatch(ctx context.Context, batchID int64) error
	CommitChunk(ctx context.Context, creatives []models.CreativeRecord, metadata []models.SnapshotMetadataRecord) error
}

// Uploader stores one blob under a key, skipping the write if the key
// already exists.
type Uploader interface {
	UploadIfAbsent(ctx context.Context, key string, data []byte) (string, error)
}

// Notifier delivers operator alerts.
type Notifier interface {
	Notify(ctx context.Context, msg string) error
}

// Params wires a Retriever's collaborators.
type Params struct {
	Store       Store
	Images      Uploader
	Videos      Uploader
	Screenshots Uploader
	Sessions    *browser.Manager
	Notifier    Notifier

	WorkerID             string
	ChunkSize            int
	MaxVideoDownloadSize int64
}

// Retriever is the single-owner pipeline loop. Run is not safe for
// concurrent use; stats may be read concurrently.
type Retriever struct {
	store       Store
	images      Uploader
	videos      Uploader
	screenshots Uploader
	sessions    *browser.Manager
	notifier    Notifier

	workerID     string
	chunkSize    int
	maxVideoSize int64

	httpClient *http.Client
	stats      *Stats
	sleep      func(ctx context.Context, d time.Duration) error
}

// New builds a Retriever from its collaborators.
func New(p Params) *Retriever {
	return &Retriever{
		store:        p.Store,
		images:       p.Images,
		videos:       p.Videos,
		screenshots:  p.Screenshots,
		sessions:     p.Sessions,
		notifier:     p.Notifier,
		workerID:     p.WorkerID,
		chunkSize:    p.ChunkSize,
		maxVideoSize: p.MaxVideoDownloadSize,
		httpClient:   &http.Client{Timeout: videoFetchTimeout},
		stats:        NewStats(),
		sleep:        sleepCtx,
	}
}

// Stats exposes the pipeline's counters.
func (r *Retriever) Stats() *Stats {
	return r.stats
}

// Run leases and processes batches until the context is cancelled. A
// cancelled context is a clean shutdown and returns nil; the in-flight
// batch has already been released by then.
func (r *Retriever) Run(ctx context.Context) error {
	log.Printf("Max video download size: %d bytes", r.maxVideoSize)
	if _, err := r.sessions.Acquire(ctx); err != nil {
		return err
	}
	defer func() {
		if err := r.sessions.Close(); err != nil {
			log.Printf("Closing browser session: %v", err)
		}
	}()
	r.stats.ResetClock()

	for {
		if ctx.Err() != nil {
			return nil
		}

		batch, err := r.store.LeaseBatch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("lease batch: %w", err)
		}
		if batch == nil {
			log.Printf("No batches available; sleeping %s", noWorkSleep)
			if err := r.sleep(ctx, noWorkSleep); err != nil {
				return nil
			}
			r.stats.ResetClock()
			continue
		}

		if err := r.processBatch(ctx, batch); err != nil {
			var rle *browser.RateLimitError
			switch {
			case errors.As(err, &rle):
				if err := r.handleRateLimit(ctx, rle); err != nil {
					return nil
				}
			case ctx.Err() != nil:
				return nil
			default:
				return err
			}
		}
	}
}

// processBatch walks the batch in commit-sized chunks. Any error releases
// the batch so another worker can pick it up.
func (r *Retriever) processBatch(ctx context.Context, batch *models.Batch) error {
	r.stats.SetCurrentBatch(batch.BatchID)
	log.Printf("Processing batch %d with %d archive IDs", batch.BatchID, len(batch.ArchiveIDs))

	for start := 0; start < len(batch.ArchiveIDs); start += r.chunkSize {
		end := min(start+r.chunkSize, len(batch.ArchiveIDs))
		if err := r.processChunk(ctx, batch.ArchiveIDs[start:end]); err != nil {
			r.releaseBatch(ctx, batch.BatchID)
			return err
		}
		log.Printf("Committed %d of %d archive IDs in batch %d", end, len(batch.ArchiveIDs), batch.BatchID)
		r.stats.Log()
	}

	r.sessions.RecordProcessed(len(batch.ArchiveIDs))
	if err := r.store.CompleteBatch(ctx, batch.BatchID); err != nil {
		return fmt.Errorf("complete batch %d: %w", batch.BatchID, err)
	}
	if r.sessions.NeedsRecycle() {
		if _, err := r.sessions.Recycle(ctx); err != nil {
			return err
		}
	}
	return nil
}

// processChunk fetches every archive id in the chunk and commits the
// creatives and metadata in one atomic write. Duplicate unique-constraint
// tuples within the chunk are dropped before the write.
func (r *Retriever) processChunk(ctx context.Context, archiveIDs []int64) error {
	seen := make(map[models.UniqueKey]struct{})
	var creatives []models.CreativeRecord
	metadata := make([]models.SnapshotMetadataRecord, 0, len(archiveIDs))

	for _, archiveID := range archiveIDs {
		if err := ctx.Err(); err != nil {
			return err
		}

		snap, meta, err := r.retrieveAd(ctx, archiveID)
		if err != nil {
			return err
		}
		metadata = append(metadata, meta)
		if snap == nil {
			continue
		}

		if len(snap.Screenshot) > 0 {
			key := storage.ScreenshotObjectKey(archiveID)
			if _, err := r.screenshots.UploadIfAbsent(ctx, key, snap.Screenshot); err != nil {
				return fmt.Errorf("upload screenshot for archive id %d: %w", archiveID, err)
			}
		}

		recs, err := r.processCreatives(ctx, archiveID, snap.Creatives, seen)
		if err != nil {
			return err
		}
		creatives = append(creatives, recs...)
	}

	if err := r.store.CommitChunk(ctx, creatives, metadata); err != nil {
		return fmt.Errorf("commit chunk: %w", err)
	}
	return nil
}

// retrieveAd renders one snapshot. A driver error recycles the session and
// retries once; terminal extractor outcomes become the fetch status. The
// returned metadata record is always valid; a non-nil error aborts the
// chunk (rate limiting, second driver failure, unexpected errors).
func (r *Retriever) retrieveAd(ctx context.Context, archiveID int64) (*browser.Snapshot, models.SnapshotMetadataRecord, error) {
	meta := models.SnapshotMetadataRecord{
		ArchiveID:   archiveID,
		FetchTime:   time.Now().UTC(),
		FetchStatus: models.FetchStatusUnknown,
	}

	ext, err := r.sessions.Acquire(ctx)
	if err != nil {
		return nil, meta, err
	}

	snap, err := ext.RetrieveAd(ctx, archiveID)
	if browser.IsDriverError(err) {
		log.Printf("Browser driver error on archive id %d; recycling and retrying once: %v", archiveID, err)
		ext, rerr := r.sessions.Recycle(ctx)
		if rerr != nil {
			return nil, meta, rerr
		}
		meta.FetchTime = time.Now().UTC()
		snap, err = ext.RetrieveAd(ctx, archiveID)
	}

	if err != nil {
		if status, ok := browser.FetchStatusForError(err); ok {
			log.Printf("Archive id %d: %v", archiveID, err)
			meta.FetchStatus = status
			r.stats.snapshotsProcessed.Add(1)
			return nil, meta, nil
		}
		if browser.IsRequestError(err) {
			log.Printf("Archive id %d fetch failed: %v", archiveID, err)
			r.stats.snapshotsFetchFailed.Add(1)
			r.stats.snapshotsProcessed.Add(1)
			return nil, meta, nil
		}
		return nil, meta, err
	}

	if len(snap.Creatives) > 0 {
		meta.FetchStatus = models.FetchStatusSuccess
	} else {
		meta.FetchStatus = models.FetchStatusNoCreativesFound
		r.stats.snapshotsNoCreative.Add(1)
	}
	r.stats.snapshotsProcessed.Add(1)
	return snap, meta, nil
}

// processCreatives fingerprints each creative and uploads its media. A
// creative whose image cannot be decoded is skipped; upload failures abort
// the chunk because the storage layer has already exhausted its retries.
func (r *Retriever) processCreatives(ctx context.Context, archiveID int64, creatives []browser.Creative, seen map[models.UniqueKey]struct{}) ([]models.CreativeRecord, error) {
	var out []models.CreativeRecord
	for _, c := range creatives {
		rec := models.CreativeRecord{ArchiveID: archiveID}

		if c.Image != nil {
			img, err := fingerprintImage(c.Image.Data)
			if err != nil {
				log.Printf("Archive id %d: decoding creative image from %s: %v", archiveID, c.Image.URL, err)
				r.stats.imageDownloadFailure.Add(1)
				continue
			}
			r.stats.imageDownloadSuccess.Add(1)
			rec.ImageSimHash = img.simHash
			rec.ImageSHA256 = img.sha256
			rec.ImageDownloadedURL = c.Image.URL

			key := storage.ImageObjectKey(img.simHash)
			if _, err := r.images.UploadIfAbsent(ctx, key, c.Image.Data); err != nil {
				return nil, fmt.Errorf("upload image for archive id %d: %w", archiveID, err)
			}
			r.stats.imageUploads.Add(1)
			rec.ImageBucketPath = key
		}

		if c.VideoURL != "" {
			video, err := r.downloadVideo(ctx, archiveID, c.VideoURL)
			if err != nil {
				return nil, err
			}
			if video != nil {
				rec.VideoDownloadedURL = c.VideoURL
				rec.VideoSHA256 = video.sha256
				rec.VideoBucketPath = video.bucketPath
			}
		}

		if c.Body != "" {
			rec.BodyText = c.Body
			rec.TextSimHash = fingerprint.FormatSimHash(fingerprint.SimHash(c.Body))
			rec.TextSHA256 = fingerprint.TextSHA256Hex(c.Body)
			rec.BodyLanguage = detectLanguage(c.Body)
		}

		if c.Link != nil {
			rec.LinkURL = c.Link.URL
			rec.LinkCaption = c.Link.Caption
			rec.LinkTitle = c.Link.Title
			rec.LinkDescription = c.Link.Description
			rec.LinkButtonText = c.Link.ButtonText
		}

		key := rec.Key()
		if _, dup := seen[key]; dup {
			log.Printf("Archive id %d: dropping duplicate creative tuple", archiveID)
			continue
		}
		seen[key] = struct{}{}
		out = append(out, rec)
	}

	if len(out) > 0 {
		r.stats.adCreativesFound.Add(int64(len(out)))
	}
	return out, nil
}

// imageFingerprints holds the hashes of one decoded creative image.
type imageFingerprints struct {
	simHash string
	sha256  string
}

func fingerprintImage(data []byte) (imageFingerprints, error) {
	img, err := fingerprint.DecodeImage(data)
	if err != nil {
		return imageFingerprints{}, err
	}
	dhash, err := fingerprint.DHash(img)
	if err != nil {
		return imageFingerprints{}, err
	}
	return imageFingerprints{
		simHash: fingerprint.FormatDHash(dhash),
		sha256:  fingerprint.SHA256Hex(data),
	}, nil
}

// downloadedVideo holds the stored video's hash and bucket path.
type downloadedVideo struct {
	sha256     string
	bucketPath string
}

// downloadVideo fetches a creative's video. A missing or malformed
// Content-Length header refuses the download without counting a failure;
// oversize and transport failures count one. A (nil, nil) return means the
// video was skipped and the record keeps empty video fields.
func (r *Retriever) downloadVideo(ctx context.Context, archiveID int64, videoURL string) (*downloadedVideo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, videoURL, nil)
	if err != nil {
		log.Printf("Archive id %d: building video request for %s: %v", archiveID, videoURL, err)
		r.stats.videoDownloadFailure.Add(1)
		return nil, nil
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Printf("Archive id %d: downloading video %s: %v", archiveID, videoURL, err)
		r.stats.videoDownloadFailure.Add(1)
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		log.Printf("Archive id %d: video %s returned HTTP %d", archiveID, videoURL, resp.StatusCode)
		r.stats.videoDownloadFailure.Add(1)
		return nil, nil
	}

	lengthHeader := resp.Header.Get("Content-Length")
	if lengthHeader == "" {
		log.Printf("Archive id %d: video %s has no Content-Length header; refusing download", archiveID, videoURL)
		return nil, nil
	}
	length, err := strconv.ParseInt(lengthHeader, 10, 64)
	if err != nil {
		log.Printf("Archive id %d: video %s Content-Length %q is not an integer; refusing download", archiveID, videoURL, lengthHeader)
		return nil, nil
	}
	if length > r.maxVideoSize {
		log.Printf("Archive id %d: video %s is %d bytes, over the %d byte limit; skipping", archiveID, videoURL, length, r.maxVideoSize)
		r.stats.videoDownloadFailure.Add(1)
		return nil, nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, r.maxVideoSize+1))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Printf("Archive id %d: reading video %s: %v", archiveID, videoURL, err)
		r.stats.videoDownloadFailure.Add(1)
		return nil, nil
	}
	if int64(len(data)) > r.maxVideoSize {
		log.Printf("Archive id %d: video %s exceeded the %d byte limit despite its header; skipping", archiveID, videoURL, r.maxVideoSize)
		r.stats.videoDownloadFailure.Add(1)
		return nil, nil
	}
	r.stats.videoDownloadSuccess.Add(1)

	sha := fingerprint.SHA256Hex(data)
	key := storage.VideoObjectKey(sha)
	if _, err := r.videos.UploadIfAbsent(ctx, key, data); err != nil {
		return nil, fmt.Errorf("upload video for archive id %d: %w", archiveID, err)
	}
	r.stats.videoUploads.Add(1)

	return &downloadedVideo{sha256: sha, bucketPath: key}, nil
}

// handleRateLimit alerts the operator, then sleeps. The batch was already
// released by processBatch. Returns the context error if shutdown arrives
// during the sleep.
func (r *Retriever) handleRateLimit(ctx context.Context, rle *browser.RateLimitError) error {
	wait := rle.SuggestedWait
	if wait <= 0 {
		wait = rateLimitSleep
	}

	msg := fmt.Sprintf("Ad archive rate limited worker %s on %s; batch released, sleeping %s.",
		r.workerID, notify.HostFQDN(), wait)
	log.Print(msg)
	if err := r.notifier.Notify(ctx, msg); err != nil {
		log.Printf("Sending rate limit alert: %v", err)
	}

	if err := r.sleep(ctx, wait); err != nil {
		return err
	}
	r.stats.ResetClock()
	return nil
}

// releaseBatch frees the lease so another worker can resume the batch.
// Runs even when ctx is already cancelled: shutdown must not strand it.
func (r *Retriever) releaseBatch(ctx context.Context, batchID int64) {
	log.Printf("Releasing batch %d", batchID)
	if err := r.store.ReleaseBatch(context.WithoutCancel(ctx), batchID); err != nil {
		log.Printf("Releasing batch %d: %v", batchID, err)
	}
}

// detectLanguage returns the ISO 639-1 code of the text's language, or
// empty when detection is not confident.
func detectLanguage(text string) string {
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return ""
	}
	return whatlanggo.LangToStringShort(info.Lang)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
