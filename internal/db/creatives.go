package db

import (
	"context"
	"fmt"

	"github.com/apache/cassandra-gocql-driver/v2"

	"github.com/adobservatory/adharvest/internal/models"
)

const insertCreativeCQL = `
INSERT INTO ad_creatives (
	archive_id, text_sha256, image_sha256, video_sha256,
	body_text, body_language,
	link_url, link_caption, link_title, link_description, link_button_text,
	text_sim_hash,
	image_downloaded_url, image_sim_hash, image_bucket_path,
	video_downloaded_url, video_bucket_path
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const insertSnapshotMetadataCQL = `
INSERT INTO ad_snapshot_metadata (archive_id, fetch_time, fetch_status)
VALUES (?, ?, ?)`

// CommitChunk upserts one chunk's creative records and snapshot metadata in
// a single logged batch, so creative rows and the metadata row for the same
// archive id commit together.
func (db *DB) CommitChunk(ctx context.Context,
	creatives []models.CreativeRecord, metadata []models.SnapshotMetadataRecord) error {

	batch := db.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)

	for _, r := range creatives {
		batch.Query(insertCreativeCQL,
			r.ArchiveID, r.TextSHA256, r.ImageSHA256, r.VideoSHA256,
			r.BodyText, r.BodyLanguage,
			r.LinkURL, r.LinkCaption, r.LinkTitle, r.LinkDescription, r.LinkButtonText,
			r.TextSimHash,
			r.ImageDownloadedURL, r.ImageSimHash, r.ImageBucketPath,
			r.VideoDownloadedURL, r.VideoBucketPath,
		)
	}
	for _, m := range metadata {
		batch.Query(insertSnapshotMetadataCQL,
			m.ArchiveID, m.FetchTime.UTC(), int(m.FetchStatus))
	}

	if err := db.session.ExecuteBatch(batch); err != nil {
		return fmt.Errorf("commit chunk (%d creatives, %d metadata): %w",
			len(creatives), len(metadata), err)
	}
	return nil
}

// UpsertCreativeRecords writes creative rows outside a chunk commit. The
// primary key is the four-tuple unique constraint, so re-processing the
// same creatives is idempotent.
func (db *DB) UpsertCreativeRecords(ctx context.Context, records []models.CreativeRecord) error {
	for _, r := range records {
		if err := db.session.Query(insertCreativeCQL,
			r.ArchiveID, r.TextSHA256, r.ImageSHA256, r.VideoSHA256,
			r.BodyText, r.BodyLanguage,
			r.LinkURL, r.LinkCaption, r.LinkTitle, r.LinkDescription, r.LinkButtonText,
			r.TextSimHash,
			r.ImageDownloadedURL, r.ImageSimHash, r.ImageBucketPath,
			r.VideoDownloadedURL, r.VideoBucketPath,
		).WithContext(ctx).Exec(); err != nil {
			return fmt.Errorf("upsert creative for archive id %d: %w", r.ArchiveID, err)
		}
	}
	return nil
}

// UpsertSnapshotMetadata writes one metadata row per archive id.
func (db *DB) UpsertSnapshotMetadata(ctx context.Context, records []models.SnapshotMetadataRecord) error {
	for _, m := range records {
		if err := db.session.Query(insertSnapshotMetadataCQL,
			m.ArchiveID, m.FetchTime.UTC(), int(m.FetchStatus),
		).WithContext(ctx).Exec(); err != nil {
			return fmt.Errorf("upsert snapshot metadata for archive id %d: %w", m.ArchiveID, err)
		}
	}
	return nil
}
