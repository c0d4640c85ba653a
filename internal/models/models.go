package models

import "time"

// FetchStatus is the terminal outcome of one snapshot fetch. The integer
// values are part of the external contract and must not be renumbered.
type FetchStatus int

const (
	FetchStatusUnknown                FetchStatus = 0
	FetchStatusSuccess                FetchStatus = 1
	FetchStatusNoContentFound         FetchStatus = 2
	FetchStatusInvalidID              FetchStatus = 3
	FetchStatusAgeRestricted          FetchStatus = 4
	FetchStatusNoCreativesFound       FetchStatus = 5
	FetchStatusIPViolation            FetchStatus = 6
	FetchStatusPermanentlyUnavailable FetchStatus = 7
)

// String returns a human-readable name for logging.
func (s FetchStatus) String() string {
	switch s {
	case FetchStatusUnknown:
		return "unknown"
	case FetchStatusSuccess:
		return "success"
	case FetchStatusNoContentFound:
		return "no_content_found"
	case FetchStatusInvalidID:
		return "invalid_id"
	case FetchStatusAgeRestricted:
		return "age_restricted"
	case FetchStatusNoCreativesFound:
		return "no_creatives_found"
	case FetchStatusIPViolation:
		return "intellectual_property_violation"
	case FetchStatusPermanentlyUnavailable:
		return "permanently_unavailable"
	}
	return "invalid"
}

// CreativeRecord is one extracted ad creative ready for upsert. Optional
// fields are empty strings; the store treats them as distinguishable values
// in the unique constraint tuple.
type CreativeRecord struct {
	ArchiveID          int64
	BodyText           string
	BodyLanguage       string
	LinkURL            string
	LinkCaption        string
	LinkTitle          string
	LinkDescription    string
	LinkButtonText     string
	TextSHA256         string
	TextSimHash        string
	ImageDownloadedURL string
	ImageSHA256        string
	ImageSimHash       string
	ImageBucketPath    string
	VideoDownloadedURL string
	VideoSHA256        string
	VideoBucketPath    string
}

// UniqueKey is the tuple the store enforces uniqueness on. Duplicate keys
// within one chunk are dropped before upsert.
type UniqueKey struct {
	ArchiveID   int64
	TextSHA256  string
	ImageSHA256 string
	VideoSHA256 string
}

// Key returns the unique-constraint tuple for the record.
func (r CreativeRecord) Key() UniqueKey {
	return UniqueKey{
		ArchiveID:   r.ArchiveID,
		TextSHA256:  r.TextSHA256,
		ImageSHA256: r.ImageSHA256,
		VideoSHA256: r.VideoSHA256,
	}
}

// SnapshotMetadataRecord records the outcome of one fetch pass for one
// archive id. Exactly one is emitted per archive id processed.
type SnapshotMetadataRecord struct {
	ArchiveID   int64
	FetchTime   time.Time
	FetchStatus FetchStatus
}

// Batch is a leased unit of work.
type Batch struct {
	BatchID    int64
	ArchiveIDs []int64
}

// ClusterAssignment maps an archive id to its cluster for one modality.
type ClusterAssignment struct {
	ArchiveID int64
	ClusterID int64
}
