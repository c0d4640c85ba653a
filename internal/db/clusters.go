package db

import (
	"context"
	"fmt"
	"log"

	"github.com/adobservatory/adharvest/internal/fingerprint"
	"github.com/adobservatory/adharvest/internal/models"
)

// AllTextSimHashes reads every stored text fingerprint and returns
// sim_hash -> archive ids that share it.
func (db *DB) AllTextSimHashes(ctx context.Context) (map[uint64][]int64, error) {
	return db.allSimHashes(ctx,
		`SELECT archive_id, text_sim_hash FROM ad_creatives`)
}

// AllImageSimHashes reads every stored image fingerprint and returns
// sim_hash -> archive ids that share it.
func (db *DB) AllImageSimHashes(ctx context.Context) (map[uint64][]int64, error) {
	return db.allSimHashes(ctx,
		`SELECT archive_id, image_sim_hash FROM ad_creatives`)
}

func (db *DB) allSimHashes(ctx context.Context, cql string) (map[uint64][]int64, error) {
	iter := db.session.Query(cql).WithContext(ctx).Iter()

	out := make(map[uint64][]int64)
	seen := make(map[uint64]map[int64]bool)
	var archiveID int64
	var hashHex string
	for iter.Scan(&archiveID, &hashHex) {
		if hashHex == "" {
			continue
		}
		h, err := fingerprint.ParseHex64(hashHex)
		if err != nil {
			// One malformed historic row must not abort a clustering run.
			log.Printf("Skipping unparseable fingerprint %q for archive id %d: %v",
				hashHex, archiveID, err)
			continue
		}
		if seen[h] == nil {
			seen[h] = make(map[int64]bool)
		}
		if seen[h][archiveID] {
			continue
		}
		seen[h][archiveID] = true
		out[h] = append(out[h], archiveID)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("read fingerprints: %w", err)
	}
	return out, nil
}

// UpsertTextClusterAssignments overwrites text cluster ids wholesale.
func (db *DB) UpsertTextClusterAssignments(ctx context.Context, records []models.ClusterAssignment) error {
	return db.upsertClusterAssignments(ctx, "ad_text_clusters", records)
}

// UpsertImageClusterAssignments overwrites image cluster ids wholesale.
func (db *DB) UpsertImageClusterAssignments(ctx context.Context, records []models.ClusterAssignment) error {
	return db.upsertClusterAssignments(ctx, "ad_image_clusters", records)
}

func (db *DB) upsertClusterAssignments(ctx context.Context, table string, records []models.ClusterAssignment) error {
	cql := fmt.Sprintf(`INSERT INTO %s (archive_id, cluster_id) VALUES (?, ?)`, table)
	for _, r := range records {
		if err := db.session.Query(cql, r.ArchiveID, r.ClusterID).WithContext(ctx).Exec(); err != nil {
			return fmt.Errorf("upsert cluster assignment %d -> %d in %s: %w",
				r.ArchiveID, r.ClusterID, table, err)
		}
	}
	return nil
}

// ExistingTextClusterOf returns the stored text cluster id for an archive
// id, or (0, false) when none exists. Used by the optional stable
// renumbering path.
func (db *DB) ExistingTextClusterOf(ctx context.Context, archiveID int64) (int64, bool, error) {
	return db.existingClusterOf(ctx, "ad_text_clusters", archiveID)
}

// ExistingImageClusterOf is the image counterpart of ExistingTextClusterOf.
func (db *DB) ExistingImageClusterOf(ctx context.Context, archiveID int64) (int64, bool, error) {
	return db.existingClusterOf(ctx, "ad_image_clusters", archiveID)
}

func (db *DB) existingClusterOf(ctx context.Context, table string, archiveID int64) (int64, bool, error) {
	cql := fmt.Sprintf(`SELECT cluster_id FROM %s WHERE archive_id = ?`, table)
	var clusterID int64
	err := db.session.Query(cql, archiveID).WithContext(ctx).Scan(&clusterID)
	if err != nil {
		if isNotFoundErr(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("read cluster of %d from %s: %w", archiveID, table, err)
	}
	return clusterID, true, nil
}
