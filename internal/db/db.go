// Package db implements the relational store the pipeline and clusterer
// share: batch leasing, creative and snapshot-metadata upserts, fingerprint
// reads, and cluster assignment writes.
package db

import (
	"errors"
	"fmt"
	"time"

	"github.com/apache/cassandra-gocql-driver/v2"
	"github.com/google/uuid"

	"github.com/adobservatory/adharvest/internal/config"
)

// DB wraps the Cassandra session. One worker process holds one DB; the
// session pools connections per query internally.
type DB struct {
	session *gocql.Session
	config  config.DatabaseConfig

	// workerID guards batch leases: a batch leased by this worker can only
	// be released or completed by it.
	workerID gocql.UUID
}

// New creates a new database connection.
func New(cfg config.DatabaseConfig) (*DB, error) {
	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Keyspace = cfg.Keyspace
	cluster.Consistency = parseConsistency(cfg.Consistency)
	cluster.Timeout = 10 * time.Second
	cluster.ConnectTimeout = 10 * time.Second

	if cfg.LocalDC != "" {
		cluster.PoolConfig.HostSelectionPolicy = gocql.DCAwareRoundRobinPolicy(cfg.LocalDC)
	}

	if cfg.Username != "" && cfg.Password != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("connect to Cassandra: %w", err)
	}

	return &DB{
		session:  session,
		config:   cfg,
		workerID: gocql.UUID(uuid.New()),
	}, nil
}

// Close closes the database connection.
func (db *DB) Close() {
	if db.session != nil {
		db.session.Close()
	}
}

// WorkerID returns this process's lease owner id.
func (db *DB) WorkerID() string {
	return db.workerID.String()
}

// Migrate runs database migrations.
func (db *DB) Migrate() error {
	migrations := []string{
		migrationCreateFetchBatches,
		migrationCreateFetchBatchesStatusIndex,
		migrationCreateAdCreatives,
		migrationCreateAdSnapshotMetadata,
		migrationCreateAdTextClusters,
		migrationCreateAdImageClusters,
	}

	for _, migration := range migrations {
		if err := db.session.Query(migration).Exec(); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

func isNotFoundErr(err error) bool {
	return errors.Is(err, gocql.ErrNotFound)
}

// parseConsistency converts string to gocql.Consistency.
func parseConsistency(s string) gocql.Consistency {
	switch s {
	case "ONE":
		return gocql.One
	case "QUORUM":
		return gocql.Quorum
	case "LOCAL_QUORUM":
		return gocql.LocalQuorum
	case "EACH_QUORUM":
		return gocql.EachQuorum
	case "ALL":
		return gocql.All
	default:
		return gocql.LocalQuorum
	}
}

// Migration statements

// Batches move available -> leased -> completed, or back to available when
// released. Transitions are guarded by lightweight transactions.
const migrationCreateFetchBatches = `
CREATE TABLE IF NOT EXISTS fetch_batches (
	batch_id BIGINT PRIMARY KEY,
	archive_ids LIST<BIGINT>,
	status TEXT,
	leased_by UUID,
	leased_at TIMESTAMP,
	completed_at TIMESTAMP
)`

const migrationCreateFetchBatchesStatusIndex = `
CREATE INDEX IF NOT EXISTS fetch_batches_status_idx ON fetch_batches (status)`

// Empty-string clustering columns stand in for absent hashes; Cassandra
// clustering keys cannot be null.
const migrationCreateAdCreatives = `
CREATE TABLE IF NOT EXISTS ad_creatives (
	archive_id BIGINT,
	text_sha256 TEXT,
	image_sha256 TEXT,
	video_sha256 TEXT,
	body_text TEXT,
	body_language TEXT,
	link_url TEXT,
	link_caption TEXT,
	link_title TEXT,
	link_description TEXT,
	link_button_text TEXT,
	text_sim_hash TEXT,
	image_downloaded_url TEXT,
	image_sim_hash TEXT,
	image_bucket_path TEXT,
	video_downloaded_url TEXT,
	video_bucket_path TEXT,
	PRIMARY KEY ((archive_id), text_sha256, image_sha256, video_sha256)
)`

const migrationCreateAdSnapshotMetadata = `
CREATE TABLE IF NOT EXISTS ad_snapshot_metadata (
	archive_id BIGINT PRIMARY KEY,
	fetch_time TIMESTAMP,
	fetch_status INT
)`

const migrationCreateAdTextClusters = `
CREATE TABLE IF NOT EXISTS ad_text_clusters (
	archive_id BIGINT PRIMARY KEY,
	cluster_id BIGINT
)`

const migrationCreateAdImageClusters = `
CREATE TABLE IF NOT EXISTS ad_image_clusters (
	archive_id BIGINT PRIMARY KEY,
	cluster_id BIGINT
)`
