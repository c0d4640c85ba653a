// Package storage provides the content-addressed object store the pipeline
// uploads creative media and screenshots to.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/adobservatory/adharvest/internal/config"
)

// objectAPI is the slice of the S3 client the store needs. Tests substitute
// a fake; production uses *s3.Client.
type objectAPI interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Store is an idempotent uploader for one bucket. Safe for concurrent use.
type Store struct {
	api    objectAPI
	bucket string
	retry  config.RetryConfig
}

// NewClient builds the process-wide S3 client from storage configuration.
func NewClient(ctx context.Context, cfg config.StorageConfig) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error

	opts = append(opts, awsconfig.WithRegion(cfg.Region))

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = cfg.UsePathStyle
		})
	}

	return s3.NewFromConfig(awsCfg, s3Opts...), nil
}

// NewStore wraps a client for one bucket with the configured retry schedule.
func NewStore(client *s3.Client, bucket string, retry config.RetryConfig) *Store {
	return &Store{api: client, bucket: bucket, retry: retry}
}

// Bucket returns the bucket name.
func (s *Store) Bucket() string {
	return s.bucket
}

// UploadIfAbsent uploads data at key unless an object already exists there,
// and returns the blob id (bucket-qualified key). Transient failures are
// retried with exponential backoff and jitter.
func (s *Store) UploadIfAbsent(ctx context.Context, key string, data []byte) (string, error) {
	var lastErr error
	for attempt := 0; attempt < s.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(s.backoff(attempt)):
			case <-ctx.Done():
				return "", ctx.Err()
			}
			log.Printf("Retrying upload of %s/%s (attempt %d): %v", s.bucket, key, attempt+1, lastErr)
		}

		id, err := s.uploadOnce(ctx, key, data)
		if err == nil {
			return id, nil
		}
		if ctx.Err() != nil {
			return "", err
		}
		lastErr = err
	}
	return "", fmt.Errorf("upload %s/%s failed after %d attempts: %w",
		s.bucket, key, s.retry.MaxAttempts, lastErr)
}

func (s *Store) uploadOnce(ctx context.Context, key string, data []byte) (string, error) {
	exists, err := s.exists(ctx, key)
	if err != nil {
		return "", err
	}
	if exists {
		log.Printf("Blob %s/%s already exists, skipping upload", s.bucket, key)
		return s.blobID(key), nil
	}

	_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return s.blobID(key), nil
}

func (s *Store) exists(ctx context.Context, key string) (bool, error) {
	_, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("head object: %w", err)
	}
	return true, nil
}

func (s *Store) blobID(key string) string {
	return s.bucket + "/" + key
}

// backoff returns base * 2^(attempt-1) plus random jitter, capped.
func (s *Store) backoff(attempt int) time.Duration {
	d := s.retry.BackoffBase << uint(attempt-1)
	d += time.Duration(rand.Int63n(int64(s.retry.BackoffBase) + 1))
	if d > s.retry.BackoffCap {
		d = s.retry.BackoffCap
	}
	return d
}

func isNotFound(err error) bool {
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	// HeadObject reports 404 without a modeled error type on some
	// S3-compatible backends.
	msg := err.Error()
	return strings.Contains(msg, "NotFound") || strings.Contains(msg, "404")
}
