package objectstore

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/yungbote/chartmotion-backend/internal/platform/dbctx"
	"github.com/yungbote/chartmotion-backend/internal/platform/logger"
)

// s3Store talks to any S3 compatible endpoint (MinIO, R2, AWS).
type s3Store struct {
	log        *logger.Logger
	client     *minio.Client
	buckets    buckets
	region     string
	endpoint   string
	secure     bool
	publicBase string

	ensureMu sync.Mutex
	ensured  map[string]bool
}

func newS3Store(log *logger.Logger, cfg Config) (*s3Store, error) {
	endpoint := strings.TrimSpace(cfg.S3.Endpoint)
	endpoint = strings.TrimPrefix(strings.TrimPrefix(endpoint, "https://"), "http://")
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3.AccessKey, cfg.S3.SecretKey, ""),
		Secure: cfg.S3.UseSSL,
		Region: cfg.S3.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	return &s3Store{
		log:        log,
		client:     client,
		buckets:    buckets{dataset: cfg.DatasetBucket, artifact: cfg.ArtifactBucket},
		region:     cfg.S3.Region,
		endpoint:   endpoint,
		secure:     cfg.S3.UseSSL,
		publicBase: cfg.PublicBaseURL,
		ensured:    map[string]bool{},
	}, nil
}

func (s *s3Store) Mode() Mode { return ModeS3 }

func (s *s3Store) ensureBucket(ctx context.Context, bucket string) error {
	s.ensureMu.Lock()
	defer s.ensureMu.Unlock()
	if s.ensured[bucket] {
		return nil
	}
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return fmt.Errorf("create bucket %q: %w", bucket, err)
		}
		s.log.Info("Created bucket", "bucket", bucket)
	}
	s.ensured[bucket] = true
	return nil
}

func (s *s3Store) Upload(dbc dbctx.Context, category Category, key string, r io.Reader) error {
	bucket, err := s.buckets.name(category)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(dbc.Ctx, 2*time.Minute)
	defer cancel()
	if err := s.ensureBucket(ctx, bucket); err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, bucket, cleanKey(key), r, -1, minio.PutObjectOptions{
		ContentType: contentTypeForKey(key),
	})
	if err != nil {
		return fmt.Errorf("put object %q: %w", key, err)
	}
	return nil
}

func (s *s3Store) Delete(dbc dbctx.Context, category Category, key string) error {
	bucket, err := s.buckets.name(category)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(dbc.Ctx, 30*time.Second)
	defer cancel()
	if err := s.client.RemoveObject(ctx, bucket, cleanKey(key), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %q: %w", key, err)
	}
	return nil
}

func (s *s3Store) Download(ctx context.Context, category Category, key string) (io.ReadCloser, error) {
	bucket, err := s.buckets.name(category)
	if err != nil {
		return nil, err
	}
	ctx2, cancel := context.WithTimeout(ctx, 2*time.Minute)
	obj, err := s.client.GetObject(ctx2, bucket, cleanKey(key), minio.GetObjectOptions{})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("get object %q: %w", key, err)
	}
	// GetObject is lazy; Stat surfaces a missing key now instead of on first Read.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		cancel()
		return nil, fmt.Errorf("stat object %q: %w", key, err)
	}
	return &readCloserWithCancel{ReadCloser: obj, cancel: cancel}, nil
}

func (s *s3Store) List(ctx context.Context, category Category, prefix string) ([]string, error) {
	bucket, err := s.buckets.name(category)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	out := []string{}
	for obj := range s.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: cleanKey(prefix), Recursive: true}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		out = append(out, obj.Key)
	}
	return out, nil
}

func (s *s3Store) DeletePrefix(ctx context.Context, category Category, prefix string) error {
	keys, err := s.List(ctx, category, prefix)
	if err != nil {
		return err
	}
	var firstErr error
	for _, k := range keys {
		if err := s.Delete(dbctx.Context{Ctx: ctx}, category, k); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *s3Store) PublicURL(category Category, key string) string {
	bucket, err := s.buckets.name(category)
	if err != nil {
		return key
	}
	if s.publicBase != "" {
		return fmt.Sprintf("%s/%s/%s", s.publicBase, bucket, cleanKey(key))
	}
	scheme := "http"
	if s.secure {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.endpoint, bucket, cleanKey(key))
}
