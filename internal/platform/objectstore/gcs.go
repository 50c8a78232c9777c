package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/yungbote/chartmotion-backend/internal/platform/dbctx"
	"github.com/yungbote/chartmotion-backend/internal/platform/logger"
)

type gcsStore struct {
	log          *logger.Logger
	client       *storage.Client
	mode         Mode
	emulatorHost string
	buckets      buckets
	publicBase   string
}

func newGCSStore(ctx context.Context, log *logger.Logger, cfg Config) (*gcsStore, error) {
	client, err := newStorageClientForMode(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	publicBase := cfg.PublicBaseURL
	if publicBase == "" && cfg.IsEmulatorMode() {
		publicBase = strings.TrimRight(cfg.EmulatorHost, "/")
	}
	return &gcsStore{
		log:          log,
		client:       client,
		mode:         cfg.Mode,
		emulatorHost: strings.TrimRight(cfg.EmulatorHost, "/"),
		buckets:      buckets{dataset: cfg.DatasetBucket, artifact: cfg.ArtifactBucket},
		publicBase:   publicBase,
	}, nil
}

func newStorageClientForMode(ctx context.Context, cfg Config) (*storage.Client, error) {
	switch cfg.Mode {
	case ModeGCS:
		return storage.NewClient(ctx, gcsClientOptions(cfg)...)
	case ModeGCSEmulator:
		// The storage client picks the emulator endpoint up from the environment.
		_ = os.Setenv("STORAGE_EMULATOR_HOST", strings.TrimRight(cfg.EmulatorHost, "/"))
		return storage.NewClient(ctx, option.WithoutAuthentication())
	default:
		return nil, &ConfigError{Code: ConfigErrorInvalidMode, Mode: string(cfg.Mode)}
	}
}

func (s *gcsStore) Mode() Mode { return s.mode }

func (s *gcsStore) Upload(dbc dbctx.Context, category Category, key string, r io.Reader) error {
	bucket, err := s.buckets.name(category)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(dbc.Ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(bucket).Object(cleanKey(key)).NewWriter(ctx)
	w.ContentType = contentTypeForKey(key)
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return nil
}

func (s *gcsStore) Delete(dbc dbctx.Context, category Category, key string) error {
	bucket, err := s.buckets.name(category)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(dbc.Ctx, 30*time.Second)
	defer cancel()
	if err := s.client.Bucket(bucket).Object(cleanKey(key)).Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil
		}
		return fmt.Errorf("failed to delete GCS object %q in bucket %q: %w", key, bucket, err)
	}
	return nil
}

func (s *gcsStore) Download(ctx context.Context, category Category, key string) (io.ReadCloser, error) {
	bucket, err := s.buckets.name(category)
	if err != nil {
		return nil, err
	}
	ctx2, cancel := context.WithTimeout(ctx, 2*time.Minute)
	if s.mode == ModeGCSEmulator && s.emulatorHost != "" {
		req, err := http.NewRequestWithContext(ctx2, http.MethodGet, mediaURL(s.emulatorHost, bucket, cleanKey(key)), nil)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed creating emulator download request: %w", err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed emulator download request: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			_ = resp.Body.Close()
			cancel()
			return nil, fmt.Errorf("emulator download failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		return &readCloserWithCancel{ReadCloser: resp.Body, cancel: cancel}, nil
	}
	r, err := s.client.Bucket(bucket).Object(cleanKey(key)).NewReader(ctx2)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open GCS reader: %w", err)
	}
	return &readCloserWithCancel{ReadCloser: r, cancel: cancel}, nil
}

func (s *gcsStore) List(ctx context.Context, category Category, prefix string) ([]string, error) {
	bucket, err := s.buckets.name(category)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	it := s.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: cleanKey(prefix)})
	out := []string{}
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, attrs.Name)
	}
	return out, nil
}

func (s *gcsStore) DeletePrefix(ctx context.Context, category Category, prefix string) error {
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

func (s *gcsStore) PublicURL(category Category, key string) string {
	bucket, err := s.buckets.name(category)
	if err != nil {
		return key
	}
	key = cleanKey(key)
	if s.mode == ModeGCSEmulator && s.publicBase != "" {
		return mediaURL(s.publicBase, bucket, key)
	}
	if s.publicBase != "" {
		return fmt.Sprintf("%s/%s/%s", s.publicBase, bucket, key)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, key)
}

func mediaURL(base, bucket, key string) string {
	return fmt.Sprintf(
		"%s/storage/v1/b/%s/o/%s?alt=media",
		strings.TrimRight(base, "/"),
		url.PathEscape(bucket),
		url.PathEscape(key),
	)
}
