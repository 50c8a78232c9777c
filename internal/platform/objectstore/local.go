package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/yungbote/chartmotion-backend/internal/platform/dbctx"
	"github.com/yungbote/chartmotion-backend/internal/platform/logger"
)

// localStore keeps objects under <root>/<bucket>/<key>. Meant for development and tests.
type localStore struct {
	log        *logger.Logger
	root       string
	buckets    buckets
	publicBase string
}

func newLocalStore(log *logger.Logger, cfg Config) (*localStore, error) {
	root := strings.TrimSpace(cfg.LocalRoot)
	if root == "" {
		root = "./artifacts"
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve local storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create local storage root: %w", err)
	}
	return &localStore{
		log:        log,
		root:       abs,
		buckets:    buckets{dataset: cfg.DatasetBucket, artifact: cfg.ArtifactBucket},
		publicBase: cfg.PublicBaseURL,
	}, nil
}

func (s *localStore) Mode() Mode { return ModeLocal }

func (s *localStore) path(category Category, key string) (string, error) {
	bucket, err := s.buckets.name(category)
	if err != nil {
		return "", err
	}
	base := filepath.Join(s.root, bucket)
	p := filepath.Join(base, filepath.FromSlash(cleanKey(key)))
	if p != base && !strings.HasPrefix(p, base+string(filepath.Separator)) {
		return "", fmt.Errorf("key %q escapes storage root", key)
	}
	return p, nil
}

func (s *localStore) Upload(dbc dbctx.Context, category Category, key string, r io.Reader) error {
	p, err := s.path(category, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, &ctxReader{ctx: dbc.Ctx, r: r}); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), p)
}

func (s *localStore) Delete(_ dbctx.Context, category Category, key string) error {
	p, err := s.path(category, key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *localStore) Download(_ context.Context, category Category, key string) (io.ReadCloser, error) {
	p, err := s.path(category, key)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

func (s *localStore) List(_ context.Context, category Category, prefix string) ([]string, error) {
	bucket, err := s.buckets.name(category)
	if err != nil {
		return nil, err
	}
	base := filepath.Join(s.root, bucket)
	prefix = cleanKey(prefix)
	out := []string{}
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".upload-") {
			return nil
		}
		rel, err := filepath.Rel(base, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			out = append(out, key)
		}
		return nil
	})
	return out, err
}

func (s *localStore) DeletePrefix(ctx context.Context, category Category, prefix string) error {
	keys, err := s.List(ctx, category, prefix)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := s.Delete(dbctx.Context{Ctx: ctx}, category, k); err != nil {
			return err
		}
	}
	return nil
}

func (s *localStore) PublicURL(category Category, key string) string {
	bucket, err := s.buckets.name(category)
	if err != nil {
		return key
	}
	if s.publicBase != "" {
		return fmt.Sprintf("%s/%s/%s", s.publicBase, bucket, cleanKey(key))
	}
	return "file://" + filepath.ToSlash(filepath.Join(s.root, bucket, cleanKey(key)))
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if c.ctx != nil {
		if err := c.ctx.Err(); err != nil {
			return 0, err
		}
	}
	return c.r.Read(p)
}
