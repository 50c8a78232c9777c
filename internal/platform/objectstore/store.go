package objectstore

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/yungbote/chartmotion-backend/internal/platform/dbctx"
)

type Category string

const (
	CategoryDataset  Category = "dataset"
	CategoryArtifact Category = "artifact"
)

// Store is the object storage surface used for raw dataset uploads and render artifacts.
type Store interface {
	Upload(dbc dbctx.Context, category Category, key string, r io.Reader) error
	Delete(dbc dbctx.Context, category Category, key string) error
	Download(ctx context.Context, category Category, key string) (io.ReadCloser, error)
	List(ctx context.Context, category Category, prefix string) ([]string, error)
	DeletePrefix(ctx context.Context, category Category, prefix string) error
	PublicURL(category Category, key string) string
	Mode() Mode
}

type buckets struct {
	dataset  string
	artifact string
}

func (b buckets) name(category Category) (string, error) {
	switch category {
	case CategoryDataset:
		return b.dataset, nil
	case CategoryArtifact:
		return b.artifact, nil
	default:
		return "", fmt.Errorf("unknown storage category: %s", category)
	}
}

func contentTypeForKey(key string) string {
	s := strings.ToLower(strings.TrimSpace(key))
	if i := strings.Index(s, "?"); i >= 0 {
		s = s[:i]
	}
	switch {
	case strings.HasSuffix(s, ".png"):
		return "image/png"
	case strings.HasSuffix(s, ".jpg"), strings.HasSuffix(s, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(s, ".gif"):
		return "image/gif"
	case strings.HasSuffix(s, ".mp4"):
		return "video/mp4"
	case strings.HasSuffix(s, ".webm"):
		return "video/webm"
	case strings.HasSuffix(s, ".mov"):
		return "video/quicktime"
	case strings.HasSuffix(s, ".py"):
		return "text/x-python"
	case strings.HasSuffix(s, ".csv"):
		return "text/csv"
	case strings.HasSuffix(s, ".tsv"):
		return "text/tab-separated-values"
	case strings.HasSuffix(s, ".json"):
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

func cleanKey(key string) string {
	return strings.TrimLeft(strings.TrimSpace(key), "/")
}

// readCloserWithCancel releases the request context when the reader is closed.
// Cancelling earlier would cut the body short.
type readCloserWithCancel struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (r *readCloserWithCancel) Close() error {
	err := r.ReadCloser.Close()
	if r.cancel != nil {
		r.cancel()
	}
	return err
}
