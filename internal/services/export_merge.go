package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/chartmotion-backend/internal/domain/animation"
	"github.com/yungbote/chartmotion-backend/internal/observability"
	"github.com/yungbote/chartmotion-backend/internal/platform/apierr"
	"github.com/yungbote/chartmotion-backend/internal/platform/dbctx"
	"github.com/yungbote/chartmotion-backend/internal/platform/objectstore"
)

// MaxMergeRuns bounds one merge request.
const MaxMergeRuns = 20

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// VideoMerger joins local video files, in order, into out.
type VideoMerger interface {
	Concat(ctx context.Context, inputs []string, out string) error
}

type MergeInput struct {
	RunIDs []uuid.UUID `json:"run_ids"`
	Title  string      `json:"title"`
}

type MergeResult struct {
	Key    string      `json:"key"`
	URL    string      `json:"url"`
	RunIDs []uuid.UUID `json:"run_ids"`
}

// MergeExports concatenates the videos of completed runs owned by the caller. A run's
// export is used when present, its preview video otherwise.
func (s *generationService) MergeExports(ctx context.Context, in MergeInput) (*MergeResult, error) {
	ctx, span := observability.StartSpan(ctx, "generation.merge_exports")
	defer span.End()

	if s.merger == nil || s.store == nil {
		return nil, apierr.New(http.StatusServiceUnavailable, "merge_unavailable", errors.New("video merging is not configured"))
	}
	if len(in.RunIDs) < 2 || len(in.RunIDs) > MaxMergeRuns {
		return nil, apierr.BadRequest("invalid_merge", fmt.Errorf("merge needs between 2 and %d runs", MaxMergeRuns))
	}
	seen := make(map[uuid.UUID]bool, len(in.RunIDs))
	keys := make([]string, 0, len(in.RunIDs))
	for _, id := range in.RunIDs {
		if seen[id] {
			return nil, apierr.BadRequest("invalid_merge", fmt.Errorf("run %s listed twice", id))
		}
		seen[id] = true
		run, err := s.Run(ctx, id)
		if err != nil {
			return nil, err
		}
		if run.State != animation.RunStateCompleted {
			return nil, apierr.Conflict("invalid_state", fmt.Errorf("%w: run %s is %s", ErrInvalidTransition, id, run.State))
		}
		key := run.ExportKey
		if key == "" {
			key = run.VideoKey
		}
		if key == "" {
			return nil, apierr.Conflict("video_missing", fmt.Errorf("run %s has no video", id))
		}
		keys = append(keys, key)
	}

	dir, err := os.MkdirTemp("", "chartmotion-merge-*")
	if err != nil {
		return nil, fmt.Errorf("merge work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	inputs := make([]string, 0, len(keys))
	for i, key := range keys {
		path := filepath.Join(dir, fmt.Sprintf("in-%02d.mp4", i))
		if err := s.download(ctx, key, path); err != nil {
			return nil, err
		}
		inputs = append(inputs, path)
	}
	out := filepath.Join(dir, "merged.mp4")
	if err := s.merger.Concat(ctx, inputs, out); err != nil {
		s.log.Warn("merge failed", "runs", len(inputs), "error", err)
		return nil, apierr.New(http.StatusBadGateway, "merge_failed", err)
	}

	f, err := os.Open(out)
	if err != nil {
		return nil, fmt.Errorf("open merged video: %w", err)
	}
	defer f.Close()
	key := mergeKey(in.Title)
	if err := s.store.Upload(dbctx.Context{Ctx: ctx}, objectstore.CategoryArtifact, key, f); err != nil {
		return nil, fmt.Errorf("upload merged video: %w", err)
	}
	s.log.Info("videos merged", "runs", len(inputs), "key", key)
	return &MergeResult{Key: key, URL: s.url(key), RunIDs: in.RunIDs}, nil
}

func (s *generationService) download(ctx context.Context, key, path string) error {
	rc, err := s.store.Download(ctx, objectstore.CategoryArtifact, key)
	if err != nil {
		return fmt.Errorf("download %s: %w", key, err)
	}
	defer rc.Close()
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, rc); err != nil {
		_ = f.Close()
		return fmt.Errorf("download %s: %w", key, err)
	}
	return f.Close()
}

func mergeKey(title string) string {
	slug := strings.Trim(slugRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(title)), "-"), "-")
	if len(slug) > 40 {
		slug = strings.Trim(slug[:40], "-")
	}
	name := uuid.NewString()
	if slug != "" {
		name = slug + "-" + name
	}
	return "exports/merged/" + name + ".mp4"
}
