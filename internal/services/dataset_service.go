package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/chartmotion-backend/internal/data/repos"
	"github.com/yungbote/chartmotion-backend/internal/domain/animation"
	"github.com/yungbote/chartmotion-backend/internal/modules/animation/dataset"
	"github.com/yungbote/chartmotion-backend/internal/modules/animation/intent"
	"github.com/yungbote/chartmotion-backend/internal/modules/animation/mapping"
	"github.com/yungbote/chartmotion-backend/internal/modules/animation/templates"
	"github.com/yungbote/chartmotion-backend/internal/observability"
	"github.com/yungbote/chartmotion-backend/internal/platform/apierr"
	"github.com/yungbote/chartmotion-backend/internal/platform/ctxutil"
	"github.com/yungbote/chartmotion-backend/internal/platform/dbctx"
	"github.com/yungbote/chartmotion-backend/internal/platform/logger"
	"github.com/yungbote/chartmotion-backend/internal/platform/objectstore"
)

var ErrDatasetNotFound = errors.New("dataset not found")

type DatasetConfig struct {
	MaxBytes       int64
	CountTransform bool
	Normalize      dataset.Options
}

// DatasetProfile is the normalized view of a stored dataset.
type DatasetProfile struct {
	Dataset    *animation.Dataset  `json:"dataset"`
	Normalized *dataset.Normalized `json:"normalized"`
	Summary    dataset.Summary     `json:"summary"`
	Rows       int                 `json:"rows"`
}

// Suggestion is the auto-filled mapping for one template, with per-axis column choices.
type Suggestion struct {
	TemplateID string               `json:"template_id"`
	Mapping    mapping.Mapping      `json:"mapping"`
	Prompts    []mapping.AxisPrompt `json:"prompts"`
	Warnings   []string             `json:"warnings,omitempty"`
}

type DatasetService interface {
	// Upload parses and stores a file. created is false when the owner already uploaded
	// identical bytes; the existing dataset is returned.
	Upload(ctx context.Context, name string, r io.Reader) (ds *animation.Dataset, created bool, err error)
	Get(ctx context.Context, id uuid.UUID) (*animation.Dataset, error)
	List(ctx context.Context, limit int) ([]*animation.Dataset, error)
	Profile(ctx context.Context, id uuid.UUID) (*DatasetProfile, error)
	Suggest(ctx context.Context, id uuid.UUID, templateID string) (*Suggestion, error)
	// Resolve finds the dataset a request refers to: an explicit id, or a dataset= /
	// csv_path= marker in the message. It returns nil when nothing is referenced.
	Resolve(ctx context.Context, explicit *uuid.UUID, message string) (*animation.Dataset, error)
	// Normalized loads the long-form data for a dataset, from cache when possible.
	Normalized(ctx context.Context, ds *animation.Dataset) (*dataset.Normalized, dataset.Summary, error)
}

type datasetService struct {
	log      *logger.Logger
	cfg      DatasetConfig
	datasets repos.DatasetRepo
	store    objectstore.Store
	cache    *dataset.Cache
	registry *templates.Registry
}

func NewDatasetService(log *logger.Logger, cfg DatasetConfig, datasets repos.DatasetRepo, store objectstore.Store, cache *dataset.Cache, registry *templates.Registry) DatasetService {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 50 << 20
	}
	return &datasetService{
		log:      log.With("service", "DatasetService"),
		cfg:      cfg,
		datasets: datasets,
		store:    store,
		cache:    cache,
		registry: registry,
	}
}

func ownerFrom(ctx context.Context) (uuid.UUID, error) {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || rd.OwnerID == uuid.Nil {
		return uuid.Nil, apierr.Unauthorized("unauthorized", errors.New("not authenticated"))
	}
	return rd.OwnerID, nil
}

func datasetKey(owner uuid.UUID, hash string) string {
	return fmt.Sprintf("datasets/%s/%s.csv", owner, hash)
}

func (s *datasetService) Upload(ctx context.Context, name string, r io.Reader) (*animation.Dataset, bool, error) {
	owner, err := ownerFrom(ctx)
	if err != nil {
		return nil, false, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = "dataset.csv"
	}

	data, err := io.ReadAll(io.LimitReader(r, s.cfg.MaxBytes+1))
	if err != nil {
		return nil, false, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.cfg.MaxBytes {
		return nil, false, apierr.TooLarge("dataset_too_large", dataset.ErrTooLarge)
	}
	raw, err := dataset.ParseBytes(data, dataset.ParseOptions{Name: name, MaxBytes: s.cfg.MaxBytes})
	if err != nil {
		return nil, false, apierr.BadRequest("invalid_dataset", err)
	}

	dbc := dbctx.Context{Ctx: ctx}
	if existing, err := s.datasets.GetByOwnerAndHash(dbc, owner, raw.Hash); err != nil {
		return nil, false, err
	} else if existing != nil {
		s.log.Debug("dataset upload deduplicated", "dataset_id", existing.ID, "hash", raw.Hash)
		return existing, false, nil
	}

	key := datasetKey(owner, raw.Hash)
	if err := s.store.Upload(dbc, objectstore.CategoryDataset, key, bytes.NewReader(data)); err != nil {
		return nil, false, fmt.Errorf("store dataset: %w", err)
	}

	profiles := dataset.ProfileColumns(raw.Columns, raw.Rows, s.cfg.Normalize.Threshold, nil)
	cols, _ := json.Marshal(profiles)
	samples, _ := json.Marshal(raw.Samples(5))
	ds := &animation.Dataset{
		OwnerID:     owner,
		Name:        name,
		ContentHash: raw.Hash,
		StorageKey:  key,
		Delimiter:   string(raw.Delimiter),
		RowCount:    len(raw.Rows),
		SizeBytes:   raw.Size,
		Columns:     datatypes.JSON(cols),
		Samples:     datatypes.JSON(samples),
	}
	out, created, err := s.datasets.Create(dbc, ds)
	if err != nil {
		return nil, false, err
	}
	// Warm the cache for the first request against this dataset.
	s.cache.Normalize(raw, s.cfg.Normalize)
	s.log.Info("dataset uploaded", "dataset_id", out.ID, "rows", out.RowCount, "columns", len(raw.Columns), "created", created)
	return out, created, nil
}

func (s *datasetService) Get(ctx context.Context, id uuid.UUID) (*animation.Dataset, error) {
	owner, err := ownerFrom(ctx)
	if err != nil {
		return nil, err
	}
	ds, err := s.datasets.GetForOwner(dbctx.Context{Ctx: ctx}, owner, id)
	if err != nil {
		return nil, err
	}
	if ds == nil {
		return nil, apierr.NotFound("dataset_not_found", ErrDatasetNotFound)
	}
	return ds, nil
}

func (s *datasetService) List(ctx context.Context, limit int) ([]*animation.Dataset, error) {
	owner, err := ownerFrom(ctx)
	if err != nil {
		return nil, err
	}
	return s.datasets.ListByOwner(dbctx.Context{Ctx: ctx}, owner, limit)
}

func (s *datasetService) Resolve(ctx context.Context, explicit *uuid.UUID, message string) (*animation.Dataset, error) {
	if explicit != nil && *explicit != uuid.Nil {
		return s.Get(ctx, *explicit)
	}
	kind, value, ok := intent.ExtractDatasetRef(message)
	if !ok {
		return nil, nil
	}
	switch kind {
	case "dataset_id":
		id, err := uuid.Parse(value)
		if err != nil {
			return nil, apierr.BadRequest("invalid_dataset_ref", fmt.Errorf("dataset reference %q is not an id", value))
		}
		return s.Get(ctx, id)
	default:
		owner, err := ownerFrom(ctx)
		if err != nil {
			return nil, err
		}
		name := value
		if i := strings.LastIndexAny(name, `/\`); i >= 0 {
			name = name[i+1:]
		}
		ds, err := s.datasets.FindLatestByName(dbctx.Context{Ctx: ctx}, owner, name)
		if err != nil {
			return nil, err
		}
		if ds == nil {
			return nil, apierr.NotFound("dataset_not_found", fmt.Errorf("no dataset named %q", name))
		}
		return ds, nil
	}
}

func (s *datasetService) Normalized(ctx context.Context, ds *animation.Dataset) (*dataset.Normalized, dataset.Summary, error) {
	start := time.Now()
	defer func() { observability.Current().ObserveStage("normalize", time.Since(start)) }()

	n, sum, err := s.normalize(ctx, ds)
	if err != nil {
		return nil, dataset.Summary{}, err
	}
	if s.cfg.CountTransform {
		if counted, ok := dataset.CountTransform(n); ok {
			sum.Transform = dataset.TransformCount
			sum.OutputRows = len(counted.Rows)
			n = counted
		}
	}
	s.log.Debug("dataset normalized", append([]interface{}{"dataset_id", ds.ID}, sum.KV()...)...)
	return n, sum, nil
}

func (s *datasetService) normalize(ctx context.Context, ds *animation.Dataset) (*dataset.Normalized, dataset.Summary, error) {
	if n, ok := s.cache.Lookup(ds.ContentHash, s.cfg.Normalize); ok {
		return n, dataset.Summary{Transform: transformOf(n), InputRows: ds.RowCount, OutputRows: len(n.Rows)}, nil
	}
	rc, err := s.store.Download(ctx, objectstore.CategoryDataset, ds.StorageKey)
	if err != nil {
		return nil, dataset.Summary{}, fmt.Errorf("download dataset %s: %w", ds.ID, err)
	}
	defer rc.Close()

	var delim rune
	if ds.Delimiter != "" {
		delim = []rune(ds.Delimiter)[0]
	}
	raw, err := dataset.Parse(rc, dataset.ParseOptions{Name: ds.Name, MaxBytes: s.cfg.MaxBytes, Delimiter: delim})
	if err != nil {
		return nil, dataset.Summary{}, fmt.Errorf("parse dataset %s: %w", ds.ID, err)
	}
	n, sum, _ := s.cache.Normalize(raw, s.cfg.Normalize)
	return n, sum, nil
}

func transformOf(n *dataset.Normalized) dataset.Transform {
	if n.Melted {
		return dataset.TransformMelt
	}
	return dataset.TransformNone
}

func (s *datasetService) Profile(ctx context.Context, id uuid.UUID) (*DatasetProfile, error) {
	ds, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	n, sum, err := s.Normalized(ctx, ds)
	if err != nil {
		return nil, err
	}
	return &DatasetProfile{Dataset: ds, Normalized: n, Summary: sum, Rows: len(n.Rows)}, nil
}

func (s *datasetService) Suggest(ctx context.Context, id uuid.UUID, templateID string) (*Suggestion, error) {
	def, ok := s.registry.Get(templateID)
	if !ok {
		return nil, apierr.NotFound("template_not_found", fmt.Errorf("unknown template %q", templateID))
	}
	ds, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	n, _, err := s.Normalized(ctx, ds)
	if err != nil {
		return nil, err
	}
	m, prompts := mapping.AutoFill(def, n)
	return &Suggestion{TemplateID: def.ID, Mapping: m, Prompts: prompts, Warnings: mapping.Duplicates(def, m)}, nil
}
