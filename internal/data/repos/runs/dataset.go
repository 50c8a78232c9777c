package runs

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/chartmotion-backend/internal/domain/animation"
	"github.com/yungbote/chartmotion-backend/internal/platform/dbctx"
	"github.com/yungbote/chartmotion-backend/internal/platform/logger"
)

type DatasetRepo interface {
	// Create inserts d unless the owner already has a dataset with the same content hash,
	// in which case the existing row is returned with created=false.
	Create(dbc dbctx.Context, d *animation.Dataset) (out *animation.Dataset, created bool, err error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*animation.Dataset, error)
	GetForOwner(dbc dbctx.Context, ownerID, id uuid.UUID) (*animation.Dataset, error)
	GetByOwnerAndHash(dbc dbctx.Context, ownerID uuid.UUID, hash string) (*animation.Dataset, error)
	FindLatestByName(dbc dbctx.Context, ownerID uuid.UUID, name string) (*animation.Dataset, error)
	ListByOwner(dbc dbctx.Context, ownerID uuid.UUID, limit int) ([]*animation.Dataset, error)
}

type datasetRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDatasetRepo(db *gorm.DB, baseLog *logger.Logger) DatasetRepo {
	return &datasetRepo{db: db, log: baseLog.With("repo", "DatasetRepo")}
}

func (r *datasetRepo) tx(dbc dbctx.Context) *gorm.DB {
	return dbc.DB(r.db)
}

func (r *datasetRepo) Create(dbc dbctx.Context, d *animation.Dataset) (*animation.Dataset, bool, error) {
	if d == nil {
		return nil, false, errors.New("dataset required")
	}
	existing, err := r.GetByOwnerAndHash(dbc, d.OwnerID, d.ContentHash)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}
	if err := r.tx(dbc).Create(d).Error; err != nil {
		if isUniqueViolation(err) {
			// Lost a race with a concurrent upload of the same bytes.
			existing, getErr := r.GetByOwnerAndHash(dbctx.Context{Ctx: dbc.Ctx}, d.OwnerID, d.ContentHash)
			if getErr == nil && existing != nil {
				r.log.Debug("dataset deduplicated after conflict", "dataset_id", existing.ID)
				return existing, false, nil
			}
		}
		return nil, false, err
	}
	return d, true, nil
}

func (r *datasetRepo) first(q *gorm.DB) (*animation.Dataset, error) {
	var out animation.Dataset
	err := q.Limit(1).Find(&out).Error
	if err != nil {
		return nil, err
	}
	if out.ID == uuid.Nil {
		return nil, nil
	}
	return &out, nil
}

func (r *datasetRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*animation.Dataset, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	return r.first(r.tx(dbc).Where("id = ?", id))
}

func (r *datasetRepo) GetForOwner(dbc dbctx.Context, ownerID, id uuid.UUID) (*animation.Dataset, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	return r.first(r.tx(dbc).Where("id = ? AND owner_id = ?", id, ownerID))
}

func (r *datasetRepo) GetByOwnerAndHash(dbc dbctx.Context, ownerID uuid.UUID, hash string) (*animation.Dataset, error) {
	if hash == "" {
		return nil, nil
	}
	return r.first(r.tx(dbc).Where("owner_id = ? AND content_hash = ?", ownerID, hash))
}

func (r *datasetRepo) FindLatestByName(dbc dbctx.Context, ownerID uuid.UUID, name string) (*animation.Dataset, error) {
	if name == "" {
		return nil, nil
	}
	return r.first(r.tx(dbc).Where("owner_id = ? AND name = ?", ownerID, name).Order("created_at DESC"))
}

func (r *datasetRepo) ListByOwner(dbc dbctx.Context, ownerID uuid.UUID, limit int) ([]*animation.Dataset, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []*animation.Dataset
	err := r.tx(dbc).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
