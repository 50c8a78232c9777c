package runs

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/chartmotion-backend/internal/domain/animation"
	"github.com/yungbote/chartmotion-backend/internal/platform/dbctx"
	"github.com/yungbote/chartmotion-backend/internal/platform/logger"
)

type GenerationRunRepo interface {
	Create(dbc dbctx.Context, run *animation.GenerationRun) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*animation.GenerationRun, error)
	GetForOwner(dbc dbctx.Context, ownerID, id uuid.UUID) (*animation.GenerationRun, error)
	// ClaimNextRunnable locks the oldest queued run that has a pending job kind.
	ClaimNextRunnable(dbc dbctx.Context) (*animation.GenerationRun, error)
	// ClaimByID locks one specific queued run. It returns nil when the run is not claimable.
	ClaimByID(dbc dbctx.Context, id uuid.UUID) (*animation.GenerationRun, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	UpdateFieldsUnlessState(dbc dbctx.Context, id uuid.UUID, disallowed []animation.RunState, updates map[string]interface{}) (bool, error)
	// UpdateFieldsIfState is a compare-and-set on the run state.
	UpdateFieldsIfState(dbc dbctx.Context, id uuid.UUID, allowed []animation.RunState, updates map[string]interface{}) (bool, error)
	Heartbeat(dbc dbctx.Context, id uuid.UUID) error
	ListIdle(dbc dbctx.Context, state animation.RunState, updatedBefore time.Time, limit int) ([]*animation.GenerationRun, error)
	ListStale(dbc dbctx.Context, heartbeatBefore time.Time, limit int) ([]*animation.GenerationRun, error)
}

type generationRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGenerationRunRepo(db *gorm.DB, baseLog *logger.Logger) GenerationRunRepo {
	return &generationRunRepo{db: db, log: baseLog.With("repo", "GenerationRunRepo")}
}

func (r *generationRunRepo) tx(dbc dbctx.Context) *gorm.DB {
	return dbc.DB(r.db)
}

func (r *generationRunRepo) Create(dbc dbctx.Context, run *animation.GenerationRun) error {
	if run == nil {
		return errors.New("run required")
	}
	return r.tx(dbc).Create(run).Error
}

func (r *generationRunRepo) find(q *gorm.DB) (*animation.GenerationRun, error) {
	var out animation.GenerationRun
	if err := q.Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if out.ID == uuid.Nil {
		return nil, nil
	}
	return &out, nil
}

func (r *generationRunRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*animation.GenerationRun, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	return r.find(r.tx(dbc).Where("id = ?", id))
}

func (r *generationRunRepo) GetForOwner(dbc dbctx.Context, ownerID, id uuid.UUID) (*animation.GenerationRun, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	return r.find(r.tx(dbc).Where("id = ? AND owner_id = ?", id, ownerID))
}

func (r *generationRunRepo) ClaimNextRunnable(dbc dbctx.Context) (*animation.GenerationRun, error) {
	now := time.Now()
	var claimed *animation.GenerationRun
	err := r.tx(dbc).Transaction(func(txx *gorm.DB) error {
		var run animation.GenerationRun
		qErr := txx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("job_kind IN ? AND locked_at IS NULL AND state IN ?",
				[]animation.JobKind{animation.JobKindRender, animation.JobKindExport},
				[]animation.RunState{animation.RunStateStarting, animation.RunStateExporting},
			).
			Order("queued_at ASC").
			First(&run).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}
		res := txx.Model(&animation.GenerationRun{}).
			Where("id = ? AND locked_at IS NULL", run.ID).
			Updates(map[string]interface{}{
				"attempts":     gorm.Expr("attempts + 1"),
				"locked_at":    now,
				"heartbeat_at": now,
				"updated_at":   now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		run.Attempts++
		run.LockedAt = &now
		run.HeartbeatAt = &now
		claimed = &run
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *generationRunRepo) ClaimByID(dbc dbctx.Context, id uuid.UUID) (*animation.GenerationRun, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	now := time.Now()
	res := r.tx(dbc).Model(&animation.GenerationRun{}).
		Where("id = ? AND locked_at IS NULL AND job_kind IN ? AND state IN ?", id,
			[]animation.JobKind{animation.JobKindRender, animation.JobKindExport},
			[]animation.RunState{animation.RunStateStarting, animation.RunStateExporting},
		).
		Updates(map[string]interface{}{
			"attempts":     gorm.Expr("attempts + 1"),
			"locked_at":    now,
			"heartbeat_at": now,
			"updated_at":   now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return r.GetByID(dbc, id)
}

func withUpdatedAt(updates map[string]interface{}) map[string]interface{} {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return updates
}

func (r *generationRunRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	return r.tx(dbc).
		Model(&animation.GenerationRun{}).
		Where("id = ?", id).
		Updates(withUpdatedAt(updates)).Error
}

func (r *generationRunRepo) UpdateFieldsUnlessState(dbc dbctx.Context, id uuid.UUID, disallowed []animation.RunState, updates map[string]interface{}) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	q := r.tx(dbc).Model(&animation.GenerationRun{}).Where("id = ?", id)
	if len(disallowed) > 0 {
		q = q.Where("state NOT IN ?", disallowed)
	}
	res := q.Updates(withUpdatedAt(updates))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *generationRunRepo) UpdateFieldsIfState(dbc dbctx.Context, id uuid.UUID, allowed []animation.RunState, updates map[string]interface{}) (bool, error) {
	if id == uuid.Nil || len(allowed) == 0 {
		return false, nil
	}
	res := r.tx(dbc).
		Model(&animation.GenerationRun{}).
		Where("id = ? AND state IN ?", id, allowed).
		Updates(withUpdatedAt(updates))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *generationRunRepo) Heartbeat(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	now := time.Now()
	return r.tx(dbc).
		Model(&animation.GenerationRun{}).
		Where("id = ? AND locked_at IS NOT NULL", id).
		Updates(map[string]interface{}{
			"heartbeat_at": now,
			"updated_at":   now,
		}).Error
}

func (r *generationRunRepo) ListIdle(dbc dbctx.Context, state animation.RunState, updatedBefore time.Time, limit int) ([]*animation.GenerationRun, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []*animation.GenerationRun
	err := r.tx(dbc).
		Where("state = ? AND updated_at < ?", state, updatedBefore).
		Order("updated_at ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *generationRunRepo) ListStale(dbc dbctx.Context, heartbeatBefore time.Time, limit int) ([]*animation.GenerationRun, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []*animation.GenerationRun
	err := r.tx(dbc).
		Where("locked_at IS NOT NULL AND heartbeat_at < ? AND state IN ?", heartbeatBefore, []animation.RunState{
			animation.RunStateStarting, animation.RunStatePreviewing, animation.RunStateRendering, animation.RunStateExporting,
		}).
		Order("heartbeat_at ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
