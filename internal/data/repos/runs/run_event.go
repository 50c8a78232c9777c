package runs

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/chartmotion-backend/internal/domain/animation"
	"github.com/yungbote/chartmotion-backend/internal/platform/dbctx"
	"github.com/yungbote/chartmotion-backend/internal/platform/logger"
)

type RunEventRepo interface {
	// Append assigns the next per-run sequence number and stores ev.
	Append(dbc dbctx.Context, ev *animation.GenerationRunEvent) error
	ListAfter(dbc dbctx.Context, runID uuid.UUID, afterSeq int64, limit int) ([]*animation.GenerationRunEvent, error)
	LastSeq(dbc dbctx.Context, runID uuid.UUID) (int64, error)
}

type runEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRunEventRepo(db *gorm.DB, baseLog *logger.Logger) RunEventRepo {
	return &runEventRepo{db: db, log: baseLog.With("repo", "RunEventRepo")}
}

func (r *runEventRepo) tx(dbc dbctx.Context) *gorm.DB {
	return dbc.DB(r.db)
}

const appendAttempts = 5

func (r *runEventRepo) Append(dbc dbctx.Context, ev *animation.GenerationRunEvent) error {
	if ev == nil || ev.RunID == uuid.Nil {
		return errors.New("event with run id required")
	}
	var lastErr error
	for i := 0; i < appendAttempts; i++ {
		lastErr = r.tx(dbc).Transaction(func(txx *gorm.DB) error {
			var maxSeq int64
			if err := txx.Model(&animation.GenerationRunEvent{}).
				Where("run_id = ?", ev.RunID).
				Select("COALESCE(MAX(seq), 0)").
				Scan(&maxSeq).Error; err != nil {
				return err
			}
			ev.ID = uuid.Nil
			ev.Seq = maxSeq + 1
			return txx.Create(ev).Error
		})
		if lastErr == nil || !isUniqueViolation(lastErr) {
			return lastErr
		}
		r.log.Debug("run event seq conflict, retrying", "run_id", ev.RunID, "attempt", i+1)
	}
	return lastErr
}

func (r *runEventRepo) ListAfter(dbc dbctx.Context, runID uuid.UUID, afterSeq int64, limit int) ([]*animation.GenerationRunEvent, error) {
	if limit <= 0 || limit > 1000 {
		limit = 500
	}
	var out []*animation.GenerationRunEvent
	err := r.tx(dbc).
		Where("run_id = ? AND seq > ?", runID, afterSeq).
		Order("seq ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *runEventRepo) LastSeq(dbc dbctx.Context, runID uuid.UUID) (int64, error) {
	var maxSeq int64
	err := r.tx(dbc).Model(&animation.GenerationRunEvent{}).
		Where("run_id = ?", runID).
		Select("COALESCE(MAX(seq), 0)").
		Scan(&maxSeq).Error
	return maxSeq, err
}
