package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/chartmotion-backend/internal/domain/animation"
)

// Models are the tables owned by this service, in dependency order.
func Models() []any {
	return []any{
		&animation.Dataset{},
		&animation.GenerationRun{},
		&animation.GenerationRunEvent{},
	}
}

// claimIndexes back the worker's claim query and the sweeper's stale scan. Both
// Postgres and SQLite accept partial indexes in this form.
var claimIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_generation_run_claimable
		ON generation_run (queued_at)
		WHERE locked_at IS NULL AND job_kind <> ''`,
	`CREATE INDEX IF NOT EXISTS idx_generation_run_locked
		ON generation_run (heartbeat_at)
		WHERE locked_at IS NOT NULL`,
}

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return err
	}
	for _, stmt := range claimIndexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create claim index: %w", err)
		}
	}
	return nil
}
