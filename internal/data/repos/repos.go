package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/chartmotion-backend/internal/data/repos/runs"
	"github.com/yungbote/chartmotion-backend/internal/platform/logger"
)

type DatasetRepo = runs.DatasetRepo
type GenerationRunRepo = runs.GenerationRunRepo
type RunEventRepo = runs.RunEventRepo

func NewDatasetRepo(db *gorm.DB, baseLog *logger.Logger) DatasetRepo {
	return runs.NewDatasetRepo(db, baseLog)
}

func NewGenerationRunRepo(db *gorm.DB, baseLog *logger.Logger) GenerationRunRepo {
	return runs.NewGenerationRunRepo(db, baseLog)
}

func NewRunEventRepo(db *gorm.DB, baseLog *logger.Logger) RunEventRepo {
	return runs.NewRunEventRepo(db, baseLog)
}

// Set bundles every repo the services need.
type Set struct {
	Datasets  DatasetRepo
	Runs      GenerationRunRepo
	RunEvents RunEventRepo
}

func NewSet(db *gorm.DB, baseLog *logger.Logger) Set {
	return Set{
		Datasets:  NewDatasetRepo(db, baseLog),
		Runs:      NewGenerationRunRepo(db, baseLog),
		RunEvents: NewRunEventRepo(db, baseLog),
	}
}
