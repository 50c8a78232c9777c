package objectstore

import (
	"context"
	"fmt"

	"github.com/yungbote/chartmotion-backend/internal/platform/logger"
)

// New builds the backend selected by cfg.Mode.
func New(ctx context.Context, log *logger.Logger, cfg Config) (Store, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("validate object storage config: %w", err)
	}
	storeLog := log.With("service", "ObjectStore", "mode", cfg.Mode)
	var (
		s   Store
		err error
	)
	switch cfg.Mode {
	case ModeLocal:
		s, err = newLocalStore(storeLog, cfg)
	case ModeGCS, ModeGCSEmulator:
		s, err = newGCSStore(ctx, storeLog, cfg)
	case ModeS3:
		s, err = newS3Store(storeLog, cfg)
	}
	if err != nil {
		return nil, err
	}
	storeLog.Info(
		"Object storage initialized",
		"mode_source", cfg.ModeSource(),
		"emulator_host", cfg.EmulatorHost,
		"dataset_bucket", cfg.DatasetBucket,
		"artifact_bucket", cfg.ArtifactBucket,
		"public_base_url", cfg.PublicBaseURL,
	)
	return s, nil
}
