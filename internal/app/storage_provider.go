package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/yungbote/chartmotion-backend/internal/observability"
	"github.com/yungbote/chartmotion-backend/internal/platform/logger"
	"github.com/yungbote/chartmotion-backend/internal/platform/objectstore"
)

var newObjectStore = objectstore.New

type StorageProviderBootstrapErrorCode string

const (
	StorageProviderBootstrapErrorInvalidMode         StorageProviderBootstrapErrorCode = "invalid_mode"
	StorageProviderBootstrapErrorMissingEmulatorHost StorageProviderBootstrapErrorCode = "missing_emulator_host"
	StorageProviderBootstrapErrorInvalidEmulatorHost StorageProviderBootstrapErrorCode = "invalid_emulator_host"
	StorageProviderBootstrapErrorMissingEndpoint     StorageProviderBootstrapErrorCode = "missing_endpoint"
	StorageProviderBootstrapErrorInvalidConfig       StorageProviderBootstrapErrorCode = "invalid_config"
	StorageProviderBootstrapErrorConnectFailed       StorageProviderBootstrapErrorCode = "connect_failed"
)

type StorageProviderBootstrapError struct {
	Code         StorageProviderBootstrapErrorCode
	Mode         string
	EmulatorHost string
	Cause        error
}

func (e *StorageProviderBootstrapError) Error() string {
	if e == nil {
		return "object storage bootstrap failed"
	}
	return fmt.Sprintf(
		"object storage bootstrap failed (code=%s mode=%q emulator_host=%q): %v",
		e.Code,
		e.Mode,
		e.EmulatorHost,
		e.Cause,
	)
}

func (e *StorageProviderBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// resolveObjectStore opens the backend described by the environment. cfgErr is the
// error from objectstore.ResolveConfigFromEnv, if any.
func resolveObjectStore(ctx context.Context, log *logger.Logger, storageCfg objectstore.Config, cfgErr error) (objectstore.Store, error) {
	metrics := observability.Current()
	mode := string(storageCfg.Mode)
	if metrics != nil && mode != "" {
		metrics.SetObjectStorageModeActive(mode)
	}

	fail := func(err error, msg string) (objectstore.Store, error) {
		classified := classifyStorageProviderBootstrapError(storageCfg, err)
		code := storageProviderBootstrapErrorCode(classified)
		if metrics != nil {
			metrics.ObserveObjectStorageProviderBootstrap(mode, "error", string(code))
		}
		log.Error(
			msg,
			"mode", storageCfg.Mode,
			"mode_source", storageCfg.ModeSource(),
			"emulator_host", storageCfg.EmulatorHost,
			"error_code", code,
			"error", classified,
		)
		return nil, classified
	}

	if cfgErr != nil {
		return fail(cfgErr, "Object storage provider selection failed")
	}

	log.Info(
		"Selecting object storage provider",
		"mode", storageCfg.Mode,
		"mode_source", storageCfg.ModeSource(),
		"compatibility_fallback", storageCfg.CompatibilityFallback,
		"emulator_host", storageCfg.EmulatorHost,
	)

	store, err := newObjectStore(ctx, log, storageCfg)
	if err != nil {
		return fail(err, "Object storage provider bootstrap failed")
	}
	if metrics != nil {
		metrics.ObserveObjectStorageProviderBootstrap(mode, "success", "none")
	}
	return store, nil
}

func classifyStorageProviderBootstrapError(storageCfg objectstore.Config, err error) error {
	wrap := func(code StorageProviderBootstrapErrorCode) *StorageProviderBootstrapError {
		return &StorageProviderBootstrapError{
			Code:         code,
			Mode:         string(storageCfg.Mode),
			EmulatorHost: storageCfg.EmulatorHost,
			Cause:        err,
		}
	}

	var cfgErr *objectstore.ConfigError
	if errors.As(err, &cfgErr) {
		switch cfgErr.Code {
		case objectstore.ConfigErrorInvalidMode:
			e := wrap(StorageProviderBootstrapErrorInvalidMode)
			if e.Mode == "" {
				e.Mode = cfgErr.Mode
			}
			return e
		case objectstore.ConfigErrorMissingEmulatorHost:
			return wrap(StorageProviderBootstrapErrorMissingEmulatorHost)
		case objectstore.ConfigErrorInvalidEmulatorHost:
			return wrap(StorageProviderBootstrapErrorInvalidEmulatorHost)
		case objectstore.ConfigErrorMissingEndpoint:
			return wrap(StorageProviderBootstrapErrorMissingEndpoint)
		default:
			return wrap(StorageProviderBootstrapErrorInvalidConfig)
		}
	}
	return wrap(StorageProviderBootstrapErrorConnectFailed)
}

func storageProviderBootstrapErrorCode(err error) StorageProviderBootstrapErrorCode {
	var bootstrapErr *StorageProviderBootstrapError
	if errors.As(err, &bootstrapErr) {
		if bootstrapErr.Code != "" {
			return bootstrapErr.Code
		}
	}
	return StorageProviderBootstrapErrorConnectFailed
}
