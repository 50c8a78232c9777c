package app

import (
	"context"
	"errors"
	"testing"

	"github.com/yungbote/chartmotion-backend/internal/platform/logger"
	"github.com/yungbote/chartmotion-backend/internal/platform/objectstore"
)

func TestClassifyStorageProviderBootstrapError(t *testing.T) {
	cases := []struct {
		name string
		cfg  objectstore.Config
		err  error
		want StorageProviderBootstrapErrorCode
	}{
		{
			name: "invalid mode",
			err:  &objectstore.ConfigError{Code: objectstore.ConfigErrorInvalidMode, Mode: "bad-mode"},
			want: StorageProviderBootstrapErrorInvalidMode,
		},
		{
			name: "missing emulator host",
			cfg:  objectstore.Config{Mode: objectstore.ModeGCSEmulator},
			err:  &objectstore.ConfigError{Code: objectstore.ConfigErrorMissingEmulatorHost},
			want: StorageProviderBootstrapErrorMissingEmulatorHost,
		},
		{
			name: "invalid emulator host",
			cfg:  objectstore.Config{Mode: objectstore.ModeGCSEmulator, EmulatorHost: "fake-gcs:4443"},
			err:  &objectstore.ConfigError{Code: objectstore.ConfigErrorInvalidEmulatorHost, Value: "fake-gcs:4443"},
			want: StorageProviderBootstrapErrorInvalidEmulatorHost,
		},
		{
			name: "missing s3 endpoint",
			cfg:  objectstore.Config{Mode: objectstore.ModeS3},
			err:  &objectstore.ConfigError{Code: objectstore.ConfigErrorMissingEndpoint},
			want: StorageProviderBootstrapErrorMissingEndpoint,
		},
		{
			name: "bad public url",
			cfg:  objectstore.Config{Mode: objectstore.ModeLocal},
			err:  &objectstore.ConfigError{Code: objectstore.ConfigErrorInvalidPublicURL},
			want: StorageProviderBootstrapErrorInvalidConfig,
		},
		{
			name: "connect failed",
			cfg:  objectstore.Config{Mode: objectstore.ModeGCS},
			err:  errors.New("dial tcp: connection refused"),
			want: StorageProviderBootstrapErrorConnectFailed,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := classifyStorageProviderBootstrapError(tc.cfg, tc.err)
			var got *StorageProviderBootstrapError
			if !errors.As(err, &got) {
				t.Fatalf("expected StorageProviderBootstrapError, got=%T", err)
			}
			if got.Code != tc.want {
				t.Fatalf("code: want=%q got=%q", tc.want, got.Code)
			}
			if !errors.Is(err, tc.err) {
				t.Fatalf("cause not preserved")
			}
		})
	}
}

func TestClassifyInvalidModeKeepsRawMode(t *testing.T) {
	err := classifyStorageProviderBootstrapError(objectstore.Config{}, &objectstore.ConfigError{
		Code: objectstore.ConfigErrorInvalidMode,
		Mode: "ftp",
	})
	var got *StorageProviderBootstrapError
	if !errors.As(err, &got) {
		t.Fatalf("expected StorageProviderBootstrapError, got=%T", err)
	}
	if got.Mode != "ftp" {
		t.Fatalf("mode: want=%q got=%q", "ftp", got.Mode)
	}
}

func TestResolveObjectStoreConfigError(t *testing.T) {
	t.Setenv("OBJECT_STORAGE_MODE", "gcs_emulator")
	t.Setenv("STORAGE_EMULATOR_HOST", "")

	orig := newObjectStore
	t.Cleanup(func() { newObjectStore = orig })
	called := false
	newObjectStore = func(context.Context, *logger.Logger, objectstore.Config) (objectstore.Store, error) {
		called = true
		return nil, nil
	}

	cfg, cfgErr := objectstore.ResolveConfigFromEnv()
	_, err := resolveObjectStore(context.Background(), logger.Nop(), cfg, cfgErr)
	if err == nil {
		t.Fatalf("resolveObjectStore: expected error, got nil")
	}
	if called {
		t.Fatalf("store opened despite a config error")
	}
	if code := storageProviderBootstrapErrorCode(err); code != StorageProviderBootstrapErrorMissingEmulatorHost {
		t.Fatalf("code: want=%q got=%q", StorageProviderBootstrapErrorMissingEmulatorHost, code)
	}
}

func TestResolveObjectStorePassesConfig(t *testing.T) {
	t.Setenv("OBJECT_STORAGE_MODE", "s3")
	t.Setenv("S3_ENDPOINT", "minio:9000")
	t.Setenv("S3_USE_SSL", "false")

	orig := newObjectStore
	t.Cleanup(func() { newObjectStore = orig })
	var captured objectstore.Config
	newObjectStore = func(_ context.Context, _ *logger.Logger, cfg objectstore.Config) (objectstore.Store, error) {
		captured = cfg
		return nil, errors.New("connection refused")
	}

	cfg, cfgErr := objectstore.ResolveConfigFromEnv()
	if cfgErr != nil {
		t.Fatalf("ResolveConfigFromEnv: %v", cfgErr)
	}
	_, err := resolveObjectStore(context.Background(), logger.Nop(), cfg, nil)
	if code := storageProviderBootstrapErrorCode(err); code != StorageProviderBootstrapErrorConnectFailed {
		t.Fatalf("code: want=%q got=%q", StorageProviderBootstrapErrorConnectFailed, code)
	}
	if captured.Mode != objectstore.ModeS3 || captured.S3.Endpoint != "minio:9000" || captured.S3.UseSSL {
		t.Fatalf("unexpected config passed to store: %+v", captured)
	}
}

func TestResolveObjectStoreLocal(t *testing.T) {
	root := t.TempDir()
	cfg := objectstore.Config{Mode: objectstore.ModeLocal, LocalRoot: root, DatasetBucket: "d", ArtifactBucket: "a"}
	store, err := resolveObjectStore(context.Background(), logger.Nop(), cfg, nil)
	if err != nil {
		t.Fatalf("resolveObjectStore: %v", err)
	}
	if store.Mode() != objectstore.ModeLocal {
		t.Fatalf("mode: want=%q got=%q", objectstore.ModeLocal, store.Mode())
	}
}
