package objectstore

import (
	"errors"
	"testing"
)

func clearStorageEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"OBJECT_STORAGE_MODE", "STORAGE_EMULATOR_HOST", "S3_ENDPOINT", "OBJECT_STORAGE_PUBLIC_BASE_URL"} {
		t.Setenv(k, "")
	}
}

func TestResolveConfigFromEnvDefaultLocal(t *testing.T) {
	clearStorageEnv(t)

	cfg, err := ResolveConfigFromEnv()
	if err != nil {
		t.Fatalf("ResolveConfigFromEnv: %v", err)
	}
	if cfg.Mode != ModeLocal {
		t.Fatalf("mode: want=%q got=%q", ModeLocal, cfg.Mode)
	}
	if cfg.CompatibilityFallback {
		t.Fatalf("compatibility fallback: want=false got=true")
	}
}

func TestResolveConfigFromEnvCompatibilityFallback(t *testing.T) {
	clearStorageEnv(t)
	t.Setenv("STORAGE_EMULATOR_HOST", "http://fake-gcs:4443")

	cfg, err := ResolveConfigFromEnv()
	if err != nil {
		t.Fatalf("ResolveConfigFromEnv: %v", err)
	}
	if cfg.Mode != ModeGCSEmulator || !cfg.CompatibilityFallback {
		t.Fatalf("want emulator via fallback, got mode=%q fallback=%v", cfg.Mode, cfg.CompatibilityFallback)
	}
	if cfg.ModeSource() != "compatibility_fallback" {
		t.Fatalf("mode source: %q", cfg.ModeSource())
	}
}

func TestResolveConfigFromEnvErrors(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		code ConfigErrorCode
	}{
		{"invalid mode", map[string]string{"OBJECT_STORAGE_MODE": "ftp"}, ConfigErrorInvalidMode},
		{"emulator without host", map[string]string{"OBJECT_STORAGE_MODE": "gcs_emulator"}, ConfigErrorMissingEmulatorHost},
		{"emulator bad host", map[string]string{"OBJECT_STORAGE_MODE": "gcs_emulator", "STORAGE_EMULATOR_HOST": "fake-gcs:4443"}, ConfigErrorInvalidEmulatorHost},
		{"s3 without endpoint", map[string]string{"OBJECT_STORAGE_MODE": "s3"}, ConfigErrorMissingEndpoint},
		{"bad public url", map[string]string{"OBJECT_STORAGE_PUBLIC_BASE_URL": "/relative"}, ConfigErrorInvalidPublicURL},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearStorageEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := ResolveConfigFromEnv()
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigError, got %T (%v)", err, err)
			}
			if cfgErr.Code != tc.code {
				t.Fatalf("code: want=%q got=%q", tc.code, cfgErr.Code)
			}
			if cfgErr.Error() == "" {
				t.Fatalf("empty error message")
			}
		})
	}
}

func TestMediaURLEscapesKey(t *testing.T) {
	got := mediaURL("http://localhost:4443/", "artifacts", "runs/abc/final.mp4")
	want := "http://localhost:4443/storage/v1/b/artifacts/o/runs%2Fabc%2Ffinal.mp4?alt=media"
	if got != want {
		t.Fatalf("media url:\nwant=%s\ngot =%s", want, got)
	}
}

func TestContentTypeForKey(t *testing.T) {
	cases := map[string]string{
		"runs/1/final.mp4":     "video/mp4",
		"runs/1/preview/0.png": "image/png",
		"runs/1/scene.py":      "text/x-python",
		"datasets/a.csv":       "text/csv",
		"blob":                 "application/octet-stream",
	}
	for key, want := range cases {
		if got := contentTypeForKey(key); got != want {
			t.Fatalf("%s: want=%s got=%s", key, want, got)
		}
	}
}
