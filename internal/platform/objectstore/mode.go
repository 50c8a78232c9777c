package objectstore

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/yungbote/chartmotion-backend/internal/platform/envutil"
)

type Mode string

const (
	ModeLocal       Mode = "local"
	ModeGCS         Mode = "gcs"
	ModeGCSEmulator Mode = "gcs_emulator"
	ModeS3          Mode = "s3"
)

func IsSupportedMode(mode Mode) bool {
	switch mode {
	case ModeLocal, ModeGCS, ModeGCSEmulator, ModeS3:
		return true
	default:
		return false
	}
}

type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

type Config struct {
	Mode                  Mode
	EmulatorHost          string
	CompatibilityFallback bool
	LocalRoot             string
	DatasetBucket         string
	ArtifactBucket        string
	PublicBaseURL         string
	// GCSCredentials is inline service-account JSON or a path to one. Empty uses ADC.
	GCSCredentials string
	S3             S3Config
}

func (cfg Config) IsEmulatorMode() bool { return cfg.Mode == ModeGCSEmulator }

func (cfg Config) ModeSource() string {
	if cfg.CompatibilityFallback {
		return "compatibility_fallback"
	}
	return "explicit_or_default"
}

type ConfigErrorCode string

const (
	ConfigErrorInvalidMode         ConfigErrorCode = "invalid_mode"
	ConfigErrorMissingEmulatorHost ConfigErrorCode = "missing_emulator_host"
	ConfigErrorInvalidEmulatorHost ConfigErrorCode = "invalid_emulator_host"
	ConfigErrorMissingEndpoint     ConfigErrorCode = "missing_endpoint"
	ConfigErrorInvalidPublicURL    ConfigErrorCode = "invalid_public_base_url"
)

type ConfigError struct {
	Code  ConfigErrorCode
	Mode  string
	Value string
	Cause error
}

func (e *ConfigError) Error() string {
	if e == nil {
		return "invalid object storage config"
	}
	switch e.Code {
	case ConfigErrorInvalidMode:
		return fmt.Sprintf("invalid OBJECT_STORAGE_MODE=%q (allowed: %q, %q, %q, %q)", e.Mode, ModeLocal, ModeGCS, ModeGCSEmulator, ModeS3)
	case ConfigErrorMissingEmulatorHost:
		return fmt.Sprintf("OBJECT_STORAGE_MODE=%q requires STORAGE_EMULATOR_HOST to be set", ModeGCSEmulator)
	case ConfigErrorInvalidEmulatorHost:
		return fmt.Sprintf("invalid STORAGE_EMULATOR_HOST=%q; expected absolute URL like http://fake-gcs:4443", e.Value)
	case ConfigErrorMissingEndpoint:
		return fmt.Sprintf("OBJECT_STORAGE_MODE=%q requires S3_ENDPOINT to be set", ModeS3)
	case ConfigErrorInvalidPublicURL:
		return fmt.Sprintf("invalid OBJECT_STORAGE_PUBLIC_BASE_URL=%q; expected absolute URL", e.Value)
	default:
		return "invalid object storage config"
	}
}

func (e *ConfigError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func ResolveConfigFromEnv() (Config, error) {
	cfg := Config{
		EmulatorHost:   envutil.String("STORAGE_EMULATOR_HOST", ""),
		LocalRoot:      envutil.String("LOCAL_STORAGE_ROOT", "./artifacts"),
		DatasetBucket:  envutil.String("DATASET_BUCKET_NAME", "chartmotion-datasets"),
		ArtifactBucket: envutil.String("ARTIFACT_BUCKET_NAME", "chartmotion-artifacts"),
		PublicBaseURL:  strings.TrimRight(envutil.String("OBJECT_STORAGE_PUBLIC_BASE_URL", ""), "/"),
		GCSCredentials: envutil.String("GOOGLE_APPLICATION_CREDENTIALS_JSON", envutil.String("GOOGLE_APPLICATION_CREDENTIALS", "")),
		S3: S3Config{
			Endpoint:  envutil.String("S3_ENDPOINT", ""),
			Region:    envutil.String("S3_REGION", ""),
			AccessKey: envutil.String("S3_ACCESS_KEY", ""),
			SecretKey: envutil.String("S3_SECRET_KEY", ""),
			UseSSL:    envutil.Bool("S3_USE_SSL", true),
		},
	}

	raw := envutil.String("OBJECT_STORAGE_MODE", "")
	switch mode := Mode(strings.ToLower(raw)); mode {
	case "":
		// A bare STORAGE_EMULATOR_HOST still selects the emulator, as older deployments expect.
		if cfg.EmulatorHost != "" {
			cfg.Mode = ModeGCSEmulator
			cfg.CompatibilityFallback = true
		} else {
			cfg.Mode = ModeLocal
		}
	case ModeLocal, ModeGCS, ModeGCSEmulator, ModeS3:
		cfg.Mode = mode
	default:
		return cfg, &ConfigError{Code: ConfigErrorInvalidMode, Mode: raw}
	}

	if err := ValidateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func ValidateConfig(cfg Config) error {
	if !IsSupportedMode(cfg.Mode) {
		return &ConfigError{Code: ConfigErrorInvalidMode, Mode: string(cfg.Mode)}
	}
	if cfg.PublicBaseURL != "" && !isAbsoluteURL(cfg.PublicBaseURL) {
		return &ConfigError{Code: ConfigErrorInvalidPublicURL, Mode: string(cfg.Mode), Value: cfg.PublicBaseURL}
	}
	switch cfg.Mode {
	case ModeGCSEmulator:
		if cfg.EmulatorHost == "" {
			return &ConfigError{Code: ConfigErrorMissingEmulatorHost, Mode: string(cfg.Mode)}
		}
		if !isAbsoluteURL(cfg.EmulatorHost) {
			return &ConfigError{Code: ConfigErrorInvalidEmulatorHost, Mode: string(cfg.Mode), Value: cfg.EmulatorHost}
		}
	case ModeS3:
		if strings.TrimSpace(cfg.S3.Endpoint) == "" {
			return &ConfigError{Code: ConfigErrorMissingEndpoint, Mode: string(cfg.Mode)}
		}
	}
	return nil
}

func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && strings.TrimSpace(u.Scheme) != "" && strings.TrimSpace(u.Host) != ""
}
