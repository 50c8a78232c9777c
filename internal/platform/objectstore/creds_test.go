package objectstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGCSClientOptions(t *testing.T) {
	require.Len(t, gcsClientOptions(Config{}), 1)
	require.Len(t, gcsClientOptions(Config{GCSCredentials: "  "}), 1)
	require.Len(t, gcsClientOptions(Config{GCSCredentials: `{"type":"service_account"}`}), 2)
	require.Len(t, gcsClientOptions(Config{GCSCredentials: "/secrets/sa.json"}), 2)
}

func TestResolveConfigReadsInlineCredentialsFirst(t *testing.T) {
	t.Setenv("OBJECT_STORAGE_MODE", "gcs")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "/secrets/sa.json")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS_JSON", `{"type":"service_account"}`)

	cfg, err := ResolveConfigFromEnv()
	require.NoError(t, err)
	require.Equal(t, `{"type":"service_account"}`, cfg.GCSCredentials)

	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS_JSON", "")
	cfg, err = ResolveConfigFromEnv()
	require.NoError(t, err)
	require.Equal(t, "/secrets/sa.json", cfg.GCSCredentials)
}
