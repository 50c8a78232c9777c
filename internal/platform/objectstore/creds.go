package objectstore

import (
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// gcsClientOptions builds storage client options for real GCS. Credentials that
// look like a JSON document are used inline; anything else is a key file path.
func gcsClientOptions(cfg Config) []option.ClientOption {
	opts := []option.ClientOption{option.WithScopes(storage.ScopeReadWrite)}
	creds := strings.TrimSpace(cfg.GCSCredentials)
	switch {
	case creds == "":
	case strings.HasPrefix(creds, "{"):
		opts = append(opts, option.WithCredentialsJSON([]byte(creds)))
	default:
		opts = append(opts, option.WithCredentialsFile(creds))
	}
	return opts
}
