package storage

import "context"

// Store persists artifact blobs under opaque keys and returns a
// retrievable locator. One implementation is selected at startup;
// implementations are never mixed within a job.
type Store interface {
	// Save writes content under key, overwriting any previous object,
	// and returns the URL the artifact can be fetched from.
	Save(ctx context.Context, key string, content []byte, contentType string) (string, error)
	Read(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// Content types for the artifacts this pipeline produces.
const (
	ContentTypeText = "text/plain; charset=utf-8"
	ContentTypeSRT  = "application/x-subrip"
	ContentTypeVTT  = "text/vtt"
)
