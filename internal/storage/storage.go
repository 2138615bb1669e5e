// Package storage provides the object-store abstraction used to publish
// generated artifacts. It defines the ObjectStore interface (port) and an
// S3 implementation supporting public and presigned URL issuance.
package storage

import "context"

// ObjectStore defines the interface for publishing artifacts.
//
// Whether uploads become publicly readable or require a time-limited
// signed URL is a deployment-time policy carried by the implementation,
// not a per-call choice. Signed URLs are impractical for multi-file
// streaming packages, so callers must consult Public before publishing a
// package tree and fall back to local serving otherwise.
type ObjectStore interface {
	// UploadFile uploads one local file under the given key with the given
	// content type and returns a retrievable URL: permanent when the store
	// is public, otherwise a time-limited signed URL.
	UploadFile(ctx context.Context, localPath, key, contentType string) (string, error)

	// UploadTree uploads every file under localDir, preserving relative
	// paths under prefix. Content types are chosen by file extension from
	// contentTypes, defaulting to application/octet-stream. Returns the
	// uploaded keys.
	UploadTree(ctx context.Context, localDir, prefix string, contentTypes map[string]string) ([]string, error)

	// PublicURL returns the permanent URL for a key. Only meaningful when
	// Public reports true.
	PublicURL(key string) string

	// Public reports whether uploaded objects are publicly readable.
	Public() bool
}
