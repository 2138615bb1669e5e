package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalStore is the no-bucket fallback: artifacts stay where the pipeline
// wrote them and URLs point at the server's own file routes. Public
// reports false so streaming packages are served locally instead of being
// uploaded.
type LocalStore struct {
	videoDir string
	hlsDir   string
}

// NewLocalStore creates a store that serves artifacts from the given
// local directories.
func NewLocalStore(videoDir, hlsDir string) *LocalStore {
	return &LocalStore{videoDir: videoDir, hlsDir: hlsDir}
}

// UploadFile verifies the artifact exists on disk and returns its local
// serving route. Nothing is copied; the pipeline already wrote the file
// into the video directory.
func (s *LocalStore) UploadFile(_ context.Context, localPath, key, _ string) (string, error) {
	if _, err := os.Stat(localPath); err != nil {
		return "", fmt.Errorf("storage: artifact missing: %w", err)
	}
	return "/videos/" + filepath.Base(key), nil
}

// UploadTree is a no-op for local serving; the package tree is already
// under the HLS directory. Returns no keys.
func (s *LocalStore) UploadTree(_ context.Context, _, _ string, _ map[string]string) ([]string, error) {
	return nil, nil
}

// PublicURL returns the local serving route for a key.
func (s *LocalStore) PublicURL(key string) string {
	return "/" + key
}

// Public reports false: local artifacts are served by this process, not a
// public bucket.
func (s *LocalStore) Public() bool {
	return false
}
