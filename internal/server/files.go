package server

import (
	"net/http"
	"path/filepath"
	"strings"
)

// FileServer serves locally stored artifacts when no public object store
// is configured: finished videos from the video directory and streaming
// packages from the HLS directory.
type FileServer struct {
	videoDir string
	hlsDir   string
}

// NewFileServer creates a file server rooted at the given directories.
func NewFileServer(videoDir, hlsDir string) *FileServer {
	return &FileServer{videoDir: videoDir, hlsDir: hlsDir}
}

// ServeVideo handles GET /videos/{file} requests. Only flat filenames are
// accepted; anything with a path separator is rejected.
func (f *FileServer) ServeVideo(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("file")
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, filepath.Join(f.videoDir, name))
}

// ServeHLS handles GET /hls/{path...} requests for segment trees. The
// resolved path must stay inside the HLS directory.
func (f *FileServer) ServeHLS(w http.ResponseWriter, r *http.Request) {
	rel := r.PathValue("path")
	full, ok := resolveUnder(f.hlsDir, rel)
	if !ok {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, full)
}

// resolveUnder joins rel onto base and reports whether the cleaned result
// is still inside base.
func resolveUnder(base, rel string) (string, bool) {
	if rel == "" {
		return "", false
	}
	full := filepath.Join(base, filepath.FromSlash(rel))

	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", false
	}
	absFull, err := filepath.Abs(full)
	if err != nil {
		return "", false
	}
	if absFull != absBase && !strings.HasPrefix(absFull, absBase+string(filepath.Separator)) {
		return "", false
	}
	return full, true
}
