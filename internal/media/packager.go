// Package media provides streaming repackaging and thumbnail-track
// generation for finished videos, implemented on top of the ffmpeg CLI.
package media

import "context"

// PackageContentTypes maps the file extensions found in a streaming
// package to their upload content types.
var PackageContentTypes = map[string]string{
	".ts":   "video/MP2T",
	".m3u8": "application/x-mpegURL",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
	".vtt":  "text/vtt",
}

// Packager defines the interface for post-processing a finished video.
// Both operations are enhancements: the pipeline logs their failures and
// still completes the job.
type Packager interface {
	// PackageStreaming repackages the input video into an HLS package
	// (index.m3u8 plus fixed-duration segments) under outputDir and
	// returns the package directory.
	PackageStreaming(ctx context.Context, inputVideo, outputDir string) (string, error)

	// ThumbnailTrack samples the input video at fps frames per second into
	// width-pixel-wide stills under outputDir and writes a WEBVTT index
	// where cue i covers [i/fps, (i+1)/fps) and references still i.
	// Returns the index file path.
	ThumbnailTrack(ctx context.Context, inputVideo, outputDir string, fps, width int) (string, error)
}
