package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Static errors for media operations.
var (
	// ErrInvalidSampleRate is returned when the thumbnail rate is not positive.
	ErrInvalidSampleRate = errors.New("invalid sample rate: must be positive")
	// ErrInvalidWidth is returned when the thumbnail width is not positive.
	ErrInvalidWidth = errors.New("invalid width: must be positive")
	// ErrNoThumbnails is returned when sampling produced no images.
	ErrNoThumbnails = errors.New("no thumbnails produced")
)

// FFmpegPackager implements Packager using the ffmpeg CLI.
type FFmpegPackager struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
}

// NewFFmpegPackager creates a new FFmpegPackager.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found via PATH).
func NewFFmpegPackager(ffmpegPath string) *FFmpegPackager {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegPackager{ffmpegPath: ffmpegPath}
}

// Compile-time check that FFmpegPackager implements Packager.
var _ Packager = (*FFmpegPackager)(nil)

// PackageStreaming repackages the input video into an HLS package under
// outputDir/<stem> and returns that directory. Segments are 2 seconds,
// the playlist keeps every segment.
func (p *FFmpegPackager) PackageStreaming(ctx context.Context, inputVideo, outputDir string) (string, error) {
	stem := strings.TrimSuffix(filepath.Base(inputVideo), filepath.Ext(inputVideo))
	pkgDir := filepath.Join(outputDir, stem)
	if err := os.MkdirAll(pkgDir, 0750); err != nil {
		return "", fmt.Errorf("create package directory: %w", err)
	}

	args := []string{
		"-i", inputVideo,
		"-c:v", "libx264",
		"-c:a", "aac",
		"-f", "hls",
		"-hls_time", "2",
		"-hls_list_size", "0",
		"-hls_segment_filename", filepath.Join(pkgDir, "%03d.ts"),
		filepath.Join(pkgDir, "index.m3u8"),
	}
	if err := p.runFFmpeg(ctx, args); err != nil {
		return "", err
	}

	return pkgDir, nil
}

// ThumbnailTrack samples the input video into JPEG stills and writes the
// WEBVTT index referencing them. Returns the index file path.
func (p *FFmpegPackager) ThumbnailTrack(ctx context.Context, inputVideo, outputDir string, fps, width int) (string, error) {
	if fps <= 0 {
		return "", fmt.Errorf("%w: fps=%d", ErrInvalidSampleRate, fps)
	}
	if width <= 0 {
		return "", fmt.Errorf("%w: width=%d", ErrInvalidWidth, width)
	}

	if err := os.MkdirAll(outputDir, 0750); err != nil {
		return "", fmt.Errorf("create thumbnail directory: %w", err)
	}

	args := []string{
		"-i", inputVideo,
		"-vf", fmt.Sprintf("fps=%d,scale=%d:-1", fps, width),
		"-q:v", "3",
		filepath.Join(outputDir, "thumb-%04d.jpg"),
	}
	if err := p.runFFmpeg(ctx, args); err != nil {
		return "", err
	}

	images, err := listImages(outputDir)
	if err != nil {
		return "", err
	}
	if len(images) == 0 {
		return "", ErrNoThumbnails
	}

	indexPath := filepath.Join(outputDir, "thumbs.vtt")
	if err := WriteThumbnailIndex(indexPath, images, fps); err != nil {
		return "", err
	}
	return indexPath, nil
}

// listImages returns the image filenames in dir, sorted by name. The
// sampling pattern is zero-padded, so lexical order is frame order.
func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read thumbnail directory: %w", err)
	}

	var images []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".webp":
			images = append(images, e.Name())
		}
	}
	return images, nil
}

// runFFmpeg executes ffmpeg with the given arguments and returns an error
// containing stderr output if the command fails. Output files are always
// overwritten.
func (p *FFmpegPackager) runFFmpeg(ctx context.Context, args []string) error {
	args = append([]string{"-y"}, args...)

	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return nil
}

// FFmpegError represents an error from running ffmpeg, including the
// stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}
