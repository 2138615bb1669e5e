package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestNewFFmpegPackager_DefaultPath(t *testing.T) {
	p := NewFFmpegPackager("")
	if p.ffmpegPath != "ffmpeg" {
		t.Errorf("ffmpegPath = %q, want ffmpeg", p.ffmpegPath)
	}

	p = NewFFmpegPackager("/usr/local/bin/ffmpeg")
	if p.ffmpegPath != "/usr/local/bin/ffmpeg" {
		t.Errorf("ffmpegPath = %q", p.ffmpegPath)
	}
}

func TestFFmpegPackager_ThumbnailTrack_InvalidArgs(t *testing.T) {
	p := NewFFmpegPackager("")
	ctx := context.Background()

	_, err := p.ThumbnailTrack(ctx, "in.mp4", t.TempDir(), 0, 160)
	if !errors.Is(err, ErrInvalidSampleRate) {
		t.Errorf("fps=0 error = %v, want ErrInvalidSampleRate", err)
	}

	_, err = p.ThumbnailTrack(ctx, "in.mp4", t.TempDir(), 1, 0)
	if !errors.Is(err, ErrInvalidWidth) {
		t.Errorf("width=0 error = %v, want ErrInvalidWidth", err)
	}
}

func TestFFmpegPackager_FailingBinary(t *testing.T) {
	// "false" exits non-zero regardless of arguments, standing in for a
	// transcoder failure.
	p := NewFFmpegPackager("false")

	_, err := p.PackageStreaming(context.Background(), "in.mp4", t.TempDir())
	var ffErr *FFmpegError
	if !errors.As(err, &ffErr) {
		t.Fatalf("PackageStreaming() error = %v, want *FFmpegError", err)
	}
}

func TestFFmpegPackager_PackageStreaming_CreatesStemDir(t *testing.T) {
	// "true" exits zero without producing output, enough to observe the
	// directory contract.
	p := NewFFmpegPackager("true")
	outDir := t.TempDir()

	pkgDir, err := p.PackageStreaming(context.Background(), "/videos/a_dog-abc12345.mp4", outDir)
	if err != nil {
		t.Fatalf("PackageStreaming() error = %v", err)
	}

	want := filepath.Join(outDir, "a_dog-abc12345")
	if pkgDir != want {
		t.Errorf("package dir = %q, want %q", pkgDir, want)
	}
	if _, err := os.Stat(pkgDir); err != nil {
		t.Errorf("package dir not created: %v", err)
	}
}

func TestFFmpegPackager_ThumbnailTrack_BuildsIndexFromSamples(t *testing.T) {
	// A zero-exit stand-in binary produces no stills, so seed the output
	// directory as if sampling had run.
	p := NewFFmpegPackager("true")
	outDir := t.TempDir()
	for _, name := range []string{"thumb-0001.jpg", "thumb-0002.jpg"} {
		if err := os.WriteFile(filepath.Join(outDir, name), []byte("jpg"), 0600); err != nil {
			t.Fatal(err)
		}
	}

	indexPath, err := p.ThumbnailTrack(context.Background(), "in.mp4", outDir, 1, 160)
	if err != nil {
		t.Fatalf("ThumbnailTrack() error = %v", err)
	}

	if filepath.Base(indexPath) != "thumbs.vtt" {
		t.Errorf("index path = %q, want thumbs.vtt", indexPath)
	}
	data, err := os.ReadFile(indexPath)
	if err != nil {
		t.Fatalf("read index: %v", err)
	}
	want := "WEBVTT\n\n" +
		"00:00:00.000 --> 00:00:01.000\nthumb-0001.jpg\n\n" +
		"00:00:01.000 --> 00:00:02.000\nthumb-0002.jpg\n\n"
	if string(data) != want {
		t.Errorf("index =\n%q\nwant\n%q", string(data), want)
	}
}

func TestFFmpegPackager_ThumbnailTrack_NoSamples(t *testing.T) {
	p := NewFFmpegPackager("true")

	_, err := p.ThumbnailTrack(context.Background(), "in.mp4", t.TempDir(), 1, 160)
	if !errors.Is(err, ErrNoThumbnails) {
		t.Errorf("ThumbnailTrack() error = %v, want ErrNoThumbnails", err)
	}
}
