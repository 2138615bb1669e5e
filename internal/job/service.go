package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/veostudio/veostudio-api/internal/generator"
	"github.com/veostudio/veostudio-api/internal/job/id"
	"github.com/veostudio/veostudio-api/internal/media"
	"github.com/veostudio/veostudio-api/internal/storage"
)

// ErrPollTimeout is returned when the engine does not complete an
// operation within the configured poll timeout.
var ErrPollTimeout = errors.New("generation timed out waiting for the engine")

// GenerateInput contains the input parameters for starting a job.
type GenerateInput struct {
	// Prompt is the text driving generation.
	Prompt string
	// NegativePrompt describes content to steer away from. Optional.
	NegativePrompt string
	// Source records the prompt's provenance.
	Source Source
}

// GenerateService orchestrates the prompt-to-video pipeline for one job:
// submit, poll, fetch, publish the primary artifact, then best-effort
// streaming packaging and thumbnails. Each job is driven by exactly one
// goroutine; the record store is only ever written by that goroutine, so
// readers polling job status observe stage transitions in order.
type GenerateService struct {
	store    Store
	gen      generator.Generator
	objects  storage.ObjectStore
	packager media.Packager
	logger   *slog.Logger

	videoDir     string
	hlsDir       string
	pollInterval time.Duration
	pollTimeout  time.Duration
	thumbFPS     int
	thumbWidth   int
	genOpts      generator.Options
}

// ServiceOption configures a GenerateService.
type ServiceOption func(*GenerateService)

// WithPollInterval sets the wait between engine polls.
func WithPollInterval(d time.Duration) ServiceOption {
	return func(s *GenerateService) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithPollTimeout bounds the total time spent waiting for the engine.
// Zero (the default) waits indefinitely, matching a pipeline that trusts
// the engine to eventually resolve every operation.
func WithPollTimeout(d time.Duration) ServiceOption {
	return func(s *GenerateService) {
		s.pollTimeout = d
	}
}

// WithArtifactDirs sets the local directories for downloaded videos and
// streaming packages.
func WithArtifactDirs(videoDir, hlsDir string) ServiceOption {
	return func(s *GenerateService) {
		if videoDir != "" {
			s.videoDir = videoDir
		}
		if hlsDir != "" {
			s.hlsDir = hlsDir
		}
	}
}

// WithThumbnailParams sets the thumbnail sampling rate and width.
func WithThumbnailParams(fps, width int) ServiceOption {
	return func(s *GenerateService) {
		if fps > 0 {
			s.thumbFPS = fps
		}
		if width > 0 {
			s.thumbWidth = width
		}
	}
}

// WithGenerateOptions sets the engine parameters used for every job.
func WithGenerateOptions(opts generator.Options) ServiceOption {
	return func(s *GenerateService) {
		s.genOpts = opts
	}
}

// NewGenerateService creates a GenerateService with the given
// collaborators.
func NewGenerateService(
	store Store,
	gen generator.Generator,
	objects storage.ObjectStore,
	packager media.Packager,
	logger *slog.Logger,
	opts ...ServiceOption,
) *GenerateService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &GenerateService{
		store:        store,
		gen:          gen,
		objects:      objects,
		packager:     packager,
		logger:       logger,
		videoDir:     "videos",
		hlsDir:       "hls",
		pollInterval: 5 * time.Second,
		thumbFPS:     1,
		thumbWidth:   160,
		genOpts: generator.Options{
			AspectRatio:      "16:9",
			DurationSeconds:  6,
			PersonGeneration: "allow_adult",
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateJob creates a queued job record and returns it. A failure to
// persist the record is logged but does not block the caller: the
// pipeline can still run from the in-memory job, status visibility is
// just degraded.
func (s *GenerateService) CreateJob(ctx context.Context, input GenerateInput) *Job {
	j := New(input.Prompt, input.NegativePrompt, input.Source)

	if err := s.store.Create(ctx, j); err != nil {
		s.logger.Error("failed to persist job record",
			slog.String("job_id", j.ID),
			slog.String("error", err.Error()),
		)
	} else {
		s.logger.Info("job created",
			slog.String("job_id", j.ID),
			slog.String("prompt_source", string(j.PromptSource)),
		)
	}

	return j
}

// GetJob retrieves a job by ID.
func (s *GenerateService) GetJob(ctx context.Context, jobID string) (*Job, error) {
	return s.store.Get(ctx, jobID)
}

// ListJobs returns the total job count and one page ordered by creation
// time, most recent first.
func (s *GenerateService) ListJobs(ctx context.Context, page, perPage int) (int64, []*Job, error) {
	return s.store.List(ctx, page, perPage)
}

// Run drives one job through the pipeline to a terminal state. Fatal
// stage errors are converted to a single message on the job record; they
// never propagate as panics or crash the process. The job passed in is
// owned by this call.
func (s *GenerateService) Run(ctx context.Context, j *Job) error {
	if err := s.pipeline(ctx, j); err != nil {
		s.logger.Error("generation pipeline failed",
			slog.String("job_id", j.ID),
			slog.String("error", err.Error()),
		)
		s.update(ctx, j.ID, Update{
			Status: StatusOf(StatusError),
			Error:  StringOf(err.Error()),
		})
		return err
	}
	return nil
}

// pipeline runs the stage sequence. Any returned error is fatal for the
// job; enhancement failures are handled inside and never surface here.
func (s *GenerateService) pipeline(ctx context.Context, j *Job) error {
	fileName := artifactFileName(j.Prompt, j.ID)
	localPath := filepath.Join(s.videoDir, fileName)
	key := "videos/" + fileName

	// Submit
	s.update(ctx, j.ID, Update{Status: StatusOf(StatusRunning), Progress: IntOf(5)})

	genOpts := s.genOpts
	genOpts.NegativePrompt = j.NegativePrompt
	op, err := s.gen.Start(ctx, j.Prompt, genOpts)
	if err != nil {
		return fmt.Errorf("submit generation: %w", err)
	}

	// Poll
	var deadline time.Time
	if s.pollTimeout > 0 {
		deadline = time.Now().Add(s.pollTimeout)
	}
	progress := 5
	for !op.IsDone() {
		if !deadline.IsZero() && time.Now().After(deadline) {
			return fmt.Errorf("%w after %s", ErrPollTimeout, s.pollTimeout)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("poll generation: %w", ctx.Err())
		case <-time.After(s.pollInterval):
		}
		progress = min(progress+10, 70)
		s.update(ctx, j.ID, Update{Progress: IntOf(progress)})

		op, err = s.gen.Poll(ctx, op)
		if err != nil {
			return fmt.Errorf("poll generation: %w", err)
		}
	}
	if msg := op.Err(); msg != "" {
		return fmt.Errorf("generation failed: %s", msg)
	}

	// Fetch
	if err := os.MkdirAll(s.videoDir, 0750); err != nil {
		return fmt.Errorf("create video directory: %w", err)
	}
	if err := s.gen.Fetch(ctx, op, localPath); err != nil {
		return fmt.Errorf("fetch result: %w", err)
	}
	s.update(ctx, j.ID, Update{Progress: IntOf(80), LocalPath: StringOf(localPath)})

	// Publish primary. Without a retrievable artifact the job has no
	// value, so this upload is on the critical path.
	artifactURL, err := s.objects.UploadFile(ctx, localPath, key, "video/mp4")
	if err != nil {
		return fmt.Errorf("publish primary artifact: %w", err)
	}
	s.update(ctx, j.ID, Update{
		Progress:    IntOf(88),
		ArtifactURL: StringOf(artifactURL),
		ArtifactKey: StringOf(key),
	})

	// Post-process. Streaming packaging and thumbnails are enhancements:
	// their failure is logged and the job still completes with the
	// primary artifact alone.
	if enh := s.postProcess(ctx, j, localPath); enh.err != nil {
		s.logger.Warn("streaming package generation failed",
			slog.String("job_id", j.ID),
			slog.String("error", enh.err.Error()),
		)
	} else {
		s.update(ctx, j.ID, Update{
			StreamURL:     StringOf(enh.streamURL),
			ThumbTrackURL: StringOf(enh.thumbURL),
		})
	}

	// Finalize
	s.update(ctx, j.ID, Update{Status: StatusOf(StatusDone), Progress: IntOf(100)})

	s.logger.Info("job completed",
		slog.String("job_id", j.ID),
		slog.String("artifact_url", artifactURL),
	)
	return nil
}

// enhancement is the outcome of the post-processing stage. The err field
// is inspected, logged, and deliberately discarded by the pipeline.
type enhancement struct {
	streamURL string
	thumbURL  string
	err       error
}

// postProcess packages the finished video for streaming and builds the
// thumbnail track, then makes both retrievable. Signed URLs cannot cover
// a package of many segment files, so the tree is only uploaded when the
// object store is public; otherwise both URLs point at the local serving
// routes.
func (s *GenerateService) postProcess(ctx context.Context, j *Job, localPath string) enhancement {
	shortID := id.Short(j.ID)

	pkgDir, err := s.packager.PackageStreaming(ctx, localPath, filepath.Join(s.hlsDir, shortID))
	if err != nil {
		return enhancement{err: fmt.Errorf("package streaming: %w", err)}
	}

	vttPath, err := s.packager.ThumbnailTrack(ctx, localPath, filepath.Join(pkgDir, "thumbs"), s.thumbFPS, s.thumbWidth)
	if err != nil {
		return enhancement{err: fmt.Errorf("generate thumbnail track: %w", err)}
	}

	relDir := shortID + "/" + filepath.Base(pkgDir)
	vttName := filepath.Base(vttPath)

	if s.objects.Public() {
		prefix := "hls/" + relDir
		if _, err := s.objects.UploadTree(ctx, pkgDir, prefix, media.PackageContentTypes); err != nil {
			return enhancement{err: fmt.Errorf("publish streaming package: %w", err)}
		}
		return enhancement{
			streamURL: s.objects.PublicURL(prefix + "/index.m3u8"),
			thumbURL:  s.objects.PublicURL(prefix + "/thumbs/" + vttName),
		}
	}

	return enhancement{
		streamURL: "/hls/" + relDir + "/index.m3u8",
		thumbURL:  "/hls/" + relDir + "/thumbs/" + vttName,
	}
}

// update applies a partial update to the job record. Persistence failures
// only degrade external status visibility; the pipeline continues from
// its in-memory state, so they are logged and swallowed here.
func (s *GenerateService) update(ctx context.Context, jobID string, u Update) {
	if err := s.store.Update(ctx, jobID, u); err != nil {
		s.logger.Warn("failed to update job record",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// artifactFileName derives the primary artifact's filename from the
// prompt and the job ID: a sanitized prompt prefix for readability plus a
// job ID fragment for uniqueness.
func artifactFileName(prompt, jobID string) string {
	base := strings.Join(strings.Fields(prompt), "_")
	base = unsafeNameChars.ReplaceAllString(base, "")
	if len(base) > 40 {
		base = base[:40]
	}
	base = strings.Trim(base, "._-")
	if base == "" {
		base = "video"
	}
	return fmt.Sprintf("%s-%s.mp4", base, id.Short(jobID))
}
