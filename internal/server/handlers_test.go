package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/veostudio/veostudio-api/internal/generator"
	"github.com/veostudio/veostudio-api/internal/job"
	"github.com/veostudio/veostudio-api/internal/prompt"
)

// mockGenerator implements generator.Generator for testing.
type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Start(ctx context.Context, p string, opts generator.Options) (generator.Operation, error) {
	args := m.Called(ctx, p, opts)
	return args.Get(0).(generator.Operation), args.Error(1)
}

func (m *mockGenerator) Poll(ctx context.Context, op generator.Operation) (generator.Operation, error) {
	args := m.Called(ctx, op)
	return args.Get(0).(generator.Operation), args.Error(1)
}

func (m *mockGenerator) Fetch(ctx context.Context, op generator.Operation, destPath string) error {
	args := m.Called(ctx, op, destPath)
	return args.Error(0)
}

// mockObjectStore implements storage.ObjectStore for testing.
type mockObjectStore struct {
	mock.Mock
}

func (m *mockObjectStore) UploadFile(ctx context.Context, localPath, key, contentType string) (string, error) {
	args := m.Called(ctx, localPath, key, contentType)
	return args.String(0), args.Error(1)
}

func (m *mockObjectStore) UploadTree(ctx context.Context, localDir, prefix string, contentTypes map[string]string) ([]string, error) {
	args := m.Called(ctx, localDir, prefix, contentTypes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockObjectStore) PublicURL(key string) string {
	args := m.Called(key)
	return args.String(0)
}

func (m *mockObjectStore) Public() bool {
	args := m.Called()
	return args.Bool(0)
}

// mockPackager implements media.Packager for testing.
type mockPackager struct {
	mock.Mock
}

func (m *mockPackager) PackageStreaming(ctx context.Context, inputVideo, outputDir string) (string, error) {
	args := m.Called(ctx, inputVideo, outputDir)
	return args.String(0), args.Error(1)
}

func (m *mockPackager) ThumbnailTrack(ctx context.Context, inputVideo, outputDir string, fps, width int) (string, error) {
	args := m.Called(ctx, inputVideo, outputDir, fps, width)
	return args.String(0), args.Error(1)
}

// mockRefiner implements prompt.Refiner for testing.
type mockRefiner struct {
	mock.Mock
}

func (m *mockRefiner) Improve(ctx context.Context, p string) (*prompt.Improvement, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*prompt.Improvement), args.Error(1)
}

func (m *mockRefiner) Compose(ctx context.Context, input prompt.ComposeInput) (string, error) {
	args := m.Called(ctx, input)
	return args.String(0), args.Error(1)
}

func newTestHandlers(t *testing.T, opts ...HandlerOption) (*Handlers, *job.MemoryStore) {
	t.Helper()
	store := job.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	svc := job.NewGenerateService(store, &mockGenerator{}, &mockObjectStore{}, &mockPackager{}, logger)

	// Disable async processing for tests to keep mocks deterministic
	base := []HandlerOption{WithAsyncProcessing(false)}
	handlers := NewHandlers(svc, logger, append(base, opts...)...)
	return handlers, store
}

func postJSON(t *testing.T, handler http.HandlerFunc, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.Health(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestGenerate_Success(t *testing.T) {
	h, store := newTestHandlers(t)

	rec := postJSON(t, h.Generate, "/api/generate", GenerateRequest{Prompt: "a dog in the park"})

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp GenerateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.JobID)
	assert.Equal(t, "queued", resp.Status)

	created, err := store.Get(context.Background(), resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, "a dog in the park", created.Prompt)
	assert.Equal(t, job.SourceUserPrompt, created.PromptSource)
}

func TestGenerate_PrefersComposedPrompt(t *testing.T) {
	h, store := newTestHandlers(t)

	rec := postJSON(t, h.Generate, "/api/generate", GenerateRequest{
		Prompt:         "a dog in the park",
		ComposedPrompt: "a retriever leaps for a frisbee at golden hour",
	})

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp GenerateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	created, err := store.Get(context.Background(), resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, "a retriever leaps for a frisbee at golden hour", created.Prompt)
	assert.Equal(t, job.SourceComposedPrompt, created.PromptSource)
}

func TestGenerate_MissingPrompt(t *testing.T) {
	h, _ := newTestHandlers(t)

	rec := postJSON(t, h.Generate, "/api/generate", GenerateRequest{})

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "MISSING_PROMPT", resp.Code)
}

func TestGenerate_InvalidJSON(t *testing.T) {
	h, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodPost, "/api/generate", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	h.Generate(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_JSON", resp.Code)
}

func getWithID(t *testing.T, handler http.HandlerFunc, pattern, target string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(pattern, handler)
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestStatus_Found(t *testing.T) {
	h, store := newTestHandlers(t)

	j := job.New("a dog in the park", "", job.SourceUserPrompt)
	require.NoError(t, store.Create(context.Background(), j))

	rec := getWithID(t, h.Status, "GET /api/status/{id}", "/api/status/"+j.ID)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp VideoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, j.ID, resp.ID)
	assert.Equal(t, "queued", resp.Status)
	assert.Equal(t, "a dog in the park", resp.Prompt)
}

func TestStatus_NotFound(t *testing.T) {
	h, _ := newTestHandlers(t)

	rec := getWithID(t, h.Status, "GET /api/status/{id}", "/api/status/nope")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetVideo_IncludesArtifactURLs(t *testing.T) {
	h, store := newTestHandlers(t)
	ctx := context.Background()

	j := job.New("a dog in the park", "", job.SourceUserPrompt)
	require.NoError(t, store.Create(ctx, j))
	require.NoError(t, store.Update(ctx, j.ID, job.Update{
		Status:        job.StatusOf(job.StatusRunning),
		Progress:      job.IntOf(88),
		ArtifactURL:   job.StringOf("https://cdn.example.com/videos/a_dog-12345678.mp4"),
		StreamURL:     job.StringOf("/hls/12345678/a_dog/index.m3u8"),
		ThumbTrackURL: job.StringOf("/hls/12345678/a_dog/thumbs/thumbs.vtt"),
	}))

	rec := getWithID(t, h.GetVideo, "GET /api/videos/{id}", "/api/videos/"+j.ID)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp VideoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "https://cdn.example.com/videos/a_dog-12345678.mp4", resp.MP4URL)
	assert.Equal(t, "/hls/12345678/a_dog/index.m3u8", resp.HLSURL)
	assert.Equal(t, "/hls/12345678/a_dog/thumbs/thumbs.vtt", resp.ThumbVTTURL)
}

func TestListVideos(t *testing.T) {
	h, store := newTestHandlers(t)
	ctx := context.Background()

	for _, p := range []string{"first", "second", "third"} {
		require.NoError(t, store.Create(ctx, job.New(p, "", job.SourceUserPrompt)))
	}

	req := httptest.NewRequest(http.MethodGet, "/api/videos?page=1&per_page=2", nil)
	rec := httptest.NewRecorder()
	h.ListVideos(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ListVideosResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(3), resp.Total)
	assert.Equal(t, 1, resp.Page)
	assert.Equal(t, 2, resp.PerPage)
	assert.Len(t, resp.Items, 2)
}

func TestListVideos_BadPaginationFallsBack(t *testing.T) {
	h, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/api/videos?page=zero&per_page=-3", nil)
	rec := httptest.NewRecorder()
	h.ListVideos(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ListVideosResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Page)
	assert.Equal(t, 20, resp.PerPage)
}

func TestImprove_Success(t *testing.T) {
	refiner := &mockRefiner{}
	refiner.On("Improve", mock.Anything, "a dog in the park").Return(&prompt.Improvement{
		AutoImproved: "improved",
		Variants: []prompt.Variant{
			{Concise: "c1", Expanded: "e1"},
			{Concise: "c2", Expanded: "e2"},
			{Concise: "c3", Expanded: "e3"},
			{Concise: "c4", Expanded: "e4"},
		},
	}, nil)

	h, _ := newTestHandlers(t, WithRefiner(refiner))

	rec := postJSON(t, h.Improve, "/api/improve", ImproveRequest{Prompt: "a dog in the park"})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ImproveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "improved", resp.AutoImproved)
	assert.Len(t, resp.Variants, 4)
	refiner.AssertExpectations(t)
}

func TestImprove_NotConfigured(t *testing.T) {
	h, _ := newTestHandlers(t)

	rec := postJSON(t, h.Improve, "/api/improve", ImproveRequest{Prompt: "a dog"})

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestImprove_MissingPrompt(t *testing.T) {
	h, _ := newTestHandlers(t, WithRefiner(&mockRefiner{}))

	rec := postJSON(t, h.Improve, "/api/improve", ImproveRequest{})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCompose_Success(t *testing.T) {
	refiner := &mockRefiner{}
	refiner.On("Compose", mock.Anything, prompt.ComposeInput{
		BaseImproved: "base",
		Variant:      "variant",
		Mode:         prompt.ModeMerge,
	}).Return("final prompt", nil)

	h, _ := newTestHandlers(t, WithRefiner(refiner))

	rec := postJSON(t, h.Compose, "/api/compose", ComposeRequest{
		BaseImproved: "base",
		Variant:      "variant",
		Mode:         "merge",
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ComposeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "final prompt", resp.Composed)
	refiner.AssertExpectations(t)
}

func TestCompose_ValidationErrors(t *testing.T) {
	refiner := &mockRefiner{}
	refiner.On("Compose", mock.Anything, mock.Anything).Return("", prompt.ErrBaseRequired)

	tests := []struct {
		name     string
		body     ComposeRequest
		wantCode int
	}{
		{"missing variant", ComposeRequest{Mode: "merge"}, http.StatusBadRequest},
		{"bad mode", ComposeRequest{Variant: "v", Mode: "remix"}, http.StatusBadRequest},
		{"merge without base", ComposeRequest{Variant: "v", Mode: "merge"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHandlers(t, WithRefiner(refiner))
			rec := postJSON(t, h.Compose, "/api/compose", tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}
