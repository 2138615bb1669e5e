package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/veostudio/veostudio-api/internal/job"
	"github.com/veostudio/veostudio-api/internal/prompt"
)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service            *job.GenerateService
	refiner            prompt.Refiner
	validator          *validator.Validate
	logger             *slog.Logger
	enableAsyncProcess bool
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithAsyncProcessing enables or disables background processing.
// When disabled, Generate only creates the job and returns immediately
// without starting the pipeline.
func WithAsyncProcessing(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.enableAsyncProcess = enabled
	}
}

// WithRefiner sets the prompt refiner backing the improve and compose
// endpoints. When nil, those endpoints report that refinement is not
// configured.
func WithRefiner(r prompt.Refiner) HandlerOption {
	return func(h *Handlers) {
		h.refiner = r
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *job.GenerateService, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:            service,
		validator:          validator.New(),
		logger:             logger,
		enableAsyncProcess: true, // Default to enabled
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Generate handles POST /api/generate requests.
func (h *Handlers) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	// Prefer the composed prompt when present
	input := job.GenerateInput{
		Prompt:         req.ComposedPrompt,
		NegativePrompt: req.NegativePrompt,
		Source:         job.SourceComposedPrompt,
	}
	if input.Prompt == "" {
		input.Prompt = req.Prompt
		input.Source = job.SourceUserPrompt
	}
	if input.Prompt == "" {
		writeError(w, http.StatusBadRequest, "missing 'prompt' or 'composed_prompt'", "MISSING_PROMPT")
		return
	}

	createdJob := h.service.CreateJob(r.Context(), input)

	// Run the pipeline in the background with a detached context so it
	// survives the request ending.
	if h.enableAsyncProcess {
		go func(ctx context.Context, j *job.Job) {
			_ = h.service.Run(ctx, j)
		}(context.WithoutCancel(r.Context()), createdJob.Clone())
	}

	writeJSON(w, http.StatusAccepted, GenerateResponse{
		JobID:  createdJob.ID,
		Status: string(createdJob.Status),
	})
}

// Status handles GET /api/status/{id} requests.
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	h.writeJob(w, r, "job")
}

// GetVideo handles GET /api/videos/{id} requests.
func (h *Handlers) GetVideo(w http.ResponseWriter, r *http.Request) {
	h.writeJob(w, r, "video")
}

// writeJob resolves the {id} path value and writes the job record.
func (h *Handlers) writeJob(w http.ResponseWriter, r *http.Request, noun string) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, noun+" ID is required", "MISSING_ID")
		return
	}

	foundJob, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrNotFound) {
			writeError(w, http.StatusNotFound, noun+" not found", "NOT_FOUND")
			return
		}
		h.logger.Error("failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get "+noun, "FETCH_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, toVideoResponse(foundJob))
}

// ListVideos handles GET /api/videos requests.
func (h *Handlers) ListVideos(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", 20)

	total, jobs, err := h.service.ListJobs(r.Context(), page, perPage)
	if err != nil {
		h.logger.Error("failed to list videos",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list videos", "LIST_FAILED")
		return
	}

	items := make([]VideoResponse, 0, len(jobs))
	for _, j := range jobs {
		items = append(items, toVideoResponse(j))
	}

	writeJSON(w, http.StatusOK, ListVideosResponse{
		Total:   total,
		Page:    page,
		PerPage: perPage,
		Items:   items,
	})
}

// Improve handles POST /api/improve requests.
func (h *Handlers) Improve(w http.ResponseWriter, r *http.Request) {
	if h.refiner == nil {
		writeError(w, http.StatusServiceUnavailable, "prompt refinement is not configured", "REFINER_NOT_CONFIGURED")
		return
	}

	var req ImproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	imp, err := h.refiner.Improve(r.Context(), req.Prompt)
	if err != nil {
		if errors.Is(err, prompt.ErrPromptRequired) {
			writeError(w, http.StatusBadRequest, "missing 'prompt'", "MISSING_PROMPT")
			return
		}
		h.logger.Error("prompt improvement failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "prompt improvement failed", "IMPROVE_FAILED")
		return
	}

	resp := ImproveResponse{AutoImproved: imp.AutoImproved}
	for _, v := range imp.Variants {
		resp.Variants = append(resp.Variants, VariantResponse{Concise: v.Concise, Expanded: v.Expanded})
	}
	writeJSON(w, http.StatusOK, resp)
}

// Compose handles POST /api/compose requests.
func (h *Handlers) Compose(w http.ResponseWriter, r *http.Request) {
	if h.refiner == nil {
		writeError(w, http.StatusServiceUnavailable, "prompt refinement is not configured", "REFINER_NOT_CONFIGURED")
		return
	}

	var req ComposeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	composed, err := h.refiner.Compose(r.Context(), prompt.ComposeInput{
		BaseImproved: req.BaseImproved,
		Variant:      req.Variant,
		Mode:         prompt.ComposeMode(req.Mode),
	})
	if err != nil {
		switch {
		case errors.Is(err, prompt.ErrVariantRequired):
			writeError(w, http.StatusBadRequest, "missing 'variant'", "MISSING_VARIANT")
		case errors.Is(err, prompt.ErrInvalidMode):
			writeError(w, http.StatusBadRequest, "mode must be 'merge' or 'auto_refine'", "INVALID_MODE")
		case errors.Is(err, prompt.ErrBaseRequired):
			writeError(w, http.StatusBadRequest, "mode 'merge' requires 'base_improved'", "MISSING_BASE")
		default:
			h.logger.Error("prompt composition failed",
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusBadGateway, "prompt composition failed", "COMPOSE_FAILED")
		}
		return
	}

	writeJSON(w, http.StatusOK, ComposeResponse{Composed: composed})
}

// queryInt parses a positive integer query parameter with a fallback.
func queryInt(r *http.Request, name string, fallback int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
