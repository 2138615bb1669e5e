// Package server provides the HTTP server for the VeoStudio API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import (
	"time"

	"github.com/veostudio/veostudio-api/internal/job"
)

// GenerateRequest is the HTTP request body for starting a generation job.
// The composed prompt takes precedence over the raw prompt when both are
// present; at least one must be non-empty.
type GenerateRequest struct {
	// Prompt is the raw user prompt.
	Prompt string `json:"prompt" validate:"omitempty,max=2000"`
	// ComposedPrompt is a refined prompt produced by the compose endpoint.
	ComposedPrompt string `json:"composed_prompt" validate:"omitempty,max=4000"`
	// NegativePrompt describes content to steer away from.
	NegativePrompt string `json:"negative_prompt" validate:"omitempty,max=2000"`
}

// GenerateResponse is the HTTP response after starting a job.
type GenerateResponse struct {
	// JobID is the unique identifier for the created job.
	JobID string `json:"job_id"`
	// Status is the initial job status.
	Status string `json:"status"`
}

// VideoResponse is the HTTP representation of a job record.
type VideoResponse struct {
	ID           string    `json:"id"`
	Status       string    `json:"status"`
	Progress     int       `json:"progress"`
	Prompt       string    `json:"prompt"`
	PromptSource string    `json:"prompt_source,omitempty"`
	Error        string    `json:"error,omitempty"`
	MP4URL       string    `json:"mp4_url,omitempty"`
	HLSURL       string    `json:"hls_url,omitempty"`
	ThumbVTTURL  string    `json:"thumb_vtt_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// ListVideosResponse is the HTTP response for the video listing endpoint.
type ListVideosResponse struct {
	Total   int64           `json:"total"`
	Page    int             `json:"page"`
	PerPage int             `json:"per_page"`
	Items   []VideoResponse `json:"items"`
}

// ImproveRequest is the HTTP request body for prompt improvement.
type ImproveRequest struct {
	// Prompt is the raw prompt to improve.
	Prompt string `json:"prompt" validate:"required,max=2000"`
}

// ImproveResponse is the HTTP response for prompt improvement.
type ImproveResponse struct {
	// AutoImproved is the polished, generation-ready prompt.
	AutoImproved string `json:"auto_improved"`
	// Variants are exactly four alternative scene ideas.
	Variants []VariantResponse `json:"variants"`
}

// VariantResponse is one alternative scene idea.
type VariantResponse struct {
	Concise  string `json:"concise"`
	Expanded string `json:"expanded"`
}

// ComposeRequest is the HTTP request body for prompt composition.
type ComposeRequest struct {
	// BaseImproved is the improved base prompt; required in merge mode.
	BaseImproved string `json:"base_improved" validate:"omitempty,max=4000"`
	// Variant is the chosen variant detail.
	Variant string `json:"variant" validate:"required,max=2000"`
	// Mode is "merge" or "auto_refine"; defaults to auto_refine.
	Mode string `json:"mode" validate:"omitempty,oneof=merge auto_refine"`
}

// ComposeResponse is the HTTP response for prompt composition.
type ComposeResponse struct {
	// Composed is the final generation-ready prompt.
	Composed string `json:"composed"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}

// toVideoResponse maps a job record to its HTTP representation.
func toVideoResponse(j *job.Job) VideoResponse {
	return VideoResponse{
		ID:           j.ID,
		Status:       string(j.Status),
		Progress:     j.Progress,
		Prompt:       j.Prompt,
		PromptSource: string(j.PromptSource),
		Error:        j.Error,
		MP4URL:       j.ArtifactURL,
		HLSURL:       j.StreamURL,
		ThumbVTTURL:  j.ThumbTrackURL,
		CreatedAt:    j.CreatedAt,
	}
}
