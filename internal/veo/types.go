// Package veo provides an HTTP client for the Google generative video API.
// Generation is a long-running operation: a submit call returns an
// operation name that is polled until the engine reports completion, then
// the produced video is downloaded from the returned file URI.
package veo

// GenerateOptions contains parameters for submitting a generation request.
type GenerateOptions struct {
	NegativePrompt   string // Content to steer away from (optional)
	AspectRatio      string // e.g. "16:9" (default)
	DurationSeconds  int    // Clip length in seconds (default 6)
	PersonGeneration string // Person policy (default "allow_adult")
}

// DefaultGenerateOptions returns the default generation parameters.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		AspectRatio:      "16:9",
		DurationSeconds:  6,
		PersonGeneration: "allow_adult",
	}
}

// Operation is the handle for an in-flight generation request. It carries
// the engine-assigned name used for polling plus the completion state from
// the most recent poll.
type Operation struct {
	// Name is the engine-assigned operation identifier.
	Name string
	// Done reports whether the operation has finished (success or failure).
	Done bool
	// Error is the engine-reported failure message, set only when the
	// operation completed unsuccessfully.
	Error string
	// VideoURI is the download location of the generated video, set only
	// when the operation completed successfully with a result.
	VideoURI string
}

// generateRequest is the request body for the predictLongRunning endpoint.
type generateRequest struct {
	Instances  []generateInstance `json:"instances"`
	Parameters generateParameters `json:"parameters"`
}

type generateInstance struct {
	Prompt string `json:"prompt"`
}

type generateParameters struct {
	NegativePrompt   string `json:"negativePrompt,omitempty"`
	AspectRatio      string `json:"aspectRatio,omitempty"`
	DurationSeconds  int    `json:"durationSeconds,omitempty"`
	PersonGeneration string `json:"personGeneration,omitempty"`
}

// operationResponse is the wire shape of a long-running operation, as
// returned by both submit and poll.
type operationResponse struct {
	Name     string             `json:"name"`
	Done     bool               `json:"done"`
	Error    *operationError    `json:"error,omitempty"`
	Response *operationResult `json:"response,omitempty"`
}

type operationError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type operationResult struct {
	GenerateVideoResponse *generateVideoResponse `json:"generateVideoResponse,omitempty"`
}

type generateVideoResponse struct {
	GeneratedSamples []generatedSample `json:"generatedSamples"`
}

type generatedSample struct {
	Video sampleVideo `json:"video"`
}

type sampleVideo struct {
	URI string `json:"uri"`
}
