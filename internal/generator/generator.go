// Package generator provides the provider-neutral interface the pipeline
// uses to drive a long-running video generation operation.
package generator

import (
	"context"
	"errors"
)

// ErrNoVideos is returned by result extraction when the engine completed
// an operation without producing any video. The pipeline treats this as a
// fatal job failure, never a retry.
var ErrNoVideos = errors.New("no videos returned by model")

// Options contains parameters for starting a generation.
type Options struct {
	NegativePrompt   string // Content to steer away from (optional)
	AspectRatio      string // e.g. "16:9"
	DurationSeconds  int    // Clip length in seconds
	PersonGeneration string // Person policy
}

// Operation is an opaque handle for an in-flight generation. Completion
// state reflects the most recent Poll.
type Operation struct {
	// Name is the provider-assigned identifier used for polling.
	Name string
	// Done reports whether the operation finished, successfully or not.
	Done bool
	// Error is the provider-reported failure message, when Done and failed.
	Error string
	// ResultURI locates the generated video, when Done and successful.
	ResultURI string
}

// IsDone returns true once the operation has completed.
func (o Operation) IsDone() bool { return o.Done }

// Err returns the provider-reported failure message, empty on success.
func (o Operation) Err() string { return o.Error }

// Generator defines the interface for video generation providers.
type Generator interface {
	// Start submits one generation request and returns its handle.
	Start(ctx context.Context, prompt string, opts Options) (Operation, error)

	// Poll refreshes the handle's completion state with one round-trip.
	// The wait interval between polls belongs to the caller.
	Poll(ctx context.Context, op Operation) (Operation, error)

	// Fetch downloads the operation's result video to destPath.
	// Returns ErrNoVideos when a completed operation carries no result.
	Fetch(ctx context.Context, op Operation, destPath string) error
}
