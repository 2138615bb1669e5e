// Package job provides the Job aggregate for prompt-to-video generation
// requests. It includes the Job entity with its state machine, the Store
// interface for persistence, and the GenerateService use case that drives
// a job through the generation pipeline.
package job

import (
	"time"

	"github.com/veostudio/veostudio-api/internal/job/id"
)

// Status represents the current state of a Job.
type Status string

const (
	// StatusQueued indicates the job has been accepted but not yet started.
	StatusQueued Status = "queued"
	// StatusRunning indicates the pipeline is processing the job.
	StatusRunning Status = "running"
	// StatusDone indicates the job finished with a retrievable artifact.
	StatusDone Status = "done"
	// StatusError indicates the job failed on the critical path.
	StatusError Status = "error"
)

// IsTerminal returns true if the status is a final state.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusError
}

// Source identifies the provenance of the prompt driving a job.
type Source string

const (
	// SourceUserPrompt marks a prompt supplied directly by the user.
	SourceUserPrompt Source = "user_prompt"
	// SourceComposedPrompt marks a prompt produced by the compose endpoint.
	SourceComposedPrompt Source = "composed_prompt"
)

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusQueued:  {StatusRunning, StatusError},
	StatusRunning: {StatusDone, StatusError},
	StatusDone:    {},
	StatusError:   {},
}

// CanTransition reports whether a status change from one state to another
// is allowed. Terminal states accept no further transitions.
func CanTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Job represents one prompt-to-video generation request and its lifecycle.
// A job is owned by exactly one pipeline goroutine; readers always receive
// clones from the Store, so the struct itself carries no lock.
type Job struct {
	// ID is the unique identifier, used as the external handle and store key.
	ID string
	// Status is the current job state.
	Status Status
	// Progress is an advisory completion percentage (0-100), monotone
	// non-decreasing; 100 is reserved for StatusDone.
	Progress int
	// Prompt is the text driving generation.
	Prompt string
	// NegativePrompt describes content to steer away from. Optional.
	NegativePrompt string
	// PromptSource records where the prompt came from. Informational only.
	PromptSource Source
	// Error holds the failure message, set once when Status becomes error.
	Error string
	// LocalPath is the local filesystem path of the downloaded video.
	LocalPath string
	// ArtifactKey is the object-store key of the primary video.
	ArtifactKey string
	// ArtifactURL is the retrievable URL of the primary video.
	ArtifactURL string
	// StreamURL points at the HLS index manifest, when packaging succeeded.
	StreamURL string
	// ThumbTrackURL points at the thumbnail VTT index, when generated.
	ThumbTrackURL string
	// CreatedAt is when the job was created.
	CreatedAt time.Time
}

// New creates a Job in queued state with a generated ID.
func New(prompt, negativePrompt string, source Source) *Job {
	if source == "" {
		source = SourceUserPrompt
	}
	return &Job{
		ID:             id.Generate(),
		Status:         StatusQueued,
		Progress:       0,
		Prompt:         prompt,
		NegativePrompt: negativePrompt,
		PromptSource:   source,
		CreatedAt:      time.Now().UTC(),
	}
}

// Clone returns a copy of the job for safe reads.
func (j *Job) Clone() *Job {
	c := *j
	return &c
}

// Update describes a partial modification of a job record. Nil fields are
// left untouched, so one field update never clobbers another.
type Update struct {
	Status        *Status
	Progress      *int
	Error         *string
	LocalPath     *string
	ArtifactKey   *string
	ArtifactURL   *string
	StreamURL     *string
	ThumbTrackURL *string
}

// Apply merges the non-nil fields of u into the job. Status changes that
// violate the transition table are dropped; once terminal, the record is
// frozen entirely. Progress never decreases and the error message is set
// at most once.
func (j *Job) Apply(u Update) {
	if j.Status.IsTerminal() {
		return
	}
	if u.Status != nil && CanTransition(j.Status, *u.Status) {
		j.Status = *u.Status
	}
	if u.Progress != nil && *u.Progress > j.Progress {
		j.Progress = *u.Progress
	}
	if u.Error != nil && j.Error == "" {
		j.Error = *u.Error
	}
	if u.LocalPath != nil {
		j.LocalPath = *u.LocalPath
	}
	if u.ArtifactKey != nil {
		j.ArtifactKey = *u.ArtifactKey
	}
	if u.ArtifactURL != nil {
		j.ArtifactURL = *u.ArtifactURL
	}
	if u.StreamURL != nil {
		j.StreamURL = *u.StreamURL
	}
	if u.ThumbTrackURL != nil {
		j.ThumbTrackURL = *u.ThumbTrackURL
	}
}

// StatusOf returns a pointer to s for use in an Update.
func StatusOf(s Status) *Status { return &s }

// IntOf returns a pointer to n for use in an Update.
func IntOf(n int) *int { return &n }

// StringOf returns a pointer to s for use in an Update.
func StringOf(s string) *string { return &s }
