// Package prompt refines user prompts for video generation through a
// chat-completion model: a one-shot improvement with alternative scene
// ideas, and a composition step that folds a chosen idea back into the
// improved prompt.
package prompt

import "context"

// ComposeMode selects how the base prompt and the variant are combined.
type ComposeMode string

const (
	// ModeMerge concatenates the base prompt and the variant, then has
	// the model polish the result. Requires a base prompt.
	ModeMerge ComposeMode = "merge"
	// ModeAutoRefine lets the model combine the two freely. The base
	// prompt may be empty.
	ModeAutoRefine ComposeMode = "auto_refine"
)

// Valid reports whether the mode is one of the supported values.
func (m ComposeMode) Valid() bool {
	return m == ModeMerge || m == ModeAutoRefine
}

// Variant is one alternative scene idea: a short label for display and
// a full generation-ready prompt built around it.
type Variant struct {
	Concise  string `json:"concise"`
	Expanded string `json:"expanded"`
}

// Improvement is the result of improving a raw prompt.
type Improvement struct {
	AutoImproved string    `json:"auto_improved"`
	Variants     []Variant `json:"variants"`
}

// ComposeInput describes a composition request.
type ComposeInput struct {
	BaseImproved string
	Variant      string
	Mode         ComposeMode
}

// Refiner improves and composes prompts.
type Refiner interface {
	Improve(ctx context.Context, prompt string) (*Improvement, error)
	Compose(ctx context.Context, input ComposeInput) (string, error)
}
