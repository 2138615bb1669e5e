package generator

import (
	"context"
	"fmt"

	"github.com/veostudio/veostudio-api/internal/veo"
)

// VeoAdapter adapts the veo client to the Generator interface.
type VeoAdapter struct {
	client veo.Client
}

// NewVeoAdapter creates a new veo generator adapter.
func NewVeoAdapter(client veo.Client) *VeoAdapter {
	return &VeoAdapter{client: client}
}

// Start submits one generation request to the engine.
func (a *VeoAdapter) Start(ctx context.Context, prompt string, opts Options) (Operation, error) {
	veoOpts := veo.GenerateOptions{
		NegativePrompt:   opts.NegativePrompt,
		AspectRatio:      opts.AspectRatio,
		DurationSeconds:  opts.DurationSeconds,
		PersonGeneration: opts.PersonGeneration,
	}
	op, err := a.client.Submit(ctx, prompt, veoOpts)
	if err != nil {
		return Operation{}, fmt.Errorf("veo adapter start: %w", err)
	}
	return mapOp(op), nil
}

// Poll refreshes the operation's completion state.
func (a *VeoAdapter) Poll(ctx context.Context, op Operation) (Operation, error) {
	refreshed, err := a.client.Poll(ctx, op.Name)
	if err != nil {
		return Operation{}, fmt.Errorf("veo adapter poll: %w", err)
	}
	return mapOp(refreshed), nil
}

// Fetch downloads the operation's result video to destPath.
func (a *VeoAdapter) Fetch(ctx context.Context, op Operation, destPath string) error {
	if op.ResultURI == "" {
		return ErrNoVideos
	}
	if err := a.client.Download(ctx, op.ResultURI, destPath); err != nil {
		return fmt.Errorf("veo adapter fetch: %w", err)
	}
	return nil
}

func mapOp(op veo.Operation) Operation {
	return Operation{
		Name:      op.Name,
		Done:      op.Done,
		Error:     op.Error,
		ResultURI: op.VideoURI,
	}
}

// Compile-time check that VeoAdapter implements Generator.
var _ Generator = (*VeoAdapter)(nil)
