package ai

import "context"

// Client is the generation side of the external model.
type Client interface {
	// AnalyzeImage sends the meal analysis prompt together with the image
	// and returns the raw model text.
	AnalyzeImage(ctx context.Context, dataURI string) (string, error)
	// Complete sends a text-only prompt and returns the raw model text.
	Complete(ctx context.Context, prompt string) (string, error)
}

// ModerationResult is the outcome of a content-safety pass on an image.
type ModerationResult struct {
	Flagged    bool
	Categories []string
}

// Moderator classifies an uploaded image before analysis.
type Moderator interface {
	Moderate(ctx context.Context, dataURI string) (ModerationResult, error)
}
