package services

import "context"

// GenerationClient is the interface to the content-generation collaborator.
// The engine treats model and technique selection as opaque.
type GenerationClient interface {
	// Complete runs a prompt through the given model with the given
	// techniques applied and returns the generated text.
	Complete(ctx context.Context, model string, techniques []string, prompt string) (string, error)
}

// HumanizerClient is the interface to the external text-transformation service.
type HumanizerClient interface {
	// Transform rewrites text according to service-specific parameters.
	Transform(ctx context.Context, text string, parameters map[string]any) (string, error)
}

// DetectionResult summarizes an AI-likelihood scoring call.
type DetectionResult struct {
	AIProbability    float64 `json:"ai_probability"`
	OverallClass     string  `json:"overall_class"`
	AverageGenerated float64 `json:"average_generated_prob"`
	SentenceCount    int     `json:"sentence_count"`
}

// DetectorClient is the interface to the external AI-detection service.
type DetectorClient interface {
	// Score classifies text and returns a structured likelihood summary.
	Score(ctx context.Context, text string) (*DetectionResult, error)
}
