// Package provider defines the text-generation boundary the rest of
// the system programs against, plus token counting and cost estimation
// for the responses that cross it.
package provider

import (
	"context"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// Request carries one generation request to a provider.
type Request struct {
	// Prompt is the user prompt.
	Prompt string

	// Model is the provider-specific model name.
	Model string

	// Temperature overrides the provider default when set.
	Temperature fn.Option[float64]

	// MaxTokens caps the response length when set.
	MaxTokens fn.Option[uint32]

	// Context is optional story/document context sent alongside the
	// prompt.
	Context fn.Option[string]
}

// Response is one completed generation.
type Response struct {
	// Text is the generated text.
	Text string

	// Model is the model that produced the text.
	Model string

	// Provider is the provider name.
	Provider string

	// TokenCount is the total tokens consumed.
	TokenCount uint32

	// CostEstimate is the estimated cost in USD.
	CostEstimate float64
}

// Generator produces text for prompts. Implementations wrap one
// upstream AI provider.
type Generator interface {
	// Name returns the provider name used in cache keys.
	Name() string

	// Generate produces a response for the given request.
	Generate(ctx context.Context, req Request) (Response, error)
}
