package provider

import (
	"context"
	"fmt"
	"strings"
)

// Static is a Generator that deterministically echoes its prompt. It
// serves development setups and tests that must not call an upstream
// provider.
type Static struct {
	// Model is the model name reported in responses.
	Model string

	counter *TokenCounter
}

// NewStatic returns a Static generator reporting the given model name.
func NewStatic(model string) *Static {
	if model == "" {
		model = "static-echo"
	}

	return &Static{
		Model:   model,
		counter: NewTokenCounter(),
	}
}

// Name returns the provider name used in cache keys.
func (s *Static) Name() string {
	return "static"
}

// Generate produces a deterministic continuation of the prompt.
func (s *Static) Generate(_ context.Context,
	req Request) (Response, error) {

	text := fmt.Sprintf(
		"[%s] %s", s.Model, strings.TrimSpace(req.Prompt),
	)

	usage := s.counter.AnalyzeUsage(req.Model, req.Prompt, text)

	return Response{
		Text:         text,
		Model:        req.Model,
		Provider:     s.Name(),
		TokenCount:   usage.TotalTokens,
		CostEstimate: usage.Cost.TotalCost,
	}, nil
}
