package provider

import (
	"math"
	"sync"
	"unicode/utf8"
)

// Pricing is the per-model cost schedule in USD per 1000 tokens.
type Pricing struct {
	// InputCostPer1K is the cost per 1000 prompt tokens.
	InputCostPer1K float64

	// OutputCostPer1K is the cost per 1000 completion tokens.
	OutputCostPer1K float64
}

// fallbackPricing is used for models with no schedule entry.
var fallbackPricing = Pricing{
	InputCostPer1K:  0.01,
	OutputCostPer1K: 0.03,
}

// CostEstimate breaks one request/response pair's cost down.
type CostEstimate struct {
	InputCost  float64 `json:"input_cost"`
	OutputCost float64 `json:"output_cost"`
	TotalCost  float64 `json:"total_cost"`
}

// Usage is the token and cost analysis of one exchange.
type Usage struct {
	InputTokens  uint32       `json:"input_tokens"`
	OutputTokens uint32       `json:"output_tokens"`
	TotalTokens  uint32       `json:"total_tokens"`
	Cost         CostEstimate `json:"cost"`
}

// CountTokens approximates the token count of text. Providers
// tokenize differently, so this uses the common four-characters-per-
// token heuristic rather than any one tokenizer.
func CountTokens(text string) uint32 {
	chars := float64(utf8.RuneCountInString(text))
	return uint32(math.Ceil(chars / 4.0))
}

// TokenCounter estimates generation costs from a mutable per-model
// pricing schedule.
type TokenCounter struct {
	mu      sync.RWMutex
	pricing map[string]Pricing
}

// NewTokenCounter returns a counter seeded with the 2024 published
// rates for the common OpenAI and Claude models.
func NewTokenCounter() *TokenCounter {
	return &TokenCounter{
		pricing: map[string]Pricing{
			"gpt-4": {
				InputCostPer1K:  0.03,
				OutputCostPer1K: 0.06,
			},
			"gpt-4-turbo": {
				InputCostPer1K:  0.01,
				OutputCostPer1K: 0.03,
			},
			"gpt-3.5-turbo": {
				InputCostPer1K:  0.0015,
				OutputCostPer1K: 0.002,
			},
			"claude-3-opus": {
				InputCostPer1K:  0.015,
				OutputCostPer1K: 0.075,
			},
			"claude-3-sonnet": {
				InputCostPer1K:  0.003,
				OutputCostPer1K: 0.015,
			},
			"claude-3-haiku": {
				InputCostPer1K:  0.00025,
				OutputCostPer1K: 0.00125,
			},
		},
	}
}

// ModelPricing returns the schedule entry for a model, falling back to
// the default rates for unknown models.
func (t *TokenCounter) ModelPricing(model string) Pricing {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if p, ok := t.pricing[model]; ok {
		return p
	}

	return fallbackPricing
}

// UpdateModelPricing installs or replaces one model's rates.
func (t *TokenCounter) UpdateModelPricing(model string, p Pricing) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.pricing[model] = p
}

// EstimateCost prices a token usage pair for the given model.
func (t *TokenCounter) EstimateCost(model string, inputTokens,
	outputTokens uint32) float64 {

	p := t.ModelPricing(model)

	inputCost := float64(inputTokens) / 1000.0 * p.InputCostPer1K
	outputCost := float64(outputTokens) / 1000.0 * p.OutputCostPer1K

	return inputCost + outputCost
}

// AnalyzeUsage counts both sides of an exchange and prices them.
func (t *TokenCounter) AnalyzeUsage(model, prompt,
	response string) Usage {

	p := t.ModelPricing(model)

	inputTokens := CountTokens(prompt)
	outputTokens := CountTokens(response)

	inputCost := float64(inputTokens) / 1000.0 * p.InputCostPer1K
	outputCost := float64(outputTokens) / 1000.0 * p.OutputCostPer1K

	return Usage{
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		TotalTokens:  inputTokens + outputTokens,
		Cost: CostEstimate{
			InputCost:  inputCost,
			OutputCost: outputCost,
			TotalCost:  inputCost + outputCost,
		},
	}
}
