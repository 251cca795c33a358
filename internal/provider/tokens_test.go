package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestCountTokens pins the four-characters-per-token approximation.
func TestCountTokens(t *testing.T) {
	require.Zero(t, CountTokens(""))
	require.Equal(t, uint32(1), CountTokens("abc"))
	require.Equal(t, uint32(1), CountTokens("abcd"))
	require.Equal(t, uint32(2), CountTokens("abcde"))

	// 28 characters, so 7 tokens.
	require.Equal(t, uint32(7), CountTokens("Hello world, this is a test."))
}

// TestEstimateCost checks the per-model schedule against a known pair.
func TestEstimateCost(t *testing.T) {
	counter := NewTokenCounter()

	// 1000 input tokens at $0.0015 plus 500 output at $0.002.
	cost := counter.EstimateCost("gpt-3.5-turbo", 1000, 500)
	require.InDelta(t, 0.0025, cost, 1e-4)

	opus := counter.EstimateCost("claude-3-opus", 1000, 1000)
	require.InDelta(t, 0.09, opus, 1e-9)
}

// TestUnknownModelFallback verifies the fallback schedule applies.
func TestUnknownModelFallback(t *testing.T) {
	counter := NewTokenCounter()

	cost := counter.EstimateCost("unknown-model", 1000, 1000)
	require.InDelta(t, 0.04, cost, 1e-9)
}

// TestUpdateModelPricing verifies runtime schedule updates take
// effect.
func TestUpdateModelPricing(t *testing.T) {
	counter := NewTokenCounter()

	counter.UpdateModelPricing("house-model", Pricing{
		InputCostPer1K:  0.001,
		OutputCostPer1K: 0.002,
	})

	cost := counter.EstimateCost("house-model", 2000, 1000)
	require.InDelta(t, 0.004, cost, 1e-9)
}

// TestAnalyzeUsage verifies both sides are counted and priced.
func TestAnalyzeUsage(t *testing.T) {
	counter := NewTokenCounter()

	usage := counter.AnalyzeUsage(
		"claude-3-sonnet",
		"Write the next paragraph of the storm scene.",
		"The rain did not fall so much as arrive.",
	)

	require.Equal(t, usage.InputTokens+usage.OutputTokens,
		usage.TotalTokens)
	require.Greater(t, usage.Cost.TotalCost, 0.0)
	require.InDelta(
		t, usage.Cost.TotalCost,
		usage.Cost.InputCost+usage.Cost.OutputCost, 1e-12,
	)
}

// TestStaticGenerator verifies the offline generator is deterministic
// and self-prices.
func TestStaticGenerator(t *testing.T) {
	gen := NewStatic("")

	req := Request{Prompt: "Continue the scene.", Model: "gpt-4"}

	first, err := gen.Generate(context.Background(), req)
	require.NoError(t, err)
	second, err := gen.Generate(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, first.Text, second.Text)
	require.Equal(t, "static", first.Provider)
	require.Equal(t, "gpt-4", first.Model)
	require.Greater(t, first.TokenCount, uint32(0))
	require.Greater(t, first.CostEstimate, 0.0)
}
