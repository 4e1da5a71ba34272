// Package cost prices provider calls from per-1K-token rates held in decimal.
package cost

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrUnknownModel is matched by errors.Is for any model missing from a pricing table.
var ErrUnknownModel = errors.New("model not found in pricing table")

// UnknownModelError names the model that could not be priced.
type UnknownModelError struct {
	Model string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("model %q not found in pricing table", e.Model)
}

func (e *UnknownModelError) Unwrap() error { return ErrUnknownModel }

// Pricing is USD per 1000 tokens.
type Pricing struct {
	InputPer1K  decimal.Decimal
	OutputPer1K decimal.Decimal
}

// NewPricing is a convenience for literal tables.
func NewPricing(inputPer1K, outputPer1K float64) Pricing {
	return Pricing{
		InputPer1K:  decimal.NewFromFloat(inputPer1K),
		OutputPer1K: decimal.NewFromFloat(outputPer1K),
	}
}

// Table maps model identifiers to prices. Treat it as read-only once built.
type Table map[string]Pricing

var thousand = decimal.NewFromInt(1000)

// DefaultTable holds the prices the CLI ships with.
// Prices last updated: 2025-12
var DefaultTable = Table{
	// OpenAI
	"gpt-4o-mini":  NewPricing(0.0005, 0.0015),
	"gpt-4o":       NewPricing(0.0025, 0.01),
	"gpt-4.1-mini": NewPricing(0.0004, 0.0016),

	// Google
	"gemini-2.5-flash-lite": NewPricing(0.00025, 0.0005),
	"gemini-2.5-flash":      NewPricing(0.0003, 0.0025),
	"gemini-2.5-pro":        NewPricing(0.00125, 0.01),

	// Anthropic
	"claude-haiku-4-5":  NewPricing(0.001, 0.005),
	"claude-sonnet-4-5": NewPricing(0.003, 0.015),

	// local models are free
	"llama3.2": NewPricing(0, 0),
}

// Lookup returns the pricing entry for model.
func (t Table) Lookup(model string) (Pricing, error) {
	p, ok := t[model]
	if !ok {
		return Pricing{}, &UnknownModelError{Model: model}
	}
	return p, nil
}

// Estimate returns (in/1000)*inputRate + (out/1000)*outputRate in USD.
func (t Table) Estimate(model string, inputTokens, outputTokens int) (decimal.Decimal, error) {
	p, err := t.Lookup(model)
	if err != nil {
		return decimal.Zero, err
	}
	in := decimal.NewFromInt(int64(inputTokens)).Div(thousand).Mul(p.InputPer1K)
	out := decimal.NewFromInt(int64(outputTokens)).Div(thousand).Mul(p.OutputPer1K)
	return in.Add(out), nil
}

// With returns a copy of t with overrides layered on top.
func (t Table) With(overrides Table) Table {
	merged := make(Table, len(t)+len(overrides))
	for k, v := range t {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}

// Estimate prices a call against DefaultTable.
func Estimate(model string, inputTokens, outputTokens int) (decimal.Decimal, error) {
	return DefaultTable.Estimate(model, inputTokens, outputTokens)
}
