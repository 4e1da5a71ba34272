package cost

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateScenario(t *testing.T) {
	got, err := Estimate("gpt-4o-mini", 5, 3)
	require.NoError(t, err)
	// (5/1000)*0.0005 + (3/1000)*0.0015 = 0.0000025 + 0.0000045
	assert.True(t, got.Equal(decimal.RequireFromString("0.000007")), "got %s", got)
}

func TestEstimateIsLinear(t *testing.T) {
	tests := []struct {
		model string
		in    int
		out   int
	}{
		{"gpt-4o-mini", 5, 3},
		{"gpt-4o-mini", 1234, 987},
		{"gemini-2.5-flash-lite", 4000, 500},
		{"gemini-2.5-flash-lite", 0, 0},
		{"claude-haiku-4-5", 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			single, err := Estimate(tt.model, tt.in, tt.out)
			require.NoError(t, err)
			double, err := Estimate(tt.model, 2*tt.in, 2*tt.out)
			require.NoError(t, err)
			assert.True(t, double.Equal(single.Mul(decimal.NewFromInt(2))), "%s != 2*%s", double, single)
		})
	}
}

func TestEstimateUnknownModelIsDistinguishable(t *testing.T) {
	got, err := Estimate("no-such-model", 100, 100)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownModel))

	var unknown *UnknownModelError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "no-such-model", unknown.Model)
	assert.True(t, got.IsZero())
}

func TestLocalModelsAreFree(t *testing.T) {
	got, err := Estimate("llama3.2", 100000, 100000)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestWithOverridesDoesNotMutateBase(t *testing.T) {
	custom := DefaultTable.With(Table{
		"gpt-4o-mini": NewPricing(1, 1),
		"my-model":    NewPricing(0.001, 0.002),
	})

	got, err := custom.Estimate("my-model", 1000, 1000)
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.RequireFromString("0.003")))

	overridden, err := custom.Estimate("gpt-4o-mini", 1000, 0)
	require.NoError(t, err)
	assert.True(t, overridden.Equal(decimal.NewFromInt(1)))

	base, err := DefaultTable.Estimate("gpt-4o-mini", 1000, 0)
	require.NoError(t, err)
	assert.True(t, base.Equal(decimal.RequireFromString("0.0005")))

	_, err = DefaultTable.Lookup("my-model")
	assert.ErrorIs(t, err, ErrUnknownModel)
}
