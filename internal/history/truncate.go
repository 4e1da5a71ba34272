// Package history keeps a conversation inside a token budget by evicting its oldest turns.
package history

import (
	"chatcli/internal/models"
	"chatcli/internal/tokens"
)

// Budget bounds the prompt sent to a provider.
type Budget struct {
	// MaxContextTokens is the provider's context window.
	MaxContextTokens int
	// ReservedOutputTokens is kept free for the reply.
	ReservedOutputTokens int
	// ThresholdTokens halts eviction on its own once the prompt is this small,
	// even if prompt+reserved still exceeds MaxContextTokens.
	ThresholdTokens int
}

// DefaultBudget mirrors the limits the chat exercises were written against.
var DefaultBudget = Budget{
	MaxContextTokens:     4096,
	ReservedOutputTokens: 500,
	ThresholdTokens:      3500,
}

// Fits reports whether a prompt of n tokens satisfies either stop condition.
func (b Budget) Fits(n int) bool {
	return n+b.ReservedOutputTokens <= b.MaxContextTokens || n <= b.ThresholdTokens
}

// Eviction describes one step of truncation.
type Eviction struct {
	Removed      []models.Message
	TokensBefore int
	Remaining    int
}

// Truncate returns conv with its oldest messages dropped until the estimated
// prompt fits the budget or nothing is left. A leading user/assistant pair is
// dropped together; anything else at the front (a system prompt, an orphaned
// turn) goes alone. The system prompt gets no special protection. onEvict, if
// non-nil, is called after every eviction. conv itself is not modified.
func Truncate(conv []models.Message, model string, budget Budget, counter tokens.Counter, onEvict func(Eviction)) []models.Message {
	out := models.Clone(conv)
	for len(out) > 0 {
		n := counter.Count(out, model)
		if budget.Fits(n) {
			break
		}
		drop := 1
		if len(out) >= 2 && out[0].Role == models.RoleUser && out[1].Role == models.RoleAssistant {
			drop = 2
		}
		removed := out[:drop]
		out = out[drop:]
		if onEvict != nil {
			onEvict(Eviction{
				Removed:      models.Clone(removed),
				TokensBefore: n,
				Remaining:    len(out),
			})
		}
	}
	return out
}
