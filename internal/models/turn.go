package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Usage carries token counts for one gateway call. Estimated is set when the
// provider reported nothing and the counts were computed locally.
type Usage struct {
	PromptTokens     int  `json:"prompt_tokens"`
	CompletionTokens int  `json:"completion_tokens"`
	Estimated        bool `json:"estimated"`
}

// Total returns prompt plus completion tokens.
func (u Usage) Total() int {
	return u.PromptTokens + u.CompletionTokens
}

// Turn is one completed user/assistant exchange.
type Turn struct {
	ID        int64           `json:"id"`
	SessionID string          `json:"session_id"`
	Model     string          `json:"model"`
	Prompt    string          `json:"prompt"`
	Reply     string          `json:"reply"`
	Usage     Usage           `json:"usage"`
	Cost      decimal.Decimal `json:"cost"`
	Priced    bool            `json:"priced"`
	CreatedAt time.Time       `json:"created_at"`
}
