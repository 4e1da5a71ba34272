// Package tokens estimates how many tokens a conversation will cost a provider.
// Counts are approximations; provider-reported usage always wins for billing.
package tokens

import (
	"log"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"

	"chatcli/internal/models"
)

const (
	// DefaultEncoding is used when a model name does not resolve to an encoding.
	DefaultEncoding = "cl100k_base"
	// PerMessageOverhead approximates the framing added around every message.
	PerMessageOverhead = 3
	// RequestOverhead approximates the priming added once per request.
	RequestOverhead = 3
)

func init() {
	// ship the BPE ranks with the binary instead of downloading them at runtime
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// Counter is what the truncator and the session need from an estimator.
type Counter interface {
	Count(conv []models.Message, model string) int
	CountText(text, model string) int
}

type encoder interface {
	Encode(text string, allowedSpecial []string, disallowedSpecial []string) []int
}

// Estimator counts tokens with a BPE encoding chosen per model. Safe for concurrent use.
type Estimator struct {
	mu        sync.Mutex
	encodings map[string]encoder
	forModel  func(model string) (encoder, error)
	byName    func(name string) (encoder, error)
}

// NewEstimator returns an estimator backed by tiktoken encodings.
func NewEstimator() *Estimator {
	return &Estimator{
		encodings: make(map[string]encoder),
		forModel: func(model string) (encoder, error) {
			return tiktoken.EncodingForModel(model)
		},
		byName: func(name string) (encoder, error) {
			return tiktoken.GetEncoding(name)
		},
	}
}

// Count estimates the prompt size of conv for model. It never fails: unknown
// models use DefaultEncoding and, if no encoding loads at all, a byte heuristic.
func (e *Estimator) Count(conv []models.Message, model string) int {
	enc := e.encodingFor(model)
	total := 0
	for _, msg := range conv {
		total += encodeLen(enc, string(msg.Role)+msg.Content)
		total += PerMessageOverhead
	}
	total += RequestOverhead
	return total
}

// CountText estimates the token length of a bare string.
func (e *Estimator) CountText(text, model string) int {
	return encodeLen(e.encodingFor(model), text)
}

func (e *Estimator) encodingFor(model string) encoder {
	key := strings.ToLower(strings.TrimSpace(model))

	e.mu.Lock()
	defer e.mu.Unlock()
	if enc, ok := e.encodings[key]; ok {
		return enc
	}

	var enc encoder
	// Gemini has its own tokenizer; cl100k is the closest public approximation.
	if key != "" && !strings.Contains(key, "gemini") {
		if got, err := e.forModel(key); err == nil {
			enc = got
		}
	}
	if enc == nil {
		if got, err := e.byName(DefaultEncoding); err == nil {
			enc = got
		} else {
			log.Printf("tokens: no BPE encoding available for %q, using byte heuristic: %v", model, err)
		}
	}
	e.encodings[key] = enc
	return enc
}

func encodeLen(enc encoder, text string) int {
	if enc == nil {
		return heuristicLen(text)
	}
	return len(enc.Encode(text, nil, nil))
}

// heuristicLen is the usual ~4 bytes per token rule, rounded up.
func heuristicLen(text string) int {
	if len(text) == 0 {
		return 0
	}
	return (len(text) + 3) / 4
}
