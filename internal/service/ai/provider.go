package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"

	"chatcli/internal/tokens"
)

// Provider names a supported backend.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
	ProviderClaude Provider = "claude"
	ProviderOllama Provider = "ollama"
)

const (
	DefaultOpenAIModel = "gpt-4o-mini"
	DefaultGeminiModel = "gemini-2.5-flash-lite"
	DefaultClaudeModel = "claude-haiku-4-5"
	DefaultOllamaModel = "llama3.2"
	DefaultOllamaURL   = "http://localhost:11434"

	// claude requires an explicit output ceiling on every request
	defaultClaudeMaxTokens = 1024
)

// ParseProvider validates a provider name.
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case ProviderOpenAI, ProviderGemini, ProviderClaude, ProviderOllama:
		return p, nil
	default:
		return "", fmt.Errorf("unsupported provider %q (supported: openai, gemini, claude, ollama)", s)
	}
}

// DefaultModel returns the model used when none is configured.
func (p Provider) DefaultModel() string {
	switch p {
	case ProviderGemini:
		return DefaultGeminiModel
	case ProviderClaude:
		return DefaultClaudeModel
	case ProviderOllama:
		return DefaultOllamaModel
	default:
		return DefaultOpenAIModel
	}
}

// ProviderConfig is everything needed to build one chat model.
type ProviderConfig struct {
	Provider        Provider
	Model           string
	APIKey          string
	BaseURL         string
	MaxOutputTokens int
}

// DetectProvider picks a provider the way the CLI always has: an explicit
// choice wins, then Gemini if its key is present, then OpenAI.
func DetectProvider(explicit string, keys map[Provider]string) (Provider, error) {
	if strings.TrimSpace(explicit) != "" {
		return ParseProvider(explicit)
	}
	if keys[ProviderGemini] != "" {
		return ProviderGemini, nil
	}
	if keys[ProviderOpenAI] != "" {
		return ProviderOpenAI, nil
	}
	return "", ErrNoCredentials
}

// NewChatModel builds the eino chat model for cfg.Provider.
func NewChatModel(ctx context.Context, cfg ProviderConfig) (model.BaseChatModel, error) {
	modelName := cfg.Model
	if modelName == "" {
		modelName = cfg.Provider.DefaultModel()
	}
	if cfg.Provider != ProviderOllama && cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: %w", cfg.Provider, ErrNoCredentials)
	}

	switch cfg.Provider {
	case ProviderOpenAI:
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: cfg.BaseURL,
			Model:   modelName,
			APIKey:  cfg.APIKey,
		})
	case ProviderGemini:
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("create gemini client: %w", err)
		}
		return gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  modelName,
		})
	case ProviderClaude:
		var baseURL *string
		if cfg.BaseURL != "" {
			baseURL = &cfg.BaseURL
		}
		maxTokens := cfg.MaxOutputTokens
		if maxTokens <= 0 {
			maxTokens = defaultClaudeMaxTokens
		}
		return claude.NewChatModel(ctx, &claude.Config{
			APIKey:    cfg.APIKey,
			Model:     modelName,
			BaseURL:   baseURL,
			MaxTokens: maxTokens,
		})
	case ProviderOllama:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = DefaultOllamaURL
		}
		return ollama.NewChatModel(ctx, &ollama.ChatModelConfig{
			BaseURL: baseURL,
			Model:   modelName,
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", cfg.Provider)
	}
}

// NewGateway builds the chat model for cfg and wraps it in a ChatGateway.
func NewGateway(ctx context.Context, cfg ProviderConfig, counter tokens.Counter) (*ChatGateway, error) {
	chatModel, err := NewChatModel(ctx, cfg)
	if err != nil {
		return nil, err
	}
	modelName := cfg.Model
	if modelName == "" {
		modelName = cfg.Provider.DefaultModel()
	}
	return NewChatGateway(chatModel, modelName, counter), nil
}
