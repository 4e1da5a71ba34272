package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DefaultPath      = "config.json"
	DefaultSQLiteDSN = ":memory:"
	envPrefix        = "CHATCLI"
)

// ErrInvalid marks configuration that cannot start a session.
var ErrInvalid = errors.New("invalid configuration")

var validate = validator.New()

// Config represents runtime configuration for the CLI.
type Config struct {
	Provider    string                    `mapstructure:"provider" validate:"omitempty,oneof=openai gemini claude ollama"`
	BasicConfig BasicConfig               `mapstructure:"basic_config"`
	Providers   map[string]ProviderConfig `mapstructure:"providers" validate:"dive"`
	Chat        ChatConfig                `mapstructure:"chat"`
	Retry       RetryConfig               `mapstructure:"retry"`
	Pricing     []PriceConfig             `mapstructure:"pricing" validate:"dive"`
	Database    DatabaseConfig            `mapstructure:"database"`
}

type ProviderConfig struct {
	BaseURL string `mapstructure:"base_url" validate:"omitempty,url"`
	Model   string `mapstructure:"model"`
	APIKey  string `mapstructure:"api_key"`
}

type BasicConfig struct {
	ServerAddress string `mapstructure:"server_address" validate:"required"`
}

// ChatConfig holds generation settings and the context budget.
type ChatConfig struct {
	Temperature             float32 `mapstructure:"temperature" validate:"gte=0,lte=2"`
	MaxOutputTokens         int     `mapstructure:"max_output_tokens" validate:"gt=0"`
	MaxContextTokens        int     `mapstructure:"max_context_tokens" validate:"gt=0"`
	ReservedOutputTokens    int     `mapstructure:"reserved_output_tokens" validate:"gte=0,ltfield=MaxContextTokens"`
	TruncateThresholdTokens int     `mapstructure:"truncate_threshold_tokens" validate:"gt=0"`
	SystemPrompt            string  `mapstructure:"system_prompt"`
	ContextFile             string  `mapstructure:"context_file"`
}

type RetryConfig struct {
	MaxAttempts int     `mapstructure:"max_attempts" validate:"gt=0"`
	BaseDelayMS int     `mapstructure:"base_delay_ms" validate:"gt=0"`
	MaxDelayMS  int     `mapstructure:"max_delay_ms" validate:"gtefield=BaseDelayMS"`
	Multiplier  float64 `mapstructure:"multiplier" validate:"gte=1"`
}

// PriceConfig overrides the built-in price of one model, in USD per 1000
// tokens. It is a list rather than a map because model names contain dots.
type PriceConfig struct {
	Model       string  `mapstructure:"model" validate:"required"`
	InputPer1K  float64 `mapstructure:"input_per_1k" validate:"gte=0"`
	OutputPer1K float64 `mapstructure:"output_per_1k" validate:"gte=0"`
}

type DatabaseConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Driver  string `mapstructure:"driver" validate:"omitempty,oneof=sqlite sqlite3 mysql"`
	DSN     string `mapstructure:"dsn"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", "")
	v.SetDefault("basic_config.server_address", ":8090")

	v.SetDefault("providers.openai.model", "gpt-4o-mini")
	v.SetDefault("providers.gemini.model", "gemini-2.5-flash-lite")
	v.SetDefault("providers.claude.model", "claude-haiku-4-5")
	v.SetDefault("providers.ollama.model", "llama3.2")
	v.SetDefault("providers.ollama.base_url", "http://localhost:11434")

	v.SetDefault("chat.temperature", 0.1)
	v.SetDefault("chat.max_output_tokens", 500)
	v.SetDefault("chat.max_context_tokens", 4096)
	v.SetDefault("chat.reserved_output_tokens", 500)
	v.SetDefault("chat.truncate_threshold_tokens", 3500)
	v.SetDefault("chat.system_prompt", "")
	v.SetDefault("chat.context_file", "")

	v.SetDefault("retry.max_attempts", 5)
	v.SetDefault("retry.base_delay_ms", 1000)
	v.SetDefault("retry.max_delay_ms", 30000)
	v.SetDefault("retry.multiplier", 2.0)

	v.SetDefault("database.enabled", true)
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", DefaultSQLiteDSN)
}

// legacyEnv keeps the variable names the scripts always read.
var legacyEnv = map[string][]string{
	"provider":                 {"CHATCLI_PROVIDER", "PROVIDER"},
	"providers.openai.api_key": {"OPENAI_API_KEY"},
	"providers.openai.model":   {"OPENAI_MODEL"},
	"providers.gemini.api_key": {"GEMINI_API_KEY"},
	"providers.gemini.model":   {"GEMINI_MODEL"},
	"providers.claude.api_key": {"ANTHROPIC_API_KEY"},
	"providers.claude.model":   {"ANTHROPIC_MODEL"},
	"chat.temperature":         {"P1_TEMPERATURE"},
	"chat.max_output_tokens":   {"P1_MAX_TOKENS"},
}

// LoadDotEnv loads .env files into the process environment without
// overriding variables that are already set. Missing files are fine.
func LoadDotEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Printf("load %s: %v", p, err)
		}
	}
}

// Load reads configuration from path (defaults to config.json), then applies
// environment overrides and validates the result. A missing default file is
// not an error; a missing explicit one is.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		path = DefaultPath
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	v := viper.New()
	v.SetConfigType("json")
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, envs := range legacyEnv {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if _, statErr := os.Stat(absPath); statErr == nil {
		v.SetConfigFile(absPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", absPath, err)
		}
	} else if explicit || !errors.Is(statErr, os.ErrNotExist) {
		return nil, fmt.Errorf("open config %s: %w", absPath, statErr)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Chat.ContextFile != "" && !filepath.IsAbs(cfg.Chat.ContextFile) && explicit {
		cfg.Chat.ContextFile = filepath.Join(filepath.Dir(absPath), cfg.Chat.ContextFile)
	}
	return &cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// ProviderKeys returns the configured API key per provider name.
func (c *Config) ProviderKeys() map[string]string {
	keys := make(map[string]string, len(c.Providers))
	for name, p := range c.Providers {
		if p.APIKey != "" {
			keys[name] = p.APIKey
		}
	}
	return keys
}
