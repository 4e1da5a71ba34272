package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

var envVars = []string{
	"CHATCLI_PROVIDER", "PROVIDER", "OPENAI_API_KEY", "OPENAI_MODEL", "GEMINI_API_KEY",
	"GEMINI_MODEL", "ANTHROPIC_API_KEY", "ANTHROPIC_MODEL", "P1_TEMPERATURE", "P1_MAX_TOKENS",
	"CHATCLI_CHAT_MAX_CONTEXT_TOKENS",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range envVars {
		t.Setenv(name, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Chat.MaxContextTokens != 4096 || cfg.Chat.ReservedOutputTokens != 500 || cfg.Chat.TruncateThresholdTokens != 3500 {
		t.Fatalf("unexpected budget defaults: %+v", cfg.Chat)
	}
	if cfg.Chat.MaxOutputTokens != 500 || cfg.Chat.Temperature < 0.099 || cfg.Chat.Temperature > 0.101 {
		t.Fatalf("unexpected generation defaults: %+v", cfg.Chat)
	}
	if cfg.Providers["gemini"].Model != "gemini-2.5-flash-lite" || cfg.Providers["openai"].Model != "gpt-4o-mini" {
		t.Fatalf("unexpected model defaults: %+v", cfg.Providers)
	}
	if cfg.BasicConfig.ServerAddress != ":8090" {
		t.Fatalf("unexpected server address %q", cfg.BasicConfig.ServerAddress)
	}
	if !cfg.Database.Enabled || cfg.Database.DSN != DefaultSQLiteDSN {
		t.Fatalf("unexpected database defaults: %+v", cfg.Database)
	}
	if len(cfg.ProviderKeys()) != 0 {
		t.Fatalf("expected no keys, got %v", cfg.ProviderKeys())
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `{
		"provider": "openai",
		"providers": {"openai": {"model": "gpt-4.1-mini", "api_key": "from-file"}},
		"chat": {"max_context_tokens": 8192, "context_file": "notes.md"},
		"pricing": [{"model": "gemini-2.5-flash", "input_per_1k": 0.001, "output_per_1k": 0.002}]
	}`)
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("OPENAI_MODEL", "gpt-4o")
	t.Setenv("P1_MAX_TOKENS", "42")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Provider != "openai" {
		t.Fatalf("expected provider from file, got %q", cfg.Provider)
	}
	if cfg.Providers["openai"].Model != "gpt-4o" || cfg.Providers["openai"].APIKey != "from-file" {
		t.Fatalf("unexpected openai config: %+v", cfg.Providers["openai"])
	}
	if cfg.Providers["gemini"].APIKey != "g-key" {
		t.Fatalf("expected gemini key from env, got %+v", cfg.Providers["gemini"])
	}
	if cfg.Chat.MaxOutputTokens != 42 || cfg.Chat.MaxContextTokens != 8192 {
		t.Fatalf("unexpected chat config: %+v", cfg.Chat)
	}
	if cfg.Chat.ContextFile != filepath.Join(filepath.Dir(path), "notes.md") {
		t.Fatalf("context file not resolved against config dir: %q", cfg.Chat.ContextFile)
	}
	if len(cfg.Pricing) != 1 || cfg.Pricing[0].Model != "gemini-2.5-flash" {
		t.Fatalf("unexpected pricing overrides: %+v", cfg.Pricing)
	}
	keys := cfg.ProviderKeys()
	if keys["openai"] != "from-file" || keys["gemini"] != "g-key" {
		t.Fatalf("unexpected keys: %v", keys)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatalf("expected error for missing explicit config")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := map[string]string{
		"provider":      `{"provider": "bard"}`,
		"reserved":      `{"chat": {"max_context_tokens": 100, "reserved_output_tokens": 200}}`,
		"max tokens":    `{"chat": {"max_output_tokens": 0}}`,
		"retry":         `{"retry": {"max_attempts": 0}}`,
		"pricing model": `{"pricing": [{"input_per_1k": 1}]}`,
		"driver":        `{"database": {"driver": "postgres"}}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			_, err := Load(writeConfig(t, body))
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestLoadDotEnvDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("CHATCLI_TEST_A=from-file\nCHATCLI_TEST_B=from-file\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("CHATCLI_TEST_A", "from-env")
	os.Unsetenv("CHATCLI_TEST_B")
	t.Cleanup(func() { os.Unsetenv("CHATCLI_TEST_B") })

	LoadDotEnv(envPath, filepath.Join(dir, "missing.env"))

	if got := os.Getenv("CHATCLI_TEST_A"); got != "from-env" {
		t.Fatalf("existing variable overridden: %q", got)
	}
	if got := os.Getenv("CHATCLI_TEST_B"); got != "from-file" {
		t.Fatalf("variable not loaded: %q", got)
	}
}
