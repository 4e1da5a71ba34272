package cli

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/samber/lo"

	"chatcli/internal/config"
	"chatcli/internal/cost"
	"chatcli/internal/history"
	"chatcli/internal/service/ai"
	"chatcli/internal/session"
	"chatcli/internal/storage"
	"chatcli/internal/tokens"
)

// gatewayFactory builds the provider gateway. Tests replace it.
var gatewayFactory = func(ctx context.Context, cfg ai.ProviderConfig, counter tokens.Counter) (ai.Gateway, error) {
	return ai.NewGateway(ctx, cfg, counter)
}

// app is everything a command needs once configuration has been resolved.
type app struct {
	cfg      *config.Config
	provider ai.Provider
	model    string
	counter  *tokens.Estimator
	pricing  cost.Table
	gateway  ai.Gateway
}

func loadApp(ctx context.Context, opts *rootOptions, logf func(format string, args ...any)) (*app, error) {
	config.LoadDotEnv()
	path := opts.configPath
	if path == "" {
		path = os.Getenv("CHATCLI_CONFIG")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	explicit := lo.Ternary(opts.provider != "", opts.provider, cfg.Provider)
	keys := lo.MapKeys(cfg.ProviderKeys(), func(_ string, name string) ai.Provider { return ai.Provider(name) })
	provider, err := ai.DetectProvider(explicit, keys)
	if err != nil {
		return nil, err
	}

	pc := cfg.Providers[string(provider)]
	model := lo.CoalesceOrEmpty(opts.model, pc.Model, provider.DefaultModel())

	counter := tokens.NewEstimator()
	gw, err := gatewayFactory(ctx, ai.ProviderConfig{
		Provider:        provider,
		Model:           model,
		APIKey:          pc.APIKey,
		BaseURL:         pc.BaseURL,
		MaxOutputTokens: cfg.Chat.MaxOutputTokens,
	}, counter)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:      cfg,
		provider: provider,
		model:    model,
		counter:  counter,
		pricing:  pricingTable(cfg.Pricing),
		gateway:  ai.WithRetry(gw, retryPolicy(cfg.Retry), logf),
	}, nil
}

func retryPolicy(rc config.RetryConfig) ai.RetryPolicy {
	return ai.RetryPolicy{
		MaxAttempts: rc.MaxAttempts,
		BaseDelay:   time.Duration(rc.BaseDelayMS) * time.Millisecond,
		MaxDelay:    time.Duration(rc.MaxDelayMS) * time.Millisecond,
		Multiplier:  rc.Multiplier,
	}
}

func pricingTable(overrides []config.PriceConfig) cost.Table {
	if len(overrides) == 0 {
		return cost.DefaultTable
	}
	extra := lo.SliceToMap(overrides, func(p config.PriceConfig) (string, cost.Pricing) {
		return p.Model, cost.NewPricing(p.InputPer1K, p.OutputPer1K)
	})
	return cost.DefaultTable.With(extra)
}

func (a *app) options() ai.Options {
	return ai.Options{
		Temperature:     lo.ToPtr(a.cfg.Chat.Temperature),
		MaxOutputTokens: a.cfg.Chat.MaxOutputTokens,
	}
}

func (a *app) sessionConfig(systemPrompt, contextDoc string) session.Config {
	return session.Config{
		Model:   a.model,
		Options: a.options(),
		Budget: history.Budget{
			MaxContextTokens:     a.cfg.Chat.MaxContextTokens,
			ReservedOutputTokens: a.cfg.Chat.ReservedOutputTokens,
			ThresholdTokens:      a.cfg.Chat.TruncateThresholdTokens,
		},
		Pricing:         a.pricing,
		SystemPrompt:    systemPrompt,
		ContextDocument: contextDoc,
	}
}

// openLedger returns nil, nil when the ledger is disabled.
func (a *app) openLedger() (*storage.Ledger, *sql.DB, error) {
	if !a.cfg.Database.Enabled {
		return nil, nil, nil
	}
	db, err := storage.Open(a.cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	if err := storage.Migrate(db, a.cfg.Database.Driver); err != nil {
		db.Close()
		return nil, nil, err
	}
	ledger, err := storage.NewLedger(db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return ledger, db, nil
}

func (a *app) banner() string {
	return fmt.Sprintf("Using %s (%s)", strings.ToUpper(string(a.provider)), a.model)
}
