package main

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/investor-cli/internal/api"
	"github.com/sells-group/investor-cli/internal/enrich"
	"github.com/sells-group/investor-cli/internal/finder"
	"github.com/sells-group/investor-cli/internal/generate"
	"github.com/sells-group/investor-cli/internal/prompt"
	"github.com/sells-group/investor-cli/internal/store"
	anthropicpkg "github.com/sells-group/investor-cli/pkg/anthropic"
	"github.com/sells-group/investor-cli/pkg/gemini"
	"github.com/sells-group/investor-cli/pkg/google"
)

// appEnv holds the store and the generation-backed services shared by the
// serve and find commands.
type appEnv struct {
	Store         store.Store
	Finder        *finder.Finder
	Contacts      *enrich.ContactEnricher
	ContactFinder *enrich.ContactFinder
	Firms         *enrich.FirmEnricher
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// Services adapts the environment to the HTTP router.
func (e *appEnv) Services() api.Services {
	return api.Services{
		Store:         e.Store,
		Finder:        e.Finder,
		Contacts:      e.Contacts,
		ContactFinder: e.ContactFinder,
		Firms:         e.Firms,
	}
}

// initStore opens the configured store.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "investors.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore validates cfg for mode, opens the store, and applies migrations.
func openStore(ctx context.Context, mode string) (store.Store, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initGenerator builds the retrying generation client for the configured provider.
func initGenerator(ctx context.Context) (*generate.Client, error) {
	var p generate.Provider
	switch strings.ToLower(cfg.Generation.Provider) {
	case "gemini":
		client, err := gemini.NewClient(ctx, cfg.Gemini.Key, gemini.WithBaseURL(cfg.Gemini.BaseURL), gemini.WithModel(cfg.Gemini.Model))
		if err != nil {
			return nil, err
		}
		p = generate.NewGeminiProvider(client, cfg.Gemini.Model)
	case "anthropic":
		var opts []anthropicpkg.Option
		if cfg.Anthropic.BaseURL != "" {
			opts = append(opts, anthropicpkg.WithBaseURL(cfg.Anthropic.BaseURL))
		}
		client := anthropicpkg.NewClient(cfg.Anthropic.Key, opts...)
		p = generate.NewAnthropicProvider(client, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens)
	default:
		return nil, eris.Errorf("unsupported generation provider: %s", cfg.Generation.Provider)
	}

	policy := generate.Policy{
		MaxAttempts:        cfg.Generation.MaxAttempts,
		ServerErrorBackoff: cfg.Generation.ServerErrorBackoff(),
		ServerErrorStep:    cfg.Generation.ServerErrorStep(),
		RateLimitBackoff:   cfg.Generation.RateLimitBackoff(),
		RateLimitStep:      cfg.Generation.RateLimitStep(),
	}
	return generate.New(p, policy, generate.WithRateLimit(cfg.Generation.RequestsPerSecond)), nil
}

// initEnv opens the store and wires every generation-backed service.
// Callers should defer env.Close().
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	st, err := openStore(ctx, mode)
	if err != nil {
		return nil, err
	}

	gen, err := initGenerator(ctx)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	strictness := prompt.ParseStrictness(cfg.Enrich.Strictness)

	var contactOpts []enrich.ContactOption
	if cfg.Google.Enabled() {
		search := google.NewClient(cfg.Google.Key, cfg.Google.CSEID, google.WithBaseURL(cfg.Google.BaseURL))
		contactOpts = append(contactOpts, enrich.WithSearch(search, cfg.Google.Results))
	} else {
		zap.L().Info("google search not configured, contact enrichment runs without evidence")
	}

	return &appEnv{
		Store:         st,
		Finder:        finder.New(gen, st, strictness, finder.WithCount(cfg.Generation.ResultsPerQuery)),
		Contacts:      enrich.NewContactEnricher(gen, st, strictness, contactOpts...),
		ContactFinder: enrich.NewContactFinder(gen, st, strictness, cfg.Enrich.ContactsPerFirm),
		Firms:         enrich.NewFirmEnricher(gen, st, strictness),
	}, nil
}
