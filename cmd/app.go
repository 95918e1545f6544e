package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/arin/morph/internal/catalog"
	"github.com/arin/morph/internal/chat"
	"github.com/arin/morph/internal/config"
	"github.com/arin/morph/internal/observability"
	"github.com/arin/morph/internal/search"
)

// app holds everything a command needs to run turns.
type app struct {
	cfg     *config.Config
	creds   chat.Credentials
	catalog *catalog.Catalog
	orch    *chat.Orchestrator
	log     zerolog.Logger
	// redis is set when a search cache is configured.
	redis *search.RedisStore
}

// newApp loads configuration and wires the orchestrator. metrics may be nil.
func newApp(metrics *observability.Metrics) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	log := observability.GetLogger()

	cat, err := catalog.Load(cfg.ModelsFile)
	if err != nil {
		return nil, err
	}
	for _, skipped := range cat.Skipped() {
		log.Warn().Err(skipped).Msg("ignoring invalid catalog entry")
	}

	a := &app{cfg: cfg, creds: cfg.Credentials(), catalog: cat, log: log}

	var searcher chat.Searcher
	if a.creds.Tavily != "" {
		searcher = search.NewTavily(a.creds.Tavily)
		if cfg.RedisURL != "" {
			rdb, err := search.DialRedis(cfg.RedisURL)
			if err != nil {
				log.Warn().Err(err).Msg("search cache disabled")
			} else {
				a.redis = search.NewRedisStore(rdb)
				searcher = search.NewCached(searcher, a.redis, cfg.SearchCacheTTL, log)
			}
		}
	}

	opts := chat.Options{Logger: &log}
	if metrics != nil {
		opts.Metrics = metrics
	}
	a.orch = chat.New(chat.NewDispatcher(cfg.DispatcherOptions()...), searcher, opts)
	return a, nil
}

// models returns the models usable with the configured keys.
func (a *app) models() []chat.ModelDescriptor {
	return a.catalog.ListEnabledModels(a.creds)
}

// resolveModel picks the model for ref, falling back to the configured
// preference and then to the default.
func (a *app) resolveModel(ref string) (chat.ModelDescriptor, error) {
	if ref == "" {
		ref = a.cfg.Model
	}
	m, ok := chat.ResolveModel(a.models(), ref)
	if !ok {
		return m, fmt.Errorf("model %q is unknown or has no API key configured (try: morph models)", ref)
	}
	return m, nil
}

// pingRedis checks the search cache, if one is configured.
func (a *app) pingRedis(ctx context.Context) error {
	if a.redis == nil {
		return nil
	}
	return a.redis.Ping(ctx)
}
