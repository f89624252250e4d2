package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/cnpj-enrich/internal/archive"
	"github.com/sells-group/cnpj-enrich/internal/cache"
	"github.com/sells-group/cnpj-enrich/internal/llm"
	"github.com/sells-group/cnpj-enrich/internal/pipeline"
	"github.com/sells-group/cnpj-enrich/internal/registry"
	"github.com/sells-group/cnpj-enrich/internal/search"
	"github.com/sells-group/cnpj-enrich/internal/store"
	"github.com/sells-group/cnpj-enrich/pkg/brasilapi"
	"github.com/sells-group/cnpj-enrich/pkg/tavily"
)

// agentEnv holds the initialized clients and the Service used by the
// enrich, chat, batch and serve commands.
type agentEnv struct {
	Store   store.Store
	Cache   *cache.Badger
	Service *pipeline.Service
}

// Close releases resources held by the environment.
func (e *agentEnv) Close() {
	if e.Store != nil {
		if err := e.Store.Close(); err != nil {
			zap.L().Warn("close store", zap.Error(err))
		}
	}
	if e.Cache != nil {
		if err := e.Cache.Close(); err != nil {
			zap.L().Warn("close cache", zap.Error(err))
		}
	}
}

// initStore opens the audit store and, when Kafka brokers are configured,
// fans writes out to the audit topic.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}
	if len(cfg.Kafka.Brokers) == 0 {
		return st, nil
	}
	zap.L().Info("audit stream enabled",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.Topic),
	)
	return store.NewMulti(st, store.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)), nil
}

// initAgent builds the full enrichment stack. Callers should defer env.Close().
func initAgent(ctx context.Context, mode string) (*agentEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	c, err := cache.Open(cfg.Cache.Dir)
	if err != nil {
		return nil, eris.Wrap(err, "init cache")
	}
	env := &agentEnv{Cache: c}

	st, err := initStore(ctx)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Store = st

	extractLLM, err := llm.New(ctx, cfg, cfg.LLM.ExtractTemperature)
	if err != nil {
		env.Close()
		return nil, eris.Wrap(err, "init extraction model")
	}
	chatLLM, err := llm.New(ctx, cfg, cfg.LLM.ChatTemperature)
	if err != nil {
		env.Close()
		return nil, eris.Wrap(err, "init chat model")
	}

	registryClient := brasilapi.NewClient(
		brasilapi.WithBaseURL(cfg.Registry.BaseURL),
		brasilapi.WithTimeout(time.Duration(cfg.Registry.TimeoutSecs)*time.Second),
	)
	fetcher := registry.NewFetcher(registryClient, c, time.Duration(cfg.Registry.CacheTTLHours)*time.Hour)

	var searcher search.Provider
	if cfg.Search.Enabled {
		tavilyClient := tavily.NewClient(cfg.Search.APIKey,
			tavily.WithBaseURL(cfg.Search.BaseURL),
			tavily.WithTimeout(time.Duration(cfg.Search.TimeoutSecs)*time.Second),
			tavily.WithRateLimit(cfg.Search.RatePerSecond),
		)
		searcher = search.New(tavilyClient, c, st, search.Config{
			APIKey:         cfg.Search.APIKey,
			MaxResults:     cfg.Search.MaxResults,
			MinScore:       cfg.Search.MinScore,
			ExcludeDomains: cfg.Search.ExcludeDomains,
			CacheTTL:       time.Duration(cfg.Search.CacheTTLHours) * time.Hour,
		})
	} else {
		zap.L().Info("web search disabled")
	}

	deps := pipeline.Deps{
		Pipeline: pipeline.New(fetcher, searcher, pipeline.NewExtractor(extractLLM), cfg.Search.Enabled),
		Extract:  extractLLM,
		Chat:     chatLLM,
		Auditor:  st,
		Messages: st,
	}

	if cfg.Archive.Endpoint != "" {
		a, err := archive.New(ctx, cfg.Archive)
		if err != nil {
			zap.L().Warn("archive unavailable, responses will not be archived", zap.Error(err))
		} else {
			deps.Archive = a
		}
	}

	env.Service = pipeline.NewService(deps)

	zap.L().Info("agent ready",
		zap.String("llm", extractLLM.Name()),
		zap.String("model", extractLLM.Model()),
		zap.String("store", cfg.Store.Driver),
		zap.Bool("search", cfg.Search.Enabled),
	)
	return env, nil
}
