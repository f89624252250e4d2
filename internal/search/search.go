// Package search finds web evidence of a company's digital presence.
package search

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/cnpj-enrich/internal/cache"
	"github.com/sells-group/cnpj-enrich/internal/model"
	"github.com/sells-group/cnpj-enrich/internal/resilience"
	"github.com/sells-group/cnpj-enrich/pkg/tavily"
)

const (
	// CacheNamespace prefixes cached result sets.
	CacheNamespace = "web_search"
	// DefaultTTL is how long aggregated results stay cached.
	DefaultTTL = 6 * time.Hour
	// DefaultMinScore is the relevance floor for a result to be kept.
	DefaultMinScore = 0.8
	// DefaultMaxResults is the per-query result cap sent upstream.
	DefaultMaxResults = 10
)

// ErrNoAPIKey is recorded when the search API key is not configured.
var ErrNoAPIKey = errors.New("search API key not configured")

// DefaultExcludeDomains are directory and social sites that never carry
// first-party evidence.
var DefaultExcludeDomains = []string{
	"linkedin.com",
	"facebook.com",
	"reclameaqui.com.br",
	"paginasamarelas.com.br",
}

// Request identifies the company to search for.
type Request struct {
	LegalName      string
	TradeName      string
	RequestID      string
	ConversationID string
}

// Term is the search term used for caching and auditing.
func (r Request) Term() string {
	if r.TradeName == "" {
		return r.LegalName
	}
	return r.LegalName + " OR " + r.TradeName
}

// Queries returns the ordered list of queries issued for r.
func (r Request) Queries() []string {
	q := []string{
		"site oficial " + r.LegalName,
		r.LegalName + " contato email",
	}
	if r.TradeName != "" {
		q = append(q,
			"site oficial "+r.TradeName,
			r.TradeName+" instagram",
		)
	}
	return append(q, r.LegalName+" presença digital")
}

// Provider returns filtered, deduplicated web results. It never fails:
// problems are logged and audited and an empty list is returned.
type Provider interface {
	Search(ctx context.Context, req Request) []model.SearchResult
}

// Recorder receives one audit record per search invocation.
type Recorder interface {
	LogSearch(ctx context.Context, rec *model.SearchRecord) error
}

// Config controls query shape and result filtering.
type Config struct {
	APIKey         string
	SearchDepth    string
	MaxResults     int
	MinScore       float64
	ExcludeDomains []string
	CacheTTL       time.Duration
}

func (c Config) withDefaults() Config {
	if c.SearchDepth == "" {
		c.SearchDepth = "basic"
	}
	if c.MaxResults <= 0 {
		c.MaxResults = DefaultMaxResults
	}
	if c.MinScore <= 0 {
		c.MinScore = DefaultMinScore
	}
	if c.ExcludeDomains == nil {
		c.ExcludeDomains = DefaultExcludeDomains
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = DefaultTTL
	}
	return c
}

// TavilyProvider implements Provider on top of the Tavily search API.
type TavilyProvider struct {
	client   tavily.Client
	cache    cache.Cache
	recorder Recorder
	breaker  *resilience.Breaker
	cfg      Config
	now      func() time.Time
}

// New creates a TavilyProvider. c and rec may be nil.
func New(client tavily.Client, c cache.Cache, rec Recorder, cfg Config) *TavilyProvider {
	return &TavilyProvider{
		client:   client,
		cache:    c,
		recorder: rec,
		breaker:  resilience.NewBreaker(resilience.BreakerConfig{Name: "tavily"}),
		cfg:      cfg.withDefaults(),
		now:      time.Now,
	}
}

// Search runs the query set for req and returns the aggregated results.
func (p *TavilyProvider) Search(ctx context.Context, req Request) []model.SearchResult {
	start := p.now()
	term := req.Term()
	log := zap.L().With(
		zap.String("request_id", req.RequestID),
		zap.String("search_term", term),
	)

	rec := &model.SearchRecord{
		RequestID:      req.RequestID,
		ConversationID: req.ConversationID,
		SearchTerm:     term,
		LegalName:      req.LegalName,
		TradeName:      req.TradeName,
	}

	if p.cfg.APIKey == "" {
		log.Warn("search: api key not configured, skipping web search")
		p.record(ctx, rec, start, nil, ErrNoAPIKey)
		return []model.SearchResult{}
	}

	key := cache.Key(CacheNamespace, term)
	if p.cache != nil {
		var cached []model.SearchResult
		hit, err := p.cache.Get(ctx, key, &cached)
		if err != nil {
			log.Warn("search: cache read failed", zap.Error(err))
		}
		if hit {
			results := rank(filter(cached, p.cfg.MinScore))
			log.Info("search: cache hit",
				zap.Int("kept", len(results)),
				zap.Int("cached", len(cached)),
			)
			rec.FromCache = true
			p.record(ctx, rec, start, results, nil)
			return results
		}
	}

	var all []model.SearchResult
	for _, q := range req.Queries() {
		hits, err := p.query(ctx, q)
		if err != nil {
			log.Error("search: query failed", zap.String("query", q), zap.Error(err))
			p.record(ctx, rec, start, nil, err)
			return []model.SearchResult{}
		}
		all = append(all, hits...)
	}

	results := rank(dedupe(all))
	log.Info("search: results aggregated",
		zap.Int("unique", len(results)),
		zap.Int("total", len(all)),
	)

	if p.cache != nil {
		if err := p.cache.Set(ctx, key, results, p.cfg.CacheTTL); err != nil {
			log.Warn("search: cache write failed", zap.Error(err))
		}
	}

	p.record(ctx, rec, start, results, nil)
	return results
}

func (p *TavilyProvider) query(ctx context.Context, q string) ([]model.SearchResult, error) {
	resp, err := resilience.Call(ctx, p.breaker, func(ctx context.Context) (*tavily.SearchResponse, error) {
		return p.client.Search(ctx, tavily.SearchRequest{
			APIKey:         p.cfg.APIKey,
			Query:          q,
			SearchDepth:    p.cfg.SearchDepth,
			MaxResults:     p.cfg.MaxResults,
			IncludeDomains: []string{},
			ExcludeDomains: p.cfg.ExcludeDomains,
		})
	})
	if err != nil {
		return nil, err
	}

	out := make([]model.SearchResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		out = append(out, model.SearchResult{
			Title:   r.Title,
			URL:     r.URL,
			Content: r.Content,
			Score:   r.Score,
		})
	}
	return filter(out, p.cfg.MinScore), nil
}

func (p *TavilyProvider) record(ctx context.Context, rec *model.SearchRecord, start time.Time, results []model.SearchResult, err error) {
	rec.ID = uuid.NewString()
	rec.CreatedAt = p.now().UTC()
	rec.DurationMs = p.now().Sub(start).Milliseconds()
	rec.ResultsCount = len(results)
	rec.Results = results
	rec.Success = err == nil
	if err != nil {
		rec.Error = err.Error()
	}

	if p.recorder == nil {
		return
	}
	if lerr := p.recorder.LogSearch(context.WithoutCancel(ctx), rec); lerr != nil {
		zap.L().Warn("search: audit write failed",
			zap.String("request_id", rec.RequestID),
			zap.Error(lerr),
		)
	}
}

// filter keeps results scoring at least minScore.
func filter(results []model.SearchResult, minScore float64) []model.SearchResult {
	out := make([]model.SearchResult, 0, len(results))
	for _, r := range results {
		if r.Score >= minScore {
			out = append(out, r)
		}
	}
	return out
}

// dedupe drops results whose URL, compared case-insensitively, was already
// seen. The first occurrence wins.
func dedupe(results []model.SearchResult) []model.SearchResult {
	lower := cases.Lower(language.Und)
	seen := make(map[string]struct{}, len(results))
	out := make([]model.SearchResult, 0, len(results))
	for _, r := range results {
		k := lower.String(r.URL)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}

// rank sorts by score, highest first, keeping input order among ties.
func rank(results []model.SearchResult) []model.SearchResult {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results
}
