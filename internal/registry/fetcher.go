// Package registry fetches official company facts from the public CNPJ
// registry.
package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/cnpj-enrich/internal/cache"
	"github.com/sells-group/cnpj-enrich/internal/model"
	"github.com/sells-group/cnpj-enrich/pkg/brasilapi"
)

// CacheNamespace prefixes registry cache keys.
const CacheNamespace = "cnpj"

// DefaultTTL is how long official facts stay cached.
const DefaultTTL = 24 * time.Hour

// SourceLabel is the provenance string recorded when facts come from the registry.
func SourceLabel(taxID string) string {
	return "BrasilAPI - CNPJ: " + taxID
}

// Fetcher resolves a tax ID to official facts.
type Fetcher interface {
	Fetch(ctx context.Context, taxID string) (*model.OfficialFacts, error)
}

// UpstreamError is returned when the registry cannot be reached or answers
// with a non-success status.
type UpstreamError struct {
	TaxID      string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("registry: fetch CNPJ %s: %v", e.TaxID, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// BrasilAPIFetcher is a cache-first Fetcher backed by BrasilAPI.
type BrasilAPIFetcher struct {
	client brasilapi.Client
	cache  cache.Cache
	ttl    time.Duration
}

// NewFetcher creates a fetcher. c may be nil to disable caching.
func NewFetcher(client brasilapi.Client, c cache.Cache, ttl time.Duration) *BrasilAPIFetcher {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &BrasilAPIFetcher{client: client, cache: c, ttl: ttl}
}

// Fetch implements Fetcher.
func (f *BrasilAPIFetcher) Fetch(ctx context.Context, taxID string) (*model.OfficialFacts, error) {
	id := model.CleanTaxID(taxID)
	log := zap.L().With(zap.String("tax_id", id))
	key := cache.Key(CacheNamespace, id)

	if f.cache != nil {
		var cached model.OfficialFacts
		ok, err := f.cache.Get(ctx, key, &cached)
		if err != nil {
			log.Warn("registry: cache read failed", zap.Error(err))
		}
		if ok {
			log.Debug("registry: cache hit")
			return &cached, nil
		}
	}

	log.Info("registry: fetching from BrasilAPI")
	raw, err := f.client.GetCompany(ctx, id)
	if err != nil {
		ue := &UpstreamError{TaxID: id, Err: err}
		var se *brasilapi.StatusError
		if errors.As(err, &se) {
			ue.StatusCode = se.StatusCode
		}
		log.Error("registry: fetch failed", zap.Error(err))
		return nil, ue
	}

	facts := MapCompany(raw)

	if f.cache != nil {
		if err := f.cache.Set(ctx, key, facts, f.ttl); err != nil {
			log.Warn("registry: cache write failed", zap.Error(err))
		}
	}

	return &facts, nil
}
