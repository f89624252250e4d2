// Package pipeline turns a CNPJ into an enriched company profile: official
// registry facts, web evidence, LLM-extracted digital presence and the
// sources backing each field.
package pipeline

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sells-group/cnpj-enrich/internal/model"
	"github.com/sells-group/cnpj-enrich/internal/registry"
	"github.com/sells-group/cnpj-enrich/internal/search"
)

const tracerName = "github.com/sells-group/cnpj-enrich/internal/pipeline"

// Stage names, in execution order.
const (
	StageFetch    = "fetch"
	StageSearch   = "search"
	StageExtract  = "extract"
	StageValidate = "validate"
	StageFinalize = "finalize"
)

// Pipeline runs fetch, search, extract, validate and finalize in order.
// Only a fetch failure aborts a run; later stages degrade to empty results.
type Pipeline struct {
	fetcher       registry.Fetcher
	search        search.Provider
	extractor     *Extractor
	searchEnabled bool
}

// New creates a Pipeline. When searchEnabled is false the search stage
// yields no results and sp may be nil.
func New(f registry.Fetcher, sp search.Provider, ex *Extractor, searchEnabled bool) *Pipeline {
	return &Pipeline{
		fetcher:       f,
		search:        sp,
		extractor:     ex,
		searchEnabled: searchEnabled && sp != nil,
	}
}

// Run executes every stage on s and returns the final state.
func (p *Pipeline) Run(ctx context.Context, s model.State) (model.State, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline.Run",
		trace.WithAttributes(
			attribute.String("request_id", s.RequestID),
			attribute.String("tax_id", s.TaxID),
		),
	)
	defer span.End()

	s, err := p.fetch(ctx, s)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return s, err
	}

	s = p.webSearch(ctx, s)
	s = p.extract(ctx, s)
	s = p.validate(ctx, s)
	p.finalize(ctx, s)

	span.SetAttributes(
		attribute.Int("sources", len(s.Sources)),
		attribute.Int("tokens", s.TokensUsed),
	)
	return s, nil
}

func (p *Pipeline) fetch(ctx context.Context, s model.State) (model.State, error) {
	ctx, done := startStage(ctx, StageFetch)
	defer done()

	zap.L().Info("pipeline: fetching official data",
		zap.String("request_id", s.RequestID),
		zap.String("tax_id", s.TaxID),
	)

	facts, err := p.fetcher.Fetch(ctx, s.TaxID)
	if err != nil {
		zap.L().Error("pipeline: fetch failed",
			zap.String("request_id", s.RequestID),
			zap.String("tax_id", s.TaxID),
			zap.Error(err),
		)
		return s, err
	}

	return s.WithFacts(*facts).WithSources(registry.SourceLabel(s.TaxID)), nil
}

func (p *Pipeline) webSearch(ctx context.Context, s model.State) model.State {
	ctx, done := startStage(ctx, StageSearch)
	defer done()

	log := zap.L().With(zap.String("request_id", s.RequestID))
	if s.Facts == nil {
		log.Warn("pipeline: no official data, skipping web search")
		return s.WithWebResults(nil)
	}
	if !p.searchEnabled {
		log.Info("pipeline: web search disabled")
		return s.WithWebResults(nil)
	}

	results := p.search.Search(ctx, search.Request{
		LegalName:      s.Facts.LegalName,
		TradeName:      s.Facts.TradeName,
		RequestID:      s.RequestID,
		ConversationID: s.ConversationID,
	})
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("results", len(results)))
	return s.WithWebResults(results)
}

func (p *Pipeline) extract(ctx context.Context, s model.State) model.State {
	ctx, done := startStage(ctx, StageExtract)
	defer done()

	out := p.extractor.Extract(ctx, s)
	if pr := out.Presence; pr != nil {
		for field, v := range map[string]*string{"site": pr.Site, "email": pr.Email, "instagram": pr.Instagram, "logo": pr.Logo} {
			if v != nil {
				presenceFound.WithLabelValues(field).Inc()
			}
		}
	}
	return out
}

func (p *Pipeline) validate(ctx context.Context, s model.State) model.State {
	_, done := startStage(ctx, StageValidate)
	defer done()

	zap.L().Debug("pipeline: validating sources", zap.String("request_id", s.RequestID))
	return Validate(s)
}

func (p *Pipeline) finalize(ctx context.Context, s model.State) {
	_, done := startStage(ctx, StageFinalize)
	defer done()

	zap.L().Info("pipeline: enrichment complete",
		zap.String("request_id", s.RequestID),
		zap.String("tax_id", s.TaxID),
		zap.Int("sources", len(s.Sources)),
		zap.Int("tokens", s.TokensUsed),
	)
}

// startStage opens a span for a stage and returns a func that ends it and
// records its latency.
func startStage(ctx context.Context, name string) (context.Context, func()) {
	start := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline."+name)
	return ctx, func() {
		stageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		span.End()
	}
}
