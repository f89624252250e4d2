package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/cnpj-enrich/internal/llm"
	"github.com/sells-group/cnpj-enrich/internal/model"
)

const faviconService = "https://www.google.com/s2/favicons?domain=%s&sz=128"

// presenceJSON is the object the model is asked to return.
type presenceJSON struct {
	Site      *string  `json:"site"`
	Email     *string  `json:"email"`
	Instagram *string  `json:"instagram"`
	Logo      *string  `json:"logo"`
	Sources   []string `json:"fontes"`
}

// Extractor infers a company's digital presence from search results with
// a single LLM call.
type Extractor struct {
	llm llm.Provider
}

// NewExtractor creates an Extractor backed by p.
func NewExtractor(p llm.Provider) *Extractor {
	return &Extractor{llm: p}
}

// Extract returns s with Presence set. It never fails: without facts, without
// results, or on any model or parse problem the presence is all-null.
func (e *Extractor) Extract(ctx context.Context, s model.State) model.State {
	log := zap.L().With(zap.String("request_id", s.RequestID), zap.String("tax_id", s.TaxID))

	if s.Facts == nil || len(s.WebResults) == 0 {
		log.Info("pipeline: no search results to extract from")
		return s.WithPresence(model.DigitalPresence{})
	}

	prompt := buildExtractionPrompt(*s.Facts, s.WebResults)
	res, err := e.llm.Invoke(ctx, prompt)
	if err != nil {
		log.Error("pipeline: extraction call failed", zap.Error(err))
		return s.WithPresence(model.DigitalPresence{})
	}

	tokens := llm.TokensFor(prompt, res)
	tokensUsed.WithLabelValues(e.llm.Name(), string(model.OperationEnrich)).Add(float64(tokens))
	s = s.WithTokens(tokens)

	parsed, ok := parsePresence(res.Content)
	if !ok {
		log.Warn("pipeline: no JSON object in extraction response")
		return s.WithPresence(model.DigitalPresence{})
	}

	p := model.DigitalPresence{
		Site:      model.StrPtr(strings.TrimSpace(model.Deref(parsed.Site))),
		Email:     model.StrPtr(strings.TrimSpace(model.Deref(parsed.Email))),
		Instagram: model.StrPtr(strings.TrimSpace(model.Deref(parsed.Instagram))),
		Logo:      model.StrPtr(strings.TrimSpace(model.Deref(parsed.Logo))),
	}
	if p.Site != nil && p.Logo == nil {
		p.Logo = faviconFor(*p.Site)
	}

	return s.WithPresence(p).WithSources(parsed.Sources...)
}

// parsePresence decodes the first JSON object in text, spanning from the
// first '{' to the last '}'.
func parsePresence(text string) (presenceJSON, bool) {
	var out presenceJSON
	obj, ok := firstObject(text)
	if !ok {
		return out, false
	}
	if err := json.Unmarshal([]byte(obj), &out); err != nil {
		return presenceJSON{}, false
	}
	return out, true
}

func firstObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// faviconFor derives a logo URL from the site host, or nil when the site is
// not an absolute URL.
func faviconFor(site string) *string {
	u, err := url.Parse(site)
	if err != nil || u.Host == "" {
		return nil
	}
	return model.StrPtr(fmt.Sprintf(faviconService, u.Host))
}
