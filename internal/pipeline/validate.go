package pipeline

import (
	"net/url"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/cnpj-enrich/internal/model"
)

// Validate attributes each extracted field to a search result and records
// those results as sources. Presence values are left unchanged.
//
// Matching is by substring: the site host within a result URL, the email
// within result content (case-insensitive), and for instagram any result
// whose content mentions "instagram".
func Validate(s model.State) model.State {
	if s.Presence == nil {
		return s.Clone()
	}

	var add []string
	if site := model.Deref(s.Presence.Site); site != "" {
		if u, err := url.Parse(site); err == nil && u.Hostname() != "" {
			host := u.Hostname()
			if r, ok := firstMatch(s.WebResults, func(r model.SearchResult) bool {
				return strings.Contains(r.URL, host)
			}); ok {
				add = append(add, r.URL)
			}
		}
	}

	lower := cases.Lower(language.Und)
	if email := model.Deref(s.Presence.Email); email != "" {
		needle := lower.String(email)
		if r, ok := firstMatch(s.WebResults, func(r model.SearchResult) bool {
			return strings.Contains(lower.String(r.Content), needle)
		}); ok {
			add = append(add, r.URL)
		}
	}

	if model.Deref(s.Presence.Instagram) != "" {
		if r, ok := firstMatch(s.WebResults, func(r model.SearchResult) bool {
			return strings.Contains(lower.String(r.Content), "instagram")
		}); ok {
			add = append(add, r.URL)
		}
	}

	return s.WithSources(add...)
}

func firstMatch(results []model.SearchResult, match func(model.SearchResult) bool) (model.SearchResult, bool) {
	for _, r := range results {
		if match(r) {
			return r, true
		}
	}
	return model.SearchResult{}, false
}
