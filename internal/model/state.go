package model

// State is the per-request accumulator threaded through the enrichment
// stages. Every With* method returns a new State; the receiver is never
// modified and the result shares no slices or pointers with it.
type State struct {
	TaxID          string
	RequestID      string
	ConversationID string
	Facts          *OfficialFacts
	WebResults     []SearchResult
	Presence       *DigitalPresence
	Sources        []string
	TokensUsed     int
}

// NewState creates the initial state for a request.
func NewState(taxID, requestID, conversationID string) State {
	return State{
		TaxID:          CleanTaxID(taxID),
		RequestID:      requestID,
		ConversationID: conversationID,
		Sources:        []string{},
	}
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := s
	if s.Facts != nil {
		f := *s.Facts
		out.Facts = &f
	}
	if s.WebResults != nil {
		out.WebResults = append([]SearchResult(nil), s.WebResults...)
	}
	if s.Presence != nil {
		p := s.Presence.Clone()
		out.Presence = &p
	}
	out.Sources = append([]string{}, s.Sources...)
	return out
}

// WithFacts sets the official facts.
func (s State) WithFacts(f OfficialFacts) State {
	out := s.Clone()
	out.Facts = &f
	return out
}

// WithWebResults replaces the search results.
func (s State) WithWebResults(results []SearchResult) State {
	out := s.Clone()
	out.WebResults = append([]SearchResult{}, results...)
	return out
}

// WithPresence sets the digital presence.
func (s State) WithPresence(p DigitalPresence) State {
	out := s.Clone()
	c := p.Clone()
	out.Presence = &c
	return out
}

// WithSources returns a state whose sources are the existing ones plus any
// of srcs not already present. Empty strings are ignored.
func (s State) WithSources(srcs ...string) State {
	out := s.Clone()
	out.Sources = AppendUnique(out.Sources, srcs...)
	return out
}

// WithTokens adds n to the token counter.
func (s State) WithTokens(n int) State {
	out := s.Clone()
	out.TokensUsed += n
	return out
}

// HasSource reports whether src is already recorded.
func (s State) HasSource(src string) bool {
	for _, existing := range s.Sources {
		if existing == src {
			return true
		}
	}
	return false
}

// AppendUnique appends the values of add to dst that are neither empty nor
// already in dst, preserving order.
func AppendUnique(dst []string, add ...string) []string {
	seen := make(map[string]struct{}, len(dst)+len(add))
	for _, v := range dst {
		seen[v] = struct{}{}
	}
	for _, v := range add {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		dst = append(dst, v)
	}
	return dst
}
