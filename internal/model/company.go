package model

// OfficialFacts holds the canonical registry attributes of a company.
type OfficialFacts struct {
	LegalName    string `json:"legal_name"`
	TradeName    string `json:"trade_name,omitempty"` // empty when the registry has none
	Status       string `json:"status"`
	ActivityCode string `json:"activity_code"`
	Address      string `json:"address"`
}

// SearchResult is a single web-search hit.
type SearchResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// DigitalPresence is the inferred public web footprint of a company.
// A nil field means no evidence was found.
type DigitalPresence struct {
	Site      *string `json:"site"`
	Email     *string `json:"email"`
	Instagram *string `json:"instagram"`
	Logo      *string `json:"logo"`
}

// Empty reports whether none of site, email or instagram was found.
// Logo is derived data and does not count as presence.
func (p DigitalPresence) Empty() bool {
	return p.Site == nil && p.Email == nil && p.Instagram == nil
}

// Clone returns a copy that shares no pointers with p.
func (p DigitalPresence) Clone() DigitalPresence {
	return DigitalPresence{
		Site:      cloneStr(p.Site),
		Email:     cloneStr(p.Email),
		Instagram: cloneStr(p.Instagram),
		Logo:      cloneStr(p.Logo),
	}
}

// StrPtr returns a pointer to s, or nil when s is empty.
func StrPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func cloneStr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
