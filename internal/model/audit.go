package model

import "time"

// Operation identifies what an execution record describes.
type Operation string

const (
	OperationEnrich Operation = "enrich"
	OperationChat   Operation = "chat"
)

// ExecutionRecord is an audit entry for one enrich or chat call.
type ExecutionRecord struct {
	ID             string    `json:"id"`
	RequestID      string    `json:"request_id"`
	TaxID          string    `json:"tax_id,omitempty"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Operation      Operation `json:"operation"`
	Input          string    `json:"input,omitempty"`
	Output         any       `json:"output,omitempty"`
	State          any       `json:"state,omitempty"`
	Provider       string    `json:"provider,omitempty"`
	Model          string    `json:"model,omitempty"`
	TokensUsed     int       `json:"tokens_used"`
	DurationMs     int64     `json:"duration_ms"`
	Success        bool      `json:"success"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// SearchRecord is an audit entry for one web-search invocation.
type SearchRecord struct {
	ID             string         `json:"id"`
	RequestID      string         `json:"request_id,omitempty"`
	ConversationID string         `json:"conversation_id,omitempty"`
	SearchTerm     string         `json:"search_term"`
	LegalName      string         `json:"legal_name,omitempty"`
	TradeName      string         `json:"trade_name,omitempty"`
	ResultsCount   int            `json:"results_count"`
	Results        []SearchResult `json:"results,omitempty"`
	FromCache      bool           `json:"from_cache"`
	DurationMs     int64          `json:"duration_ms"`
	Success        bool           `json:"success"`
	Error          string         `json:"error,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Message is one persisted chat message.
type Message struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	Role           string         `json:"role"`
	Content        string         `json:"content"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// AuditState is the trimmed state snapshot stored with an enrich record.
type AuditState struct {
	Facts    *OfficialFacts   `json:"facts,omitempty"`
	Presence *DigitalPresence `json:"presence,omitempty"`
	Sources  []string         `json:"sources"`
}
