// Package store persists the audit trail of enrichment and chat calls:
// execution records, search records and conversation messages.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/cnpj-enrich/internal/config"
	"github.com/sells-group/cnpj-enrich/internal/model"
)

// DefaultLimit caps list queries that do not set a limit.
const DefaultLimit = 100

// ExecutionFilter selects execution records. Empty fields match anything.
type ExecutionFilter struct {
	RequestID      string          `json:"request_id,omitempty"`
	TaxID          string          `json:"tax_id,omitempty"`
	ConversationID string          `json:"conversation_id,omitempty"`
	Operation      model.Operation `json:"operation,omitempty"`
	Limit          int             `json:"limit,omitempty"`
}

// SearchFilter selects search records. Term matches case-insensitively
// anywhere in the search term.
type SearchFilter struct {
	RequestID      string `json:"request_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	Term           string `json:"term,omitempty"`
	Limit          int    `json:"limit,omitempty"`
}

// Sink is the write side of the audit trail.
type Sink interface {
	LogExecution(ctx context.Context, rec *model.ExecutionRecord) error
	LogSearch(ctx context.Context, rec *model.SearchRecord) error
	LogMessage(ctx context.Context, msg *model.Message) error
}

// Store is a queryable audit sink.
type Store interface {
	Sink

	// Lists are ordered newest first, except messages which are in
	// conversation order.
	ListExecutions(ctx context.Context, f ExecutionFilter) ([]model.ExecutionRecord, error)
	ListSearches(ctx context.Context, f SearchFilter) ([]model.SearchRecord, error)
	ListMessages(ctx context.Context, conversationID string) ([]model.Message, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open connects to the configured backend and applies migrations.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		st  Store
		err error
	)
	switch cfg.Driver {
	case "postgres":
		st, err = NewPostgres(ctx, cfg.DatabaseURL, nil)
	case "sqlite", "":
		st, err = NewSQLite(cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func limitOrDefault(n int) int {
	if n <= 0 {
		return DefaultLimit
	}
	return n
}
