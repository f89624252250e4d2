package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/cnpj-enrich/internal/config"
	"github.com/sells-group/cnpj-enrich/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestSQLite_ExecutionRoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.LogExecution(ctx, &model.ExecutionRecord{
		ID:         "e1",
		RequestID:  "req-1",
		TaxID:      "11222333000181",
		Operation:  model.OperationEnrich,
		Input:      "11222333000181",
		Output:     map[string]any{"razaoSocial": "ACME LTDA"},
		State:      model.AuditState{Sources: []string{"BrasilAPI - CNPJ: 11222333000181"}},
		Provider:   "openai",
		Model:      "gpt-4o-mini",
		TokensUsed: 120,
		DurationMs: 850,
		Success:    true,
		CreatedAt:  base,
	}))
	require.NoError(t, s.LogExecution(ctx, &model.ExecutionRecord{
		ID:        "e2",
		RequestID: "req-2",
		TaxID:     "99888777000166",
		Operation: model.OperationEnrich,
		Success:   false,
		Error:     "registry: fetch CNPJ 99888777000166: not found",
		CreatedAt: base.Add(time.Minute),
	}))

	all, err := s.ListExecutions(ctx, ExecutionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "e2", all[0].ID, "newest first")
	assert.False(t, all[0].Success)
	assert.Nil(t, all[0].Output)

	got, err := s.ListExecutions(ctx, ExecutionFilter{RequestID: "req-1"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	r := got[0]
	assert.Equal(t, "11222333000181", r.TaxID)
	assert.Empty(t, r.ConversationID)
	assert.Equal(t, model.OperationEnrich, r.Operation)
	assert.Equal(t, 120, r.TokensUsed)
	assert.Equal(t, int64(850), r.DurationMs)
	assert.True(t, r.Success)
	assert.Equal(t, "openai", r.Provider)

	raw, ok := r.Output.(json.RawMessage)
	require.True(t, ok)
	assert.JSONEq(t, `{"razaoSocial":"ACME LTDA"}`, string(raw))
}

func TestSQLite_ExecutionFilters(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	for i, op := range []model.Operation{model.OperationEnrich, model.OperationChat, model.OperationChat} {
		require.NoError(t, s.LogExecution(ctx, &model.ExecutionRecord{
			ID:             string(rune('a' + i)),
			RequestID:      "req",
			ConversationID: "conv-1",
			Operation:      op,
			Success:        true,
			CreatedAt:      base.Add(time.Duration(i) * time.Second),
		}))
	}

	chats, err := s.ListExecutions(ctx, ExecutionFilter{Operation: model.OperationChat})
	require.NoError(t, err)
	assert.Len(t, chats, 2)

	limited, err := s.ListExecutions(ctx, ExecutionFilter{ConversationID: "conv-1", Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "c", limited[0].ID)

	none, err := s.ListExecutions(ctx, ExecutionFilter{TaxID: "00000000000000"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLite_SearchRoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.LogSearch(ctx, &model.SearchRecord{
		ID:           "s1",
		RequestID:    "req-1",
		SearchTerm:   "ACME LTDA ACME",
		LegalName:    "ACME LTDA",
		TradeName:    "ACME",
		ResultsCount: 1,
		Results:      []model.SearchResult{{Title: "Acme", URL: "https://acme.com.br", Score: 0.93}},
		DurationMs:   400,
		Success:      true,
		CreatedAt:    base,
	}))
	require.NoError(t, s.LogSearch(ctx, &model.SearchRecord{
		ID:         "s2",
		SearchTerm: "OUTRA EMPRESA SA",
		LegalName:  "OUTRA EMPRESA SA",
		Success:    false,
		Error:      "search API key not configured",
		CreatedAt:  base.Add(time.Second),
	}))

	got, err := s.ListSearches(ctx, SearchFilter{Term: "acme"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "s1", got[0].ID)
	assert.Equal(t, "ACME", got[0].TradeName)
	require.Len(t, got[0].Results, 1)
	assert.Equal(t, "https://acme.com.br", got[0].Results[0].URL)

	all, err := s.ListSearches(ctx, SearchFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "s2", all[0].ID)
	assert.Nil(t, all[0].Results)
	assert.Equal(t, "search API key not configured", all[0].Error)
}

func TestSQLite_MessagesInConversationOrder(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	msgs := []model.Message{
		{ID: "m1", ConversationID: "conv-1", Role: model.RoleUser, Content: "Olá", CreatedAt: base},
		{ID: "m2", ConversationID: "conv-1", Role: model.RoleAssistant, Content: "Oi! 🌹", CreatedAt: base.Add(time.Second),
			Metadata: map[string]any{"requestId": "req-1"}},
		{ID: "m3", ConversationID: "conv-2", Role: model.RoleUser, Content: "outra", CreatedAt: base},
	}
	for i := range msgs {
		require.NoError(t, s.LogMessage(ctx, &msgs[i]))
	}

	got, err := s.ListMessages(ctx, "conv-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "m1", got[0].ID)
	assert.Nil(t, got[0].Metadata)
	assert.Equal(t, "m2", got[1].ID)
	assert.Equal(t, "req-1", got[1].Metadata["requestId"])

	empty, err := s.ListMessages(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	s := newTestSQLite(t)
	assert.NoError(t, s.Migrate(context.Background()))
}

func TestOpen_SQLite(t *testing.T) {
	st, err := Open(context.Background(), config.StoreConfig{
		Driver:      "sqlite",
		DatabaseURL: filepath.Join(t.TempDir(), "open.db"),
	})
	require.NoError(t, err)
	defer st.Close()

	list, err := st.ListExecutions(context.Background(), ExecutionFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{Driver: "mysql"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown driver "mysql"`)
}

func TestConds(t *testing.T) {
	c := &conds{dollar: true}
	c.addIf("a = ?", "x")
	c.addIf("b = ?", "")
	c.add("c ILIKE ?", "%y%")
	tail, args := c.finish("created_at DESC", 0)

	assert.Equal(t, " WHERE a = $1 AND c ILIKE $2 ORDER BY created_at DESC LIMIT $3", tail)
	assert.Equal(t, []any{"x", "%y%", DefaultLimit}, args)

	q := &conds{}
	tail, args = q.finish("created_at ASC", 5)
	assert.Equal(t, " ORDER BY created_at ASC LIMIT ?", tail)
	assert.Equal(t, []any{5}, args)
}
