package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/cnpj-enrich/internal/llm"
	"github.com/sells-group/cnpj-enrich/internal/model"
	"github.com/sells-group/cnpj-enrich/internal/registry"
)

type serviceFixture struct {
	fetcher *mockFetcher
	search  *mockSearch
	extract *mockLLM
	chat    *mockLLM
	sink    *memSink
	svc     *Service
}

func newFixture(t *testing.T) *serviceFixture {
	t.Helper()
	fx := &serviceFixture{
		fetcher: new(mockFetcher),
		search:  new(mockSearch),
		extract: newMockLLM(),
		chat:    newMockLLM(),
		sink:    &memSink{},
	}
	fx.svc = NewService(Deps{
		Pipeline: New(fx.fetcher, fx.search, NewExtractor(fx.extract), true),
		Extract:  fx.extract,
		Chat:     fx.chat,
		Auditor:  fx.sink,
		Messages: fx.sink,
		Archive:  fx.sink,
	})

	n := 0
	fx.svc.newID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	fx.svc.now = func() time.Time {
		clock = clock.Add(10 * time.Millisecond)
		return clock
	}
	return fx
}

// Scenario: formatted input reaches the fetcher as 14 digits.
func TestEnrich_CleansTaxID(t *testing.T) {
	fx := newFixture(t)
	fx.fetcher.On("Fetch", mock.Anything, "12345678000190").Return(&model.OfficialFacts{LegalName: "X"}, nil)
	fx.search.On("Search", mock.Anything, mock.Anything).Return([]model.SearchResult{})

	resp, err := fx.svc.Enrich(context.Background(), "12.345.678/0001-90", "")
	require.NoError(t, err)
	assert.Equal(t, "12345678000190", resp.TaxID)
	fx.fetcher.AssertExpectations(t)
}

// Scenario: minimal registry payload maps into the response.
func TestEnrich_MinimalRegistryRecord(t *testing.T) {
	fx := newFixture(t)
	fx.fetcher.On("Fetch", mock.Anything, "11222333000181").Return(&model.OfficialFacts{
		LegalName:    "Empresa Teste LTDA",
		Status:       "ATIVA",
		ActivityCode: registry.UnknownActivity,
		Address:      registry.UnknownAddress,
	}, nil)
	fx.search.On("Search", mock.Anything, mock.Anything).Return([]model.SearchResult{})

	resp, err := fx.svc.Enrich(context.Background(), "11222333000181", "conv-1")
	require.NoError(t, err)

	assert.Equal(t, "Empresa Teste LTDA", model.Deref(resp.LegalName))
	assert.Equal(t, "ATIVA", model.Deref(resp.Status))
	assert.Nil(t, resp.TradeName)
	assert.Nil(t, resp.Site)
	assert.Equal(t, []string{"BrasilAPI - CNPJ: 11222333000181"}, resp.Sources)
	assert.Equal(t, "id-1", resp.RequestID)
	assert.Contains(t, resp.Message, "Não encontrei informações sobre presença digital")

	require.Len(t, fx.sink.executions, 1)
	rec := fx.sink.executions[0]
	assert.True(t, rec.Success)
	assert.Equal(t, model.OperationEnrich, rec.Operation)
	assert.Equal(t, "id-1", rec.RequestID)
	assert.Equal(t, "conv-1", rec.ConversationID)
	assert.Equal(t, "11222333000181", rec.TaxID)
	assert.Equal(t, llm.ProviderOpenAI, rec.Provider)
	assert.Equal(t, "gpt-4o-mini", rec.Model)
	assert.Positive(t, rec.DurationMs)
	assert.Equal(t, *resp, rec.Output)
	st, ok := rec.State.(model.AuditState)
	require.True(t, ok)
	assert.Equal(t, resp.Sources, st.Sources)

	require.Len(t, fx.sink.archived, 1)
	assert.Equal(t, resp.RequestID, fx.sink.archived[0].RequestID)
}

// Scenario: site without logo gets a favicon-service logo.
func TestEnrich_FaviconLogo(t *testing.T) {
	fx := newFixture(t)
	fx.fetcher.On("Fetch", mock.Anything, mock.Anything).Return(acmeFacts, nil)
	fx.search.On("Search", mock.Anything, mock.Anything).Return(acmeResults)
	fx.extract.On("Invoke", mock.Anything, mock.Anything).Return(&llm.Result{
		Content: `{"site":"https://www.acme.com.br","logo":null}`,
	}, nil)

	resp, err := fx.svc.Enrich(context.Background(), "11222333000181", "")
	require.NoError(t, err)
	assert.Equal(t, "https://www.google.com/s2/favicons?domain=www.acme.com.br&sz=128", model.Deref(resp.Logo))
	assert.Positive(t, fx.sink.executions[0].TokensUsed)
}

func TestEnrich_UpstreamFailureAudited(t *testing.T) {
	fx := newFixture(t)
	fx.fetcher.On("Fetch", mock.Anything, mock.Anything).
		Return(nil, &registry.UpstreamError{TaxID: "11222333000181", StatusCode: 500, Err: errors.New("boom")})

	resp, err := fx.svc.Enrich(context.Background(), "11222333000181", "")
	require.Error(t, err)
	assert.Nil(t, resp)

	var ue *registry.UpstreamError
	assert.True(t, errors.As(err, &ue))

	require.Len(t, fx.sink.executions, 1)
	assert.False(t, fx.sink.executions[0].Success)
	assert.Contains(t, fx.sink.executions[0].Error, "boom")
	assert.Empty(t, fx.sink.archived)
}

func TestEnrich_CanceledRequestStillAudited(t *testing.T) {
	fx := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	fx.fetcher.On("Fetch", mock.Anything, "11222333000181").
		Run(func(mock.Arguments) { cancel() }).
		Return(nil, context.Canceled)

	_, err := fx.svc.Enrich(ctx, "11222333000181", "")
	require.ErrorIs(t, err, context.Canceled)

	require.Len(t, fx.sink.executions, 1)
	assert.False(t, fx.sink.executions[0].Success)
	assert.Equal(t, "11222333000181", fx.sink.executions[0].TaxID)
}

func TestRespond_CanceledRequestStillLogsMessages(t *testing.T) {
	fx := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fx.chat.On("Invoke", mock.Anything, mock.Anything).Return(&llm.Result{Content: "Oi!"}, nil)

	_, err := fx.svc.Respond(ctx, ChatRequest{Message: "olá", ConversationID: "conv-9"})
	require.NoError(t, err)

	require.Len(t, fx.sink.messages, 2)
	assert.Equal(t, model.RoleUser, fx.sink.messages[0].Role)
	assert.Equal(t, model.RoleAssistant, fx.sink.messages[1].Role)
	require.Len(t, fx.sink.executions, 1)
}

func TestEnrich_InvalidTaxID(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.svc.Enrich(context.Background(), "123", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrInvalidTaxID)
	fx.fetcher.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)

	require.Len(t, fx.sink.executions, 1)
	assert.False(t, fx.sink.executions[0].Success)
}

func TestEnrich_SinkFailuresAreSwallowed(t *testing.T) {
	fx := newFixture(t)
	fx.sink.err = errors.New("disk full")
	fx.fetcher.On("Fetch", mock.Anything, mock.Anything).Return(acmeFacts, nil)
	fx.search.On("Search", mock.Anything, mock.Anything).Return([]model.SearchResult{})

	resp, err := fx.svc.Enrich(context.Background(), "11222333000181", "")
	require.NoError(t, err)
	assert.NotNil(t, resp)
}

func TestChat(t *testing.T) {
	fx := newFixture(t)
	fx.chat.On("Invoke", mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.HasSuffix(p, "Usuário: Oi Rose\n\nRose:")
	})).Return(&llm.Result{Content: "  Olá! Como posso ajudar? 🌹\n"}, nil)

	reply, err := fx.svc.Chat(context.Background(), "Oi Rose", nil, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "Olá! Como posso ajudar? 🌹", reply)

	require.Len(t, fx.sink.executions, 1)
	rec := fx.sink.executions[0]
	assert.Equal(t, model.OperationChat, rec.Operation)
	assert.Equal(t, "Oi Rose", rec.Input)
	assert.Equal(t, "Olá! Como posso ajudar? 🌹", rec.Output)
	assert.Positive(t, rec.TokensUsed)
	assert.Empty(t, rec.TaxID)
}

func TestChat_Failure(t *testing.T) {
	fx := newFixture(t)
	cause := errors.New("503 from provider")
	fx.chat.On("Invoke", mock.Anything, mock.Anything).Return(nil, cause)

	_, err := fx.svc.Chat(context.Background(), "Oi", nil, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrChatFailed)
	assert.Contains(t, err.Error(), "pipeline: chat: 503 from provider")

	require.Len(t, fx.sink.executions, 1)
	assert.False(t, fx.sink.executions[0].Success)
	assert.Equal(t, "503 from provider", fx.sink.executions[0].Error)
}

func TestRespond_RoutesTaxIDToEnrich(t *testing.T) {
	fx := newFixture(t)
	fx.fetcher.On("Fetch", mock.Anything, "11222333000181").Return(acmeFacts, nil)
	fx.search.On("Search", mock.Anything, mock.Anything).Return([]model.SearchResult{})

	reply, err := fx.svc.Respond(context.Background(), ChatRequest{
		Message:        "11.222.333/0001-81",
		ConversationID: "conv-1",
	})
	require.NoError(t, err)
	require.NotNil(t, reply.Enrichment)
	assert.Equal(t, reply.Enrichment.Message, reply.Message)
	fx.chat.AssertNotCalled(t, "Invoke", mock.Anything, mock.Anything)

	require.Len(t, fx.sink.messages, 2)
	assert.Equal(t, model.RoleUser, fx.sink.messages[0].Role)
	assert.Equal(t, "11.222.333/0001-81", fx.sink.messages[0].Content)
	assert.Equal(t, model.RoleAssistant, fx.sink.messages[1].Role)
	assert.Equal(t, "11222333000181", fx.sink.messages[1].Metadata["taxId"])
}

func TestRespond_RoutesTextToChat(t *testing.T) {
	fx := newFixture(t)
	fx.chat.On("Invoke", mock.Anything, mock.Anything).Return(&llm.Result{Content: "Oi!"}, nil)

	reply, err := fx.svc.Respond(context.Background(), ChatRequest{
		Message: "Olá, tudo bem?",
		History: []model.ChatTurn{{Role: model.RoleUser, Content: "oi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Oi!", reply.Message)
	assert.Nil(t, reply.Enrichment)
	assert.Empty(t, fx.sink.messages, "no conversation id, nothing logged")
	fx.fetcher.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
}

func TestRespond_ChatErrorSkipsAssistantMessage(t *testing.T) {
	fx := newFixture(t)
	fx.chat.On("Invoke", mock.Anything, mock.Anything).Return(nil, errors.New("down"))

	_, err := fx.svc.Respond(context.Background(), ChatRequest{Message: "oi", ConversationID: "c"})
	require.ErrorIs(t, err, ErrChatFailed)
	require.Len(t, fx.sink.messages, 1)
	assert.Equal(t, model.RoleUser, fx.sink.messages[0].Role)
}
