package pipeline

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"go.uber.org/goleak"

	"github.com/sells-group/cnpj-enrich/internal/llm"
	"github.com/sells-group/cnpj-enrich/internal/model"
	"github.com/sells-group/cnpj-enrich/internal/search"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// --- Fetcher Mock ---

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) Fetch(ctx context.Context, taxID string) (*model.OfficialFacts, error) {
	args := m.Called(ctx, taxID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OfficialFacts), args.Error(1)
}

// --- Search Mock ---

type mockSearch struct {
	mock.Mock
}

func (m *mockSearch) Search(ctx context.Context, req search.Request) []model.SearchResult {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]model.SearchResult)
}

// --- LLM Mock ---

type mockLLM struct {
	mock.Mock
	name  string
	model string
}

func newMockLLM() *mockLLM {
	return &mockLLM{name: llm.ProviderOpenAI, model: "gpt-4o-mini"}
}

func (m *mockLLM) Invoke(ctx context.Context, prompt string) (*llm.Result, error) {
	args := m.Called(ctx, prompt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llm.Result), args.Error(1)
}

func (m *mockLLM) Name() string  { return m.name }
func (m *mockLLM) Model() string { return m.model }

// --- Sinks ---

// memSink rejects writes on a canceled context the way a database driver does.
type memSink struct {
	mu         sync.Mutex
	executions []*model.ExecutionRecord
	messages   []*model.Message
	archived   []*model.Response
	err        error
}

func (s *memSink) LogExecution(ctx context.Context, rec *model.ExecutionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executions = append(s.executions, rec)
	return s.err
}

func (s *memSink) LogMessage(ctx context.Context, msg *model.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return s.err
}

func (s *memSink) Put(_ context.Context, resp *model.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.archived = append(s.archived, resp)
	return s.err
}
