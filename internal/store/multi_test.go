package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/cnpj-enrich/internal/model"
)

func TestMulti_FansOutAndReadsPrimary(t *testing.T) {
	primary := newTestSQLite(t)
	w := &recordingWriter{}
	m := NewMulti(primary, NewKafkaSinkWithWriter(w))
	ctx := context.Background()

	require.NoError(t, m.LogExecution(ctx, &model.ExecutionRecord{
		ID: "e1", RequestID: "req-1", Operation: model.OperationChat, Success: true, CreatedAt: base,
	}))
	require.NoError(t, m.LogMessage(ctx, &model.Message{
		ID: "m1", ConversationID: "conv-1", Role: model.RoleUser, Content: "Olá", CreatedAt: base,
	}))

	assert.Len(t, w.msgs, 2)

	execs, err := m.ListExecutions(ctx, ExecutionFilter{})
	require.NoError(t, err)
	assert.Len(t, execs, 1)

	msgs, err := m.ListMessages(ctx, "conv-1")
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestMulti_SecondaryErrorIgnored(t *testing.T) {
	primary := newTestSQLite(t)
	m := NewMulti(primary, NewKafkaSinkWithWriter(&recordingWriter{err: errors.New("broker down")}))

	err := m.LogSearch(context.Background(), &model.SearchRecord{
		ID: "s1", SearchTerm: "ACME", LegalName: "ACME", Success: true, CreatedAt: base,
	})
	require.NoError(t, err)

	got, err := m.ListSearches(context.Background(), SearchFilter{})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestMulti_PrimaryErrorReturned(t *testing.T) {
	primary := newTestSQLite(t)
	w := &recordingWriter{}
	m := NewMulti(primary, NewKafkaSinkWithWriter(w))

	rec := &model.ExecutionRecord{ID: "dup", RequestID: "req", Operation: model.OperationEnrich, CreatedAt: base}
	require.NoError(t, m.LogExecution(context.Background(), rec))
	err := m.LogExecution(context.Background(), rec)
	require.Error(t, err, "duplicate primary key")
	assert.Len(t, w.msgs, 2, "secondary still receives the record")
}

func TestMulti_CloseClosesSinks(t *testing.T) {
	s, err := NewSQLite(":memory:")
	require.NoError(t, err)
	w := &recordingWriter{}

	m := NewMulti(s, NewKafkaSinkWithWriter(w))
	require.NoError(t, m.Close())
	assert.True(t, w.closed)
}
