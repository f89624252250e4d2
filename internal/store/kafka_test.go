package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/cnpj-enrich/internal/model"
)

type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func header(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestKafkaSink_PublishesTypedEvents(t *testing.T) {
	w := &recordingWriter{}
	k := NewKafkaSinkWithWriter(w)
	ctx := context.Background()

	require.NoError(t, k.LogExecution(ctx, &model.ExecutionRecord{ID: "e1", RequestID: "req-1", TaxID: "11222333000181"}))
	require.NoError(t, k.LogSearch(ctx, &model.SearchRecord{ID: "s1", RequestID: "req-1", SearchTerm: "ACME"}))
	require.NoError(t, k.LogMessage(ctx, &model.Message{ID: "m1", ConversationID: "conv-1", Content: "Olá"}))

	require.Len(t, w.msgs, 3)
	assert.Equal(t, EventExecution, header(w.msgs[0], "type"))
	assert.Equal(t, "req-1", string(w.msgs[0].Key))
	assert.Equal(t, EventSearch, header(w.msgs[1], "type"))
	assert.Equal(t, EventMessage, header(w.msgs[2], "type"))
	assert.Equal(t, "conv-1", string(w.msgs[2].Key))

	var rec model.ExecutionRecord
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &rec))
	assert.Equal(t, "11222333000181", rec.TaxID)

	require.NoError(t, k.Close())
	assert.True(t, w.closed)
}

func TestKafkaSink_WriteError(t *testing.T) {
	k := NewKafkaSinkWithWriter(&recordingWriter{err: errors.New("broker down")})

	err := k.LogSearch(context.Background(), &model.SearchRecord{ID: "s1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kafka: publish search")
}
