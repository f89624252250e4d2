package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"github.com/segmentio/kafka-go"

	"github.com/sells-group/cnpj-enrich/internal/model"
)

// Event types carried in the "type" header of audit messages.
const (
	EventExecution = "execution"
	EventSearch    = "search"
	EventMessage   = "message"
)

// KafkaWriter is the subset of kafka.Writer used by KafkaSink.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes audit records to a topic as JSON. It is write-only
// and is combined with a queryable Store through Multi.
type KafkaSink struct {
	w KafkaWriter
}

// NewKafkaSink creates a sink writing to topic on brokers.
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{w: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}}
}

// NewKafkaSinkWithWriter wraps an existing writer.
func NewKafkaSinkWithWriter(w KafkaWriter) *KafkaSink {
	return &KafkaSink{w: w}
}

func (k *KafkaSink) LogExecution(ctx context.Context, rec *model.ExecutionRecord) error {
	return k.publish(ctx, EventExecution, rec.RequestID, rec)
}

func (k *KafkaSink) LogSearch(ctx context.Context, rec *model.SearchRecord) error {
	return k.publish(ctx, EventSearch, rec.RequestID, rec)
}

func (k *KafkaSink) LogMessage(ctx context.Context, msg *model.Message) error {
	return k.publish(ctx, EventMessage, msg.ConversationID, msg)
}

func (k *KafkaSink) Close() error {
	return eris.Wrap(k.w.Close(), "kafka: close writer")
}

func (k *KafkaSink) publish(ctx context.Context, typ, key string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return eris.Wrapf(err, "kafka: marshal %s", typ)
	}
	msg := kafka.Message{
		Key:     []byte(key),
		Value:   body,
		Headers: []kafka.Header{{Key: "type", Value: []byte(typ)}},
	}
	return eris.Wrapf(k.w.WriteMessages(ctx, msg), "kafka: publish %s", typ)
}
