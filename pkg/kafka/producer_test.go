package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/livebag-backend/pkg/config"
)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *recordingWriter) Close() error { return nil }

func TestNewProducerValidation(t *testing.T) {
	_, err := NewProducer(config.KafkaConfig{Brokers: []string{" "}, Topic: "bags"})
	require.Error(t, err)

	_, err = NewProducer(config.KafkaConfig{Brokers: []string{"localhost:9092"}})
	require.Error(t, err)

	p, err := NewProducer(config.KafkaConfig{Brokers: []string{" localhost:9092 "}, Topic: "livebag.bag-events"})
	require.NoError(t, err)
	assert.Equal(t, "livebag.bag-events", p.Topic())
	assert.Equal(t, []string{"localhost:9092"}, p.brokers)

	w, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.IsType(t, &kafka.Hash{}, w.Balancer)
}

func TestPublishKeysAndHeaders(t *testing.T) {
	w := &recordingWriter{}
	p := &Producer{writer: w, topic: "bags"}

	err := p.Publish(context.Background(), "bag-1", []byte(`{"version":1}`), map[string]string{"event_type": "bag_paid"})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, []byte("bag-1"), w.msgs[0].Key)
	assert.JSONEq(t, `{"version":1}`, string(w.msgs[0].Value))
	require.Len(t, w.msgs[0].Headers, 1)
	assert.Equal(t, "event_type", w.msgs[0].Headers[0].Key)
	assert.Equal(t, "bag_paid", string(w.msgs[0].Headers[0].Value))
}

func TestPublishSurfacesWriterError(t *testing.T) {
	p := &Producer{writer: &recordingWriter{err: errors.New("leader not available")}}
	assert.Error(t, p.Publish(context.Background(), "k", nil, nil))
}

func TestPingReportsUnreachableBrokers(t *testing.T) {
	p := &Producer{
		brokers: []string{"a:9092", "b:9092"},
		dial: func(context.Context, string, string) (*kafka.Conn, error) {
			return nil, errors.New("connection refused")
		},
	}
	err := p.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
