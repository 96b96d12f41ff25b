package events

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaPublisher_PublishEvent(t *testing.T) {
	t.Parallel()

	w := &fakeWriter{}
	p := &KafkaPublisher{w: w}

	ev := ProductEvent{Type: ProductCreated, ProductID: "p-1", OwnerID: "o-1", Name: "Lamp", Price: 3, Stock: 1}
	require.NoError(t, p.PublishEvent(context.Background(), "product_events", "p-1", ev))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "product_events", w.msgs[0].Topic)
	assert.Equal(t, "p-1", string(w.msgs[0].Key))

	var got map[string]any
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, "product_created", got["type"])
	assert.Equal(t, "p-1", got["productID"])
	assert.Equal(t, "o-1", got["ownerID"])

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_Errors(t *testing.T) {
	t.Parallel()

	p := &KafkaPublisher{w: &fakeWriter{err: errors.New("broker down")}}
	err := p.PublishEvent(context.Background(), "t", "k", OwnerEvent{Type: OwnerRegistered})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")

	err = p.PublishEvent(context.Background(), "t", "k", make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "json.Marshal")
}

func TestNoop(t *testing.T) {
	t.Parallel()

	var p Publisher = Noop{}
	require.NoError(t, p.PublishEvent(context.Background(), "t", "k", nil))
	require.NoError(t, p.Close())
}

func TestKafkaPublisher_Integration(t *testing.T) {
	brokers := os.Getenv("KAFKA_TEST_BROKERS")
	if brokers == "" {
		t.Skip("KAFKA_TEST_BROKERS is not set")
	}
	list := strings.Split(brokers, ",")
	topic := "owner_shop_test_" + uuid.NewString()[:8]

	p := NewKafkaPublisher(list)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// the first write may race topic auto-creation
	var err error
	for i := 0; i < 5; i++ {
		if err = p.PublishEvent(ctx, topic, "o-1", OwnerEvent{Type: OwnerRegistered, OwnerID: "o-1"}); err == nil {
			break
		}
		time.Sleep(time.Second)
	}
	require.NoError(t, err)

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   list,
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
		MaxWait:   time.Second,
	})
	defer r.Close()

	m, err := r.ReadMessage(ctx)
	require.NoError(t, err)

	var event map[string]any
	require.NoError(t, json.Unmarshal(m.Value, &event))
	assert.Equal(t, "owner_registered", event["type"])
}
