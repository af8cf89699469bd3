package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/gigconnect/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	pending   []Record
	published []uuid.UUID
}

func (s *fakeStore) ProcessOutbox(ctx context.Context, limit int, publish func(context.Context, []Record) []uuid.UUID) (int, error) {
	batch := s.pending
	if len(batch) > limit {
		batch = batch[:limit]
	}
	ids := publish(ctx, batch)
	s.published = append(s.published, ids...)
	s.pending = s.pending[len(ids):]
	return len(ids), nil
}

type fakeBroker struct {
	failKey  string
	failures int
	sent     []amqp.Publishing
	keys     []string
}

func (b *fakeBroker) Publish(_ context.Context, key string, msg amqp.Publishing) error {
	if key == b.failKey && b.failures > 0 {
		b.failures--
		return errors.New("channel closed")
	}
	b.sent = append(b.sent, msg)
	b.keys = append(b.keys, key)
	return nil
}

func records(types ...string) []Record {
	out := make([]Record, 0, len(types))
	for _, t := range types {
		id := uuid.New()
		out = append(out, Record{ID: id, EventType: t, DedupeKey: id.String(), Payload: []byte(`{}`), CreatedAt: time.Now()})
	}
	return out
}

func newPublisher(store Store, broker Broker) *Publisher {
	p := NewPublisher(store, broker, observability.NewNopLogger(), time.Second, 2)
	p.backoff = time.Millisecond
	return p
}

func TestFlushPublishesInOrder(t *testing.T) {
	store := &fakeStore{pending: records("match.requested", "match.matched", "gig.created")}
	broker := &fakeBroker{}
	p := newPublisher(store, broker)

	n, err := p.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = p.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, []string{"match.requested", "match.matched", "gig.created"}, broker.keys)
	assert.Equal(t, store.published[0].String(), broker.sent[0].MessageId)
	assert.Empty(t, store.pending)
}

func TestFlushRetriesThenStops(t *testing.T) {
	store := &fakeStore{pending: records("gig.created", "gig.confirmed")}

	transient := &fakeBroker{failKey: "gig.created", failures: 2}
	n, err := newPublisher(store, transient).Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n, "retries absorb transient failures")

	store = &fakeStore{pending: records("gig.created", "gig.confirmed")}
	down := &fakeBroker{failKey: "gig.created", failures: 10}
	n, err = newPublisher(store, down).Flush(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, down.sent, "later records wait for the failed one")
	assert.Len(t, store.pending, 2)
}
