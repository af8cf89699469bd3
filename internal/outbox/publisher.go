// Package outbox relays committed integration events to the message broker.
package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/gigconnect/internal/observability"
)

type Store interface {
	ProcessOutbox(ctx context.Context, limit int, publish func(ctx context.Context, recs []Record) []uuid.UUID) (int, error)
}

type Broker interface {
	Publish(ctx context.Context, key string, msg amqp.Publishing) error
}

type Publisher struct {
	store       Store
	broker      Broker
	logger      observability.Logger
	interval    time.Duration
	batchSize   int
	maxAttempts int
	backoff     time.Duration
}

func NewPublisher(store Store, broker Broker, logger observability.Logger, interval time.Duration, batchSize int) *Publisher {
	return &Publisher{
		store:       store,
		broker:      broker,
		logger:      logger,
		interval:    interval,
		batchSize:   batchSize,
		maxAttempts: 3,
		backoff:     200 * time.Millisecond,
	}
}

// Run flushes the outbox every interval until ctx is done.
func (p *Publisher) Run(ctx context.Context) error {
	p.logger.Info("outbox publisher started")
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := p.Flush(ctx)
			if err != nil {
				p.logger.WithError(err).Error("outbox flush failed")
				continue
			}
			if n > 0 {
				p.logger.WithField("published", n).Debug("outbox flushed")
			}
		}
	}
}

// Flush publishes one batch and reports how many records were marked published.
func (p *Publisher) Flush(ctx context.Context) (int, error) {
	return p.store.ProcessOutbox(ctx, p.batchSize, p.publishBatch)
}

// publishBatch stops at the first record that cannot be published so events of one aggregate keep their order.
func (p *Publisher) publishBatch(ctx context.Context, recs []Record) []uuid.UUID {
	if len(recs) > 0 {
		observability.OutboxLag.Set(time.Since(recs[0].CreatedAt).Seconds())
	}
	ids := make([]uuid.UUID, 0, len(recs))
	for _, rec := range recs {
		if err := p.publish(ctx, rec); err != nil {
			p.logger.WithError(err).WithFields(map[string]interface{}{
				"outbox_id":  rec.ID,
				"event_type": rec.EventType,
			}).Warn("publish failed, will retry next tick")
			break
		}
		ids = append(ids, rec.ID)
	}
	return ids
}

func (p *Publisher) publish(ctx context.Context, rec Record) error {
	msg := amqp.Publishing{
		MessageId:   rec.DedupeKey,
		ContentType: "application/json",
		Timestamp:   rec.CreatedAt,
		Type:        rec.EventType,
		Body:        rec.Payload,
	}
	var err error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if err = p.broker.Publish(ctx, rec.EventType, msg); err == nil {
			return nil
		}
		if attempt == p.maxAttempts {
			break
		}
		observability.RabbitPublishRetries.Inc()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.backoff * time.Duration(attempt)):
		}
	}
	return err
}
