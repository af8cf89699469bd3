// Package audit copies published integration events into the relationship log.
package audit

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/gigconnect/internal/domain"
	"github.com/robertarktes/gigconnect/internal/observability"
)

// RoutingPatterns are the event families the worker subscribes to.
var RoutingPatterns = []string{"match.#", "gig.#"}

var errMalformed = errors.New("malformed event")

type Log interface {
	Append(ctx context.Context, ev domain.Event) error
}

type Worker struct {
	log    Log
	logger observability.Logger
}

func NewWorker(log Log, logger observability.Logger) *Worker {
	return &Worker{log: log, logger: logger}
}

// Handle stores one message body.
func (w *Worker) Handle(ctx context.Context, body []byte) error {
	var ev domain.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return errors.Mark(errors.Wrap(err, "decode event"), errMalformed)
	}
	if ev.ID == uuid.Nil || ev.Type == "" {
		return errors.Mark(errors.New("event without id or type"), errMalformed)
	}
	return w.log.Append(ctx, ev)
}

// Run acknowledges each delivery once it is stored. Malformed messages are rejected without requeue,
// storage failures are requeued.
func (w *Worker) Run(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	w.logger.Info("audit worker started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			w.process(ctx, d)
		}
	}
}

func (w *Worker) process(ctx context.Context, d amqp.Delivery) {
	err := w.Handle(ctx, d.Body)
	switch {
	case err == nil:
		observability.AuditEventsConsumed.WithLabelValues("stored").Inc()
		if aerr := d.Ack(false); aerr != nil {
			w.logger.WithError(aerr).Warn("ack failed")
		}
	case errors.Is(err, errMalformed):
		observability.AuditEventsConsumed.WithLabelValues("rejected").Inc()
		w.logger.WithError(err).WithField("message_id", d.MessageId).Warn("dropping malformed event")
		_ = d.Reject(false)
	default:
		observability.AuditEventsConsumed.WithLabelValues("requeued").Inc()
		w.logger.WithError(err).WithField("message_id", d.MessageId).Error("failed to store event")
		_ = d.Nack(false, true)
	}
}
