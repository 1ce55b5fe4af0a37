package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/crewdeck-platform/crewdeck/internal/nats"
)

const (
	consumerName = "message-dispatch"
	fetchBatch   = 16
)

// MessageStore is the slice of the message service the dispatcher needs.
type MessageStore interface {
	MarkDelivered(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID) error
}

// Dispatcher drains the message work queue: it pulls queued sends off
// JetStream, hands each to a bounded pool of handlers, and records the
// outcome on the message row. A handler failure naks the message so
// JetStream redelivers it.
type Dispatcher struct {
	consumers *nats.ConsumerManager
	messages  MessageStore
	pool      *Pool
}

func NewDispatcher(consumers *nats.ConsumerManager, messages MessageStore, concurrency int) *Dispatcher {
	return &Dispatcher{
		consumers: consumers,
		messages:  messages,
		pool:      NewPool(concurrency),
	}
}

// Pool exposes the handler pool for health reporting.
func (d *Dispatcher) Pool() *Pool {
	return d.pool
}

// Start runs the fetch loop until ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) error {
	consumer, err := d.consumers.EnsureConsumer(ctx, nats.StreamMessages, consumerName, nats.SubjectMessageQueued)
	if err != nil {
		return err
	}

	slog.Info("message dispatcher started", "concurrency", d.pool.Capacity())

	for {
		select {
		case <-ctx.Done():
			slog.Info("message dispatcher stopping")
			return ctx.Err()
		default:
		}

		batch, err := consumer.Fetch(fetchBatch, jetstream.FetchMaxWait(nats.FetchTimeout))
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			slog.Error("fetching dispatch batch", "error", err)
			time.Sleep(time.Second)
			continue
		}

		for msg := range batch.Messages() {
			d.pool.Acquire()
			go func(m jetstream.Msg) {
				defer d.pool.Release()
				d.handle(ctx, m)
			}(msg)
		}
		if err := batch.Error(); err != nil {
			slog.Warn("dispatch batch error", "error", err)
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, m jetstream.Msg) {
	var queued nats.QueuedMessage
	if err := json.Unmarshal(m.Data(), &queued); err != nil {
		slog.Error("unmarshaling queued message", "error", err)
		// Malformed payloads can never succeed; drop them.
		_ = m.Ack()
		return
	}

	if err := d.messages.MarkDelivered(ctx, queued.ID); err != nil {
		slog.Error("marking message delivered", "message_id", queued.ID, "error", err)
		if failErr := d.messages.MarkFailed(ctx, queued.ID); failErr != nil {
			slog.Error("marking message failed", "message_id", queued.ID, "error", failErr)
		}
		_ = m.Nak()
		return
	}

	if err := m.Ack(); err != nil {
		slog.Warn("acking dispatched message", "message_id", queued.ID, "error", err)
	}
}
