package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Worker drains the audit outbox to Kafka. Events are keyed by outbox id so
// replays after a crash are deduplicated downstream; Kafka is the durable
// audit trail.
type Worker struct {
	store    *Postgres
	client   *kgo.Client
	topic    string
	logger   *slog.Logger
	interval time.Duration
	batch    int
}

// NewWorker connects a producer and makes sure the topic exists.
func NewWorker(ctx context.Context, store *Postgres, brokers []string, topic string, logger *slog.Logger) (*Worker, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	admin := kadm.NewClient(client)
	if _, err := admin.CreateTopic(ctx, 1, 1, nil, topic); err != nil {
		// Already-exists is fine; anything else surfaces at first produce.
		logger.WarnContext(ctx, "audit topic creation", "topic", topic, "error", err)
	}

	return &Worker{
		store:    store,
		client:   client,
		topic:    topic,
		logger:   logger,
		interval: time.Second,
		batch:    100,
	}, nil
}

// Run polls the outbox until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.drainOnce(ctx); err != nil {
				w.logger.ErrorContext(ctx, "audit outbox drain failed", "error", err)
			}
		}
	}
}

func (w *Worker) drainOnce(ctx context.Context) error {
	entries, err := w.store.NextUnpublished(ctx, w.batch)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	var produceErr error
	published := make([]uuid.UUID, 0, len(entries))
	for _, entry := range entries {
		record := &kgo.Record{
			Topic: w.topic,
			Key:   []byte(entry.ID.String()),
			Value: entry.Payload,
		}
		if err := w.client.ProduceSync(ctx, record).FirstErr(); err != nil {
			// Stop at the first failure to preserve outbox order.
			produceErr = err
			break
		}
		published = append(published, entry.ID)
	}
	if len(published) > 0 {
		if err := w.store.MarkPublished(ctx, published); err != nil {
			return err
		}
	}
	return produceErr
}

// Close flushes and releases the producer.
func (w *Worker) Close() {
	w.client.Close()
}
