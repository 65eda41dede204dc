//go:build integration

package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"qualinova/pkg/testutil/containers"
)

// The outbox drains to Kafka in order and entries are marked published.
func TestWorkerDrainsOutbox(t *testing.T) {
	ctx := context.Background()
	pg := containers.NewPostgresContainer(t)
	broker := containers.NewRedpandaContainer(t)

	store := NewPostgres(pg.DB)
	require.NoError(t, store.Migrate(ctx))

	events := []Event{
		{Operation: OpCertIssued, SubjectID: "cert-1", ActorID: "issuer-1", Timestamp: time.Now()},
		{Operation: OpCertTransferred, SubjectID: "cert-1", ActorID: "owner-o", Timestamp: time.Now()},
		{Operation: OpCertRevoked, SubjectID: "cert-1", ActorID: "issuer-1", Timestamp: time.Now()},
	}
	for _, event := range events {
		require.NoError(t, store.Append(ctx, event))
	}

	const topic = "qualinova.audit.test"
	worker, err := NewWorker(ctx, store, broker.Brokers, topic, slog.Default())
	require.NoError(t, err)
	defer worker.Close()

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = worker.Run(runCtx)
	}()

	require.Eventually(t, func() bool {
		pending, err := store.NextUnpublished(ctx, 10)
		return err == nil && len(pending) == 0
	}, 15*time.Second, 200*time.Millisecond, "outbox should drain")

	cancel()
	<-done

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	var operations []string
	deadline := time.Now().Add(15 * time.Second)
	for len(operations) < len(events) && time.Now().Before(deadline) {
		fetchCtx, fetchCancel := context.WithTimeout(ctx, 2*time.Second)
		fetches := consumer.PollFetches(fetchCtx)
		fetchCancel()
		fetches.EachRecord(func(record *kgo.Record) {
			var payload struct {
				Operation string `json:"operation"`
			}
			require.NoError(t, json.Unmarshal(record.Value, &payload))
			operations = append(operations, payload.Operation)
		})
	}

	require.Equal(t, []string{
		string(OpCertIssued),
		string(OpCertTransferred),
		string(OpCertRevoked),
	}, operations, "events arrive in outbox order")
}
