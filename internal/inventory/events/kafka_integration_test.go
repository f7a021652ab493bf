//go:build integration

package events_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"stash/internal/inventory/events"
	"stash/pkg/testutil/containers"
)

func TestKafkaPublisher(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	rp := containers.GetManager().GetRedpanda(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	const topic = "stash.inventory.test"
	producer, err := kgo.NewClient(kgo.SeedBrokers(rp.Brokers...))
	require.NoError(t, err)
	defer producer.Close()
	require.NoError(t, events.EnsureTopic(ctx, producer, topic, 1, 1))
	require.NoError(t, events.EnsureTopic(ctx, producer, topic, 1, 1), "second call tolerates an existing topic")

	sent := events.Event{Type: events.ReservationCreated, ItemID: "item-1", ReservationID: "r-1", Quantity: 3, Status: "pending"}
	require.NoError(t, events.NewKafka(producer, topic).Publish(ctx, sent))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(rp.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.NoError(t, fetches.Err())
	records := fetches.Records()
	require.NotEmpty(t, records)

	var got events.Event
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	require.Equal(t, sent.Type, got.Type)
	require.Equal(t, "item-1", string(records[0].Key))
}
